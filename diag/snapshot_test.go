package diag

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nylonring/nylon-ring-host/registry"
	"github.com/nylonring/nylon-ring-host/state"
)

func TestSnapshotReportsLiveSIDsAndStateKeyCounts(t *testing.T) {
	reg := registry.New()
	store := state.New()

	_, err := reg.RegisterUnary(1)
	require.NoError(t, err)
	store.Set(1, "a", []byte("1"))
	store.Set(1, "b", []byte("2"))

	_, err = reg.RegisterStream(2)
	require.NoError(t, err)

	report := Snapshot(reg, store, time.Unix(0, 0))
	assert.Len(t, report.LiveSIDs, 2)

	byShape := map[string]int{}
	for _, info := range report.LiveSIDs {
		byShape[info.Shape]++
		if info.SID == 1 {
			assert.Equal(t, 2, info.StateKeyCount)
		}
	}
	assert.Equal(t, 1, byShape["unary"])
	assert.Equal(t, 1, byShape["stream"])
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	report := &Report{
		LiveSIDs:    []SIDInfo{{SID: 7, Shape: "unary", StateKeyCount: 3}},
		GeneratedAt: time.Unix(100, 0).UTC(),
	}
	data, err := Marshal(report)
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, report.LiveSIDs, got.LiveSIDs)
	assert.True(t, report.GeneratedAt.Equal(got.GeneratedAt))
}
