package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nylonring/nylon-ring-host/registry"
	"github.com/nylonring/nylon-ring-host/router"
	"github.com/nylonring/nylon-ring-host/state"
)

func TestLoadRejectsMissingLibrary(t *testing.T) {
	r := router.New(registry.New(), state.New(), nil)
	_, err := Load("/nonexistent/libnylonring-testplugin.so", r, nil)
	assert.Error(t, err)
}
