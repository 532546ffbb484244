package rtfx_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dudk/rtfx"
	"github.com/dudk/rtfx/mock"
)

func TestRegistry(t *testing.T) {
	registry := rtfx.NewRegistry()

	_, ok := registry.Lookup("mock")
	assert.False(t, ok)

	plugin := &mock.Plugin{}
	registry.Register(plugin)
	found, ok := registry.Lookup("mock")
	assert.True(t, ok)
	assert.Same(t, plugin, found)

	// registration under the same id replaces
	replacement := &mock.Plugin{LatencySamples: 1}
	registry.Register(replacement)
	found, _ = registry.Lookup("mock")
	assert.Same(t, replacement, found)
}
