package rtfx_test

import (
	"fmt"

	"github.com/dudk/rtfx"
	"github.com/dudk/rtfx/gain"
)

// Example hosts a gain effect on one mono track: the control role edits the
// settings through an Access handle, the worker role drives the per-block
// lifecycle.
func Example() {
	registry := rtfx.NewRegistry()
	registry.Register(&gain.Plugin{})

	state := rtfx.New(registry, gain.ID)
	access := state.Access()
	access.Set(rtfx.Settings{Value: &gain.Settings{Gain: 0.5}, Active: true})
	access.Flush()

	state.Initialize(44100)
	state.AddTrack("track", 1, 44100)

	in := [][]float32{{1, 1, 1, 1}}
	out := [][]float32{make([]float32, 4)}
	state.ProcessStart(true)
	state.Process("track", 1, in, out, 4)
	state.ProcessEnd()
	state.Finalize()

	fmt.Println(out[0])
	// Output: [0.5 0.5 0.5 0.5]
}
