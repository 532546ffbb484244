package rtfx_test

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dudk/rtfx"
	"github.com/dudk/rtfx/mock"
)

const (
	testTrack      = "track"
	testSampleRate = 44100.0
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// newState returns a state bound to the plugin through a fresh registry.
func newState(t *testing.T, plugin *mock.Plugin) *rtfx.State {
	t.Helper()
	registry := rtfx.NewRegistry()
	registry.Register(plugin)
	return rtfx.New(registry, plugin.ID())
}

// startWorker drives the worker role until stop is closed.
func startWorker(state *rtfx.State, stop chan struct{}, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		in := [][]float32{make([]float32, 64), make([]float32, 64)}
		out := [][]float32{make([]float32, 64), make([]float32, 64)}
		for {
			select {
			case <-stop:
				return
			default:
			}
			state.ProcessStart(true)
			state.Process(testTrack, 2, in, out, 64)
			state.ProcessEnd()
			time.Sleep(time.Millisecond)
		}
	}()
}

func gainOf(s rtfx.Settings) float64 {
	return s.Value.(*mock.Values).Gain
}

func withGain(s rtfx.Settings, gain float64) rtfx.Settings {
	return rtfx.Settings{
		Value:  &mock.Values{Gain: gain},
		Active: s.Active,
	}
}

func TestFlushConfirmsLastSet(t *testing.T) {
	plugin := &mock.Plugin{}
	state := newState(t, plugin)
	access := state.Access()

	require.NotNil(t, state.Initialize(testSampleRate))
	require.NotNil(t, state.AddTrack(testTrack, 2, testSampleRate))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	startWorker(state, stop, &wg)

	for i := 1; i <= 10; i++ {
		access.Set(withGain(access.Get(), float64(i)))
	}
	access.Flush()

	got := access.Get()
	assert.Equal(t, 10.0, gainOf(got), "confirmed settings: %s", spew.Sdump(got))

	close(stop)
	wg.Wait()
	state.Finalize()
	goleak.VerifyNoLeaks(t)
}

func TestFlushUninitialized(t *testing.T) {
	plugin := &mock.Plugin{}
	state := newState(t, plugin)
	access := state.Access()

	access.Set(withGain(access.Get(), 2))
	start := time.Now()
	access.Flush()
	// nothing to wait for, no polling loop entered
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 2.0, gainOf(access.Get()))
}

func TestSetEmptySettingsIgnored(t *testing.T) {
	plugin := &mock.Plugin{}
	state := newState(t, plugin)
	access := state.Access()

	access.Set(withGain(access.Get(), 3))
	access.Set(rtfx.Settings{Active: true})
	assert.Equal(t, 3.0, gainOf(access.Get()))
}

func TestWorkerReadIdempotent(t *testing.T) {
	plugin := &mock.Plugin{}
	state := newState(t, plugin)
	access := state.Access()

	require.NotNil(t, state.Initialize(testSampleRate))
	require.NotNil(t, state.AddTrack(testTrack, 2, testSampleRate))

	access.Set(withGain(access.Get(), 2))

	before := plugin.CopyCount.Load()
	state.ProcessStart(true)
	state.ProcessEnd()
	afterFirst := plugin.CopyCount.Load()
	assert.Equal(t, before+1, afterFirst, "first read copies once")

	state.ProcessStart(true)
	state.ProcessEnd()
	assert.Equal(t, afterFirst, plugin.CopyCount.Load(), "unchanged counter skips the copy")

	state.Finalize()
}

func TestOutputsMergedToControl(t *testing.T) {
	plugin := &mock.Plugin{}
	state := newState(t, plugin)
	access := state.Access()

	require.NotNil(t, state.Initialize(testSampleRate))
	require.NotNil(t, state.AddTrack(testTrack, 2, testSampleRate))

	in := [][]float32{make([]float32, 16), make([]float32, 16)}
	out := [][]float32{make([]float32, 16), make([]float32, 16)}
	for i := range in {
		for j := range in[i] {
			in[i][j] = 0.5
		}
	}
	state.ProcessStart(true)
	state.Process(testTrack, 2, in, out, 16)
	state.ProcessEnd()

	// a control-side read merges the reported outputs
	access.Get()
	outputs, ok := state.Outputs().(*mock.Outputs)
	require.True(t, ok)
	assert.InDelta(t, 0.5, outputs.Peak, 1e-6)

	state.Finalize()
}

func TestAccessOutlivesState(t *testing.T) {
	plugin := &mock.Plugin{}
	state := newState(t, plugin)
	access := state.Access()
	access.Set(withGain(access.Get(), 2))

	state = nil
	dead := false
	for i := 0; i < 100; i++ {
		runtime.GC()
		if !access.Get().HasValue() {
			dead = true
			break
		}
	}
	require.True(t, dead, "state was not collected")

	// all operations degrade to no-ops
	access.Set(withGain(rtfx.Settings{Value: &mock.Values{}}, 4))
	access.Flush()
	assert.False(t, access.Get().HasValue())
}

func TestIsSameAs(t *testing.T) {
	plugin := &mock.Plugin{}
	state := newState(t, plugin)
	other := newState(t, plugin)

	assert.True(t, state.Access().IsSameAs(state.Access()))
	assert.False(t, state.Access().IsSameAs(other.Access()))
	assert.False(t, state.Access().IsSameAs(nil))
}

func TestAccessToInertState(t *testing.T) {
	state := rtfx.New(rtfx.NewRegistry(), "unknown")
	access := state.Access()

	assert.False(t, access.Get().HasValue())
	access.Set(rtfx.Settings{Value: &mock.Values{}, Active: true})
	access.Flush()
	assert.False(t, access.Get().HasValue())
}
