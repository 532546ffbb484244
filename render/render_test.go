package render_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/rtfx"
	"github.com/dudk/rtfx/gain"
	"github.com/dudk/rtfx/render"
)

// memPump pumps a prepared signal from memory.
type memPump struct {
	sampleRate  float64
	numChannels int
	data        [][]float32
	pos         int
}

func (p *memPump) Start() (float64, int, error) {
	return p.sampleRate, p.numChannels, nil
}

func (p *memPump) Pump(buf [][]float32) (int, error) {
	remaining := len(p.data[0]) - p.pos
	if remaining == 0 {
		return 0, io.EOF
	}
	frames := min(len(buf[0]), remaining)
	for c := range buf {
		copy(buf[c], p.data[c][p.pos:p.pos+frames])
	}
	p.pos += frames
	if frames < len(buf[0]) {
		return frames, io.ErrUnexpectedEOF
	}
	return frames, nil
}

func (p *memPump) Flush() error { return nil }

// memSink collects the rendered signal in memory.
type memSink struct {
	sampleRate  float64
	numChannels int
	data        [][]float32
	flushed     bool
}

func (s *memSink) Start(sampleRate float64, numChannels int) error {
	s.sampleRate = sampleRate
	s.numChannels = numChannels
	s.data = make([][]float32, numChannels)
	return nil
}

func (s *memSink) Sink(buf [][]float32, frames int) error {
	for c := range s.data {
		s.data[c] = append(s.data[c], buf[c][:frames]...)
	}
	return nil
}

func (s *memSink) Flush() error {
	s.flushed = true
	return nil
}

func signal(numChannels, frames int) [][]float32 {
	data := make([][]float32, numChannels)
	for c := range data {
		data[c] = make([]float32, frames)
		for f := range data[c] {
			data[c][f] = float32(f%100) / 100
		}
	}
	return data
}

func newState(t *testing.T, plugin rtfx.Plugin, id string) *rtfx.State {
	t.Helper()
	registry := rtfx.NewRegistry()
	if plugin != nil {
		registry.Register(plugin)
	}
	return rtfx.New(registry, id)
}

func TestRender(t *testing.T) {
	state := newState(t, &gain.Plugin{}, gain.ID)
	access := state.Access()
	access.Set(rtfx.Settings{Value: &gain.Settings{Gain: 0.5}, Active: true})
	access.Flush()

	pump := &memPump{sampleRate: 44100, numChannels: 2, data: signal(2, 100)}
	sink := &memSink{}
	require.NoError(t, render.Render(state, pump, sink, 32))

	assert.True(t, sink.flushed)
	assert.Equal(t, 44100.0, sink.sampleRate)
	require.Len(t, sink.data[0], 100)
	for c := 0; c < 2; c++ {
		for f := 0; f < 100; f++ {
			assert.InDelta(t, pump.data[c][f]*0.5, sink.data[c][f], 1e-6)
		}
	}
}

func TestRenderLatency(t *testing.T) {
	const delay = 20
	const frames = 100

	state := newState(t, &gain.Plugin{Delay: delay}, gain.ID)

	pump := &memPump{sampleRate: 44100, numChannels: 1, data: signal(1, frames)}
	sink := &memSink{}
	require.NoError(t, render.Render(state, pump, sink, 32))

	// the sinked stream is the source minus the algorithmic delay
	require.Len(t, sink.data[0], frames-delay)
	for f := 0; f < frames-delay; f++ {
		assert.InDelta(t, pump.data[0][f], sink.data[0][f], 1e-6)
	}
}

func TestRenderPassThrough(t *testing.T) {
	state := newState(t, nil, "unknown")

	pump := &memPump{sampleRate: 48000, numChannels: 2, data: signal(2, 75)}
	sink := &memSink{}
	require.NoError(t, render.Render(state, pump, sink, 32))

	assert.Equal(t, signal(2, 75), sink.data)
}
