package wav_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/rtfx"
	"github.com/dudk/rtfx/gain"
	"github.com/dudk/rtfx/render"
	"github.com/dudk/rtfx/wav"
)

const (
	sampleRate = 44100.0
	bitDepth   = 16
	bufferSize = 64
)

// writeWav encodes data into a wav file at path.
func writeWav(t *testing.T, path string, data [][]float32) {
	t.Helper()
	sink := wav.NewSink(path, bitDepth)
	require.NoError(t, sink.Start(sampleRate, len(data)))
	require.NoError(t, sink.Sink(data, len(data[0])))
	require.NoError(t, sink.Flush())
}

// readWav decodes the whole wav file at path.
func readWav(t *testing.T, path string) [][]float32 {
	t.Helper()
	pump := wav.NewPump(path)
	rate, numChannels, err := pump.Start()
	require.NoError(t, err)
	assert.Equal(t, sampleRate, rate)

	data := make([][]float32, numChannels)
	buf := make([][]float32, numChannels)
	for c := range buf {
		buf[c] = make([]float32, bufferSize)
	}
	for {
		frames, err := pump.Pump(buf)
		for c := range data {
			data[c] = append(data[c], buf[c][:frames]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			require.NoError(t, err)
		}
	}
	require.NoError(t, pump.Flush())
	return data
}

func signal(numChannels, frames int) [][]float32 {
	data := make([][]float32, numChannels)
	for c := range data {
		data[c] = make([]float32, frames)
		for f := range data[c] {
			data[c][f] = float32(f%50)/100 - 0.25
		}
	}
	return data
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "source.wav")
	source := signal(2, 300)
	writeWav(t, path, source)

	decoded := readWav(t, path)
	require.Len(t, decoded, 2)
	require.Len(t, decoded[0], 300)
	for c := range source {
		for f := range source[c] {
			assert.InDelta(t, source[c][f], decoded[c][f], 1e-3)
		}
	}
}

func TestRenderThroughEffect(t *testing.T) {
	const delay = 30
	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "source.wav")
	resultPath := filepath.Join(dir, "result.wav")
	source := signal(1, 256)
	writeWav(t, sourcePath, source)

	registry := rtfx.NewRegistry()
	registry.Register(&gain.Plugin{Delay: delay})
	state := rtfx.New(registry, gain.ID)
	access := state.Access()
	access.Set(rtfx.Settings{Value: &gain.Settings{Gain: 0.5}, Active: true})
	access.Flush()

	err := render.Render(state, wav.NewPump(sourcePath), wav.NewSink(resultPath, bitDepth), bufferSize)
	require.NoError(t, err)

	// the delayed frames are dropped, the rest is the scaled source
	result := readWav(t, resultPath)
	require.Len(t, result[0], 256-delay)
	for f := range result[0] {
		assert.InDelta(t, source[0][f]*0.5, result[0][f], 1e-3)
	}
}

func TestPumpInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-wav.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not audio"), 0o644))

	_, _, err := wav.NewPump(path).Start()
	assert.ErrorIs(t, err, wav.ErrInvalidWav)
}

func TestPumpMissingFile(t *testing.T) {
	_, _, err := wav.NewPump(filepath.Join(t.TempDir(), "missing.wav")).Start()
	assert.Error(t, err)
}
