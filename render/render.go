// Package render drives an effect state offline: it pumps blocks from a
// source through the state's full realtime lifecycle and sinks the
// sample-aligned result. The control role and the worker role are the same
// goroutine here, which the exchange protocol permits as long as the calls
// stay serialized.
package render

import (
	"errors"
	"io"

	"github.com/dudk/rtfx"
)

// track identifies the single rendered track within the state.
const track = "render"

// Pump is a source of sample blocks. Pump should use next error conventions:
//   - nil if a full buffer was read;
//   - io.EOF if no data was read;
//   - io.ErrUnexpectedEOF if not a full buffer was read.
// The latest case means that pump executed as expected, but not enough data
// was available. The incomplete buffer is still sinked and rendering
// finishes gracefully.
type Pump interface {
	// Start opens the source and returns its sample rate and channel count.
	Start() (sampleRate float64, numChannels int, err error)
	// Pump fills buf with up to len(buf[0]) frames per channel and returns
	// the number of frames read.
	Pump(buf [][]float32) (int, error)
	// Flush releases the source.
	Flush() error
}

// Sink consumes rendered sample blocks.
type Sink interface {
	// Start opens the destination for a stream of the given shape.
	Start(sampleRate float64, numChannels int) error
	// Sink consumes frames from buf, one slice per channel.
	Sink(buf [][]float32, frames int) error
	// Flush finishes and releases the destination.
	Flush() error
}

// Render pumps the source through the state and writes the result. Frames
// covered by the effect's algorithmic delay are dropped from the front of
// the stream, so the sinked stream is sample-aligned: its length is the
// source length minus the reported latency.
//
// A state that cannot run, whatever the reason, renders as pass-through.
func Render(state *rtfx.State, pump Pump, sink Sink, bufferSize int) error {
	sampleRate, numChannels, err := pump.Start()
	if err != nil {
		return err
	}
	defer pump.Flush()

	if err = sink.Start(sampleRate, numChannels); err != nil {
		return err
	}

	if instance := state.Initialize(sampleRate); instance != nil {
		state.AddTrack(track, numChannels, sampleRate)
	}
	defer state.Finalize()

	in := newBuffer(numChannels, bufferSize)
	out := newBuffer(numChannels, bufferSize)
	for {
		frames, pumpErr := pump.Pump(in)
		if pumpErr != nil && !errors.Is(pumpErr, io.ErrUnexpectedEOF) {
			if errors.Is(pumpErr, io.EOF) {
				break
			}
			return pumpErr
		}

		state.ProcessStart(true)
		discard := state.Process(track, numChannels, in, out, frames)
		state.ProcessEnd()

		if discard < frames {
			if err = sink.Sink(trim(out, discard), frames-discard); err != nil {
				return err
			}
		}
		if pumpErr != nil {
			break
		}
	}
	return sink.Flush()
}

func newBuffer(numChannels, bufferSize int) [][]float32 {
	buf := make([][]float32, numChannels)
	for i := range buf {
		buf[i] = make([]float32, bufferSize)
	}
	return buf
}

// trim drops the leading discarded frames of every channel.
func trim(buf [][]float32, discard int) [][]float32 {
	if discard == 0 {
		return buf
	}
	trimmed := make([][]float32, len(buf))
	for i := range buf {
		trimmed[i] = buf[i][discard:]
	}
	return trimmed
}
