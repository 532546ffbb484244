// Package portaudio plays an effect state live on the default output
// device. The stream write loop stands in for the realtime scheduler that
// drives the worker role: it calls the state's per-block lifecycle once per
// buffer.
package portaudio

import (
	"errors"
	"io"

	"github.com/gordonklaus/portaudio"

	"github.com/dudk/rtfx"
	"github.com/dudk/rtfx/render"
)

// track identifies the played track within the state.
const track = "playback"

// Player plays a pump through an effect state using the default device.
type Player struct {
	bufferSize int
	buf        []float32
	stream     *portaudio.Stream
}

// NewPlayer returns a player with the given buffer size per block.
func NewPlayer(bufferSize int) *Player {
	return &Player{bufferSize: bufferSize}
}

// Play pumps the source through the state and writes it to the default
// output stream until the source is drained. Frames covered by the effect's
// latency are muted rather than dropped, keeping the stream timing intact.
func (p *Player) Play(state *rtfx.State, pump render.Pump) error {
	sampleRate, numChannels, err := pump.Start()
	if err != nil {
		return err
	}
	defer pump.Flush()

	if err = portaudio.Initialize(); err != nil {
		return err
	}
	defer portaudio.Terminate()

	p.buf = make([]float32, p.bufferSize*numChannels)
	p.stream, err = portaudio.OpenDefaultStream(
		0, numChannels, sampleRate, p.bufferSize, &p.buf,
	)
	if err != nil {
		return err
	}
	if err = p.stream.Start(); err != nil {
		return err
	}
	defer p.stream.Close()
	defer p.stream.Stop()

	if instance := state.Initialize(sampleRate); instance != nil {
		state.AddTrack(track, numChannels, sampleRate)
	}
	defer state.Finalize()

	in := make([][]float32, numChannels)
	out := make([][]float32, numChannels)
	for i := range in {
		in[i] = make([]float32, p.bufferSize)
		out[i] = make([]float32, p.bufferSize)
	}
	for {
		frames, pumpErr := pump.Pump(in)
		if pumpErr != nil && !errors.Is(pumpErr, io.ErrUnexpectedEOF) {
			if errors.Is(pumpErr, io.EOF) {
				return nil
			}
			return pumpErr
		}

		state.ProcessStart(true)
		discard := state.Process(track, numChannels, in, out, frames)
		state.ProcessEnd()

		for f := 0; f < p.bufferSize; f++ {
			for c := 0; c < numChannels; c++ {
				v := float32(0)
				if f >= discard && f < frames {
					v = out[c][f]
				}
				p.buf[f*numChannels+c] = v
			}
		}
		if err = p.stream.Write(); err != nil {
			return err
		}
		if pumpErr != nil {
			return nil
		}
	}
}
