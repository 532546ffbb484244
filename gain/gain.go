// Package gain provides a minimal effect plugin: per-channel gain with an
// optional fixed delay line, which gives it a real nonzero latency.
package gain

import (
	"fmt"
	"strconv"

	"github.com/dudk/rtfx"
)

// ID is the identifier the plugin registers under.
const ID = "gain"

const version = "1.0.0"

// Settings is the effect-shaped payload: linear gain.
type Settings struct {
	Gain float64
}

// Outputs reports the last observed output peak.
type Outputs struct {
	Peak float64
}

// Plugin is a mono-in, mono-out gain effect. Delay adds a fixed delay line
// of that many samples per processor, reported as latency.
type Plugin struct {
	Delay int
}

// ID returns the plugin identifier.
func (p *Plugin) ID() string { return ID }

// Version returns the plugin version.
func (p *Plugin) Version() string { return version }

// MakeSettings returns active settings with unity gain.
func (p *Plugin) MakeSettings() rtfx.Settings {
	return rtfx.Settings{
		Value:  &Settings{Gain: 1},
		Active: true,
	}
}

// CopySettings copies the payload in place.
func (p *Plugin) CopySettings(dst *rtfx.Settings, src rtfx.Settings) {
	*dst.Value.(*Settings) = *src.Value.(*Settings)
}

// MakeOutputs returns a fresh outputs value.
func (p *Plugin) MakeOutputs() rtfx.Outputs {
	return &Outputs{}
}

// CloneOutputs returns an independent copy of outputs.
func (p *Plugin) CloneOutputs(o rtfx.Outputs) rtfx.Outputs {
	clone := *o.(*Outputs)
	return &clone
}

// AssignOutputs copies outputs contents in place.
func (p *Plugin) AssignOutputs(dst, src rtfx.Outputs) {
	*dst.(*Outputs) = *src.(*Outputs)
}

// MakeInstance returns a new processing instance.
func (p *Plugin) MakeInstance() rtfx.Instance {
	return &instance{delay: p.Delay}
}

// LoadParameter applies one persisted parameter.
func (p *Plugin) LoadParameter(s *rtfx.Settings, name, value string) error {
	if name != "gain" {
		return fmt.Errorf("unknown parameter %v", name)
	}
	gain, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return err
	}
	s.Value.(*Settings).Gain = gain
	return nil
}

// StoreParameters lists the persisted parameters.
func (p *Plugin) StoreParameters(s rtfx.Settings) []rtfx.Parameter {
	return []rtfx.Parameter{
		{Name: "gain", Value: strconv.FormatFloat(s.Value.(*Settings).Gain, 'f', -1, 64)},
	}
}

// delayLine is the per-processor state: a ring of the last delay samples.
type delayLine struct {
	ring []float32
	pos  int
}

func (d *delayLine) process(in, out []float32, gain float32, frames int) {
	if len(d.ring) == 0 {
		for f := 0; f < frames; f++ {
			out[f] = in[f] * gain
		}
		return
	}
	for f := 0; f < frames; f++ {
		delayed := d.ring[d.pos]
		d.ring[d.pos] = in[f]
		d.pos = (d.pos + 1) % len(d.ring)
		out[f] = delayed * gain
	}
}

type instance struct {
	delay      int
	blockSize  int
	processors []*delayLine
	outputs    *Outputs
}

func (i *instance) AudioInCount() int  { return 1 }
func (i *instance) AudioOutCount() int { return 1 }

func (i *instance) BlockSize() int          { return i.blockSize }
func (i *instance) SetBlockSize(size int)   { i.blockSize = size }
func (i *instance) PreferredBlockSize() int { return 0 }

func (i *instance) RealtimeInitialize(*rtfx.Settings, float64) bool {
	i.processors = i.processors[:0]
	i.outputs = nil
	return true
}

func (i *instance) RealtimeAddProcessor(_ *rtfx.Settings, outputs rtfx.Outputs, _ int, _ float64) bool {
	var ring []float32
	if i.delay > 0 {
		ring = make([]float32, i.delay)
	}
	i.processors = append(i.processors, &delayLine{ring: ring})
	i.outputs, _ = outputs.(*Outputs)
	return true
}

func (i *instance) RealtimeSuspend() bool { return true }
func (i *instance) RealtimeResume() bool  { return true }

func (i *instance) RealtimeProcessStart(*rtfx.Settings) bool { return true }

func (i *instance) RealtimeProcess(processor int, s *rtfx.Settings, in, out [][]float32, frames int) int {
	if processor < 0 || processor >= len(i.processors) || out[0] == nil {
		return 0
	}
	gain := float32(s.Value.(*Settings).Gain)
	i.processors[processor].process(in[0], out[0], gain, frames)
	if i.outputs != nil {
		for f := 0; f < frames; f++ {
			if peak := float64(out[0][f]); peak > i.outputs.Peak {
				i.outputs.Peak = peak
			}
		}
	}
	return frames
}

func (i *instance) RealtimeProcessEnd(s *rtfx.Settings) bool { return true }

func (i *instance) RealtimeFinalize(*rtfx.Settings) bool {
	i.processors = i.processors[:0]
	return true
}

func (i *instance) Latency(*rtfx.Settings, float64) int {
	return i.delay
}
