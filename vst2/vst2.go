// Package vst2 adapts a VST2 plugin to the rtfx capability set.
package vst2

import (
	"github.com/dudk/vst2"

	"github.com/dudk/rtfx"
)

// Settings carries the persisted parameters of a VST2 effect. The binding
// keeps them verbatim: parameter state lives inside the plugin, so
// unrecognized names survive a load-save round trip untouched.
type Settings struct {
	Params []rtfx.Parameter
}

// Plugin adapts a loaded VST2 plugin.
type Plugin struct {
	plugin  *vst2.Plugin
	id      string
	version string
	numIn   int
	numOut  int
	latency int
}

// Option provides a way to set optional properties to the adapter.
type Option func(*Plugin)

// WithChannels sets the processor channel arity, 2 in and 2 out by default.
func WithChannels(numIn, numOut int) Option {
	return func(p *Plugin) {
		p.numIn = numIn
		p.numOut = numOut
	}
}

// WithLatency declares the plugin's algorithmic delay in samples. The vst2
// binding does not expose initial delay, so it has to be declared by the
// caller; 0 by default.
func WithLatency(samples int) Option {
	return func(p *Plugin) {
		p.latency = samples
	}
}

// WithVersion sets the version string persisted with the effect.
func WithVersion(version string) Option {
	return func(p *Plugin) {
		p.version = version
	}
}

// NewPlugin adapts the loaded plugin under the provided persistent id.
func NewPlugin(plugin *vst2.Plugin, id string, options ...Option) *Plugin {
	p := &Plugin{
		plugin:  plugin,
		id:      id,
		version: "0",
		numIn:   2,
		numOut:  2,
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// ID returns the persistent plugin identifier.
func (p *Plugin) ID() string { return p.id }

// Version returns the persisted version string.
func (p *Plugin) Version() string { return p.version }

// MakeSettings returns active settings with no parameters.
func (p *Plugin) MakeSettings() rtfx.Settings {
	return rtfx.Settings{
		Value:  &Settings{},
		Active: true,
	}
}

// CopySettings copies the parameter list in place.
func (p *Plugin) CopySettings(dst *rtfx.Settings, src rtfx.Settings) {
	d := dst.Value.(*Settings)
	s := src.Value.(*Settings)
	d.Params = append(d.Params[:0], s.Params...)
}

// MakeOutputs returns nil: the binding has no metering feedback.
func (p *Plugin) MakeOutputs() rtfx.Outputs { return nil }

// CloneOutputs returns nil.
func (p *Plugin) CloneOutputs(rtfx.Outputs) rtfx.Outputs { return nil }

// AssignOutputs does nothing.
func (p *Plugin) AssignOutputs(dst, src rtfx.Outputs) {}

// MakeInstance returns the processing instance wrapping the plugin. VST2 has
// a single processing entry point per loaded plugin, so all calls share it.
func (p *Plugin) MakeInstance() rtfx.Instance {
	return &instance{adapter: p}
}

// LoadParameter retains one persisted parameter verbatim.
func (p *Plugin) LoadParameter(s *rtfx.Settings, name, value string) error {
	settings := s.Value.(*Settings)
	settings.Params = append(settings.Params, rtfx.Parameter{Name: name, Value: value})
	return nil
}

// StoreParameters lists the retained parameters.
func (p *Plugin) StoreParameters(s rtfx.Settings) []rtfx.Parameter {
	return s.Value.(*Settings).Params
}

type instance struct {
	adapter   *Plugin
	blockSize int

	// preallocated conversion buffers, the audio path must not allocate
	in64    [][]float64
	scratch [][]float64
}

func (i *instance) AudioInCount() int  { return i.adapter.numIn }
func (i *instance) AudioOutCount() int { return i.adapter.numOut }

func (i *instance) BlockSize() int { return i.blockSize }

func (i *instance) SetBlockSize(size int) {
	i.blockSize = size
	i.adapter.plugin.SetBufferSize(size)
	i.in64 = make([][]float64, i.adapter.numIn)
	for c := range i.in64 {
		i.in64[c] = make([]float64, size)
	}
	i.scratch = make([][]float64, i.adapter.numIn)
}

func (i *instance) PreferredBlockSize() int { return 0 }

func (i *instance) RealtimeInitialize(_ *rtfx.Settings, sampleRate float64) bool {
	i.adapter.plugin.SetSampleRate(int(sampleRate))
	i.adapter.plugin.SetSpeakerArrangement(i.adapter.numIn)
	i.adapter.plugin.Resume()
	return true
}

func (i *instance) RealtimeAddProcessor(*rtfx.Settings, rtfx.Outputs, int, float64) bool {
	return true
}

func (i *instance) RealtimeSuspend() bool {
	i.adapter.plugin.Suspend()
	return true
}

func (i *instance) RealtimeResume() bool {
	i.adapter.plugin.Resume()
	return true
}

func (i *instance) RealtimeProcessStart(*rtfx.Settings) bool { return true }

func (i *instance) RealtimeProcess(_ int, _ *rtfx.Settings, in, out [][]float32, frames int) int {
	for c := range i.in64 {
		src := in[c%len(in)]
		for f := 0; f < frames; f++ {
			i.in64[c][f] = float64(src[f])
		}
		i.scratch[c] = i.in64[c][:frames]
	}
	processed := i.adapter.plugin.Process(i.scratch)
	for c := range out {
		if out[c] == nil || c >= len(processed) {
			continue
		}
		for f := 0; f < frames; f++ {
			out[c][f] = float32(processed[c][f])
		}
	}
	return frames
}

func (i *instance) RealtimeProcessEnd(*rtfx.Settings) bool { return true }

func (i *instance) RealtimeFinalize(*rtfx.Settings) bool {
	i.adapter.plugin.Suspend()
	return true
}

func (i *instance) Latency(*rtfx.Settings, float64) int {
	return i.adapter.latency
}
