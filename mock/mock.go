// Package mock provides a scriptable plugin to test rtfx hosting logic.
package mock

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/dudk/rtfx"
)

const (
	defaultID      = "mock"
	defaultVersion = "1.0.0"
)

// Values is the effect-shaped settings payload of the mock plugin.
type Values struct {
	Gain float64
}

// Outputs is the metering payload of the mock plugin.
type Outputs struct {
	Peak float64
}

// Plugin is a mock effect plugin. Zero value is a stereo-in, stereo-out
// pass-through with gain 1; failure flags allow to script every realtime
// hook. Counters are atomic so tests may read them across the role boundary.
type Plugin struct {
	PluginID       string
	PluginVersion  string
	NumIn          int
	NumOut         int
	LatencySamples int
	PreferredBlock int
	NoOutputs      bool

	FailInitialize   bool
	FailAddProcessor bool
	FailProcessStart bool
	FailProcessEnd   bool
	FailSuspend      bool
	FailResume       bool
	FailFinalize     bool

	// CopyCount counts deep copies of the settings payload.
	CopyCount atomic.Int64

	instance *Instance
}

// ID returns the plugin identifier.
func (p *Plugin) ID() string {
	if p.PluginID == "" {
		return defaultID
	}
	return p.PluginID
}

// Version returns the plugin version.
func (p *Plugin) Version() string {
	if p.PluginVersion == "" {
		return defaultVersion
	}
	return p.PluginVersion
}

// MakeSettings returns active settings with unity gain.
func (p *Plugin) MakeSettings() rtfx.Settings {
	return rtfx.Settings{
		Value:  &Values{Gain: 1},
		Active: true,
	}
}

// CopySettings copies the payload and counts the copy.
func (p *Plugin) CopySettings(dst *rtfx.Settings, src rtfx.Settings) {
	*dst.Value.(*Values) = *src.Value.(*Values)
	p.CopyCount.Add(1)
}

// MakeOutputs returns a fresh outputs value, or nil if scripted to have none.
func (p *Plugin) MakeOutputs() rtfx.Outputs {
	if p.NoOutputs {
		return nil
	}
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

// MakeInstance returns a new instance and remembers it for test assertions.
func (p *Plugin) MakeInstance() rtfx.Instance {
	i := &Instance{plugin: p}
	p.instance = i
	return i
}

// LastInstance returns the instance made last.
func (p *Plugin) LastInstance() *Instance {
	return p.instance
}

// LoadParameter applies one persisted parameter.
func (p *Plugin) LoadParameter(s *rtfx.Settings, name, value string) error {
	switch name {
	case "gain":
		gain, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		s.Value.(*Values).Gain = gain
		return nil
	}
	return fmt.Errorf("unknown parameter %v", name)
}

// StoreParameters lists the persisted parameters.
func (p *Plugin) StoreParameters(s rtfx.Settings) []rtfx.Parameter {
	return []rtfx.Parameter{
		{Name: "gain", Value: strconv.FormatFloat(s.Value.(*Values).Gain, 'f', -1, 64)},
	}
}

// Instance is a mock processing instance with call counters.
type Instance struct {
	plugin    *Plugin
	blockSize int
	outputs   *Outputs

	Initialized bool
	Processors  atomic.Int64

	InitializeCount atomic.Int64
	StartCount      atomic.Int64
	ProcessCount    atomic.Int64
	EndCount        atomic.Int64
	SuspendCount    atomic.Int64
	ResumeCount     atomic.Int64
	FinalizeCount   atomic.Int64
	LatencyCount    atomic.Int64
}

// AudioInCount returns the scripted input arity, 2 by default.
func (i *Instance) AudioInCount() int {
	if i.plugin.NumIn == 0 {
		return 2
	}
	return i.plugin.NumIn
}

// AudioOutCount returns the scripted output arity, 2 by default.
func (i *Instance) AudioOutCount() int {
	if i.plugin.NumOut == 0 {
		return 2
	}
	return i.plugin.NumOut
}

// BlockSize returns the current block size.
func (i *Instance) BlockSize() int {
	return i.blockSize
}

// SetBlockSize sets the block size.
func (i *Instance) SetBlockSize(blockSize int) {
	i.blockSize = blockSize
}

// PreferredBlockSize returns the scripted preference.
func (i *Instance) PreferredBlockSize() int {
	return i.plugin.PreferredBlock
}

// RealtimeInitialize starts a processing scope.
func (i *Instance) RealtimeInitialize(*rtfx.Settings, float64) bool {
	i.InitializeCount.Add(1)
	if i.plugin.FailInitialize {
		return false
	}
	i.Initialized = true
	return true
}

// RealtimeAddProcessor adds one processor.
func (i *Instance) RealtimeAddProcessor(_ *rtfx.Settings, outputs rtfx.Outputs, _ int, _ float64) bool {
	if i.plugin.FailAddProcessor {
		return false
	}
	i.outputs, _ = outputs.(*Outputs)
	i.Processors.Add(1)
	return true
}

// RealtimeSuspend suspends processing.
func (i *Instance) RealtimeSuspend() bool {
	i.SuspendCount.Add(1)
	return !i.plugin.FailSuspend
}

// RealtimeResume resumes processing.
func (i *Instance) RealtimeResume() bool {
	i.ResumeCount.Add(1)
	return !i.plugin.FailResume
}

// RealtimeProcessStart begins a block.
func (i *Instance) RealtimeProcessStart(*rtfx.Settings) bool {
	i.StartCount.Add(1)
	return !i.plugin.FailProcessStart
}

// RealtimeProcess multiplies input by the settings gain and reports the peak
// through outputs.
func (i *Instance) RealtimeProcess(_ int, s *rtfx.Settings, in, out [][]float32, frames int) int {
	i.ProcessCount.Add(1)
	gain := float32(s.Value.(*Values).Gain)
	for c := range out {
		if out[c] == nil {
			continue
		}
		for f := 0; f < frames; f++ {
			v := in[c%len(in)][f] * gain
			out[c][f] = v
			if i.outputs != nil && float64(v) > i.outputs.Peak {
				i.outputs.Peak = float64(v)
			}
		}
	}
	return frames
}

// RealtimeProcessEnd finishes a block.
func (i *Instance) RealtimeProcessEnd(*rtfx.Settings) bool {
	i.EndCount.Add(1)
	return !i.plugin.FailProcessEnd
}

// RealtimeFinalize ends the processing scope.
func (i *Instance) RealtimeFinalize(*rtfx.Settings) bool {
	i.FinalizeCount.Add(1)
	i.Initialized = false
	return !i.plugin.FailFinalize
}

// Latency returns the scripted algorithmic delay and counts the query.
func (i *Instance) Latency(*rtfx.Settings, float64) int {
	i.LatencyCount.Add(1)
	return i.plugin.LatencySamples
}
