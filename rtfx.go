// Package rtfx hosts audio effects in a realtime context. It lets a
// non-realtime control path edit effect settings while the audio callback is
// processing, without the callback blocking, allocating or observing a
// half-written value. It also routes an arbitrary number of track channels
// across processors with fixed channel arity and keeps processed-sample
// counts aligned with the effect's algorithmic delay.
//
// Two roles communicate per effect State: the control role edits settings
// through an Access handle, the worker role drives the per-block lifecycle
// ProcessStart, Process, ProcessEnd. The only synchronization primitive
// between them is the mailbox exchange, no locks are taken on the audio path.
package rtfx

import (
	"github.com/rs/xid"
)

// Settings holds the effect-shaped opaque payload and the activation flag
// shared by all effects. Settings cross the role boundary by value: the
// payload is deep-copied with the plugin's CopySettings, Active is copied
// verbatim by the host.
type Settings struct {
	Value  any
	Active bool
}

// HasValue reports whether settings carry a payload. Settings without a
// payload never enter the exchange.
func (s Settings) HasValue() bool {
	return s.Value != nil
}

// Outputs is an opaque value for metering data an effect reports back to the
// control side. Plugins without visual feedback return nil from MakeOutputs.
type Outputs any

// SettingsAndCounter stamps settings with the revision assigned by the
// control side on every Set. The counter is the single source of truth for
// whether the worker has observed an edit.
type SettingsAndCounter struct {
	Settings Settings
	Counter  uint64
}

// Parameter is a persisted name-value pair of effect settings.
type Parameter struct {
	Name  string
	Value string
}

// Plugin is the capability set an effect exposes to the host. All methods
// except the Instance's realtime hooks are called from the control role.
type Plugin interface {
	// ID returns the persistent plugin identifier.
	ID() string
	// Version returns the plugin version string.
	Version() string

	// MakeSettings constructs default settings with a payload.
	MakeSettings() Settings
	// CopySettings copies the payload of src into dst without allocating,
	// preserving sub-fields unknown to the host verbatim. dst is always a
	// value previously produced by MakeSettings or CopySettings.
	CopySettings(dst *Settings, src Settings)
	// MakeOutputs constructs an outputs value, or nil if the effect has none.
	MakeOutputs() Outputs
	// CloneOutputs returns an independent copy of outputs.
	CloneOutputs(Outputs) Outputs
	// AssignOutputs copies the contents of src into dst in place.
	AssignOutputs(dst, src Outputs)

	// MakeInstance constructs a processing instance.
	MakeInstance() Instance

	// LoadParameter applies one persisted parameter to settings.
	LoadParameter(s *Settings, name, value string) error
	// StoreParameters lists the persisted parameters of settings.
	StoreParameters(s Settings) []Parameter
}

// Instance is one processing instance of a plugin. The Realtime methods
// follow the worker role's constraints: no allocation, no blocking, failures
// reported as booleans.
type Instance interface {
	// AudioInCount returns the fixed number of input channels per processor.
	AudioInCount() int
	// AudioOutCount returns the fixed number of output channels per processor.
	AudioOutCount() int
	// BlockSize returns the current maximum frames per process call.
	BlockSize() int
	// SetBlockSize sets the maximum frames per process call.
	SetBlockSize(int)
	// PreferredBlockSize returns the instance's preferred block size, or 0
	// when it has no preference.
	PreferredBlockSize() int

	RealtimeInitialize(s *Settings, sampleRate float64) bool
	RealtimeAddProcessor(s *Settings, outputs Outputs, numIn int, sampleRate float64) bool
	RealtimeSuspend() bool
	RealtimeResume() bool
	RealtimeProcessStart(s *Settings) bool
	// RealtimeProcess processes up to BlockSize frames on the identified
	// processor and returns the number of frames produced.
	RealtimeProcess(processor int, s *Settings, in, out [][]float32, frames int) int
	RealtimeProcessEnd(s *Settings) bool
	RealtimeFinalize(s *Settings) bool

	// Latency returns the algorithmic delay in samples. It is queried once
	// per initialization scope, after the first processed block.
	Latency(s *Settings, sampleRate float64) int
}

// newUID returns new unique id value.
func newUID() string {
	return xid.New().String()
}
