package rtfx

import (
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/dudk/rtfx/log"
)

// defaultBlockSize is used when an instance declares no preference.
const defaultBlockSize = 512

// group records the processors allocated for one track: the index of the
// first one and the sample rate at allocation time, needed later to compute
// latency.
type group struct {
	first      int
	sampleRate float64
}

// State owns one effect bound to a plugin and governs its realtime
// lifecycle: Initialize, AddTrack per track, then once per block
// ProcessStart, Process per track, ProcessEnd, and Finalize at the end of
// the processing scope.
//
// Initialize, AddTrack, Finalize, Access and the XML methods belong to the
// control role. ProcessStart, Process and ProcessEnd belong to the worker
// role and never allocate, block or fail with anything but a boolean.
type State struct {
	uid       string
	id        string
	registry  *Registry
	plugin    Plugin
	logger    *logrus.Logger
	blockSize int

	// control-side settings, the values persisted and edited
	mainSettings SettingsAndCounter
	// worker-side working copy, updated from the exchange once per block
	workerSettings SettingsAndCounter
	// outputs held by the worker, merged back to movedOutputs via the exchange
	outputs      Outputs
	movedOutputs Outputs

	// assigned once by the control role, read by the worker role
	access atomic.Pointer[accessState]

	instance    Instance
	initialized bool
	lastActive  bool

	currentProcessor int
	groups           map[string]group
	latency          *int

	// scratch channel pointers for Process, sized to the instance arity at
	// initialization so the audio path never allocates
	scratchIn  [][]float32
	scratchOut [][]float32
}

// Option configures a State.
type Option func(*State)

// WithLogger sets the logger. If this option is not provided, the package
// logger is used.
func WithLogger(l *logrus.Logger) Option {
	return func(s *State) {
		s.logger = l
	}
}

// WithBlockSize sets the block size used when the instance declares no
// preference of its own, 512 if this option is not provided.
func WithBlockSize(size int) Option {
	return func(s *State) {
		s.blockSize = size
	}
}

// New creates a state bound to the plugin registered under id. When no such
// plugin exists the state is inert: every operation degrades to a
// pass-through no-op, only the identifier and activation flag survive.
func New(registry *Registry, id string, options ...Option) *State {
	s := &State{
		uid:      newUID(),
		registry: registry,
		logger:   log.Default(),
		groups:   make(map[string]group),
	}
	for _, option := range options {
		option(s)
	}
	s.bind(id)
	return s
}

// ID returns the bound plugin identifier.
func (s *State) ID() string {
	return s.id
}

// String returns state description with its uid.
func (s *State) String() string {
	if s.id == "" {
		return s.uid
	}
	return fmt.Sprintf("%v %v", s.id, s.uid)
}

// bind resolves the plugin once and builds default settings, preserving the
// activation flag which may have been set before binding.
func (s *State) bind(id string) {
	if s.plugin != nil || id == "" {
		return
	}
	s.id = id
	p, ok := s.registry.Lookup(id)
	if !ok {
		s.logger.Warnf("%v: no plugin for id, state is pass-through", s)
		return
	}
	wasActive := s.mainSettings.Settings.Active
	s.mainSettings.Counter = 0
	s.mainSettings.Settings = p.MakeSettings()
	s.mainSettings.Settings.Active = wasActive
	s.outputs = p.MakeOutputs()
	s.movedOutputs = p.MakeOutputs()
	s.plugin = p
}

// cloneSettings returns an independent deep copy of settings.
func (s *State) cloneSettings(from Settings) Settings {
	clone := s.plugin.MakeSettings()
	s.plugin.CopySettings(&clone, from)
	clone.Active = from.Active
	return clone
}

// ensureInstance recycles the cached instance or constructs one, and on the
// first use of a processing scope copies control settings into the worker's
// working copy and initializes the instance.
func (s *State) ensureInstance(sampleRate float64) Instance {
	if s.plugin == nil {
		return nil
	}
	if s.initialized {
		return s.instance
	}

	// the worker is not running yet, copying on the control role is safe
	s.workerSettings.Counter = s.mainSettings.Counter
	s.workerSettings.Settings = s.cloneSettings(s.mainSettings.Settings)
	s.lastActive = s.IsActive()

	if s.instance == nil {
		s.instance = s.plugin.MakeInstance()
	}
	if s.instance == nil {
		return nil
	}

	blockSize := defaultBlockSize
	if s.blockSize > 0 {
		blockSize = s.blockSize
	}
	if preferred := s.instance.PreferredBlockSize(); preferred > 0 {
		blockSize = preferred
	}
	s.instance.SetBlockSize(blockSize)
	s.scratchIn = make([][]float32, s.instance.AudioInCount())
	s.scratchOut = make([][]float32, s.instance.AudioOutCount())

	if !s.instance.RealtimeInitialize(&s.mainSettings.Settings, sampleRate) {
		s.logger.Warnf("%v: realtime initialize failed", s)
		return nil
	}
	s.initialized = true
	return s.instance
}

// Initialize starts a new processing scope: per-track bookkeeping and the
// latency estimate are reset and the instance is initialized with the given
// sample rate. It returns nil when the state has no plugin or the instance
// could not be initialized; the caller must not proceed to AddTrack then.
func (s *State) Initialize(sampleRate float64) Instance {
	if s.plugin == nil {
		return nil
	}
	s.currentProcessor = 0
	clear(s.groups)
	s.latency = nil
	instance := s.ensureInstance(sampleRate)
	if instance != nil {
		s.logger.Debugf("%v: initialized at %v Hz", s, sampleRate)
	}
	return instance
}

// AddTrack allocates processors for one track of the given channel count.
// Requires a previous successful Initialize. Returns nil when no processor
// could be added; no partial allocation is retained in that case.
func (s *State) AddTrack(track string, chans int, sampleRate float64) Instance {
	instance := s.ensureInstance(sampleRate)
	if instance == nil {
		return nil
	}
	first := s.currentProcessor
	numIn := instance.AudioInCount()
	numOut := instance.AudioOutCount()
	allocateChannels(chans, numIn, numOut, func(int, int) bool {
		if instance.RealtimeAddProcessor(
			&s.workerSettings.Settings, s.outputs, numIn, sampleRate,
		) {
			s.currentProcessor++
			return true
		}
		return false
	})
	if s.currentProcessor > first {
		// remember the sample rate, latency is computed with it later
		s.groups[track] = group{first: first, sampleRate: sampleRate}
		s.logger.Debugf("%v: track %v: %v processors", s, track, s.currentProcessor-first)
		return instance
	}
	s.currentProcessor = first
	return nil
}

// ProcessStart begins one processing block on the worker role. It drains the
// control-to-worker exchange, fires the suspend or resume hook when the
// computed activity changed since the last block, and reports whether the
// instance is usable and active for this block. When it returns false,
// Process must still run for every track, in pass-through mode.
//
// The activity answer is computed here once and holds for the whole block.
func (s *State) ProcessStart(running bool) bool {
	if access := s.access.Load(); access != nil {
		access.workerRead()
	}

	active := s.IsActive() && running
	if active != s.lastActive {
		if s.instance != nil {
			var ok bool
			if active {
				ok = s.instance.RealtimeResume()
			} else {
				ok = s.instance.RealtimeSuspend()
			}
			if !ok {
				// skip this block, the transition is attempted again next one
				return false
			}
		}
		s.lastActive = active
	}

	if s.instance == nil || !active {
		return false
	}
	return s.instance.RealtimeProcessStart(&s.workerSettings.Settings)
}

// Process runs one block for one track. in and out hold one slice per track
// channel, each at least frames long. The return value is the number of
// leading frames of this block still covered by the effect's algorithmic
// delay: they drain the internal buffer and should be discarded by the
// caller, never reordered.
//
// When the state is unusable or inactive for this block the input is copied
// to the output verbatim and 0 is returned.
func (s *State) Process(track string, chans int, in, out [][]float32, frames int) int {
	if s.plugin == nil || s.instance == nil || !s.lastActive {
		for i := 0; i < chans; i++ {
			copy(out[i][:frames], in[i][:frames])
		}
		return 0
	}
	numIn := s.instance.AudioInCount()
	numOut := s.instance.AudioOutCount()
	clientIn := s.scratchIn[:numIn]
	clientOut := s.scratchOut[:numOut]
	valid := 0
	g := s.groups[track]
	processor := g.first
	// outer loop over processors, in lock-step with AddTrack
	allocateChannels(chans, numIn, numOut, func(indx, ondx int) bool {
		// point at the input channels, reusing channels from the beginning
		// when the processor wants more than remain
		copied := min(chans-indx, numIn)
		copy(clientIn, in[indx:indx+copied])
		for copied < numIn {
			more := min(chans, numIn-copied)
			copy(clientIn[copied:], in[:more])
			copied += more
		}

		copied = min(chans-ondx, numOut)
		copy(clientOut, out[ondx:ondx+copied])
		for i := copied; i < numOut; i++ {
			clientOut[i] = nil
		}

		// inner loop over chunks of at most one block size
		blockSize := s.instance.BlockSize()
		for block := 0; block < frames; block += blockSize {
			cnt := min(frames-block, blockSize)
			processed := s.instance.RealtimeProcess(
				processor, &s.workerSettings.Settings, clientIn, clientOut, cnt,
			)
			if s.latency == nil {
				// found once per initialization scope, after one block
				latency := s.instance.Latency(&s.workerSettings.Settings, g.sampleRate)
				s.latency = &latency
			}
			for i := range clientIn {
				if clientIn[i] != nil {
					clientIn[i] = clientIn[i][cnt:]
				}
			}
			for i := range clientOut {
				if clientOut[i] != nil {
					clientOut[i] = clientOut[i][cnt:]
				}
			}
			if ondx == 0 {
				// sample accounting on the first processor only, the others
				// produce the same counts
				valid += processed
				discard := min(valid, *s.latency)
				valid -= discard
				*s.latency -= discard
			}
		}
		processor++
		return true
	})
	return frames - valid
}

// ProcessEnd finishes one processing block. The end-of-block hook runs only
// when the instance is usable and active, but the worker-to-control exchange
// is always written so control-side readers make progress regardless.
func (s *State) ProcessEnd() bool {
	ok := s.instance != nil && s.IsActive() && s.lastActive &&
		s.instance.RealtimeProcessEnd(&s.workerSettings.Settings)

	if access := s.access.Load(); access != nil {
		access.workerWrite()
	}
	return ok
}

// Finalize ends the processing scope on the control role. Worker-observed
// settings become the control settings so edits confirmed during playback
// are not lost, bookkeeping is reset and the realtime finalize hook runs.
// The reset happens even when the hook fails, Finalize commonly runs during
// teardown and must tolerate faults.
func (s *State) Finalize() bool {
	if s.workerSettings.Settings.HasValue() {
		s.mainSettings = s.workerSettings
	}

	clear(s.groups)
	s.currentProcessor = 0

	ok := false
	if s.instance != nil && s.initialized {
		ok = s.instance.RealtimeFinalize(&s.mainSettings.Settings)
	}
	s.latency = nil
	s.initialized = false
	s.logger.Debugf("%v: finalized", s)
	return ok
}

// Outputs returns the control-held copy of the effect's reported outputs,
// as last merged by a control-side read. Nil when the effect has none.
func (s *State) Outputs() Outputs {
	return s.movedOutputs
}

// IsEnabled reports the activation flag of the control-side settings.
func (s *State) IsEnabled() bool {
	return s.mainSettings.Settings.Active
}

// IsActive reports the activation flag of the worker's working settings.
// Its answer may change only in ProcessStart, once per block.
func (s *State) IsActive() bool {
	return s.workerSettings.Settings.Active
}

// SetActive flips the activation flag through the exchange and waits for the
// worker to confirm. Control role only.
func (s *State) SetActive(active bool) {
	access := s.Access()
	settings := access.Get()
	if !settings.HasValue() {
		// inert state, keep the flag for persistence
		s.mainSettings.Settings.Active = active
		return
	}
	settings.Active = active
	access.Set(settings)
	access.Flush()
}
