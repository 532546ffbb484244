package rtfx

import (
	"time"
	"weak"

	"github.com/dudk/rtfx/mailbox"
)

// flushPollInterval is how long Flush sleeps between attempts to observe the
// worker's echo. The worker is driven by an external realtime scheduler, so
// polling is the only way to wait on it without a primitive a blocked
// control thread could hold.
const flushPollInterval = 10 * time.Millisecond

// toControlSlot is what the worker reports back after a block: the revision
// it has observed and its current outputs.
type toControlSlot struct {
	counter uint64
	outputs Outputs
}

// accessState mediates two-way communication of settings changes between the
// control role and the worker role of one state. It owns the two exchanges
// and the control-side last-known settings.
//
// Created once in the lifetime of a state, on the first control-side access;
// lastSettings always has a value from then on.
type accessState struct {
	plugin Plugin
	state  *State

	toWorker  mailbox.Exchange[SettingsAndCounter]
	toControl mailbox.Exchange[toControlSlot]

	// counter last observed from the worker, owned by the control role
	counter uint64
	// settings as last set by the control role
	lastSettings SettingsAndCounter
}

func newAccessState(plugin Plugin, state *State) *accessState {
	a := &accessState{plugin: plugin, state: state}
	a.initialize()
	return a
}

// initialize resets the revision counter and seeds both exchanges with two
// values each, so the first read on either side is defined before any write.
func (a *accessState) initialize() {
	s := a.state
	s.mainSettings.Counter = 0
	a.lastSettings = SettingsAndCounter{
		Settings: s.cloneSettings(s.mainSettings.Settings),
	}
	for i := 0; i < 2; i++ {
		seed := SettingsAndCounter{Settings: s.cloneSettings(s.mainSettings.Settings)}
		a.toWorker.Write(func(slot *SettingsAndCounter) { *slot = seed })
		var outputs Outputs
		if s.movedOutputs != nil {
			outputs = a.plugin.CloneOutputs(s.movedOutputs)
		}
		a.toControl.Write(func(slot *toControlSlot) {
			*slot = toControlSlot{outputs: outputs}
		})
	}
}

// mainRead pulls the worker-to-control slot, merging outputs into the
// control-held copy and publishing the counter the worker has observed.
func (a *accessState) mainRead() {
	a.toControl.Read(func(slot *toControlSlot) {
		if slot.outputs != nil && a.state.movedOutputs != nil {
			a.plugin.AssignOutputs(a.state.movedOutputs, slot.outputs)
		}
		a.counter = slot.counter
	})
}

// mainWrite pushes a new control-to-worker slot. The settings value moves
// into the exchange and must not be used by the caller afterwards.
func (a *accessState) mainWrite(s SettingsAndCounter) {
	a.toWorker.Write(func(slot *SettingsAndCounter) {
		*slot = s
	})
}

// workerRead pulls the control-to-worker slot into the worker's working
// settings. When the counter already matches this is a cheap no-op, no deep
// copy happens; otherwise the plugin copies the payload and the host copies
// the activation flag verbatim. Never allocates.
func (a *accessState) workerRead() {
	a.toWorker.Read(func(slot *SettingsAndCounter) {
		working := &a.state.workerSettings
		if slot.Counter == working.Counter {
			// already observed, skip the deep copy
			return
		}
		working.Counter = slot.Counter
		a.plugin.CopySettings(&working.Settings, slot.Settings)
		working.Settings.Active = slot.Settings.Active
	})
}

// workerWrite pushes the worker's current counter and outputs to the
// control side. Never allocates: outputs contents are assigned into the
// slot's pre-seeded copy.
func (a *accessState) workerWrite() {
	a.toControl.Write(func(slot *toControlSlot) {
		slot.counter = a.state.workerSettings.Counter
		if slot.outputs != nil && a.state.outputs != nil {
			a.plugin.AssignOutputs(slot.outputs, a.state.outputs)
		}
	})
}

// flushAttempt tries once to detect that the worker has echoed the last
// written revision.
func (a *accessState) flushAttempt() bool {
	a.mainRead()
	return a.counter == a.lastSettings.Counter
}

// Access is the control role's handle to a state's settings. It holds only a
// weak reference to the state, so a handle kept by a control surface after
// the state is torn down degrades to a no-op instead of crashing. Handles
// are cheap, hold no settings of their own and may be created at will.
type Access struct {
	state weak.Pointer[State]
}

// Access returns a control-side handle to the state's settings, creating the
// inter-role exchange on first use. For an inert state the handle is dead on
// arrival and all its operations are no-ops.
//
// Control role only: the exchange is assigned here, once in the lifetime of
// the state.
func (s *State) Access() *Access {
	if s.plugin == nil || !s.mainSettings.Settings.HasValue() {
		return &Access{}
	}
	if s.access.Load() == nil {
		s.access.Store(newAccessState(s.plugin, s))
	}
	return &Access{state: weak.Make(s)}
}

// Get returns the last-known settings. If the worker is running, one read
// attempt picks up its progress opportunistically; Get never waits.
func (a *Access) Get() Settings {
	state := a.state.Value()
	if state == nil {
		// the handle outlived the state
		return Settings{}
	}
	access := state.access.Load()
	if access == nil {
		return Settings{}
	}
	if state.initialized {
		// try once, ignore the result
		access.flushAttempt()
	}
	return access.lastSettings.Settings
}

// Set moves new settings into the last-known copy, stamps them with the next
// revision and pushes an independent copy through the exchange. Settings
// without a payload are ignored to protect the exchange's invariant.
func (a *Access) Set(settings Settings) {
	if !settings.HasValue() {
		return
	}
	state := a.state.Value()
	if state == nil {
		return
	}
	access := state.access.Load()
	if access == nil {
		return
	}
	access.lastSettings.Settings = settings
	access.lastSettings.Counter++
	access.mainWrite(SettingsAndCounter{
		Settings: state.cloneSettings(settings),
		Counter:  access.lastSettings.Counter,
	})
}

// Flush waits until the worker has observed the last Set and then publishes
// the confirmed settings as the state's control settings. When the state was
// never initialized there is nothing to wait for and settings are published
// immediately.
//
// Flush polls with short sleeps and has no built-in timeout; it must only be
// called from the control role, never from the worker's per-block path.
func (a *Access) Flush() {
	state := a.state.Value()
	if state == nil {
		return
	}
	access := state.access.Load()
	if access == nil {
		return
	}
	if state.initialized {
		state.logger.Debugf("%v: flush waiting for revision %v", state, access.lastSettings.Counter)
		for !access.flushAttempt() {
			// wait for progress of the audio thread
			time.Sleep(flushPollInterval)
		}
	}
	state.mainSettings = access.lastSettings
}

// IsSameAs reports whether both handles refer to the same state. Identity,
// not value equality: it is used to collapse duplicate control surfaces
// aliasing one effect.
func (a *Access) IsSameAs(other *Access) bool {
	return other != nil && a.state == other.state
}
