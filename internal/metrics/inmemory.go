package metrics

import "sync/atomic"

// Snapshot captures current in-memory counters.
type Snapshot struct {
	Registrations         uint64
	RegistrationConflicts uint64
	LoginSuccesses        uint64
	LoginFailures         uint64
	ItemsCreated          uint64
}

// InMemoryRecorder stores counters in memory. It is safe for concurrent use.
type InMemoryRecorder struct {
	registrations         atomic.Uint64
	registrationConflicts atomic.Uint64
	loginSuccesses        atomic.Uint64
	loginFailures         atomic.Uint64
	itemsCreated          atomic.Uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		Registrations:         m.registrations.Load(),
		RegistrationConflicts: m.registrationConflicts.Load(),
		LoginSuccesses:        m.loginSuccesses.Load(),
		LoginFailures:         m.loginFailures.Load(),
		ItemsCreated:          m.itemsCreated.Load(),
	}
}

// IncRegistration increments the successful registration counter.
func (m *InMemoryRecorder) IncRegistration() {
	m.registrations.Add(1)
}

// IncRegistrationConflict increments the duplicate username counter.
func (m *InMemoryRecorder) IncRegistrationConflict() {
	m.registrationConflicts.Add(1)
}

// IncLogin increments the login success or failure counter.
func (m *InMemoryRecorder) IncLogin(success bool) {
	if success {
		m.loginSuccesses.Add(1)
		return
	}
	m.loginFailures.Add(1)
}

// IncItemCreated increments the item created counter.
func (m *InMemoryRecorder) IncItemCreated() {
	m.itemsCreated.Add(1)
}
