package ledger

import (
	"slices"
	"sync"

	"storefront/backend/internal/domain"
)

// Tracker holds the latest reconstructed state for one register. It is fed
// by the store's change notifications and read by admission checks and views.
type Tracker struct {
	mu      sync.RWMutex
	state   domain.RegisterState
	version uint64
}

func NewTracker() *Tracker {
	return &Tracker{state: Reconstruct(nil)}
}

// Refresh recomputes the state from the full event set and returns it.
func (t *Tracker) Refresh(events []domain.CashEvent) domain.RegisterState {
	state := Reconstruct(events)

	t.mu.Lock()
	t.state = state
	t.version++
	t.mu.Unlock()

	return cloneState(state)
}

func (t *Tracker) State() domain.RegisterState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return cloneState(t.state)
}

// Version counts refreshes; views use it to skip re-rendering unchanged state.
func (t *Tracker) Version() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

func cloneState(state domain.RegisterState) domain.RegisterState {
	state.History = slices.Clone(state.History)
	if state.History == nil {
		state.History = []domain.HistoryEntry{}
	}
	state.Warnings = slices.Clone(state.Warnings)
	return state
}
