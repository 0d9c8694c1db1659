package ledger

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/backend/internal/domain"
)

var base = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

type eventOpt func(*domain.CashEvent)

func cancelled() eventOpt {
	return func(e *domain.CashEvent) { e.IsCancelled = true }
}

func forSale(id string) eventOpt {
	return func(e *domain.CashEvent) { e.SaleID = id }
}

// seq builds events one minute apart in the given order.
func seq(events ...domain.CashEvent) []domain.CashEvent {
	out := make([]domain.CashEvent, len(events))
	for i, event := range events {
		event.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if event.ID == "" {
			event.ID = string(event.EntryType) + "-" + time.Duration(i).String()
		}
		out[i] = event
	}
	return out
}

func ev(entryType domain.EntryType, cents int64, opts ...eventOpt) domain.CashEvent {
	event := domain.CashEvent{EntryType: entryType, AmountCents: cents}
	for _, opt := range opts {
		opt(&event)
	}
	return event
}

func TestReconstructEmpty(t *testing.T) {
	state := Reconstruct(nil)
	assert.False(t, state.IsOpen)
	assert.Zero(t, state.BalanceCents)
	require.NotNil(t, state.History)
	assert.Empty(t, state.History)
	assert.Empty(t, state.Warnings)

	assert.Equal(t, state, Reconstruct([]domain.CashEvent{}))
}

func TestReconstructTransitions(t *testing.T) {
	tests := []struct {
		name    string
		events  []domain.CashEvent
		open    bool
		balance int64
	}{
		{"open", seq(ev(domain.EntryOpen, 10000)), true, 10000},
		{"open then entry", seq(ev(domain.EntryOpen, 10000), ev(domain.EntryIn, 5000)), true, 15000},
		{"open entry exit", seq(ev(domain.EntryOpen, 10000), ev(domain.EntryIn, 5000), ev(domain.EntryOut, 3000)), true, 12000},
		{"cancelled entry ignored", seq(ev(domain.EntryOpen, 10000), ev(domain.EntryIn, 5000, cancelled(), forSale("s1"))), true, 10000},
		{"entry after close ignored", seq(ev(domain.EntryOpen, 10000), ev(domain.EntryClose, 10000), ev(domain.EntryIn, 5000)), false, 10000},
		{"entry before open ignored", seq(ev(domain.EntryIn, 5000)), false, 0},
		{"exit before open ignored", seq(ev(domain.EntryOut, 5000)), false, 0},
		{"cancelled exit ignored", seq(ev(domain.EntryOpen, 10000), ev(domain.EntryOut, 2500, cancelled())), true, 10000},
		{"reopen resets float", seq(ev(domain.EntryOpen, 10000), ev(domain.EntryIn, 5000), ev(domain.EntryOpen, 2000)), true, 2000},
		{"close keeps balance even with different snapshot", seq(ev(domain.EntryOpen, 10000), ev(domain.EntryClose, 1)), false, 10000},
		{"new session after close", seq(ev(domain.EntryOpen, 10000), ev(domain.EntryClose, 10000), ev(domain.EntryOpen, 500), ev(domain.EntryIn, 100)), true, 600},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			state := Reconstruct(tc.events)
			assert.Equal(t, tc.open, state.IsOpen)
			assert.Equal(t, tc.balance, state.BalanceCents)
			assert.Len(t, state.History, len(tc.events), "every event is recorded")
			assert.Empty(t, state.Warnings)
		})
	}
}

func TestCancelledEntryStaysInHistory(t *testing.T) {
	state := Reconstruct(seq(ev(domain.EntryOpen, 10000), ev(domain.EntryIn, 5000, cancelled(), forSale("sale-1"))))

	require.Len(t, state.History, 2)
	entry := state.History[1]
	assert.Equal(t, domain.EntryIn, entry.Type)
	assert.True(t, entry.IsCancelled)
	assert.False(t, entry.Applied)
	assert.Equal(t, "sale-1", entry.SaleID)
	assert.Equal(t, int64(5000), entry.AmountCents)
	assert.Equal(t, noteCancelled, entry.Note)
}

func TestEntryWhileClosedIsAnnotated(t *testing.T) {
	state := Reconstruct(seq(ev(domain.EntryIn, 5000)))
	require.Len(t, state.History, 1)
	assert.False(t, state.History[0].Applied)
	assert.Equal(t, noteRegisterClosed, state.History[0].Note)
}

func TestReconstructIsIdempotent(t *testing.T) {
	events := seq(
		ev(domain.EntryOpen, 10000),
		ev(domain.EntryIn, 2599, forSale("s1")),
		ev(domain.EntryOut, 1200),
		ev(domain.EntryIn, 800, cancelled(), forSale("s2")),
		ev("refund", 300),
		ev(domain.EntryClose, 11399),
	)

	first := Reconstruct(events)
	second := Reconstruct(events)
	assert.Equal(t, first, second)
	assert.Equal(t, first, Reconstruct(events))
}

func TestReconstructDoesNotMutateInput(t *testing.T) {
	events := seq(ev(domain.EntryOpen, 100), ev(domain.EntryIn, 50))
	events[0], events[1] = events[1], events[0]
	snapshot := append([]domain.CashEvent(nil), events...)

	Reconstruct(events)
	assert.Equal(t, snapshot, events)
}

func TestReconstructOrderIndependent(t *testing.T) {
	events := seq(
		ev(domain.EntryOpen, 10000),
		ev(domain.EntryIn, 5000),
		ev(domain.EntryOut, 3000),
		ev(domain.EntryClose, 12000),
		ev(domain.EntryOpen, 4000),
		ev(domain.EntryIn, 700, forSale("s9")),
	)
	want := Reconstruct(events)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 25; i++ {
		shuffled := append([]domain.CashEvent(nil), events...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, Reconstruct(shuffled))
	}
	assert.True(t, want.IsOpen)
	assert.Equal(t, int64(4700), want.BalanceCents)
}

func TestTiesKeepInsertionOrder(t *testing.T) {
	// Same timestamp: close first, then open, keeps the register open.
	events := []domain.CashEvent{
		{ID: "a", EntryType: domain.EntryClose, CreatedAt: base},
		{ID: "b", EntryType: domain.EntryOpen, AmountCents: 900, CreatedAt: base},
	}
	state := Reconstruct(events)
	assert.True(t, state.IsOpen)
	assert.Equal(t, []string{"a", "b"}, []string{state.History[0].ID, state.History[1].ID})

	events[0], events[1] = events[1], events[0]
	assert.False(t, Reconstruct(events).IsOpen)
}

func TestMalformedEventsWarnButDoNotAbort(t *testing.T) {
	events := seq(
		ev(domain.EntryOpen, 10000),
		ev("", 999),
		ev("refund", 500),
		ev(domain.EntryIn, -200),
		ev(domain.EntryIn, 100),
	)
	state := Reconstruct(events)

	assert.True(t, state.IsOpen)
	assert.Equal(t, int64(10100), state.BalanceCents)
	require.Len(t, state.History, 5)
	assert.Equal(t, domain.EntryType("refund"), state.History[2].Type, "raw type is kept for audit")
	assert.Equal(t, noteMissingType, state.History[1].Note)
	assert.Equal(t, noteUnknownType, state.History[2].Note)
	assert.Equal(t, noteNegativeAmount, state.History[3].Note)

	require.Len(t, state.Warnings, 3)
	for _, warning := range state.Warnings {
		assert.Equal(t, WarningDataIntegrity, warning.Kind)
		assert.NotEmpty(t, warning.EventID)
	}
}

func TestDescriptionPlaceholder(t *testing.T) {
	state := Reconstruct(seq(ev(domain.EntryOpen, 1), domain.CashEvent{EntryType: domain.EntryIn, AmountCents: 1, Description: "troco"}))
	assert.Equal(t, domain.DefaultDescription, state.History[0].Description)
	assert.Equal(t, "troco", state.History[1].Description)
}

func TestFolderMatchesReconstruct(t *testing.T) {
	events := seq(
		ev(domain.EntryOpen, 10000),
		ev(domain.EntryIn, 5000),
		ev(domain.EntryOut, 3000, cancelled()),
		ev(domain.EntryClose, 15000),
		ev(domain.EntryIn, 10),
	)

	folder := NewFolder()
	for _, event := range events {
		folder.Apply(event)
	}
	assert.Equal(t, Reconstruct(events), folder.State())
}

func TestLowestBalanceTracksEveryStep(t *testing.T) {
	events := seq(
		ev(domain.EntryOpen, 1000),
		ev(domain.EntryOut, 1500),
		ev(domain.EntryIn, 2000),
		ev(domain.EntryClose, 1500),
		ev(domain.EntryOpen, 100),
	)
	assert.Equal(t, int64(-500), LowestBalance(events))
	assert.Equal(t, int64(100), Reconstruct(events).BalanceCents)

	assert.Zero(t, LowestBalance(nil))
	assert.Zero(t, LowestBalance(seq(ev(domain.EntryOpen, 300), ev(domain.EntryOut, 300))))
}
