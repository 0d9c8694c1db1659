// Package ledger rebuilds the cash drawer state from its append-only event
// log. Nothing here performs I/O: callers hand in the full event set and get
// back the register state plus any data-integrity warnings to log.
package ledger

import (
	"fmt"
	"slices"
	"strings"

	"storefront/backend/internal/domain"
)

const WarningDataIntegrity = "data_integrity"

const (
	noteRegisterClosed = "register closed"
	noteCancelled      = "cancelled"
	noteUnknownType    = "unknown entry type"
	noteMissingType    = "missing entry type"
	noteNegativeAmount = "negative amount"
)

// Folder applies events one at a time. Reconstruct is a stable sort followed
// by Apply on every event, so an incremental consumer that feeds events in
// created_at order ends in the same state as a full recompute.
type Folder struct {
	isOpen   bool
	balance  int64
	history  []domain.HistoryEntry
	warnings []domain.Warning
}

func NewFolder() *Folder {
	return &Folder{history: make([]domain.HistoryEntry, 0, 32)}
}

func (f *Folder) Apply(event domain.CashEvent) domain.HistoryEntry {
	entry := domain.HistoryEntry{
		ID:          event.ID,
		Type:        event.EntryType,
		AmountCents: event.AmountCents,
		Description: describe(event.Description),
		SaleID:      event.SaleID,
		IsCancelled: event.IsCancelled,
		CreatedAt:   event.CreatedAt,
	}

	switch {
	case event.EntryType == "":
		entry.Note = noteMissingType
		f.warn(event.ID, "cash event has no entry type")
	case !event.EntryType.Valid():
		entry.Note = noteUnknownType
		f.warn(event.ID, fmt.Sprintf("unknown cash event type %q", event.EntryType))
	case event.AmountCents < 0:
		entry.Note = noteNegativeAmount
		f.warn(event.ID, fmt.Sprintf("cash event has negative amount %d", event.AmountCents))
	default:
		f.transition(event, &entry)
	}

	f.history = append(f.history, entry)
	return entry
}

func (f *Folder) transition(event domain.CashEvent, entry *domain.HistoryEntry) {
	switch event.EntryType {
	case domain.EntryOpen:
		// Opening resets the float to the counted amount, even on re-open.
		f.isOpen = true
		f.balance = event.AmountCents
		entry.Applied = true
	case domain.EntryIn, domain.EntryOut:
		if !f.isOpen {
			entry.Note = noteRegisterClosed
			return
		}
		if event.IsCancelled {
			entry.Note = noteCancelled
			return
		}
		if event.EntryType == domain.EntryIn {
			f.balance += event.AmountCents
		} else {
			f.balance -= event.AmountCents
		}
		entry.Applied = true
	case domain.EntryClose:
		// The close amount is a receipt of the counted balance, never arithmetic.
		f.isOpen = false
		entry.Applied = true
	}
}

func (f *Folder) warn(eventID string, message string) {
	f.warnings = append(f.warnings, domain.Warning{
		EventID: eventID,
		Kind:    WarningDataIntegrity,
		Message: message,
	})
}

func (f *Folder) State() domain.RegisterState {
	state := domain.RegisterState{
		IsOpen:       f.isOpen,
		BalanceCents: f.balance,
		History:      slices.Clone(f.history),
	}
	if state.History == nil {
		state.History = []domain.HistoryEntry{}
	}
	if len(f.warnings) > 0 {
		state.Warnings = slices.Clone(f.warnings)
	}
	return state
}

// Reconstruct derives the register state from the full, unordered event set.
// Events are ordered by CreatedAt; ties keep their input order.
func Reconstruct(events []domain.CashEvent) domain.RegisterState {
	sorted := SortEvents(events)

	folder := NewFolder()
	for _, event := range sorted {
		folder.Apply(event)
	}
	return folder.State()
}

// LowestBalance is the smallest balance the drawer reaches while replaying
// events in order. It starts from zero, the balance before the first open.
func LowestBalance(events []domain.CashEvent) int64 {
	folder := NewFolder()
	var lowest int64
	for _, event := range SortEvents(events) {
		folder.Apply(event)
		lowest = min(lowest, folder.balance)
	}
	return lowest
}

// SortEvents returns a copy of events stably ordered by CreatedAt.
func SortEvents(events []domain.CashEvent) []domain.CashEvent {
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b domain.CashEvent) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return sorted
}

func describe(description string) string {
	if strings.TrimSpace(description) == "" {
		return domain.DefaultDescription
	}
	return description
}
