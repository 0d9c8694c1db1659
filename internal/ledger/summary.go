package ledger

import (
	"errors"

	"storefront/backend/internal/domain"
)

var ErrNoOpenSession = errors.New("no open register session")

// Summarize totals the current session: every history entry from the last
// applied open onwards. It fails when the register is closed.
func Summarize(state domain.RegisterState) (domain.SessionSummary, error) {
	if !state.IsOpen {
		return domain.SessionSummary{}, ErrNoOpenSession
	}
	return LastSession(state)
}

// LastSession totals the most recent session whether or not it has been
// closed since. It fails only when no open was ever applied.
func LastSession(state domain.RegisterState) (domain.SessionSummary, error) {
	start := -1
	for i := len(state.History) - 1; i >= 0; i-- {
		if state.History[i].Type == domain.EntryOpen && state.History[i].Applied {
			start = i
			break
		}
	}
	if start < 0 {
		return domain.SessionSummary{}, ErrNoOpenSession
	}

	session := state.History[start:]
	summary := domain.SessionSummary{
		OpenedAt:          session[0].CreatedAt,
		InitialCents:      session[0].AmountCents,
		FinalBalanceCents: state.BalanceCents,
		Events:            len(session),
	}
	for _, entry := range session[1:] {
		switch entry.Type {
		case domain.EntryClose:
			if entry.Applied && summary.ClosedAt == nil {
				closedAt := entry.CreatedAt
				summary.ClosedAt = &closedAt
			}
		case domain.EntryIn:
			if entry.SaleID != "" && entry.IsCancelled {
				summary.CancelledSalesCount++
			}
			if !entry.Applied {
				continue
			}
			if entry.SaleID != "" {
				summary.SalesCents += entry.AmountCents
			} else {
				summary.OtherEntriesCents += entry.AmountCents
			}
		case domain.EntryOut:
			if entry.Applied {
				summary.ExitsCents += entry.AmountCents
			}
		}
	}
	summary.TotalEntriesCents = summary.SalesCents + summary.OtherEntriesCents
	return summary, nil
}
