package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/ledger"
	"storefront/backend/internal/report"
	"storefront/backend/internal/store"
)

// RegisterState returns the tracked register state. It follows every cash
// event written through this service; use the admission paths for a fresh
// read of the store.
func (s *Service) RegisterState(_ context.Context) domain.RegisterState {
	return s.tracker.State()
}

// OpenRegister appends an open event with the counted float. The ledger
// accepts a second open, but the service refuses it so that a running
// session is never reset by accident.
func (s *Service) OpenRegister(ctx context.Context, req domain.RegisterOpenRequest) (domain.RegisterState, error) {
	amount, err := resolveAmount(req.AmountCents, req.Amount)
	if err != nil {
		return domain.RegisterState{}, err
	}
	if amount < 0 {
		return domain.RegisterState{}, ErrInvalidAmount
	}

	state, err := s.refreshRegister(ctx)
	if err != nil {
		return domain.RegisterState{}, err
	}
	if state.IsOpen {
		return domain.RegisterState{}, ErrRegisterAlreadyOpen
	}

	event, err := s.repo.CreateCashEvent(ctx, domain.CashEvent{
		EntryType:   domain.EntryOpen,
		AmountCents: amount,
		Description: "Abertura de caixa",
	})
	if err != nil {
		return domain.RegisterState{}, err
	}

	s.logAudit(ctx, "register_open", "cash_event", event.ID, fmt.Sprintf("amount=%d", amount))
	return s.refreshRegister(ctx)
}

// CloseRegister appends a close event carrying the current balance as a
// receipt. The balance itself is left as it was.
func (s *Service) CloseRegister(ctx context.Context) (domain.SessionSummary, error) {
	state, err := s.refreshRegister(ctx)
	if err != nil {
		return domain.SessionSummary{}, err
	}
	if !state.IsOpen {
		return domain.SessionSummary{}, ErrRegisterClosed
	}

	event, err := s.repo.CreateCashEvent(ctx, domain.CashEvent{
		EntryType:   domain.EntryClose,
		AmountCents: state.BalanceCents,
		Description: "Fechamento de caixa",
	})
	if err != nil {
		return domain.SessionSummary{}, err
	}
	s.logAudit(ctx, "register_close", "cash_event", event.ID, fmt.Sprintf("balance=%d", state.BalanceCents))

	closed, err := s.refreshRegister(ctx)
	if err != nil {
		return domain.SessionSummary{}, err
	}
	summary, err := ledger.LastSession(closed)
	if err != nil {
		return domain.SessionSummary{}, err
	}
	s.log.Info().
		Int64("final_balance_cents", summary.FinalBalanceCents).
		Int64("sales_cents", summary.SalesCents).
		Msg("register closed")
	return summary, nil
}

// SessionSummary totals the open session.
func (s *Service) SessionSummary(ctx context.Context) (domain.SessionSummary, error) {
	state, err := s.refreshRegister(ctx)
	if err != nil {
		return domain.SessionSummary{}, err
	}
	summary, err := ledger.Summarize(state)
	if errors.Is(err, ledger.ErrNoOpenSession) {
		return domain.SessionSummary{}, ErrRegisterClosed
	}
	return summary, err
}

// RecordCashMovement appends a manual entry or exit. An exit may not take
// the drawer below zero.
func (s *Service) RecordCashMovement(ctx context.Context, req domain.CashMovementRequest) (domain.CashEvent, error) {
	if err := s.validateRequest(req); err != nil {
		return domain.CashEvent{}, err
	}
	if req.Type != domain.EntryIn && req.Type != domain.EntryOut {
		return domain.CashEvent{}, fmt.Errorf("%w: movement type must be entry or exit", ErrInvalidRequest)
	}
	amount, err := resolveAmount(req.AmountCents, req.Amount)
	if err != nil {
		return domain.CashEvent{}, err
	}
	if amount <= 0 {
		return domain.CashEvent{}, ErrInvalidAmount
	}

	state, err := s.refreshRegister(ctx)
	if err != nil {
		return domain.CashEvent{}, err
	}
	if !state.IsOpen {
		return domain.CashEvent{}, ErrRegisterClosed
	}
	if req.Type == domain.EntryOut && amount > state.BalanceCents {
		return domain.CashEvent{}, ErrInsufficientBalance
	}

	event, err := s.repo.CreateCashEvent(ctx, domain.CashEvent{
		EntryType:   req.Type,
		AmountCents: amount,
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		return domain.CashEvent{}, err
	}
	s.logAudit(ctx, "cash_"+string(req.Type), "cash_event", event.ID, fmt.Sprintf("amount=%d", amount))
	return *event, nil
}

// UpdateCashMovement edits a manual movement. Sale-linked or cancelled events
// cannot be edited. The edit is refused when replaying the log with it would
// take the drawer below zero at any point.
func (s *Service) UpdateCashMovement(ctx context.Context, id string, req domain.CashMovementRequest) (domain.CashEvent, error) {
	if err := s.validateRequest(req); err != nil {
		return domain.CashEvent{}, err
	}
	if req.Type != domain.EntryIn && req.Type != domain.EntryOut {
		return domain.CashEvent{}, fmt.Errorf("%w: movement type must be entry or exit", ErrInvalidRequest)
	}
	amount, err := resolveAmount(req.AmountCents, req.Amount)
	if err != nil {
		return domain.CashEvent{}, err
	}
	if amount <= 0 {
		return domain.CashEvent{}, ErrInvalidAmount
	}

	current, err := s.editableMovement(ctx, id)
	if err != nil {
		return domain.CashEvent{}, err
	}

	edited := *current
	edited.EntryType = req.Type
	edited.AmountCents = amount
	if err := s.checkRunningBalance(ctx, current.ID, &edited); err != nil {
		return domain.CashEvent{}, err
	}

	updated, err := s.repo.UpdateCashEvent(ctx, domain.CashEvent{
		ID:          current.ID,
		EntryType:   req.Type,
		AmountCents: amount,
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		return domain.CashEvent{}, err
	}
	s.logAudit(ctx, "cash_movement_update", "cash_event", id,
		fmt.Sprintf("type=%s->%s,amount=%d->%d", current.EntryType, updated.EntryType, current.AmountCents, updated.AmountCents))
	return *updated, nil
}

// DeleteCashMovement removes a manual movement, unless later exits depended
// on it.
func (s *Service) DeleteCashMovement(ctx context.Context, id string) error {
	current, err := s.editableMovement(ctx, id)
	if err != nil {
		return err
	}
	if err := s.checkRunningBalance(ctx, id, nil); err != nil {
		return err
	}
	if err := s.repo.DeleteCashEvent(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "cash_movement_delete", "cash_event", id, fmt.Sprintf("type=%s,amount=%d", current.EntryType, current.AmountCents))
	return nil
}

// checkRunningBalance replays the stored log with event id replaced by
// replacement (removed when nil). The change is refused when the drawer would
// dip below zero, unless the log already dipped that low before it.
func (s *Service) checkRunningBalance(ctx context.Context, id string, replacement *domain.CashEvent) error {
	events, err := s.repo.ListCashEvents(ctx)
	if err != nil {
		return err
	}
	changed := make([]domain.CashEvent, 0, len(events))
	for _, event := range events {
		switch {
		case event.ID != id:
			changed = append(changed, event)
		case replacement != nil:
			changed = append(changed, *replacement)
		}
	}

	after := ledger.LowestBalance(changed)
	if after < 0 && after < ledger.LowestBalance(events) {
		return ErrInsufficientBalance
	}
	return nil
}

func (s *Service) editableMovement(ctx context.Context, id string) (*domain.CashEvent, error) {
	current, err := s.repo.GetCashEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.SaleID != "" || current.IsCancelled {
		return nil, ErrSaleLinkedEvent
	}
	if current.EntryType != domain.EntryIn && current.EntryType != domain.EntryOut {
		return nil, fmt.Errorf("%w: only entries and exits can be changed", ErrInvalidRequest)
	}
	return current, nil
}

// ReplayLedger rebuilds a register state from an exported event log without
// storing anything. Unreadable records come back as warnings.
func (s *Service) ReplayLedger(_ context.Context, data []byte) domain.RegisterState {
	events, decodeWarnings := ledger.DecodeEvents(data)
	state := ledger.Reconstruct(events)
	if len(decodeWarnings) > 0 {
		state.Warnings = append(decodeWarnings, state.Warnings...)
		s.log.Warn().Int("warnings", len(state.Warnings)).Msg("replayed cash log has data integrity warnings")
	}
	return state
}

func (s *Service) ExportLedger(ctx context.Context, w io.Writer) error {
	state, err := s.refreshRegister(ctx)
	if err != nil {
		return err
	}
	return report.WriteLedgerWorkbook(w, state)
}

// WriteCloseReceipt renders the latest session, open or closed, as a PDF.
func (s *Service) WriteCloseReceipt(ctx context.Context, w io.Writer, storeName string) error {
	state, err := s.refreshRegister(ctx)
	if err != nil {
		return err
	}
	summary, err := ledger.LastSession(state)
	if err != nil {
		if errors.Is(err, ledger.ErrNoOpenSession) {
			return fmt.Errorf("%w: no register session yet", store.ErrNotFound)
		}
		return err
	}
	closedAt := s.now()
	if summary.ClosedAt != nil {
		closedAt = *summary.ClosedAt
	}
	return report.WriteCloseReceipt(w, storeName, summary, closedAt)
}
