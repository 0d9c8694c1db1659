package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/backend/internal/chat"
	"storefront/backend/internal/domain"
	"storefront/backend/internal/money"
	"storefront/backend/internal/store"
)

const (
	walkInCustomer        = "Consumidor Final"
	defaultPaymentMethod  = "dinheiro"
	posSaleDescriptionFmt = "Venda PDV - Cliente: %s"
)

// RegisterPosSale records an in-person sale: the sale, one stock debit per
// line and the cash entry for the total. Every precondition is checked
// before the first write. A later write failure is reported as an
// *UpstreamWriteError and left for manual reconciliation.
func (s *Service) RegisterPosSale(ctx context.Context, req domain.PosSaleRequest) (domain.Sale, error) {
	register, err := s.refreshRegister(ctx)
	if err != nil {
		return domain.Sale{}, err
	}
	if !register.IsOpen {
		return domain.Sale{}, ErrRegisterClosed
	}
	if err := s.validateRequest(req); err != nil {
		return domain.Sale{}, err
	}

	cart := normalizeItems(req.Items)
	if len(cart) == 0 {
		return domain.Sale{}, ErrEmptyCart
	}

	items, total, err := s.priceCart(ctx, cart)
	if err != nil {
		return domain.Sale{}, err
	}

	customerID := strings.TrimSpace(req.CustomerID)
	customerName := strings.TrimSpace(req.CustomerName)
	if customerID != "" {
		customer, err := s.repo.GetCustomer(ctx, customerID)
		if err != nil {
			return domain.Sale{}, fmt.Errorf("customer %s: %w", customerID, err)
		}
		customerName = customer.Name
	}
	if customerName == "" {
		customerName = walkInCustomer
	}

	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		claimed, err := s.guard.Claim(ctx, key, s.idempotencyTTL)
		if err != nil {
			return domain.Sale{}, err
		}
		if !claimed {
			return domain.Sale{}, ErrDuplicateSubmission
		}
	}

	sale, err := s.repo.CreateSale(ctx, domain.Sale{
		Items:         items,
		TotalCents:    total,
		PaymentMethod: defaultString(strings.TrimSpace(req.PaymentMethod), defaultPaymentMethod),
		CustomerID:    customerID,
		CustomerName:  customerName,
		Type:          domain.SaleTypePOS,
		Status:        domain.SaleStatusCompleted,
	})
	if err != nil {
		if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
			_ = s.guard.Release(ctx, key)
		}
		return domain.Sale{}, s.upstreamFailure(ctx, "create sale", "", err)
	}

	if err := s.debitStock(ctx, sale.ID, items); err != nil {
		return *sale, err
	}

	if _, err := s.repo.CreateCashEvent(ctx, domain.CashEvent{
		EntryType:   domain.EntryIn,
		AmountCents: total,
		Description: fmt.Sprintf(posSaleDescriptionFmt, customerName),
		SaleID:      sale.ID,
	}); err != nil {
		return *sale, s.upstreamFailure(ctx, "append cash entry", sale.ID, err)
	}

	s.logAudit(ctx, "pos_sale", "sale", sale.ID, fmt.Sprintf("total=%d,items=%d,payment=%s", total, len(items), sale.PaymentMethod))
	s.log.Info().Str("sale_id", sale.ID).Int64("total_cents", total).Msg("pos sale registered")
	return *sale, nil
}

// RegisterOnlineOrder records a storefront order as a pending sale and
// reserves its stock. It never touches the cash ledger. The response carries
// the WhatsApp hand-off for the customer.
func (s *Service) RegisterOnlineOrder(ctx context.Context, req domain.OnlineOrderRequest) (domain.OnlineOrderResponse, error) {
	if err := s.validateRequest(req); err != nil {
		return domain.OnlineOrderResponse{}, err
	}

	name := strings.TrimSpace(req.CustomerName)
	phone := chat.CleanPhone(req.CustomerPhone)
	if name == "" {
		return domain.OnlineOrderResponse{}, fmt.Errorf("%w: customer name", ErrInvalidRequest)
	}
	if !chat.ValidPhone(phone) {
		return domain.OnlineOrderResponse{}, ErrInvalidPhone
	}

	cart := normalizeItems(req.Items)
	if len(cart) == 0 {
		return domain.OnlineOrderResponse{}, ErrEmptyCart
	}
	items, total, err := s.priceCart(ctx, cart)
	if err != nil {
		return domain.OnlineOrderResponse{}, err
	}

	customer, err := s.findOrCreateCustomer(ctx, name, phone)
	if err != nil {
		return domain.OnlineOrderResponse{}, s.upstreamFailure(ctx, "save customer", "", err)
	}

	sale, err := s.repo.CreateSale(ctx, domain.Sale{
		Items:         items,
		TotalCents:    total,
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
		CustomerID:    customer.ID,
		CustomerName:  name,
		Type:          domain.SaleTypeOnline,
		Status:        domain.SaleStatusPending,
	})
	if err != nil {
		return domain.OnlineOrderResponse{}, s.upstreamFailure(ctx, "create sale", "", err)
	}

	if err := s.debitStock(ctx, sale.ID, items); err != nil {
		return domain.OnlineOrderResponse{Sale: *sale}, err
	}

	handoff := chat.OrderHandoff(s.shopWhatsApp, *sale, phone)
	s.logAudit(ctx, "online_order", "sale", sale.ID, fmt.Sprintf("total=%d,customer=%s", total, customer.ID))
	s.log.Info().Str("sale_id", sale.ID).Int64("total_cents", total).Msg("online order registered")

	return domain.OnlineOrderResponse{
		Sale:        *sale,
		Message:     handoff.Message,
		WhatsAppURL: handoff.URL,
	}, nil
}

// ConfirmOnlineOrder marks a pending online order completed. Stock was
// already reserved at order time and the ledger is not touched.
func (s *Service) ConfirmOnlineOrder(ctx context.Context, saleID string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return domain.Sale{}, err
	}
	if sale.Type != domain.SaleTypeOnline {
		return domain.Sale{}, fmt.Errorf("%w: only online orders need confirmation", ErrInvalidRequest)
	}
	if sale.Status == domain.SaleStatusCompleted {
		return *sale, nil
	}

	updated, err := s.repo.UpdateSaleStatus(ctx, saleID, domain.SaleStatusCompleted)
	if err != nil {
		return domain.Sale{}, err
	}
	s.logAudit(ctx, "online_order_confirm", "sale", saleID, "")
	return *updated, nil
}

// CancelOrDeleteSale undoes a sale: stock goes back per line (products that
// no longer exist are skipped), the linked cash entry is flagged cancelled
// and the sale record is deleted.
func (s *Service) CancelOrDeleteSale(ctx context.Context, saleID string) (domain.CancelSaleResponse, error) {
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return domain.CancelSaleResponse{}, err
	}

	resp := domain.CancelSaleResponse{SaleID: sale.ID}
	for _, item := range sale.Items {
		if _, err := s.repo.AdjustStock(ctx, item.ProductID, item.Qty); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.log.Warn().Str("sale_id", sale.ID).Str("product_id", item.ProductID).Msg("product gone, stock not restored")
				resp.SkippedProducts = append(resp.SkippedProducts, item.ProductID)
				continue
			}
			return resp, s.upstreamFailure(ctx, "restore stock "+item.ProductID, sale.ID, err)
		}
		resp.RestoredItems += item.Qty
	}

	event, err := s.repo.FindCashEventBySale(ctx, sale.ID)
	switch {
	case err == nil:
		if _, err := s.repo.MarkCashEventCancelled(ctx, event.ID); err != nil {
			return resp, s.upstreamFailure(ctx, "cancel cash entry", sale.ID, err)
		}
		resp.CashEventID = event.ID
	case errors.Is(err, store.ErrNotFound):
	default:
		return resp, s.upstreamFailure(ctx, "find cash entry", sale.ID, err)
	}

	if err := s.repo.DeleteSale(ctx, sale.ID); err != nil {
		return resp, s.upstreamFailure(ctx, "delete sale", sale.ID, err)
	}

	s.logAudit(ctx, "sale_cancel", "sale", sale.ID, fmt.Sprintf("type=%s,total=%d,restored=%d", sale.Type, sale.TotalCents, resp.RestoredItems))
	return resp, nil
}

func (s *Service) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 200
	}
	return s.repo.ListSales(ctx, filter)
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

// priceCart snapshots name, price and category of every line and checks the
// requested quantity against current stock. It performs no writes.
func (s *Service) priceCart(ctx context.Context, cart []domain.CartItem) ([]domain.SaleItem, int64, error) {
	items := make([]domain.SaleItem, 0, len(cart))
	var total int64
	for _, line := range cart {
		product, err := s.repo.GetProduct(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, 0, &InsufficientStockError{ProductID: line.ProductID, Name: line.ProductID, Requested: line.Qty}
			}
			return nil, 0, err
		}
		if line.Qty > product.Stock {
			return nil, 0, &InsufficientStockError{
				ProductID: product.ID,
				Name:      product.Name,
				Requested: line.Qty,
				Available: product.Stock,
			}
		}
		if product.PriceCents > (money.MaxCents-total)/int64(line.Qty) {
			return nil, 0, fmt.Errorf("%w: cart total for %s", ErrInvalidAmount, product.Name)
		}
		item := domain.SaleItem{
			ProductID:      product.ID,
			Name:           product.Name,
			UnitPriceCents: product.PriceCents,
			Qty:            line.Qty,
			Category:       product.Category,
		}
		items = append(items, item)
		total += item.SubtotalCents()
	}
	return items, total, nil
}

// debitStock takes stock one line at a time, stopping at the first failure.
func (s *Service) debitStock(ctx context.Context, saleID string, items []domain.SaleItem) error {
	for _, item := range items {
		if _, err := s.repo.AdjustStock(ctx, item.ProductID, -item.Qty); err != nil {
			return s.upstreamFailure(ctx, "debit stock "+item.ProductID, saleID, err)
		}
	}
	return nil
}

func (s *Service) findOrCreateCustomer(ctx context.Context, name string, phone string) (*domain.Customer, error) {
	customer, err := s.repo.FindCustomerByPhone(ctx, phone)
	switch {
	case err == nil:
		if customer.Name == name {
			return customer, nil
		}
		customer.Name = name
		return s.repo.UpdateCustomer(ctx, *customer)
	case errors.Is(err, store.ErrNotFound):
		return s.repo.CreateCustomer(ctx, domain.Customer{Name: name, Phone: phone})
	default:
		return nil, err
	}
}

func (s *Service) upstreamFailure(ctx context.Context, step string, saleID string, err error) error {
	s.log.Error().Err(err).
		Str("step", step).
		Str("sale_id", saleID).
		Msg("store write failed; manual reconciliation may be needed")
	if saleID != "" {
		s.logAudit(ctx, "write_failure", "sale", saleID, step)
	}
	return &UpstreamWriteError{Step: step, SaleID: saleID, Err: err}
}

// normalizeItems merges repeated products and drops empty lines, keeping the
// order in which products first appear.
func normalizeItems(items []domain.CartItem) []domain.CartItem {
	index := make(map[string]int, len(items))
	normalized := make([]domain.CartItem, 0, len(items))
	for _, item := range items {
		id := strings.TrimSpace(item.ProductID)
		if id == "" || item.Qty < 1 {
			continue
		}
		if at, seen := index[id]; seen {
			normalized[at].Qty += item.Qty
			continue
		}
		index[id] = len(normalized)
		normalized = append(normalized, domain.CartItem{ProductID: id, Qty: item.Qty})
	}
	return normalized
}

func defaultString(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
