package store

import (
	"context"
	"errors"

	"storefront/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidRecord     = errors.New("invalid record")
)

// Collection names used for change notifications.
const (
	CollectionProducts   = "products"
	CollectionCustomers  = "customers"
	CollectionSales      = "sales"
	CollectionCashEvents = "cash_events"
)

// Repository is the document-collection store behind the storefront. Create
// assigns ID and CreatedAt; update merges the given record over the stored
// one with no version check.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	// AdjustStock adds delta to the product stock. A result below zero is
	// refused with ErrInsufficientStock and nothing is written.
	AdjustStock(ctx context.Context, productID string, delta int) (*domain.Product, error)

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	FindCustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error

	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)
	UpdateSaleStatus(ctx context.Context, id string, status string) (*domain.Sale, error)
	DeleteSale(ctx context.Context, id string) error

	ListCashEvents(ctx context.Context) ([]domain.CashEvent, error)
	GetCashEvent(ctx context.Context, id string) (*domain.CashEvent, error)
	FindCashEventBySale(ctx context.Context, saleID string) (*domain.CashEvent, error)
	CreateCashEvent(ctx context.Context, event domain.CashEvent) (*domain.CashEvent, error)
	// UpdateCashEvent rewrites type, amount and description of a manual
	// movement. Sale-linked events are refused with ErrInvalidRecord.
	UpdateCashEvent(ctx context.Context, event domain.CashEvent) (*domain.CashEvent, error)
	// MarkCashEventCancelled flips IsCancelled on a sale-linked entry. It is
	// the only mutation a sale-linked event accepts.
	MarkCashEventCancelled(ctx context.Context, id string) (*domain.CashEvent, error)
	DeleteCashEvent(ctx context.Context, id string) error

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// ValidateCashEvent holds the record rules shared by every backend.
func ValidateCashEvent(event domain.CashEvent) error {
	if !event.EntryType.Valid() || event.AmountCents < 0 {
		return ErrInvalidRecord
	}
	if event.SaleID != "" && event.EntryType != domain.EntryIn {
		return ErrInvalidRecord
	}
	return nil
}

func ValidateProduct(product domain.Product) error {
	if product.Name == "" || product.Category == "" || product.PriceCents < 0 || product.InvestmentCents < 0 || product.Stock < 0 {
		return ErrInvalidRecord
	}
	return nil
}

func ValidateSale(sale domain.Sale) error {
	if len(sale.Items) == 0 || sale.TotalCents < 0 {
		return ErrInvalidRecord
	}
	switch sale.Type {
	case domain.SaleTypePOS, domain.SaleTypeOnline:
	default:
		return ErrInvalidRecord
	}
	switch sale.Status {
	case domain.SaleStatusPending, domain.SaleStatusCompleted:
	default:
		return ErrInvalidRecord
	}
	return nil
}
