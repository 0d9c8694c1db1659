package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"storefront/backend/internal/chat"
	"storefront/backend/internal/domain"
)

const recentSalesLimit = 5

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

// ListStorefrontProducts is the public catalogue: products with stock left.
func (s *Service) ListStorefrontProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	available := make([]domain.Product, 0, len(products))
	for _, product := range products {
		if product.Stock > 0 {
			product.InvestmentCents = 0
			available = append(available, product)
		}
	}
	return available, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if err := s.validateRequest(req); err != nil {
		return domain.Product{}, err
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:            req.Name,
		Description:     strings.TrimSpace(req.Description),
		Category:        req.Category,
		PriceCents:      req.PriceCents,
		InvestmentCents: req.InvestmentCents,
		Stock:           req.Stock,
		Images:          req.Images,
		VideoURL:        strings.TrimSpace(req.VideoURL),
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,price=%d,stock=%d", created.Name, created.PriceCents, created.Stock))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	if err := s.validateRequest(req); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("%w: name", ErrInvalidRequest)
		}
		updated.Name = name
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			return domain.Product{}, fmt.Errorf("%w: category", ErrInvalidRequest)
		}
		updated.Category = category
	}
	if req.PriceCents != nil {
		updated.PriceCents = *req.PriceCents
	}
	if req.InvestmentCents != nil {
		updated.InvestmentCents = *req.InvestmentCents
	}
	if req.Stock != nil {
		updated.Stock = *req.Stock
	}
	if req.Images != nil {
		updated.Images = append([]string(nil), (*req.Images)...)
	}
	if req.VideoURL != nil {
		updated.VideoURL = strings.TrimSpace(*req.VideoURL)
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("price=%d->%d,stock=%d->%d", existing.PriceCents, saved.PriceCents, existing.Stock, saved.Stock))
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, strings.TrimSpace(id)); err != nil {
		return err
	}
	s.logAudit(ctx, "product_delete", "product", id, "")
	return nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerRequest) (domain.Customer, error) {
	customer, err := s.customerFromRequest(req)
	if err != nil {
		return domain.Customer{}, err
	}
	created, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}
	s.logAudit(ctx, "customer_create", "customer", created.ID, "")
	return *created, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.CustomerRequest) (domain.Customer, error) {
	customer, err := s.customerFromRequest(req)
	if err != nil {
		return domain.Customer{}, err
	}
	existing, err := s.repo.GetCustomer(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Customer{}, err
	}
	customer.ID = existing.ID
	customer.CreatedAt = existing.CreatedAt

	saved, err := s.repo.UpdateCustomer(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}
	s.logAudit(ctx, "customer_update", "customer", saved.ID, "")
	return *saved, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	if err := s.repo.DeleteCustomer(ctx, strings.TrimSpace(id)); err != nil {
		return err
	}
	s.logAudit(ctx, "customer_delete", "customer", id, "")
	return nil
}

func (s *Service) customerFromRequest(req domain.CustomerRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validateRequest(req); err != nil {
		return domain.Customer{}, err
	}
	phone := chat.CleanPhone(req.Phone)
	if !chat.ValidPhone(phone) {
		return domain.Customer{}, ErrInvalidPhone
	}
	return domain.Customer{
		Name:  req.Name,
		CPF:   strings.TrimSpace(req.CPF),
		Email: strings.ToLower(strings.TrimSpace(req.Email)),
		Phone: phone,
	}, nil
}

// Dashboard aggregates catalogue value, sales and register figures for the
// back office home screen.
func (s *Service) Dashboard(ctx context.Context) (domain.Dashboard, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.Dashboard{}, err
	}
	sales, err := s.repo.ListSales(ctx, domain.SaleFilter{})
	if err != nil {
		return domain.Dashboard{}, err
	}
	customers, err := s.repo.ListCustomers(ctx)
	if err != nil {
		return domain.Dashboard{}, err
	}
	register, err := s.refreshRegister(ctx)
	if err != nil {
		return domain.Dashboard{}, err
	}

	dash := domain.Dashboard{
		Customers:            len(customers),
		RegisterOpen:         register.IsOpen,
		RegisterBalanceCents: register.BalanceCents,
		RecentSales:          []domain.Sale{},
		SalesByCategory:      []domain.CategoryTotal{},
	}
	for _, product := range products {
		dash.UnitsInStock += product.Stock
		dash.InvestmentCents += product.InvestmentCents * int64(product.Stock)
		dash.RevenuePotentialCents += product.PriceCents * int64(product.Stock)
	}

	byCategory := make(map[string]int64)
	for _, sale := range sales {
		if sale.Type == domain.SaleTypeOnline && sale.Status == domain.SaleStatusPending {
			dash.PendingOnlineOrders++
			continue
		}
		if sale.Status != domain.SaleStatusCompleted {
			continue
		}
		dash.CompletedSalesCents += sale.TotalCents
		for _, item := range sale.Items {
			byCategory[defaultString(item.Category, "Sem categoria")] += item.SubtotalCents()
		}
	}
	for category, total := range byCategory {
		dash.SalesByCategory = append(dash.SalesByCategory, domain.CategoryTotal{Category: category, TotalCents: total})
	}
	sort.Slice(dash.SalesByCategory, func(i, j int) bool {
		if dash.SalesByCategory[i].TotalCents != dash.SalesByCategory[j].TotalCents {
			return dash.SalesByCategory[i].TotalCents > dash.SalesByCategory[j].TotalCents
		}
		return dash.SalesByCategory[i].Category < dash.SalesByCategory[j].Category
	})

	recent := append([]domain.Sale(nil), sales...)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].CreatedAt.After(recent[j].CreatedAt)
	})
	if len(recent) > recentSalesLimit {
		recent = recent[:recentSalesLimit]
	}
	dash.RecentSales = append(dash.RecentSales, recent...)
	return dash, nil
}
