package memory

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/store"
	"storefront/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	customers       map[string]domain.Customer
	sales           map[string]domain.Sale
	cashEvents      []domain.CashEvent
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
	now             func() time.Time
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD and
// fall back to dev defaults with a warning.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Warn().Str("store", "memory").Msg("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal().Err(err).Str("username", u.username).Msg("hash seed password")
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// New returns an empty store with the seed users only.
func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		customers:       make(map[string]domain.Customer),
		sales:           make(map[string]domain.Sale),
		cashEvents:      make([]domain.CashEvent, 0, 64),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// NewSeeded returns a store with a small demo catalogue.
func NewSeeded() *Store {
	s := New()
	catalogue := []domain.Product{
		{ID: "prd-camiseta-basica", Name: "Camiseta Básica", Category: "roupas", PriceCents: 4990, InvestmentCents: 2200, Stock: 40},
		{ID: "prd-calca-jeans", Name: "Calça Jeans", Category: "roupas", PriceCents: 15990, InvestmentCents: 7800, Stock: 18},
		{ID: "prd-vestido-floral", Name: "Vestido Floral", Category: "roupas", PriceCents: 12990, InvestmentCents: 6100, Stock: 12},
		{ID: "prd-tenis-casual", Name: "Tênis Casual", Category: "calcados", PriceCents: 21990, InvestmentCents: 11000, Stock: 9},
		{ID: "prd-sandalia", Name: "Sandália Rasteira", Category: "calcados", PriceCents: 6990, InvestmentCents: 2900, Stock: 25},
		{ID: "prd-bolsa-couro", Name: "Bolsa de Couro", Category: "acessorios", PriceCents: 18990, InvestmentCents: 8500, Stock: 6},
		{ID: "prd-oculos-sol", Name: "Óculos de Sol", Category: "acessorios", PriceCents: 8990, InvestmentCents: 3100, Stock: 15},
		{ID: "prd-brinco-prata", Name: "Brinco de Prata", Category: "acessorios", PriceCents: 3990, InvestmentCents: 1200, Stock: 30},
	}
	created := s.now()
	for _, product := range catalogue {
		product.CreatedAt = created
		s.products[product.ID] = product
	}
	return s
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, cloneProduct(p))
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return strings.Compare(a.Name, b.Name)
		}
		return strings.Compare(a.Category, b.Category)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := cloneProduct(product)
	return &copyProduct, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if err := store.ValidateProduct(product); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product.ID = xid.New("prd")
	product.CreatedAt = s.now()
	s.products[product.ID] = cloneProduct(product)
	created := cloneProduct(product)
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if err := store.ValidateProduct(product); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	product.CreatedAt = current.CreatedAt
	s.products[product.ID] = cloneProduct(product)
	updated := cloneProduct(product)
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) AdjustStock(_ context.Context, productID string, delta int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[productID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if product.Stock+delta < 0 {
		return nil, store.ErrInsufficientStock
	}
	product.Stock += delta
	s.products[productID] = product
	updated := cloneProduct(product)
	return &updated, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return customers, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customers[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &customer, nil
}

func (s *Store) FindCustomerByPhone(_ context.Context, phone string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, customer := range s.customers {
		if customer.Phone == phone {
			found := customer
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.Name == "" {
		return nil, store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	customer.ID = xid.New("cus")
	customer.CreatedAt = s.now()
	s.customers[customer.ID] = customer
	return &customer, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.Name == "" {
		return nil, store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.customers[customer.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	customer.CreatedAt = current.CreatedAt
	s.customers[customer.ID] = customer
	return &customer, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.customers, id)
	return nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if err := store.ValidateSale(sale); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sale.ID = xid.New("sale")
	sale.CreatedAt = s.now()
	s.sales[sale.ID] = cloneSale(sale)
	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.sales[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySale := cloneSale(sale)
	return &copySale, nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if filter.Type != "" && sale.Type != filter.Type {
			continue
		}
		if filter.Status != "" && sale.Status != filter.Status {
			continue
		}
		result = append(result, cloneSale(sale))
	}

	slices.SortFunc(result, func(a, b domain.Sale) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) UpdateSaleStatus(_ context.Context, id string, status string) (*domain.Sale, error) {
	if status != domain.SaleStatusPending && status != domain.SaleStatusCompleted {
		return nil, store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.sales[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	sale.Status = status
	s.sales[id] = sale
	updated := cloneSale(sale)
	return &updated, nil
}

func (s *Store) DeleteSale(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sales[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.sales, id)
	return nil
}

// ListCashEvents returns events in insertion order; the ledger relies on it
// to break created_at ties.
func (s *Store) ListCashEvents(_ context.Context) ([]domain.CashEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.cashEvents), nil
}

func (s *Store) GetCashEvent(_ context.Context, id string) (*domain.CashEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.cashEventIndex(id)
	if idx < 0 {
		return nil, store.ErrNotFound
	}
	event := s.cashEvents[idx]
	return &event, nil
}

func (s *Store) FindCashEventBySale(_ context.Context, saleID string) (*domain.CashEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, event := range s.cashEvents {
		if saleID != "" && event.SaleID == saleID {
			found := event
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateCashEvent(_ context.Context, event domain.CashEvent) (*domain.CashEvent, error) {
	if err := store.ValidateCashEvent(event); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	event.ID = xid.New("cash")
	event.IsCancelled = false
	event.UpdatedAt = nil
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}
	s.cashEvents = append(s.cashEvents, event)
	return &event, nil
}

func (s *Store) UpdateCashEvent(_ context.Context, event domain.CashEvent) (*domain.CashEvent, error) {
	if err := store.ValidateCashEvent(event); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.cashEventIndex(event.ID)
	if idx < 0 {
		return nil, store.ErrNotFound
	}
	current := s.cashEvents[idx]
	if current.SaleID != "" || event.SaleID != "" {
		return nil, store.ErrInvalidRecord
	}

	at := s.now()
	current.EntryType = event.EntryType
	current.AmountCents = event.AmountCents
	current.Description = event.Description
	current.UpdatedAt = &at
	s.cashEvents[idx] = current
	return &current, nil
}

func (s *Store) MarkCashEventCancelled(_ context.Context, id string) (*domain.CashEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.cashEventIndex(id)
	if idx < 0 {
		return nil, store.ErrNotFound
	}
	event := s.cashEvents[idx]
	if event.SaleID == "" || event.EntryType != domain.EntryIn {
		return nil, store.ErrInvalidRecord
	}
	if !event.IsCancelled {
		at := s.now()
		event.IsCancelled = true
		event.UpdatedAt = &at
		s.cashEvents[idx] = event
	}
	return &event, nil
}

func (s *Store) DeleteCashEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.cashEventIndex(id)
	if idx < 0 {
		return store.ErrNotFound
	}
	if s.cashEvents[idx].SaleID != "" {
		return store.ErrInvalidRecord
	}
	s.cashEvents = slices.Delete(s.cashEvents, idx, idx+1)
	return nil
}

func (s *Store) cashEventIndex(id string) int {
	return slices.IndexFunc(s.cashEvents, func(event domain.CashEvent) bool {
		return event.ID == id
	})
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := slices.Clone(s.auditLogs)
	slices.Reverse(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidRecord
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidRecord
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidRecord
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cloneProduct(src domain.Product) domain.Product {
	src.Images = slices.Clone(src.Images)
	return src
}

func cloneSale(src domain.Sale) domain.Sale {
	src.Items = slices.Clone(src.Items)
	return src
}
