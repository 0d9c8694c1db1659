// Package sqlstore implements store.Repository over database/sql. The
// postgres and sqlite packages open the connection, apply their schema and
// hand it here together with a Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/store"
	"storefront/backend/internal/xid"
)

// Dialect captures what differs between the SQL backends. Queries in this
// package are written with ? placeholders and passed through Rebind.
type Dialect struct {
	Name              string
	Rebind            func(query string) string
	IsUniqueViolation func(err error) bool
	// InsertOrder is the column that reflects insertion order of cash events.
	InsertOrder string
}

// DollarRebind rewrites ? placeholders to $1, $2, ...
func DollarRebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func KeepRebind(query string) string {
	return query
}

type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func New(db *sql.DB, dialect Dialect) *Store {
	if dialect.Rebind == nil {
		dialect.Rebind = KeepRebind
	}
	if dialect.IsUniqueViolation == nil {
		dialect.IsUniqueViolation = func(error) bool { return false }
	}
	if dialect.InsertOrder == "" {
		dialect.InsertOrder = "created_at"
	}
	return &Store{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.Rebind(query), args...)
}

type rowScanner interface {
	Scan(dest ...any) error
}

const productColumns = `id, name, description, category, price_cents, investment_cents, stock, images, video_url, created_at`

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		p      domain.Product
		images string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.PriceCents, &p.InvestmentCents, &p.Stock, &images, &p.VideoURL, &p.CreatedAt); err != nil {
		return domain.Product{}, err
	}
	if images != "" {
		if err := json.Unmarshal([]byte(images), &p.Images); err != nil {
			return domain.Product{}, err
		}
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.query(ctx, `SELECT `+productColumns+` FROM products ORDER BY category, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(s.queryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if err := store.ValidateProduct(product); err != nil {
		return nil, err
	}
	images, err := marshalImages(product.Images)
	if err != nil {
		return nil, err
	}

	product.ID = xid.New("prd")
	product.CreatedAt = s.now()
	_, err = s.exec(ctx, `
		INSERT INTO products (id, name, description, category, price_cents, investment_cents, stock, images, video_url, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)
	`, product.ID, product.Name, product.Description, product.Category, product.PriceCents, product.InvestmentCents,
		product.Stock, images, product.VideoURL, product.CreatedAt)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return nil, store.ErrInvalidRecord
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if err := store.ValidateProduct(product); err != nil {
		return nil, err
	}
	images, err := marshalImages(product.Images)
	if err != nil {
		return nil, err
	}

	res, err := s.exec(ctx, `
		UPDATE products
		SET name = ?, description = ?, category = ?, price_cents = ?, investment_cents = ?, stock = ?, images = ?, video_url = ?
		WHERE id = ?
	`, product.Name, product.Description, product.Category, product.PriceCents, product.InvestmentCents,
		product.Stock, images, product.VideoURL, product.ID)
	if err != nil {
		return nil, err
	}
	if err := expectAffected(res); err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, product.ID)
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// AdjustStock is a single conditional UPDATE, so concurrent debits on one
// product cannot take it below zero.
func (s *Store) AdjustStock(ctx context.Context, productID string, delta int) (*domain.Product, error) {
	res, err := s.exec(ctx, `
		UPDATE products SET stock = stock + ?
		WHERE id = ? AND stock + ? >= 0
	`, delta, productID, delta)
	if err != nil {
		return nil, err
	}
	if err := expectAffected(res); err != nil {
		if _, getErr := s.GetProduct(ctx, productID); getErr != nil {
			return nil, getErr
		}
		return nil, store.ErrInsufficientStock
	}
	return s.GetProduct(ctx, productID)
}

const customerColumns = `id, name, cpf, email, phone, created_at`

func scanCustomer(row rowScanner) (domain.Customer, error) {
	var c domain.Customer
	if err := row.Scan(&c.ID, &c.Name, &c.CPF, &c.Email, &c.Phone, &c.CreatedAt); err != nil {
		return domain.Customer{}, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.query(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY lower(name), id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	c, err := scanCustomer(s.queryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) FindCustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	c, err := scanCustomer(s.queryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE phone = ? ORDER BY created_at LIMIT 1`, phone))
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.Name == "" {
		return nil, store.ErrInvalidRecord
	}
	customer.ID = xid.New("cus")
	customer.CreatedAt = s.now()
	_, err := s.exec(ctx, `
		INSERT INTO customers (id, name, cpf, email, phone, created_at)
		VALUES (?,?,?,?,?,?)
	`, customer.ID, customer.Name, customer.CPF, customer.Email, customer.Phone, customer.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.Name == "" {
		return nil, store.ErrInvalidRecord
	}
	res, err := s.exec(ctx, `
		UPDATE customers SET name = ?, cpf = ?, email = ?, phone = ?
		WHERE id = ?
	`, customer.Name, customer.CPF, customer.Email, customer.Phone, customer.ID)
	if err != nil {
		return nil, err
	}
	if err := expectAffected(res); err != nil {
		return nil, err
	}
	return s.GetCustomer(ctx, customer.ID)
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

const saleColumns = `id, items, total_cents, payment_method, customer_id, customer_name, sale_type, status, created_at`

func scanSale(row rowScanner) (domain.Sale, error) {
	var (
		sale  domain.Sale
		items string
	)
	if err := row.Scan(&sale.ID, &items, &sale.TotalCents, &sale.PaymentMethod, &sale.CustomerID, &sale.CustomerName, &sale.Type, &sale.Status, &sale.CreatedAt); err != nil {
		return domain.Sale{}, err
	}
	if err := json.Unmarshal([]byte(items), &sale.Items); err != nil {
		return domain.Sale{}, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()
	return sale, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if err := store.ValidateSale(sale); err != nil {
		return nil, err
	}
	items, err := json.Marshal(sale.Items)
	if err != nil {
		return nil, err
	}

	sale.ID = xid.New("sale")
	sale.CreatedAt = s.now()
	_, err = s.exec(ctx, `
		INSERT INTO sales (id, items, total_cents, payment_method, customer_id, customer_name, sale_type, status, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)
	`, sale.ID, string(items), sale.TotalCents, sale.PaymentMethod, sale.CustomerID, sale.CustomerName, sale.Type, sale.Status, sale.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	sale, err := scanSale(s.queryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE 1 = 1`
	args := make([]any, 0, 3)
	if filter.Type != "" {
		query += ` AND sale_type = ?`
		args = append(args, filter.Type)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func (s *Store) UpdateSaleStatus(ctx context.Context, id string, status string) (*domain.Sale, error) {
	if status != domain.SaleStatusPending && status != domain.SaleStatusCompleted {
		return nil, store.ErrInvalidRecord
	}
	res, err := s.exec(ctx, `UPDATE sales SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return nil, err
	}
	if err := expectAffected(res); err != nil {
		return nil, err
	}
	return s.GetSale(ctx, id)
}

func (s *Store) DeleteSale(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `DELETE FROM sales WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

const cashEventColumns = `id, entry_type, amount_cents, description, sale_id, is_cancelled, created_at, updated_at`

func scanCashEvent(row rowScanner) (domain.CashEvent, error) {
	var (
		event     domain.CashEvent
		saleID    sql.NullString
		updatedAt sql.NullTime
		entryType string
	)
	if err := row.Scan(&event.ID, &entryType, &event.AmountCents, &event.Description, &saleID, &event.IsCancelled, &event.CreatedAt, &updatedAt); err != nil {
		return domain.CashEvent{}, err
	}
	event.EntryType = domain.EntryType(entryType)
	event.SaleID = saleID.String
	event.CreatedAt = event.CreatedAt.UTC()
	if updatedAt.Valid {
		at := updatedAt.Time.UTC()
		event.UpdatedAt = &at
	}
	return event, nil
}

func (s *Store) ListCashEvents(ctx context.Context) ([]domain.CashEvent, error) {
	rows, err := s.query(ctx, `SELECT `+cashEventColumns+` FROM cash_events ORDER BY `+s.dialect.InsertOrder)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]domain.CashEvent, 0, 128)
	for rows.Next() {
		event, err := scanCashEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *Store) GetCashEvent(ctx context.Context, id string) (*domain.CashEvent, error) {
	event, err := scanCashEvent(s.queryRow(ctx, `SELECT `+cashEventColumns+` FROM cash_events WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &event, nil
}

func (s *Store) FindCashEventBySale(ctx context.Context, saleID string) (*domain.CashEvent, error) {
	if saleID == "" {
		return nil, store.ErrNotFound
	}
	event, err := scanCashEvent(s.queryRow(ctx, `
		SELECT `+cashEventColumns+` FROM cash_events
		WHERE sale_id = ?
		ORDER BY `+s.dialect.InsertOrder+` LIMIT 1
	`, saleID))
	if err != nil {
		return nil, notFound(err)
	}
	return &event, nil
}

func (s *Store) CreateCashEvent(ctx context.Context, event domain.CashEvent) (*domain.CashEvent, error) {
	if err := store.ValidateCashEvent(event); err != nil {
		return nil, err
	}
	event.ID = xid.New("cash")
	event.IsCancelled = false
	event.UpdatedAt = nil
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}

	_, err := s.exec(ctx, `
		INSERT INTO cash_events (id, entry_type, amount_cents, description, sale_id, is_cancelled, created_at)
		VALUES (?,?,?,?,?,?,?)
	`, event.ID, string(event.EntryType), event.AmountCents, event.Description, nullString(event.SaleID), false, event.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (s *Store) UpdateCashEvent(ctx context.Context, event domain.CashEvent) (*domain.CashEvent, error) {
	if err := store.ValidateCashEvent(event); err != nil {
		return nil, err
	}
	if event.SaleID != "" {
		return nil, store.ErrInvalidRecord
	}

	res, err := s.exec(ctx, `
		UPDATE cash_events SET entry_type = ?, amount_cents = ?, description = ?, updated_at = ?
		WHERE id = ? AND sale_id IS NULL
	`, string(event.EntryType), event.AmountCents, event.Description, s.now(), event.ID)
	if err != nil {
		return nil, err
	}
	if err := expectAffected(res); err != nil {
		if _, getErr := s.GetCashEvent(ctx, event.ID); getErr != nil {
			return nil, getErr
		}
		return nil, store.ErrInvalidRecord
	}
	return s.GetCashEvent(ctx, event.ID)
}

func (s *Store) MarkCashEventCancelled(ctx context.Context, id string) (*domain.CashEvent, error) {
	current, err := s.GetCashEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.SaleID == "" || current.EntryType != domain.EntryIn {
		return nil, store.ErrInvalidRecord
	}
	if current.IsCancelled {
		return current, nil
	}

	if _, err := s.exec(ctx, `
		UPDATE cash_events SET is_cancelled = ?, updated_at = ?
		WHERE id = ? AND is_cancelled = ?
	`, true, s.now(), id, false); err != nil {
		return nil, err
	}
	return s.GetCashEvent(ctx, id)
}

func (s *Store) DeleteCashEvent(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `DELETE FROM cash_events WHERE id = ? AND sale_id IS NULL`, id)
	if err != nil {
		return err
	}
	if err := expectAffected(res); err != nil {
		if _, getErr := s.GetCashEvent(ctx, id); getErr != nil {
			return getErr
		}
		return store.ErrInvalidRecord
	}
	return nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	_, err := s.exec(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES (?,?,?,?,?,?,?,?)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	rows, err := s.query(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidRecord
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}

	_, err := s.exec(ctx, `
		INSERT INTO users (username, password_hash, role, active, created_at)
		VALUES (?,?,?,?,?)
	`, username, user.Password, user.Role, true, user.CreatedAt)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return store.ErrInvalidRecord
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.query(ctx, `SELECT username, password_hash, role, active, created_at FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidRecord
	}
	res, err := s.exec(ctx, `UPDATE users SET password_hash = ? WHERE username = ?`, password, username)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func marshalImages(images []string) (string, error) {
	if len(images) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(images)
	return string(raw), err
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func expectAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
