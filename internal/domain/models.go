package domain

import "time"

type EntryType string

const (
	EntryOpen  EntryType = "open"
	EntryIn    EntryType = "entry"
	EntryOut   EntryType = "exit"
	EntryClose EntryType = "close"
)

func (t EntryType) Valid() bool {
	switch t {
	case EntryOpen, EntryIn, EntryOut, EntryClose:
		return true
	default:
		return false
	}
}

// CashEvent is one append-only record of the cash drawer ledger. Only
// IsCancelled may change after creation, and only on sale-linked entries.
type CashEvent struct {
	ID          string     `json:"id"`
	EntryType   EntryType  `json:"entry_type"`
	AmountCents int64      `json:"amount_cents"`
	Description string     `json:"description"`
	SaleID      string     `json:"sale_id,omitempty"`
	IsCancelled bool       `json:"is_cancelled"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

type HistoryEntry struct {
	ID          string    `json:"id"`
	Type        EntryType `json:"type"`
	AmountCents int64     `json:"amount_cents"`
	Description string    `json:"description"`
	SaleID      string    `json:"sale_id,omitempty"`
	IsCancelled bool      `json:"is_cancelled"`
	Applied     bool      `json:"applied"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Warning struct {
	EventID string `json:"event_id,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type RegisterState struct {
	IsOpen       bool           `json:"is_open"`
	BalanceCents int64          `json:"balance_cents"`
	History      []HistoryEntry `json:"history"`
	Warnings     []Warning      `json:"warnings,omitempty"`
}

type SessionSummary struct {
	OpenedAt            time.Time  `json:"opened_at"`
	ClosedAt            *time.Time `json:"closed_at,omitempty"`
	InitialCents        int64      `json:"initial_cents"`
	SalesCents          int64      `json:"sales_cents"`
	OtherEntriesCents   int64      `json:"other_entries_cents"`
	TotalEntriesCents   int64      `json:"total_entries_cents"`
	ExitsCents          int64      `json:"exits_cents"`
	FinalBalanceCents   int64      `json:"final_balance_cents"`
	CancelledSalesCount int        `json:"cancelled_sales_count"`
	Events              int        `json:"events"`
}

type Product struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	Category        string    `json:"category"`
	PriceCents      int64     `json:"price_cents"`
	InvestmentCents int64     `json:"investment_cents"`
	Stock           int       `json:"stock"`
	Images          []string  `json:"images,omitempty"`
	VideoURL        string    `json:"video_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type ProductCreateRequest struct {
	Name            string   `json:"name" validate:"required,max=160"`
	Description     string   `json:"description" validate:"max=4000"`
	Category        string   `json:"category" validate:"required,max=80"`
	PriceCents      int64    `json:"price_cents" validate:"gte=0,lte=100000000000"`
	InvestmentCents int64    `json:"investment_cents" validate:"gte=0,lte=100000000000"`
	Stock           int      `json:"stock" validate:"gte=0,lte=1000000"`
	Images          []string `json:"images" validate:"dive,url"`
	VideoURL        string   `json:"video_url" validate:"omitempty,url"`
}

type ProductUpdateRequest struct {
	Name            *string   `json:"name,omitempty" validate:"omitempty,min=1,max=160"`
	Description     *string   `json:"description,omitempty" validate:"omitempty,max=4000"`
	Category        *string   `json:"category,omitempty" validate:"omitempty,min=1,max=80"`
	PriceCents      *int64    `json:"price_cents,omitempty" validate:"omitempty,gte=0,lte=100000000000"`
	InvestmentCents *int64    `json:"investment_cents,omitempty" validate:"omitempty,gte=0,lte=100000000000"`
	Stock           *int      `json:"stock,omitempty" validate:"omitempty,gte=0,lte=1000000"`
	Images          *[]string `json:"images,omitempty"`
	VideoURL        *string   `json:"video_url,omitempty" validate:"omitempty,url"`
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CPF       string    `json:"cpf,omitempty"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

type CustomerRequest struct {
	Name  string `json:"name" validate:"required,max=160"`
	CPF   string `json:"cpf" validate:"omitempty,max=20"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"required"`
}

type SaleItem struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Qty            int    `json:"qty"`
	Category       string `json:"category"`
}

func (i SaleItem) SubtotalCents() int64 {
	return i.UnitPriceCents * int64(i.Qty)
}

type Sale struct {
	ID            string     `json:"id"`
	Items         []SaleItem `json:"items"`
	TotalCents    int64      `json:"total_cents"`
	PaymentMethod string     `json:"payment_method"`
	CustomerID    string     `json:"customer_id,omitempty"`
	CustomerName  string     `json:"customer_name"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
}

type SaleFilter struct {
	Type   string
	Status string
	Limit  int
}

type CartItem struct {
	ProductID string `json:"product_id" validate:"required"`
	Qty       int    `json:"qty" validate:"gte=1,lte=10000"`
}

type PosSaleRequest struct {
	Items          []CartItem `json:"items" validate:"dive"`
	PaymentMethod  string     `json:"payment_method" validate:"omitempty,max=40"`
	CustomerID     string     `json:"customer_id"`
	CustomerName   string     `json:"customer_name" validate:"max=160"`
	IdempotencyKey string     `json:"idempotency_key"`
}

type OnlineOrderRequest struct {
	Items         []CartItem `json:"items" validate:"dive"`
	CustomerName  string     `json:"customer_name" validate:"required,max=160"`
	CustomerPhone string     `json:"customer_phone" validate:"required"`
	PaymentMethod string     `json:"payment_method" validate:"required,max=40"`
}

type OnlineOrderResponse struct {
	Sale        Sale   `json:"sale"`
	Message     string `json:"message"`
	WhatsAppURL string `json:"whatsapp_url"`
}

type CashMovementRequest struct {
	Type        EntryType `json:"type"`
	AmountCents int64     `json:"amount_cents"`
	Amount      string    `json:"amount,omitempty"`
	Description string    `json:"description" validate:"max=240"`
}

type RegisterOpenRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount,omitempty"`
}

type CancelSaleRequest struct {
	ManagerPIN string `json:"manager_pin"`
}

type CancelSaleResponse struct {
	SaleID          string   `json:"sale_id"`
	CashEventID     string   `json:"cash_event_id,omitempty"`
	RestoredItems   int      `json:"restored_items"`
	SkippedProducts []string `json:"skipped_products,omitempty"`
}

type CategoryTotal struct {
	Category   string `json:"category"`
	TotalCents int64  `json:"total_cents"`
}

type Dashboard struct {
	UnitsInStock          int             `json:"units_in_stock"`
	InvestmentCents       int64           `json:"investment_cents"`
	RevenuePotentialCents int64           `json:"revenue_potential_cents"`
	CompletedSalesCents   int64           `json:"completed_sales_cents"`
	PendingOnlineOrders   int             `json:"pending_online_orders"`
	Customers             int             `json:"customers"`
	RegisterOpen          bool            `json:"register_open"`
	RegisterBalanceCents  int64           `json:"register_balance_cents"`
	RecentSales           []Sale          `json:"recent_sales"`
	SalesByCategory       []CategoryTotal `json:"sales_by_category"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

type Actor struct {
	Username string
	Role     string
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

const DefaultDescription = "Sem descrição"

const (
	SaleTypePOS    = "pos"
	SaleTypeOnline = "online"
)

const (
	SaleStatusPending   = "pending"
	SaleStatusCompleted = "completed"
)

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)
