package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Collection names used in subscriber fan-out.
const (
	CollectionProducts      = "products"
	CollectionCategories    = "categories"
	CollectionOrders        = "orders"
	CollectionUsers         = "users"
	CollectionNotifications = "notifications"
	CollectionSettings      = "settings"
)

type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "Paid"
	PaymentPending PaymentStatus = "Pending"
	PaymentCancel  PaymentStatus = "Cancel"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "Pending"
	OrderProcessing OrderStatus = "Processing"
	OrderShipped    OrderStatus = "Shipped"
	OrderDelivered  OrderStatus = "Delivered"
	OrderCancelled  OrderStatus = "Cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

type PixelStatus string

const (
	PixelInactive   PixelStatus = "Inactive"
	PixelConnecting PixelStatus = "Connecting"
	PixelActive     PixelStatus = "Active"
)

type Product struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	CostPrice     decimal.Decimal `json:"cost_price"`
	MarginPrice   decimal.Decimal `json:"margin_price"`
	Stock         int             `json:"stock"`
	Images        []string        `json:"images,omitempty"`
	Sizes         []string        `json:"sizes,omitempty"`
	Colors        []string        `json:"colors,omitempty"`
	CategoryID    uuid.UUID       `json:"category_id"`
	Active        bool            `json:"active"`
	Featured      bool            `json:"featured"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Category struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

// User is an operator contact record. Credentials and sessions are handled
// outside this service.
type User struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Phone string    `json:"phone,omitempty"`
	Role  string    `json:"role"`
}

// OrderItem is an immutable snapshot of a product at checkout time. Catalog
// edits after placement never reach back into it.
type OrderItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
	Image     string          `json:"image,omitempty"`
}

type Order struct {
	ID            string          `json:"id"`
	CustomerName  string          `json:"customer_name"`
	Phone         string          `json:"phone"`
	Address       string          `json:"address"`
	City          string          `json:"city,omitempty"`
	Zone          string          `json:"zone,omitempty"`
	Note          string          `json:"note,omitempty"`
	Items         []OrderItem     `json:"items"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	OrderStatus   OrderStatus     `json:"order_status"`
	CourierName   string          `json:"courier_name,omitempty"`
	TrackingID    string          `json:"tracking_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type PathaoSettings struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	StoreID      string `json:"store_id"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	BaseURL      string `json:"base_url,omitempty"`
	Mode         string `json:"mode,omitempty"`
}

type SteadfastSettings struct {
	APIKey     string `json:"api_key"`
	SecretKey  string `json:"secret_key"`
	MerchantID string `json:"merchant_id"`
	BaseURL    string `json:"base_url,omitempty"`
	Mode       string `json:"mode,omitempty"`
}

type CourierSettings struct {
	Pathao    PathaoSettings    `json:"pathao"`
	Steadfast SteadfastSettings `json:"steadfast"`
}

type PixelSettings struct {
	PixelID       string      `json:"pixel_id"`
	AppID         string      `json:"app_id,omitempty"`
	AccessToken   string      `json:"access_token"`
	TestEventCode string      `json:"test_event_code,omitempty"`
	Currency      string      `json:"currency"`
	Status        PixelStatus `json:"status"`
}

type Notification struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	OrderID   string    `json:"order_id,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
