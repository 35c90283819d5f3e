package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Payment methods accepted at checkout
const (
	PaymentMethodPayPal         = "PayPal"
	PaymentMethodStripe         = "Stripe"
	PaymentMethodCashOnDelivery = "CashOnDelivery"
)

// DefaultPaymentMethod is preselected for users that never chose one explicitly.
const DefaultPaymentMethod = PaymentMethodPayPal

// PaymentMethods lists every method the checkout accepts.
var PaymentMethods = []string{PaymentMethodPayPal, PaymentMethodStripe, PaymentMethodCashOnDelivery}

// ValidPaymentMethod reports whether m is an accepted checkout method.
func ValidPaymentMethod(m string) bool {
	for _, pm := range PaymentMethods {
		if pm == m {
			return true
		}
	}
	return false
}

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Product represents a catalog product. The storefront core only reads
// price/stock and writes stock during payment settlement.
type Product struct {
	ID          string          `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Slug        string          `db:"slug" json:"slug"`
	Category    string          `db:"category" json:"category"`
	Brand       string          `db:"brand" json:"brand"`
	Description string          `db:"description" json:"description"`
	Images      pq.StringArray  `db:"images" json:"images"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Stock       int             `db:"stock" json:"stock"`
	Rating      decimal.Decimal `db:"rating" json:"rating"`
	NumReviews  int             `db:"num_reviews" json:"num_reviews"`
	IsFeatured  bool            `db:"is_featured" json:"is_featured"`
	Banner      *string         `db:"banner" json:"banner,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// User represents a storefront account.
type User struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Email         string    `db:"email" json:"email"`
	PasswordHash  string    `db:"password_hash" json:"-"`
	Role          string    `db:"role" json:"role"`
	Address       *Address  `db:"address" json:"address,omitempty"`
	PaymentMethod *string   `db:"payment_method" json:"payment_method,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Address is a shipping address, stored as JSON and snapshotted onto orders.
type Address struct {
	FullName      string `json:"full_name"`
	StreetAddress string `json:"street_address"`
	City          string `json:"city"`
	PostalCode    string `json:"postal_code"`
	Country       string `json:"country"`
}

func (a Address) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *Address) Scan(src interface{}) error {
	return scanJSON(src, a)
}

// CartItem is one line in a cart: a product reference with a unit-price
// snapshot and a quantity. At most one line per product id exists in a cart.
type CartItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Qty       int             `json:"qty"`
}

// CartItems is the jsonb-backed item list of a cart.
type CartItems []CartItem

func (ci CartItems) Value() (driver.Value, error) {
	if ci == nil {
		ci = CartItems{}
	}
	return json.Marshal(ci)
}

func (ci *CartItems) Scan(src interface{}) error {
	return scanJSON(src, ci)
}

// Find returns the index of the line holding productID, or -1.
func (ci CartItems) Find(productID string) int {
	for i, item := range ci {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// PriceBreakdown is the derived pricing of a cart. The four fields are never
// authoritative on their own; they are recomputed from the item list on every
// cart mutation.
type PriceBreakdown struct {
	ItemsPrice    decimal.Decimal `json:"items_price"`
	ShippingPrice decimal.Decimal `json:"shipping_price"`
	TaxPrice      decimal.Decimal `json:"tax_price"`
	TotalPrice    decimal.Decimal `json:"total_price"`
}

// CartOwner identifies who controls a cart: an authenticated user id when
// present, otherwise the anonymous session cart token. Exactly one governs
// identity for any given request.
type CartOwner struct {
	UserID        string
	SessionCartID string
}

// Key returns the owner identity used for cache keys and logging.
func (o CartOwner) Key() string {
	if o.UserID != "" {
		return "user:" + o.UserID
	}
	return "session:" + o.SessionCartID
}

// Cart is a per-visitor mutable collection of prospective purchase lines plus
// derived totals.
type Cart struct {
	ID            string          `db:"id" json:"id"`
	UserID        *string         `db:"user_id" json:"user_id,omitempty"`
	SessionCartID string          `db:"session_cart_id" json:"session_cart_id"`
	Items         CartItems       `db:"items" json:"items"`
	ItemsPrice    decimal.Decimal `db:"items_price" json:"items_price"`
	ShippingPrice decimal.Decimal `db:"shipping_price" json:"shipping_price"`
	TaxPrice      decimal.Decimal `db:"tax_price" json:"tax_price"`
	TotalPrice    decimal.Decimal `db:"total_price" json:"total_price"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// PaymentResult records the provider-side outcome of a payment.
type PaymentResult struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Email     string `json:"email_address"`
	PricePaid string `json:"price_paid"`
}

func (pr PaymentResult) Value() (driver.Value, error) {
	return json.Marshal(pr)
}

func (pr *PaymentResult) Scan(src interface{}) error {
	return scanJSON(src, pr)
}

// Order is the immutable-once-created record of a completed checkout. Price
// fields are snapshots copied from the cart at placement time; only the
// payment/fulfillment flags mutate afterwards. PaidAt is set iff IsPaid, and
// IsPaid is never reset once true.
type Order struct {
	ID              string          `db:"id" json:"id"`
	UserID          string          `db:"user_id" json:"user_id"`
	UserName        string          `db:"user_name" json:"user_name,omitempty"`
	ShippingAddress Address         `db:"shipping_address" json:"shipping_address"`
	PaymentMethod   string          `db:"payment_method" json:"payment_method"`
	ItemsPrice      decimal.Decimal `db:"items_price" json:"items_price"`
	ShippingPrice   decimal.Decimal `db:"shipping_price" json:"shipping_price"`
	TaxPrice        decimal.Decimal `db:"tax_price" json:"tax_price"`
	TotalPrice      decimal.Decimal `db:"total_price" json:"total_price"`
	IsPaid          bool            `db:"is_paid" json:"is_paid"`
	PaidAt          *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	PaymentResult   *PaymentResult  `db:"payment_result" json:"payment_result,omitempty"`
	IsDelivered     bool            `db:"is_delivered" json:"is_delivered"`
	DeliveredAt     *time.Time      `db:"delivered_at" json:"delivered_at,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	Items           []OrderItem     `db:"-" json:"items,omitempty"`
}

// OrderItem is a historical line-item record, independent of later product
// price changes.
type OrderItem struct {
	OrderID   string          `db:"order_id" json:"order_id"`
	ProductID string          `db:"product_id" json:"product_id"`
	Name      string          `db:"name" json:"name"`
	Slug      string          `db:"slug" json:"slug"`
	Image     string          `db:"image" json:"image"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Qty       int             `db:"qty" json:"qty"`
}

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

func scanJSON(src, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}
