package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/models"
	"storefront-service/internal/paypal"
	"storefront-service/internal/store"
)

type fakePaymentStore struct {
	orders map[string]*models.Order
	users  map[string]*models.User
	stock  map[string]int

	settleCalls int
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{
		orders: map[string]*models.Order{},
		users:  map[string]*models.User{},
		stock:  map[string]int{},
	}
}

func (f *fakePaymentStore) GetOrderByID(_ context.Context, orderID string) (*models.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return nil, store.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakePaymentStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return u, nil
}

func (f *fakePaymentStore) SetPaymentResult(_ context.Context, orderID string, result models.PaymentResult) error {
	o, ok := f.orders[orderID]
	if !ok {
		return store.ErrOrderNotFound
	}
	if o.IsPaid {
		return store.ErrAlreadyPaid
	}
	o.PaymentResult = &result
	return nil
}

// SettlePayment mirrors the real transaction: paid guard first, then stock
// decrements clamped at zero with oversold reporting.
func (f *fakePaymentStore) SettlePayment(_ context.Context, orderID string, result models.PaymentResult) (*models.Order, []store.OversoldLine, error) {
	f.settleCalls++

	o, ok := f.orders[orderID]
	if !ok {
		return nil, nil, store.ErrOrderNotFound
	}
	if o.IsPaid {
		return nil, nil, store.ErrAlreadyPaid
	}

	var oversold []store.OversoldLine
	for _, item := range o.Items {
		remaining := f.stock[item.ProductID] - item.Qty
		if remaining < 0 {
			oversold = append(oversold, store.OversoldLine{
				ProductID: item.ProductID,
				Shortfall: -remaining,
			})
			remaining = 0
		}
		f.stock[item.ProductID] = remaining
	}

	now := time.Now()
	o.IsPaid = true
	o.PaidAt = &now
	o.PaymentResult = &result
	return o, oversold, nil
}

type fakeProvider struct {
	createdID  string
	createErr  error
	capture    *paypal.CaptureResult
	captureErr error
}

func (f *fakeProvider) CreateOrder(_ context.Context, _ decimal.Decimal) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.createdID, nil
}

func (f *fakeProvider) CaptureOrder(_ context.Context, _ string) (*paypal.CaptureResult, error) {
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	return f.capture, nil
}

type fakePaidPublisher struct {
	paid []*models.OrderPaidEvent
}

func (f *fakePaidPublisher) PublishOrderPaid(_ context.Context, e *models.OrderPaidEvent) error {
	f.paid = append(f.paid, e)
	return nil
}

func paypalOrder() *models.Order {
	return &models.Order{
		ID:            "order-1",
		UserID:        "u1",
		PaymentMethod: models.PaymentMethodPayPal,
		TotalPrice:    decimal.RequireFromString("61.73"),
		Items: []models.OrderItem{
			{ProductID: "p1", Name: "Polo Shirt", Slug: "polo-shirt", Price: decimal.RequireFromString("19.99"), Qty: 2},
		},
	}
}

func TestCreateProviderOrderStoresProviderID(t *testing.T) {
	fs := newFakePaymentStore()
	fs.orders["order-1"] = paypalOrder()
	provider := &fakeProvider{createdID: "PP-123"}
	ps := NewPaymentService(fs, provider, &fakeViewCache{}, &fakePaidPublisher{})

	id, err := ps.CreateProviderOrder(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, "PP-123", id)

	require.NotNil(t, fs.orders["order-1"].PaymentResult)
	assert.Equal(t, "PP-123", fs.orders["order-1"].PaymentResult.ID)
	assert.Equal(t, "0", fs.orders["order-1"].PaymentResult.PricePaid)
}

func TestCreateProviderOrderRejectsPaidOrder(t *testing.T) {
	fs := newFakePaymentStore()
	order := paypalOrder()
	order.IsPaid = true
	fs.orders["order-1"] = order
	ps := NewPaymentService(fs, &fakeProvider{createdID: "PP-123"}, &fakeViewCache{}, &fakePaidPublisher{})

	_, err := ps.CreateProviderOrder(context.Background(), "order-1")
	assert.ErrorIs(t, err, store.ErrAlreadyPaid)
}

func TestCreateProviderOrderRejectsWrongMethod(t *testing.T) {
	fs := newFakePaymentStore()
	order := paypalOrder()
	order.PaymentMethod = models.PaymentMethodCashOnDelivery
	fs.orders["order-1"] = order
	ps := NewPaymentService(fs, &fakeProvider{createdID: "PP-123"}, &fakeViewCache{}, &fakePaidPublisher{})

	_, err := ps.CreateProviderOrder(context.Background(), "order-1")
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
}

func TestCaptureProviderOrderSettles(t *testing.T) {
	fs := newFakePaymentStore()
	order := paypalOrder()
	order.PaymentResult = &models.PaymentResult{ID: "PP-123", PricePaid: "0"}
	fs.orders["order-1"] = order
	fs.users["u1"] = &models.User{ID: "u1", Email: "ada@example.com"}
	fs.stock["p1"] = 5
	provider := &fakeProvider{capture: &paypal.CaptureResult{
		ID:         "PP-123",
		Status:     paypal.StatusCompleted,
		PayerEmail: "buyer@example.com",
		Amount:     "61.73",
	}}
	pub := &fakePaidPublisher{}
	ps := NewPaymentService(fs, provider, &fakeViewCache{}, pub)

	settled, err := ps.CaptureProviderOrder(context.Background(), "order-1", "PP-123")
	require.NoError(t, err)
	assert.True(t, settled.IsPaid)
	require.NotNil(t, settled.PaidAt)
	assert.Equal(t, "61.73", settled.PaymentResult.PricePaid)
	assert.Equal(t, 3, fs.stock["p1"])

	require.Len(t, pub.paid, 1)
	assert.Equal(t, "buyer@example.com", pub.paid[0].UserEmail)
	assert.Equal(t, "PP-123", pub.paid[0].ProviderID)
}

func TestCaptureProviderOrderVerificationMismatch(t *testing.T) {
	fs := newFakePaymentStore()
	order := paypalOrder()
	order.PaymentResult = &models.PaymentResult{ID: "PP-123", PricePaid: "0"}
	fs.orders["order-1"] = order
	provider := &fakeProvider{capture: &paypal.CaptureResult{
		ID:     "PP-999",
		Status: paypal.StatusCompleted,
	}}
	ps := NewPaymentService(fs, provider, &fakeViewCache{}, &fakePaidPublisher{})

	_, err := ps.CaptureProviderOrder(context.Background(), "order-1", "PP-999")
	_, ok := IsVerificationError(err)
	require.True(t, ok)

	// Verification failure never reaches settlement.
	assert.Zero(t, fs.settleCalls)
	assert.False(t, fs.orders["order-1"].IsPaid)
}

func TestCaptureProviderOrderIncompleteStatus(t *testing.T) {
	fs := newFakePaymentStore()
	order := paypalOrder()
	order.PaymentResult = &models.PaymentResult{ID: "PP-123", PricePaid: "0"}
	fs.orders["order-1"] = order
	provider := &fakeProvider{capture: &paypal.CaptureResult{
		ID:     "PP-123",
		Status: "PENDING",
	}}
	ps := NewPaymentService(fs, provider, &fakeViewCache{}, &fakePaidPublisher{})

	_, err := ps.CaptureProviderOrder(context.Background(), "order-1", "PP-123")
	_, ok := IsVerificationError(err)
	require.True(t, ok)
	assert.Zero(t, fs.settleCalls)
}

func TestCaptureProviderOrderAlreadyPaid(t *testing.T) {
	fs := newFakePaymentStore()
	order := paypalOrder()
	order.IsPaid = true
	order.PaymentResult = &models.PaymentResult{ID: "PP-123"}
	fs.orders["order-1"] = order
	fs.stock["p1"] = 3
	ps := NewPaymentService(fs, &fakeProvider{}, &fakeViewCache{}, &fakePaidPublisher{})

	_, err := ps.CaptureProviderOrder(context.Background(), "order-1", "PP-123")
	assert.ErrorIs(t, err, store.ErrAlreadyPaid)

	// Second settlement attempt changes no stock.
	assert.Equal(t, 3, fs.stock["p1"])
}

func TestCaptureProviderOrderProviderFailure(t *testing.T) {
	fs := newFakePaymentStore()
	order := paypalOrder()
	order.PaymentResult = &models.PaymentResult{ID: "PP-123"}
	fs.orders["order-1"] = order
	provider := &fakeProvider{captureErr: errors.New("gateway timeout")}
	ps := NewPaymentService(fs, provider, &fakeViewCache{}, &fakePaidPublisher{})

	_, err := ps.CaptureProviderOrder(context.Background(), "order-1", "PP-123")
	require.Error(t, err)
	assert.False(t, fs.orders["order-1"].IsPaid)
}

func TestMarkPaidCashOnDelivery(t *testing.T) {
	fs := newFakePaymentStore()
	order := paypalOrder()
	order.PaymentMethod = models.PaymentMethodCashOnDelivery
	fs.orders["order-1"] = order
	fs.users["u1"] = &models.User{ID: "u1", Email: "ada@example.com"}
	fs.stock["p1"] = 2
	pub := &fakePaidPublisher{}
	ps := NewPaymentService(fs, &fakeProvider{}, &fakeViewCache{}, pub)

	settled, err := ps.MarkPaidCashOnDelivery(context.Background(), "order-1")
	require.NoError(t, err)
	assert.True(t, settled.IsPaid)
	assert.Contains(t, settled.PaymentResult.ID, "COD-")
	assert.Equal(t, "61.73", settled.PaymentResult.PricePaid)
	assert.Equal(t, 0, fs.stock["p1"])

	// COD has no payer email; the account email backs the receipt.
	require.Len(t, pub.paid, 1)
	assert.Equal(t, "ada@example.com", pub.paid[0].UserEmail)
}

func TestMarkPaidCashOnDeliveryRejectsPayPalOrder(t *testing.T) {
	fs := newFakePaymentStore()
	fs.orders["order-1"] = paypalOrder()
	ps := NewPaymentService(fs, &fakeProvider{}, &fakeViewCache{}, &fakePaidPublisher{})

	_, err := ps.MarkPaidCashOnDelivery(context.Background(), "order-1")
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
}

func TestSettlementInvalidatesProductViews(t *testing.T) {
	fs := newFakePaymentStore()
	order := paypalOrder()
	order.PaymentResult = &models.PaymentResult{ID: "PP-123", PricePaid: "0"}
	fs.orders["order-1"] = order
	fs.users["u1"] = &models.User{ID: "u1", Email: "ada@example.com"}
	fs.stock["p1"] = 5
	provider := &fakeProvider{capture: &paypal.CaptureResult{
		ID:         "PP-123",
		Status:     paypal.StatusCompleted,
		PayerEmail: "buyer@example.com",
		Amount:     "61.73",
	}}
	cache := &fakeViewCache{}
	ps := NewPaymentService(fs, provider, cache, &fakePaidPublisher{})

	_, err := ps.CaptureProviderOrder(context.Background(), "order-1", "PP-123")
	require.NoError(t, err)

	// The stock decrement makes cached product pages stale.
	assert.Contains(t, cache.productSlugs, "polo-shirt")
}

func TestSettlementClampsOversoldStock(t *testing.T) {
	fs := newFakePaymentStore()
	order := paypalOrder()
	order.PaymentMethod = models.PaymentMethodCashOnDelivery
	fs.orders["order-1"] = order
	fs.users["u1"] = &models.User{ID: "u1", Email: "ada@example.com"}
	fs.stock["p1"] = 1 // order wants 2
	ps := NewPaymentService(fs, &fakeProvider{}, &fakeViewCache{}, &fakePaidPublisher{})

	settled, err := ps.MarkPaidCashOnDelivery(context.Background(), "order-1")
	require.NoError(t, err)
	assert.True(t, settled.IsPaid)
	assert.Equal(t, 0, fs.stock["p1"])
}
