package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront-service/internal/models"
	"storefront-service/internal/paypal"
	"storefront-service/internal/store"
	"storefront-service/internal/util"
)

// Provider is the injected payment-provider capability. The service only
// ever creates a provider order and later captures it; everything else about
// the payment network stays behind this boundary.
type Provider interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal) (string, error)
	CaptureOrder(ctx context.Context, providerOrderID string) (*paypal.CaptureResult, error)
}

// paymentStore is the persistence surface the payment service needs.
type paymentStore interface {
	GetOrderByID(ctx context.Context, orderID string) (*models.Order, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	SetPaymentResult(ctx context.Context, orderID string, result models.PaymentResult) error
	SettlePayment(ctx context.Context, orderID string, result models.PaymentResult) (*models.Order, []store.OversoldLine, error)
}

// paidEventPublisher publishes OrderPaid after settlement commits.
type paidEventPublisher interface {
	PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error
}

// PaymentService drives the create/capture/settle flow against the injected
// provider and the settlement transaction.
type PaymentService struct {
	store     paymentStore
	provider  Provider
	cache     viewCache
	publisher paidEventPublisher
	logger    *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(store paymentStore, provider Provider, cache viewCache, publisher paidEventPublisher) *PaymentService {
	return &PaymentService{
		store:     store,
		provider:  provider,
		cache:     cache,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// CreateProviderOrder asks the provider for a new payment order over the
// order's total and stores the provider order id for later verification.
func (ps *PaymentService) CreateProviderOrder(ctx context.Context, orderID string) (string, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.CreateProviderOrder")
	defer span.End()

	order, err := ps.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order.IsPaid {
		return "", store.ErrAlreadyPaid
	}
	if order.PaymentMethod != models.PaymentMethodPayPal {
		return "", ErrInvalidPaymentMethod
	}

	providerOrderID, err := ps.provider.CreateOrder(ctx, order.TotalPrice)
	if err != nil {
		util.PaymentsFailedTotal.WithLabelValues("provider_create").Inc()
		return "", fmt.Errorf("provider order creation failed: %w", err)
	}

	result := models.PaymentResult{ID: providerOrderID, Status: "", Email: "", PricePaid: "0"}
	if err := ps.store.SetPaymentResult(ctx, orderID, result); err != nil {
		return "", err
	}

	ps.logger.Info("Provider order created",
		zap.String("order_id", orderID),
		zap.String("provider_order_id", providerOrderID))
	return providerOrderID, nil
}

// CaptureProviderOrder captures the provider order, verifies the response
// against what was stored at creation, and settles the payment. Verification
// failure never reaches the settlement transaction.
func (ps *PaymentService) CaptureProviderOrder(ctx context.Context, orderID, providerOrderID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.CaptureProviderOrder")
	defer span.End()

	order, err := ps.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.IsPaid {
		return nil, store.ErrAlreadyPaid
	}

	capture, err := ps.provider.CaptureOrder(ctx, providerOrderID)
	if err != nil {
		util.PaymentsFailedTotal.WithLabelValues("provider_capture").Inc()
		return nil, fmt.Errorf("provider capture failed: %w", err)
	}

	if order.PaymentResult == nil || order.PaymentResult.ID == "" {
		return nil, &VerificationError{Reason: "no provider order recorded for this order"}
	}
	if capture.ID != order.PaymentResult.ID || capture.ID != providerOrderID {
		util.PaymentsFailedTotal.WithLabelValues("verification").Inc()
		return nil, &VerificationError{Reason: "provider order id mismatch"}
	}
	if capture.Status != paypal.StatusCompleted {
		util.PaymentsFailedTotal.WithLabelValues("verification").Inc()
		return nil, &VerificationError{Reason: "capture status " + capture.Status}
	}

	result := models.PaymentResult{
		ID:        capture.ID,
		Status:    capture.Status,
		Email:     capture.PayerEmail,
		PricePaid: capture.Amount,
	}
	return ps.settle(ctx, orderID, order.PaymentMethod, result)
}

// MarkPaidCashOnDelivery settles a cash-on-delivery order with a synthetic
// payment result. Back-office only.
func (ps *PaymentService) MarkPaidCashOnDelivery(ctx context.Context, orderID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.MarkPaidCashOnDelivery")
	defer span.End()

	order, err := ps.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != models.PaymentMethodCashOnDelivery {
		return nil, ErrInvalidPaymentMethod
	}

	result := models.PaymentResult{
		ID:        "COD-" + uuid.New().String(),
		Status:    paypal.StatusCompleted,
		PricePaid: order.TotalPrice.StringFixed(2),
	}
	return ps.settle(ctx, orderID, order.PaymentMethod, result)
}

func (ps *PaymentService) settle(ctx context.Context, orderID, method string, result models.PaymentResult) (*models.Order, error) {
	start := time.Now()
	defer func() {
		util.SettlementLatency.Observe(time.Since(start).Seconds())
	}()

	order, oversold, err := ps.store.SettlePayment(ctx, orderID, result)
	if err != nil {
		return nil, err
	}

	for _, line := range oversold {
		util.OversoldClampTotal.Inc()
		ps.logger.Warn("Oversold: stock decrement floored at zero",
			zap.String("order_id", orderID),
			zap.String("product_id", line.ProductID),
			zap.Int("shortfall", line.Shortfall))
	}

	// Settlement changed stock; cached product pages must not keep serving
	// the pre-capture counts.
	if ps.cache != nil {
		for _, item := range order.Items {
			if item.Slug == "" {
				continue
			}
			if err := ps.cache.InvalidateProductView(ctx, item.Slug); err != nil {
				ps.logger.Warn("Failed to invalidate product view",
					zap.String("slug", item.Slug), zap.Error(err))
			}
		}
	}

	util.PaymentsSettledTotal.WithLabelValues(method).Inc()
	ps.logger.Info("Payment settled",
		zap.String("order_id", orderID),
		zap.String("provider_id", result.ID),
		zap.String("price_paid", result.PricePaid))

	if ps.publisher != nil {
		email := result.Email
		if email == "" {
			if user, err := ps.store.GetUserByID(ctx, order.UserID); err == nil {
				email = user.Email
			}
		}
		event := &models.OrderPaidEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderPaid,
				Timestamp: time.Now(),
			},
			OrderID:    order.ID,
			UserID:     order.UserID,
			UserEmail:  email,
			TotalPrice: order.TotalPrice.StringFixed(2),
			ProviderID: result.ID,
		}
		if err := ps.publisher.PublishOrderPaid(ctx, event); err != nil {
			ps.logger.Error("Failed to publish OrderPaid event", zap.Error(err))
		}
	}
	return order, nil
}
