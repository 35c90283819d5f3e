package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"
)

// orderStore is the persistence surface the order service needs.
type orderStore interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetCart(ctx context.Context, owner models.CartOwner) (*models.Cart, error)
	PlaceOrder(ctx context.Context, user *models.User) (*models.Order, error)
	GetOrderByID(ctx context.Context, orderID string) (*models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error)
	ListOrders(ctx context.Context, page, pageSize int) ([]models.Order, int64, error)
	GetSalesSummary(ctx context.Context, latestLimit int) (*store.SalesSummary, error)
	MarkDelivered(ctx context.Context, orderID string) (*models.Order, error)
}

// orderEventPublisher publishes order lifecycle events.
type orderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderDelivered(ctx context.Context, event *models.OrderDeliveredEvent) error
}

// Placement failure reasons, each mapped to a remediation redirect.
const (
	PlacementUnauthenticated      = "unauthenticated"
	PlacementEmptyCart            = "empty_cart"
	PlacementMissingAddress       = "missing_address"
	PlacementMissingPaymentMethod = "missing_payment_method"
)

// PlacementResult is what checkout hands back to the caller: either the new
// order id, or a failure reason plus the page that fixes it.
type PlacementResult struct {
	Success    bool
	Reason     string
	Message    string
	RedirectTo string
	OrderID    string
}

// OrderService handles checkout and order lifecycle reads.
type OrderService struct {
	store     orderStore
	publisher orderEventPublisher
	logger    *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(store orderStore, publisher orderEventPublisher) *OrderService {
	return &OrderService{
		store:     store,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// PlaceOrder converts the caller's cart into an order. Preconditions are
// checked in a fixed order and each short-circuits with its own failure
// reason; the transactional body is all-or-nothing.
func (os *OrderService) PlaceOrder(ctx context.Context, userID string) (*PlacementResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder")
	defer span.End()

	if userID == "" {
		util.OrderPlacementFailedTotal.WithLabelValues(PlacementUnauthenticated).Inc()
		return &PlacementResult{
			Reason:     PlacementUnauthenticated,
			Message:    "User not authenticated",
			RedirectTo: "/sign-in",
		}, nil
	}

	user, err := os.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	cart, err := os.store.GetCart(ctx, models.CartOwner{UserID: userID})
	if err != nil && !errors.Is(err, store.ErrCartNotFound) {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if cart == nil || len(cart.Items) == 0 {
		util.OrderPlacementFailedTotal.WithLabelValues(PlacementEmptyCart).Inc()
		return &PlacementResult{
			Reason:     PlacementEmptyCart,
			Message:    "Your cart is empty",
			RedirectTo: "/cart",
		}, nil
	}

	if user.Address == nil {
		util.OrderPlacementFailedTotal.WithLabelValues(PlacementMissingAddress).Inc()
		return &PlacementResult{
			Reason:     PlacementMissingAddress,
			Message:    "Please provide a shipping address",
			RedirectTo: "/shipping-address",
		}, nil
	}

	if user.PaymentMethod == nil || *user.PaymentMethod == "" {
		util.OrderPlacementFailedTotal.WithLabelValues(PlacementMissingPaymentMethod).Inc()
		return &PlacementResult{
			Reason:     PlacementMissingPaymentMethod,
			Message:    "Please provide a payment method",
			RedirectTo: "/payment-method",
		}, nil
	}

	order, err := os.store.PlaceOrder(ctx, user)
	if errors.Is(err, store.ErrCartEmpty) {
		// The cart emptied between the precondition check and the locked
		// re-read inside the transaction.
		util.OrderPlacementFailedTotal.WithLabelValues(PlacementEmptyCart).Inc()
		return &PlacementResult{
			Reason:     PlacementEmptyCart,
			Message:    "Your cart is empty",
			RedirectTo: "/cart",
		}, nil
	}
	if err != nil {
		util.OrderPlacementFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	util.OrdersPlacedTotal.Inc()
	os.logger.Info("Order placed",
		zap.String("order_id", order.ID),
		zap.String("user_id", userID),
		zap.String("total", order.TotalPrice.StringFixed(2)))

	if os.publisher != nil {
		event := &models.OrderCreatedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderCreated,
				Timestamp: time.Now(),
			},
			OrderID:       order.ID,
			UserID:        order.UserID,
			PaymentMethod: order.PaymentMethod,
			TotalPrice:    order.TotalPrice.StringFixed(2),
			Items:         eventItems(order.Items),
		}
		if err := os.publisher.PublishOrderCreated(ctx, event); err != nil {
			os.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
		}
	}

	return &PlacementResult{
		Success:    true,
		Message:    "Order created successfully",
		OrderID:    order.ID,
		RedirectTo: "/order/" + order.ID,
	}, nil
}

// GetOrder retrieves an order with its items, restricted to the owner unless
// the caller is an admin.
func (os *OrderService) GetOrder(ctx context.Context, orderID, actorUserID string, actorIsAdmin bool) (*models.Order, error) {
	order, err := os.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actorIsAdmin && order.UserID != actorUserID {
		// Hide other users' orders rather than admitting they exist.
		return nil, store.ErrOrderNotFound
	}
	return order, nil
}

// ListMyOrders retrieves the caller's order history, newest first.
func (os *OrderService) ListMyOrders(ctx context.Context, userID string) ([]models.Order, error) {
	return os.store.GetOrdersByUserID(ctx, userID)
}

// ListOrders retrieves a page of all orders for the back office.
func (os *OrderService) ListOrders(ctx context.Context, page, pageSize int) ([]models.Order, int64, error) {
	return os.store.ListOrders(ctx, page, pageSize)
}

// GetSalesSummary aggregates the admin overview numbers.
func (os *OrderService) GetSalesSummary(ctx context.Context, latestLimit int) (*store.SalesSummary, error) {
	return os.store.GetSalesSummary(ctx, latestLimit)
}

// MarkDelivered flags a paid order as delivered and publishes the
// corresponding event.
func (os *OrderService) MarkDelivered(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := os.store.MarkDelivered(ctx, orderID)
	if err != nil {
		return nil, err
	}

	os.logger.Info("Order delivered", zap.String("order_id", order.ID))

	if os.publisher != nil {
		event := &models.OrderDeliveredEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderDelivered,
				Timestamp: time.Now(),
			},
			OrderID: order.ID,
			UserID:  order.UserID,
		}
		if err := os.publisher.PublishOrderDelivered(ctx, event); err != nil {
			os.logger.Error("Failed to publish OrderDelivered event", zap.Error(err))
		}
	}
	return order, nil
}

func eventItems(items []models.OrderItem) []models.OrderItemData {
	out := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		out = append(out, models.OrderItemData{
			ProductID: item.ProductID,
			Name:      item.Name,
			Qty:       item.Qty,
			Price:     item.Price.StringFixed(2),
		})
	}
	return out
}
