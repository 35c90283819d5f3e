package worker

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/util"
)

// receiptStore is the persistence surface the receipt worker needs.
type receiptStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
}

// ReceiptWorker consumes OrderPaid events and dispatches purchase receipts.
// Delivery from the broker is at-least-once, so each event id is recorded in
// processed_events and replays are dropped.
type ReceiptWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        receiptStore
	logger       *zap.Logger
}

// NewReceiptWorker creates a new receipt worker
func NewReceiptWorker(consumer *broker.Consumer, store receiptStore) *ReceiptWorker {
	w := &ReceiptWorker{
		consumer: consumer,
		store:    store,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderPaid(w.handleOrderPaid)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *ReceiptWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting receipt worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ReceiptWorker) Stop() error {
	w.logger.Info("Stopping receipt worker")
	return w.consumer.Close()
}

func (w *ReceiptWorker) handleOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check processed event: %w", err)
	}
	if processed {
		w.logger.Info("Skipping already processed event",
			zap.String("event_id", event.EventID),
			zap.String("order_id", event.OrderID))
		return nil
	}

	order, err := w.store.GetOrderByID(ctx, event.OrderID)
	if err != nil {
		return fmt.Errorf("failed to load order %s for receipt: %w", event.OrderID, err)
	}

	w.logger.Info("Dispatching purchase receipt",
		zap.String("order_id", order.ID),
		zap.String("recipient", event.UserEmail),
		zap.String("total", event.TotalPrice),
		zap.String("summary", receiptSummary(order)))
	util.ReceiptsDispatchedTotal.Inc()

	if err := w.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

// receiptSummary renders the line items of a receipt as a single string.
func receiptSummary(order *models.Order) string {
	lines := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, fmt.Sprintf("%s x%d @ %s", item.Name, item.Qty, item.Price))
	}
	return strings.Join(lines, "; ")
}
