package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"storefront-service/internal/models"
	"storefront-service/internal/pricing"
)

// PlaceOrder atomically creates an order snapshotted from the user's profile
// and cart, copies every cart line into an order line, and empties the cart.
// Either all three sub-steps commit or none do; a failure mid-way leaves no
// partial order and an untouched cart.
//
// The cart is re-read under its row lock inside the transaction: the caller's
// precondition checks ran outside it, and a concurrent mutation may have
// changed the item list since. Snapshotting from the locked state means no
// cart line can be silently discarded by the reset. A cart that emptied in
// the meantime is ErrCartEmpty.
//
// Profile preconditions (address, payment method) are checked by the caller;
// this is only the transactional body.
func (s *Store) PlaceOrder(ctx context.Context, user *models.User) (*models.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	cart, err := s.getCart(ctx, tx, models.CartOwner{UserID: user.ID}, true)
	if errors.Is(err, ErrCartNotFound) {
		return nil, ErrCartEmpty
	}
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, ErrCartEmpty
	}

	order := &models.Order{
		UserID:          user.ID,
		ShippingAddress: *user.Address,
		PaymentMethod:   *user.PaymentMethod,
		ItemsPrice:      cart.ItemsPrice,
		ShippingPrice:   cart.ShippingPrice,
		TaxPrice:        cart.TaxPrice,
		TotalPrice:      cart.TotalPrice,
	}

	query := `
		INSERT INTO orders (user_id, shipping_address, payment_method, items_price, shipping_price, tax_price, total_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	row := tx.QueryRowxContext(ctx, query,
		order.UserID, order.ShippingAddress, order.PaymentMethod,
		order.ItemsPrice, order.ShippingPrice, order.TaxPrice, order.TotalPrice)
	if err := row.Scan(&order.ID, &order.CreatedAt); err != nil {
		return nil, err
	}

	for _, item := range cart.Items {
		oi := models.OrderItem{
			OrderID:   order.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			Slug:      item.Slug,
			Image:     item.Image,
			Price:     item.Price,
			Qty:       item.Qty,
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, name, slug, image, price, qty)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			oi.OrderID, oi.ProductID, oi.Name, oi.Slug, oi.Image, oi.Price, oi.Qty)
		if err != nil {
			return nil, err
		}
		order.Items = append(order.Items, oi)
	}

	zero := pricing.Zero()
	cart.Items = models.CartItems{}
	cart.ItemsPrice = zero.ItemsPrice
	cart.ShippingPrice = zero.ShippingPrice
	cart.TaxPrice = zero.TaxPrice
	cart.TotalPrice = zero.TotalPrice
	if err := writeCart(ctx, tx, cart); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return order, nil
}

// OversoldLine reports a stock clamp during settlement: the decrement would
// have driven stock below zero, so it was floored instead.
type OversoldLine struct {
	ProductID string
	Shortfall int
}

// SettlePayment applies a confirmed payment atomically: every order line's
// product stock is decremented (floored at zero), then the order is marked
// paid with the provider's result. A second call for the same order returns
// ErrAlreadyPaid and changes nothing; the paid check holds the order row lock
// for the whole transaction, so duplicate provider webhooks cannot race past
// the guard.
func (s *Store) SettlePayment(ctx context.Context, orderID string, result models.PaymentResult) (*models.Order, []OversoldLine, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	var isPaid bool
	err = tx.GetContext(ctx, &isPaid, "SELECT is_paid FROM orders WHERE id = $1 FOR UPDATE", orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if isPaid {
		return nil, nil, ErrAlreadyPaid
	}

	items, err := getOrderItems(ctx, tx, orderID)
	if err != nil {
		return nil, nil, err
	}

	var oversold []OversoldLine
	for _, item := range items {
		var stock int
		err := tx.GetContext(ctx, &stock,
			"SELECT stock FROM products WHERE id = $1 FOR UPDATE", item.ProductID)
		if errors.Is(err, sql.ErrNoRows) {
			// Product deleted since the order was placed; nothing to decrement.
			continue
		}
		if err != nil {
			return nil, nil, err
		}

		if stock < item.Qty {
			oversold = append(oversold, OversoldLine{
				ProductID: item.ProductID,
				Shortfall: item.Qty - stock,
			})
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE products SET stock = GREATEST(stock - $1, 0) WHERE id = $2",
			item.Qty, item.ProductID)
		if err != nil {
			return nil, nil, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET is_paid = TRUE, paid_at = NOW(), payment_result = $1
		WHERE id = $2`,
		result, orderID)
	if err != nil {
		return nil, nil, err
	}

	order, err := getOrder(ctx, tx, orderID)
	if err != nil {
		return nil, nil, err
	}
	order.Items = items

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return order, oversold, nil
}

// SetPaymentResult stores the provider order id issued at payment creation so
// capture can later be verified against it. Rejected for paid orders.
func (s *Store) SetPaymentResult(ctx context.Context, orderID string, result models.PaymentResult) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET payment_result = $1 WHERE id = $2 AND is_paid = FALSE",
		result, orderID)
	if err != nil {
		return err
	}
	if err := requireRowAffected(res, ErrOrderNotFound); err != nil {
		// Distinguish a paid order from a missing one.
		var exists bool
		if checkErr := s.db.GetContext(ctx, &exists,
			"SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)", orderID); checkErr == nil && exists {
			return ErrAlreadyPaid
		}
		return err
	}
	return nil
}

// MarkDelivered flags a paid order as delivered
func (s *Store) MarkDelivered(ctx context.Context, orderID string) (*models.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var isPaid bool
	err = tx.GetContext(ctx, &isPaid, "SELECT is_paid FROM orders WHERE id = $1 FOR UPDATE", orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if !isPaid {
		return nil, ErrNotPaid
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE orders SET is_delivered = TRUE, delivered_at = NOW() WHERE id = $1", orderID)
	if err != nil {
		return nil, err
	}

	order, err := getOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrderByID retrieves an order with its line items
func (s *Store) GetOrderByID(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := getOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	items, err := getOrderItems(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

// GetOrdersByUserID retrieves a user's orders, newest first
func (s *Store) GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders, `
		SELECT o.*, u.name AS user_name
		FROM orders o JOIN users u ON u.id = o.user_id
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC`, userID)
	return orders, err
}

// ListOrders retrieves a page of all orders for the back office
func (s *Store) ListOrders(ctx context.Context, page, pageSize int) ([]models.Order, int64, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders, `
		SELECT o.*, u.name AS user_name
		FROM orders o JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC
		LIMIT $1 OFFSET $2`, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM orders"); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// MonthlySales is one calendar-month sales bucket for the admin chart
type MonthlySales struct {
	Month      string          `db:"month" json:"month"`
	TotalSales decimal.Decimal `db:"total_sales" json:"total_sales"`
}

// SalesSummary aggregates the back-office overview numbers
type SalesSummary struct {
	OrdersCount   int64           `json:"orders_count"`
	ProductsCount int64           `json:"products_count"`
	UsersCount    int64           `json:"users_count"`
	TotalSales    decimal.Decimal `json:"total_sales"`
	SalesData     []MonthlySales  `json:"sales_data"`
	LatestOrders  []models.Order  `json:"latest_orders"`
}

// GetSalesSummary computes the admin overview: entity counts, aggregate
// sales, per-month sales buckets and the most recent orders.
func (s *Store) GetSalesSummary(ctx context.Context, latestLimit int) (*SalesSummary, error) {
	summary := &SalesSummary{TotalSales: decimal.Zero}

	counts := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM orders", &summary.OrdersCount},
		{"SELECT COUNT(*) FROM products", &summary.ProductsCount},
		{"SELECT COUNT(*) FROM users", &summary.UsersCount},
	}
	for _, c := range counts {
		if err := s.db.GetContext(ctx, c.dest, c.query); err != nil {
			return nil, err
		}
	}

	err := s.db.GetContext(ctx, &summary.TotalSales,
		"SELECT COALESCE(SUM(total_price), 0) FROM orders")
	if err != nil {
		return nil, err
	}

	err = s.db.SelectContext(ctx, &summary.SalesData, `
		SELECT to_char(created_at, 'MM/YY') AS month,
		       SUM(total_price) AS total_sales
		FROM orders
		GROUP BY to_char(created_at, 'MM/YY'), date_trunc('month', created_at)
		ORDER BY date_trunc('month', created_at)`)
	if err != nil {
		return nil, err
	}

	err = s.db.SelectContext(ctx, &summary.LatestOrders, `
		SELECT o.*, u.name AS user_name
		FROM orders o JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC
		LIMIT $1`, latestLimit)
	if err != nil {
		return nil, err
	}

	return summary, nil
}

type rowQueryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

var (
	_ rowQueryer = (*sqlx.DB)(nil)
	_ rowQueryer = (*sqlx.Tx)(nil)
)

func getOrder(ctx context.Context, q rowQueryer, orderID string) (*models.Order, error) {
	var order models.Order
	err := q.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func getOrderItems(ctx context.Context, q rowQueryer, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := q.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1", orderID)
	return items, err
}
