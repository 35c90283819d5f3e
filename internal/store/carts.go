package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"storefront-service/internal/models"
	"storefront-service/internal/pricing"
)

// StockReader reads a product's live stock level from inside the mutation
// transaction, so the availability check and the cart write cannot interleave
// with a concurrent settlement or mutation.
type StockReader func(productID string) (int, error)

// CartMutator transforms a cart's item list. It runs with the cart row locked.
type CartMutator func(items models.CartItems, stock StockReader) (models.CartItems, error)

// GetCart retrieves the owner's cart. Authenticated identity wins over the
// anonymous session token.
func (s *Store) GetCart(ctx context.Context, owner models.CartOwner) (*models.Cart, error) {
	cart, err := s.getCart(ctx, s.db, owner, false)
	if err != nil {
		return nil, err
	}
	return cart, nil
}

type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func (s *Store) getCart(ctx context.Context, q queryer, owner models.CartOwner, forUpdate bool) (*models.Cart, error) {
	var (
		cart  models.Cart
		query string
		arg   string
	)
	if owner.UserID != "" {
		query = "SELECT * FROM carts WHERE user_id = $1"
		arg = owner.UserID
	} else {
		query = "SELECT * FROM carts WHERE session_cart_id = $1 AND user_id IS NULL"
		arg = owner.SessionCartID
	}
	if forUpdate {
		query += " FOR UPDATE"
	}

	err := q.GetContext(ctx, &cart, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// MutateCart applies fn to the owner's cart inside one transaction: the cart
// row is locked first, stock reads happen under the same transaction, the
// price breakdown is recomputed from the resulting item list and persisted
// together with it in a single write. Concurrent mutations of the same cart
// therefore serialize instead of losing updates.
//
// When createIfMissing is set and no cart exists yet, a fresh empty cart is
// created for the owner before fn runs (the add-to-cart path). Otherwise a
// missing cart is ErrCartNotFound.
func (s *Store) MutateCart(ctx context.Context, owner models.CartOwner, createIfMissing bool, fn CartMutator) (*models.Cart, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	cart, err := s.getCart(ctx, tx, owner, true)
	if errors.Is(err, ErrCartNotFound) && createIfMissing {
		cart, err = s.createCart(ctx, tx, owner)
	}
	if err != nil {
		return nil, err
	}

	stock := func(productID string) (int, error) {
		var n int
		err := tx.GetContext(ctx, &n, "SELECT stock FROM products WHERE id = $1", productID)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrProductNotFound
		}
		return n, err
	}

	items, err := fn(cart.Items, stock)
	if err != nil {
		return nil, err
	}

	prices := pricing.Compute(items)
	cart.Items = items
	cart.ItemsPrice = prices.ItemsPrice
	cart.ShippingPrice = prices.ShippingPrice
	cart.TaxPrice = prices.TaxPrice
	cart.TotalPrice = prices.TotalPrice

	if err := writeCart(ctx, tx, cart); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *Store) createCart(ctx context.Context, tx *sqlx.Tx, owner models.CartOwner) (*models.Cart, error) {
	cart := &models.Cart{
		SessionCartID: owner.SessionCartID,
		Items:         models.CartItems{},
	}
	var userID *string
	if owner.UserID != "" {
		userID = &owner.UserID
		cart.UserID = userID
	}

	query := `
		INSERT INTO carts (user_id, session_cart_id, items, items_price, shipping_price, tax_price, total_price)
		VALUES ($1, $2, '[]'::jsonb, 0, 0, 0, 0)
		RETURNING id, created_at, updated_at`

	row := tx.QueryRowxContext(ctx, query, userID, owner.SessionCartID)
	if err := row.Scan(&cart.ID, &cart.CreatedAt, &cart.UpdatedAt); err != nil {
		return nil, err
	}
	return cart, nil
}

func writeCart(ctx context.Context, tx *sqlx.Tx, cart *models.Cart) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE carts
		SET items = $1, items_price = $2, shipping_price = $3, tax_price = $4, total_price = $5,
		    updated_at = NOW()
		WHERE id = $6`,
		cart.Items, cart.ItemsPrice, cart.ShippingPrice, cart.TaxPrice, cart.TotalPrice, cart.ID)
	return err
}

// ClearCart empties the owner's cart and zeroes all four price fields. Unlike
// the other mutations the stored breakdown is not recomputed from the empty
// list (which would carry the base shipping fee); an emptied cart reads as
// all zeros, matching the reset performed by order placement.
func (s *Store) ClearCart(ctx context.Context, owner models.CartOwner) (*models.Cart, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	cart, err := s.getCart(ctx, tx, owner, true)
	if err != nil {
		return nil, err
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
	return cart, nil
}

// MergeCartOnSignIn reassigns the anonymous cart identified by sessionCartID
// to the signing-in user, replacing any cart the user already had. A no-op
// when no anonymous cart exists.
func (s *Store) MergeCartOnSignIn(ctx context.Context, sessionCartID, userID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	anon, err := s.getCart(ctx, tx, models.CartOwner{SessionCartID: sessionCartID}, true)
	if errors.Is(err, ErrCartNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM carts WHERE user_id = $1 AND id <> $2", userID, anon.ID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE carts SET user_id = $1, updated_at = NOW() WHERE id = $2", userID, anon.ID); err != nil {
		return err
	}

	return tx.Commit()
}
