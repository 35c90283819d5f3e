package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"
)

// cartStore is the persistence surface the cart service needs.
type cartStore interface {
	GetCart(ctx context.Context, owner models.CartOwner) (*models.Cart, error)
	MutateCart(ctx context.Context, owner models.CartOwner, createIfMissing bool, fn store.CartMutator) (*models.Cart, error)
	ClearCart(ctx context.Context, owner models.CartOwner) (*models.Cart, error)
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
}

// viewCache invalidates cached display pages after a cart changes.
type viewCache interface {
	InvalidateProductView(ctx context.Context, slug string) error
	InvalidateCartView(ctx context.Context, ownerKey string) error
}

// CartService implements the cart mutation operations. Every mutation runs
// the stock check and the item-list rewrite inside one store transaction and
// recomputes the full price breakdown from the resulting list.
type CartService struct {
	store  cartStore
	cache  viewCache
	logger *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(store cartStore, cache viewCache) *CartService {
	return &CartService{
		store:  store,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

// GetCart returns the owner's cart, or ErrCartNotFound.
func (cs *CartService) GetCart(ctx context.Context, owner models.CartOwner) (*models.Cart, error) {
	return cs.store.GetCart(ctx, owner)
}

// AddItem adds qty units of a product to the owner's cart, creating the cart
// on first use. An existing line for the product has its quantity raised
// instead; the combined quantity is validated against live stock.
func (cs *CartService) AddItem(ctx context.Context, owner models.CartOwner, productID string, qty int) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	if qty < 1 {
		qty = 1
	}

	product, err := cs.store.GetProductByID(ctx, productID)
	if err != nil {
		countMutationFailure("add", err)
		return nil, err
	}

	cart, err := cs.store.MutateCart(ctx, owner, true, func(items models.CartItems, stock store.StockReader) (models.CartItems, error) {
		available, err := stock(productID)
		if err != nil {
			return nil, err
		}

		idx := items.Find(productID)
		newQty := qty
		if idx >= 0 {
			newQty = items[idx].Qty + qty
		}
		if available < newQty {
			return nil, &store.InsufficientStockError{
				ProductID: productID,
				Available: available,
				Requested: newQty,
			}
		}

		if idx >= 0 {
			items[idx].Qty = newQty
			return items, nil
		}

		image := ""
		if len(product.Images) > 0 {
			image = product.Images[0]
		}
		return append(items, models.CartItem{
			ProductID: product.ID,
			Name:      product.Name,
			Slug:      product.Slug,
			Image:     image,
			Price:     product.Price,
			Qty:       qty,
		}), nil
	})
	if err != nil {
		countMutationFailure("add", err)
		return nil, err
	}

	util.CartMutationsTotal.WithLabelValues("add").Inc()
	cs.invalidateViews(ctx, owner, product.Slug)
	return cart, nil
}

// SetQuantity sets the absolute quantity of a cart line. A quantity of zero
// or less removes the line.
func (cs *CartService) SetQuantity(ctx context.Context, owner models.CartOwner, productID string, qty int) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.SetQuantity")
	defer span.End()

	if qty <= 0 {
		return cs.RemoveItem(ctx, owner, productID)
	}

	cart, err := cs.store.MutateCart(ctx, owner, false, func(items models.CartItems, stock store.StockReader) (models.CartItems, error) {
		idx := items.Find(productID)
		if idx < 0 {
			return nil, store.ErrCartItemNotFound
		}

		available, err := stock(productID)
		if err != nil {
			return nil, err
		}
		if available < qty {
			return nil, &store.InsufficientStockError{
				ProductID: productID,
				Available: available,
				Requested: qty,
			}
		}

		items[idx].Qty = qty
		return items, nil
	})
	if err != nil {
		countMutationFailure("set_qty", err)
		return nil, err
	}

	util.CartMutationsTotal.WithLabelValues("set_qty").Inc()
	cs.invalidateViews(ctx, owner, cartSlug(cart, productID))
	return cart, nil
}

// Increment raises a cart line's quantity by one, subject to stock.
func (cs *CartService) Increment(ctx context.Context, owner models.CartOwner, productID string) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Increment")
	defer span.End()

	cart, err := cs.store.MutateCart(ctx, owner, false, func(items models.CartItems, stock store.StockReader) (models.CartItems, error) {
		idx := items.Find(productID)
		if idx < 0 {
			return nil, store.ErrCartItemNotFound
		}

		newQty := items[idx].Qty + 1
		available, err := stock(productID)
		if err != nil {
			return nil, err
		}
		if available < newQty {
			return nil, &store.InsufficientStockError{
				ProductID: productID,
				Available: available,
				Requested: newQty,
			}
		}

		items[idx].Qty = newQty
		return items, nil
	})
	if err != nil {
		countMutationFailure("increment", err)
		return nil, err
	}

	util.CartMutationsTotal.WithLabelValues("increment").Inc()
	cs.invalidateViews(ctx, owner, cartSlug(cart, productID))
	return cart, nil
}

// Decrement lowers a cart line's quantity by one. A quantity-1 line is
// removed entirely; a zero-quantity line never exists.
func (cs *CartService) Decrement(ctx context.Context, owner models.CartOwner, productID string) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Decrement")
	defer span.End()

	var touchedSlug string
	cart, err := cs.store.MutateCart(ctx, owner, false, func(items models.CartItems, _ store.StockReader) (models.CartItems, error) {
		idx := items.Find(productID)
		if idx < 0 {
			return nil, store.ErrCartItemNotFound
		}

		touchedSlug = items[idx].Slug
		if items[idx].Qty <= 1 {
			return append(items[:idx], items[idx+1:]...), nil
		}
		items[idx].Qty--
		return items, nil
	})
	if err != nil {
		countMutationFailure("decrement", err)
		return nil, err
	}

	util.CartMutationsTotal.WithLabelValues("decrement").Inc()
	cs.invalidateViews(ctx, owner, touchedSlug)
	return cart, nil
}

// RemoveItem deletes a cart line entirely.
func (cs *CartService) RemoveItem(ctx context.Context, owner models.CartOwner, productID string) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.RemoveItem")
	defer span.End()

	var removedSlug string
	cart, err := cs.store.MutateCart(ctx, owner, false, func(items models.CartItems, _ store.StockReader) (models.CartItems, error) {
		idx := items.Find(productID)
		if idx < 0 {
			return nil, store.ErrCartItemNotFound
		}
		removedSlug = items[idx].Slug
		return append(items[:idx], items[idx+1:]...), nil
	})
	if err != nil {
		countMutationFailure("remove", err)
		return nil, err
	}

	util.CartMutationsTotal.WithLabelValues("remove").Inc()
	cs.invalidateViews(ctx, owner, removedSlug)
	return cart, nil
}

// Clear empties the cart and zeroes all four price fields.
func (cs *CartService) Clear(ctx context.Context, owner models.CartOwner) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Clear")
	defer span.End()

	cart, err := cs.store.ClearCart(ctx, owner)
	if err != nil {
		return nil, err
	}

	util.CartMutationsTotal.WithLabelValues("clear").Inc()
	cs.invalidateViews(ctx, owner, "")
	return cart, nil
}

// invalidateViews tells dependent display pages to refresh. Failures are
// logged, never surfaced: the cart write already committed.
func (cs *CartService) invalidateViews(ctx context.Context, owner models.CartOwner, productSlug string) {
	if cs.cache == nil {
		return
	}
	if err := cs.cache.InvalidateCartView(ctx, owner.Key()); err != nil {
		cs.logger.Warn("Failed to invalidate cart view", zap.Error(err))
	}
	if productSlug != "" {
		if err := cs.cache.InvalidateProductView(ctx, productSlug); err != nil {
			cs.logger.Warn("Failed to invalidate product view",
				zap.String("slug", productSlug), zap.Error(err))
		}
	}
}

// countMutationFailure records a failed cart mutation under the reason the
// store reported. Every mutation path reports through here so the counter's
// op label stays complete.
func countMutationFailure(op string, err error) {
	switch {
	case errors.Is(err, store.ErrCartItemNotFound):
		util.CartMutationsFailedTotal.WithLabelValues(op, "item_not_found").Inc()
	case errors.Is(err, store.ErrCartNotFound):
		util.CartMutationsFailedTotal.WithLabelValues(op, "cart_not_found").Inc()
	case errors.Is(err, store.ErrProductNotFound):
		util.CartMutationsFailedTotal.WithLabelValues(op, "product_not_found").Inc()
	default:
		if _, ok := store.IsInsufficientStock(err); ok {
			util.CartMutationsFailedTotal.WithLabelValues(op, "insufficient_stock").Inc()
		}
	}
}

func cartSlug(cart *models.Cart, productID string) string {
	if cart == nil {
		return ""
	}
	if idx := cart.Items.Find(productID); idx >= 0 {
		return cart.Items[idx].Slug
	}
	return ""
}
