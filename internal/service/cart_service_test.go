package service

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/models"
	"storefront-service/internal/pricing"
	"storefront-service/internal/store"
	"storefront-service/internal/util"
)

// fakeCartStore runs mutators against an in-memory cart the way the real
// store does inside its transaction: stock reads from a live map, the item
// list rewritten, prices recomputed from the result.
type fakeCartStore struct {
	cart     *models.Cart
	stock    map[string]int
	products map[string]*models.Product
}

func (f *fakeCartStore) GetProductByID(_ context.Context, id string) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, store.ErrProductNotFound
	}
	return p, nil
}

func (f *fakeCartStore) GetCart(_ context.Context, _ models.CartOwner) (*models.Cart, error) {
	if f.cart == nil {
		return nil, store.ErrCartNotFound
	}
	return f.cart, nil
}

func (f *fakeCartStore) MutateCart(_ context.Context, owner models.CartOwner, createIfMissing bool, fn store.CartMutator) (*models.Cart, error) {
	if f.cart == nil {
		if !createIfMissing {
			return nil, store.ErrCartNotFound
		}
		f.cart = &models.Cart{ID: "cart-1", SessionCartID: owner.SessionCartID, Items: models.CartItems{}}
	}

	items := append(models.CartItems{}, f.cart.Items...)
	out, err := fn(items, func(id string) (int, error) {
		s, ok := f.stock[id]
		if !ok {
			return 0, store.ErrProductNotFound
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}

	f.cart.Items = out
	f.applyBreakdown(pricing.Compute(out))
	return f.cart, nil
}

func (f *fakeCartStore) ClearCart(_ context.Context, _ models.CartOwner) (*models.Cart, error) {
	if f.cart == nil {
		return nil, store.ErrCartNotFound
	}
	f.cart.Items = models.CartItems{}
	f.applyBreakdown(pricing.Zero())
	return f.cart, nil
}

func (f *fakeCartStore) applyBreakdown(b models.PriceBreakdown) {
	f.cart.ItemsPrice = b.ItemsPrice
	f.cart.ShippingPrice = b.ShippingPrice
	f.cart.TaxPrice = b.TaxPrice
	f.cart.TotalPrice = b.TotalPrice
}

type fakeViewCache struct {
	productSlugs []string
	ownerKeys    []string
}

func (f *fakeViewCache) InvalidateProductView(_ context.Context, slug string) error {
	f.productSlugs = append(f.productSlugs, slug)
	return nil
}

func (f *fakeViewCache) InvalidateCartView(_ context.Context, ownerKey string) error {
	f.ownerKeys = append(f.ownerKeys, ownerKey)
	return nil
}

func newCartFixture() (*CartService, *fakeCartStore, *fakeViewCache) {
	fs := &fakeCartStore{
		stock: map[string]int{"p1": 5, "p2": 1},
		products: map[string]*models.Product{
			"p1": {
				ID:     "p1",
				Name:   "Polo Shirt",
				Slug:   "polo-shirt",
				Images: []string{"/images/polo-1.jpg", "/images/polo-2.jpg"},
				Price:  decimal.RequireFromString("19.99"),
				Stock:  5,
			},
			"p2": {
				ID:    "p2",
				Name:  "Leather Belt",
				Slug:  "leather-belt",
				Price: decimal.RequireFromString("5.00"),
				Stock: 1,
			},
		},
	}
	cache := &fakeViewCache{}
	return NewCartService(fs, cache), fs, cache
}

func anonOwner() models.CartOwner {
	return models.CartOwner{SessionCartID: "sc-1"}
}

func TestAddItemCreatesCart(t *testing.T) {
	cs, fs, cache := newCartFixture()

	cart, err := cs.AddItem(context.Background(), anonOwner(), "p1", 2)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, "p1", cart.Items[0].ProductID)
	assert.Equal(t, 2, cart.Items[0].Qty)
	assert.Equal(t, "/images/polo-1.jpg", cart.Items[0].Image)
	assert.Equal(t, "39.98", cart.ItemsPrice.StringFixed(2))
	assert.NotNil(t, fs.cart)
	assert.Contains(t, cache.productSlugs, "polo-shirt")
	assert.Contains(t, cache.ownerKeys, "session:sc-1")
}

func TestAddItemMergesExistingLine(t *testing.T) {
	cs, _, _ := newCartFixture()
	ctx := context.Background()

	_, err := cs.AddItem(ctx, anonOwner(), "p1", 2)
	require.NoError(t, err)

	cart, err := cs.AddItem(ctx, anonOwner(), "p1", 3)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Qty)
}

func TestAddItemInsufficientStock(t *testing.T) {
	cs, fs, _ := newCartFixture()
	ctx := context.Background()

	_, err := cs.AddItem(ctx, anonOwner(), "p1", 4)
	require.NoError(t, err)

	_, err = cs.AddItem(ctx, anonOwner(), "p1", 2)
	ise, ok := store.IsInsufficientStock(err)
	require.True(t, ok)
	assert.Equal(t, "p1", ise.ProductID)
	assert.Equal(t, 5, ise.Available)
	assert.Equal(t, 6, ise.Requested)

	// Failed mutation leaves the cart untouched.
	assert.Equal(t, 4, fs.cart.Items[0].Qty)
}

func TestAddItemDefaultsQuantityToOne(t *testing.T) {
	cs, _, _ := newCartFixture()

	cart, err := cs.AddItem(context.Background(), anonOwner(), "p2", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, cart.Items[0].Qty)
}

func TestAddItemUnknownProduct(t *testing.T) {
	cs, _, _ := newCartFixture()

	_, err := cs.AddItem(context.Background(), anonOwner(), "missing", 1)
	assert.ErrorIs(t, err, store.ErrProductNotFound)
}

func TestSetQuantity(t *testing.T) {
	cs, _, _ := newCartFixture()
	ctx := context.Background()

	_, err := cs.AddItem(ctx, anonOwner(), "p1", 1)
	require.NoError(t, err)

	cart, err := cs.SetQuantity(ctx, anonOwner(), "p1", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, cart.Items[0].Qty)
}

func TestSetQuantityZeroRemovesLine(t *testing.T) {
	cs, _, _ := newCartFixture()
	ctx := context.Background()

	_, err := cs.AddItem(ctx, anonOwner(), "p1", 2)
	require.NoError(t, err)

	cart, err := cs.SetQuantity(ctx, anonOwner(), "p1", 0)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestSetQuantityMissingLine(t *testing.T) {
	cs, _, _ := newCartFixture()
	ctx := context.Background()

	_, err := cs.AddItem(ctx, anonOwner(), "p1", 1)
	require.NoError(t, err)

	_, err = cs.SetQuantity(ctx, anonOwner(), "p2", 2)
	assert.ErrorIs(t, err, store.ErrCartItemNotFound)
}

func TestIncrementRespectsStock(t *testing.T) {
	cs, _, _ := newCartFixture()
	ctx := context.Background()

	_, err := cs.AddItem(ctx, anonOwner(), "p2", 1)
	require.NoError(t, err)

	_, err = cs.Increment(ctx, anonOwner(), "p2")
	ise, ok := store.IsInsufficientStock(err)
	require.True(t, ok)
	assert.Equal(t, 1, ise.Available)
	assert.Equal(t, 2, ise.Requested)
}

func TestDecrementLowersQuantity(t *testing.T) {
	cs, _, _ := newCartFixture()
	ctx := context.Background()

	_, err := cs.AddItem(ctx, anonOwner(), "p1", 3)
	require.NoError(t, err)

	cart, err := cs.Decrement(ctx, anonOwner(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, cart.Items[0].Qty)
}

func TestDecrementRemovesLastUnit(t *testing.T) {
	cs, _, _ := newCartFixture()
	ctx := context.Background()

	_, err := cs.AddItem(ctx, anonOwner(), "p1", 1)
	require.NoError(t, err)

	cart, err := cs.Decrement(ctx, anonOwner(), "p1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestDecrementInvalidatesProductView(t *testing.T) {
	cs, _, cache := newCartFixture()
	ctx := context.Background()

	_, err := cs.AddItem(ctx, anonOwner(), "p1", 2)
	require.NoError(t, err)

	before := len(cache.productSlugs)
	_, err = cs.Decrement(ctx, anonOwner(), "p1")
	require.NoError(t, err)

	require.Greater(t, len(cache.productSlugs), before)
	assert.Equal(t, "polo-shirt", cache.productSlugs[len(cache.productSlugs)-1])
}

func TestDecrementRemovedLineStillInvalidatesView(t *testing.T) {
	cs, _, cache := newCartFixture()
	ctx := context.Background()

	_, err := cs.AddItem(ctx, anonOwner(), "p2", 1)
	require.NoError(t, err)

	// The line is gone from the resulting cart, so the slug has to be
	// captured before removal.
	_, err = cs.Decrement(ctx, anonOwner(), "p2")
	require.NoError(t, err)
	assert.Equal(t, "leather-belt", cache.productSlugs[len(cache.productSlugs)-1])
}

func TestMutationFailuresAreCounted(t *testing.T) {
	cs, _, _ := newCartFixture()
	ctx := context.Background()

	_, err := cs.AddItem(ctx, anonOwner(), "p2", 1)
	require.NoError(t, err)

	counter := func(op, reason string) float64 {
		return testutil.ToFloat64(util.CartMutationsFailedTotal.WithLabelValues(op, reason))
	}

	incBefore := counter("increment", "item_not_found")
	_, err = cs.Increment(ctx, anonOwner(), "p1")
	require.ErrorIs(t, err, store.ErrCartItemNotFound)
	assert.Equal(t, incBefore+1, counter("increment", "item_not_found"))

	decBefore := counter("decrement", "item_not_found")
	_, err = cs.Decrement(ctx, anonOwner(), "p1")
	require.ErrorIs(t, err, store.ErrCartItemNotFound)
	assert.Equal(t, decBefore+1, counter("decrement", "item_not_found"))

	rmBefore := counter("remove", "item_not_found")
	_, err = cs.RemoveItem(ctx, anonOwner(), "p1")
	require.ErrorIs(t, err, store.ErrCartItemNotFound)
	assert.Equal(t, rmBefore+1, counter("remove", "item_not_found"))

	stockBefore := counter("increment", "insufficient_stock")
	_, err = cs.Increment(ctx, anonOwner(), "p2")
	_, ok := store.IsInsufficientStock(err)
	require.True(t, ok)
	assert.Equal(t, stockBefore+1, counter("increment", "insufficient_stock"))
}

func TestRemoveItemRecomputesPrices(t *testing.T) {
	cs, _, _ := newCartFixture()
	ctx := context.Background()

	_, err := cs.AddItem(ctx, anonOwner(), "p1", 2)
	require.NoError(t, err)
	_, err = cs.AddItem(ctx, anonOwner(), "p2", 1)
	require.NoError(t, err)

	cart, err := cs.RemoveItem(ctx, anonOwner(), "p2")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "39.98", cart.ItemsPrice.StringFixed(2))
}

func TestClearZeroesAllPrices(t *testing.T) {
	cs, _, _ := newCartFixture()
	ctx := context.Background()

	_, err := cs.AddItem(ctx, anonOwner(), "p1", 2)
	require.NoError(t, err)

	cart, err := cs.Clear(ctx, anonOwner())
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.ItemsPrice.IsZero())
	assert.True(t, cart.ShippingPrice.IsZero())
	assert.True(t, cart.TaxPrice.IsZero())
	assert.True(t, cart.TotalPrice.IsZero())
}
