package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-service/internal/models"
	"storefront-service/internal/store"
)

type addCartItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Qty       int    `json:"qty"`
}

type setQuantityRequest struct {
	Qty int `json:"qty"`
}

// getCart handles cart retrieval. A visitor without a cart gets an empty
// envelope rather than an error.
func (h *Handler) getCart(c *gin.Context) {
	cart, err := h.carts.GetCart(c.Request.Context(), cartOwner(c))
	if errors.Is(err, store.ErrCartNotFound) {
		respond(c, http.StatusOK, "", gin.H{"cart": nil})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"cart": cart})
}

// addCartItem handles adding a product to the cart.
func (h *Handler) addCartItem(c *gin.Context) {
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	cart, err := h.carts.AddItem(c.Request.Context(), cartOwner(c), req.ProductID, req.Qty)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, cartItemMessage(cart, req.ProductID, "added to cart"), gin.H{"cart": cart})
}

// setCartItemQuantity handles setting the absolute quantity of a cart line.
func (h *Handler) setCartItemQuantity(c *gin.Context) {
	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	cart, err := h.carts.SetQuantity(c.Request.Context(), cartOwner(c), c.Param("productId"), req.Qty)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Cart updated", gin.H{"cart": cart})
}

// incrementCartItem handles a +1 on a cart line.
func (h *Handler) incrementCartItem(c *gin.Context) {
	cart, err := h.carts.Increment(c.Request.Context(), cartOwner(c), c.Param("productId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, cartItemMessage(cart, c.Param("productId"), "updated in cart"), gin.H{"cart": cart})
}

// decrementCartItem handles a -1 on a cart line; at quantity one the line
// is removed instead.
func (h *Handler) decrementCartItem(c *gin.Context) {
	cart, err := h.carts.Decrement(c.Request.Context(), cartOwner(c), c.Param("productId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Cart updated", gin.H{"cart": cart})
}

// removeCartItem handles removing a cart line outright.
func (h *Handler) removeCartItem(c *gin.Context) {
	cart, err := h.carts.RemoveItem(c.Request.Context(), cartOwner(c), c.Param("productId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Item removed from cart", gin.H{"cart": cart})
}

// clearCart handles emptying the cart.
func (h *Handler) clearCart(c *gin.Context) {
	cart, err := h.carts.Clear(c.Request.Context(), cartOwner(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Cart cleared", gin.H{"cart": cart})
}

// cartItemMessage names the touched product in the mutation message when the
// line is still present.
func cartItemMessage(cart *models.Cart, productID, verb string) string {
	if cart != nil {
		if idx := cart.Items.Find(productID); idx >= 0 {
			return cart.Items[idx].Name + " " + verb
		}
	}
	return "Cart updated"
}
