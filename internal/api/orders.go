package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-service/internal/models"
)

// placeOrder handles checkout: the caller's cart becomes an order, or the
// envelope points at the page that fixes the missing precondition.
func (h *Handler) placeOrder(c *gin.Context) {
	result, err := h.orders.PlaceOrder(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	if !result.Success {
		respondFailure(c, http.StatusOK, result.Message, result.RedirectTo)
		return
	}
	c.JSON(http.StatusCreated, response{
		Success:    true,
		Message:    result.Message,
		RedirectTo: result.RedirectTo,
		Data:       gin.H{"order_id": result.OrderID},
	})
}

// getOrder handles order detail. Owners see their own orders; admins see
// any order; everyone else gets not-found.
func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"), currentUserID(c), h.isAdmin(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"order": order})
}

// listMyOrders handles the signed-in user's order history.
func (h *Handler) listMyOrders(c *gin.Context) {
	orders, err := h.orders.ListMyOrders(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"orders": orders})
}

func (h *Handler) isAdmin(c *gin.Context) bool {
	user, err := h.users.GetUser(c.Request.Context(), currentUserID(c))
	return err == nil && user.Role == models.RoleAdmin
}
