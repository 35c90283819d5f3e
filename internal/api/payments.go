package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type captureRequest struct {
	ProviderOrderID string `json:"provider_order_id" binding:"required"`
}

// createPayPalOrder handles opening a PayPal order for an unpaid order. The
// returned provider order id is what the client's PayPal button approves.
func (h *Handler) createPayPalOrder(c *gin.Context) {
	providerOrderID, err := h.payments.CreateProviderOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "PayPal order created", gin.H{
		"provider_order_id": providerOrderID,
	})
}

// capturePayPalOrder handles capturing an approved PayPal order. Capture is
// verified against what was stored at creation before any settlement runs.
func (h *Handler) capturePayPalOrder(c *gin.Context) {
	var req captureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	order, err := h.payments.CaptureProviderOrder(c.Request.Context(), c.Param("id"), req.ProviderOrderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Your order has been paid", gin.H{"order": order})
}
