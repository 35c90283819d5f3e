package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// adminListOrders handles the paginated admin order listing.
func (h *Handler) adminListOrders(c *gin.Context) {
	page := queryPage(c)
	orders, total, err := h.orders.ListOrders(c.Request.Context(), page, h.cfg.Store.AdminPageSize)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{
		"orders":      orders,
		"total_pages": totalPages(total, h.cfg.Store.AdminPageSize),
	})
}

// adminListProducts handles the paginated admin product listing.
func (h *Handler) adminListProducts(c *gin.Context) {
	page := queryPage(c)
	products, total, err := h.catalog.ListProducts(c.Request.Context(), page, h.cfg.Store.AdminPageSize)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{
		"products":    products,
		"total_pages": totalPages(total, h.cfg.Store.AdminPageSize),
	})
}

// adminMarkPaid handles settling a cash-on-delivery order once the courier
// confirms payment. It runs the same stock settlement as a PayPal capture.
func (h *Handler) adminMarkPaid(c *gin.Context) {
	order, err := h.payments.MarkPaidCashOnDelivery(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Order marked as paid", gin.H{"order": order})
}

// adminMarkDelivered handles marking a paid order as delivered.
func (h *Handler) adminMarkDelivered(c *gin.Context) {
	order, err := h.orders.MarkDelivered(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Order marked as delivered", gin.H{"order": order})
}

// adminSalesSummary handles the dashboard summary.
func (h *Handler) adminSalesSummary(c *gin.Context) {
	summary, err := h.orders.GetSalesSummary(c.Request.Context(), h.cfg.Store.SummaryLatestCount)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"summary": summary})
}
