package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const productViewTTL = 5 * time.Minute

// latestProducts handles the home page product strip.
func (h *Handler) latestProducts(c *gin.Context) {
	products, err := h.catalog.GetLatestProducts(c.Request.Context(), h.cfg.Store.LatestProductsMax)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"products": products})
}

// listProducts handles the paginated catalog listing.
func (h *Handler) listProducts(c *gin.Context) {
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

// getProduct handles product detail by slug, served from the Redis view
// cache when possible. A stale cache is impossible: cart and settlement
// paths invalidate the slug key on every stock-affecting write.
func (h *Handler) getProduct(c *gin.Context) {
	slug := c.Param("slug")
	ctx := c.Request.Context()

	if cached, ok, err := h.sessions.GetCachedView(ctx, "product:"+slug); err == nil && ok {
		var payload json.RawMessage = cached
		respond(c, http.StatusOK, "", payload)
		return
	}

	product, err := h.catalog.GetProductBySlug(ctx, slug)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if payload, err := json.Marshal(product); err == nil {
		if err := h.sessions.CacheView(ctx, "product:"+slug, payload, productViewTTL); err != nil {
			h.logger.Warn("Failed to cache product view", zap.String("slug", slug), zap.Error(err))
		}
	}
	respond(c, http.StatusOK, "", product)
}

func queryPage(c *gin.Context) int {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	return page
}

func totalPages(total int64, pageSize int) int64 {
	if pageSize <= 0 {
		return 0
	}
	return (total + int64(pageSize) - 1) / int64(pageSize)
}
