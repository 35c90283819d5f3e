package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-service/internal/service"
	"storefront-service/internal/store"
)

// response is the uniform envelope every endpoint answers with. Mutations
// that fail a business precondition still return it with success=false and,
// where it helps, the page that fixes the problem.
type response struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	RedirectTo string      `json:"redirect_to,omitempty"`
	Data       interface{} `json:"data,omitempty"`
}

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func respondFailure(c *gin.Context, status int, message, redirectTo string) {
	c.JSON(status, response{
		Success:    false,
		Message:    message,
		RedirectTo: redirectTo,
	})
}

// respondError is the single place typed errors become HTTP answers. Anything
// it does not recognize is logged and hidden behind a generic message.
func (h *Handler) respondError(c *gin.Context, err error) {
	if ise, ok := store.IsInsufficientStock(err); ok {
		respondFailure(c, http.StatusConflict,
			fmt.Sprintf("Not enough stock. Only %d left", ise.Available), "")
		return
	}
	if _, ok := service.IsVerificationError(err); ok {
		respondFailure(c, http.StatusBadRequest, "Payment could not be verified", "")
		return
	}

	switch {
	case errors.Is(err, store.ErrProductNotFound):
		respondFailure(c, http.StatusNotFound, "Product not found", "")
	case errors.Is(err, store.ErrCartNotFound):
		respondFailure(c, http.StatusNotFound, "Cart not found", "")
	case errors.Is(err, store.ErrCartItemNotFound):
		respondFailure(c, http.StatusNotFound, "Item not found in cart", "")
	case errors.Is(err, store.ErrOrderNotFound):
		respondFailure(c, http.StatusNotFound, "Order not found", "")
	case errors.Is(err, store.ErrUserNotFound):
		respondFailure(c, http.StatusNotFound, "User not found", "")
	case errors.Is(err, store.ErrEmailTaken):
		respondFailure(c, http.StatusConflict, "Email is already in use", "")
	case errors.Is(err, store.ErrAlreadyPaid):
		respondFailure(c, http.StatusConflict, "Order is already paid", "")
	case errors.Is(err, store.ErrNotPaid):
		respondFailure(c, http.StatusConflict, "Order is not paid", "")
	case errors.Is(err, service.ErrInvalidCredentials):
		respondFailure(c, http.StatusUnauthorized, "Invalid email or password", "")
	case errors.Is(err, service.ErrInvalidPaymentMethod):
		respondFailure(c, http.StatusBadRequest, "Invalid payment method", "")
	default:
		h.logger.Error("Unhandled request error",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		respondFailure(c, http.StatusInternalServerError, "Something went wrong", "")
	}
}

func respondBadRequest(c *gin.Context, err error) {
	respondFailure(c, http.StatusBadRequest, "Invalid request body: "+err.Error(), "")
}
