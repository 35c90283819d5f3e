package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront-service/internal/models"
)

type signUpRequest struct {
	Name            string `json:"name" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

type signInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// signUp handles account creation. The new user is signed in immediately,
// which also hands their anonymous cart over to the account.
func (h *Handler) signUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	if req.Password != req.ConfirmPassword {
		respondFailure(c, http.StatusBadRequest, "Passwords do not match", "")
		return
	}

	if _, err := h.users.SignUp(c.Request.Context(), req.Name, req.Email, req.Password); err != nil {
		h.respondError(c, err)
		return
	}

	// SignIn runs the cart merge and gives us one code path for sessions.
	user, err := h.users.SignIn(c.Request.Context(), req.Email, req.Password, c.GetString(ctxSessionCartID))
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.issueSession(c, user.ID); err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Signed up successfully", gin.H{"user": publicUser(user)})
}

// signIn handles credential sign-in and cart merge.
func (h *Handler) signIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	user, err := h.users.SignIn(c.Request.Context(), req.Email, req.Password, c.GetString(ctxSessionCartID))
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.issueSession(c, user.ID); err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Signed in successfully", gin.H{"user": publicUser(user)})
}

// signOut handles session teardown.
func (h *Handler) signOut(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		token, _ = c.Cookie(sessionTokenCookie)
	}
	if token != "" {
		if err := h.sessions.DeleteSession(c.Request.Context(), token); err != nil {
			h.logger.Warn("Failed to delete session", zap.Error(err))
		}
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionTokenCookie, "", -1, "/", "", h.secureCookies, true)
	respond(c, http.StatusOK, "Signed out successfully", nil)
}

// getProfile handles the signed-in user's own profile.
func (h *Handler) getProfile(c *gin.Context) {
	user, err := h.users.GetUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"user": publicUser(user)})
}

// updateAddress handles storing the shipping address on the profile.
func (h *Handler) updateAddress(c *gin.Context) {
	var address models.Address
	if err := c.ShouldBindJSON(&address); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.users.UpdateAddress(c.Request.Context(), currentUserID(c), address); err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Address updated successfully", nil)
}

// updatePaymentMethod handles storing the checkout payment method.
func (h *Handler) updatePaymentMethod(c *gin.Context) {
	var req struct {
		PaymentMethod string `json:"payment_method" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.users.UpdatePaymentMethod(c.Request.Context(), currentUserID(c), req.PaymentMethod); err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Payment method updated successfully", nil)
}

func (h *Handler) issueSession(c *gin.Context, userID string) error {
	token := uuid.New().String()
	ttl := time.Duration(h.cfg.Session.TTLDays) * 24 * time.Hour
	if err := h.sessions.CreateSession(c.Request.Context(), token, userID, ttl); err != nil {
		return err
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionTokenCookie, token, h.sessionTTL(), "/", "", h.secureCookies, true)
	return nil
}

// publicUser strips the credential fields from a profile response.
func publicUser(u *models.User) gin.H {
	return gin.H{
		"id":             u.ID,
		"name":           u.Name,
		"email":          u.Email,
		"role":           u.Role,
		"address":        u.Address,
		"payment_method": u.PaymentMethod,
	}
}
