package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/DionathaGoulart/pets-auth/internal/config"
	"github.com/DionathaGoulart/pets-auth/internal/domain"
	"github.com/DionathaGoulart/pets-auth/internal/domain/oauth"
	"github.com/DionathaGoulart/pets-auth/internal/http/middleware"
	"github.com/DionathaGoulart/pets-auth/internal/service"
	authsvc "github.com/DionathaGoulart/pets-auth/internal/service/auth"
)

// AuthHandler exposes the account and federated login endpoints.
type AuthHandler struct {
	Auth   *service.AuthService
	Google authsvc.GoogleService
	Cfg    config.Config
	Logger *zap.Logger
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(auth *service.AuthService, google authsvc.GoogleService, cfg config.Config, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{Auth: auth, Google: google, Cfg: cfg, Logger: logger}
}

// Register creates an account and returns a fresh session.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Username  string `json:"username"`
		Email     string `json:"email"`
		Password1 string `json:"password1"`
		Password2 string `json:"password2"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid registration payload."})
		return
	}
	if req.Password1 != req.Password2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "error_description": "The two password fields didn't match."})
		return
	}

	session, err := h.Auth.Register(c.Request.Context(), service.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password1,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// Login authenticates with username or email plus password.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid login payload."})
		return
	}

	identifier := req.Username
	if identifier == "" {
		identifier = req.Email
	}
	session, err := h.Auth.Login(c.Request.Context(), identifier, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Refresh rotates the refresh token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid refresh payload."})
		return
	}

	pair, err := h.Auth.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

// Logout revokes the refresh token.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid logout payload."})
		return
	}

	if err := h.Auth.Logout(c.Request.Context(), req.Refresh); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Successfully logged out."})
}

// GoogleCallback redeems the Google authorization code for a session.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	var req struct {
		Code        string `json:"code"`
		RedirectURI string `json:"redirect_uri"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid callback payload."})
		return
	}

	session, err := h.Google.Callback(c.Request.Context(), authsvc.CallbackInput{
		Code:        req.Code,
		RedirectURI: req.RedirectURI,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Profile returns the authenticated user's profile.
func (h *AuthHandler) Profile(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authentication required."})
		return
	}
	payload, err := h.Auth.Profile(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

// UpdateProfile applies a full or partial update to the profile.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authentication required."})
		return
	}

	var req struct {
		Username  *string `json:"username"`
		Email     *string `json:"email"`
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid profile payload."})
		return
	}

	payload, err := h.Auth.UpdateProfile(c.Request.Context(), userID, service.ProfileUpdate{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

// Dashboard returns the greeting for the authenticated user.
func (h *AuthHandler) Dashboard(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authentication required."})
		return
	}
	payload, err := h.Auth.Dashboard(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if claims, ok := middleware.GetAccessClaims(c); ok {
		h.log().Debug("dashboard viewed",
			zap.Int64("user_id", userID), zap.String("username", claims.Username))
	}
	c.JSON(http.StatusOK, payload)
}

// respondError translates service errors to HTTP responses. Internal
// details leak to the body only in development mode.
func (h *AuthHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "error_description": err.Error()})
	case errors.Is(err, domain.ErrDuplicateEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": "duplicate_email", "error_description": "A user is already registered with this e-mail address."})
	case errors.Is(err, domain.ErrDuplicateUsername):
		c.JSON(http.StatusBadRequest, gin.H{"error": "duplicate_username", "error_description": "A user with that username already exists."})
	case errors.Is(err, domain.ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_credentials", "error_description": "Unable to log in with provided credentials."})
	case errors.Is(err, domain.ErrInvalidRefreshToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token_not_valid", "error_description": "Token is invalid or expired."})
	case errors.Is(err, oauth.ErrInvalidGrant):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_grant", "error_description": "Authorization code is invalid or expired."})
	case errors.Is(err, oauth.ErrIncompleteProfile):
		c.JSON(http.StatusBadRequest, gin.H{"error": "incomplete_profile", "error_description": "Provider profile is missing required fields."})
	case errors.Is(err, oauth.ErrProviderUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "provider_unavailable", "error_description": "Identity provider is unavailable. Try again later."})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "error_description": "Resource not found."})
	default:
		h.log().Error("unhandled request error", zap.Error(err))
		description := "Internal server error."
		if h.Cfg.Debug() {
			description = err.Error()
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": description})
	}
}

func (h *AuthHandler) log() *zap.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return zap.L()
}
