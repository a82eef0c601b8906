package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/auth"
	"storefront/internal/logger"
	"storefront/internal/storefront"
)

type AuthHandler struct {
	sf     *storefront.Storefront
	google *auth.GoogleFederator
	logger *logger.Logger
}

// NewAuthHandler takes a nil google when Google sign-in is not configured.
func NewAuthHandler(sf *storefront.Storefront, google *auth.GoogleFederator, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{
		sf:     sf,
		google: google,
		logger: logger,
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	respond(c, h.sf, h.sf.Login(c.Request.Context(), req.Email, req.Password))
}

type registerRequest struct {
	Email           string `json:"email" binding:"required"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	DisplayName     string `json:"displayName"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.sf.Register(c.Request.Context(), req.Email, req.Password, req.ConfirmPassword, req.DisplayName)
	respond(c, h.sf, err)
}

// GoogleURL starts the Google flow; the caller sends the resulting code to Google.
func (h *AuthHandler) GoogleURL(c *gin.Context) {
	if h.google == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Google sign-in is not configured"})
		return
	}

	url, state, err := h.google.AuthURL()
	if err != nil {
		h.logger.Error("google auth url: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start Google sign-in"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url, "state": state})
}

type googleRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

func (h *AuthHandler) Google(c *gin.Context) {
	var req googleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := auth.WithGrant(c.Request.Context(), auth.Grant{Code: req.Code, State: req.State})
	respond(c, h.sf, h.sf.SignInWithGoogle(ctx))
}

type resetRequest struct {
	Email string `json:"email" binding:"required"`
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	respond(c, h.sf, h.sf.ResetPassword(c.Request.Context(), req.Email))
}

type passwordRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	respond(c, h.sf, h.sf.ChangePassword(c.Request.Context(), req.Password, req.ConfirmPassword))
}

func (h *AuthHandler) Logout(c *gin.Context) {
	h.sf.Logout(c.Request.Context())
	respond(c, h.sf, nil)
}

type modeRequest struct {
	Action storefront.Action `json:"action" binding:"required"`
}

// Mode drives the auth modal: request_auth, switch_to_register, switch_to_login or close.
func (h *AuthHandler) Mode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var err error
	switch req.Action {
	case storefront.ActionRequestAuth:
		_, err = h.sf.RequestAuth()
	case storefront.ActionSwitchToRegister:
		_, err = h.sf.SwitchToRegister()
	case storefront.ActionSwitchToLogin:
		_, err = h.sf.SwitchToLogin()
	case storefront.ActionClose:
		_, err = h.sf.CloseModal()
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action " + string(req.Action)})
		return
	}
	respond(c, h.sf, err)
}
