package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"

	"storefront/internal/analytics"
	"storefront/internal/auth"
	"storefront/internal/logger"
	"storefront/internal/services/storeapi"
	"storefront/internal/storefront"
)

// StateHandler serves the storefront view and the analytics data layer.
type StateHandler struct {
	sf        *storefront.Storefront
	dataLayer *analytics.DataLayer
	logger    *logger.Logger
}

func NewStateHandler(sf *storefront.Storefront, dataLayer *analytics.DataLayer, logger *logger.Logger) *StateHandler {
	return &StateHandler{
		sf:        sf,
		dataLayer: dataLayer,
		logger:    logger,
	}
}

func (h *StateHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.sf.View()})
}

func (h *StateHandler) DismissNotice(c *gin.Context) {
	h.sf.DismissNotice()
	c.JSON(http.StatusOK, gin.H{"data": h.sf.View()})
}

// DataLayer hands out every event pushed since the previous call.
func (h *StateHandler) DataLayer(c *gin.Context) {
	if h.dataLayer == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Data layer is not enabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": h.dataLayer.Drain()})
}

// respond writes the view after an action, mapping err to a status code.
func respond(c *gin.Context, sf *storefront.Storefront, err error) {
	view := sf.View()
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"data": view})
		return
	}

	var (
		authErr       *auth.AuthError
		validationErr *auth.ValidationError
		status        = http.StatusInternalServerError
		body          = gin.H{"error": err.Error(), "data": view}
	)
	switch {
	case errors.Is(err, storefront.ErrSignInRequired):
		status = http.StatusUnauthorized
	case errors.Is(err, storefront.ErrCartEmpty):
		status = http.StatusBadRequest
	case errors.Is(err, storefront.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
		body["field"] = validationErr.Field
	case errors.As(err, &authErr):
		status = http.StatusUnauthorized
		switch authErr.Code {
		case auth.CodeNotAllowed:
			status = http.StatusForbidden
		case auth.CodeUserNotFound:
			status = http.StatusNotFound
		}
		body["error"] = authErr.Message
		body["code"] = authErr.Code
	case storeapi.IsNotFound(err):
		status = http.StatusNotFound
	case storeapi.IsTransport(err):
		status = http.StatusBadGateway
	}
	c.JSON(status, body)
}
