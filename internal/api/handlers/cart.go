package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/storefront"
)

type CartHandler struct {
	sf     *storefront.Storefront
	logger *logger.Logger
}

func NewCartHandler(sf *storefront.Storefront, logger *logger.Logger) *CartHandler {
	return &CartHandler{
		sf:     sf,
		logger: logger,
	}
}

func (h *CartHandler) Open(c *gin.Context) {
	_, err := h.sf.OpenCart()
	respond(c, h.sf, err)
}

// CloseModal closes the cart drawer or an auth form.
func (h *CartHandler) CloseModal(c *gin.Context) {
	_, err := h.sf.CloseModal()
	respond(c, h.sf, err)
}

type addItemRequest struct {
	ProductID models.ID `json:"productId" binding:"required"`
	Quantity  int       `json:"quantity"`
}

func (h *CartHandler) AddItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	respond(c, h.sf, h.sf.AddToCart(c.Request.Context(), req.ProductID, req.Quantity))
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// UpdateItem sets the quantity of :productId. Zero or less removes the line.
func (h *CartHandler) UpdateItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	productID := models.ID(c.Param("productId"))
	respond(c, h.sf, h.sf.UpdateQuantity(c.Request.Context(), productID, *req.Quantity))
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	productID := models.ID(c.Param("productId"))
	respond(c, h.sf, h.sf.RemoveFromCart(c.Request.Context(), productID))
}

func (h *CartHandler) Checkout(c *gin.Context) {
	order, err := h.sf.Checkout(c.Request.Context())
	if err != nil {
		respond(c, h.sf, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order, "data": h.sf.View()})
}
