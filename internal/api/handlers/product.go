package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/storefront"
)

type ProductHandler struct {
	sf     *storefront.Storefront
	logger *logger.Logger
}

func NewProductHandler(sf *storefront.Storefront, logger *logger.Logger) *ProductHandler {
	return &ProductHandler{
		sf:     sf,
		logger: logger,
	}
}

// Get opens the product page for :id.
func (h *ProductHandler) Get(c *gin.Context) {
	id := models.ID(c.Param("id"))

	product, err := h.sf.ViewProduct(c.Request.Context(), id)
	if err != nil {
		respond(c, h.sf, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": product})
}

func (h *ProductHandler) Close(c *gin.Context) {
	h.sf.CloseProduct()
	respond(c, h.sf, nil)
}

type searchRequest struct {
	Query string `json:"query"`
}

func (h *ProductHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.sf.Search(c.Request.Context(), req.Query)
	respond(c, h.sf, nil)
}

type categoryRequest struct {
	Category string `json:"category"`
}

func (h *ProductHandler) Category(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.sf.FilterCategory(c.Request.Context(), req.Category)
	respond(c, h.sf, nil)
}

func (h *ProductHandler) ClearFilters(c *gin.Context) {
	h.sf.ClearFilters(c.Request.Context())
	respond(c, h.sf, nil)
}
