// internal/handlers/sale.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/vortexart/marketplace-backend/internal/services"
	"github.com/vortexart/marketplace-backend/internal/utils"
)

type SaleHandler struct {
	saleService *services.SaleService
}

func NewSaleHandler(saleService *services.SaleService) *SaleHandler {
	return &SaleHandler{saleService: saleService}
}

// POST /sales/intent
func (h *SaleHandler) CreateIntent(c *gin.Context) {
	buyerID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	result, err := h.saleService.CreateIntent(buyerID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"sale":          result.Sale,
		"client_secret": result.ClientSecret,
	})
}

// POST /sales/:id/confirm
func (h *SaleHandler) Confirm(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}
	id, ok := pathUUID(c, "id", "sale ID")
	if !ok {
		return
	}

	sale, err := h.saleService.Confirm(id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"sale": sale})
}

// GET /sales/:id
func (h *SaleHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id", "sale ID")
	if !ok {
		return
	}

	sale, err := h.saleService.Get(id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"sale": sale})
}
