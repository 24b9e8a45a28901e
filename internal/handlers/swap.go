// internal/handlers/swap.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vortexart/marketplace-backend/internal/services"
	"github.com/vortexart/marketplace-backend/internal/utils"
)

type SwapHandler struct {
	swapService *services.SwapService
}

func NewSwapHandler(swapService *services.SwapService) *SwapHandler {
	return &SwapHandler{swapService: swapService}
}

type createSwapRequest struct {
	InitiatorArtworkID    uuid.UUID `json:"initiator_artwork_id" validate:"required"`
	CounterpartyID        uuid.UUID `json:"counterparty_id" validate:"required"`
	CounterpartyArtworkID uuid.UUID `json:"counterparty_artwork_id" validate:"required"`
	PaymentAmount         *float64  `json:"payment_amount,omitempty"`
	Message               string    `json:"message,omitempty" validate:"max=1000"`
}

// POST /swaps
func (h *SwapHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req createSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	swap, err := h.swapService.RequestSwap(services.RequestSwapInput{
		InitiatorID:           userID,
		InitiatorArtworkID:    req.InitiatorArtworkID,
		CounterpartyID:        req.CounterpartyID,
		CounterpartyArtworkID: req.CounterpartyArtworkID,
		PaymentAmount:         req.PaymentAmount,
		Message:               req.Message,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"swap": swap})
}

// POST /swaps/:id/accept
//
// Accepting drives the swap all the way to submission: consent, locks, then
// the paired chain transfers. Finalize picks it up from there.
func (h *SwapHandler) Accept(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id", "swap ID")
	if !ok {
		return
	}

	if _, err := h.swapService.Accept(id, userID); err != nil {
		handleServiceError(c, err)
		return
	}
	if _, err := h.swapService.Lock(id); err != nil {
		handleServiceError(c, err)
		return
	}
	swap, err := h.swapService.Submit(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"swap": swap})
}

// POST /swaps/:id/finalize
func (h *SwapHandler) Finalize(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}
	id, ok := pathUUID(c, "id", "swap ID")
	if !ok {
		return
	}

	swap, err := h.swapService.Finalize(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"swap": swap})
}

// POST /swaps/:id/cancel
func (h *SwapHandler) Cancel(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id", "swap ID")
	if !ok {
		return
	}

	swap, err := h.swapService.Cancel(id, userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"swap": swap})
}

// GET /swaps/:id
func (h *SwapHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id", "swap ID")
	if !ok {
		return
	}

	swap, err := h.swapService.Get(id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"swap": swap})
}

// GET /swaps
func (h *SwapHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	swaps, err := h.swapService.ListForUser(userID, params.Limit)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"swaps": swaps})
}
