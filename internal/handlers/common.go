// internal/handlers/common.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vortexart/marketplace-backend/internal/services"
	"github.com/vortexart/marketplace-backend/internal/utils"
)

// currentUserID reads the authenticated user id set by the auth middleware.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return uuid.Nil, false
	}
	return userID, true
}

func pathUUID(c *gin.Context, param, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid "+label, nil)
		return uuid.Nil, false
	}
	return id, true
}

// handleServiceError maps service-layer failures onto the response envelope.
// Validation failures are 400s, missing resources 404s, state conflicts 409s,
// broken invariants and gateway outages 5xx.
func handleServiceError(c *gin.Context, err error) {
	var ineligible *services.IneligibleSwapError
	var rejected *services.SwapRejectedError

	switch {
	case errors.Is(err, services.ErrCapExceeded),
		errors.Is(err, services.ErrInvalidPercentage),
		errors.Is(err, services.ErrDuplicateRecipient):
		utils.UnprocessableResponse(c, "INVALID_SPLIT", err.Error())
	case errors.Is(err, services.ErrArtworkNotFound):
		utils.NotFoundResponse(c, "Artwork")
	case errors.Is(err, services.ErrContractNotFound):
		utils.NotFoundResponse(c, "Contract")
	case errors.Is(err, services.ErrSwapNotFound):
		utils.NotFoundResponse(c, "Swap")
	case errors.Is(err, services.ErrSaleNotFound):
		utils.NotFoundResponse(c, "Sale")
	case errors.Is(err, services.ErrAlreadySealed):
		utils.ConflictResponse(c, err.Error())
	case errors.Is(err, services.ErrAlreadyLocked):
		utils.ConflictResponse(c, err.Error())
	case errors.Is(err, services.ErrSwapNotCancellable):
		utils.ConflictResponse(c, err.Error())
	case errors.Is(err, services.ErrChainContinuity):
		utils.ConflictResponse(c, err.Error())
	case errors.Is(err, services.ErrInsufficientFunds):
		utils.UnprocessableResponse(c, "INSUFFICIENT_FUNDS", err.Error())
	case errors.As(err, &ineligible):
		utils.UnprocessableResponse(c, "SWAP_INELIGIBLE", err.Error())
	case errors.As(err, &rejected):
		utils.UnprocessableResponse(c, "SWAP_REJECTED", err.Error())
	case errors.Is(err, services.ErrGatewayUnavailable):
		utils.ErrorResponse(c, 502, "GATEWAY_UNAVAILABLE", err.Error(), nil)
	case errors.Is(err, services.ErrChainCorrupted):
		utils.InternalErrorResponse(c, err.Error())
	default:
		utils.InternalErrorResponse(c, err.Error())
	}
}
