// internal/handlers/verify.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/vortexart/marketplace-backend/internal/services"
	"github.com/vortexart/marketplace-backend/internal/utils"
)

// VerifyHandler exposes public chain verification: anyone holding a
// transaction id can check its status and get the explorer link, no account
// needed.
type VerifyHandler struct {
	gateway services.Gateway
}

func NewVerifyHandler(gateway services.Gateway) *VerifyHandler {
	return &VerifyHandler{gateway: gateway}
}

// GET /verify/:txid
func (h *VerifyHandler) Verify(c *gin.Context) {
	txID := c.Param("txid")
	if txID == "" {
		utils.BadRequestResponse(c, "Transaction ID is required", nil)
		return
	}

	confirmation, err := h.gateway.CheckStatus(c.Request.Context(), txID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"confirmation":     confirmation,
		"verification_url": h.gateway.VerificationURL(txID),
	})
}
