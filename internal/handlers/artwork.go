// internal/handlers/artwork.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vortexart/marketplace-backend/internal/models"
	"github.com/vortexart/marketplace-backend/internal/services"
	"github.com/vortexart/marketplace-backend/internal/utils"
)

type ArtworkHandler struct {
	artworkService  *services.ArtworkService
	contractService *services.ContractService
	provenanceSvc   *services.ProvenanceService
	identityService *services.IdentityService
	storageService  *services.StorageService
	royaltyPolicy   *services.RoyaltyPolicy
}

func NewArtworkHandler(
	artworkService *services.ArtworkService,
	contractService *services.ContractService,
	provenanceSvc *services.ProvenanceService,
	identityService *services.IdentityService,
	storageService *services.StorageService,
	royaltyPolicy *services.RoyaltyPolicy,
) *ArtworkHandler {
	return &ArtworkHandler{
		artworkService:  artworkService,
		contractService: contractService,
		provenanceSvc:   provenanceSvc,
		identityService: identityService,
		storageService:  storageService,
		royaltyPolicy:   royaltyPolicy,
	}
}

// POST /artworks
func (h *ArtworkHandler) Mint(c *gin.Context) {
	creatorID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	result, err := h.artworkService.Mint(c.Request.Context(), creatorID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"artwork":  result.Artwork,
		"contract": result.Contract,
	})
}

// GET /artworks
func (h *ArtworkHandler) List(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	listParams := services.ListArtworksParams{
		Page:    params.Page,
		PerPage: params.Limit,
	}
	if ownerStr := c.Query("owner_id"); ownerStr != "" {
		if ownerID, err := uuid.Parse(ownerStr); err == nil {
			listParams.OwnerID = &ownerID
		}
	}
	if creatorStr := c.Query("creator_id"); creatorStr != "" {
		if creatorID, err := uuid.Parse(creatorStr); err == nil {
			listParams.CreatorID = &creatorID
		}
	}
	if status := c.Query("status"); status != "" {
		listParams.Status = models.ArtworkStatus(status)
	}

	artworks, total, err := h.artworkService.List(listParams)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(artworks, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /artworks/:id
func (h *ArtworkHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id", "artwork ID")
	if !ok {
		return
	}

	artwork, err := h.artworkService.Get(id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"artwork": artwork})
}

// GET /artworks/:id/contract
func (h *ArtworkHandler) GetContract(c *gin.Context) {
	id, ok := pathUUID(c, "id", "artwork ID")
	if !ok {
		return
	}

	record, err := h.contractService.Get(id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"contract": record})
}

// GET /artworks/:id/contract/lineage
func (h *ArtworkHandler) GetContractLineage(c *gin.Context) {
	id, ok := pathUUID(c, "id", "artwork ID")
	if !ok {
		return
	}

	records, err := h.contractService.GetLineage(id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"lineage": records})
}

// POST /artworks/:id/contract/supersede
func (h *ArtworkHandler) SupersedeContract(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id", "artwork ID")
	if !ok {
		return
	}

	var req struct {
		Royalties []services.RoyaltyEntry `json:"royalties"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	current, err := h.contractService.Get(id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if current.CreatorID != userID {
		utils.ForbiddenResponse(c, "Only the creator can supersede the contract")
		return
	}

	split, err := h.royaltyPolicy.Validate(req.Royalties)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	replacement, err := h.contractService.Supersede(current.ID, split)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"contract": replacement})
}

// GET /artworks/:id/history
func (h *ArtworkHandler) GetHistory(c *gin.Context) {
	id, ok := pathUUID(c, "id", "artwork ID")
	if !ok {
		return
	}

	events, err := h.provenanceSvc.History(id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	// Resolve aliases for display alongside the raw chain.
	ownerIDs := make([]uuid.UUID, 0, len(events)*2)
	for _, e := range events {
		if e.FromOwnerID != nil {
			ownerIDs = append(ownerIDs, *e.FromOwnerID)
		}
		ownerIDs = append(ownerIDs, e.ToOwnerID)
	}
	identities, err := h.identityService.ResolveMany(ownerIDs)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"history": events,
		"owners":  identities,
	})
}

// GET /artworks/:id/owner
func (h *ArtworkHandler) GetOwner(c *gin.Context) {
	id, ok := pathUUID(c, "id", "artwork ID")
	if !ok {
		return
	}

	ownerID, err := h.provenanceSvc.CurrentOwner(id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	identity, err := h.identityService.Resolve(ownerID)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"owner": identity})
}

// POST /artworks/:id/archive
func (h *ArtworkHandler) Archive(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id", "artwork ID")
	if !ok {
		return
	}

	if err := h.artworkService.Archive(id, userID); err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"message": "Artwork archived"})
}

// POST /artworks/:id/media
func (h *ArtworkHandler) UploadMedia(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id", "artwork ID")
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, "No file provided", nil)
		return
	}
	defer file.Close()

	result, err := h.storageService.UploadArtworkMedia(id, file, header)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	if err := h.artworkService.AttachMedia(id, userID, result.URL); err != nil {
		handleServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"upload": result})
}
