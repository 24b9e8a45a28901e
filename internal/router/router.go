// internal/router/router.go
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vortexart/marketplace-backend/internal/config"
	"github.com/vortexart/marketplace-backend/internal/handlers"
	"github.com/vortexart/marketplace-backend/internal/middleware"
	"github.com/vortexart/marketplace-backend/internal/services"
	"github.com/vortexart/marketplace-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config) *gin.Engine {
	// Initialize services
	gateway := services.NewSolanaGateway(cfg.Blockchain)
	storageService, _ := services.NewStorageService(cfg)

	baselineID, _ := uuid.Parse(cfg.Royalty.BaselineRecipientID)
	royaltyPolicy := services.NewRoyaltyPolicy(cfg.Royalty, baselineID, cfg.Royalty.BaselineWallet)

	provenanceService := services.NewProvenanceService(db)
	contractService := services.NewContractService(db, gateway)
	identityService := services.NewIdentityService(db)
	tokenService := services.NewTokenService(db, gateway)
	artworkService := services.NewArtworkService(db, gateway, royaltyPolicy, contractService, provenanceService)
	swapService := services.NewSwapService(db, gateway, provenanceService, tokenService,
		time.Duration(cfg.Blockchain.ConfirmTimeout)*time.Second)
	saleService := services.NewSaleService(db, cfg, contractService, provenanceService, royaltyPolicy)

	// Initialize handlers
	artworkHandler := handlers.NewArtworkHandler(artworkService, contractService, provenanceService,
		identityService, storageService, royaltyPolicy)
	swapHandler := handlers.NewSwapHandler(swapService)
	saleHandler := handlers.NewSaleHandler(saleService)
	verifyHandler := handlers.NewVerifyHandler(gateway)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Artwork routes
		artworks := v1.Group("/artworks")
		{
			artworks.GET("", middleware.OptionalAuth(), artworkHandler.List)
			artworks.GET("/:id", middleware.OptionalAuth(), artworkHandler.Get)
			artworks.GET("/:id/contract", artworkHandler.GetContract)
			artworks.GET("/:id/contract/lineage", artworkHandler.GetContractLineage)
			artworks.GET("/:id/history", artworkHandler.GetHistory)
			artworks.GET("/:id/owner", artworkHandler.GetOwner)

			// Authenticated routes
			protected := artworks.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("", middleware.MintRateLimit(), artworkHandler.Mint)
				protected.POST("/:id/contract/supersede", artworkHandler.SupersedeContract)
				protected.POST("/:id/archive", artworkHandler.Archive)
				protected.POST("/:id/media", middleware.UploadRateLimit(), artworkHandler.UploadMedia)
			}
		}

		// Swap routes
		swaps := v1.Group("/swaps")
		swaps.Use(middleware.AuthRequired())
		swaps.Use(middleware.SwapRateLimit())
		{
			swaps.POST("", swapHandler.Create)
			swaps.GET("", swapHandler.List)
			swaps.GET("/:id", swapHandler.Get)
			swaps.POST("/:id/accept", swapHandler.Accept)
			swaps.POST("/:id/finalize", swapHandler.Finalize)
			swaps.POST("/:id/cancel", swapHandler.Cancel)
		}

		// Sale routes
		sales := v1.Group("/sales")
		sales.Use(middleware.AuthRequired())
		{
			sales.POST("/intent", saleHandler.CreateIntent)
			sales.POST("/:id/confirm", saleHandler.Confirm)
			sales.GET("/:id", saleHandler.Get)
		}

		// Public chain verification
		v1.GET("/verify/:txid", verifyHandler.Verify)
	}

	return r
}
