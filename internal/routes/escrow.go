package routes

import (
	"github.com/gin-gonic/gin"

	"fundraiser/internal/handlers"
	"fundraiser/internal/middleware"
)

// SetupEscrowRoutes sets up wallet, campaign and journal routes. Every
// state changing route is rate limited per IP.
func SetupEscrowRoutes(r *gin.Engine, h *handlers.EscrowHandler, limits middleware.RateLimiterConfig) {
	limited := middleware.RateLimiterMiddleware(limits)

	r.POST("/wallets", limited, h.CreateWallet)

	campaigns := r.Group("/campaigns")
	{
		campaigns.POST("", limited, h.InitializeCampaign)
		campaigns.GET(":maker", h.GetCampaign)
		campaigns.GET(":maker/contributors/:contributor", h.GetContributor)
		campaigns.POST(":maker/contributions", limited, h.Contribute)
		campaigns.POST(":maker/settle", limited, h.Settle)
		campaigns.POST(":maker/refunds", limited, h.Refund)
	}

	r.GET("/operations", h.ListOperations)
}

// SetupStreamRoutes exposes the websocket event stream
func SetupStreamRoutes(r *gin.Engine, hub *handlers.EventHub) {
	r.GET("/ws", hub.ServeWS)
}

// SetupDevRoutes exposes token helpers of the local ledger
func SetupDevRoutes(r *gin.Engine, h *handlers.EscrowHandler) {
	dev := r.Group("/dev")
	{
		dev.POST("/mints", h.CreateMint)
		dev.POST("/token-accounts", h.FundTokenAccount)
	}
}
