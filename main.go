package main

import (
	"tripsplit-backend/config"
	"tripsplit-backend/database"
	"tripsplit-backend/handlers"
	"tripsplit-backend/logger"
	"tripsplit-backend/middleware"
	"tripsplit-backend/services"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	config.Load()
	logger.Init(config.AppConfig.Debug)
	defer logger.Sync()
	log := logger.Get()

	// Connect to database
	database.Connect()

	// Connect to Redis (optional, won't crash if unavailable)
	database.ConnectRedis()

	services.InitSettlementService(database.DB, database.Redis)

	if !config.AppConfig.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.RequestLogging())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": config.AppConfig.AppName,
		})
	})

	// ==========================================
	// AUTH ROUTES (public)
	// ==========================================
	auth := r.Group("/auth")
	{
		auth.POST("/register", handlers.Register)
		auth.POST("/login", handlers.Login)
	}

	// ==========================================
	// API ROUTES (authenticated)
	// ==========================================
	api := r.Group("/api")
	api.Use(middleware.AuthRequired())
	{
		// User
		api.GET("/users/me", handlers.GetProfile)
		api.PUT("/users/me", handlers.UpdateProfile)
		api.PUT("/users/me/fcm-token", handlers.UpdateFCMToken)
		api.POST("/users/search", handlers.SearchUsers)

		// Trips
		api.POST("/trips", handlers.CreateTrip)
		api.GET("/trips", handlers.GetTrips)
		api.GET("/trips/:id", handlers.GetTrip)
		api.PUT("/trips/:id", handlers.UpdateTrip)
		api.POST("/trips/:id/members", handlers.AddMember)
		api.DELETE("/trips/:id/members/:uid", handlers.RemoveMember)
		api.POST("/trips/:id/invite", handlers.InviteToTripHandler)

		// Expenses
		api.POST("/trips/:id/expenses", handlers.CreateExpense)
		api.POST("/trips/:id/expenses/validate", handlers.ValidateExpenseRequest)
		api.GET("/trips/:id/expenses", handlers.GetTripExpenses)
		api.GET("/expenses/:id", handlers.GetExpense)
		api.PUT("/expenses/:id", handlers.UpdateExpense)
		api.DELETE("/expenses/:id", handlers.DeleteExpense)

		// Settlement
		api.GET("/trips/:id/settlement", handlers.GetSettlement)
		api.GET("/trips/:id/settlement/explain", handlers.ExplainTransfer)
		api.GET("/trips/:id/settlement/records", handlers.GetSettlementRecords)
		api.POST("/trips/:id/settle", handlers.SettleTransfer)
		api.POST("/trips/:id/unsettle", handlers.UnsettleTransfer)

		// Activity
		api.GET("/activity", handlers.GetActivity)
		api.GET("/trips/:id/activity", handlers.GetTripActivity)
	}

	// Start server
	addr := "0.0.0.0:" + config.AppConfig.Port
	log.Infow("server starting", "service", config.AppConfig.AppName, "addr", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalw("server failed", "error", err)
	}
}
