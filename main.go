package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fieldops/interventions-api/config"
	"github.com/fieldops/interventions-api/controllers"
	"github.com/fieldops/interventions-api/middleware"
	"github.com/fieldops/interventions-api/models"
	"github.com/fieldops/interventions-api/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	config.InitLogger(cfg)
	log.Info().Str("env", cfg.GoEnv).Msg("starting interventions API")

	if err := config.ConnectDatabase(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := config.Migrate(config.GetDB()); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}
	log.Info().Msg("database migration completed")

	// Evidence uploads are optional; the API runs without a bucket.
	if _, err := services.InitS3Service(context.Background(), cfg); err != nil {
		log.Warn().Err(err).Msg("S3 unavailable, evidence uploads disabled")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := setupRouter(cfg, middleware.EnsureValidToken(cfg))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// setupRouter builds the full API. authenticate validates the bearer token
// and stores the subject in the context; tests substitute their own.
func setupRouter(cfg *config.Config, authenticate gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestLogger(), middleware.Recovery())
	router.Use(cors.New(corsConfig(cfg.CORSAllowedOrigins)))
	router.Use(middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).ByClientIP())

	v1 := router.Group("/api/v1")
	v1.GET("/health", healthCheck)
	v1.GET("/database/status", databaseStatus)

	password := v1.Group("/auth/password")
	{
		password.POST("/forgot", controllers.ForgotPassword)
		password.POST("/reset", controllers.ResetPassword)
	}

	// Registration only needs a valid token; the account does not exist yet.
	v1.POST("/users", authenticate, controllers.CreateUser)

	api := v1.Group("", authenticate, middleware.LoadActor())

	users := api.Group("/users")
	{
		users.GET("/me", controllers.GetMyProfile)
		users.PUT("/me", controllers.UpdateMyProfile)
	}
	api.PATCH("/technicians/me/availability",
		middleware.RequireRole(models.RoleTechnician), controllers.UpdateMyAvailability)

	interventions := api.Group("/interventions")
	{
		interventions.POST("", controllers.CreateIntervention)
		interventions.GET("", controllers.ListInterventions)
		interventions.PUT("/assign-technician/:interventionId", controllers.AssignTechnician)
		interventions.GET("/:id", controllers.GetIntervention)
		interventions.DELETE("/:id", controllers.CancelIntervention)
		interventions.PATCH("/:id/status", controllers.UpdateInterventionStatus)
		interventions.POST("/:id/evidence/photos", controllers.UploadEvidencePhoto)
		interventions.GET("/:id/evidence/photos", controllers.ListEvidencePhotos)
	}

	api.POST("/feedback/:interventionId", controllers.SubmitFeedback)

	support := api.Group("/support")
	{
		support.POST("", controllers.CreateSupportRequest)
		support.GET("/admin", controllers.ListSupportRequests)
		support.POST("/admin/respond/:requestId", controllers.RespondToSupportRequest)
	}

	admin := api.Group("/admin")
	{
		admin.POST("", controllers.AdminCreateUser)
		admin.GET("/users", controllers.AdminListUsers)
		admin.GET("/reports", controllers.GetReports)
		admin.PUT("/:id", controllers.AdminUpdateUser)
		admin.DELETE("/:id", controllers.AdminDeleteUser)
	}

	chat := api.Group("/chat/rooms")
	{
		chat.GET("", controllers.ListChatRooms)
		chat.GET("/:id/messages", controllers.ListChatMessages)
		chat.POST("/:id/messages", controllers.SendChatMessage)
		chat.PATCH("/:id/read", controllers.MarkChatRoomRead)
	}

	return router
}

// corsConfig allows every origin when the list holds "*", otherwise only the
// listed ones with credentials.
func corsConfig(origins []string) cors.Config {
	cc := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cc.AllowAllOrigins = true
			return cc
		}
	}
	cc.AllowOrigins = origins
	cc.AllowCredentials = true
	return cc
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Interventions API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(c *gin.Context) {
	db := config.GetDB()
	if db == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Database not initialized",
			},
		})
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to get database instance",
			},
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	tables, err := db.Migrator().GetTables()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_QUERY_ERROR",
				"message": "Failed to query tables",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"tables":  tables,
	})
}
