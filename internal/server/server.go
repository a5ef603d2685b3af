package server

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/poke-community/backend/internal/config"
	"github.com/poke-community/backend/internal/database"
	"github.com/poke-community/backend/internal/handlers"
	"github.com/poke-community/backend/internal/middleware"
)

type Server struct {
	cfg       *config.Config
	dbService database.Service
	handler   *handlers.Handler
}

// NewServer creates and configures a new server
func NewServer(cfg *config.Config) (*http.Server, error) {
	// Raw bootstrap: tables plus the vote statistics view
	db, err := database.NewDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.Initialize(); err != nil {
		return nil, err
	}
	if err := db.Close(); err != nil {
		return nil, err
	}

	dbService, err := database.New(cfg.Database)
	if err != nil {
		return nil, err
	}

	// Create unified handler
	handler := handlers.NewHandler(dbService.GetDB(), cfg)

	newServer := &Server{
		cfg:       cfg,
		dbService: dbService,
		handler:   handler,
	}

	// Configure Gin router
	router := newServer.RegisterRoutes()

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Printf("🚀 Server starting on port %s\n", cfg.Server.Port)

	return server, nil
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.Default()

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * 3600,
	}))

	jwtSecret := []byte(s.cfg.JWTSecret)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.dbService.Health())
	})

	// One-click unsubscribe, reachable without authentication
	r.GET("/unsubscribe/:subscriptionId", s.handler.Unsubscribe.Get)
	r.POST("/unsubscribe/:subscriptionId", s.handler.Unsubscribe.Post)

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public)
		api.POST("/register", s.handler.Auth.Register)
		api.POST("/login", s.handler.Auth.Login)

		// Automation reads (public; viewer vote attached when signed in)
		reads := api.Group("")
		reads.Use(middleware.OptionalAuthMiddleware(jwtSecret))
		{
			reads.GET("/automations", s.handler.Automation.List)
			reads.GET("/automations/trending", s.handler.Automation.Trending)
			reads.GET("/automations/:slug", s.handler.Automation.GetBySlug)
		}

		// Protected routes (authentication required)
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(jwtSecret))
		{
			// Profile
			protected.GET("/me", s.handler.Auth.GetMe)
			protected.PUT("/me/name", s.handler.Auth.UpdateName)
			protected.DELETE("/me", s.handler.Auth.DeleteAccount)

			// Automations
			protected.POST("/automations", s.handler.Automation.Create)
			protected.PUT("/automations/:id", s.handler.Automation.Update)
			protected.DELETE("/automations/:id", s.handler.Automation.Delete)
			protected.GET("/me/automations", s.handler.Automation.ListMine)
			protected.GET("/me/automations/:id", s.handler.Automation.GetForEditing)

			// Votes
			protected.POST("/automations/:id/vote", s.handler.Automation.Vote)

			// Subscriptions
			protected.GET("/me/subscriptions", s.handler.Subscription.Get)
			protected.PUT("/me/subscriptions", s.handler.Subscription.Set)
		}
	}

	return r
}
