package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/analytics"
	"storefront/internal/api/handlers"
	"storefront/internal/api/middleware"
	"storefront/internal/auth"
	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/storefront"
)

// Deps are the collaborators the routes drive. DataLayer and Google may be nil.
type Deps struct {
	Storefront *storefront.Storefront
	DataLayer  *analytics.DataLayer
	Google     *auth.GoogleFederator
	Metrics    *metrics.Metrics
}

type Server struct {
	config *config.Config
	logger *logger.Logger
	router *gin.Engine
	server *http.Server
}

func New(cfg *config.Config, logger *logger.Logger, deps Deps) *Server {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.Logger(logger, deps.Metrics))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg.CORSOrigins...))

	stateHandler := handlers.NewStateHandler(deps.Storefront, deps.DataLayer, logger)
	productHandler := handlers.NewProductHandler(deps.Storefront, logger)
	cartHandler := handlers.NewCartHandler(deps.Storefront, logger)
	authHandler := handlers.NewAuthHandler(deps.Storefront, deps.Google, logger)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/state", stateHandler.Get)
		v1.DELETE("/notice", stateHandler.DismissNotice)
		v1.GET("/datalayer", stateHandler.DataLayer)

		// Catalog
		v1.GET("/products/:id", productHandler.Get)
		v1.DELETE("/product", productHandler.Close)
		v1.POST("/search", productHandler.Search)
		v1.POST("/category", productHandler.Category)
		v1.DELETE("/filters", productHandler.ClearFilters)

		// Cart
		v1.POST("/cart/open", cartHandler.Open)
		v1.POST("/modal/close", cartHandler.CloseModal)
		items := v1.Group("/cart/items")
		{
			items.POST("", cartHandler.AddItem)
			items.PUT("/:productId", cartHandler.UpdateItem)
			items.DELETE("/:productId", cartHandler.RemoveItem)
		}
		v1.POST("/checkout", cartHandler.Checkout)

		// Auth
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/register", authHandler.Register)
			authGroup.GET("/google/url", authHandler.GoogleURL)
			authGroup.POST("/google", authHandler.Google)
			authGroup.POST("/reset", authHandler.ResetPassword)
			authGroup.POST("/password", authHandler.ChangePassword)
			authGroup.POST("/logout", authHandler.Logout)
			authGroup.POST("/mode", authHandler.Mode)
		}
	}

	return &Server{
		config: cfg,
		logger: logger,
		router: router,
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.APIHost, s.config.APIPort)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server on %s", addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router exposes the handler for tests and for embedding in another server.
func (s *Server) Router() *gin.Engine {
	return s.router
}
