package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"mycm.app/server/internal/db"
	"mycm.app/server/internal/handlers"
	"mycm.app/server/internal/jobs"
	"mycm.app/server/internal/mailer"
	"mycm.app/server/internal/middleware"
	"mycm.app/server/internal/quotes"
	"mycm.app/server/internal/reflection"
	"mycm.app/server/internal/ws"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()
	logger := zapLogger.Sugar()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is required")
	}

	// Initialize PostgreSQL
	postgresDB, err := db.InitPostgres()
	if err != nil {
		logger.Fatalf("Failed to initialize PostgreSQL: %v", err)
	}
	defer postgresDB.Close()

	// Initialize Redis
	redisClient, err := db.InitRedis()
	if err != nil {
		logger.Fatalf("Failed to initialize Redis: %v", err)
	}
	defer redisClient.Close()

	// Reflection room wiring: store, hub, resolver, service
	hub := ws.NewHub(logger)
	store := reflection.NewPGStore(postgresDB)
	resolver := reflection.NewResolver(store, redisClient, logger)
	reflectionSvc := reflection.NewService(store, hub, logger)
	wsServer := ws.NewServer(hub, resolver, reflectionSvc, logger, jwtSecret)

	quotesSvc := quotes.NewService(postgresDB, redisClient, logger)
	contactMailer := mailer.NewFromEnv(logger)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(postgresDB, logger, jwtSecret)
	usersHandler := handlers.NewUsersHandler(postgresDB, logger)
	postsHandler := handlers.NewPostsHandler(postgresDB, logger)
	commentsHandler := handlers.NewCommentsHandler(postgresDB, logger)
	sectionsHandler := handlers.NewSectionsHandler(postgresDB, logger)
	contactHandler := handlers.NewContactHandler(postgresDB, redisClient, contactMailer, logger)
	quotesHandler := handlers.NewQuotesHandler(quotesSvc, logger)
	reflectionsHandler := handlers.NewReflectionsHandler(resolver, reflectionSvc, logger)

	// Initialize Gin router
	gin.SetMode(getEnvOrDefault("GIN_MODE", gin.ReleaseMode))
	router := gin.New()
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RequestLoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	// CORS for the browser client
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", getEnvOrDefault("CORS_ORIGIN", "*"))
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	authRequired := middleware.AuthMiddleware(jwtSecret)

	// Define routes
	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		users := api.Group("/users")
		users.Use(authRequired)
		{
			users.GET("/me", usersHandler.Me)
			users.PATCH("/me", usersHandler.UpdateMe)
		}

		posts := api.Group("/posts")
		{
			posts.GET("", postsHandler.List)
			posts.GET("/:id", postsHandler.Get)
			posts.POST("", authRequired, middleware.RequireAdmin(), postsHandler.Create)
			posts.PUT("/:id", authRequired, middleware.RequireAdmin(), postsHandler.Update)
			posts.PATCH("/:id", authRequired, middleware.RequireAdmin(), postsHandler.Update)
			posts.DELETE("/:id", authRequired, middleware.RequireAdmin(), postsHandler.Delete)
		}

		comments := api.Group("/comments")
		{
			comments.GET("/post/:postId", commentsHandler.ListByPost)
			comments.POST("/post/:postId", authRequired, commentsHandler.Add)
			comments.DELETE("/:id", authRequired, commentsHandler.Delete)
		}

		sections := api.Group("/sections")
		{
			sections.GET("/:slug", sectionsHandler.GetBySlug)
			sections.POST("/:slug/blocks", authRequired, middleware.RequireAdmin(), sectionsHandler.CreateBlock)
			sections.PUT("/:slug/blocks/:id", authRequired, middleware.RequireAdmin(), sectionsHandler.UpdateBlock)
			sections.DELETE("/:slug/blocks/:id", authRequired, middleware.RequireAdmin(), sectionsHandler.DeleteBlock)
		}

		api.POST("/contact", contactHandler.Submit)
		api.GET("/quotes/weekly", quotesHandler.Weekly)

		reflections := api.Group("/reflections")
		{
			reflections.GET("/today", reflectionsHandler.Today)
			reflections.GET("/today/messages", reflectionsHandler.TodayMessages)
			reflections.GET("/random", authRequired, reflectionsHandler.Random)
			reflections.PATCH("/messages/:id", authRequired, reflectionsHandler.UpdateMessage)
			reflections.DELETE("/messages/:id", authRequired, reflectionsHandler.DeleteMessage)
		}
	}

	// Websocket endpoint for the daily reflection room
	router.GET("/ws/reflections", wsServer.Handle)

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Pre-resolve the daily prompt and weekly quote off the request path
	scheduler := jobs.NewScheduler(resolver, quotesSvc, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + getEnvOrDefault("PORT", "8080"),
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Infow("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	scheduler.Stop()

	// Give a 5 second timeout for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("server exited")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
