package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"sealdesk/sealdesk-backend/internal/auth"
	"sealdesk/sealdesk-backend/internal/config"
	"sealdesk/sealdesk-backend/internal/notifications"
	"sealdesk/sealdesk-backend/internal/signing"
	"sealdesk/sealdesk-backend/internal/verification"
	"sealdesk/sealdesk-backend/pkg/pdf"
	"sealdesk/sealdesk-backend/pkg/security"
	"sealdesk/sealdesk-backend/pkg/storage"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	// Connect to database
	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	// Document byte store
	var store storage.BlobStore
	switch cfg.Storage.Driver {
	case "s3":
		store, err = storage.NewS3Store(context.Background(), cfg.Storage.S3Bucket)
	default:
		store, err = storage.NewLocalStore(cfg.Storage.LocalRoot)
	}
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}

	sealer, err := security.NewSealer(cfg.Security.HMACSecret)
	if err != nil {
		logger.Fatal("Failed to initialize sealer", zap.Error(err))
	}

	// Notifications (optional)
	var notifier signing.Notifier
	if cfg.Notifications.Enabled {
		gormDB, err := gorm.Open(gormpostgres.Open(cfg.Database.GetDatabaseURL()), &gorm.Config{})
		if err != nil {
			logger.Fatal("Failed to open notifications database", zap.Error(err))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			logger.Fatal("Failed to load AWS config", zap.Error(err))
		}
		svc, err := notifications.NewService(gormDB, sesv2.NewFromConfig(awsCfg), cfg.Notifications.Sender, logger)
		if err != nil {
			logger.Fatal("Failed to initialize notifications", zap.Error(err))
		}
		notifier = svc
	}

	// Initialize signing + verification
	repo := signing.NewRepository(db)
	stamper := pdf.NewStamper(cfg.Signing.DateLayout)
	signingService := signing.NewService(repo, store, stamper, sealer, notifier, cfg.Signing.BaseURL, logger)
	signingHandler := signing.NewHandler(signingService)
	verificationService := verification.NewService(repo, sealer, logger)
	verificationHandler := verification.NewHandler(verificationService)

	// Setup Router
	router := gin.Default()

	// CORS Middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Authorization, Accept, Origin")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Register Routes
	api := router.Group("/api/v1")
	{
		verificationHandler.RegisterRoutes(api)

		signed := api.Group("")
		signed.Use(auth.RequireActor(cfg.Security.JWTSecret))
		signingHandler.RegisterRoutes(signed)
	}

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	// Start Server
	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.Int("port", cfg.Server.Port))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
