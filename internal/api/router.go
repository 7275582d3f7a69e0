package api

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/LeviWoodfall/Regia/internal/api/handlers"
	"github.com/LeviWoodfall/Regia/internal/classify"
	"github.com/LeviWoodfall/Regia/internal/config"
	"github.com/LeviWoodfall/Regia/internal/credentials"
	"github.com/LeviWoodfall/Regia/internal/ingest"
	"github.com/LeviWoodfall/Regia/internal/processing"
	"github.com/LeviWoodfall/Regia/internal/processing/extract"
	"github.com/LeviWoodfall/Regia/internal/services"
)

// SetupRouter initializes and returns the Gin router with all routes configured
func SetupRouter(db *gorm.DB, cfg *config.Config, log *logrus.Logger) *gin.Engine {
	router := gin.Default()

	origins := strings.Split(cfg.CORSOrigins, ",")
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// Initialize services
	logService := services.NewLogService(db)
	accountService := services.NewAccountService(db)
	emailService := services.NewEmailService(db)

	// Ingestion wiring
	credStore := credentials.NewStore(db, cfg.GetEncryptionKey())
	dedup := processing.NewDeduplicator(db, cfg.Storage)
	registry := extract.DefaultRegistry(cfg.OCR, log)
	classifier := classify.NewClassifier(cfg.Classifier, log)

	var downloader processing.Downloader
	if cfg.Download.Enabled {
		downloader = processing.NewHTTPDownloader(cfg.Download, log)
	}

	pipeline := processing.NewPipeline(db, dedup, registry, classifier, downloader, nil, logService, log)
	orchestrator := ingest.NewOrchestrator(db, pipeline, logService,
		ingest.IMAPMailboxFactory(credStore, log), log)

	// Initialize handlers
	accountHandler := handlers.NewAccountHandler(accountService, orchestrator)
	emailHandler := handlers.NewEmailHandler(emailService, logService)
	documentHandler := handlers.NewDocumentHandler(emailService)
	logHandler := handlers.NewLogHandler(logService)

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API routes
	api := router.Group("/api")
	{
		accounts := api.Group("/accounts")
		{
			accounts.GET("", accountHandler.ListAccounts)
			accounts.POST("", accountHandler.CreateAccount)
			accounts.POST("/test", accountHandler.TestConnection) // must be before /:id routes
			accounts.GET("/:id", accountHandler.GetAccount)
			accounts.PUT("/:id/enable", accountHandler.EnableAccount)
			accounts.PUT("/:id/disable", accountHandler.DisableAccount)
			accounts.POST("/:id/run", accountHandler.RunAccount)
		}

		emails := api.Group("/emails")
		{
			emails.GET("", emailHandler.ListEmails)
			emails.GET("/:id", emailHandler.GetEmail)
			emails.GET("/:id/logs", emailHandler.GetEmailLogs)
		}

		documents := api.Group("/documents")
		{
			documents.GET("", documentHandler.ListDocumentsByCategory)
			documents.GET("/lookup", documentHandler.LookupDocument)
			documents.GET("/:id", documentHandler.GetDocument)
		}

		api.GET("/logs", logHandler.ListLogs)
	}

	return router
}
