package main

import (
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/clinvet/fiscal-engine/docs"
	"github.com/clinvet/fiscal-engine/internal/adapter/api/controller"
	"github.com/clinvet/fiscal-engine/internal/adapter/api/route"
	"github.com/clinvet/fiscal-engine/internal/adapter/repository"
	"github.com/clinvet/fiscal-engine/internal/fiscal/betha"
	"github.com/clinvet/fiscal-engine/internal/fiscal/provider"
	"github.com/clinvet/fiscal-engine/internal/fiscal/sefaz"
	"github.com/clinvet/fiscal-engine/internal/fiscal/transport"
	"github.com/clinvet/fiscal-engine/internal/infrastructure/database"
	"github.com/clinvet/fiscal-engine/internal/queue"
	"github.com/clinvet/fiscal-engine/internal/service"
	"github.com/clinvet/fiscal-engine/pkg/cipher"
	"github.com/clinvet/fiscal-engine/pkg/logger"
)

// App representa a aplicação e suas dependências
type App struct {
	router     *gin.Engine
	db         *pgxpool.Pool
	redis      *redis.Client
	logger     logger.Logger
	dispatcher *queue.Dispatcher
}

// NewApp cria uma nova instância da aplicação com todas as dependências
func NewApp() (*App, error) {
	log := logger.NewLogger()

	db, err := database.NewPostgresDB()
	if err != nil {
		return nil, err
	}

	keys, err := cipher.NewKeyProviderFromEnv()
	if err != nil {
		return nil, err
	}

	// Repositórios
	emitterRepo := repository.NewEmitterRepository(db)
	certRepo := repository.NewCertificateRepository(db)
	docRepo := repository.NewDocumentRepository(db)
	counterStore := repository.NewCounterRepository(db)

	// Clientes fiscais
	transportClient := transport.NewClient(transport.DefaultTimeout)
	sefazClient := sefaz.NewClient(transportClient)
	providers := provider.NewRegistry()
	providers.Register(betha.RegistryKey, betha.NewClient(transportClient))

	// Serviços
	numbering := service.NewNumberingService(counterStore, log)
	vault := service.NewCertificateVault(certRepo, keys, log)
	sources := service.NewSourceRegistry()
	builder := service.NewDocumentBuilder(docRepo, emitterRepo, numbering, sources, log)
	emission := service.NewEmissionService(docRepo, emitterRepo, vault, sefazClient, providers, log)

	// Fila de emissão (Redis opcional, com fallback síncrono)
	redisClient := newRedisClient()
	dispatcher := queue.NewDispatcher(redisClient, emission, log)

	// Controllers
	emitterController := controller.NewEmitterController(emitterRepo, log)
	certificateController := controller.NewCertificateController(vault, certRepo, emitterRepo, log)
	documentController := controller.NewDocumentController(builder, emission, dispatcher, docRepo, log)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "clinic-id", "X-Clinic-Id"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	app := &App{
		router:     router,
		db:         db,
		redis:      redisClient,
		logger:     log,
		dispatcher: dispatcher,
	}
	app.setupRoutes(emitterController, certificateController, documentController)

	return app, nil
}

// setupRoutes configura as rotas da aplicação
func (a *App) setupRoutes(emitterController *controller.EmitterController, certificateController *controller.CertificateController, documentController *controller.DocumentController) {
	api := a.router.Group("/api/v1")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	route.SetupEmitterRoutes(api, emitterController, certificateController)
	route.SetupCertificateRoutes(api, certificateController)
	route.SetupDocumentRoutes(api, documentController)

	a.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// Start inicia o servidor HTTP
func (a *App) Start() error {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	a.logger.Info("servidor HTTP iniciado", "port", port)
	return a.router.Run(":" + port)
}

// Close libera os recursos da aplicação
func (a *App) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}

// newRedisClient cria o cliente Redis quando REDIS_ADDR está configurado
func newRedisClient() *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
}
