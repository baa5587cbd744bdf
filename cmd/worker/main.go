package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

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

// O worker consome a fila de emissão e executa as varreduras periódicas de
// manutenção: retentativa de documentos falhados e re-consulta de emissões
// órfãs.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Aviso: Arquivo .env não encontrado: %v", err)
	}

	logg := logger.NewLogger()

	db, err := database.NewPostgresDB()
	if err != nil {
		log.Fatalf("Erro ao conectar com o banco de dados: %v", err)
	}
	defer db.Close()

	keys, err := cipher.NewKeyProviderFromEnv()
	if err != nil {
		log.Fatalf("Erro ao carregar a chave mestra: %v", err)
	}

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		log.Fatal("REDIS_ADDR é obrigatório para o worker")
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	defer redisClient.Close()

	emitterRepo := repository.NewEmitterRepository(db)
	certRepo := repository.NewCertificateRepository(db)
	docRepo := repository.NewDocumentRepository(db)

	transportClient := transport.NewClient(transport.DefaultTimeout)
	sefazClient := sefaz.NewClient(transportClient)
	providers := provider.NewRegistry()
	providers.Register(betha.RegistryKey, betha.NewClient(transportClient))

	vault := service.NewCertificateVault(certRepo, keys, logg)
	emission := service.NewEmissionService(docRepo, emitterRepo, vault, sefazClient, providers, logg)
	dispatcher := queue.NewDispatcher(redisClient, emission, logg)
	maintenance := service.NewMaintenanceService(docRepo, emission, dispatcher, logg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := cron.New()
	scheduler.AddFunc("@every 5m", func() {
		if err := maintenance.RetryFailed(ctx); err != nil {
			logg.Error("varredura de retentativas falhou", "error", err)
		}
	})
	scheduler.AddFunc("@every 10m", func() {
		if err := maintenance.ResumeStale(ctx); err != nil {
			logg.Error("varredura de documentos órfãos falhou", "error", err)
		}
	})
	scheduler.Start()
	defer scheduler.Stop()

	logg.Info("worker de emissão iniciado")
	if err := dispatcher.Consume(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("Consumidor da fila encerrou com erro: %v", err)
	}
}
