package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"fundraiser/internal/escrow"
	"fundraiser/internal/handlers"
	"fundraiser/internal/routes"
	"fundraiser/internal/schedule"
	"fundraiser/pkg/config"
	chain "fundraiser/pkg/solana"
	"fundraiser/pkg/solana/fundraiser"
	"fundraiser/pkg/solana/runtime"
)

const sweepTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}
	config.SetupLogger(cfg.Log)

	programID, err := cfg.Program.PublicKey()
	if err != nil {
		log.Fatal("Invalid program id: ", err)
	}

	// Initialize database
	config.InitDB(cfg.Postgres)
	config.ExecuteMigrations()

	bank := runtime.NewBank()
	bank.RegisterProgram(programID, fundraiser.Process)

	hub := handlers.NewEventHub(cfg.HTTP.AllowedOrigins)
	opts := []escrow.Option{
		escrow.WithAirdrop(cfg.Program.Airdrop),
		escrow.WithSink(hub),
	}

	// RabbitMQ is optional for the API
	if cfg.RabbitMQ.Enabled() {
		config.InitRabbitMQ(cfg.RabbitMQ)
		defer config.RabbitMQ.Close()

		publisher, err := config.NewPublisher()
		if err != nil {
			log.Fatal("Failed to create publisher: ", err)
		}
		defer publisher.Close()
		opts = append(opts, escrow.WithSink(escrow.NewBrokerSink(publisher, cfg.RabbitMQ.EventQueue)))
	} else {
		log.Info("RabbitMQ not configured, escrow events stay local")
	}

	svc := escrow.NewService(
		bank,
		chain.NewKeyManager(cfg.Keystore.Dir),
		escrow.NewGormStore(config.DB),
		programID,
		opts...,
	)

	scheduler, err := schedule.NewScheduler(cfg.Schedule.ExpirySweep, schedule.NewExpiryJob(svc, sweepTimeout))
	if err != nil {
		log.Fatal("Failed to create scheduler: ", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	r := routes.SetupRouter(cfg.HTTP, handlers.NewEscrowHandler(svc), hub)
	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithFields(log.Fields{
			"port":    cfg.HTTP.Port,
			"program": programID.String(),
		}).Info("Fundraiser API started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server: ", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed: ", err)
	}
}
