package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	logrus "github.com/sirupsen/logrus"

	"fundraiser/internal/escrow"
	"fundraiser/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal("Failed to load configuration: ", err)
	}
	config.SetupLogger(cfg.Log)

	// Initialize database
	config.InitDB(cfg.Postgres)
	config.ExecuteMigrations()

	// Initialize RabbitMQ
	config.InitRabbitMQ(cfg.RabbitMQ)
	defer config.RabbitMQ.Close()

	msgConsumer, err := config.NewConsumer(cfg.RabbitMQ.EventQueue)
	if err != nil {
		logrus.Fatal("Failed to create consumer: ", err)
	}
	defer msgConsumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recorder := escrow.NewEventRecorder(escrow.NewGormStore(config.DB))
	logrus.Infof("Escrow event worker started, consuming %s", cfg.RabbitMQ.EventQueue)

	err = msgConsumer.Consume(ctx, func(msg []byte) error {
		return recorder.Handle(ctx, msg)
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, amqp.ErrClosed) {
		logrus.Fatal("Consumer stopped: ", err)
	}
	logrus.Info("Escrow event worker stopped")
}
