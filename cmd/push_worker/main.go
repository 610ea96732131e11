package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"campus_chat_service/pkg/config"
	"campus_chat_service/pkg/database"
	"campus_chat_service/pkg/logger"
	"campus_chat_service/pkg/pushgw"

	"go.uber.org/zap"
)

// push_worker drains the push gateway command queue and applies each command
// against the provider. Acknowledgement is manual: a failed apply is requeued
// and retried by the next consumer.
func main() {
	logger.Log = logger.Initialize(config.EnvConfig.PushWorker, config.EnvConfig.PushWorkerLogPath)
	cfg := config.LoadConfig[config.PushWorker](config.EnvConfig.PushWorker, config.EnvConfig.PushWorkerYAMLPath)

	conn, err := database.ConnectRabbitMQWithRetry(database.Connection{
		ConnectStr: fmt.Sprintf("amqp://%s:%s@%s:%s/",
			cfg.RabbitMQ.User, cfg.RabbitMQ.Password, cfg.RabbitMQ.IP, cfg.RabbitMQ.Port),
		RetryCount:    cfg.RabbitMQ.RetryCount,
		RetryInterval: cfg.RabbitMQ.RetryInterval,
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to rabbitmq after retries", zap.Error(err))
	}
	defer conn.Close()

	channel, err := database.GetRabbitMQChannelWithRetry(conn, cfg.RabbitMQ.RetryCount, cfg.RabbitMQ.RetryInterval)
	if err != nil {
		logger.Log.Fatal("Unable to open rabbitmq channel", zap.Error(err))
	}
	defer channel.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Log.Info("push worker shutting down")
		cancel()
	}()

	consumer := pushgw.NewConsumer(channel, cfg.RabbitMQ.Queue, pushgw.LogSink{})
	if err := consumer.Start(ctx); err != nil {
		logger.Log.Fatal("push worker consume failed", zap.Error(err))
	}
}
