package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	academic "campus_chat_service/internal/academic/repository"
	"campus_chat_service/internal/chat/app"
	"campus_chat_service/internal/chat/repository"
	"campus_chat_service/internal/chat/router"
	"campus_chat_service/pkg/config"
	"campus_chat_service/pkg/database"
	"campus_chat_service/pkg/eventbus"
	"campus_chat_service/pkg/filestore"
	"campus_chat_service/pkg/logger"
	"campus_chat_service/pkg/pushgw"
	testtool "campus_chat_service/pkg/test_tool"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatService, config.EnvConfig.ChatServiceLogPath)
	cfg := config.LoadConfig[config.Chat](config.EnvConfig.ChatService, config.EnvConfig.ChatServiceYAMLPath)
	testtool.StartPprof()

	ctx := context.Background()

	// chat store (rooms, memberships, messages, pins)
	pgURI := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		cfg.PostgreSQL.User, cfg.PostgreSQL.Password, cfg.PostgreSQL.Host, cfg.PostgreSQL.Port, cfg.PostgreSQL.Database)
	gormDB, err := database.NewPGConnection(database.Connection{
		ConnectStr:    pgURI,
		RetryCount:    cfg.PostgreSQL.RetryCount,
		RetryInterval: time.Duration(cfg.PostgreSQL.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to postgres after retries",
			zap.String("address", fmt.Sprintf("[%s:%d]", cfg.PostgreSQL.Host, cfg.PostgreSQL.Port)),
			zap.Error(err),
		)
	}
	if err := repository.Migrate(gormDB); err != nil {
		logger.Log.Fatal("chat schema migration failed", zap.Error(err))
	}

	// authoritative academic reads share the same cluster on a raw pool
	academicPool, err := database.NewDatabaseConnection(database.Connection{
		ConnectStr:    pgURI,
		RetryCount:    cfg.PostgreSQL.RetryCount,
		RetryInterval: time.Duration(cfg.PostgreSQL.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect academic pool after retries", zap.Error(err))
	}
	defer academicPool.Close()

	// moderation audit trail
	mongoURI := fmt.Sprintf("mongodb://%s:%s@%s:%d",
		cfg.MongoDB.User, cfg.MongoDB.Password, cfg.MongoDB.Host, cfg.MongoDB.Port)
	mongo, err := database.NewMongoDB(ctx,
		database.Connection{
			ConnectStr:    mongoURI,
			RetryCount:    cfg.MongoDB.RetryCount,
			RetryInterval: time.Duration(cfg.MongoDB.RetryInterval),
		},
		cfg.MongoDB.Database)
	if err != nil {
		logger.Log.Fatal("Unable to connect to mongoDB after retries",
			zap.String("address", fmt.Sprintf("[%s]", mongoURI)),
			zap.Error(err),
		)
	}
	defer mongo.Close(ctx)

	// cross-node fanout
	masterName, sentinel := config.GetRedisSetting()
	redisClient, err := database.NewRedisClient(masterName, sentinel, cfg.Redis.RedisDB)
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}

	// attachment store
	minioClient, err := database.NewMinIOConnection(database.MinIOConnection{
		Endpoint:      fmt.Sprintf("%s:%d", cfg.MinIO.Host, cfg.MinIO.Port),
		User:          cfg.MinIO.User,
		Password:      cfg.MinIO.Password,
		BucketName:    cfg.MinIO.BucketName,
		UseSSL:        cfg.MinIO.UseSSL,
		RetryCount:    cfg.MinIO.RetryCount,
		RetryInterval: cfg.MinIO.RetryInterval,
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to minio after retries", zap.Error(err))
	}

	// push gateway command queue
	rabbitConn, err := database.ConnectRabbitMQWithRetry(database.Connection{
		ConnectStr: fmt.Sprintf("amqp://%s:%s@%s:%s/",
			cfg.RabbitMQ.User, cfg.RabbitMQ.Password, cfg.RabbitMQ.IP, cfg.RabbitMQ.Port),
		RetryCount:    cfg.RabbitMQ.RetryCount,
		RetryInterval: cfg.RabbitMQ.RetryInterval,
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to rabbitmq after retries", zap.Error(err))
	}
	defer rabbitConn.Close()
	rabbitCh, err := database.GetRabbitMQChannelWithRetry(rabbitConn, cfg.RabbitMQ.RetryCount, cfg.RabbitMQ.RetryInterval)
	if err != nil {
		logger.Log.Fatal("Unable to open rabbitmq channel", zap.Error(err))
	}
	defer rabbitCh.Close()

	// event replay journal
	kafkaWriter, err := database.NewKafkaWriterWithRetry(database.KafkaConnection{
		Brokers:       cfg.Kafka.Brokers,
		Topic:         cfg.Kafka.Topic,
		RetryCount:    cfg.Kafka.RetryCount,
		RetryInterval: cfg.Kafka.RetryInterval,
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to kafka after retries", zap.Error(err))
	}
	defer kafkaWriter.Close()

	// repositories
	roomRepo := repository.NewRoomRepository(gormDB)
	memberRepo := repository.NewMembershipRepository(gormDB)
	msgRepo := repository.NewMessageRepository(gormDB)
	pinRepo := repository.NewPinRepository(gormDB)
	auditRepo := repository.NewMongoAuditRepository(mongo.Database)
	academicRepo := academic.NewAcademicRepository(academicPool)
	pubsub := repository.NewRedisPubSub(redisClient)

	// use cases
	validator := app.NewAccessControlValidator(roomRepo, memberRepo, academicRepo)
	moderationUC := app.NewModerationUseCase(roomRepo, memberRepo, msgRepo, pinRepo, auditRepo)
	files := filestore.NewMinIOStore(minioClient, "chat")
	messageUC := app.NewMessageUseCase(roomRepo, memberRepo, msgRepo, auditRepo, academicRepo, validator, moderationUC, files, pubsub)

	// automation: academic events in, rooms and topic subscriptions out
	bus := eventbus.New(256, kafkaWriter)
	defer bus.Close()

	engine := app.NewRoomAutomationEngine(roomRepo, memberRepo, academicRepo, bus, cfg.OperationTimeout)
	engine.RegisterHandlers(bus)

	gateway := pushgw.NewAMQPGateway(database.NewRabbitRepository(rabbitCh), cfg.RabbitMQ.Queue)
	topicSync := app.NewTopicSyncService(gateway, academicRepo, cfg.OperationTimeout)
	topicSync.RegisterHandlers(bus)

	privateSessions := app.NewSessionManager("private")
	groupSessions := app.NewSessionManager("groups")
	privateWS := app.NewPrivateWebsocketHandler(privateSessions, messageUC, pubsub, cfg.OperationTimeout)
	groupWS := app.NewGroupWebsocketHandler(groupSessions, validator, messageUC, moderationUC, pubsub, cfg.OperationTimeout)

	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	router.RegisterRoutes(r, privateWS, groupWS)

	port := ":" + cfg.Port
	log.Printf("Chat Service listening on %s", port)
	if err := r.Listen(port); err != nil {
		log.Fatalf("Failed to start Fiber: %v", err)
	}
}
