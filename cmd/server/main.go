package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/liyaqa/webhook-delivery/internal/config"
	"github.com/liyaqa/webhook-delivery/internal/database"
	"github.com/liyaqa/webhook-delivery/internal/dispatcher"
	"github.com/liyaqa/webhook-delivery/internal/handlers"
	"github.com/liyaqa/webhook-delivery/internal/ingress"
	"github.com/liyaqa/webhook-delivery/internal/logger"
	"github.com/liyaqa/webhook-delivery/internal/metrics"
	"github.com/liyaqa/webhook-delivery/internal/publisher"
	"github.com/liyaqa/webhook-delivery/internal/rabbitmq"
	"github.com/liyaqa/webhook-delivery/internal/registry"
	"github.com/liyaqa/webhook-delivery/internal/routes"
	"github.com/liyaqa/webhook-delivery/internal/scheduler"
	"github.com/liyaqa/webhook-delivery/internal/signature"
	"github.com/liyaqa/webhook-delivery/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	metrics.Register()

	db, err := database.Connect(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := database.RunMigrations(&cfg.Database, log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	rmq := rabbitmq.NewConnection(&cfg.RabbitMQ, log)
	if err := rmq.Connect(); err != nil {
		log.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer rmq.Close()

	signer := signature.NewHMACSigner()
	reg := registry.NewRegistry(db, signer, log)
	pub := publisher.NewPublisher(db, reg, log)
	client := transport.NewClient(cfg.Dispatcher.HTTPTimeout, cfg.Dispatcher.MaxResponseBodyBytes, signer, log)
	disp := dispatcher.NewDispatcher(db, client, &cfg.Dispatcher, log)

	consumer := ingress.NewConsumer(&cfg.RabbitMQ, rmq, pub, log)
	if err := consumer.Start(); err != nil {
		log.Fatal("Failed to start event consumer", zap.Error(err))
	}
	defer consumer.Stop()

	sched := scheduler.NewScheduler(disp, &cfg.Dispatcher, log)
	if err := sched.Start(); err != nil {
		log.Fatal("Failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:      "Webhook Delivery Service",
		ServerHeader: "Fiber",
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Tenant-ID",
	}))

	routes.SetupRoutes(app,
		handlers.NewWebhookHandler(reg, disp, log),
		handlers.NewDeliveryHandler(reg, disp, log),
		handlers.NewHealthHandler(db, rmq),
	)

	go func() {
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		log.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		log.Error("Error during server shutdown", zap.Error(err))
	}
	log.Info("Server stopped")
}
