package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	alerts "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Alerts"
	"gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.ApiService/controllers"
	"gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.ApiService/middleware"
	commander "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Commander"
	container "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Container"
	ingestor "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Ingestor"
	registry "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Registry"
	rental "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Rental"
	implementation "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Repository/Implementation"
	thresholds "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Thresholds"
)

type pingChecker struct {
	name string
	ping func(ctx context.Context) error
}

func (p pingChecker) Name() string { return p.name }

func (p pingChecker) Healthy(ctx *gin.Context) bool {
	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return p.ping(checkCtx) == nil
}

func main() {
	// Initialize dependency injection container
	ctr, err := container.NewContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()
	logger.Info("Starting Rental Coordinator")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := ctr.InitializeDatabase(ctx); err != nil {
		cancel()
		logger.FatalWithError(err, "Failed to initialize database")
	}
	cancel()

	db, err := ctr.GetDatabase()
	if err != nil {
		logger.FatalWithError(err, "Failed to get database connection")
	}
	mongoClient, err := ctr.GetMongoClient()
	if err != nil {
		logger.FatalWithError(err, "Failed to get MongoDB connection")
	}

	config := ctr.GetConfig()

	// Create repositories
	rentalRepo := implementation.NewPostgresRentalRepository(db)
	machineRepo := implementation.NewPostgresMachineRepository(db)
	userRepo := implementation.NewPostgresUserRepository(db)
	alertRepo := implementation.NewPostgresAlertRepository(db)
	readingRepo := implementation.NewMongoReadingRepository(mongoClient, config.Mongo.Database, config.Mongo.Collection)

	indexCtx, cancelIndex := context.WithTimeout(context.Background(), 30*time.Second)
	if err := readingRepo.EnsureIndexes(indexCtx); err != nil {
		cancelIndex()
		logger.FatalWithError(err, "Failed to ensure reading indexes")
	}
	cancelIndex()

	// Core services
	deviceRegistry := registry.New(config.Registry, logger)
	engine := thresholds.NewEngine(config.Thresholds, readingRepo, logger)

	sink := alerts.NewLogSink(logger)
	cooldown := alerts.NewCooldownCache(config.Alerting.CooldownTTL)
	dispatcher := alerts.NewDispatcher(cooldown, sink, alertRepo, userRepo, logger)

	pipeline := ingestor.NewPipeline(deviceRegistry, readingRepo, machineRepo, rentalRepo, engine, dispatcher, logger)
	ing := ingestor.New(config.MQTT, pipeline, logger)

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()

	if err := ing.Start(runCtx); err != nil {
		logger.FatalWithError(err, "Failed to start MQTT ingestor")
	}

	publisher := commander.NewPublisher(&commander.PahoPublisher{Client: ing.Client()}, deviceRegistry, logger)
	rentalService := rental.NewService(config.Rental, rentalRepo, machineRepo, userRepo, deviceRegistry, publisher, sink, logger)

	// Critical readings on auto-shutdown machines halt the session.
	dispatcher.SetShutdownFunc(rentalService.EmergencyShutdown)

	monitor := rental.NewMonitor(config.Rental, rentalRepo, userRepo, sink, logger)
	go monitor.Run(runCtx)
	go cooldown.RunSweeper(runCtx, config.Alerting.SweepInterval)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowOrigins:     config.CORS.AllowedOrigins,
		AllowMethods:     config.CORS.AllowedMethods,
		AllowHeaders:     config.CORS.AllowedHeaders,
		ExposeHeaders:    config.CORS.ExposedHeaders,
		AllowCredentials: config.CORS.AllowCredentials,
		MaxAge:           time.Duration(config.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))

	auth := middleware.ServiceAuthMiddleware()

	rentalController := controllers.NewRentalController(rentalService, logger, auth)
	statusController := controllers.NewStatusController(machineRepo, alertRepo, readingRepo, deviceRegistry, logger, auth)
	healthController := controllers.NewHealthController(ing, logger,
		pingChecker{name: "postgres", ping: ctr.PingPostgres},
		pingChecker{name: "mongodb", ping: ctr.PingMongo},
	)

	rentalController.RegisterRoutes(router)
	statusController.RegisterRoutes(router)
	healthController.RegisterRoutes(router)

	port := config.Server.Port

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
		IdleTimeout:  config.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP server starting on port " + port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithError(err, "Failed to start HTTP server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	stopRun()
	ing.Stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithError(err, "HTTP server forced to shutdown")
	}

	logger.Info("Shutdown complete")
}
