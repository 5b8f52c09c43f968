package main

import (
	"stayledger/internal/events"
	"stayledger/internal/registry/handler"
	"stayledger/internal/registry/repository"
	"stayledger/internal/registry/service"
	"stayledger/internal/registry/validator"
	"stayledger/pkg/app"
	"stayledger/pkg/config"
	kafka_config "stayledger/pkg/kafka/config"
)

const ServiceName = "registry"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Registry service")
	registryService := initServices(cfg)
	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, handler.NewRegistryHandler(registryService, validator.NewRegistryValidator(cfg.Log), cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.RegistryService {
	calendarRepo := repository.NewMongoCalendarRepository(cfg)
	reservationRepo := repository.NewMongoReservationRepository(cfg)
	lockRepo := repository.NewCalendarLockRepository(cfg)

	registryService := service.NewRegistryService(
		calendarRepo,
		reservationRepo,
		lockRepo,
		newPublisher(cfg),
		cfg,
	)

	cfg.Log.Info("Registry service initialized", "database", cfg.MongoDatabaseName)
	return registryService
}

func newPublisher(cfg *config.Config) events.Publisher {
	publisher, err := events.NewKafkaPublisher(kafka_config.Load(), ServiceName, cfg.Log)
	if err != nil {
		cfg.Log.Warn("Kafka unavailable, events disabled", "error", err)
		return events.Nop{}
	}
	return publisher
}
