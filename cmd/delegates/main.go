package main

import (
	"stayledger/internal/delegates/handler"
	"stayledger/internal/delegates/repository"
	"stayledger/internal/delegates/service"
	"stayledger/internal/delegates/validator"
	"stayledger/internal/events"
	listingsrepo "stayledger/internal/listings/repository"
	"stayledger/internal/platform"
	registryrepo "stayledger/internal/registry/repository"
	registryservice "stayledger/internal/registry/service"
	"stayledger/pkg/app"
	"stayledger/pkg/config"
	kafka_config "stayledger/pkg/kafka/config"
)

const ServiceName = "delegates"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Delegates service")
	delegateService := initServices(cfg)
	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, handler.NewDelegateHandler(delegateService, validator.NewDelegateValidator(cfg.Log), cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.DelegateService {
	publisher := newPublisher(cfg)
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)

	registryService := registryservice.NewRegistryService(
		registryrepo.NewMongoCalendarRepository(cfg),
		registryrepo.NewMongoReservationRepository(cfg),
		registryrepo.NewCalendarLockRepository(cfg),
		publisher,
		cfg,
	)

	delegateService := service.NewDelegateService(
		repository.NewMongoDelegateRepository(cfg),
		repository.NewMongoSubleaseRepository(cfg),
		listingsrepo.NewMongoPositionRepository(cfg),
		listingsrepo.NewMongoTokenProposalRepository(cfg),
		listingsrepo.NewSettlementLockRepository(cfg),
		registryService,
		platform.NewMongoDirectory(db),
		platform.NewMongoVault(db),
		platform.NewMongoShareToken(db),
		publisher,
		validator.NewDelegateValidator(cfg.Log),
		cfg,
	)

	cfg.Log.Info("Delegate service initialized", "database", cfg.MongoDatabaseName)
	return delegateService
}

func newPublisher(cfg *config.Config) events.Publisher {
	publisher, err := events.NewKafkaPublisher(kafka_config.Load(), ServiceName, cfg.Log)
	if err != nil {
		cfg.Log.Warn("Kafka unavailable, events disabled", "error", err)
		return events.Nop{}
	}
	return publisher
}
