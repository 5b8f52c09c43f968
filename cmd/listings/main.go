package main

import (
	delegaterepo "stayledger/internal/delegates/repository"
	"stayledger/internal/events"
	"stayledger/internal/listings/handler"
	"stayledger/internal/listings/repository"
	"stayledger/internal/listings/service"
	"stayledger/internal/listings/validator"
	"stayledger/internal/platform"
	registryrepo "stayledger/internal/registry/repository"
	registryservice "stayledger/internal/registry/service"
	"stayledger/pkg/app"
	"stayledger/pkg/config"
	kafka_config "stayledger/pkg/kafka/config"
)

const ServiceName = "listings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Listings service")
	listingService := initServices(cfg)
	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, handler.NewListingHandler(listingService, validator.NewListingValidator(cfg.Log), cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.ListingService {
	publisher := newPublisher(cfg)
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)

	registryService := registryservice.NewRegistryService(
		registryrepo.NewMongoCalendarRepository(cfg),
		registryrepo.NewMongoReservationRepository(cfg),
		registryrepo.NewCalendarLockRepository(cfg),
		publisher,
		cfg,
	)

	listingService := service.NewListingService(
		repository.NewMongoPropertyRepository(cfg),
		repository.NewMongoBookingRepository(cfg),
		repository.NewMongoPositionRepository(cfg),
		repository.NewMongoDepositProposalRepository(cfg),
		repository.NewMongoTokenProposalRepository(cfg),
		repository.NewSettlementLockRepository(cfg),
		delegaterepo.NewMongoDelegateRepository(cfg),
		registryService,
		platform.NewMongoDirectory(db),
		platform.NewMongoVault(db),
		platform.NewMongoShareToken(db),
		publisher,
		validator.NewListingValidator(cfg.Log),
		cfg,
	)

	cfg.Log.Info("Listing service initialized", "database", cfg.MongoDatabaseName)
	return listingService
}

func newPublisher(cfg *config.Config) events.Publisher {
	publisher, err := events.NewKafkaPublisher(kafka_config.Load(), ServiceName, cfg.Log)
	if err != nil {
		cfg.Log.Warn("Kafka unavailable, events disabled", "error", err)
		return events.Nop{}
	}
	return publisher
}
