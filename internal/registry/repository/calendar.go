package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	registryerrors "stayledger/internal/registry/errors"
	"stayledger/pkg/config"
	mongotx "stayledger/pkg/db/mongo"
	"stayledger/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const CalendarCollection = "Calendars"

type CalendarRepository interface {
	Create(ctx context.Context, calendar *model.Calendar) error
	FindByID(ctx context.Context, id string) (*model.Calendar, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoCalendarRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoCalendarRepository(cfg *config.Config) CalendarRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoCalendarRepository{
		cfg:        cfg,
		collection: db.Collection(CalendarCollection),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoCalendarRepository) Create(ctx context.Context, calendar *model.Calendar) error {
	calendar.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	_, err := r.collection.InsertOne(ctx, calendar)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return registryerrors.ErrCalendarExists
		}
		return fmt.Errorf("failed to create calendar: %w", err)
	}
	return nil
}

func (r *mongoCalendarRepository) FindByID(ctx context.Context, id string) (*model.Calendar, error) {
	var calendar model.Calendar
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&calendar)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, registryerrors.ErrCalendarNotFound
		}
		return nil, fmt.Errorf("failed to find calendar: %w", err)
	}
	return &calendar, nil
}

func (r *mongoCalendarRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
