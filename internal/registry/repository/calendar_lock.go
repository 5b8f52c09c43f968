package repository

import (
	"context"
	"time"

	"stayledger/pkg/config"
	"stayledger/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const CalendarLockCollection = "Calendar_locks"

// CalendarLockRepository provides the advisory lock serializing calendar
// mutations. Insert of a duplicate key means someone else holds the lock.
type CalendarLockRepository interface {
	Create(ctx context.Context, lock *model.CalendarLock) (*model.CalendarLock, error)
	Delete(ctx context.Context, lockID string) error
}

type mongoCalendarLockRepository struct {
	collection *mongo.Collection
}

func NewCalendarLockRepository(cfg *config.Config) CalendarLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoCalendarLockRepository{
		collection: db.Collection(CalendarLockCollection),
	}
}

// Returns duplicate key error if the lock already exists.
func (r *mongoCalendarLockRepository) Create(ctx context.Context, lock *model.CalendarLock) (*model.CalendarLock, error) {
	lock.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, lock)
	if err != nil {
		return nil, err
	}
	return lock, nil
}

func (r *mongoCalendarLockRepository) Delete(ctx context.Context, lockID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID})
	return err
}
