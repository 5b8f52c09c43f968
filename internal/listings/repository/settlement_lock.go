package repository

import (
	"context"
	"time"

	"stayledger/pkg/config"
	"stayledger/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const SettlementLockCollection = "Settlement_locks"

// SettlementLockRepository provides the advisory lock held for the full
// duration of any operation that moves settlement tokens. Insert of a
// duplicate key means the scope is already settling.
type SettlementLockRepository interface {
	Create(ctx context.Context, lock *model.SettlementLock) (*model.SettlementLock, error)
	Delete(ctx context.Context, lockID string) error
}

type mongoSettlementLockRepository struct {
	collection *mongo.Collection
}

func NewSettlementLockRepository(cfg *config.Config) SettlementLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSettlementLockRepository{
		collection: db.Collection(SettlementLockCollection),
	}
}

// Returns duplicate key error if the lock already exists.
func (r *mongoSettlementLockRepository) Create(ctx context.Context, lock *model.SettlementLock) (*model.SettlementLock, error) {
	lock.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, lock)
	if err != nil {
		return nil, err
	}
	return lock, nil
}

func (r *mongoSettlementLockRepository) Delete(ctx context.Context, lockID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID})
	return err
}
