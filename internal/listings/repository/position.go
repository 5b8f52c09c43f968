package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	listingserrors "stayledger/internal/listings/errors"
	"stayledger/pkg/config"
	"stayledger/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const PositionCollection = "Positions"

// PositionRepository tracks per-holder stakes and debt snapshots for one
// accumulator scope. The document key is scope+holder, so a holder has at
// most one position per scope.
type PositionRepository interface {
	FindByScopeAndHolder(ctx context.Context, scope, holder string) (*model.Position, error)
	FindByScope(ctx context.Context, scope string, limit int, offset int64) ([]*model.Position, error)
	CountByScope(ctx context.Context, scope string) (int64, error)
	Save(ctx context.Context, position *model.Position) error
}

type mongoPositionRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoPositionRepository(cfg *config.Config) PositionRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoPositionRepository{
		cfg:        cfg,
		collection: db.Collection(PositionCollection),
	}
}

func positionID(scope, holder string) string {
	return scope + "/" + holder
}

func (r *mongoPositionRepository) FindByScopeAndHolder(ctx context.Context, scope, holder string) (*model.Position, error) {
	var position model.Position
	err := r.collection.FindOne(ctx, bson.M{"_id": positionID(scope, holder)}).Decode(&position)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, listingserrors.ErrPositionNotFound
		}
		return nil, fmt.Errorf("failed to find position: %w", err)
	}
	return &position, nil
}

func (r *mongoPositionRepository) FindByScope(ctx context.Context, scope string, limit int, offset int64) ([]*model.Position, error) {
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "holder", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"scope": scope}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	defer cursor.Close(ctx)

	var positions []*model.Position
	if err := cursor.All(ctx, &positions); err != nil {
		return nil, fmt.Errorf("failed to decode positions: %w", err)
	}
	return positions, nil
}

func (r *mongoPositionRepository) CountByScope(ctx context.Context, scope string) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"scope": scope})
	if err != nil {
		return 0, fmt.Errorf("failed to count positions: %w", err)
	}
	return count, nil
}

// Save upserts the position under its deterministic key.
func (r *mongoPositionRepository) Save(ctx context.Context, position *model.Position) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	if position.ID == "" {
		position.ID = positionID(position.Scope, position.Holder)
		position.CreatedAt = now
	}
	position.UpdatedAt = now

	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": position.ID}, position, opts); err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}
	return nil
}
