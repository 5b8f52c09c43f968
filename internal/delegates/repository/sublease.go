package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	delegateserrors "stayledger/internal/delegates/errors"
	"stayledger/pkg/config"
	"stayledger/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const SubleaseCollection = "Subleases"

type SubleaseRepository interface {
	Create(ctx context.Context, sublease *model.Sublease) error
	FindByID(ctx context.Context, id string) (*model.Sublease, error)
	FindByDelegate(ctx context.Context, delegateID string, limit int, offset int64) ([]*model.Sublease, error)
	CountByDelegate(ctx context.Context, delegateID string) (int64, error)
	Update(ctx context.Context, id string, sublease *model.Sublease) error
}

type mongoSubleaseRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoSubleaseRepository(cfg *config.Config) SubleaseRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSubleaseRepository{
		cfg:        cfg,
		collection: db.Collection(SubleaseCollection),
	}
}

func (r *mongoSubleaseRepository) Create(ctx context.Context, sublease *model.Sublease) error {
	sublease.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, sublease)
	if err != nil {
		return fmt.Errorf("failed to create sublease: %w", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		sublease.ID = oid.Hex()
	}
	return nil
}

func (r *mongoSubleaseRepository) FindByID(ctx context.Context, id string) (*model.Sublease, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", delegateserrors.ErrInvalidID, id)
	}

	var sublease model.Sublease
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&sublease)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, delegateserrors.ErrSubleaseNotFound
		}
		return nil, fmt.Errorf("failed to find sublease: %w", err)
	}
	sublease.ID = id
	return &sublease, nil
}

func (r *mongoSubleaseRepository) FindByDelegate(ctx context.Context, delegateID string, limit int, offset int64) ([]*model.Sublease, error) {
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "seq", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"delegate_id": delegateID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list subleases: %w", err)
	}
	defer cursor.Close(ctx)

	var subleases []*model.Sublease
	if err := cursor.All(ctx, &subleases); err != nil {
		return nil, fmt.Errorf("failed to decode subleases: %w", err)
	}
	return subleases, nil
}

func (r *mongoSubleaseRepository) CountByDelegate(ctx context.Context, delegateID string) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"delegate_id": delegateID})
	if err != nil {
		return 0, fmt.Errorf("failed to count subleases: %w", err)
	}
	return count, nil
}

func (r *mongoSubleaseRepository) Update(ctx context.Context, id string, sublease *model.Sublease) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", delegateserrors.ErrInvalidID, id)
	}

	snapshot := *sublease
	snapshot.ID = ""
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": objectID}, &snapshot)
	if err != nil {
		return fmt.Errorf("failed to update sublease: %w", err)
	}
	if result.MatchedCount == 0 {
		return delegateserrors.ErrSubleaseNotFound
	}
	return nil
}
