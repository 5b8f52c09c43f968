package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	delegateserrors "stayledger/internal/delegates/errors"
	"stayledger/pkg/config"
	mongotx "stayledger/pkg/db/mongo"
	"stayledger/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const DelegateCollection = "Delegates"

type DelegateRepository interface {
	Create(ctx context.Context, delegate *model.Delegate) error
	FindByID(ctx context.Context, id string) (*model.Delegate, error)
	FindByBooking(ctx context.Context, bookingID string) (*model.Delegate, error)
	Update(ctx context.Context, id string, delegate *model.Delegate) error
	NextSubleaseSeq(ctx context.Context, id string) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoDelegateRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoDelegateRepository(cfg *config.Config) DelegateRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoDelegateRepository{
		cfg:        cfg,
		collection: db.Collection(DelegateCollection),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoDelegateRepository) Create(ctx context.Context, delegate *model.Delegate) error {
	delegate.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, delegate)
	if err != nil {
		return fmt.Errorf("failed to create delegate: %w", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		delegate.ID = oid.Hex()
	}
	return nil
}

func (r *mongoDelegateRepository) FindByID(ctx context.Context, id string) (*model.Delegate, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", delegateserrors.ErrInvalidID, id)
	}

	var delegate model.Delegate
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&delegate)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, delegateserrors.ErrDelegateNotFound
		}
		return nil, fmt.Errorf("failed to find delegate: %w", err)
	}
	delegate.ID = id
	return &delegate, nil
}

func (r *mongoDelegateRepository) FindByBooking(ctx context.Context, bookingID string) (*model.Delegate, error) {
	var delegate model.Delegate
	err := r.collection.FindOne(ctx, bson.M{"booking_id": bookingID}).Decode(&delegate)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, delegateserrors.ErrDelegateNotFound
		}
		return nil, fmt.Errorf("failed to find delegate: %w", err)
	}
	return &delegate, nil
}

func (r *mongoDelegateRepository) Update(ctx context.Context, id string, delegate *model.Delegate) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", delegateserrors.ErrInvalidID, id)
	}

	snapshot := *delegate
	snapshot.ID = ""
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": objectID}, &snapshot)
	if err != nil {
		return fmt.Errorf("failed to update delegate: %w", err)
	}
	if result.MatchedCount == 0 {
		return delegateserrors.ErrDelegateNotFound
	}
	return nil
}

// NextSubleaseSeq atomically reserves the next per-delegate sublease
// sequence number.
func (r *mongoDelegateRepository) NextSubleaseSeq(ctx context.Context, id string) (int64, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", delegateserrors.ErrInvalidID, id)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var delegate model.Delegate
	err = r.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$inc": bson.M{"next_sublease_seq": 1}},
		opts,
	).Decode(&delegate)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, delegateserrors.ErrDelegateNotFound
		}
		return 0, fmt.Errorf("failed to reserve sublease sequence: %w", err)
	}
	return delegate.NextSubleaseSeq, nil
}

func (r *mongoDelegateRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
