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
)

const (
	DepositProposalCollection = "Deposit_proposals"
	TokenProposalCollection   = "Token_proposals"
)

// Proposals are keyed by booking ID, which enforces "at most one live
// proposal per booking" at the storage layer.

type DepositProposalRepository interface {
	Create(ctx context.Context, proposal *model.DepositSplitProposal) error
	FindByBooking(ctx context.Context, bookingID string) (*model.DepositSplitProposal, error)
	Freeze(ctx context.Context, bookingID string) error
	Delete(ctx context.Context, bookingID string) error
}

type mongoDepositProposalRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoDepositProposalRepository(cfg *config.Config) DepositProposalRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoDepositProposalRepository{
		cfg:        cfg,
		collection: db.Collection(DepositProposalCollection),
	}
}

func (r *mongoDepositProposalRepository) Create(ctx context.Context, proposal *model.DepositSplitProposal) error {
	proposal.ID = proposal.BookingID
	proposal.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if _, err := r.collection.InsertOne(ctx, proposal); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return listingserrors.ErrProposalPending
		}
		return fmt.Errorf("failed to create deposit proposal: %w", err)
	}
	return nil
}

func (r *mongoDepositProposalRepository) FindByBooking(ctx context.Context, bookingID string) (*model.DepositSplitProposal, error) {
	var proposal model.DepositSplitProposal
	err := r.collection.FindOne(ctx, bson.M{"_id": bookingID}).Decode(&proposal)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, listingserrors.ErrProposalNotFound
		}
		return nil, fmt.Errorf("failed to find deposit proposal: %w", err)
	}
	return &proposal, nil
}

func (r *mongoDepositProposalRepository) Freeze(ctx context.Context, bookingID string) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": bookingID}, bson.M{"$set": bson.M{"frozen": true}})
	if err != nil {
		return fmt.Errorf("failed to freeze deposit proposal: %w", err)
	}
	return nil
}

func (r *mongoDepositProposalRepository) Delete(ctx context.Context, bookingID string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": bookingID})
	if err != nil {
		return fmt.Errorf("failed to delete deposit proposal: %w", err)
	}
	if result.DeletedCount == 0 {
		return listingserrors.ErrProposalNotFound
	}
	return nil
}

type TokenProposalRepository interface {
	Create(ctx context.Context, proposal *model.TokenisationProposal) error
	FindByBooking(ctx context.Context, bookingID string) (*model.TokenisationProposal, error)
	Approve(ctx context.Context, bookingID string) error
	Delete(ctx context.Context, bookingID string) error
}

type mongoTokenProposalRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoTokenProposalRepository(cfg *config.Config) TokenProposalRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoTokenProposalRepository{
		cfg:        cfg,
		collection: db.Collection(TokenProposalCollection),
	}
}

func (r *mongoTokenProposalRepository) Create(ctx context.Context, proposal *model.TokenisationProposal) error {
	proposal.ID = proposal.BookingID
	proposal.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if _, err := r.collection.InsertOne(ctx, proposal); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return listingserrors.ErrProposalPending
		}
		return fmt.Errorf("failed to create tokenisation proposal: %w", err)
	}
	return nil
}

func (r *mongoTokenProposalRepository) FindByBooking(ctx context.Context, bookingID string) (*model.TokenisationProposal, error) {
	var proposal model.TokenisationProposal
	err := r.collection.FindOne(ctx, bson.M{"_id": bookingID}).Decode(&proposal)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, listingserrors.ErrProposalNotFound
		}
		return nil, fmt.Errorf("failed to find tokenisation proposal: %w", err)
	}
	return &proposal, nil
}

func (r *mongoTokenProposalRepository) Approve(ctx context.Context, bookingID string) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": bookingID}, bson.M{"$set": bson.M{"approved": true}})
	if err != nil {
		return fmt.Errorf("failed to approve tokenisation proposal: %w", err)
	}
	if result.MatchedCount == 0 {
		return listingserrors.ErrProposalNotFound
	}
	return nil
}

func (r *mongoTokenProposalRepository) Delete(ctx context.Context, bookingID string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": bookingID})
	if err != nil {
		return fmt.Errorf("failed to delete tokenisation proposal: %w", err)
	}
	if result.DeletedCount == 0 {
		return listingserrors.ErrProposalNotFound
	}
	return nil
}
