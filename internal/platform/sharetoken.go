package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stayledger/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	HoldingCollection    = "Share_holdings"
	ShareClassCollection = "Share_classes"
)

type mongoShareToken struct {
	holdings *mongo.Collection
	classes  *mongo.Collection
}

func NewMongoShareToken(db *mongo.Database) ShareToken {
	return &mongoShareToken{
		holdings: db.Collection(HoldingCollection),
		classes:  db.Collection(ShareClassCollection),
	}
}

func holdingID(classID, holder string) string {
	return classID + "/" + holder
}

func (t *mongoShareToken) Mint(ctx context.Context, classID, holder string, units int64) error {
	if units <= 0 {
		return fmt.Errorf("mint units must be positive, got %d", units)
	}
	_, err := t.holdings.UpdateOne(ctx,
		bson.M{"_id": holdingID(classID, holder)},
		bson.M{
			"$inc": bson.M{"units": units},
			"$setOnInsert": bson.M{"class_id": classID, "holder": holder},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to mint %d units of %s: %w", units, classID, err)
	}
	return nil
}

func (t *mongoShareToken) BalanceOf(ctx context.Context, classID, holder string) (int64, error) {
	var holding model.ShareHolding
	err := t.holdings.FindOne(ctx, bson.M{"_id": holdingID(classID, holder)}).Decode(&holding)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read holding: %w", err)
	}
	return holding.Units, nil
}

func (t *mongoShareToken) LockTransfers(ctx context.Context, classID string) error {
	_, err := t.classes.UpdateOne(ctx,
		bson.M{"_id": classID},
		bson.M{"$set": bson.M{"locked": true, "locked_at": time.Now().UTC()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to lock transfers of %s: %w", classID, err)
	}
	return nil
}
