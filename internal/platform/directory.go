package platform

import (
	"context"
	"errors"
	"fmt"

	"stayledger/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	ConfigCollection = "Platform_config"
	PassCollection   = "Access_passes"

	// The directory is a singleton document.
	ConfigDocID = "platform"
)

type mongoDirectory struct {
	config *mongo.Collection
	passes *mongo.Collection
}

func NewMongoDirectory(db *mongo.Database) Directory {
	return &mongoDirectory{
		config: db.Collection(ConfigCollection),
		passes: db.Collection(PassCollection),
	}
}

func (d *mongoDirectory) FeePolicy(ctx context.Context) (*model.PlatformConfig, error) {
	var cfg model.PlatformConfig
	err := d.config.FindOne(ctx, bson.M{"_id": ConfigDocID}).Decode(&cfg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrConfigMissing
		}
		return nil, fmt.Errorf("failed to load platform config: %w", err)
	}
	return &cfg, nil
}

func (d *mongoDirectory) HasAccessPass(ctx context.Context, account string) (bool, error) {
	err := d.passes.FindOne(ctx, bson.M{"_id": account}).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check access pass: %w", err)
	}
	return true, nil
}
