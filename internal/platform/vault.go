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

const BalanceCollection = "Balances"

type mongoVault struct {
	balances *mongo.Collection
}

func NewMongoVault(db *mongo.Database) Vault {
	return &mongoVault{balances: db.Collection(BalanceCollection)}
}

// Transfer debits `from` and credits `to` in two writes that share the
// caller's session context, so either both land or the enclosing transaction
// is discarded. The debit filter requires a sufficient balance; no document
// movement happens on an overdraft.
func (v *mongoVault) Transfer(ctx context.Context, from, to string, amount int64) error {
	if amount == 0 {
		return nil
	}
	if amount < 0 {
		return fmt.Errorf("transfer amount cannot be negative: %d", amount)
	}
	if from == to {
		return nil
	}

	now := time.Now().UTC()
	res, err := v.balances.UpdateOne(ctx,
		bson.M{"_id": from, "amount": bson.M{"$gte": amount}},
		bson.M{"$inc": bson.M{"amount": -amount}, "$set": bson.M{"updated_at": now}},
	)
	if err != nil {
		return fmt.Errorf("failed to debit %s: %w", from, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("debit of %d from %s: %w", amount, from, ErrInsufficientFunds)
	}

	_, err = v.balances.UpdateOne(ctx,
		bson.M{"_id": to},
		bson.M{"$inc": bson.M{"amount": amount}, "$set": bson.M{"updated_at": now}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to credit %s: %w", to, err)
	}
	return nil
}

func (v *mongoVault) Balance(ctx context.Context, account string) (int64, error) {
	var bal model.Balance
	err := v.balances.FindOne(ctx, bson.M{"_id": account}).Decode(&bal)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, ErrUnknownAccount
		}
		return 0, fmt.Errorf("failed to read balance of %s: %w", account, err)
	}
	return bal.Amount, nil
}
