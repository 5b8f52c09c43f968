package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"stayledger/internal/migrations/mongo/validators"
)

const (
	DB_NAME = "stayledger"
)

var (
	CalendarsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	}

	ReservationsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "calendar_id", Value: 1},
			{Key: "active", Value: 1},
			{Key: "start_time", Value: 1},
			{Key: "end_time", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "calendar_id", Value: 1},
			{Key: "holder.kind", Value: 1},
			{Key: "holder.id", Value: 1},
		},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "active", Value: true}}),
		},
	}

	CalendarLocksIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0)},
	}

	PropertiesIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner", Value: 1}}},
		{Keys: bson.D{{Key: "active", Value: 1}}},
	}

	BookingsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "property_id", Value: 1},
			{Key: "seq", Value: 1},
		},
			Options: options.Index().SetUnique(true)},
		{Keys: bson.D{
			{Key: "property_id", Value: 1},
			{Key: "status", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "tenant", Value: 1},
			{Key: "start_time", Value: 1},
		}},
	}

	DepositProposalsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "booking_id", Value: 1}},
			Options: options.Index().SetUnique(true)},
	}

	TokenProposalsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "booking_id", Value: 1}},
			Options: options.Index().SetUnique(true)},
	}

	SettlementLocksIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0)},
	}

	PositionsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "scope", Value: 1},
			{Key: "holder", Value: 1},
		},
			Options: options.Index().SetUnique(true)},
	}

	DelegatesIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "booking_id", Value: 1}},
			Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "operator", Value: 1}}},
	}

	SubleasesIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "delegate_id", Value: 1},
			{Key: "seq", Value: 1},
		},
			Options: options.Index().SetUnique(true)},
		{Keys: bson.D{
			{Key: "delegate_id", Value: 1},
			{Key: "status", Value: 1},
		}},
	}
)

func RunMigration(ctx context.Context, client *mongo.Client) error {
	db := client.Database(DB_NAME)
	fmt.Printf("Running Mongo migrations on database: %s\n", DB_NAME)

	collections := map[string]struct {
		Indexes   []mongo.IndexModel
		Validator bson.M
	}{
		"Calendars": {
			Indexes:   CalendarsIndexes,
			Validator: validators.CalendarValidator,
		},
		"Reservations": {
			Indexes:   ReservationsIndexes,
			Validator: validators.ReservationValidator,
		},
		"Calendar_locks": {
			Indexes: CalendarLocksIndexes,
		},
		"Properties": {
			Indexes:   PropertiesIndexes,
			Validator: validators.PropertyValidator,
		},
		"Bookings": {
			Indexes:   BookingsIndexes,
			Validator: validators.BookingValidator,
		},
		"Deposit_proposals": {
			Indexes: DepositProposalsIndexes,
		},
		"Token_proposals": {
			Indexes: TokenProposalsIndexes,
		},
		"Settlement_locks": {
			Indexes: SettlementLocksIndexes,
		},
		"Positions": {
			Indexes:   PositionsIndexes,
			Validator: validators.PositionValidator,
		},
		"Delegates": {
			Indexes:   DelegatesIndexes,
			Validator: validators.DelegateValidator,
		},
		"Subleases": {
			Indexes:   SubleasesIndexes,
			Validator: validators.SubleaseValidator,
		},
	}

	for name, def := range collections {
		if err := ensureCollection(ctx, db, name, def.Validator); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	fmt.Println("All migrations applied successfully.")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		fmt.Printf("Creating collection: %s\n", name)
		opts := options.CreateCollection()
		if validator != nil {
			opts = opts.SetValidator(validator)
		}
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
	} else if validator != nil {
		fmt.Printf("Collection %s already exists, updating validator if needed\n", name)
		command := bson.D{
			{Key: "collMod", Value: name},
			{Key: "validator", Value: validator},
		}
		if err := db.RunCommand(ctx, command).Err(); err != nil {
			fmt.Printf("Warning: failed updating validator for %s: %v\n", name, err)
		}
	}

	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel) error {
	coll := db.Collection(name)
	_, err := coll.Indexes().CreateMany(ctx, models)
	if err != nil {
		return err
	}
	fmt.Printf("Ensured indexes for %s\n", name)
	return nil
}
