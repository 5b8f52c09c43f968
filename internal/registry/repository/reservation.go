package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	registryerrors "stayledger/internal/registry/errors"
	"stayledger/pkg/config"
	mongotx "stayledger/pkg/db/mongo"
	"stayledger/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ReservationCollection = "Reservations"

type ReservationRepository interface {
	Create(ctx context.Context, reservation *model.Reservation) error
	FindActiveExact(ctx context.Context, calendarID string, holder model.Holder, start, end time.Time) (*model.Reservation, error)
	FindActiveOverlapping(ctx context.Context, calendarID string, start, end time.Time) ([]*model.Reservation, error)
	Release(ctx context.Context, id string) error
	FindByCalendar(ctx context.Context, calendarID string, limit int, offset int64) ([]*model.Reservation, error)
	CountByCalendar(ctx context.Context, calendarID string) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoReservationRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoReservationRepository(cfg *config.Config) ReservationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationRepository{
		cfg:        cfg,
		collection: db.Collection(ReservationCollection),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	if reservation.ID == "" {
		reservation.ID = uuid.New().String()
	}
	reservation.Active = true
	reservation.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if _, err := r.collection.InsertOne(ctx, reservation); err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}

func (r *mongoReservationRepository) FindActiveExact(ctx context.Context, calendarID string, holder model.Holder, start, end time.Time) (*model.Reservation, error) {
	filter := bson.M{
		"calendar_id": calendarID,
		"holder.kind": holder.Kind,
		"holder.id":   holder.ID,
		"start_time":  start,
		"end_time":    end,
		"active":      true,
	}

	var reservation model.Reservation
	err := r.collection.FindOne(ctx, filter).Decode(&reservation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, registryerrors.ErrReservationNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}
	return &reservation, nil
}

// FindActiveOverlapping returns every active reservation whose interval
// intersects [start, end) under the half-open overlap test.
func (r *mongoReservationRepository) FindActiveOverlapping(ctx context.Context, calendarID string, start, end time.Time) ([]*model.Reservation, error) {
	filter := bson.M{
		"calendar_id": calendarID,
		"active":      true,
		"start_time":  bson.M{"$lt": end},
		"end_time":    bson.M{"$gt": start},
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}
	return reservations, nil
}

// Release deactivates a reservation; the record stays for audit history.
func (r *mongoReservationRepository) Release(ctx context.Context, id string) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "active": true},
		bson.M{"$set": bson.M{"active": false, "released_at": now}},
	)
	if err != nil {
		return fmt.Errorf("failed to release reservation: %w", err)
	}
	if res.MatchedCount == 0 {
		return registryerrors.ErrReservationNotFound
	}
	return nil
}

func (r *mongoReservationRepository) FindByCalendar(ctx context.Context, calendarID string, limit int, offset int64) ([]*model.Reservation, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{"calendar_id": calendarID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}
	return reservations, nil
}

func (r *mongoReservationRepository) CountByCalendar(ctx context.Context, calendarID string) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"calendar_id": calendarID})
	if err != nil {
		return 0, fmt.Errorf("failed to count reservations: %w", err)
	}
	return count, nil
}

func (r *mongoReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
