package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stayledger/internal/events"
	registryerrors "stayledger/internal/registry/errors"
	"stayledger/internal/registry/repository"
	"stayledger/pkg/config"
	apperrors "stayledger/pkg/errors"
	"stayledger/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

const secondsPerDay = 86400

// RegistryService owns the authoritative reservation calendars. Reserve and
// Release are the only two mutation paths; callers never read-then-write
// calendar state around them.
//
// The *InTx variants run inside a caller-owned session (and under the
// caller's calendar lock) so a booking and its reservation commit or abort
// together. The plain variants wrap lock, transaction and event emission for
// callers that mutate the calendar directly.
type RegistryService interface {
	CreateCalendar(ctx context.Context, id string, capacitySqm int64) error
	Reserve(ctx context.Context, calendarID string, holder model.Holder, start, end time.Time, units int64) (*model.Reservation, error)
	Release(ctx context.Context, calendarID string, holder model.Holder, start, end time.Time) error

	ReserveInTx(ctx context.Context, calendarID string, holder model.Holder, start, end time.Time, units int64) (*model.Reservation, error)
	ReleaseInTx(ctx context.Context, calendarID string, holder model.Holder, start, end time.Time) (*model.Reservation, error)

	WithCalendarLock(ctx context.Context, calendarID string, fn func() error) error

	IsAvailable(ctx context.Context, calendarID string, start, end time.Time, units int64) (bool, error)
	ReservedUnits(ctx context.Context, calendarID string, at time.Time) (int64, error)
	GetCalendar(ctx context.Context, id string) (*model.Calendar, error)
	ListReservations(ctx context.Context, calendarID string, limit int, offset int64) ([]*model.Reservation, int64, error)

	EmitReserved(ctx context.Context, reservation *model.Reservation)
	EmitReleased(ctx context.Context, reservation *model.Reservation)
}

type registryService struct {
	calendars    repository.CalendarRepository
	reservations repository.ReservationRepository
	locks        repository.CalendarLockRepository
	publisher    events.Publisher
	cfg          *config.Config
}

func NewRegistryService(
	calendars repository.CalendarRepository,
	reservations repository.ReservationRepository,
	locks repository.CalendarLockRepository,
	publisher events.Publisher,
	cfg *config.Config,
) RegistryService {
	return &registryService{
		calendars:    calendars,
		reservations: reservations,
		locks:        locks,
		publisher:    publisher,
		cfg:          cfg,
	}
}

func (s *registryService) CreateCalendar(ctx context.Context, id string, capacitySqm int64) error {
	if id == "" {
		return apperrors.InvalidInput("Calendar ID cannot be empty")
	}
	if capacitySqm <= 0 {
		return apperrors.InvalidInput("Calendar capacity must be positive")
	}

	err := s.calendars.Create(ctx, &model.Calendar{ID: id, CapacitySqm: capacitySqm})
	if err != nil {
		if errors.Is(err, registryerrors.ErrCalendarExists) {
			return apperrors.Conflict(fmt.Sprintf("Calendar %s already exists", id))
		}
		return apperrors.Internal("Failed to create calendar", err)
	}

	s.cfg.Log.Info("Calendar created", "calendar_id", id, "capacity_sqm", capacitySqm)
	return nil
}

func (s *registryService) Reserve(ctx context.Context, calendarID string, holder model.Holder, start, end time.Time, units int64) (*model.Reservation, error) {
	var reservation *model.Reservation

	err := s.WithCalendarLock(ctx, calendarID, func() error {
		return s.reservations.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			var err error
			reservation, err = s.ReserveInTx(sessCtx, calendarID, holder, start, end, units)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.EmitReserved(ctx, reservation)
	return reservation, nil
}

func (s *registryService) Release(ctx context.Context, calendarID string, holder model.Holder, start, end time.Time) error {
	var released *model.Reservation

	err := s.WithCalendarLock(ctx, calendarID, func() error {
		return s.reservations.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			var err error
			released, err = s.ReleaseInTx(sessCtx, calendarID, holder, start, end)
			return err
		})
	})
	if err != nil {
		return err
	}

	s.EmitReleased(ctx, released)
	return nil
}

// ReserveInTx records a new active reservation after the capacity check. The
// exact interval may be held at most once per holder, and the sum of active
// overlapping units plus the new units must not exceed the calendar's
// capacity. Any failure aborts the caller's whole transaction.
func (s *registryService) ReserveInTx(ctx context.Context, calendarID string, holder model.Holder, start, end time.Time, units int64) (*model.Reservation, error) {
	if !end.After(start) {
		return nil, apperrors.InvalidInput("End time must be after start time")
	}
	if units <= 0 {
		return nil, apperrors.InvalidInput("Reserved units must be positive")
	}

	calendar, err := s.calendars.FindByID(ctx, calendarID)
	if err != nil {
		if errors.Is(err, registryerrors.ErrCalendarNotFound) {
			return nil, apperrors.NotFoundWithID("Calendar", calendarID)
		}
		return nil, apperrors.Internal("Failed to load calendar", err)
	}

	if _, err := s.reservations.FindActiveExact(ctx, calendarID, holder, start, end); err == nil {
		return nil, apperrors.Conflict("Exact interval already reserved by this holder")
	} else if !errors.Is(err, registryerrors.ErrReservationNotFound) {
		return nil, apperrors.Internal("Failed to check existing reservation", err)
	}

	overlapping, err := s.reservations.FindActiveOverlapping(ctx, calendarID, start, end)
	if err != nil {
		return nil, apperrors.Internal("Failed to load overlapping reservations", err)
	}

	var occupied int64
	for _, r := range overlapping {
		occupied += r.Units
	}
	if occupied+units > calendar.CapacitySqm {
		return nil, apperrors.Conflict(fmt.Sprintf(
			"Reservation of %d sqm exceeds capacity: %d of %d sqm already reserved in the requested window",
			units, occupied, calendar.CapacitySqm,
		))
	}

	reservation := &model.Reservation{
		CalendarID: calendarID,
		Holder:     holder,
		StartTime:  start,
		EndTime:    end,
		Units:      units,
	}
	if err := s.reservations.Create(ctx, reservation); err != nil {
		return nil, apperrors.Internal("Failed to create reservation", err)
	}

	s.cfg.Log.Info("Reservation recorded",
		"calendar_id", calendarID,
		"holder_kind", holder.Kind,
		"holder_id", holder.ID,
		"start", start,
		"end", end,
		"units", units,
	)
	return reservation, nil
}

// ReleaseInTx deactivates the reservation matching the exact interval and
// holder. It is the exact inverse of ReserveInTx: after it commits, the
// released units are available again for every instant of the interval.
func (s *registryService) ReleaseInTx(ctx context.Context, calendarID string, holder model.Holder, start, end time.Time) (*model.Reservation, error) {
	reservation, err := s.reservations.FindActiveExact(ctx, calendarID, holder, start, end)
	if err != nil {
		if errors.Is(err, registryerrors.ErrReservationNotFound) {
			return nil, apperrors.NotFound("Active reservation for the requested interval")
		}
		return nil, apperrors.Internal("Failed to find reservation", err)
	}

	if err := s.reservations.Release(ctx, reservation.ID); err != nil {
		return nil, apperrors.Internal("Failed to release reservation", err)
	}

	s.cfg.Log.Info("Reservation released",
		"calendar_id", calendarID,
		"holder_kind", holder.Kind,
		"holder_id", holder.ID,
		"reservation_id", reservation.ID,
	)
	return reservation, nil
}

// WithCalendarLock serializes calendar mutations through the advisory lock
// collection. The lock is released on every exit path; a crashed holder is
// covered by the TTL index on the lock collection.
func (s *registryService) WithCalendarLock(ctx context.Context, calendarID string, fn func() error) error {
	lockID := "calendar_lock_" + calendarID
	lock := &model.CalendarLock{
		ID:        lockID,
		ExpiresAt: time.Now().Add(s.cfg.CalendarLockTTL),
	}

	if _, err := s.locks.Create(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.Conflict("Calendar is being modified by another request. Please try again.")
		}
		return apperrors.Internal("Failed to acquire calendar lock", err)
	}
	defer func() {
		if releaseErr := s.locks.Delete(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release calendar lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	return fn()
}

func (s *registryService) IsAvailable(ctx context.Context, calendarID string, start, end time.Time, units int64) (bool, error) {
	if !end.After(start) {
		return false, apperrors.InvalidInput("End time must be after start time")
	}

	calendar, err := s.calendars.FindByID(ctx, calendarID)
	if err != nil {
		if errors.Is(err, registryerrors.ErrCalendarNotFound) {
			return false, apperrors.NotFoundWithID("Calendar", calendarID)
		}
		return false, apperrors.Internal("Failed to load calendar", err)
	}

	overlapping, err := s.reservations.FindActiveOverlapping(ctx, calendarID, start, end)
	if err != nil {
		return false, apperrors.Internal("Failed to load overlapping reservations", err)
	}

	var occupied int64
	for _, r := range overlapping {
		occupied += r.Units
	}
	return occupied+units <= calendar.CapacitySqm, nil
}

// ReservedUnits reports the sum of active reserved units covering one
// instant.
func (s *registryService) ReservedUnits(ctx context.Context, calendarID string, at time.Time) (int64, error) {
	overlapping, err := s.reservations.FindActiveOverlapping(ctx, calendarID, at, at.Add(time.Nanosecond))
	if err != nil {
		return 0, apperrors.Internal("Failed to load reservations", err)
	}

	var occupied int64
	for _, r := range overlapping {
		occupied += r.Units
	}
	return occupied, nil
}

func (s *registryService) GetCalendar(ctx context.Context, id string) (*model.Calendar, error) {
	calendar, err := s.calendars.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, registryerrors.ErrCalendarNotFound) {
			return nil, apperrors.NotFoundWithID("Calendar", id)
		}
		return nil, apperrors.Internal("Failed to load calendar", err)
	}
	return calendar, nil
}

func (s *registryService) ListReservations(ctx context.Context, calendarID string, limit int, offset int64) ([]*model.Reservation, int64, error) {
	reservations, err := s.reservations.FindByCalendar(ctx, calendarID, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to list reservations", err)
	}
	count, err := s.reservations.CountByCalendar(ctx, calendarID)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to count reservations", err)
	}
	return reservations, count, nil
}

// EmitReserved publishes the reservation event with both the raw range and
// the day-normalized range. Publishing happens after commit and never fails
// the operation.
func (s *registryService) EmitReserved(ctx context.Context, reservation *model.Reservation) {
	s.emit(ctx, events.TypeReservationReserved, reservation)
}

func (s *registryService) EmitReleased(ctx context.Context, reservation *model.Reservation) {
	s.emit(ctx, events.TypeReservationReleased, reservation)
}

func (s *registryService) emit(ctx context.Context, eventType string, reservation *model.Reservation) {
	startDay, endDay := DayRange(reservation.StartTime, reservation.EndTime)
	payload := events.ReservationEvent{
		CalendarID: reservation.CalendarID,
		HolderKind: reservation.Holder.Kind,
		HolderID:   reservation.Holder.ID,
		StartTime:  reservation.StartTime,
		EndTime:    reservation.EndTime,
		StartDay:   startDay,
		EndDay:     endDay,
		Units:      reservation.Units,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, eventType, reservation.CalendarID, payload); err != nil {
		s.cfg.Log.Warn("Reservation event not published", "event_type", eventType, "calendar_id", reservation.CalendarID)
	}
}

// DayRange normalizes a raw interval to whole-day boundaries: the start day
// is floored, the exclusive end day is ceiled.
func DayRange(start, end time.Time) (int64, int64) {
	startDay := start.Unix() / secondsPerDay
	if start.Unix() < 0 && start.Unix()%secondsPerDay != 0 {
		startDay--
	}
	endDay := end.Unix() / secondsPerDay
	if end.Unix()%secondsPerDay != 0 && end.Unix() > 0 {
		endDay++
	}
	return startDay, endDay
}
