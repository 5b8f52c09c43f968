package service

import (
	"context"
	"testing"
	"time"

	"stayledger/internal/events"
	registryerrors "stayledger/internal/registry/errors"
	"stayledger/pkg/config"
	mongotx "stayledger/pkg/db/mongo"
	"stayledger/pkg/logger"
	"stayledger/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

// ────────────────────────────────────────────────
// In-memory fakes
// ────────────────────────────────────────────────

type fakeCalendarRepo struct {
	calendars map[string]*model.Calendar
}

func (f *fakeCalendarRepo) Create(_ context.Context, c *model.Calendar) error {
	if _, ok := f.calendars[c.ID]; ok {
		return registryerrors.ErrCalendarExists
	}
	f.calendars[c.ID] = c
	return nil
}

func (f *fakeCalendarRepo) FindByID(_ context.Context, id string) (*model.Calendar, error) {
	c, ok := f.calendars[id]
	if !ok {
		return nil, registryerrors.ErrCalendarNotFound
	}
	return c, nil
}

func (f *fakeCalendarRepo) ExecuteTransaction(_ context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type fakeReservationRepo struct {
	reservations []*model.Reservation
	nextID       int
}

func (f *fakeReservationRepo) Create(_ context.Context, r *model.Reservation) error {
	f.nextID++
	r.ID = string(rune('a' + f.nextID))
	r.Active = true
	f.reservations = append(f.reservations, r)
	return nil
}

func (f *fakeReservationRepo) FindActiveExact(_ context.Context, calendarID string, holder model.Holder, start, end time.Time) (*model.Reservation, error) {
	for _, r := range f.reservations {
		if r.Active && r.CalendarID == calendarID && r.Holder == holder && r.StartTime.Equal(start) && r.EndTime.Equal(end) {
			return r, nil
		}
	}
	return nil, registryerrors.ErrReservationNotFound
}

func (f *fakeReservationRepo) FindActiveOverlapping(_ context.Context, calendarID string, start, end time.Time) ([]*model.Reservation, error) {
	var out []*model.Reservation
	for _, r := range f.reservations {
		if r.Active && r.CalendarID == calendarID && r.StartTime.Before(end) && r.EndTime.After(start) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReservationRepo) Release(_ context.Context, id string) error {
	for _, r := range f.reservations {
		if r.ID == id && r.Active {
			r.Active = false
			now := time.Now()
			r.ReleasedAt = &now
			return nil
		}
	}
	return registryerrors.ErrReservationNotFound
}

func (f *fakeReservationRepo) FindByCalendar(_ context.Context, calendarID string, limit int, offset int64) ([]*model.Reservation, error) {
	var out []*model.Reservation
	for _, r := range f.reservations {
		if r.CalendarID == calendarID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReservationRepo) CountByCalendar(_ context.Context, calendarID string) (int64, error) {
	var n int64
	for _, r := range f.reservations {
		if r.CalendarID == calendarID {
			n++
		}
	}
	return n, nil
}

func (f *fakeReservationRepo) ExecuteTransaction(_ context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.SessionContext(nil))
}

type fakeLockRepo struct {
	held map[string]bool
}

func (f *fakeLockRepo) Create(_ context.Context, lock *model.CalendarLock) (*model.CalendarLock, error) {
	if f.held == nil {
		f.held = map[string]bool{}
	}
	f.held[lock.ID] = true
	return lock, nil
}

func (f *fakeLockRepo) Delete(_ context.Context, lockID string) error {
	delete(f.held, lockID)
	return nil
}

func newTestService(capacity int64) (RegistryService, *fakeReservationRepo) {
	log := logger.New(logger.Config{Level: "error", Format: logger.JSON, Service: "test"})
	cfg := &config.Config{Log: log, CalendarLockTTL: 10 * time.Second}

	calendars := &fakeCalendarRepo{calendars: map[string]*model.Calendar{
		"property:p1": {ID: "property:p1", CapacitySqm: capacity},
	}}
	reservations := &fakeReservationRepo{}
	locks := &fakeLockRepo{}

	return NewRegistryService(calendars, reservations, locks, events.Nop{}, cfg), reservations
}

func day(n int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// ────────────────────────────────────────────────
// Capacity accounting
// ────────────────────────────────────────────────

func TestReserve_CapacityAccounting(t *testing.T) {
	svc, _ := newTestService(100)
	ctx := context.Background()

	// A: 60 sqm on days [10, 20).
	_, err := svc.Reserve(ctx, "property:p1", model.Holder{Kind: model.HolderBooking, ID: "a"}, day(10), day(20), 60)
	if err != nil {
		t.Fatalf("reservation A should succeed: %v", err)
	}

	// B: 50 sqm on overlapping days [15, 25) must be rejected (60+50 > 100).
	_, err = svc.Reserve(ctx, "property:p1", model.Holder{Kind: model.HolderBooking, ID: "b"}, day(15), day(25), 50)
	if err == nil {
		t.Fatal("overlapping reservation exceeding capacity should fail")
	}

	// B retries with 40 sqm: exactly fills capacity (60+40 = 100).
	_, err = svc.Reserve(ctx, "property:p1", model.Holder{Kind: model.HolderBooking, ID: "b"}, day(15), day(25), 40)
	if err != nil {
		t.Fatalf("reservation exactly at capacity should succeed: %v", err)
	}

	occupied, err := svc.ReservedUnits(ctx, "property:p1", day(16))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if occupied != 100 {
		t.Errorf("expected 100 sqm occupied on day 16, got %d", occupied)
	}

	// Non-overlapping interval is unaffected.
	ok, err := svc.IsAvailable(ctx, "property:p1", day(30), day(40), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("full capacity should be available outside the reserved window")
	}
}

func TestRelease_RestoresAvailability(t *testing.T) {
	svc, _ := newTestService(100)
	ctx := context.Background()
	holder := model.Holder{Kind: model.HolderBooking, ID: "a"}

	if _, err := svc.Reserve(ctx, "property:p1", holder, day(10), day(20), 100); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	ok, _ := svc.IsAvailable(ctx, "property:p1", day(12), day(14), 1)
	if ok {
		t.Fatal("calendar should be full before release")
	}

	if err := svc.Release(ctx, "property:p1", holder, day(10), day(20)); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	ok, _ = svc.IsAvailable(ctx, "property:p1", day(10), day(20), 100)
	if !ok {
		t.Error("release must restore availability for the whole interval")
	}
}

func TestRelease_UnknownOrForeignReservation(t *testing.T) {
	svc, _ := newTestService(100)
	ctx := context.Background()

	err := svc.Release(ctx, "property:p1", model.Holder{Kind: model.HolderBooking, ID: "ghost"}, day(1), day(2))
	if err == nil {
		t.Fatal("releasing a nonexistent reservation should fail")
	}

	holder := model.Holder{Kind: model.HolderBooking, ID: "a"}
	if _, err := svc.Reserve(ctx, "property:p1", holder, day(1), day(2), 10); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	// Same interval, different holder: must not release A's slot.
	err = svc.Release(ctx, "property:p1", model.Holder{Kind: model.HolderBooking, ID: "b"}, day(1), day(2))
	if err == nil {
		t.Fatal("a holder must not release another holder's reservation")
	}
}

func TestReserve_Validation(t *testing.T) {
	svc, _ := newTestService(100)
	ctx := context.Background()
	holder := model.Holder{Kind: model.HolderBooking, ID: "a"}

	if _, err := svc.Reserve(ctx, "property:p1", holder, day(5), day(5), 10); err == nil {
		t.Error("empty interval should be rejected")
	}
	if _, err := svc.Reserve(ctx, "property:p1", holder, day(6), day(5), 10); err == nil {
		t.Error("inverted interval should be rejected")
	}
	if _, err := svc.Reserve(ctx, "property:p1", holder, day(5), day(6), 0); err == nil {
		t.Error("zero units should be rejected")
	}
	if _, err := svc.Reserve(ctx, "property:missing", holder, day(5), day(6), 10); err == nil {
		t.Error("unknown calendar should be rejected")
	}
}

func TestReserve_DuplicateExactInterval(t *testing.T) {
	svc, _ := newTestService(100)
	ctx := context.Background()
	holder := model.Holder{Kind: model.HolderBooking, ID: "a"}

	if _, err := svc.Reserve(ctx, "property:p1", holder, day(1), day(3), 10); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if _, err := svc.Reserve(ctx, "property:p1", holder, day(1), day(3), 10); err == nil {
		t.Error("same holder re-reserving the exact interval should fail")
	}

	// Interval identity is keyed per holder: another holder may share the
	// byte-identical window as long as the summed units fit the capacity.
	other := model.Holder{Kind: model.HolderBooking, ID: "b"}
	if _, err := svc.Reserve(ctx, "property:p1", other, day(1), day(3), 10); err != nil {
		t.Errorf("second holder on the identical interval within capacity should succeed: %v", err)
	}

	occupied, err := svc.ReservedUnits(ctx, "property:p1", day(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if occupied != 20 {
		t.Errorf("expected 20 sqm occupied on day 2, got %d", occupied)
	}
}

func TestDayRange_Normalization(t *testing.T) {
	start := time.Date(2026, 3, 10, 13, 30, 0, 0, time.UTC)
	end := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)

	startDay, endDay := DayRange(start, end)
	wantStart := start.Truncate(24*time.Hour).Unix() / secondsPerDay
	if startDay != wantStart {
		t.Errorf("start day: got %d, want %d", startDay, wantStart)
	}
	// Midnight end is already day-aligned; no ceil.
	if endDay != end.Unix()/secondsPerDay {
		t.Errorf("aligned end day should not be ceiled, got %d", endDay)
	}

	// A mid-day end is ceiled to the next exclusive day.
	_, endDay = DayRange(start, end.Add(time.Hour))
	if endDay != end.Unix()/secondsPerDay+1 {
		t.Errorf("unaligned end day should be ceiled, got %d", endDay)
	}
}
