package service

import (
	"context"
	"fmt"
	"time"

	delegateserrors "stayledger/internal/delegates/errors"
	"stayledger/internal/events"
	listingserrors "stayledger/internal/listings/errors"
	"stayledger/internal/listings/validator"
	"stayledger/internal/platform"
	registryerrors "stayledger/internal/registry/errors"
	"stayledger/pkg/config"
	mongotx "stayledger/pkg/db/mongo"
	"stayledger/pkg/logger"
	"stayledger/pkg/model"
)

// ────────────────────────────────────────────────
// In-memory fakes shared by the service tests
// ────────────────────────────────────────────────

type fakePropertyRepo struct {
	properties map[string]*model.Property
	nextID     int
}

func (f *fakePropertyRepo) Create(_ context.Context, p *model.Property) error {
	f.nextID++
	p.ID = fmt.Sprintf("prop-%d", f.nextID)
	f.properties[p.ID] = p
	return nil
}

func (f *fakePropertyRepo) FindByID(_ context.Context, id string) (*model.Property, error) {
	p, ok := f.properties[id]
	if !ok {
		return nil, listingserrors.ErrPropertyNotFound
	}
	return p, nil
}

func (f *fakePropertyRepo) FindAll(_ context.Context, limit int, offset int64) ([]*model.Property, error) {
	var out []*model.Property
	for _, p := range f.properties {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakePropertyRepo) Count(_ context.Context) (int64, error) {
	return int64(len(f.properties)), nil
}

func (f *fakePropertyRepo) Update(_ context.Context, id string, updates *model.PropertyUpdate) error {
	p, ok := f.properties[id]
	if !ok {
		return listingserrors.ErrPropertyNotFound
	}
	if updates.DailyRate != nil {
		p.DailyRate = *updates.DailyRate
	}
	if updates.Active != nil {
		p.Active = *updates.Active
	}
	return nil
}

func (f *fakePropertyRepo) NextBookingSeq(_ context.Context, id string) (int64, error) {
	p, ok := f.properties[id]
	if !ok {
		return 0, listingserrors.ErrPropertyNotFound
	}
	p.NextBookingSeq++
	return p.NextBookingSeq, nil
}

func (f *fakePropertyRepo) ExecuteTransaction(_ context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type fakeBookingRepo struct {
	bookings map[string]*model.Booking
	nextID   int
}

func (f *fakeBookingRepo) Create(_ context.Context, b *model.Booking) error {
	f.nextID++
	b.ID = fmt.Sprintf("bk-%d", f.nextID)
	clone := *b
	f.bookings[b.ID] = &clone
	return nil
}

func (f *fakeBookingRepo) FindByID(_ context.Context, id string) (*model.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return nil, listingserrors.ErrBookingNotFound
	}
	clone := *b
	return &clone, nil
}

func (f *fakeBookingRepo) FindByProperty(_ context.Context, propertyID string, limit int, offset int64) ([]*model.Booking, error) {
	var out []*model.Booking
	for _, b := range f.bookings {
		if b.PropertyID == propertyID {
			clone := *b
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeBookingRepo) CountByProperty(_ context.Context, propertyID string) (int64, error) {
	var n int64
	for _, b := range f.bookings {
		if b.PropertyID == propertyID {
			n++
		}
	}
	return n, nil
}

func (f *fakeBookingRepo) Update(_ context.Context, id string, b *model.Booking) error {
	if _, ok := f.bookings[id]; !ok {
		return listingserrors.ErrBookingNotFound
	}
	clone := *b
	clone.ID = id
	f.bookings[id] = &clone
	return nil
}

func (f *fakeBookingRepo) ExecuteTransaction(_ context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type fakePositionRepo struct {
	positions map[string]*model.Position
}

func (f *fakePositionRepo) key(scope, holder string) string { return scope + "/" + holder }

func (f *fakePositionRepo) FindByScopeAndHolder(_ context.Context, scope, holder string) (*model.Position, error) {
	p, ok := f.positions[f.key(scope, holder)]
	if !ok {
		return nil, listingserrors.ErrPositionNotFound
	}
	clone := *p
	return &clone, nil
}

func (f *fakePositionRepo) FindByScope(_ context.Context, scope string, limit int, offset int64) ([]*model.Position, error) {
	var out []*model.Position
	for _, p := range f.positions {
		if p.Scope == scope {
			clone := *p
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakePositionRepo) CountByScope(_ context.Context, scope string) (int64, error) {
	var n int64
	for _, p := range f.positions {
		if p.Scope == scope {
			n++
		}
	}
	return n, nil
}

func (f *fakePositionRepo) Save(_ context.Context, p *model.Position) error {
	if p.ID == "" {
		p.ID = f.key(p.Scope, p.Holder)
	}
	clone := *p
	f.positions[p.ID] = &clone
	return nil
}

type fakeDepositProposalRepo struct {
	proposals map[string]*model.DepositSplitProposal
}

func (f *fakeDepositProposalRepo) Create(_ context.Context, p *model.DepositSplitProposal) error {
	if _, ok := f.proposals[p.BookingID]; ok {
		return listingserrors.ErrProposalPending
	}
	p.ID = p.BookingID
	f.proposals[p.BookingID] = p
	return nil
}

func (f *fakeDepositProposalRepo) FindByBooking(_ context.Context, bookingID string) (*model.DepositSplitProposal, error) {
	p, ok := f.proposals[bookingID]
	if !ok {
		return nil, listingserrors.ErrProposalNotFound
	}
	return p, nil
}

func (f *fakeDepositProposalRepo) Freeze(_ context.Context, bookingID string) error {
	if p, ok := f.proposals[bookingID]; ok {
		p.Frozen = true
	}
	return nil
}

func (f *fakeDepositProposalRepo) Delete(_ context.Context, bookingID string) error {
	if _, ok := f.proposals[bookingID]; !ok {
		return listingserrors.ErrProposalNotFound
	}
	delete(f.proposals, bookingID)
	return nil
}

type fakeTokenProposalRepo struct {
	proposals map[string]*model.TokenisationProposal
}

func (f *fakeTokenProposalRepo) Create(_ context.Context, p *model.TokenisationProposal) error {
	if _, ok := f.proposals[p.BookingID]; ok {
		return listingserrors.ErrProposalPending
	}
	p.ID = p.BookingID
	f.proposals[p.BookingID] = p
	return nil
}

func (f *fakeTokenProposalRepo) FindByBooking(_ context.Context, bookingID string) (*model.TokenisationProposal, error) {
	p, ok := f.proposals[bookingID]
	if !ok {
		return nil, listingserrors.ErrProposalNotFound
	}
	return p, nil
}

func (f *fakeTokenProposalRepo) Approve(_ context.Context, bookingID string) error {
	p, ok := f.proposals[bookingID]
	if !ok {
		return listingserrors.ErrProposalNotFound
	}
	p.Approved = true
	return nil
}

func (f *fakeTokenProposalRepo) Delete(_ context.Context, bookingID string) error {
	if _, ok := f.proposals[bookingID]; !ok {
		return listingserrors.ErrProposalNotFound
	}
	delete(f.proposals, bookingID)
	return nil
}

type fakeSettlementLockRepo struct{}

func (fakeSettlementLockRepo) Create(_ context.Context, lock *model.SettlementLock) (*model.SettlementLock, error) {
	return lock, nil
}
func (fakeSettlementLockRepo) Delete(_ context.Context, lockID string) error { return nil }

type fakeDelegateRepo struct {
	delegates map[string]*model.Delegate
	nextID    int
}

func (f *fakeDelegateRepo) Create(_ context.Context, d *model.Delegate) error {
	f.nextID++
	d.ID = fmt.Sprintf("dlg-%d", f.nextID)
	f.delegates[d.ID] = d
	return nil
}

func (f *fakeDelegateRepo) FindByID(_ context.Context, id string) (*model.Delegate, error) {
	d, ok := f.delegates[id]
	if !ok {
		return nil, delegateserrors.ErrDelegateNotFound
	}
	return d, nil
}

func (f *fakeDelegateRepo) FindByBooking(_ context.Context, bookingID string) (*model.Delegate, error) {
	for _, d := range f.delegates {
		if d.BookingID == bookingID {
			return d, nil
		}
	}
	return nil, delegateserrors.ErrDelegateNotFound
}

func (f *fakeDelegateRepo) Update(_ context.Context, id string, d *model.Delegate) error {
	if _, ok := f.delegates[id]; !ok {
		return delegateserrors.ErrDelegateNotFound
	}
	clone := *d
	clone.ID = id
	f.delegates[id] = &clone
	return nil
}

func (f *fakeDelegateRepo) NextSubleaseSeq(_ context.Context, id string) (int64, error) {
	d, ok := f.delegates[id]
	if !ok {
		return 0, delegateserrors.ErrDelegateNotFound
	}
	d.NextSubleaseSeq++
	return d.NextSubleaseSeq, nil
}

func (f *fakeDelegateRepo) ExecuteTransaction(_ context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

// fakeRegistry records calendar activity without capacity arithmetic; the
// capacity rules have their own tests in the registry package.
type fakeRegistry struct {
	calendars map[string]int64
	reserved  map[string]*model.Reservation
	released  []string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		calendars: map[string]int64{},
		reserved:  map[string]*model.Reservation{},
	}
}

func reservationKey(calendarID string, holder model.Holder) string {
	return calendarID + "/" + holder.Kind + "/" + holder.ID
}

func (f *fakeRegistry) CreateCalendar(_ context.Context, id string, capacitySqm int64) error {
	f.calendars[id] = capacitySqm
	return nil
}

func (f *fakeRegistry) Reserve(ctx context.Context, calendarID string, holder model.Holder, start, end time.Time, units int64) (*model.Reservation, error) {
	return f.ReserveInTx(ctx, calendarID, holder, start, end, units)
}

func (f *fakeRegistry) Release(ctx context.Context, calendarID string, holder model.Holder, start, end time.Time) error {
	_, err := f.ReleaseInTx(ctx, calendarID, holder, start, end)
	return err
}

func (f *fakeRegistry) ReserveInTx(_ context.Context, calendarID string, holder model.Holder, start, end time.Time, units int64) (*model.Reservation, error) {
	r := &model.Reservation{
		ID:         reservationKey(calendarID, holder),
		CalendarID: calendarID,
		Holder:     holder,
		StartTime:  start,
		EndTime:    end,
		Units:      units,
		Active:     true,
	}
	f.reserved[r.ID] = r
	return r, nil
}

func (f *fakeRegistry) ReleaseInTx(_ context.Context, calendarID string, holder model.Holder, start, end time.Time) (*model.Reservation, error) {
	key := reservationKey(calendarID, holder)
	r, ok := f.reserved[key]
	if !ok || !r.Active {
		return nil, registryerrors.ErrReservationNotFound
	}
	r.Active = false
	f.released = append(f.released, key)
	return r, nil
}

func (f *fakeRegistry) WithCalendarLock(_ context.Context, _ string, fn func() error) error {
	return fn()
}

func (f *fakeRegistry) IsAvailable(_ context.Context, _ string, _, _ time.Time, _ int64) (bool, error) {
	return true, nil
}

func (f *fakeRegistry) ReservedUnits(_ context.Context, _ string, _ time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeRegistry) GetCalendar(_ context.Context, id string) (*model.Calendar, error) {
	capacity, ok := f.calendars[id]
	if !ok {
		return nil, registryerrors.ErrCalendarNotFound
	}
	return &model.Calendar{ID: id, CapacitySqm: capacity}, nil
}

func (f *fakeRegistry) ListReservations(_ context.Context, _ string, _ int, _ int64) ([]*model.Reservation, int64, error) {
	return nil, 0, nil
}

func (f *fakeRegistry) EmitReserved(context.Context, *model.Reservation) {}
func (f *fakeRegistry) EmitReleased(context.Context, *model.Reservation) {}

type fakeDirectory struct {
	policy   model.PlatformConfig
	noPasses map[string]bool
}

func (f *fakeDirectory) FeePolicy(_ context.Context) (*model.PlatformConfig, error) {
	policy := f.policy
	return &policy, nil
}

func (f *fakeDirectory) HasAccessPass(_ context.Context, account string) (bool, error) {
	return !f.noPasses[account], nil
}

type fakeVault struct {
	balances map[string]int64
}

func (f *fakeVault) Transfer(_ context.Context, from, to string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("negative amount")
	}
	if amount == 0 || from == to {
		return nil
	}
	if f.balances[from] < amount {
		return platform.ErrInsufficientFunds
	}
	f.balances[from] -= amount
	f.balances[to] += amount
	return nil
}

func (f *fakeVault) Balance(_ context.Context, account string) (int64, error) {
	return f.balances[account], nil
}

type fakeShareToken struct {
	minted    map[string]int64
	locked    map[string]bool
	lockError error
}

func (f *fakeShareToken) Mint(_ context.Context, classID, holder string, units int64) error {
	if f.minted == nil {
		f.minted = map[string]int64{}
	}
	f.minted[classID+"/"+holder] += units
	return nil
}

func (f *fakeShareToken) BalanceOf(_ context.Context, classID, holder string) (int64, error) {
	return f.minted[classID+"/"+holder], nil
}

func (f *fakeShareToken) LockTransfers(_ context.Context, classID string) error {
	if f.lockError != nil {
		return f.lockError
	}
	if f.locked == nil {
		f.locked = map[string]bool{}
	}
	f.locked[classID] = true
	return nil
}

// ────────────────────────────────────────────────
// Harness
// ────────────────────────────────────────────────

type harness struct {
	svc        ListingService
	properties *fakePropertyRepo
	bookings   *fakeBookingRepo
	positions  *fakePositionRepo
	deposits   *fakeDepositProposalRepo
	tokens     *fakeTokenProposalRepo
	delegates  *fakeDelegateRepo
	registry   *fakeRegistry
	directory  *fakeDirectory
	vault      *fakeVault
	shares     *fakeShareToken
}

const (
	escrowAccount   = "escrow"
	treasuryAccount = "treasury"
	platformAccount = "platform-ops"
	landlord        = "landlord-1"
	tenant          = "tenant-1"
)

func newHarness() *harness {
	log := logger.New(logger.Config{Level: "error", Format: logger.JSON, Service: "test"})
	cfg := &config.Config{
		Log:               log,
		CalendarLockTTL:   10 * time.Second,
		SettlementLockTTL: 10 * time.Second,
		DefaultMinNotice:  24 * time.Hour,
		DefaultMaxWindow:  365 * 24 * time.Hour,
	}

	h := &harness{
		properties: &fakePropertyRepo{properties: map[string]*model.Property{}},
		bookings:   &fakeBookingRepo{bookings: map[string]*model.Booking{}},
		positions:  &fakePositionRepo{positions: map[string]*model.Position{}},
		deposits:   &fakeDepositProposalRepo{proposals: map[string]*model.DepositSplitProposal{}},
		tokens:     &fakeTokenProposalRepo{proposals: map[string]*model.TokenisationProposal{}},
		delegates:  &fakeDelegateRepo{delegates: map[string]*model.Delegate{}},
		registry:   newFakeRegistry(),
		directory: &fakeDirectory{
			policy: model.PlatformConfig{
				TenantFeeBps:    500,
				LandlordFeeBps:  1000,
				TreasuryAccount: treasuryAccount,
				PlatformAccount: platformAccount,
				EscrowAccount:   escrowAccount,
			},
			noPasses: map[string]bool{},
		},
		vault:  &fakeVault{balances: map[string]int64{}},
		shares: &fakeShareToken{},
	}

	h.svc = NewListingService(
		h.properties,
		h.bookings,
		h.positions,
		h.deposits,
		h.tokens,
		fakeSettlementLockRepo{},
		h.delegates,
		h.registry,
		h.directory,
		h.vault,
		h.shares,
		events.Nop{},
		validator.NewListingValidator(log),
		cfg,
	)
	return h
}

// newProperty seeds a standard test property: 100 sqm, 100/day, deposit 500.
func (h *harness) newProperty() *model.Property {
	property := &model.Property{
		Owner:           landlord,
		CapacitySqm:     100,
		SettlementToken: "usd6",
		DailyRate:       100,
		DepositAmount:   500,
	}
	if err := h.svc.CreateProperty(context.Background(), property); err != nil {
		panic(err)
	}
	return property
}

// newBooking books a 30-day stay starting in 48 hours, 60 sqm, funding the
// tenant with enough balance for the deposit.
func (h *harness) newBooking(property *model.Property) *model.Booking {
	h.vault.balances[tenant] += property.DepositAmount

	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour)
	booking, err := h.svc.Book(context.Background(), &model.BookingRequest{
		PropertyID: property.ID,
		Tenant:     tenant,
		StartTime:  start,
		EndTime:    start.AddDate(0, 0, 30),
		Units:      60,
		PeriodDays: 7,
	})
	if err != nil {
		panic(err)
	}
	return booking
}
