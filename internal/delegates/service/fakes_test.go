package service

import (
	"context"
	"fmt"
	"time"

	delegateserrors "stayledger/internal/delegates/errors"
	"stayledger/internal/delegates/validator"
	"stayledger/internal/events"
	listingserrors "stayledger/internal/listings/errors"
	registryerrors "stayledger/internal/registry/errors"
	"stayledger/pkg/config"
	mongotx "stayledger/pkg/db/mongo"
	"stayledger/pkg/logger"
	"stayledger/pkg/model"
)

type fakeDelegateRepo struct {
	delegates map[string]*model.Delegate
}

func (f *fakeDelegateRepo) Create(_ context.Context, d *model.Delegate) error {
	d.ID = fmt.Sprintf("dlg-%d", len(f.delegates)+1)
	clone := *d
	f.delegates[d.ID] = &clone
	return nil
}

func (f *fakeDelegateRepo) FindByID(_ context.Context, id string) (*model.Delegate, error) {
	d, ok := f.delegates[id]
	if !ok {
		return nil, delegateserrors.ErrDelegateNotFound
	}
	clone := *d
	return &clone, nil
}

func (f *fakeDelegateRepo) FindByBooking(_ context.Context, bookingID string) (*model.Delegate, error) {
	for _, d := range f.delegates {
		if d.BookingID == bookingID {
			clone := *d
			return &clone, nil
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

type fakeSubleaseRepo struct {
	subleases map[string]*model.Sublease
	nextID    int
}

func (f *fakeSubleaseRepo) Create(_ context.Context, sub *model.Sublease) error {
	f.nextID++
	sub.ID = fmt.Sprintf("sub-%d", f.nextID)
	clone := *sub
	f.subleases[sub.ID] = &clone
	return nil
}

func (f *fakeSubleaseRepo) FindByID(_ context.Context, id string) (*model.Sublease, error) {
	sub, ok := f.subleases[id]
	if !ok {
		return nil, delegateserrors.ErrSubleaseNotFound
	}
	clone := *sub
	return &clone, nil
}

func (f *fakeSubleaseRepo) FindByDelegate(_ context.Context, delegateID string, limit int, offset int64) ([]*model.Sublease, error) {
	var out []*model.Sublease
	for _, sub := range f.subleases {
		if sub.DelegateID == delegateID {
			clone := *sub
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeSubleaseRepo) CountByDelegate(_ context.Context, delegateID string) (int64, error) {
	var n int64
	for _, sub := range f.subleases {
		if sub.DelegateID == delegateID {
			n++
		}
	}
	return n, nil
}

func (f *fakeSubleaseRepo) Update(_ context.Context, id string, sub *model.Sublease) error {
	if _, ok := f.subleases[id]; !ok {
		return delegateserrors.ErrSubleaseNotFound
	}
	clone := *sub
	clone.ID = id
	f.subleases[id] = &clone
	return nil
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

type fakeLockRepo struct{}

func (fakeLockRepo) Create(_ context.Context, lock *model.SettlementLock) (*model.SettlementLock, error) {
	return lock, nil
}
func (fakeLockRepo) Delete(_ context.Context, lockID string) error { return nil }

// fakeRegistry tracks reservations by key without capacity arithmetic; the
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
	policy model.PlatformConfig
}

func (f *fakeDirectory) FeePolicy(_ context.Context) (*model.PlatformConfig, error) {
	policy := f.policy
	return &policy, nil
}

func (f *fakeDirectory) HasAccessPass(_ context.Context, _ string) (bool, error) {
	return true, nil
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
		return fmt.Errorf("insufficient balance in %s", from)
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

type harness struct {
	svc       DelegateService
	delegates *fakeDelegateRepo
	subleases *fakeSubleaseRepo
	positions *fakePositionRepo
	proposals *fakeTokenProposalRepo
	registry  *fakeRegistry
	vault     *fakeVault
	shares    *fakeShareToken
}

const (
	escrowAccount   = "escrow"
	treasuryAccount = "treasury"
	platformAccount = "platform-ops"
	operator        = "operator-1"
	subTenant       = "subtenant-1"
	investorA       = "investor-a"
	investorB       = "investor-b"
)

func newHarness() *harness {
	log := logger.New(logger.Config{Level: "error", Format: logger.JSON, Service: "test"})
	cfg := &config.Config{
		Log:               log,
		CalendarLockTTL:   10 * time.Second,
		SettlementLockTTL: 10 * time.Second,
	}

	h := &harness{
		delegates: &fakeDelegateRepo{delegates: map[string]*model.Delegate{}},
		subleases: &fakeSubleaseRepo{subleases: map[string]*model.Sublease{}},
		positions: &fakePositionRepo{positions: map[string]*model.Position{}},
		proposals: &fakeTokenProposalRepo{proposals: map[string]*model.TokenisationProposal{}},
		registry:  newFakeRegistry(),
		vault:     &fakeVault{balances: map[string]int64{}},
		shares:    &fakeShareToken{},
	}

	h.svc = NewDelegateService(
		h.delegates,
		h.subleases,
		h.positions,
		h.proposals,
		fakeLockRepo{},
		h.registry,
		&fakeDirectory{policy: model.PlatformConfig{
			TreasuryAccount: treasuryAccount,
			PlatformAccount: platformAccount,
			EscrowAccount:   escrowAccount,
		}},
		h.vault,
		h.shares,
		events.Nop{},
		validator.NewDelegateValidator(log),
		cfg,
	)
	return h
}

// newDelegate seeds a delegate bound to booking bk-1 with a 60-unit sublease
// calendar, mirroring what the listing service creates on assignment.
func (h *harness) newDelegate() *model.Delegate {
	delegate := &model.Delegate{
		PropertyID:     "prop-1",
		BookingID:      "bk-1",
		Operator:       operator,
		AccRentPerUnit: "0",
	}
	if err := h.delegates.Create(context.Background(), delegate); err != nil {
		panic(err)
	}
	h.registry.calendars["delegate:"+delegate.ID] = 60
	return delegate
}

// openFundraising drives the full configure/propose/approve/open handshake.
func (h *harness) openFundraising(delegate *model.Delegate, totalUnits, unitPrice, feeBps int64) {
	ctx := context.Background()
	if _, err := h.svc.ConfigureFundraising(ctx, delegate.ID, operator, totalUnits, unitPrice, feeBps); err != nil {
		panic(err)
	}
	if _, err := h.svc.ProposeTerms(ctx, delegate.ID, operator); err != nil {
		panic(err)
	}
	if err := h.proposals.Approve(ctx, delegate.BookingID); err != nil {
		panic(err)
	}
	if err := h.svc.OpenFundraising(ctx, delegate.ID, operator); err != nil {
		panic(err)
	}
}
