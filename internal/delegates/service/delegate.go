package service

import (
	"context"
	"errors"
	"time"

	delegateserrors "stayledger/internal/delegates/errors"
	"stayledger/internal/delegates/repository"
	"stayledger/internal/delegates/validator"
	"stayledger/internal/events"
	listingserrors "stayledger/internal/listings/errors"
	listingsrepo "stayledger/internal/listings/repository"
	"stayledger/internal/platform"
	registryservice "stayledger/internal/registry/service"
	"stayledger/pkg/accrual"
	"stayledger/pkg/config"
	apperrors "stayledger/pkg/errors"
	"stayledger/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

// DelegateService runs an operator's fundraising and sub-lease business on
// top of one parent booking. The delegate carries its own rent accumulator
// and its own scheduling calendar; fundraising may only open once the listing
// side has approved terms identical to the delegate's configuration.
type DelegateService interface {
	GetDelegate(ctx context.Context, id string) (*model.Delegate, error)
	GetDelegateByBooking(ctx context.Context, bookingID string) (*model.Delegate, error)

	ConfigureFundraising(ctx context.Context, delegateID, caller string, totalUnits, unitPrice, feeBps int64) (*model.Delegate, error)
	ProposeTerms(ctx context.Context, delegateID, caller string) (*model.TokenisationProposal, error)
	OpenFundraising(ctx context.Context, delegateID, caller string) error
	Invest(ctx context.Context, delegateID, caller string, units int64) (*model.Position, error)

	CollectRent(ctx context.Context, delegateID, caller string, amount int64) (*model.Delegate, error)
	CollectSubletRent(ctx context.Context, delegateID, subleaseID, caller string, amount int64) (*model.Sublease, error)
	WithdrawFees(ctx context.Context, delegateID, caller string) (int64, error)
	Claim(ctx context.Context, delegateID, caller string) (int64, error)
	GetPosition(ctx context.Context, delegateID, holder string) (*model.Position, error)

	CreateSublease(ctx context.Context, delegateID string, req *validator.SubleaseRequest) (*model.Sublease, error)
	GetSublease(ctx context.Context, delegateID, subleaseID string) (*model.Sublease, error)
	ListSubleases(ctx context.Context, delegateID string, limit int, offset int64) ([]*model.Sublease, int64, error)
	CompleteSublease(ctx context.Context, delegateID, subleaseID, caller string) error
	CancelSublease(ctx context.Context, delegateID, subleaseID, caller string) error
}

type delegateService struct {
	delegates repository.DelegateRepository
	subleases repository.SubleaseRepository

	positions listingsrepo.PositionRepository
	proposals listingsrepo.TokenProposalRepository
	locks     listingsrepo.SettlementLockRepository

	registry  registryservice.RegistryService
	directory platform.Directory
	vault     platform.Vault
	shares    platform.ShareToken

	publisher events.Publisher
	validator *validator.DelegateValidator
	cfg       *config.Config
}

func NewDelegateService(
	delegates repository.DelegateRepository,
	subleases repository.SubleaseRepository,
	positions listingsrepo.PositionRepository,
	proposals listingsrepo.TokenProposalRepository,
	locks listingsrepo.SettlementLockRepository,
	registry registryservice.RegistryService,
	directory platform.Directory,
	vault platform.Vault,
	shares platform.ShareToken,
	publisher events.Publisher,
	v *validator.DelegateValidator,
	cfg *config.Config,
) DelegateService {
	return &delegateService{
		delegates: delegates,
		subleases: subleases,
		positions: positions,
		proposals: proposals,
		locks:     locks,
		registry:  registry,
		directory: directory,
		vault:     vault,
		shares:    shares,
		publisher: publisher,
		validator: v,
		cfg:       cfg,
	}
}

func (s *delegateService) GetDelegate(ctx context.Context, id string) (*model.Delegate, error) {
	delegate, err := s.delegates.FindByID(ctx, id)
	if err != nil {
		return nil, mapDelegateError(err, id)
	}
	return delegate, nil
}

func (s *delegateService) GetDelegateByBooking(ctx context.Context, bookingID string) (*model.Delegate, error) {
	delegate, err := s.delegates.FindByBooking(ctx, bookingID)
	if err != nil {
		return nil, mapDelegateError(err, bookingID)
	}
	return delegate, nil
}

// ConfigureFundraising fixes the unit supply, price and delegate fee. Terms
// are mutable only before units are sold or fundraising opens; once the
// listing side approves a matching proposal, changing them here would
// invalidate the approval, so the same pre-open gate applies.
func (s *delegateService) ConfigureFundraising(ctx context.Context, delegateID, caller string, totalUnits, unitPrice, feeBps int64) (*model.Delegate, error) {
	if totalUnits <= 0 || unitPrice <= 0 {
		return nil, apperrors.InvalidInput("Unit count and unit price must be positive")
	}
	if feeBps < 0 || feeBps > 10000 {
		return nil, apperrors.InvalidInput("Delegate fee must be between 0 and 10000 basis points")
	}

	delegate, err := s.delegates.FindByID(ctx, delegateID)
	if err != nil {
		return nil, mapDelegateError(err, delegateID)
	}
	if caller != delegate.Operator {
		return nil, apperrors.Forbidden("Only the delegate operator may configure fundraising")
	}
	if delegate.Open || delegate.Closed {
		return nil, apperrors.Conflict("Fundraising terms are frozen once fundraising opens")
	}
	if delegate.SoldUnits > 0 {
		return nil, apperrors.Conflict("Fundraising terms are frozen once units are sold")
	}

	delegate.TotalUnits = totalUnits
	delegate.UnitPrice = unitPrice
	delegate.FeeBps = feeBps
	if err := s.delegates.Update(ctx, delegateID, delegate); err != nil {
		return nil, apperrors.Internal("Failed to update delegate", err)
	}

	s.cfg.Log.Info("Fundraising configured",
		"delegate_id", delegateID,
		"total_units", totalUnits,
		"unit_price", unitPrice,
		"fee_bps", feeBps,
	)
	return delegate, nil
}

// ProposeTerms submits the configured terms for the landlord's approval.
// The proposal lives on the listing side, keyed by the parent booking, so
// the approval authority is the property owner, not the operator.
func (s *delegateService) ProposeTerms(ctx context.Context, delegateID, caller string) (*model.TokenisationProposal, error) {
	delegate, err := s.delegates.FindByID(ctx, delegateID)
	if err != nil {
		return nil, mapDelegateError(err, delegateID)
	}
	if caller != delegate.Operator {
		return nil, apperrors.Forbidden("Only the delegate operator may propose terms")
	}
	if delegate.Open || delegate.Closed {
		return nil, apperrors.Conflict("Fundraising has already opened")
	}
	if delegate.TotalUnits == 0 {
		return nil, apperrors.Conflict("Fundraising terms are not configured")
	}

	proposal := &model.TokenisationProposal{
		BookingID:  delegate.BookingID,
		DelegateID: delegate.ID,
		TotalUnits: delegate.TotalUnits,
		UnitPrice:  delegate.UnitPrice,
		FeeBps:     delegate.FeeBps,
	}
	if err := s.proposals.Create(ctx, proposal); err != nil {
		if errors.Is(err, listingserrors.ErrProposalPending) {
			return nil, apperrors.Conflict("A tokenisation proposal is already pending for the parent booking")
		}
		return nil, apperrors.Internal("Failed to create tokenisation proposal", err)
	}

	s.emit(ctx, events.TypeTokenisationProposed, delegate.BookingID, events.ProposalEvent{
		BookingID:  delegate.BookingID,
		ProposalID: proposal.ID,
		TotalUnits: proposal.TotalUnits,
		UnitPrice:  proposal.UnitPrice,
		FeeBps:     proposal.FeeBps,
		OccurredAt: time.Now().UTC(),
	})

	s.cfg.Log.Info("Tokenisation terms proposed", "delegate_id", delegateID, "booking_id", delegate.BookingID)
	return proposal, nil
}

// OpenFundraising opens the sale. The approved proposal must match the
// delegate's current terms exactly on all three values; a stale approval
// after a reconfiguration attempt never opens. The proposal is consumed.
func (s *delegateService) OpenFundraising(ctx context.Context, delegateID, caller string) error {
	var delegate *model.Delegate

	err := s.withSettlementLock(ctx, delegateID, func() error {
		return s.delegates.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			var err error
			delegate, err = s.delegates.FindByID(sessCtx, delegateID)
			if err != nil {
				return mapDelegateError(err, delegateID)
			}
			if caller != delegate.Operator {
				return apperrors.Forbidden("Only the delegate operator may open fundraising")
			}
			if delegate.Closed {
				return apperrors.Conflict(delegateserrors.ErrFundraisingClosed.Error())
			}
			if delegate.Open {
				return apperrors.Conflict("Fundraising is already open")
			}

			proposal, err := s.proposals.FindByBooking(sessCtx, delegate.BookingID)
			if err != nil {
				if errors.Is(err, listingserrors.ErrProposalNotFound) {
					return apperrors.Conflict("No tokenisation proposal exists for the parent booking")
				}
				return apperrors.Internal("Failed to load tokenisation proposal", err)
			}
			if !proposal.Approved {
				return apperrors.Conflict("Tokenisation proposal has not been approved")
			}
			if proposal.DelegateID != delegate.ID ||
				proposal.TotalUnits != delegate.TotalUnits ||
				proposal.UnitPrice != delegate.UnitPrice ||
				proposal.FeeBps != delegate.FeeBps {
				return apperrors.Conflict(delegateserrors.ErrTermsMismatch.Error())
			}

			if err := s.proposals.Delete(sessCtx, delegate.BookingID); err != nil {
				return apperrors.Internal("Failed to consume tokenisation proposal", err)
			}

			delegate.Open = true
			return s.persistDelegate(sessCtx, delegate)
		})
	})
	if err != nil {
		return err
	}

	s.emit(ctx, events.TypeFundraisingOpened, delegateID, events.ProposalEvent{
		BookingID:  delegate.BookingID,
		TotalUnits: delegate.TotalUnits,
		UnitPrice:  delegate.UnitPrice,
		FeeBps:     delegate.FeeBps,
		OccurredAt: time.Now().UTC(),
	})

	s.cfg.Log.Info("Fundraising opened", "delegate_id", delegateID)
	return nil
}

// Invest purchases units of an open fundraising. Reaching the full supply
// closes fundraising irreversibly; the share transfer freeze that follows is
// advisory and never unwinds the purchase.
func (s *delegateService) Invest(ctx context.Context, delegateID, caller string, units int64) (*model.Position, error) {
	if units <= 0 {
		return nil, apperrors.InvalidInput("Unit count must be positive")
	}

	var (
		position *model.Position
		closed   bool
		classID  string
		cost     int64
	)

	err := s.withSettlementLock(ctx, delegateID, func() error {
		return s.delegates.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			delegate, err := s.delegates.FindByID(sessCtx, delegateID)
			if err != nil {
				return mapDelegateError(err, delegateID)
			}
			if delegate.Closed {
				return apperrors.Conflict(delegateserrors.ErrFundraisingClosed.Error())
			}
			if !delegate.Open {
				return apperrors.Conflict(delegateserrors.ErrFundraisingNotOpen.Error())
			}
			if delegate.SoldUnits+units > delegate.TotalUnits {
				return apperrors.Conflict("Purchase exceeds remaining unit supply")
			}

			policy, err := s.directory.FeePolicy(sessCtx)
			if err != nil {
				return apperrors.Internal("Failed to resolve platform configuration", err)
			}

			cost = units * delegate.UnitPrice
			if err := s.vault.Transfer(sessCtx, caller, policy.EscrowAccount, cost); err != nil {
				return apperrors.Conflict("Investment transfer failed: " + err.Error())
			}
			delegate.Raised += cost

			debtDelta, err := accrual.Accrued(units, delegate.AccRentPerUnit)
			if err != nil {
				return apperrors.Internal("Failed to compute purchase debt", err)
			}

			scope := model.DelegateScope(delegateID)
			position, err = s.positions.FindByScopeAndHolder(sessCtx, scope, caller)
			if err != nil {
				if !errors.Is(err, listingserrors.ErrPositionNotFound) {
					return apperrors.Internal("Failed to load position", err)
				}
				position = &model.Position{Scope: scope, Holder: caller}
			}
			position.Units += units
			position.Debt += debtDelta
			if err := s.positions.Save(sessCtx, position); err != nil {
				return apperrors.Internal("Failed to save position", err)
			}

			classID = delegate.ShareClassID()
			if err := s.shares.Mint(sessCtx, classID, caller, units); err != nil {
				return apperrors.Internal("Failed to mint fractional units", err)
			}

			delegate.SoldUnits += units
			if delegate.SoldUnits == delegate.TotalUnits {
				delegate.Open = false
				delegate.Closed = true
				closed = true
			}
			return s.persistDelegate(sessCtx, delegate)
		})
	})
	if err != nil {
		return nil, err
	}

	if closed {
		if err := s.shares.LockTransfers(ctx, classID); err != nil {
			s.cfg.Log.Warn("Share transfer lock failed", "class_id", classID, "error", err)
		}
		s.emit(ctx, events.TypeFundraisingClosed, delegateID, events.MoneyEvent{
			Scope:      model.DelegateScope(delegateID),
			Amount:     cost,
			OccurredAt: time.Now().UTC(),
		})
	}

	s.emit(ctx, events.TypeInvestment, delegateID, events.MoneyEvent{
		Scope:      model.DelegateScope(delegateID),
		Account:    caller,
		Amount:     cost,
		Units:      units,
		OccurredAt: time.Now().UTC(),
	})

	s.cfg.Log.Info("Investment made",
		"delegate_id", delegateID,
		"investor", caller,
		"units", units,
		"closed", closed,
	)
	return position, nil
}

// CollectRent credits income collected on the parent booking into the
// delegate's accumulator, net of the delegate fee.
func (s *delegateService) CollectRent(ctx context.Context, delegateID, caller string, amount int64) (*model.Delegate, error) {
	if amount <= 0 {
		return nil, apperrors.InvalidInput("Payment amount must be positive")
	}

	var delegate *model.Delegate
	err := s.withSettlementLock(ctx, delegateID, func() error {
		return s.delegates.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			var err error
			delegate, err = s.delegates.FindByID(sessCtx, delegateID)
			if err != nil {
				return mapDelegateError(err, delegateID)
			}
			return s.creditIncome(sessCtx, delegate, caller, amount)
		})
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, events.TypeRentCollected, delegateID, events.MoneyEvent{
		Scope:      model.DelegateScope(delegateID),
		Account:    caller,
		Amount:     amount,
		OccurredAt: time.Now().UTC(),
	})

	s.cfg.Log.Info("Rent collected", "delegate_id", delegateID, "amount", amount)
	return delegate, nil
}

// creditIncome pulls amount from the payer, withholds the delegate fee into
// the separately withdrawable fee balance, and credits the remainder to the
// accumulator. Requires sold units; without any the pro-rata credit has no
// denominator.
func (s *delegateService) creditIncome(ctx context.Context, delegate *model.Delegate, payer string, amount int64) error {
	if delegate.SoldUnits == 0 {
		return apperrors.Conflict("No units sold; nothing to distribute against")
	}

	policy, err := s.directory.FeePolicy(ctx)
	if err != nil {
		return apperrors.Internal("Failed to resolve platform configuration", err)
	}
	if err := s.vault.Transfer(ctx, payer, policy.EscrowAccount, amount); err != nil {
		return apperrors.Conflict("Rent transfer failed: " + err.Error())
	}

	fee := feePortion(amount, delegate.FeeBps)
	delegate.FeeAccrued += fee

	acc, err := accrual.Credit(delegate.AccRentPerUnit, amount-fee, delegate.SoldUnits)
	if err != nil {
		return apperrors.Internal("Failed to credit rent accumulator", err)
	}
	delegate.AccRentPerUnit = acc

	return s.persistDelegate(ctx, delegate)
}

// WithdrawFees pays the operator's accrued delegate fees out of escrow.
func (s *delegateService) WithdrawFees(ctx context.Context, delegateID, caller string) (int64, error) {
	var amount int64
	err := s.withSettlementLock(ctx, delegateID, func() error {
		return s.delegates.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			delegate, err := s.delegates.FindByID(sessCtx, delegateID)
			if err != nil {
				return mapDelegateError(err, delegateID)
			}
			if caller != delegate.Operator {
				return apperrors.Forbidden("Only the delegate operator may withdraw fees")
			}

			amount = delegate.FeeAccrued
			if amount == 0 {
				return apperrors.Conflict("Nothing to claim")
			}

			policy, err := s.directory.FeePolicy(sessCtx)
			if err != nil {
				return apperrors.Internal("Failed to resolve platform configuration", err)
			}
			if err := s.vault.Transfer(sessCtx, policy.EscrowAccount, caller, amount); err != nil {
				return apperrors.Conflict("Fee withdrawal failed: " + err.Error())
			}

			delegate.FeeAccrued = 0
			return s.persistDelegate(sessCtx, delegate)
		})
	})
	if err != nil {
		return 0, err
	}

	s.emit(ctx, events.TypeFeesWithdrawn, delegateID, events.MoneyEvent{
		Scope:      model.DelegateScope(delegateID),
		Account:    caller,
		Amount:     amount,
		OccurredAt: time.Now().UTC(),
	})
	return amount, nil
}

// Claim settles the caller's pending pro-rata rent in full and advances the
// debt snapshot to the current accrued value.
func (s *delegateService) Claim(ctx context.Context, delegateID, caller string) (int64, error) {
	var pending int64

	err := s.withSettlementLock(ctx, delegateID, func() error {
		return s.delegates.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			delegate, err := s.delegates.FindByID(sessCtx, delegateID)
			if err != nil {
				return mapDelegateError(err, delegateID)
			}

			scope := model.DelegateScope(delegateID)
			position, err := s.positions.FindByScopeAndHolder(sessCtx, scope, caller)
			if err != nil {
				if errors.Is(err, listingserrors.ErrPositionNotFound) {
					return apperrors.Conflict("Nothing to claim")
				}
				return apperrors.Internal("Failed to load position", err)
			}

			pending, err = accrual.Pending(position.Units, delegate.AccRentPerUnit, position.Debt)
			if err != nil {
				return apperrors.Internal("Failed to compute claimable amount", err)
			}
			if pending == 0 {
				return apperrors.Conflict("Nothing to claim")
			}

			policy, err := s.directory.FeePolicy(sessCtx)
			if err != nil {
				return apperrors.Internal("Failed to resolve platform configuration", err)
			}
			if err := s.vault.Transfer(sessCtx, policy.EscrowAccount, caller, pending); err != nil {
				return apperrors.Conflict("Claim transfer failed: " + err.Error())
			}

			position.Debt += pending
			return s.positions.Save(sessCtx, position)
		})
	})
	if err != nil {
		return 0, err
	}

	s.emit(ctx, events.TypeRentClaimed, delegateID, events.MoneyEvent{
		Scope:      model.DelegateScope(delegateID),
		Account:    caller,
		Amount:     pending,
		OccurredAt: time.Now().UTC(),
	})

	s.cfg.Log.Info("Rent claimed", "delegate_id", delegateID, "holder", caller, "amount", pending)
	return pending, nil
}

func (s *delegateService) GetPosition(ctx context.Context, delegateID, holder string) (*model.Position, error) {
	position, err := s.positions.FindByScopeAndHolder(ctx, model.DelegateScope(delegateID), holder)
	if err != nil {
		if errors.Is(err, listingserrors.ErrPositionNotFound) {
			return nil, apperrors.NotFound("Position")
		}
		return nil, apperrors.Internal("Failed to load position", err)
	}
	return position, nil
}

// withSettlementLock holds the per-delegate advisory lock across fn, same
// re-entrancy discipline as the booking settlement path.
func (s *delegateService) withSettlementLock(ctx context.Context, delegateID string, fn func() error) error {
	lockID := "settlement_lock_delegate_" + delegateID
	lock := &model.SettlementLock{
		ID:        lockID,
		ExpiresAt: time.Now().Add(s.cfg.SettlementLockTTL),
	}

	if _, err := s.locks.Create(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.Conflict("Delegate is settling in another request. Please try again.")
		}
		return apperrors.Internal("Failed to acquire settlement lock", err)
	}
	defer func() {
		if releaseErr := s.locks.Delete(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release settlement lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	return fn()
}

func (s *delegateService) persistDelegate(ctx context.Context, delegate *model.Delegate) error {
	if err := s.delegates.Update(ctx, delegate.ID, delegate); err != nil {
		return apperrors.Internal("Failed to persist delegate", err)
	}
	return nil
}

func (s *delegateService) emit(ctx context.Context, eventType, key string, payload any) {
	if err := s.publisher.Publish(ctx, eventType, key, payload); err != nil {
		s.cfg.Log.Warn("Event not published", "event_type", eventType, "key", key)
	}
}

func mapDelegateError(err error, id string) error {
	switch {
	case errors.Is(err, delegateserrors.ErrDelegateNotFound):
		return apperrors.NotFoundWithID("Delegate", id)
	case errors.Is(err, delegateserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid delegate ID format")
	case apperrors.IsAppError(err):
		return err
	default:
		return apperrors.Internal("Delegate operation failed", err)
	}
}

// feePortion computes floor(amount * bps / 10000).
func feePortion(amount, bps int64) int64 {
	return amount * bps / config.BpsDenominator
}
