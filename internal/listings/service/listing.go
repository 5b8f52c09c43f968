package service

import (
	"context"
	"errors"
	"time"

	delegaterepo "stayledger/internal/delegates/repository"
	"stayledger/internal/events"
	listingserrors "stayledger/internal/listings/errors"
	"stayledger/internal/listings/repository"
	"stayledger/internal/listings/validator"
	"stayledger/internal/platform"
	registryservice "stayledger/internal/registry/service"
	"stayledger/pkg/config"
	apperrors "stayledger/pkg/errors"
	"stayledger/pkg/model"
	"stayledger/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

// ListingService owns the property catalogue and the booking lifecycle: rent
// settlement, deposit negotiation, tokenisation and fractional claims. Every
// operation that moves settlement tokens runs under a per-booking settlement
// lock and inside one transaction, so a transfer failure discards all state
// changes attempted alongside it, the calendar reservation included.
type ListingService interface {
	CreateProperty(ctx context.Context, property *model.Property) error
	GetProperty(ctx context.Context, id string) (*model.Property, error)
	ListProperties(ctx context.Context, limit int, offset int64) ([]*model.Property, int64, error)
	UpdateProperty(ctx context.Context, id string, caller string, updates *model.PropertyUpdate) error

	Book(ctx context.Context, req *model.BookingRequest) (*model.Booking, error)
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	ListBookings(ctx context.Context, propertyID string, limit int, offset int64) ([]*model.Booking, int64, error)
	PayRent(ctx context.Context, bookingID, caller string, amount int64) (*model.Booking, error)
	WithdrawLandlordIncome(ctx context.Context, bookingID, caller string) (int64, error)
	CompleteBooking(ctx context.Context, bookingID, caller string) error
	CancelBooking(ctx context.Context, bookingID, caller string) error
	HandleDefault(ctx context.Context, bookingID, caller string) error

	ProposeDepositSplit(ctx context.Context, bookingID, caller string, tenantBps int64) (*model.DepositSplitProposal, error)
	ConfirmDepositSplit(ctx context.Context, bookingID, caller string) error
	GetDepositProposal(ctx context.Context, bookingID string) (*model.DepositSplitProposal, error)

	TokeniseBooking(ctx context.Context, bookingID, caller string, totalUnits, unitPrice, feeBps int64) error
	ApproveTokenisation(ctx context.Context, bookingID, caller string) error
	GetTokenProposal(ctx context.Context, bookingID string) (*model.TokenisationProposal, error)
	Invest(ctx context.Context, bookingID, caller string, units int64) (*model.Position, error)
	Claim(ctx context.Context, bookingID, caller string) (int64, error)
	GetPosition(ctx context.Context, bookingID, holder string) (*model.Position, error)
	AssignDelegate(ctx context.Context, bookingID, caller, operator string) (*model.Delegate, error)
}

type listingService struct {
	properties       repository.PropertyRepository
	bookings         repository.BookingRepository
	positions        repository.PositionRepository
	depositProposals repository.DepositProposalRepository
	tokenProposals   repository.TokenProposalRepository
	locks            repository.SettlementLockRepository
	delegates        delegaterepo.DelegateRepository

	registry  registryservice.RegistryService
	directory platform.Directory
	vault     platform.Vault
	shares    platform.ShareToken

	publisher events.Publisher
	validator *validator.ListingValidator
	cfg       *config.Config
}

func NewListingService(
	properties repository.PropertyRepository,
	bookings repository.BookingRepository,
	positions repository.PositionRepository,
	depositProposals repository.DepositProposalRepository,
	tokenProposals repository.TokenProposalRepository,
	locks repository.SettlementLockRepository,
	delegates delegaterepo.DelegateRepository,
	registry registryservice.RegistryService,
	directory platform.Directory,
	vault platform.Vault,
	shares platform.ShareToken,
	publisher events.Publisher,
	v *validator.ListingValidator,
	cfg *config.Config,
) ListingService {
	return &listingService{
		properties:       properties,
		bookings:         bookings,
		positions:        positions,
		depositProposals: depositProposals,
		tokenProposals:   tokenProposals,
		locks:            locks,
		delegates:        delegates,
		registry:         registry,
		directory:        directory,
		vault:            vault,
		shares:           shares,
		publisher:        publisher,
		validator:        v,
		cfg:              cfg,
	}
}

func (s *listingService) CreateProperty(ctx context.Context, property *model.Property) error {
	property.Owner = sanitizer.NormalizeAccount(property.Owner)
	property.SettlementToken = sanitizer.NormalizeLabel(property.SettlementToken)
	if property.MinNotice == 0 {
		property.MinNotice = s.cfg.DefaultMinNotice
	}
	if property.MaxWindow == 0 {
		property.MaxWindow = s.cfg.DefaultMaxWindow
	}
	property.Active = true
	property.NextBookingSeq = 0

	if err := s.validator.ValidateProperty(property); err != nil {
		s.cfg.Log.Warn("Property validation failed", "error", err)
		return apperrors.Validation("Property validation failed", map[string]any{"error": err.Error()})
	}

	err := s.properties.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.properties.Create(sessCtx, property); err != nil {
			return apperrors.Internal("Failed to create property", err)
		}
		return s.registry.CreateCalendar(sessCtx, propertyCalendarID(property.ID), property.CapacitySqm)
	})
	if err != nil {
		return err
	}

	s.cfg.Log.Info("Property created",
		"property_id", property.ID,
		"owner", property.Owner,
		"capacity_sqm", property.CapacitySqm,
	)
	return nil
}

func (s *listingService) GetProperty(ctx context.Context, id string) (*model.Property, error) {
	property, err := s.properties.FindByID(ctx, id)
	if err != nil {
		return nil, mapPropertyError(err, id)
	}
	return property, nil
}

func (s *listingService) ListProperties(ctx context.Context, limit int, offset int64) ([]*model.Property, int64, error) {
	properties, err := s.properties.FindAll(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to list properties", err)
	}
	count, err := s.properties.Count(ctx)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to count properties", err)
	}
	return properties, count, nil
}

func (s *listingService) UpdateProperty(ctx context.Context, id string, caller string, updates *model.PropertyUpdate) error {
	if err := s.validator.ValidateRequest(updates); err != nil {
		return apperrors.Validation("Invalid property update", map[string]any{"error": err.Error()})
	}

	property, err := s.properties.FindByID(ctx, id)
	if err != nil {
		return mapPropertyError(err, id)
	}
	if caller != property.Owner {
		return apperrors.Forbidden("Only the property owner may update it")
	}

	if err := s.properties.Update(ctx, id, updates); err != nil {
		return mapPropertyError(err, id)
	}

	s.cfg.Log.Info("Property updated", "property_id", id)
	return nil
}

// withSettlementLock holds the per-booking advisory lock across fn. Any
// nested attempt to settle the same booking while the lock is held is
// rejected, which is the re-entrancy discipline for external transfers.
func (s *listingService) withSettlementLock(ctx context.Context, bookingID string, fn func() error) error {
	lockID := "settlement_lock_booking_" + bookingID
	lock := &model.SettlementLock{
		ID:        lockID,
		ExpiresAt: time.Now().Add(s.cfg.SettlementLockTTL),
	}

	if _, err := s.locks.Create(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.Conflict("Booking is settling in another request. Please try again.")
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

// isPlatform reports whether the caller is the orchestrator's operating
// account.
func (s *listingService) isPlatform(ctx context.Context, caller string) (bool, error) {
	policy, err := s.directory.FeePolicy(ctx)
	if err != nil {
		return false, apperrors.Internal("Failed to resolve platform configuration", err)
	}
	return caller == policy.PlatformAccount, nil
}

func (s *listingService) emit(ctx context.Context, eventType, key string, payload any) {
	if err := s.publisher.Publish(ctx, eventType, key, payload); err != nil {
		s.cfg.Log.Warn("Event not published", "event_type", eventType, "key", key)
	}
}

func propertyCalendarID(propertyID string) string {
	return "property:" + propertyID
}

func mapPropertyError(err error, id string) error {
	switch {
	case errors.Is(err, listingserrors.ErrPropertyNotFound):
		return apperrors.NotFoundWithID("Property", id)
	case errors.Is(err, listingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid property ID format")
	case apperrors.IsAppError(err):
		return err
	default:
		return apperrors.Internal("Property operation failed", err)
	}
}

func mapBookingError(err error, id string) error {
	switch {
	case errors.Is(err, listingserrors.ErrBookingNotFound):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, listingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid booking ID format")
	case apperrors.IsAppError(err):
		return err
	default:
		return apperrors.Internal("Booking operation failed", err)
	}
}

// feePortion computes floor(amount * bps / 10000).
func feePortion(amount, bps int64) int64 {
	return amount * bps / config.BpsDenominator
}
