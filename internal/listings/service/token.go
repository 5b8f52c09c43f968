package service

import (
	"context"
	"errors"
	"time"

	"stayledger/internal/events"
	listingserrors "stayledger/internal/listings/errors"
	"stayledger/pkg/accrual"
	apperrors "stayledger/pkg/errors"
	"stayledger/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

// TokeniseBooking opens direct fractional ownership of a non-delegated
// booking. Terms are fixed once; an already tokenised or delegated booking
// is rejected.
func (s *listingService) TokeniseBooking(ctx context.Context, bookingID, caller string, totalUnits, unitPrice, feeBps int64) error {
	if totalUnits <= 0 || unitPrice <= 0 {
		return apperrors.InvalidInput("Unit count and unit price must be positive")
	}
	if feeBps < 0 || feeBps > 10000 {
		return apperrors.InvalidInput("Investor fee must be between 0 and 10000 basis points")
	}

	err := s.withSettlementLock(ctx, bookingID, func() error {
		return s.bookings.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			booking, err := s.bookings.FindByID(sessCtx, bookingID)
			if err != nil {
				return mapBookingError(err, bookingID)
			}

			property, err := s.properties.FindByID(sessCtx, booking.PropertyID)
			if err != nil {
				return mapPropertyError(err, booking.PropertyID)
			}
			if caller != property.Owner {
				return apperrors.Forbidden("Only the property owner may tokenise a booking")
			}
			if booking.Status != model.BookingActive {
				return apperrors.Conflict("Booking is not active")
			}
			if booking.Tokenised {
				return apperrors.Conflict("Booking is already tokenised")
			}
			if booking.DelegateID != "" {
				return apperrors.Conflict("Delegated booking is tokenised through its delegate")
			}

			booking.Tokenised = true
			booking.TotalUnits = totalUnits
			booking.UnitPrice = unitPrice
			booking.InvestorFeeBps = feeBps
			booking.AccRentPerUnit = "0"
			return persistBooking(sessCtx, s, booking)
		})
	})
	if err != nil {
		return err
	}

	s.emit(ctx, events.TypeBookingTokenised, bookingID, events.ProposalEvent{
		BookingID:  bookingID,
		TotalUnits: totalUnits,
		UnitPrice:  unitPrice,
		FeeBps:     feeBps,
		OccurredAt: time.Now().UTC(),
	})

	s.cfg.Log.Info("Booking tokenised",
		"booking_id", bookingID,
		"total_units", totalUnits,
		"unit_price", unitPrice,
	)
	return nil
}

// ApproveTokenisation approves a delegate's pending terms. The delegate may
// only open fundraising on terms matching this approved proposal exactly.
func (s *listingService) ApproveTokenisation(ctx context.Context, bookingID, caller string) error {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return mapBookingError(err, bookingID)
	}

	if err := s.requireOwnerOrPlatform(ctx, booking.PropertyID, caller); err != nil {
		return err
	}

	proposal, err := s.tokenProposals.FindByBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, listingserrors.ErrProposalNotFound) {
			return apperrors.NotFound("Pending tokenisation proposal")
		}
		return apperrors.Internal("Failed to load tokenisation proposal", err)
	}
	if booking.DelegateID == "" || booking.DelegateID != proposal.DelegateID {
		return apperrors.Conflict("Proposal does not belong to the booking's delegate")
	}

	if err := s.tokenProposals.Approve(ctx, bookingID); err != nil {
		return apperrors.Internal("Failed to approve tokenisation proposal", err)
	}

	s.emit(ctx, events.TypeTokenisationApproved, bookingID, events.ProposalEvent{
		BookingID:  bookingID,
		ProposalID: proposal.ID,
		TotalUnits: proposal.TotalUnits,
		UnitPrice:  proposal.UnitPrice,
		FeeBps:     proposal.FeeBps,
		OccurredAt: time.Now().UTC(),
	})

	s.cfg.Log.Info("Tokenisation approved", "booking_id", bookingID, "delegate_id", proposal.DelegateID)
	return nil
}

func (s *listingService) GetTokenProposal(ctx context.Context, bookingID string) (*model.TokenisationProposal, error) {
	proposal, err := s.tokenProposals.FindByBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, listingserrors.ErrProposalNotFound) {
			return nil, apperrors.NotFound("Tokenisation proposal")
		}
		return nil, apperrors.Internal("Failed to load tokenisation proposal", err)
	}
	return proposal, nil
}

// Invest purchases fractional units of a directly tokenised booking. The
// buyer's debt snapshot is advanced by units*acc/1e18 at purchase time, so
// new units owe nothing for rent accrued before them. Sale proceeds accrue
// to the landlord balance.
func (s *listingService) Invest(ctx context.Context, bookingID, caller string, units int64) (*model.Position, error) {
	if units <= 0 {
		return nil, apperrors.InvalidInput("Unit count must be positive")
	}

	var (
		position *model.Position
		closed   bool
		classID  string
		cost     int64
	)

	err := s.withSettlementLock(ctx, bookingID, func() error {
		return s.bookings.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			booking, err := s.bookings.FindByID(sessCtx, bookingID)
			if err != nil {
				return mapBookingError(err, bookingID)
			}
			if !booking.Tokenised {
				return apperrors.Conflict("Booking is not tokenised")
			}
			if booking.Status != model.BookingActive {
				return apperrors.Conflict("Booking is not active")
			}
			if booking.SoldUnits+units > booking.TotalUnits {
				return apperrors.Conflict("Purchase exceeds remaining unit supply")
			}

			policy, err := s.directory.FeePolicy(sessCtx)
			if err != nil {
				return apperrors.Internal("Failed to resolve platform configuration", err)
			}

			cost = units * booking.UnitPrice
			if err := s.vault.Transfer(sessCtx, caller, policy.EscrowAccount, cost); err != nil {
				return mapTransferError(err, "Investment transfer failed")
			}
			booking.LandlordAccrued += cost

			debtDelta, err := accrual.Accrued(units, booking.AccRentPerUnit)
			if err != nil {
				return apperrors.Internal("Failed to compute purchase debt", err)
			}

			scope := model.BookingScope(bookingID)
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

			classID = booking.ShareClassID()
			if err := s.shares.Mint(sessCtx, classID, caller, units); err != nil {
				return apperrors.Internal("Failed to mint fractional units", err)
			}

			booking.SoldUnits += units
			closed = booking.SoldUnits == booking.TotalUnits
			return persistBooking(sessCtx, s, booking)
		})
	})
	if err != nil {
		return nil, err
	}

	// Transfer freeze at full subscription is advisory; a failure is logged
	// and never unwinds the investment.
	if closed {
		if err := s.shares.LockTransfers(ctx, classID); err != nil {
			s.cfg.Log.Warn("Share transfer lock failed", "class_id", classID, "error", err)
		}
	}

	s.emit(ctx, events.TypeInvestment, bookingID, events.MoneyEvent{
		Scope:      model.BookingScope(bookingID),
		Account:    caller,
		Amount:     cost,
		Units:      units,
		OccurredAt: time.Now().UTC(),
	})

	s.cfg.Log.Info("Investment made",
		"booking_id", bookingID,
		"investor", caller,
		"units", units,
	)
	return position, nil
}

// Claim settles the caller's pending pro-rata rent in full: the claimable
// amount is units*acc/1e18 minus the debt snapshot, and the snapshot is
// advanced to the current accrued value.
func (s *listingService) Claim(ctx context.Context, bookingID, caller string) (int64, error) {
	var pending int64

	err := s.withSettlementLock(ctx, bookingID, func() error {
		return s.bookings.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			booking, err := s.bookings.FindByID(sessCtx, bookingID)
			if err != nil {
				return mapBookingError(err, bookingID)
			}

			scope := model.BookingScope(bookingID)
			position, err := s.positions.FindByScopeAndHolder(sessCtx, scope, caller)
			if err != nil {
				if errors.Is(err, listingserrors.ErrPositionNotFound) {
					return apperrors.Conflict("Nothing to claim")
				}
				return apperrors.Internal("Failed to load position", err)
			}

			pending, err = accrual.Pending(position.Units, booking.AccRentPerUnit, position.Debt)
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
				return mapTransferError(err, "Claim transfer failed")
			}

			position.Debt += pending
			return s.positions.Save(sessCtx, position)
		})
	})
	if err != nil {
		return 0, err
	}

	s.emit(ctx, events.TypeRentClaimed, bookingID, events.MoneyEvent{
		Scope:      model.BookingScope(bookingID),
		Account:    caller,
		Amount:     pending,
		OccurredAt: time.Now().UTC(),
	})

	s.cfg.Log.Info("Rent claimed", "booking_id", bookingID, "holder", caller, "amount", pending)
	return pending, nil
}

func (s *listingService) GetPosition(ctx context.Context, bookingID, holder string) (*model.Position, error) {
	position, err := s.positions.FindByScopeAndHolder(ctx, model.BookingScope(bookingID), holder)
	if err != nil {
		if errors.Is(err, listingserrors.ErrPositionNotFound) {
			return nil, apperrors.NotFound("Position")
		}
		return nil, apperrors.Internal("Failed to load position", err)
	}
	return position, nil
}

// AssignDelegate binds an operator to the booking, at most once. The
// delegate gets its own scheduling calendar whose capacity equals the
// booking's reserved units, so subleases can never oversell the space the
// parent booking holds.
func (s *listingService) AssignDelegate(ctx context.Context, bookingID, caller, operator string) (*model.Delegate, error) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, mapBookingError(err, bookingID)
	}

	if err := s.requireOwnerOrPlatform(ctx, booking.PropertyID, caller); err != nil {
		return nil, err
	}

	var delegate *model.Delegate
	err = s.bookings.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		booking, err = s.bookings.FindByID(sessCtx, bookingID)
		if err != nil {
			return mapBookingError(err, bookingID)
		}
		if booking.Status != model.BookingActive {
			return apperrors.Conflict("Booking is not active")
		}
		if booking.DelegateID != "" {
			return apperrors.Conflict("Booking already has a delegate")
		}
		if booking.Tokenised {
			return apperrors.Conflict("Directly tokenised booking cannot be delegated")
		}

		delegate = &model.Delegate{
			PropertyID:     booking.PropertyID,
			BookingID:      bookingID,
			Operator:       operator,
			AccRentPerUnit: "0",
		}
		if err := s.delegates.Create(sessCtx, delegate); err != nil {
			return apperrors.Internal("Failed to create delegate", err)
		}

		if err := s.registry.CreateCalendar(sessCtx, delegate.CalendarID(), booking.Units); err != nil {
			return err
		}

		booking.DelegateID = delegate.ID
		return persistBooking(sessCtx, s, booking)
	})
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Delegate assigned",
		"booking_id", bookingID,
		"delegate_id", delegate.ID,
		"operator", operator,
	)
	return delegate, nil
}
