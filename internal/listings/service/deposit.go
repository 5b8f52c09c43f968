package service

import (
	"context"
	"errors"
	"time"

	"stayledger/internal/events"
	listingserrors "stayledger/internal/listings/errors"
	apperrors "stayledger/pkg/errors"
	"stayledger/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

// ProposeDepositSplit records the landlord's offer to return tenantBps of
// the escrowed deposit. At most one proposal may be pending per booking.
func (s *listingService) ProposeDepositSplit(ctx context.Context, bookingID, caller string, tenantBps int64) (*model.DepositSplitProposal, error) {
	if tenantBps < 0 || tenantBps > 10000 {
		return nil, apperrors.InvalidInput("Tenant share must be between 0 and 10000 basis points")
	}

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, mapBookingError(err, bookingID)
	}

	property, err := s.properties.FindByID(ctx, booking.PropertyID)
	if err != nil {
		return nil, mapPropertyError(err, booking.PropertyID)
	}
	if caller != property.Owner {
		return nil, apperrors.Forbidden("Only the property owner may propose a deposit split")
	}

	if booking.Status != model.BookingActive && booking.Status != model.BookingCompleted {
		return nil, apperrors.Conflict("Deposit split requires an active or completed booking")
	}
	if booking.Tokenised || booking.SoldUnits > 0 {
		return nil, apperrors.Conflict("Deposit split is unavailable on a tokenised booking")
	}
	if booking.DepositReleased {
		return nil, apperrors.Conflict("Deposit handled")
	}

	proposal := &model.DepositSplitProposal{
		BookingID: bookingID,
		Proposer:  caller,
		TenantBps: tenantBps,
	}
	if err := s.depositProposals.Create(ctx, proposal); err != nil {
		if errors.Is(err, listingserrors.ErrProposalPending) {
			return nil, apperrors.Conflict("A deposit-split proposal is already pending for this booking")
		}
		return nil, apperrors.Internal("Failed to create deposit proposal", err)
	}

	s.emit(ctx, events.TypeDepositSplitProposed, bookingID, events.ProposalEvent{
		BookingID:  bookingID,
		ProposalID: proposal.ID,
		TenantBps:  tenantBps,
		OccurredAt: time.Now().UTC(),
	})

	s.cfg.Log.Info("Deposit split proposed", "booking_id", bookingID, "tenant_bps", tenantBps)
	return proposal, nil
}

// ConfirmDepositSplit executes the pending proposal: the tenant receives
// floor(deposit * tenantBps / 10000) and the landlord path receives the
// remainder, so rounding dust always lands on the landlord side. Confirming
// against an unstarted active booking also cancels it, making this an
// alternate cancellation path.
func (s *listingService) ConfirmDepositSplit(ctx context.Context, bookingID, caller string) error {
	platform, err := s.isPlatform(ctx, caller)
	if err != nil {
		return err
	}
	if !platform {
		return apperrors.Forbidden("Only the platform may confirm a deposit split")
	}

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return mapBookingError(err, bookingID)
	}

	calendarID := propertyCalendarID(booking.PropertyID)
	var (
		released     *model.Reservation
		tenantAmount int64
		cancelled    bool
	)

	err = s.registry.WithCalendarLock(ctx, calendarID, func() error {
		return s.withSettlementLock(ctx, bookingID, func() error {
			return s.bookings.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
				booking, err = s.bookings.FindByID(sessCtx, bookingID)
				if err != nil {
					return mapBookingError(err, bookingID)
				}
				if booking.DepositReleased {
					return apperrors.Conflict("Deposit handled")
				}

				proposal, err := s.depositProposals.FindByBooking(sessCtx, bookingID)
				if err != nil {
					if errors.Is(err, listingserrors.ErrProposalNotFound) {
						return apperrors.NotFound("Pending deposit-split proposal")
					}
					return apperrors.Internal("Failed to load deposit proposal", err)
				}
				if proposal.Frozen {
					return apperrors.Conflict("Deposit-split proposal is frozen")
				}

				// Confirming before the lease starts cancels the booking, so
				// the same delegate guard as CancelBooking applies.
				if booking.Status == model.BookingActive && time.Now().UTC().Before(booking.StartTime) {
					if err := s.requireNoDelegateActivity(sessCtx, booking); err != nil {
						return err
					}
				}

				policy, err := s.directory.FeePolicy(sessCtx)
				if err != nil {
					return apperrors.Internal("Failed to resolve platform configuration", err)
				}

				tenantAmount = feePortion(booking.Deposit, proposal.TenantBps)
				landlordAmount := booking.Deposit - tenantAmount

				if tenantAmount > 0 {
					if err := s.vault.Transfer(sessCtx, policy.EscrowAccount, booking.Tenant, tenantAmount); err != nil {
						return mapTransferError(err, "Tenant deposit share transfer failed")
					}
				}
				if err := s.handleLandlordIncome(booking, landlordAmount); err != nil {
					return err
				}

				booking.DepositReleased = true
				if err := s.depositProposals.Delete(sessCtx, bookingID); err != nil {
					return apperrors.Internal("Failed to clear deposit proposal", err)
				}

				if booking.Status == model.BookingActive && time.Now().UTC().Before(booking.StartTime) {
					released, err = s.releaseBookingCalendar(sessCtx, booking)
					if err != nil {
						return err
					}
					booking.Status = model.BookingCancelled
					cancelled = true
				}

				return persistBooking(sessCtx, s, booking)
			})
		})
	})
	if err != nil {
		return err
	}

	if released != nil {
		s.registry.EmitReleased(ctx, released)
	}
	s.emit(ctx, events.TypeDepositSplitConfirmed, bookingID, events.MoneyEvent{
		Scope:      model.BookingScope(bookingID),
		Account:    booking.Tenant,
		Amount:     tenantAmount,
		OccurredAt: time.Now().UTC(),
	})
	if cancelled {
		s.emit(ctx, events.TypeBookingCancelled, bookingID, events.BookingEvent{
			BookingID:  bookingID,
			PropertyID: booking.PropertyID,
			Status:     booking.Status,
			OccurredAt: time.Now().UTC(),
		})
	}

	s.cfg.Log.Info("Deposit split confirmed",
		"booking_id", bookingID,
		"tenant_amount", tenantAmount,
		"cancelled", cancelled,
	)
	return nil
}

func (s *listingService) GetDepositProposal(ctx context.Context, bookingID string) (*model.DepositSplitProposal, error) {
	proposal, err := s.depositProposals.FindByBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, listingserrors.ErrProposalNotFound) {
			return nil, apperrors.NotFound("Deposit-split proposal")
		}
		return nil, apperrors.Internal("Failed to load deposit proposal", err)
	}
	return proposal, nil
}
