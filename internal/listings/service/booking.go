package service

import (
	"context"
	"time"

	"stayledger/internal/events"
	"stayledger/pkg/accrual"
	apperrors "stayledger/pkg/errors"
	"stayledger/pkg/model"
	"stayledger/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

// Book opens a lease obligation. Gross rent is fixed here as the daily rate
// times the whole-day duration (rounded up, minimum one day); expected net is
// gross minus the landlord fee at today's policy. The deposit escrow
// transfer and the calendar reservation commit atomically with the booking
// record.
func (s *listingService) Book(ctx context.Context, req *model.BookingRequest) (*model.Booking, error) {
	req.Tenant = sanitizer.NormalizeAccount(req.Tenant)
	if err := s.validator.ValidateBookingRequest(req); err != nil {
		s.cfg.Log.Warn("Booking request validation failed", "error", err)
		return nil, apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}

	property, err := s.properties.FindByID(ctx, req.PropertyID)
	if err != nil {
		return nil, mapPropertyError(err, req.PropertyID)
	}
	if !property.Active {
		return nil, apperrors.Conflict("Property is not accepting bookings")
	}

	now := time.Now().UTC()
	if property.MinNotice > 0 && req.StartTime.Before(now.Add(property.MinNotice)) {
		return nil, apperrors.InvalidInput("Booking start does not respect the property's minimum notice")
	}
	if property.MaxWindow > 0 && req.StartTime.After(now.Add(property.MaxWindow)) {
		return nil, apperrors.InvalidInput("Booking start is beyond the property's booking window")
	}

	hasPass, err := s.directory.HasAccessPass(ctx, req.Tenant)
	if err != nil {
		return nil, apperrors.Internal("Failed to check access pass", err)
	}
	if !hasPass {
		return nil, apperrors.Forbidden("Tenant does not hold a valid access pass")
	}

	policy, err := s.directory.FeePolicy(ctx)
	if err != nil {
		return nil, apperrors.Internal("Failed to resolve platform configuration", err)
	}

	days := wholeDays(req.StartTime, req.EndTime)
	gross := property.DailyRate * days
	booking := &model.Booking{
		PropertyID:     property.ID,
		Tenant:         req.Tenant,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		Units:          req.Units,
		PeriodDays:     req.PeriodDays,
		GrossRent:      gross,
		Deposit:        property.DepositAmount,
		ExpectedNet:    gross - feePortion(gross, policy.LandlordFeeBps),
		Status:         model.BookingActive,
		AccRentPerUnit: "0",
	}

	calendarID := propertyCalendarID(property.ID)
	var reservation *model.Reservation

	err = s.registry.WithCalendarLock(ctx, calendarID, func() error {
		return s.bookings.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			seq, err := s.properties.NextBookingSeq(sessCtx, property.ID)
			if err != nil {
				return apperrors.Internal("Failed to assign booking sequence", err)
			}
			booking.Seq = seq

			if err := s.bookings.Create(sessCtx, booking); err != nil {
				return apperrors.Internal("Failed to create booking", err)
			}

			if booking.Deposit > 0 {
				if err := s.vault.Transfer(sessCtx, booking.Tenant, policy.EscrowAccount, booking.Deposit); err != nil {
					return mapTransferError(err, "Deposit transfer failed")
				}
			}

			holder := model.Holder{Kind: model.HolderBooking, ID: booking.ID}
			reservation, err = s.registry.ReserveInTx(sessCtx, calendarID, holder, booking.StartTime, booking.EndTime, booking.Units)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.registry.EmitReserved(ctx, reservation)
	s.emit(ctx, events.TypeBookingCreated, booking.ID, events.BookingEvent{
		BookingID:  booking.ID,
		PropertyID: booking.PropertyID,
		Tenant:     booking.Tenant,
		Amount:     booking.GrossRent,
		Status:     booking.Status,
		OccurredAt: time.Now().UTC(),
	})

	s.cfg.Log.Info("Booking created",
		"booking_id", booking.ID,
		"property_id", booking.PropertyID,
		"tenant", booking.Tenant,
		"gross_rent", booking.GrossRent,
		"deposit", booking.Deposit,
	)
	return booking, nil
}

func (s *listingService) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return nil, mapBookingError(err, id)
	}
	return booking, nil
}

func (s *listingService) ListBookings(ctx context.Context, propertyID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	bookings, err := s.bookings.FindByProperty(ctx, propertyID, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to list bookings", err)
	}
	count, err := s.bookings.CountByProperty(ctx, propertyID)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to count bookings", err)
	}
	return bookings, count, nil
}

// PayRent settles one rent installment. The payer is charged the gross
// amount plus the tenant fee; both platform fees sweep to the treasury and
// the remainder feeds the landlord income path. A payment may not exceed the
// remaining rent, nor the per-period installment cap when the booking has a
// payment period.
func (s *listingService) PayRent(ctx context.Context, bookingID, caller string, amount int64) (*model.Booking, error) {
	if amount <= 0 {
		return nil, apperrors.InvalidInput("Payment amount must be positive")
	}

	var booking *model.Booking
	err := s.withSettlementLock(ctx, bookingID, func() error {
		return s.bookings.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			var err error
			booking, err = s.bookings.FindByID(sessCtx, bookingID)
			if err != nil {
				return mapBookingError(err, bookingID)
			}
			if caller != booking.Tenant {
				return apperrors.Forbidden("Only the booking's tenant may pay rent")
			}
			if booking.Status != model.BookingActive {
				return apperrors.Conflict("Booking is not active")
			}
			if amount > booking.RemainingRent() {
				return apperrors.Conflict("Payment exceeds remaining rent")
			}
			if cap := installmentCap(booking); cap > 0 && amount > cap {
				return apperrors.Conflict("Payment exceeds the per-period installment cap")
			}

			policy, err := s.directory.FeePolicy(sessCtx)
			if err != nil {
				return apperrors.Internal("Failed to resolve platform configuration", err)
			}

			tenantFee := feePortion(amount, policy.TenantFeeBps)
			landlordFee := feePortion(amount, policy.LandlordFeeBps)
			net := amount - landlordFee

			if err := s.vault.Transfer(sessCtx, caller, policy.EscrowAccount, amount+tenantFee); err != nil {
				return mapTransferError(err, "Rent transfer failed")
			}
			if fees := tenantFee + landlordFee; fees > 0 {
				if err := s.vault.Transfer(sessCtx, policy.EscrowAccount, policy.TreasuryAccount, fees); err != nil {
					return mapTransferError(err, "Fee sweep failed")
				}
			}

			if err := s.handleLandlordIncome(booking, net); err != nil {
				return err
			}
			booking.PaidRent += amount

			return persistBooking(sessCtx, s, booking)
		})
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, events.TypeRentPaid, booking.ID, events.BookingEvent{
		BookingID:  booking.ID,
		PropertyID: booking.PropertyID,
		Tenant:     booking.Tenant,
		Amount:     amount,
		Status:     booking.Status,
		OccurredAt: time.Now().UTC(),
	})

	s.cfg.Log.Info("Rent paid",
		"booking_id", booking.ID,
		"amount", amount,
		"paid_rent", booking.PaidRent,
		"gross_rent", booking.GrossRent,
	)
	return booking, nil
}

// handleLandlordIncome routes net income either into the pro-rata
// accumulator (tokenised booking with sold units) or into the landlord's
// on-demand accrual balance. Mutates the booking in memory only; the caller
// persists it.
func (s *listingService) handleLandlordIncome(booking *model.Booking, amount int64) error {
	if amount == 0 {
		return nil
	}

	if booking.Tokenised && booking.SoldUnits > 0 {
		acc, err := accrual.Credit(booking.AccRentPerUnit, amount, booking.SoldUnits)
		if err != nil {
			return apperrors.Internal("Failed to credit rent accumulator", err)
		}
		booking.AccRentPerUnit = acc
		return nil
	}

	booking.LandlordAccrued += amount
	return nil
}

func (s *listingService) WithdrawLandlordIncome(ctx context.Context, bookingID, caller string) (int64, error) {
	var amount int64
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
				return apperrors.Forbidden("Only the property owner may withdraw income")
			}

			amount = booking.LandlordAccrued
			if amount == 0 {
				return apperrors.Conflict("Nothing to claim")
			}

			policy, err := s.directory.FeePolicy(sessCtx)
			if err != nil {
				return apperrors.Internal("Failed to resolve platform configuration", err)
			}
			if err := s.vault.Transfer(sessCtx, policy.EscrowAccount, caller, amount); err != nil {
				return mapTransferError(err, "Income withdrawal failed")
			}

			booking.LandlordAccrued = 0
			return persistBooking(sessCtx, s, booking)
		})
	})
	if err != nil {
		return 0, err
	}

	s.emit(ctx, events.TypeIncomeWithdrawn, bookingID, events.MoneyEvent{
		Scope:      model.BookingScope(bookingID),
		Account:    caller,
		Amount:     amount,
		OccurredAt: time.Now().UTC(),
	})
	return amount, nil
}

// CompleteBooking closes out a lease after its end time. The calendar slot is
// released exactly once; the release flag makes a repeated completion attempt
// a no-op on the calendar side.
func (s *listingService) CompleteBooking(ctx context.Context, bookingID, caller string) error {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return mapBookingError(err, bookingID)
	}

	if err := s.requireOwnerOrPlatform(ctx, booking.PropertyID, caller); err != nil {
		return err
	}

	calendarID := propertyCalendarID(booking.PropertyID)
	var released *model.Reservation

	err = s.registry.WithCalendarLock(ctx, calendarID, func() error {
		return s.bookings.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			booking, err = s.bookings.FindByID(sessCtx, bookingID)
			if err != nil {
				return mapBookingError(err, bookingID)
			}
			if booking.Status != model.BookingActive {
				return apperrors.Conflict("Booking is not active")
			}
			if time.Now().UTC().Before(booking.EndTime) {
				return apperrors.Conflict("Booking has not ended yet")
			}

			released, err = s.releaseBookingCalendar(sessCtx, booking)
			if err != nil {
				return err
			}

			booking.Status = model.BookingCompleted
			return persistBooking(sessCtx, s, booking)
		})
	})
	if err != nil {
		return err
	}

	if released != nil {
		s.registry.EmitReleased(ctx, released)
	}
	s.emit(ctx, events.TypeBookingCompleted, booking.ID, events.BookingEvent{
		BookingID:  booking.ID,
		PropertyID: booking.PropertyID,
		Status:     booking.Status,
		OccurredAt: time.Now().UTC(),
	})

	s.cfg.Log.Info("Booking completed", "booking_id", booking.ID)
	return nil
}

// CancelBooking aborts an unstarted lease with no economic activity: no rent
// paid, no fractional units sold, deposit still escrowed. The full deposit
// refunds to the tenant.
func (s *listingService) CancelBooking(ctx context.Context, bookingID, caller string) error {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return mapBookingError(err, bookingID)
	}

	if err := s.requireOwnerOrPlatform(ctx, booking.PropertyID, caller); err != nil {
		return err
	}

	calendarID := propertyCalendarID(booking.PropertyID)
	var released *model.Reservation

	err = s.registry.WithCalendarLock(ctx, calendarID, func() error {
		return s.withSettlementLock(ctx, bookingID, func() error {
			return s.bookings.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
				booking, err = s.bookings.FindByID(sessCtx, bookingID)
				if err != nil {
					return mapBookingError(err, bookingID)
				}
				if booking.Status != model.BookingActive {
					return apperrors.Conflict("Booking is not active")
				}
				if !time.Now().UTC().Before(booking.StartTime) {
					return apperrors.Conflict("Booking has already started")
				}
				if booking.PaidRent > 0 {
					return apperrors.Conflict("Booking has rent paid; cancellation is no longer possible")
				}
				if booking.Tokenised || booking.SoldUnits > 0 {
					return apperrors.Conflict("Tokenised booking cannot be cancelled")
				}
				if err := s.requireNoDelegateActivity(sessCtx, booking); err != nil {
					return err
				}
				if booking.DepositReleased {
					return apperrors.Conflict("Deposit handled")
				}

				released, err = s.releaseBookingCalendar(sessCtx, booking)
				if err != nil {
					return err
				}

				if booking.Deposit > 0 {
					policy, err := s.directory.FeePolicy(sessCtx)
					if err != nil {
						return apperrors.Internal("Failed to resolve platform configuration", err)
					}
					if err := s.vault.Transfer(sessCtx, policy.EscrowAccount, booking.Tenant, booking.Deposit); err != nil {
						return mapTransferError(err, "Deposit refund failed")
					}
				}
				booking.DepositReleased = true
				booking.Status = model.BookingCancelled
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
	s.emit(ctx, events.TypeBookingCancelled, booking.ID, events.BookingEvent{
		BookingID:  booking.ID,
		PropertyID: booking.PropertyID,
		Status:     booking.Status,
		OccurredAt: time.Now().UTC(),
	})

	s.cfg.Log.Info("Booking cancelled", "booking_id", booking.ID)
	return nil
}

// HandleDefault is the platform's remedy for an abandoned active lease: the
// calendar is released, and the escrowed deposit, if still unsettled, routes
// to the landlord income path rather than back to the tenant. A pending
// deposit-split proposal is frozen, not executed.
func (s *listingService) HandleDefault(ctx context.Context, bookingID, caller string) error {
	platform, err := s.isPlatform(ctx, caller)
	if err != nil {
		return err
	}
	if !platform {
		return apperrors.Forbidden("Only the platform may declare a default")
	}

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return mapBookingError(err, bookingID)
	}

	calendarID := propertyCalendarID(booking.PropertyID)
	var released *model.Reservation

	err = s.registry.WithCalendarLock(ctx, calendarID, func() error {
		return s.withSettlementLock(ctx, bookingID, func() error {
			return s.bookings.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
				booking, err = s.bookings.FindByID(sessCtx, bookingID)
				if err != nil {
					return mapBookingError(err, bookingID)
				}
				if booking.Status != model.BookingActive {
					return apperrors.Conflict("Booking is not active")
				}

				released, err = s.releaseBookingCalendar(sessCtx, booking)
				if err != nil {
					return err
				}

				if !booking.DepositReleased && booking.Deposit > 0 {
					if err := s.handleLandlordIncome(booking, booking.Deposit); err != nil {
						return err
					}
					booking.DepositReleased = true
				}
				if err := s.depositProposals.Freeze(sessCtx, bookingID); err != nil {
					return apperrors.Internal("Failed to freeze deposit proposal", err)
				}

				booking.Status = model.BookingDefaulted
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
	s.emit(ctx, events.TypeBookingDefaulted, booking.ID, events.BookingEvent{
		BookingID:  booking.ID,
		PropertyID: booking.PropertyID,
		Status:     booking.Status,
		OccurredAt: time.Now().UTC(),
	})

	s.cfg.Log.Info("Booking defaulted", "booking_id", booking.ID)
	return nil
}

// releaseBookingCalendar releases the booking's reservation at most once.
// Returns nil when the slot was already released.
func (s *listingService) releaseBookingCalendar(ctx context.Context, booking *model.Booking) (*model.Reservation, error) {
	if booking.CalendarReleased {
		return nil, nil
	}
	holder := model.Holder{Kind: model.HolderBooking, ID: booking.ID}
	released, err := s.registry.ReleaseInTx(ctx, propertyCalendarID(booking.PropertyID), holder, booking.StartTime, booking.EndTime)
	if err != nil {
		return nil, err
	}
	booking.CalendarReleased = true
	return released, nil
}

// requireNoDelegateActivity blocks unwinding a booking whose delegate has
// sold fractional units or opened fundraising. Investor positions and raised
// funds reference this lease; releasing its reservation would strand them.
func (s *listingService) requireNoDelegateActivity(ctx context.Context, booking *model.Booking) error {
	if booking.DelegateID == "" {
		return nil
	}
	delegate, err := s.delegates.FindByID(ctx, booking.DelegateID)
	if err != nil {
		return apperrors.Internal("Failed to load delegate", err)
	}
	if delegate.Open || delegate.Closed || delegate.SoldUnits > 0 {
		return apperrors.Conflict("Delegate fundraising is active; booking cannot be unwound")
	}
	return nil
}

func (s *listingService) requireOwnerOrPlatform(ctx context.Context, propertyID, caller string) error {
	property, err := s.properties.FindByID(ctx, propertyID)
	if err != nil {
		return mapPropertyError(err, propertyID)
	}
	if caller == property.Owner {
		return nil
	}
	platform, err := s.isPlatform(ctx, caller)
	if err != nil {
		return err
	}
	if !platform {
		return apperrors.Forbidden("Only the property owner or the platform may do this")
	}
	return nil
}

func persistBooking(ctx context.Context, s *listingService, booking *model.Booking) error {
	if err := s.bookings.Update(ctx, booking.ID, booking); err != nil {
		return apperrors.Internal("Failed to persist booking", err)
	}
	return nil
}

func mapTransferError(err error, message string) error {
	if err == nil {
		return nil
	}
	return apperrors.Conflict(message + ": " + err.Error())
}

// wholeDays is the ceiling of the interval length in days, minimum one.
func wholeDays(start, end time.Time) int64 {
	duration := end.Sub(start)
	days := int64(duration / (24 * time.Hour))
	if duration%(24*time.Hour) != 0 {
		days++
	}
	if days < 1 {
		days = 1
	}
	return days
}

// installmentCap bounds a single payment to one period's worth of rent.
// dailyEquivalent is rounded up so short bookings never compute a zero cap;
// the cap itself is clamped to the remaining rent so the final installment
// can always clear the balance exactly.
func installmentCap(booking *model.Booking) int64 {
	if booking.PeriodDays <= 0 {
		return 0
	}
	duration := wholeDays(booking.StartTime, booking.EndTime)
	daily := booking.GrossRent / duration
	if booking.GrossRent%duration != 0 {
		daily++
	}
	cap := daily * int64(booking.PeriodDays)
	if remaining := booking.RemainingRent(); cap > remaining {
		cap = remaining
	}
	return cap
}
