package service

import (
	"context"
	"errors"
	"time"

	delegateserrors "stayledger/internal/delegates/errors"
	"stayledger/internal/delegates/validator"
	"stayledger/internal/events"
	apperrors "stayledger/pkg/errors"
	"stayledger/pkg/model"
	"stayledger/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

// CreateSublease lets the operator schedule a short-term sub-booking on the
// delegate's own calendar. The calendar's capacity equals the parent
// booking's reserved units, so concurrent subleases can never oversell the
// space the delegate actually controls.
func (s *delegateService) CreateSublease(ctx context.Context, delegateID string, req *validator.SubleaseRequest) (*model.Sublease, error) {
	req.Tenant = sanitizer.NormalizeAccount(req.Tenant)
	if err := s.validator.ValidateRequest(req); err != nil {
		s.cfg.Log.Warn("Sublease request validation failed", "error", err)
		return nil, apperrors.Validation("Sublease validation failed", map[string]any{"error": err.Error()})
	}

	delegate, err := s.delegates.FindByID(ctx, delegateID)
	if err != nil {
		return nil, mapDelegateError(err, delegateID)
	}
	if req.Caller != delegate.Operator {
		return nil, apperrors.Forbidden("Only the delegate operator may create subleases")
	}

	sublease := &model.Sublease{
		DelegateID: delegateID,
		Tenant:     req.Tenant,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Units:      req.Units,
		GrossRent:  req.GrossRent,
		Status:     model.SubleaseActive,
	}

	calendarID := delegate.CalendarID()
	var reservation *model.Reservation

	err = s.registry.WithCalendarLock(ctx, calendarID, func() error {
		return s.delegates.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			seq, err := s.delegates.NextSubleaseSeq(sessCtx, delegateID)
			if err != nil {
				return apperrors.Internal("Failed to assign sublease sequence", err)
			}
			sublease.Seq = seq

			if err := s.subleases.Create(sessCtx, sublease); err != nil {
				return apperrors.Internal("Failed to create sublease", err)
			}

			holder := model.Holder{Kind: model.HolderSublease, ID: sublease.ID}
			reservation, err = s.registry.ReserveInTx(sessCtx, calendarID, holder, sublease.StartTime, sublease.EndTime, sublease.Units)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.registry.EmitReserved(ctx, reservation)
	s.emit(ctx, events.TypeSubleaseCreated, sublease.ID, events.SubleaseEvent{
		SubleaseID: sublease.ID,
		DelegateID: delegateID,
		Tenant:     sublease.Tenant,
		Status:     sublease.Status,
		OccurredAt: time.Now().UTC(),
	})

	s.cfg.Log.Info("Sublease created",
		"sublease_id", sublease.ID,
		"delegate_id", delegateID,
		"tenant", sublease.Tenant,
		"units", sublease.Units,
	)
	return sublease, nil
}

func (s *delegateService) GetSublease(ctx context.Context, delegateID, subleaseID string) (*model.Sublease, error) {
	sublease, err := s.findSublease(ctx, delegateID, subleaseID)
	if err != nil {
		return nil, err
	}
	return sublease, nil
}

func (s *delegateService) ListSubleases(ctx context.Context, delegateID string, limit int, offset int64) ([]*model.Sublease, int64, error) {
	subleases, err := s.subleases.FindByDelegate(ctx, delegateID, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to list subleases", err)
	}
	count, err := s.subleases.CountByDelegate(ctx, delegateID)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to count subleases", err)
	}
	return subleases, count, nil
}

// CollectSubletRent settles a sublease installment: the sub-tenant pays, the
// delegate fee is withheld, and the remainder feeds the same accumulator as
// parent-booking income. PaidRent never exceeds the sublease's gross rent.
func (s *delegateService) CollectSubletRent(ctx context.Context, delegateID, subleaseID, caller string, amount int64) (*model.Sublease, error) {
	if amount <= 0 {
		return nil, apperrors.InvalidInput("Payment amount must be positive")
	}

	var sublease *model.Sublease
	err := s.withSettlementLock(ctx, delegateID, func() error {
		return s.delegates.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			delegate, err := s.delegates.FindByID(sessCtx, delegateID)
			if err != nil {
				return mapDelegateError(err, delegateID)
			}
			sublease, err = s.findSublease(sessCtx, delegateID, subleaseID)
			if err != nil {
				return err
			}
			if caller != sublease.Tenant {
				return apperrors.Forbidden("Only the sublease's tenant may pay rent")
			}
			if sublease.Status != model.SubleaseActive {
				return apperrors.Conflict("Sublease is not active")
			}
			if amount > sublease.GrossRent-sublease.PaidRent {
				return apperrors.Conflict("Payment exceeds remaining rent")
			}

			if err := s.creditIncome(sessCtx, delegate, caller, amount); err != nil {
				return err
			}

			sublease.PaidRent += amount
			return s.persistSublease(sessCtx, sublease)
		})
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, events.TypeRentCollected, subleaseID, events.MoneyEvent{
		Scope:      model.DelegateScope(delegateID),
		Account:    caller,
		Amount:     amount,
		OccurredAt: time.Now().UTC(),
	})

	s.cfg.Log.Info("Sublet rent collected",
		"sublease_id", subleaseID,
		"delegate_id", delegateID,
		"amount", amount,
	)
	return sublease, nil
}

// CompleteSublease closes out a sublease after its end time and releases the
// calendar slot exactly once.
func (s *delegateService) CompleteSublease(ctx context.Context, delegateID, subleaseID, caller string) error {
	return s.endSublease(ctx, delegateID, subleaseID, caller, model.SubleaseCompleted)
}

// CancelSublease aborts an unstarted sublease with no rent collected yet.
func (s *delegateService) CancelSublease(ctx context.Context, delegateID, subleaseID, caller string) error {
	return s.endSublease(ctx, delegateID, subleaseID, caller, model.SubleaseCancelled)
}

func (s *delegateService) endSublease(ctx context.Context, delegateID, subleaseID, caller, target string) error {
	delegate, err := s.delegates.FindByID(ctx, delegateID)
	if err != nil {
		return mapDelegateError(err, delegateID)
	}
	if caller != delegate.Operator {
		return apperrors.Forbidden("Only the delegate operator may end a sublease")
	}

	calendarID := delegate.CalendarID()
	var (
		sublease *model.Sublease
		released *model.Reservation
	)

	err = s.registry.WithCalendarLock(ctx, calendarID, func() error {
		return s.delegates.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			sublease, err = s.findSublease(sessCtx, delegateID, subleaseID)
			if err != nil {
				return err
			}
			if sublease.Status != model.SubleaseActive {
				return apperrors.Conflict("Sublease is not active")
			}

			now := time.Now().UTC()
			switch target {
			case model.SubleaseCompleted:
				if now.Before(sublease.EndTime) {
					return apperrors.Conflict("Sublease has not ended yet")
				}
			case model.SubleaseCancelled:
				if !now.Before(sublease.StartTime) {
					return apperrors.Conflict("Sublease has already started")
				}
				if sublease.PaidRent > 0 {
					return apperrors.Conflict("Sublease has rent collected; cancellation is no longer possible")
				}
			}

			if !sublease.CalendarReleased {
				holder := model.Holder{Kind: model.HolderSublease, ID: sublease.ID}
				released, err = s.registry.ReleaseInTx(sessCtx, calendarID, holder, sublease.StartTime, sublease.EndTime)
				if err != nil {
					return err
				}
				sublease.CalendarReleased = true
			}

			sublease.Status = target
			return s.persistSublease(sessCtx, sublease)
		})
	})
	if err != nil {
		return err
	}

	if released != nil {
		s.registry.EmitReleased(ctx, released)
	}
	eventType := events.TypeSubleaseCompleted
	if target == model.SubleaseCancelled {
		eventType = events.TypeSubleaseCancelled
	}
	s.emit(ctx, eventType, subleaseID, events.SubleaseEvent{
		SubleaseID: subleaseID,
		DelegateID: delegateID,
		Status:     target,
		OccurredAt: time.Now().UTC(),
	})

	s.cfg.Log.Info("Sublease ended", "sublease_id", subleaseID, "status", target)
	return nil
}

// findSublease loads a sublease and checks it belongs to the delegate, so a
// sublease ID can never be driven through another delegate's calendar.
func (s *delegateService) findSublease(ctx context.Context, delegateID, subleaseID string) (*model.Sublease, error) {
	sublease, err := s.subleases.FindByID(ctx, subleaseID)
	if err != nil {
		if errors.Is(err, delegateserrors.ErrSubleaseNotFound) {
			return nil, apperrors.NotFoundWithID("Sublease", subleaseID)
		}
		return nil, apperrors.Internal("Failed to load sublease", err)
	}
	if sublease.DelegateID != delegateID {
		return nil, apperrors.NotFoundWithID("Sublease", subleaseID)
	}
	return sublease, nil
}

func (s *delegateService) persistSublease(ctx context.Context, sublease *model.Sublease) error {
	if err := s.subleases.Update(ctx, sublease.ID, sublease); err != nil {
		return apperrors.Internal("Failed to persist sublease", err)
	}
	return nil
}
