// Package events defines the state-transition events published for off-chain
// indexing and the publisher abstraction the services emit them through.
package events

import (
	"context"
	"time"
)

// Event types carried in the Kafka event-type header.
const (
	TypeReservationReserved = "reservation.reserved"
	TypeReservationReleased = "reservation.released"

	TypeBookingCreated   = "booking.created"
	TypeRentPaid         = "booking.rent_paid"
	TypeBookingCompleted = "booking.completed"
	TypeBookingCancelled = "booking.cancelled"
	TypeBookingDefaulted = "booking.defaulted"

	TypeDepositSplitProposed  = "deposit_split.proposed"
	TypeDepositSplitConfirmed = "deposit_split.confirmed"

	TypeTokenisationProposed = "tokenisation.proposed"
	TypeTokenisationApproved = "tokenisation.approved"
	TypeBookingTokenised     = "booking.tokenised"

	TypeFundraisingOpened = "fundraising.opened"
	TypeFundraisingClosed = "fundraising.closed"
	TypeInvestment        = "investment.made"
	TypeRentClaimed       = "rent.claimed"
	TypeRentCollected     = "rent.collected"
	TypeFeesWithdrawn     = "fees.withdrawn"
	TypeIncomeWithdrawn   = "income.withdrawn"

	TypeSubleaseCreated   = "sublease.created"
	TypeSubleaseCompleted = "sublease.completed"
	TypeSubleaseCancelled = "sublease.cancelled"
)

// ReservationEvent carries both the raw requested range and the
// day-normalized range so day-granularity indexers need not re-derive it.
type ReservationEvent struct {
	CalendarID   string    `json:"calendar_id"`
	HolderKind   string    `json:"holder_kind"`
	HolderID     string    `json:"holder_id"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	StartDay     int64     `json:"start_day"`
	EndDay       int64     `json:"end_day"`
	Units        int64     `json:"units"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type BookingEvent struct {
	BookingID  string    `json:"booking_id"`
	PropertyID string    `json:"property_id"`
	Tenant     string    `json:"tenant,omitempty"`
	Amount     int64     `json:"amount,omitempty"`
	Status     string    `json:"status,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type MoneyEvent struct {
	Scope      string    `json:"scope"`
	Account    string    `json:"account"`
	Amount     int64     `json:"amount"`
	Units      int64     `json:"units,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type ProposalEvent struct {
	BookingID  string    `json:"booking_id"`
	ProposalID string    `json:"proposal_id"`
	TenantBps  int64     `json:"tenant_bps,omitempty"`
	TotalUnits int64     `json:"total_units,omitempty"`
	UnitPrice  int64     `json:"unit_price,omitempty"`
	FeeBps     int64     `json:"fee_bps,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type SubleaseEvent struct {
	SubleaseID string    `json:"sublease_id"`
	DelegateID string    `json:"delegate_id"`
	Tenant     string    `json:"tenant,omitempty"`
	Status     string    `json:"status,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher emits one event per committed state transition. Publishing is
// advisory with respect to the transition itself: a broker failure is logged
// by the caller and never rolls back the transaction that produced the event.
type Publisher interface {
	Publish(ctx context.Context, eventType string, key string, payload any) error
	Close() error
}

// Nop discards all events; used in tests and broker-less deployments.
type Nop struct{}

func (Nop) Publish(context.Context, string, string, any) error { return nil }
func (Nop) Close() error                                       { return nil }
