package model

import (
	"fmt"
	"time"
)

const (
	BookingActive    = "active"
	BookingCompleted = "completed"
	BookingCancelled = "cancelled"
	BookingDefaulted = "defaulted"
)

// Booking is one tenant's lease obligation against a property. GrossRent is
// fixed at creation (daily rate times whole days, rounded up); PaidRent only
// ever grows towards it. Status transitions are one-way: active is the only
// non-terminal state.
type Booking struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	PropertyID string    `json:"property_id" bson:"property_id" validate:"required,mongodb"`
	Seq        int64     `json:"seq" bson:"seq" validate:"min=0"`
	Tenant     string    `json:"tenant" bson:"tenant" validate:"required,min=3,max=64"`
	StartTime  time.Time `json:"start_time" bson:"start_time" validate:"required"`
	EndTime    time.Time `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	Units      int64     `json:"units" bson:"units" validate:"required,min=1"`
	PeriodDays int       `json:"period_days" bson:"period_days" validate:"required,min=1,max=365"`

	GrossRent   int64  `json:"gross_rent" bson:"gross_rent"`
	Deposit     int64  `json:"deposit" bson:"deposit"`
	PaidRent    int64  `json:"paid_rent" bson:"paid_rent"`
	ExpectedNet int64  `json:"expected_net" bson:"expected_net"`
	Status      string `json:"status" bson:"status" validate:"required,oneof=active completed cancelled defaulted"`

	// Fractional-ownership state. AccRentPerUnit is the 1e18-scaled
	// cumulative rent-per-unit accumulator, stored as a decimal string
	// because it does not fit int64.
	Tokenised      bool   `json:"tokenised" bson:"tokenised"`
	TotalUnits     int64  `json:"total_units" bson:"total_units"`
	SoldUnits      int64  `json:"sold_units" bson:"sold_units"`
	UnitPrice      int64  `json:"unit_price" bson:"unit_price"`
	InvestorFeeBps int64  `json:"investor_fee_bps" bson:"investor_fee_bps"`
	AccRentPerUnit string `json:"acc_rent_per_unit" bson:"acc_rent_per_unit"`

	LandlordAccrued  int64  `json:"landlord_accrued" bson:"landlord_accrued"`
	DepositReleased  bool   `json:"deposit_released" bson:"deposit_released"`
	CalendarReleased bool   `json:"calendar_released" bson:"calendar_released"`
	DelegateID       string `json:"delegate_id,omitempty" bson:"delegate_id,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

func (b *Booking) RemainingRent() int64 {
	return b.GrossRent - b.PaidRent
}

func (b *Booking) Terminal() bool {
	return b.Status != BookingActive
}

// ShareClassID is the deterministic fractional-token class for this booking,
// so no separate token registry is needed.
func (b *Booking) ShareClassID() string {
	return fmt.Sprintf("%s-%d", b.PropertyID, b.Seq)
}

// SettlementLock is an advisory lock serializing money-moving operations
// against one booking or delegate. A TTL index on expires_at reclaims locks
// abandoned by a crashed holder.
type SettlementLock struct {
	ID        string    `json:"id" bson:"_id"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// BookingRequest is the payload accepted by the book operation; everything
// economic on the Booking itself is computed server-side.
type BookingRequest struct {
	PropertyID string    `json:"property_id" validate:"required"`
	Tenant     string    `json:"tenant" validate:"required,min=3,max=64"`
	StartTime  time.Time `json:"start_time" validate:"required"`
	EndTime    time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	Units      int64     `json:"units" validate:"required,min=1"`
	PeriodDays int       `json:"period_days" validate:"required,min=1,max=365"`
}
