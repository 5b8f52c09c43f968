package model

import "time"

// Delegate is an operator bound 1:1 to one (property, booking) pair at
// creation. It runs its own fundraising accumulator and its own sublease
// calendar, both independent of the listing-level ones.
type Delegate struct {
	ID         string `json:"id" bson:"_id"`
	PropertyID string `json:"property_id" bson:"property_id" validate:"required,mongodb"`
	BookingID  string `json:"booking_id" bson:"booking_id" validate:"required,mongodb"`
	Operator   string `json:"operator" bson:"operator" validate:"required,min=3,max=64"`

	TotalUnits int64 `json:"total_units" bson:"total_units"`
	UnitPrice  int64 `json:"unit_price" bson:"unit_price"`
	FeeBps     int64 `json:"fee_bps" bson:"fee_bps"`

	SoldUnits      int64  `json:"sold_units" bson:"sold_units"`
	Raised         int64  `json:"raised" bson:"raised"`
	Open           bool   `json:"open" bson:"open"`
	Closed         bool   `json:"closed" bson:"closed"`
	AccRentPerUnit string `json:"acc_rent_per_unit" bson:"acc_rent_per_unit"`
	FeeAccrued     int64  `json:"fee_accrued" bson:"fee_accrued"`

	NextSubleaseSeq int64     `json:"next_sublease_seq" bson:"next_sublease_seq"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
}

// CalendarID is the delegate's own scheduling namespace in the interval
// registry, distinct from the parent property's calendar.
func (d *Delegate) CalendarID() string {
	return "delegate:" + d.ID
}

func (d *Delegate) ShareClassID() string {
	return "agent-" + d.ID
}

const (
	SubleaseActive    = "active"
	SubleaseCompleted = "completed"
	SubleaseCancelled = "cancelled"
)

// Sublease is a short-term sub-booking underneath a delegate's parent
// booking, scheduled on the delegate's calendar.
type Sublease struct {
	ID         string    `json:"id" bson:"_id"`
	DelegateID string    `json:"delegate_id" bson:"delegate_id" validate:"required"`
	Seq        int64     `json:"seq" bson:"seq"`
	Tenant     string    `json:"tenant" bson:"tenant" validate:"required,min=3,max=64"`
	StartTime  time.Time `json:"start_time" bson:"start_time" validate:"required"`
	EndTime    time.Time `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	Units      int64     `json:"units" bson:"units" validate:"required,min=1"`

	GrossRent        int64  `json:"gross_rent" bson:"gross_rent"`
	PaidRent         int64  `json:"paid_rent" bson:"paid_rent"`
	Status           string `json:"status" bson:"status" validate:"required,oneof=active completed cancelled"`
	CalendarReleased bool   `json:"calendar_released" bson:"calendar_released"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
