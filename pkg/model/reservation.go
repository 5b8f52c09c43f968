package model

import "time"

const (
	HolderBooking  = "booking"
	HolderSublease = "sublease"
	HolderOverride = "override"
)

// Holder identifies which record occupies a calendar slot. The binding is
// written once at reserve time and checked on release, so a booking can never
// free a reservation it does not own.
type Holder struct {
	Kind string `json:"kind" bson:"kind" validate:"required,oneof=booking sublease override"`
	ID   string `json:"id" bson:"id" validate:"required,min=1,max=64"`
}

// Calendar is one scheduling namespace with its own capacity: every property
// has one for its bookings, and every delegate gets one for its subleases
// (capacity = the parent booking's declared units).
type Calendar struct {
	ID          string    `json:"id" bson:"_id" validate:"required,min=3,max=80"`
	CapacitySqm int64     `json:"capacity_sqm" bson:"capacity_sqm" validate:"required,min=1"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

// Reservation occupies the exact interval [StartTime, EndTime) on one
// calendar with a declared number of area units. Released reservations stay
// on record with Active=false; only active ones count against capacity.
type Reservation struct {
	ID         string     `json:"id" bson:"_id"`
	CalendarID string     `json:"calendar_id" bson:"calendar_id" validate:"required"`
	Holder     Holder     `json:"holder" bson:"holder" validate:"required"`
	StartTime  time.Time  `json:"start_time" bson:"start_time" validate:"required"`
	EndTime    time.Time  `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	Units      int64      `json:"units" bson:"units" validate:"required,min=1"`
	Active     bool       `json:"active" bson:"active"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
	ReleasedAt *time.Time `json:"released_at,omitempty" bson:"released_at,omitempty"`
}

// CalendarLock is an advisory lock serializing all mutations of one calendar.
// Reserve/release are the only write paths, and both take this lock first.
type CalendarLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
