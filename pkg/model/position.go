package model

import "time"

// Position is one holder's stake in one accumulator scope. Scope is either
// "booking:<id>" or "delegate:<id>"; the same pro-rata arithmetic serves
// both. Debt is the settlement-token baseline subtracted from
// floor(units*acc/1e18) when computing the claimable amount.
type Position struct {
	ID        string    `json:"id" bson:"_id"`
	Scope     string    `json:"scope" bson:"scope" validate:"required"`
	Holder    string    `json:"holder" bson:"holder" validate:"required,min=3,max=64"`
	Units     int64     `json:"units" bson:"units"`
	Debt      int64     `json:"debt" bson:"debt"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

func BookingScope(bookingID string) string { return "booking:" + bookingID }
func DelegateScope(delegateID string) string { return "delegate:" + delegateID }
