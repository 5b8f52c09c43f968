package model

import (
	"time"
)

type Property struct {
	ID              string        `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Owner           string        `json:"owner" bson:"owner" validate:"required,min=3,max=64"`
	CapacitySqm     int64         `json:"capacity_sqm" bson:"capacity_sqm" validate:"required,min=1,max=100000"`
	SettlementToken string        `json:"settlement_token" bson:"settlement_token" validate:"required,min=2,max=64"`
	DailyRate       int64         `json:"daily_rate" bson:"daily_rate" validate:"required,min=1"`
	DepositAmount   int64         `json:"deposit_amount" bson:"deposit_amount" validate:"min=0"`
	MinNotice       time.Duration `json:"min_notice" bson:"min_notice" validate:"min=0"`
	MaxWindow       time.Duration `json:"max_window" bson:"max_window" validate:"min=0"`
	MetadataURI     string        `json:"metadata_uri,omitempty" bson:"metadata_uri,omitempty" validate:"omitempty,max=512"`
	NextBookingSeq  int64         `json:"next_booking_seq" bson:"next_booking_seq"`
	Active          bool          `json:"active" bson:"active"`
	CreatedAt       time.Time     `json:"created_at" bson:"created_at"`
}

type PropertyUpdate struct {
	DailyRate     *int64         `json:"daily_rate,omitempty" validate:"omitempty,min=1"`
	DepositAmount *int64         `json:"deposit_amount,omitempty" validate:"omitempty,min=0"`
	MinNotice     *time.Duration `json:"min_notice,omitempty" validate:"omitempty,min=0"`
	MaxWindow     *time.Duration `json:"max_window,omitempty" validate:"omitempty,min=0"`
	MetadataURI   *string        `json:"metadata_uri,omitempty" validate:"omitempty,max=512"`
	Active        *bool          `json:"active,omitempty"`
}
