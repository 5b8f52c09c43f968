package model

import "time"

// Balance is one account's settlement-token balance in the escrow vault.
// Amounts are minor units of the settlement token (6 decimals).
type Balance struct {
	Account   string    `json:"account" bson:"_id"`
	Amount    int64     `json:"amount" bson:"amount"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// ShareHolding is one holder's fractional-unit balance in one share class.
type ShareHolding struct {
	ID      string `json:"id" bson:"_id"`
	ClassID string `json:"class_id" bson:"class_id"`
	Holder  string `json:"holder" bson:"holder"`
	Units   int64  `json:"units" bson:"units"`
}

// ShareClass tracks the transfer-lock flag flipped (best effort) when
// fundraising closes.
type ShareClass struct {
	ID       string    `json:"id" bson:"_id"`
	Locked   bool      `json:"locked" bson:"locked"`
	LockedAt time.Time `json:"locked_at,omitempty" bson:"locked_at,omitempty"`
}

// PlatformConfig is the orchestrator-owned fee and account configuration the
// core resolves on every payment.
type PlatformConfig struct {
	ID              string `json:"id" bson:"_id"`
	TenantFeeBps    int64  `json:"tenant_fee_bps" bson:"tenant_fee_bps"`
	LandlordFeeBps  int64  `json:"landlord_fee_bps" bson:"landlord_fee_bps"`
	TreasuryAccount string `json:"treasury_account" bson:"treasury_account"`
	PlatformAccount string `json:"platform_account" bson:"platform_account"`
	EscrowAccount   string `json:"escrow_account" bson:"escrow_account"`
}

// AccessPass marks an account as allowed to book.
type AccessPass struct {
	Account   string    `json:"account" bson:"_id"`
	IssuedAt  time.Time `json:"issued_at" bson:"issued_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
}
