package model

import "time"

// DepositSplitProposal is the landlord's offer to return TenantBps of the
// escrowed deposit to the tenant. At most one live proposal exists per
// booking; the platform consumes it on confirm, and default handling freezes
// it instead.
type DepositSplitProposal struct {
	ID        string    `json:"id" bson:"_id"`
	BookingID string    `json:"booking_id" bson:"booking_id" validate:"required,mongodb"`
	Proposer  string    `json:"proposer" bson:"proposer" validate:"required,min=3,max=64"`
	TenantBps int64     `json:"tenant_bps" bson:"tenant_bps" validate:"min=0,max=10000"`
	Frozen    bool      `json:"frozen" bson:"frozen"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// TokenisationProposal carries a delegate's fundraising terms for one
// booking. The listing side approves it; the delegate may only open
// fundraising on terms that match the approved proposal exactly.
type TokenisationProposal struct {
	ID         string    `json:"id" bson:"_id"`
	BookingID  string    `json:"booking_id" bson:"booking_id" validate:"required,mongodb"`
	DelegateID string    `json:"delegate_id" bson:"delegate_id" validate:"required"`
	TotalUnits int64     `json:"total_units" bson:"total_units" validate:"required,min=1"`
	UnitPrice  int64     `json:"unit_price" bson:"unit_price" validate:"required,min=1"`
	FeeBps     int64     `json:"fee_bps" bson:"fee_bps" validate:"min=0,max=10000"`
	Approved   bool      `json:"approved" bson:"approved"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

func (p *TokenisationProposal) Matches(totalUnits, unitPrice, feeBps int64) bool {
	return p.TotalUnits == totalUnits && p.UnitPrice == unitPrice && p.FeeBps == feeBps
}
