// Package platform models the collaborators the core engine consumes but
// does not own: the orchestrator directory (fees, treasury, access passes),
// the escrow vault (settlement-token transfers) and the fractional-share
// token. The reference implementations are Mongo collections that join the
// caller's session, so a failed transfer aborts the caller's whole
// transaction.
package platform

import (
	"context"
	"errors"

	"stayledger/pkg/model"
)

var (
	ErrInsufficientFunds = errors.New("insufficient settlement balance")
	ErrUnknownAccount    = errors.New("unknown settlement account")
	ErrConfigMissing     = errors.New("platform configuration not found")
)

// Directory resolves the orchestrator-owned parameters the core needs on
// every money-moving operation.
type Directory interface {
	FeePolicy(ctx context.Context) (*model.PlatformConfig, error)
	HasAccessPass(ctx context.Context, account string) (bool, error)
}

// Vault is the settlement transfer primitive: all-or-nothing moves of
// settlement-token minor units between accounts. A zero-amount transfer is a
// successful no-op.
type Vault interface {
	Transfer(ctx context.Context, from, to string, amount int64) error
	Balance(ctx context.Context, account string) (int64, error)
}

// ShareToken mints and reports fractional units. LockTransfers is advisory:
// callers treat its failure as non-fatal (fundraising close must not block on
// it).
type ShareToken interface {
	Mint(ctx context.Context, classID, holder string, units int64) error
	BalanceOf(ctx context.Context, classID, holder string) (int64, error)
	LockTransfers(ctx context.Context, classID string) error
}
