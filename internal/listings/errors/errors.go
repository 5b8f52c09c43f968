package errors

import "errors"

var (
	ErrPropertyNotFound = errors.New("property not found")

	ErrBookingNotFound = errors.New("booking not found")

	ErrProposalNotFound = errors.New("proposal not found")

	ErrPositionNotFound = errors.New("position not found")

	ErrInvalidID = errors.New("invalid ID format")

	// ErrPaymentTooLarge rejects a payment exceeding the remaining rent or
	// the per-period installment cap.
	ErrPaymentTooLarge = errors.New("payment exceeds allowed amount")

	// ErrExceedsSupply rejects a purchase beyond the fundraising cap.
	ErrExceedsSupply = errors.New("purchase exceeds remaining unit supply")

	ErrNothingToClaim = errors.New("nothing to claim")

	// ErrDepositHandled guards the deposit against double settlement.
	ErrDepositHandled = errors.New("deposit handled")

	ErrProposalPending = errors.New("a proposal is already pending for this booking")
)
