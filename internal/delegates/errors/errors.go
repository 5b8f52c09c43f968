package errors

import "errors"

var (
	ErrDelegateNotFound = errors.New("delegate not found")

	ErrSubleaseNotFound = errors.New("sublease not found")

	ErrInvalidID = errors.New("invalid ID format")

	// ErrFundraisingClosed rejects configuration or purchases after close.
	ErrFundraisingClosed = errors.New("fundraising is closed")

	ErrFundraisingNotOpen = errors.New("fundraising is not open")

	// ErrTermsMismatch rejects opening fundraising on terms that differ from
	// the approved proposal.
	ErrTermsMismatch = errors.New("fundraising terms do not match the approved proposal")
)
