package errors

import "errors"

var (
	ErrCalendarNotFound = errors.New("calendar not found")

	ErrCalendarExists = errors.New("calendar already exists")

	ErrReservationNotFound = errors.New("no active reservation matches the requested interval")

	ErrHolderMismatch = errors.New("reservation is owned by a different holder")

	ErrCapacityExceeded = errors.New("reservation would exceed calendar capacity")

	ErrIntervalTaken = errors.New("exact interval already reserved by this holder")

	ErrInvalidInterval = errors.New("end time must be after start time")
)
