package validator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"stayledger/pkg/logger"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// CreateCalendarRequest provisions a reservation calendar with a fixed
// capacity. Calendar IDs are namespaced by their owning entity, e.g.
// "property:<id>" or "delegate:<id>".
type CreateCalendarRequest struct {
	ID          string `json:"id" validate:"required,min=3,max=128"`
	CapacitySqm int64  `json:"capacity_sqm" validate:"required,gt=0"`
}

type ReserveRequest struct {
	HolderKind string    `json:"holder_kind" validate:"required,oneof=booking sublease override"`
	HolderID   string    `json:"holder_id" validate:"required,min=1,max=128"`
	StartTime  time.Time `json:"start_time" validate:"required"`
	EndTime    time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	Units      int64     `json:"units" validate:"required,gt=0"`
}

type ReleaseRequest struct {
	HolderKind string    `json:"holder_kind" validate:"required,oneof=booking sublease override"`
	HolderID   string    `json:"holder_id" validate:"required,min=1,max=128"`
	StartTime  time.Time `json:"start_time" validate:"required"`
	EndTime    time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
}

type RegistryValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewRegistryValidator(log *logger.Logger) *RegistryValidator {
	return &RegistryValidator{
		validate: validator.New(),
		logger:   log,
	}
}

func (rv *RegistryValidator) ValidateCreateCalendar(req *CreateCalendarRequest) error {
	return rv.run(req)
}

func (rv *RegistryValidator) ValidateReserve(req *ReserveRequest) error {
	return rv.run(req)
}

func (rv *RegistryValidator) ValidateRelease(req *ReleaseRequest) error {
	return rv.run(req)
}

func (rv *RegistryValidator) run(req any) error {
	err := rv.validate.Struct(req)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return fmt.Errorf("invalid validation input: %w", err)
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	var out ValidationErrors
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Message: messageForTag(fe),
		})
	}
	return out
}

func messageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gtfield":
		return fmt.Sprintf("must be after %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
