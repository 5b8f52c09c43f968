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

// ConfigureRequest fixes the fundraising terms. The same three values must
// later appear verbatim in the approved tokenisation proposal before
// fundraising may open.
type ConfigureRequest struct {
	Caller     string `json:"caller" validate:"required,min=3,max=64"`
	TotalUnits int64  `json:"total_units" validate:"required,gt=0"`
	UnitPrice  int64  `json:"unit_price" validate:"required,gt=0"`
	FeeBps     int64  `json:"fee_bps" validate:"min=0,max=10000"`
}

type InvestRequest struct {
	Caller string `json:"caller" validate:"required,min=3,max=64"`
	Units  int64  `json:"units" validate:"required,gt=0"`
}

type CollectRequest struct {
	Caller string `json:"caller" validate:"required,min=3,max=64"`
	Amount int64  `json:"amount" validate:"required,gt=0"`
}

type CallerRequest struct {
	Caller string `json:"caller" validate:"required,min=3,max=64"`
}

type SubleaseRequest struct {
	Caller    string    `json:"caller" validate:"required,min=3,max=64"`
	Tenant    string    `json:"tenant" validate:"required,min=3,max=64"`
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	Units     int64     `json:"units" validate:"required,gt=0"`
	GrossRent int64     `json:"gross_rent" validate:"required,gt=0"`
}

type DelegateValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewDelegateValidator(log *logger.Logger) *DelegateValidator {
	return &DelegateValidator{
		validate: validator.New(),
		logger:   log,
	}
}

func (dv *DelegateValidator) ValidateRequest(req any) error {
	err := dv.validate.Struct(req)
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
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gtfield":
		return fmt.Sprintf("must be after %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
