package validator

import (
	"errors"
	"fmt"
	"strings"

	"stayledger/pkg/logger"
	"stayledger/pkg/model"

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

// PayRentRequest carries one rent installment. Caller is the paying account;
// it must match the booking's tenant.
type PayRentRequest struct {
	Caller string `json:"caller" validate:"required,min=3,max=64"`
	Amount int64  `json:"amount" validate:"required,gt=0"`
}

type DepositSplitRequest struct {
	Caller    string `json:"caller" validate:"required,min=3,max=64"`
	TenantBps int64  `json:"tenant_bps" validate:"min=0,max=10000"`
}

type TokeniseRequest struct {
	Caller     string `json:"caller" validate:"required,min=3,max=64"`
	TotalUnits int64  `json:"total_units" validate:"required,gt=0"`
	UnitPrice  int64  `json:"unit_price" validate:"required,gt=0"`
	FeeBps     int64  `json:"fee_bps" validate:"min=0,max=10000"`
}

type InvestRequest struct {
	Caller string `json:"caller" validate:"required,min=3,max=64"`
	Units  int64  `json:"units" validate:"required,gt=0"`
}

type CallerRequest struct {
	Caller string `json:"caller" validate:"required,min=3,max=64"`
}

type AssignDelegateRequest struct {
	Caller   string `json:"caller" validate:"required,min=3,max=64"`
	Operator string `json:"operator" validate:"required,min=3,max=64"`
}

type ListingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewListingValidator(log *logger.Logger) *ListingValidator {
	return &ListingValidator{
		validate: validator.New(),
		logger:   log,
	}
}

func (lv *ListingValidator) ValidateProperty(property *model.Property) error {
	return lv.run(property)
}

func (lv *ListingValidator) ValidateBookingRequest(req *model.BookingRequest) error {
	return lv.run(req)
}

func (lv *ListingValidator) ValidateRequest(req any) error {
	return lv.run(req)
}

func (lv *ListingValidator) run(req any) error {
	err := lv.validate.Struct(req)
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
	case "mongodb":
		return "must be a valid object ID"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
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
