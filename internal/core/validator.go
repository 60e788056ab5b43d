package core

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"

	"autopost/internal/types"
)

// hhmmPattern matches a 24-hour "HH:MM" time of day.
var hhmmPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ValidationError describes one failed field.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult collects field errors.
type ValidationResult struct {
	Errors []ValidationError `json:"errors,omitempty"`
}

// IsValid reports whether no field failed.
func (r ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator wraps go-playground/validator with the schedule rules:
//
//   - hhmm:     24-hour "HH:MM" time of day
//   - iana_tz:  resolvable IANA zone identifier
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator and registers the custom tags.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.RegisterValidation("hhmm", validateHHMM); err != nil {
		logger.Error("failed to register hhmm validator", "error", err)
	}
	if err := v.RegisterValidation("iana_tz", validateIANAZone); err != nil {
		logger.Error("failed to register iana_tz validator", "error", err)
	}

	return &Validator{validate: v, logger: logger}
}

// ValidateStruct validates s and returns an *types.AppError whose code is
// derived from the first failing tag. All field errors are listed under
// details["validation_errors"].
func (v *Validator) ValidateStruct(s any) error {
	result := v.collect(s)
	if result.IsValid() {
		return nil
	}

	first := result.Errors[0]
	return types.NewAppErrorWithDetails(
		types.ErrorCode(first.Code),
		first.Message,
		nil,
		map[string]any{"validation_errors": result.Errors},
	)
}

func (v *Validator) collect(s any) ValidationResult {
	err := v.validate.Struct(s)
	if err == nil {
		return ValidationResult{}
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		v.logger.Error("unexpected validation error", "error", err)
		return ValidationResult{Errors: []ValidationError{{
			Code:    string(types.ErrCodeValidationInvalidBody),
			Message: err.Error(),
		}}}
	}

	var result ValidationResult
	for _, fe := range fieldErrs {
		result.Errors = append(result.Errors, ValidationError{
			Field:   fe.Field(),
			Code:    tagToErrorCode(fe.Tag()),
			Message: fieldMessage(fe),
		})
	}
	return result
}

// tagToErrorCode maps a validator tag to the error code clients see.
func tagToErrorCode(tag string) string {
	switch tag {
	case "required", "required_if":
		return string(types.ErrCodeValidationMissingField)
	case "hhmm":
		return string(types.ErrCodeValidationInvalidTimeOfDay)
	case "iana_tz":
		return string(types.ErrCodeValidationInvalidTimezone)
	case "oneof", "gt", "min", "max", "excluded_unless":
		return string(types.ErrCodeValidationInvalidSchedule)
	default:
		return string(types.ErrCodeValidationInvalidBody)
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", fe.Field())
	case "hhmm":
		return fmt.Sprintf("%s must be a 24-hour HH:MM time", fe.Field())
	case "iana_tz":
		return fmt.Sprintf("%s must be an IANA time zone identifier", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

func validateHHMM(fl validator.FieldLevel) bool {
	return hhmmPattern.MatchString(fl.Field().String())
}

// validateIANAZone accepts identifiers time.LoadLocation resolves, except
// "Local" which depends on the host. Empty values are left to required.
func validateIANAZone(fl validator.FieldLevel) bool {
	zone := fl.Field().String()
	if zone == "" {
		return true
	}
	if zone == "Local" {
		return false
	}
	_, err := time.LoadLocation(zone)
	return err == nil
}
