package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

// BoostDurations lists the boost windows, in hours, a seller may buy.
var BoostDurations = []int{24, 72, 168}

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func registerCustomValidations() {
	_ = validate.RegisterValidation("boost_hours", func(fl validator.FieldLevel) bool {
		return IsBoostDuration(int(fl.Field().Int()))
	})

	_ = validate.RegisterValidation("nonzero", func(fl validator.FieldLevel) bool {
		return fl.Field().Int() != 0
	})

	_ = validate.RegisterValidation("token_tx_type", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "", "purchase", "usage", "boost", "trial_bonus", "admin_credit", "admin_debit":
			return true
		}
		return false
	})

	_ = validate.RegisterValidation("token_tx_status", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "", "pending", "completed", "failed":
			return true
		}
		return false
	})
}

// IsBoostDuration reports whether hours is one of BoostDurations.
func IsBoostDuration(hours int) bool {
	for _, d := range BoostDurations {
		if d == hours {
			return true
		}
	}
	return false
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}

	errors := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "min":
			errors[field] = "Value is too short (min: " + fe.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + fe.Param() + ")"
		case "gte":
			errors[field] = "Value must be at least " + fe.Param()
		case "lte":
			errors[field] = "Value must be at most " + fe.Param()
		case "oneof":
			errors[field] = "Value must be one of: " + fe.Param()
		case "boost_hours":
			errors[field] = "Invalid boost duration. Must be: 24, 72, or 168"
		case "nonzero":
			errors[field] = "Value must not be zero"
		case "token_tx_type":
			errors[field] = "Unknown transaction type"
		case "token_tx_status":
			errors[field] = "Unknown transaction status"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
