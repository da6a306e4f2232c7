package validator

import (
	"regexp"
	"slices"
)

// Regular expressions shared by the data validators.
var (
	EmailRX           = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")
	PasswordNumberRX  = regexp.MustCompile(`[0-9]`)
	PasswordUpperRX   = regexp.MustCompile(`[A-Z]`)
	PasswordLowerRX   = regexp.MustCompile(`[a-z]`)
	PasswordSpecialRX = regexp.MustCompile(`[^a-zA-Z0-9]`)
	DateRX            = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Validator struct to hold validation errors.
type Validator struct {
	Errors map[string]string
}

// New creates a new Validator instance.
func New() *Validator {
	return &Validator{
		Errors: make(map[string]string),
	}
}

// IsValid reports whether no validation errors were recorded.
func (v *Validator) IsValid() bool {
	return len(v.Errors) == 0
}

// AddError adds a new error message for a given key if it doesn't already exist.
func (v *Validator) AddError(key string, message string) {
	_, exists := v.Errors[key]
	if !exists {
		v.Errors[key] = message
	}
}

// Check adds an error message for a key if the condition is false.
func (v *Validator) Check(ok bool, key string, message string) {
	if !ok {
		v.AddError(key, message)
	}
}

// Matches checks if the value matches the given regular expression.
func (v *Validator) Matches(value string, rx *regexp.Regexp) bool {
	return rx.MatchString(value)
}

// Permitted checks if the value is within the permitted values.
func Permitted[T comparable](value T, permittedValues ...T) bool {
	return slices.Contains(permittedValues, value)
}

// Unique reports whether every value in the slice appears once.
func Unique[T comparable](values []T) bool {
	seen := make(map[T]struct{}, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			return false
		}
		seen[value] = struct{}{}
	}
	return true
}
