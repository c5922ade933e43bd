package validation

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
)

// Validator checks a single form value. Validators only run on non-empty
// values; use Required for presence.
type Validator func(value string) error

// ErrRequired is returned for missing required values.
var ErrRequired = errors.New("this field is required")

var (
	phonePattern      = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	nationalIDPattern = regexp.MustCompile(`^[A-Za-z0-9]{6,20}$`)
)

// Required rejects empty or whitespace-only values.
func Required(value string) error {
	if strings.TrimSpace(value) == "" {
		return ErrRequired
	}
	return nil
}

// Email accepts a bare address such as jane@example.com.
func Email(value string) error {
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return errors.New("enter a valid email address")
	}
	return nil
}

// Phone accepts 7 to 15 digits with an optional leading +. Spaces and
// dashes are ignored.
func Phone(value string) error {
	cleaned := strings.NewReplacer(" ", "", "-", "").Replace(value)
	if !phonePattern.MatchString(cleaned) {
		return errors.New("enter a valid phone number")
	}
	return nil
}

// NationalID accepts 6 to 20 letters and digits.
func NationalID(value string) error {
	if !nationalIDPattern.MatchString(value) {
		return errors.New("enter a valid national ID number")
	}
	return nil
}

// PositiveNumber accepts numbers greater than zero.
func PositiveNumber(value string) error {
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return errors.New("enter a number")
	}
	if n <= 0 {
		return errors.New("must be greater than zero")
	}
	return nil
}

// NumberInRange returns a validator accepting numbers in [lo, hi].
func NumberInRange(lo, hi float64) Validator {
	return func(value string) error {
		n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return errors.New("enter a number")
		}
		if n < lo || n > hi {
			return fmt.Errorf("must be between %g and %g", lo, hi)
		}
		return nil
	}
}

// IntegerInRange returns a validator accepting whole numbers in [lo, hi].
func IntegerInRange(lo, hi int) Validator {
	return func(value string) error {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return errors.New("enter a whole number")
		}
		if n < lo || n > hi {
			return fmt.Errorf("must be between %d and %d", lo, hi)
		}
		return nil
	}
}

// OneOf returns a validator accepting only the listed options.
func OneOf(options ...string) Validator {
	return func(value string) error {
		for _, option := range options {
			if value == option {
				return nil
			}
		}
		return fmt.Errorf("must be one of %s", strings.Join(options, ", "))
	}
}

// Digits returns a validator accepting exactly n digits, e.g. an OTP code.
func Digits(n int) Validator {
	pattern := regexp.MustCompile(fmt.Sprintf(`^[0-9]{%d}$`, n))
	return func(value string) error {
		if !pattern.MatchString(value) {
			return fmt.Errorf("enter the %d-digit code", n)
		}
		return nil
	}
}

// MinLength returns a validator requiring at least n characters.
func MinLength(n int) Validator {
	return func(value string) error {
		if len([]rune(value)) < n {
			return fmt.Errorf("must be at least %d characters", n)
		}
		return nil
	}
}

// Checked accepts only "true", for consent checkboxes.
func Checked(value string) error {
	if accepted, err := strconv.ParseBool(value); err != nil || !accepted {
		return errors.New("must be accepted")
	}
	return nil
}
