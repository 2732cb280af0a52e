package signal

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	// e164MinLength is the minimum length of an E.164 number (excluding +).
	e164MinLength = 7

	// e164MaxLength is the maximum length of an E.164 number (excluding +).
	e164MaxLength = 15

	// positionOffset is added to character index for user-friendly position.
	positionOffset = 2

	// visibleDigits is how many trailing digits MaskAccount keeps.
	visibleDigits = 4
)

// e164Regex validates the basic E.164 format.
var e164Regex = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// ValidateAccount checks a signal-cli account identifier: an E.164 phone
// number or an ACI UUID.
func ValidateAccount(account string) error {
	if account == "" {
		return fmt.Errorf("account cannot be empty")
	}
	if !strings.HasPrefix(account, "+") {
		if _, err := uuid.Parse(account); err == nil {
			return nil
		}
	}
	return ValidatePhoneNumber(account)
}

// ValidatePhoneNumber validates that a phone number follows E.164 format:
// a '+', a country code not starting with 0, and 7-15 digits in total.
func ValidatePhoneNumber(phoneNumber string) error {
	if phoneNumber == "" {
		return fmt.Errorf("phone number cannot be empty")
	}
	if !strings.HasPrefix(phoneNumber, "+") {
		return fmt.Errorf("phone number must start with '+' (E.164 format required)")
	}
	if !e164Regex.MatchString(phoneNumber) {
		return validatePhoneNumberDetails(phoneNumber)
	}
	return nil
}

// validatePhoneNumberDetails provides detailed validation errors.
func validatePhoneNumberDetails(phoneNumber string) error {
	if len(phoneNumber) == 1 {
		return fmt.Errorf("phone number must include country code and number after '+'")
	}

	for i, r := range phoneNumber[1:] {
		if r < '0' || r > '9' {
			return fmt.Errorf("phone number contains invalid character '%c' at position %d", r, i+positionOffset)
		}
	}

	digitCount := len(phoneNumber) - 1
	if digitCount < e164MinLength {
		return fmt.Errorf("phone number too short: %d digits (minimum %d required)", digitCount, e164MinLength)
	}
	if digitCount > e164MaxLength {
		return fmt.Errorf("phone number too long: %d digits (maximum %d allowed)", digitCount, e164MaxLength)
	}

	if phoneNumber[1] == '0' {
		return fmt.Errorf("country code cannot start with 0")
	}

	return fmt.Errorf("invalid phone number format")
}

// MaskAccount hides all but the last few characters of an account for logs.
func MaskAccount(account string) string {
	if len(account) <= visibleDigits {
		return strings.Repeat("*", len(account))
	}
	keep := account[len(account)-visibleDigits:]
	prefix := ""
	if strings.HasPrefix(account, "+") {
		prefix = "+"
	}
	return prefix + strings.Repeat("*", len(account)-visibleDigits-len(prefix)) + keep
}
