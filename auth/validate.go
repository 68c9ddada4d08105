package auth

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Registration limits.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 64
	MinPasswordLength = 8
	MaxPasswordLength = 1024
)

// NormalizeUsername trims surrounding whitespace. Usernames are otherwise
// compared exactly.
func NormalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

func validateUsername(username string) error {
	if !utf8.ValidString(username) {
		return validationErrorf("username", "contains invalid UTF-8")
	}
	if utf8.RuneCountInString(username) < MinUsernameLength {
		return validationErrorf("username", "must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return validationErrorf("username", "exceeds maximum length of %d bytes", MaxUsernameLength)
	}
	for _, r := range username {
		if unicode.IsControl(r) {
			return validationErrorf("username", "contains control character")
		}
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return validationErrorf("password", "must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return validationErrorf("password", "exceeds maximum length of %d bytes", MaxPasswordLength)
	}
	return nil
}

// ValidateRegistration checks registration input before any store access:
// username and password rules plus a matching confirmation.
func ValidateRegistration(username, password, confirm string) error {
	if err := validateUsername(NormalizeUsername(username)); err != nil {
		return err
	}
	if err := validatePassword(password); err != nil {
		return err
	}
	if password != confirm {
		return validationErrorf("confirm", "passwords do not match")
	}
	return nil
}
