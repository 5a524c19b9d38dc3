package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/choreledger/internal/apperr"
)

var ErrIncorrectPIN = errors.New("incorrect PIN")

// ValidatePIN accepts 4 to 8 digits.
func ValidatePIN(pin string) error {
	if len(pin) < 4 || len(pin) > 8 || !isDigits(pin) {
		return apperr.Validation("PIN must be 4 to 8 digits")
	}
	return nil
}

func HashPIN(pin string) (string, error) {
	if err := ValidatePIN(pin); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash pin: %w", err)
	}
	return string(hash), nil
}

// CheckPIN compares pin against a stored hash. An empty hash never matches.
func CheckPIN(hash, pin string) error {
	if hash == "" {
		return ErrIncorrectPIN
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)); err != nil {
		return ErrIncorrectPIN
	}
	return nil
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
