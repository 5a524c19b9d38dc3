package auth

import (
	"errors"
	"testing"

	"github.com/dukerupert/choreledger/internal/apperr"
)

func TestHashAndCheckPIN(t *testing.T) {
	hash, err := HashPIN("1234")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := CheckPIN(hash, "1234"); err != nil {
		t.Errorf("check correct pin: %v", err)
	}
	if err := CheckPIN(hash, "4321"); !errors.Is(err, ErrIncorrectPIN) {
		t.Errorf("err = %v, want ErrIncorrectPIN", err)
	}
	if err := CheckPIN("", "1234"); !errors.Is(err, ErrIncorrectPIN) {
		t.Errorf("empty hash: err = %v, want ErrIncorrectPIN", err)
	}
}

func TestValidatePIN(t *testing.T) {
	for _, pin := range []string{"123", "123456789", "12a4", ""} {
		if err := ValidatePIN(pin); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("ValidatePIN(%q) = %v, want validation error", pin, err)
		}
	}
	for _, pin := range []string{"1234", "12345678"} {
		if err := ValidatePIN(pin); err != nil {
			t.Errorf("ValidatePIN(%q) = %v, want nil", pin, err)
		}
	}
}
