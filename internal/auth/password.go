package auth

import (
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/epicevents/epicevents/internal/shared"
)

// HashPassword derives a one-way bcrypt hash for storage.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext candidate against a stored hash.
// bcrypt's comparison is constant time.
func VerifyPassword(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// CheckPasswordStrength enforces the minimum password policy: at least
// eight characters with an upper case letter, a lower case letter and a
// digit.
func CheckPasswordStrength(plaintext string) error {
	if len(plaintext) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", shared.ErrValidation)
	}
	var upper, lower, digit bool
	for _, r := range plaintext {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return fmt.Errorf("%w: password must mix upper case, lower case and digits", shared.ErrValidation)
	}
	return nil
}
