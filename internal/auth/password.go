package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const defaultBcryptCost = 12

// PasswordManager hashes and verifies the single operator account's
// password (§6.3: provisioned from config/env, not a user table).
// Grounded on internal/auth/password.go's PasswordManager, trimmed to the
// single-account case this relay needs.
type PasswordManager struct {
	bcryptCost int
	minLength  int
}

// NewPasswordManager constructs a PasswordManager enforcing minLength.
func NewPasswordManager(minLength int) *PasswordManager {
	if minLength <= 0 {
		minLength = 8
	}
	return &PasswordManager{bcryptCost: defaultBcryptCost, minLength: minLength}
}

// Hash bcrypt-hashes a password for storage in config/Vault.
func (p *PasswordManager) Hash(password string) (string, error) {
	if err := p.ValidateStrength(password); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), p.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether password matches the stored bcrypt hash.
func (p *PasswordManager) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidateStrength enforces the configured minimum password length.
func (p *PasswordManager) ValidateStrength(password string) error {
	if len(password) < p.minLength {
		return fmt.Errorf("auth: password must be at least %d characters", p.minLength)
	}
	return nil
}
