// Package auth gates the clinician dashboard: a bcrypt-checked PIN, signed
// session tokens and a per-client attempt limiter.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PINManager verifies the clinician PIN against a bcrypt hash
type PINManager struct {
	hash []byte
	cost int
}

// NewPINManager uses pinHash when set, otherwise hashes the plain pin
func NewPINManager(pin, pinHash string) (*PINManager, error) {
	pm := &PINManager{cost: bcrypt.DefaultCost}
	if pinHash != "" {
		if _, err := bcrypt.Cost([]byte(pinHash)); err != nil {
			return nil, fmt.Errorf("invalid admin pin hash: %w", err)
		}
		pm.hash = []byte(pinHash)
		return pm, nil
	}

	hashed, err := HashPIN(pin)
	if err != nil {
		return nil, err
	}
	pm.hash = []byte(hashed)
	return pm, nil
}

// HashPIN hashes a PIN using bcrypt
func HashPIN(pin string) (string, error) {
	if strings.TrimSpace(pin) == "" {
		return "", fmt.Errorf("pin must not be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash pin: %w", err)
	}
	return string(hashedBytes), nil
}

// Verify reports whether pin matches
func (pm *PINManager) Verify(pin string) (bool, error) {
	err := bcrypt.CompareHashAndPassword(pm.hash, []byte(pin))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("failed to verify pin: %w", err)
	}
	return true, nil
}
