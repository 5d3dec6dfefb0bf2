package services

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor used for new password hashes.
const DefaultBcryptCost = 12

// PasswordHasher hashes and verifies passwords with bcrypt.
type PasswordHasher struct {
	cost int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewPasswordHasher creates a PasswordHasher with the given bcrypt cost.
// Out of range costs fall back to DefaultBcryptCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &PasswordHasher{cost: cost}
}

// Cost returns the configured work factor.
func (h *PasswordHasher) Cost() int { return h.cost }

// maxBcryptInput is the number of bytes bcrypt reads from a password.
const maxBcryptInput = 72

// bcryptInput returns plain unchanged when bcrypt can take it whole.
// Longer passwords are reduced to base64(SHA-256) so no byte is ignored.
func bcryptInput(plain string) []byte {
	if len(plain) <= maxBcryptInput {
		return []byte(plain)
	}
	sum := sha256.Sum256([]byte(plain))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

// Hash returns the bcrypt hash of plain. Passwords of any byte length are
// accepted.
func (h *PasswordHasher) Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(bcryptInput(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plain matches hash.
func (h *PasswordHasher) Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(plain)) == nil
}

// SimulateVerify spends the same work as Verify against a throwaway hash.
// Used when no user matched so both login failures take equal time.
func (h *PasswordHasher) SimulateVerify(plain string) {
	h.dummyOnce.Do(func() {
		h.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("hamhub-dummy-password"), h.cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, bcryptInput(plain))
}
