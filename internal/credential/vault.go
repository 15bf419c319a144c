// Package credential hashes and verifies passwords.
package credential

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Vault produces and checks bcrypt password hashes. The cost factor is
// fixed at construction, never caller-supplied.
type Vault struct {
	cost int
}

// NewVault creates a vault with the given bcrypt cost. Costs outside the
// algorithm's supported range fall back to the library default.
func NewVault(cost int) *Vault {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Vault{cost: cost}
}

// Hash produces a self-salting one-way digest of password
func (v *Vault) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), v.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether password matches the stored hash. A mismatch is
// a normal false, never an error; an error means the stored hash itself
// is structurally malformed, which is a fatal integrity problem. The
// comparison is constant-time inside bcrypt.
func (v *Vault) Verify(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("malformed password hash: %w", err)
}
