package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

// ResetCode is a single-use password-reset passcode. Only a digest of the
// six-digit code is persisted; the plaintext goes out by email.
type ResetCode struct {
	ID         int64
	UserID     int64
	CodeDigest string
	ExpiresAt  time.Time
}

// NewResetCode returns a random six-digit passcode.
func NewResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate passcode: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// DigestResetCode hashes a passcode for storage and lookup. The digest is
// deterministic so reset requests can locate the row by code alone.
func DigestResetCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
