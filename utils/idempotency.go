package utils

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// IdempotencyKeyLength is the length of a well-formed key in hex characters.
const IdempotencyKeyLength = 64

var idempotencyKeyPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// DeriveIdempotencyKey hashes the canonical booking payload into a fixed-length
// opaque token. The same (business, slot, customer) tuple always derives the
// same key, so an identical resubmission dedupes against the original booking;
// a change to any field derives a fresh key.
func DeriveIdempotencyKey(businessID, slotID, customerID uuid.UUID) string {
	payload := fmt.Sprintf("booking:%s:%s:%s", businessID, slotID, customerID)
	sum := blake2b.Sum256([]byte(payload))
	return fmt.Sprintf("%x", sum)
}

// ValidateIdempotencyKey checks that a caller-supplied key is well-formed.
func ValidateIdempotencyKey(key string) error {
	if !idempotencyKeyPattern.MatchString(key) {
		return fmt.Errorf("%w: idempotency key must be %d lowercase hex characters", ErrValidation, IdempotencyKeyLength)
	}
	return nil
}
