package utils

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveIdempotencyKeyIsDeterministic(t *testing.T) {
	businessID := uuid.New()
	slotID := uuid.New()
	customerID := uuid.New()

	first := DeriveIdempotencyKey(businessID, slotID, customerID)
	second := DeriveIdempotencyKey(businessID, slotID, customerID)

	assert.Equal(t, first, second, "the same payload must derive the same key")
	assert.Len(t, first, IdempotencyKeyLength)
	require.NoError(t, ValidateIdempotencyKey(first), "a derived key is always well-formed")
}

func TestDeriveIdempotencyKeyIsFieldSensitive(t *testing.T) {
	businessID := uuid.New()
	slotID := uuid.New()
	customerID := uuid.New()

	base := DeriveIdempotencyKey(businessID, slotID, customerID)

	assert.NotEqual(t, base, DeriveIdempotencyKey(uuid.New(), slotID, customerID))
	assert.NotEqual(t, base, DeriveIdempotencyKey(businessID, uuid.New(), customerID))
	assert.NotEqual(t, base, DeriveIdempotencyKey(businessID, slotID, uuid.New()))
}

func TestValidateIdempotencyKey(t *testing.T) {
	valid := DeriveIdempotencyKey(uuid.New(), uuid.New(), uuid.New())

	cases := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"derived key", valid, false},
		{"empty", "", true},
		{"too short", valid[:63], true},
		{"too long", valid + "0", true},
		{"uppercase hex", "ABCDEF" + valid[6:], true},
		{"non hex", "zz" + valid[2:], true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateIdempotencyKey(tc.key)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
