package uuidutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rfcBytes = []byte{
	0x55, 0x0e, 0x84, 0x00,
	0xe2, 0x9b,
	0x41, 0xd4,
	0xa7, 0x16,
	0x44, 0x66, 0x55, 0x44, 0x00, 0x00,
}

const canonicalUUID = "550e8400-e29b-41d4-a716-446655440000"

func TestParseString(t *testing.T) {
	u, canonical, err := ParseString("550E8400-E29B-41D4-A716-446655440000")
	require.NoError(t, err)
	assert.Equal(t, canonicalUUID, canonical)
	assert.Equal(t, canonical, u.String())

	_, _, err = ParseString("not-a-uuid")
	require.Error(t, err)
}

func TestParseBytes(t *testing.T) {
	_, canonical, err := ParseBytes(rfcBytes)
	require.NoError(t, err)
	assert.Equal(t, canonicalUUID, canonical)

	_, _, err = ParseBytes([]byte{0x01, 0x02})
	require.Error(t, err)
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
		ok    bool
	}{
		{"binary storage", rfcBytes, canonicalUUID, true},
		{"text bytes", []byte("{550E8400-E29B-41D4-A716-446655440000}"), canonicalUUID, true},
		{"string", " 550E8400-E29B-41D4-A716-446655440000 ", canonicalUUID, true},
		{"uuid value", uuid.MustParse(canonicalUUID), canonicalUUID, true},
		{"garbage", "nope", "", false},
		{"wrong type", 42, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Canonical(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
