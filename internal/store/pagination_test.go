package store

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginationParams_Validate(t *testing.T) {
	tests := []struct {
		name          string
		input         PaginationParams
		expectedLimit int
	}{
		{"valid", PaginationParams{Limit: 50}, 50},
		{"zero defaults", PaginationParams{Limit: 0}, DefaultPageSize},
		{"negative defaults", PaginationParams{Limit: -10}, DefaultPageSize},
		{"over max is capped", PaginationParams{Limit: 5000}, MaxPageSize},
		{"exactly max", PaginationParams{Limit: MaxPageSize}, MaxPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.input
			p.Validate()
			assert.Equal(t, tt.expectedLimit, p.Limit)
		})
	}
}

func TestCursorRoundTrip(t *testing.T) {
	c := EncodeCursor(42)
	require.NotEmpty(t, c)

	pos, err := DecodeCursor(c)
	require.NoError(t, err)
	assert.Equal(t, int64(42), pos)
}

func TestDecodeCursor_Empty(t *testing.T) {
	pos, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Zero(t, pos)
	assert.Empty(t, EncodeCursor(0))
}

func TestDecodeCursor_Invalid(t *testing.T) {
	_, err := DecodeCursor("!!!")
	assert.Error(t, err)

	_, err = DecodeCursor(base64.RawURLEncoding.EncodeToString([]byte("abc")))
	assert.Error(t, err)
}
