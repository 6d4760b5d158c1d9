package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	got, err := parseDate(" 2026-08-15 ")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC), *got)

	got, err = parseDate("2026-08-15T09:00:00+07:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 15, 2, 0, 0, 0, time.UTC), *got)

	got, err = parseDate("")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = parseDate("15/08/2026")
	assert.ErrorIs(t, err, errInvalidDate)
}

func TestParseOptionalID(t *testing.T) {
	id, err := parseOptionalID("1234567890")
	require.NoError(t, err)
	assert.EqualValues(t, 1234567890, *id)

	for _, raw := range []string{"0", "abc", "-"} {
		_, err := parseOptionalID(raw)
		assert.ErrorIs(t, err, errInvalidID, raw)
	}

	id, err = parseOptionalID("  ")
	require.NoError(t, err)
	assert.Nil(t, id)
}
