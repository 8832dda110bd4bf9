package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateTruncatesToCalendarDay(t *testing.T) {
	cases := map[string]time.Time{
		"2024-06-12":                time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC),
		" 2024-06-12 ":              time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC),
		"2024-06-12T18:45:00Z":      time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC),
		"2024-06-13T02:30:00+05:30": time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC),
	}
	for input, want := range cases {
		got, err := parseDate(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := parseDate("12/06/2024")
	assert.Error(t, err)
}
