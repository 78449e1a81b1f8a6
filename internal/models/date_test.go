package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateOnlyKeepsCalendarDay(t *testing.T) {
	// A UTC-midnight timestamp must stay on its calendar day regardless
	// of the host timezone.
	cases := []string{
		"2025-03-10",
		"2025-03-10T00:00:00.000Z",
		"2025-03-10T23:59:59+05:30",
		"2025-03-10 08:00:00",
	}
	for _, raw := range cases {
		d, err := ParseDateOnly(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, NewDateOnly(2025, time.March, 10), d, raw)
	}
}

func TestParseDateOnlyRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "10-03-2025", "2025/03/10", "not-a-date"} {
		_, err := ParseDateOnly(raw)
		assert.Error(t, err, raw)
	}
}

func TestDateOnlyComparisons(t *testing.T) {
	a := NewDateOnly(2025, time.March, 10)
	b := NewDateOnly(2025, time.March, 12)

	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.True(t, a.Equal(NewDateOnly(2025, time.March, 10)))
	assert.False(t, a.After(a))
}

func TestDateOnlyAddDaysCrossesMonths(t *testing.T) {
	d := NewDateOnly(2025, time.February, 27)
	assert.Equal(t, NewDateOnly(2025, time.March, 1), d.AddDays(2))

	leap := NewDateOnly(2024, time.February, 28)
	assert.Equal(t, NewDateOnly(2024, time.February, 29), leap.AddDays(1))
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 29, DaysInMonth(2024, time.February))
	assert.Equal(t, 28, DaysInMonth(2025, time.February))
	assert.Equal(t, 31, DaysInMonth(2025, time.January))
	assert.Equal(t, 30, DaysInMonth(2025, time.April))
}

func TestDateOnlyScanReadsLocalDay(t *testing.T) {
	loc := time.FixedZone("UTC-7", -7*3600)
	stamp := time.Date(2025, time.March, 10, 0, 0, 0, 0, loc)

	var d DateOnly
	require.NoError(t, d.Scan(stamp))
	assert.Equal(t, NewDateOnly(2025, time.March, 10), d)

	var fromString DateOnly
	require.NoError(t, fromString.Scan("2025-03-10"))
	assert.Equal(t, NewDateOnly(2025, time.March, 10), fromString)
}

func TestDateOnlyJSONRoundTrip(t *testing.T) {
	d := NewDateOnly(2025, time.March, 10)
	data, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2025-03-10"`, string(data))

	var parsed DateOnly
	require.NoError(t, parsed.UnmarshalJSON([]byte(`"2025-03-10T00:00:00.000Z"`)))
	assert.Equal(t, d, parsed)
}
