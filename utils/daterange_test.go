package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStartDate(t *testing.T) {
	got, ok := ParseStartDate("2024-01-01")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestParseEndDate(t *testing.T) {
	got, ok := ParseEndDate("2024-01-01")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 1, 23, 59, 59, 999*int(time.Millisecond), time.UTC), got)
}

func TestNormalizeDateRange_Inclusivity(t *testing.T) {
	dr := NormalizeDateRange("2024-01-01", "2024-01-31")
	require.NotNil(t, dr.Start)
	require.NotNil(t, dr.End)

	atStart := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	atEnd := time.Date(2024, 1, 31, 23, 59, 59, 999*int(time.Millisecond), time.UTC)
	beforeStart := atStart.Add(-time.Millisecond)
	afterEnd := atEnd.Add(time.Millisecond)

	assert.False(t, atStart.Before(*dr.Start), "event at 00:00:00.000 on startDate is included")
	assert.False(t, atEnd.After(*dr.End), "event at 23:59:59.999 on endDate is included")
	assert.True(t, beforeStart.Before(*dr.Start), "one millisecond before startDate is excluded")
	assert.True(t, afterEnd.After(*dr.End), "one millisecond after endDate is excluded")
}

func TestNormalizeDateRange_MalformedBecomesNoConstraint(t *testing.T) {
	for _, bad := range []string{"", "not-a-date", "2024-13-45", "01/02/2024", "2024-01-01T10:00:00Z"} {
		dr := NormalizeDateRange(bad, bad)
		assert.Nil(t, dr.Start, "start %q should normalize to no constraint", bad)
		assert.Nil(t, dr.End, "end %q should normalize to no constraint", bad)
	}
}

func TestNormalizeDateRange_Partial(t *testing.T) {
	dr := NormalizeDateRange("2024-01-01", "nonsense")
	assert.NotNil(t, dr.Start)
	assert.Nil(t, dr.End)

	dr = NormalizeDateRange("", "2024-02-02")
	assert.Nil(t, dr.Start)
	assert.NotNil(t, dr.End)
}
