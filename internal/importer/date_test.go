package importer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var wib = time.FixedZone("WIB", 7*3600)

func TestParseDate_DayFirst(t *testing.T) {
	got, ok := ParseDate(Text("15-03-2024 10:30"), wib)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 15, 10, 30, 0, 0, wib), got)

	got, ok = ParseDate(Text("01/12/2023"), wib)
	require.True(t, ok)
	assert.Equal(t, time.Date(2023, 12, 1, 0, 0, 0, 0, wib), got)

	_, ok = ParseDate(Text("31-02-2024"), wib)
	assert.False(t, ok)
}

func TestParseDate_ISO(t *testing.T) {
	got, ok := ParseDate(Text("2024-03-15 08:00"), wib)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 15, 8, 0, 0, 0, wib), got)

	got, ok = ParseDate(Text("2024-03-15T08:00:00Z"), wib)
	require.True(t, ok)
	assert.True(t, got.Equal(time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)))
}

func TestParseDate_Serial(t *testing.T) {
	// 45366.5 is 2024-03-15 12:00
	got, ok := ParseDate(Number("45366.5"), wib)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 15, 12, 0, 0, 0, wib), got)
}

func TestDateOrNow(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, wib)
	assert.Equal(t, now, DateOrNow(Text("kemarin"), wib, now))
	assert.Equal(t, now, DateOrNow(Text(""), wib, now))
}
