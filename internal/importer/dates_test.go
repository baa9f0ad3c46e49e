package importer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateFormats(t *testing.T) {
	want := time.Date(2004, time.May, 17, 0, 0, 0, 0, time.UTC)

	for _, raw := range []string{
		"2004-05-17",
		"17/05/2004",
		"05/17/2004",
		"2004/05/17",
		"17-05-2004",
	} {
		got, err := ParseDate(raw)
		require.NoError(t, err, raw)
		assert.True(t, want.Equal(got), raw)
	}
}

func TestParseDateTwoDigitYears(t *testing.T) {
	got, err := ParseDate("17/05/04")
	require.NoError(t, err)
	assert.Equal(t, 2004, got.Year())

	got, err = ParseDate("17/05/30")
	require.NoError(t, err)
	assert.Equal(t, 2030, got.Year())

	got, err = ParseDate("17/05/31")
	require.NoError(t, err)
	assert.Equal(t, 1931, got.Year())

	got, err = ParseDate("17/05/99")
	require.NoError(t, err)
	assert.Equal(t, 1999, got.Year())
}

func TestParseDateExcelSerial(t *testing.T) {
	// 1 maps to 1899-12-31; 25569 maps to the Unix epoch.
	got, err := ParseDate("25569")
	require.NoError(t, err)
	assert.True(t, time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC).Equal(got))
}

func TestParseDateRejectsOutOfRangeYears(t *testing.T) {
	for _, raw := range []string{"1899-12-31", "2101-01-01", "999999"} {
		_, err := ParseDate(raw)
		assert.Error(t, err, raw)
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "soon", "32/01/2004", "17/13/04"} {
		_, err := ParseDate(raw)
		assert.Error(t, err, raw)
	}
}
