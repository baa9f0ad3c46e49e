package importer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStripsBOMAndNormalises(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Reg_No,Name, Status\nSTU001, Amina ,active\nSTU002,,\n")...)

	result, err := Parse(bytes.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"reg_no", "name", "status"}, result.Headers)
	require.Len(t, result.Rows, 2)

	assert.Equal(t, "STU001", result.Rows[0].Get("reg_no"))
	assert.Equal(t, "Amina", result.Rows[0].Get("name"))
	assert.Equal(t, "active", result.Rows[0].Get("status"))

	assert.True(t, result.Rows[1].Has("reg_no"))
	assert.False(t, result.Rows[1].Has("name"), "empty cells are absent")
}

func TestParseLatin1Fallback(t *testing.T) {
	// 0xE9 is é in latin-1 and invalid as a standalone UTF-8 byte.
	input := []byte("name\nRen\xe9\n")

	result, err := Parse(bytes.NewReader(input))
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "René", result.Rows[0].Get("name"))
}

func TestParseEmptyFile(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	assert.Error(t, err)
}

func TestMissingHeaders(t *testing.T) {
	missing := MissingHeaders([]string{"reg_no", "name"}, []string{"reg_no", "name", "program_name"})
	assert.Equal(t, []string{"program_name"}, missing)

	assert.Empty(t, MissingHeaders([]string{"b", "a"}, []string{"a", "b"}), "order is not significant")
}
