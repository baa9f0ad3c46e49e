package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRender(t *testing.T) {
	exporter := NewCSVExporter()

	data := Dataset{
		Headers: []string{"reg_no", "name", "error_message"},
		Rows: []map[string]string{
			{"reg_no": "STU001", "name": "Amina", "error_message": "duplicate"},
			{"reg_no": "STU002", "name": "Bilal"},
		},
	}

	out, err := exporter.Render(data)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "reg_no,name,error_message", lines[0])
	assert.Equal(t, "STU001,Amina,duplicate", lines[1])
	assert.Equal(t, "STU002,Bilal,", lines[2])
}

func TestCSVRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestSanitizeCell(t *testing.T) {
	cases := map[string]string{
		"=SUM(A1)":     "'=SUM(A1)",
		"+92300123":    "'+92300123",
		"-5":           "'-5",
		"@cmd":         "'@cmd",
		"\tleading":    "'\tleading",
		"\rleading":    "'\rleading",
		"plain":        "plain",
		"mid=dle":      "mid=dle",
		"":             "",
		"'=quoted":     "'=quoted",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeCell(in), in)
	}
}
