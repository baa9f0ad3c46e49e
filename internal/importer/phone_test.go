package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	n := NewPhoneNormalizer("92")

	cases := map[string]string{
		"+923001234567":   "+923001234567",
		"923001234567":    "+923001234567",
		"03001234567":     "+923001234567",
		"3001234567":      "+923001234567",
		"0300-1234567":    "+923001234567",
		"(0300) 1234567":  "+923001234567",
		"00923001234567":  "+923001234567",
		"O3OO1234567":     "+923001234567",
		"+13001234567890": "+921234567890",
	}
	for raw, want := range cases {
		got, ok := n.Normalize(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
}

func TestNormalizePhoneRejects(t *testing.T) {
	n := NewPhoneNormalizer("92")

	for _, raw := range []string{"", "call me", "12345", "+92abc1234567"} {
		_, ok := n.Normalize(raw)
		assert.False(t, ok, raw)
	}
}
