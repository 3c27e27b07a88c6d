package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatWhatsApp(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"9999999999", "whatsapp:+919999999999"},
		{"99999 99999", "whatsapp:+919999999999"},
		{"919999999999", "whatsapp:+919999999999"},
		{"+14155550100", "whatsapp:+14155550100"},
		{"whatsapp:+14155550100", "whatsapp:+14155550100"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatWhatsApp(tc.in, "91"), "input %q", tc.in)
	}
}

func TestFormatWhatsApp_CountryCodeWithPlus(t *testing.T) {
	assert.Equal(t, "whatsapp:+445551234567", FormatWhatsApp("5551234567", "+44"))
}
