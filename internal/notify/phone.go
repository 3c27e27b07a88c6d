package notify

import "strings"

const whatsAppPrefix = "whatsapp:"

// FormatWhatsApp turns a phone number into a WhatsApp address. A bare
// 10-digit number gets the default country code, any other number without a
// leading + gets one. Numbers already in whatsapp: form are left alone.
func FormatWhatsApp(number, countryCode string) string {
	formatted := strings.Join(strings.Fields(number), "")
	if formatted == "" {
		return ""
	}
	if strings.HasPrefix(formatted, whatsAppPrefix) {
		return formatted
	}
	if !strings.HasPrefix(formatted, "+") {
		if len(formatted) == 10 {
			formatted = "+" + strings.TrimPrefix(countryCode, "+") + formatted
		} else {
			formatted = "+" + formatted
		}
	}
	return whatsAppPrefix + formatted
}
