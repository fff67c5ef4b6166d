package gateway

import (
	"encoding/base64"
	"strings"
	"time"
)

const timestampLayout = "20060102150405"

// NormalizePhone converts a payer number to the 2547XXXXXXXX form the gateway
// expects. Non-digits are dropped first, then a leading 0 becomes 254.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if strings.HasPrefix(digits, "0") {
		return "254" + digits[1:]
	}
	return digits
}

// Timestamp formats t as YYYYMMDDHHMMSS.
func Timestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

// Password is base64(shortCode + passkey + timestamp).
func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
