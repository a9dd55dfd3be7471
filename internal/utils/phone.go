package utils

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// NormalizePhoneNumber normalizes a phone number to E.164 format. Numbers
// without a country code are parsed against defaultRegion (ISO 3166-1
// alpha-2, e.g. "US"). Every identity comparison in the engine assumes
// phones were stored in this form.
func NormalizePhoneNumber(phone, defaultRegion string) (string, error) {
	phone = strings.TrimSpace(phone)

	num, err := phonenumbers.Parse(phone, defaultRegion)
	if err != nil {
		return "", err
	}

	if !phonenumbers.IsValidNumber(num) {
		return "", phonenumbers.ErrNotANumber
	}

	// Format to E.164 (e.g., +14155551234)
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// NormalizeIdentity canonicalizes an inbound invitee identity: emails are
// lowercased, phone-looking strings are normalized to E.164 when they parse,
// and anything else is returned trimmed so the engine's not-found
// classification handles it.
func NormalizeIdentity(identity, defaultRegion string) string {
	identity = strings.TrimSpace(identity)
	if strings.Contains(identity, "@") {
		return strings.ToLower(identity)
	}
	if normalized, err := NormalizePhoneNumber(identity, defaultRegion); err == nil {
		return normalized
	}
	return identity
}
