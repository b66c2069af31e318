package users

import "strings"

// DefaultCountryCode is the dialling prefix used when none is configured.
const DefaultCountryCode = "254"

const phoneLength = 12

// NormalizePhone rewrites a local or international number into the
// country-code-prefixed form stored on users.
func NormalizePhone(raw, countryCode string) string {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	phone := strings.Join(strings.Fields(raw), "")
	phone = strings.ReplaceAll(phone, "+", "")

	if len(phone) == phoneLength && strings.HasPrefix(phone, countryCode) {
		return phone
	}
	if strings.HasPrefix(phone, "0") {
		return countryCode + phone[1:]
	}
	return countryCode + phone
}

// ValidPhone reports whether phone is a normalized number for countryCode.
func ValidPhone(phone, countryCode string) bool {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	if len(phone) != phoneLength || !strings.HasPrefix(phone, countryCode) {
		return false
	}
	for i := 0; i < len(phone); i++ {
		if phone[i] < '0' || phone[i] > '9' {
			return false
		}
	}
	return true
}
