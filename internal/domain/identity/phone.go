package identity

import (
	"strings"

	"github.com/flora/backend/internal/domain/shared"
	"github.com/ttacon/libphonenumber"
)

// DefaultPhoneRegion is used for numbers written without a country code
const DefaultPhoneRegion = "KZ"

// NormalizePhone parses a phone number and returns it in E.164 form
func NormalizePhone(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", shared.NewDomainError("INVALID_PHONE", "Phone number cannot be empty")
	}
	if region == "" {
		region = DefaultPhoneRegion
	}
	num, err := libphonenumber.Parse(raw, region)
	if err != nil {
		return "", shared.NewDomainError("INVALID_PHONE", "Invalid phone number")
	}
	if !libphonenumber.IsValidNumber(num) {
		return "", shared.NewDomainError("INVALID_PHONE", "Invalid phone number")
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}
