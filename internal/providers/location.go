package providers

import "strings"

var countryCodes = map[string]string{
	"united states":  "US",
	"usa":            "US",
	"us":             "US",
	"united kingdom": "GB",
	"uk":             "GB",
	"great britain":  "GB",
	"gb":             "GB",
	"canada":         "CA",
	"australia":      "AU",
	"germany":        "DE",
	"france":         "FR",
	"spain":          "ES",
	"italy":          "IT",
	"netherlands":    "NL",
	"india":          "IN",
	"japan":          "JP",
	"brazil":         "BR",
	"mexico":         "MX",
}

// CountryCode maps a free-form location to an ISO 3166 alpha-2 code,
// defaulting to US
func CountryCode(location string) string {
	loc := strings.ToLower(strings.TrimSpace(location))
	if loc == "" {
		return "US"
	}
	if code, ok := countryCodes[loc]; ok {
		return code
	}
	if len(loc) == 2 {
		return strings.ToUpper(loc)
	}
	return "US"
}
