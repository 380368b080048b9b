// Package phone normalises lead phone numbers and builds dial links.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Digits strips every non-digit rune from raw.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Normalize returns the national number of raw when it has exactly n digits.
// Longer input is accepted only when region parsing strips a country or trunk
// prefix down to n digits. n <= 0 keeps every digit.
func Normalize(raw, region string, n int) (string, bool) {
	digits := Digits(raw)
	if n <= 0 {
		return digits, digits != ""
	}
	if len(digits) <= n {
		return digits, len(digits) == n
	}
	num, err := phonenumbers.Parse(strings.TrimSpace(raw), defaultRegion(region))
	if err != nil {
		return digits, false
	}
	national := phonenumbers.GetNationalSignificantNumber(num)
	if len(national) != n {
		return digits, false
	}
	return national, true
}

func defaultRegion(region string) string {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		return "IN"
	}
	return region
}

// Link is a fire-and-forget dial target.
type Link struct {
	URI   string `json:"uri"`
	E164  string `json:"e164,omitempty"`
	Valid bool   `json:"valid"`
}

// Dialer formats tel: links for a default region.
type Dialer struct {
	region string
}

// NewDialer returns a Dialer, defaulting to India when region is empty.
func NewDialer(region string) *Dialer {
	return &Dialer{region: defaultRegion(region)}
}

// Link returns a tel: URI in E.164 when the number parses as valid, else the raw digits.
func (d *Dialer) Link(raw string) Link {
	trimmed := strings.TrimSpace(raw)
	num, err := phonenumbers.Parse(trimmed, d.region)
	if err == nil && phonenumbers.IsValidNumber(num) {
		e164 := phonenumbers.Format(num, phonenumbers.E164)
		return Link{URI: "tel:" + e164, E164: e164, Valid: true}
	}
	return Link{URI: "tel:" + Digits(trimmed)}
}
