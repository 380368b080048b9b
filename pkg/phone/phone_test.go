package phone

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigits(t *testing.T) {
	assert.Equal(t, "9876543210", Digits("+ (98765) 432-10 "))
	assert.Equal(t, "", Digits("n/a"))
}

func TestNormalize(t *testing.T) {
	digits, ok := Normalize("+91 98765-43210", "IN", 10)
	assert.True(t, ok)
	assert.Equal(t, "9876543210", digits)

	digits, ok = Normalize("0091 98765 43210", "IN", 10)
	assert.True(t, ok)
	assert.Equal(t, "9876543210", digits)

	digits, ok = Normalize("98765 43210", "", 10)
	assert.True(t, ok)
	assert.Equal(t, "9876543210", digits)

	digits, ok = Normalize("98765", "IN", 10)
	assert.False(t, ok)
	assert.Equal(t, "98765", digits)

	digits, ok = Normalize("+91 98765-43210", "IN", 0)
	assert.True(t, ok)
	assert.Equal(t, "919876543210", digits)

	_, ok = Normalize("n/a", "IN", 0)
	assert.False(t, ok)
}

func TestNormalizeRejectsExtraDigits(t *testing.T) {
	digits, ok := Normalize("98765432101234", "IN", 10)
	assert.False(t, ok)
	assert.Equal(t, "98765432101234", digits)

	_, ok = Normalize("+91 98765-432101", "IN", 10)
	assert.False(t, ok)
}

func TestDialerLink(t *testing.T) {
	link := NewDialer("us").Link("+1 650-253-0000")
	assert.True(t, link.Valid)
	assert.Equal(t, "+16502530000", link.E164)
	assert.Equal(t, "tel:+16502530000", link.URI)

	fallback := NewDialer("").Link("12-34")
	assert.False(t, fallback.Valid)
	assert.Equal(t, "tel:1234", fallback.URI)

	local := NewDialer("IN").Link("9876543210")
	assert.True(t, strings.HasSuffix(local.URI, "9876543210"))
}
