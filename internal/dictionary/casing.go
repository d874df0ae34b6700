package dictionary

import (
	"fmt"
	"strings"
)

// Casing is a case transformation applied to words before lookup.
type Casing string

const (
	CasingIgnore Casing = "ignore"
	CasingUpper  Casing = "upper"
	CasingLower  Casing = "lower"
)

// ParseCasing accepts "ignore", "upper" or "lower". Empty means ignore.
func ParseCasing(s string) (Casing, error) {
	switch Casing(s) {
	case "", CasingIgnore:
		return CasingIgnore, nil
	case CasingUpper, CasingLower:
		return Casing(s), nil
	default:
		return "", fmt.Errorf("casing must be ignore, upper, or lower, got %q", s)
	}
}

// Apply transforms word.
func (c Casing) Apply(word string) string {
	switch c {
	case CasingUpper:
		return strings.ToUpper(word)
	case CasingLower:
		return strings.ToLower(word)
	default:
		return word
	}
}
