package callnumber

import (
	"strconv"
	"strings"
)

// Fraction is a digit string read as the decimal fraction 0.<digits>.
// "47" is 0.47 and "5" is 0.5, so "5" orders after "47". The empty
// Fraction is absent and orders before every present value.
type Fraction string

// Present reports whether the fraction carries any digits.
func (f Fraction) Present() bool {
	return f != ""
}

// String returns the digits as written.
func (f Fraction) String() string {
	return string(f)
}

// Float64 returns the fractional value, 0 when absent.
func (f Fraction) Float64() float64 {
	if f == "" {
		return 0
	}
	v, err := strconv.ParseFloat("0."+string(f), 64)
	if err != nil {
		return 0
	}
	return v
}

// Compare orders two fractions by value without converting to floating
// point. Trailing zeros are insignificant: "5" equals "50".
func (f Fraction) Compare(other Fraction) int {
	switch {
	case f == "" && other == "":
		return 0
	case f == "":
		return -1
	case other == "":
		return 1
	}
	a, b := string(f), string(other)
	if n := len(b) - len(a); n > 0 {
		a += strings.Repeat("0", n)
	} else if n < 0 {
		b += strings.Repeat("0", -n)
	}
	return strings.Compare(a, b)
}

// truncate drops digits beyond the shelfkey segment width.
func (f Fraction) truncate() Fraction {
	if len(f) > fractionWidth {
		return f[:fractionWidth]
	}
	return f
}

// key renders the fraction as a fixed-width segment. Digits beyond the
// segment width are not represented.
func (f Fraction) key() string {
	if f == "" {
		return strings.Repeat(" ", fractionWidth)
	}
	s := string(f.truncate())
	return s + strings.Repeat("0", fractionWidth-len(s))
}

// fractionFromKey is the inverse of key.
func fractionFromKey(seg string) Fraction {
	if strings.TrimSpace(seg) == "" {
		return ""
	}
	s := strings.TrimRight(seg, "0")
	if s == "" {
		return "0"
	}
	return Fraction(s)
}
