// Package callnumber models Library of Congress call numbers.
//
// A call number is decomposed into eight ordered fields (class letters,
// class number, decimal, two cutters and a free-text remainder). Values
// are immutable, totally ordered by Compare, and can be encoded as
// fixed-width forward and reverse shelfkeys whose byte order matches the
// call-number order (or its inverse) so they can serve as keys in an
// external sorted index.
package callnumber

import (
	"cmp"
	"errors"
	"math"
	"strconv"
	"strings"
)

// Field identifies one of the eight positional components.
type Field int

// Field positions, in comparison order.
const (
	ClassLetters Field = iota
	ClassNumber
	Decimal
	Cutter1Letter
	Cutter1Number
	Cutter2Letter
	Cutter2Number
	Remainder

	fieldCount
)

var fieldNames = [fieldCount]string{
	"class_letters",
	"class_number",
	"decimal",
	"cutter1_letter",
	"cutter1_number",
	"cutter2_letter",
	"cutter2_number",
	"remainder",
}

// String returns the snake_case field name.
func (f Field) String() string {
	if f < 0 || f >= fieldCount {
		return "field(" + strconv.Itoa(int(f)) + ")"
	}
	return fieldNames[f]
}

// Errors returned by the constructors.
var (
	// ErrUnparseable is returned when a string does not look like a call number.
	ErrUnparseable = errors.New("unparseable call number")

	// ErrMalformedShelfkey is returned when a shelfkey cannot be decoded.
	ErrMalformedShelfkey = errors.New("malformed shelfkey")

	// ErrTooManyFields is returned by FromFields for vectors longer than eight.
	ErrTooManyFields = errors.New("too many call number fields")
)

// CallNumber is an immutable, parsed LC call number.
//
// fields is trimmed: trailing absent fields are dropped, interior absent
// fields are kept as "". The zero value is the empty (invalid) call number.
type CallNumber struct {
	fields  []string
	display string
}

// FromFields builds a call number from a raw field vector, as produced by
// Fields or by decoding a shelfkey.
func FromFields(fields []string) (CallNumber, error) {
	if len(fields) > int(fieldCount) {
		return CallNumber{}, ErrTooManyFields
	}
	c := CallNumber{fields: trimFields(fields)}
	c.display = c.Canonical()
	return c, nil
}

func trimFields(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = strings.TrimSpace(f)
	}
	n := len(out)
	for n > 0 && out[n-1] == "" {
		n--
	}
	if n == 0 {
		return nil
	}
	return out[:n]
}

// Clone returns an independent copy.
func (c CallNumber) Clone() CallNumber {
	return CallNumber{
		fields:  append([]string(nil), c.fields...),
		display: c.display,
	}
}

// Valid reports whether at least one field is present.
func (c CallNumber) Valid() bool {
	return len(c.fields) > 0
}

// Len returns the length of the trimmed field vector.
func (c CallNumber) Len() int {
	return len(c.fields)
}

// Field returns the raw value of field f, or "" when absent.
func (c CallNumber) Field(f Field) string {
	if int(f) < 0 || int(f) >= len(c.fields) {
		return ""
	}
	return c.fields[f]
}

// Fields returns a copy of the trimmed field vector.
func (c CallNumber) Fields() []string {
	return append([]string(nil), c.fields...)
}

// ClassLetters returns the one to three leading class letters.
func (c CallNumber) ClassLetters() string {
	return c.Field(ClassLetters)
}

// ClassNumber returns the integer class number and whether it is present.
func (c CallNumber) ClassNumber() (int, bool) {
	s := c.Field(ClassNumber)
	if s == "" {
		return 0, false
	}
	return intValue(s), true
}

// Decimal returns the fractional part of the class number.
func (c CallNumber) Decimal() Fraction {
	return Fraction(c.Field(Decimal))
}

// Cutter1 returns the first cutter's letter and number.
func (c CallNumber) Cutter1() (string, Fraction) {
	return c.Field(Cutter1Letter), Fraction(c.Field(Cutter1Number))
}

// Cutter2 returns the second cutter's letter and number.
func (c CallNumber) Cutter2() (string, Fraction) {
	return c.Field(Cutter2Letter), Fraction(c.Field(Cutter2Number))
}

// Remainder returns the free text following the cutters.
func (c CallNumber) Remainder() string {
	return c.Field(Remainder)
}

// String returns the display form: the cleaned input for parsed values,
// the canonical rendering otherwise.
func (c CallNumber) String() string {
	if c.display != "" {
		return c.display
	}
	return c.Canonical()
}

// Canonical renders the fields in the conventional "QA76.47.A1 P53 2017"
// layout. Values produced by Parse render back to the same fields.
func (c CallNumber) Canonical() string {
	if !c.Valid() {
		return ""
	}
	var b strings.Builder
	b.WriteString(c.Field(ClassLetters))
	b.WriteString(c.Field(ClassNumber))
	if d := c.Field(Decimal); d != "" {
		b.WriteString(".")
		b.WriteString(d)
	}
	if l, n := c.Field(Cutter1Letter), c.Field(Cutter1Number); l != "" || n != "" {
		b.WriteString(".")
		b.WriteString(l)
		b.WriteString(n)
	}
	if l, n := c.Field(Cutter2Letter), c.Field(Cutter2Number); l != "" || n != "" {
		b.WriteString(" ")
		b.WriteString(l)
		b.WriteString(n)
	}
	if r := c.Field(Remainder); r != "" {
		b.WriteString(" ")
		b.WriteString(r)
	}
	return b.String()
}

// Compare orders c against other and returns -1, 0 or +1.
//
// Fields are compared in order and the first difference decides. When
// every field present in both vectors ties and one vector runs out, the
// values are equal, so "QA76" equals "QA76.5" and range ends written at
// a coarse level contain their refinements. The empty call number sorts
// after every non-empty one.
//
// Fields are compared at shelfkey precision: class numbers above 9999
// compare as 9999, fraction digits past the sixth are ignored and letters
// past their segment width are dropped. A value therefore always equals
// the value decoded from its shelfkey.
func (c CallNumber) Compare(other CallNumber) int {
	switch {
	case !c.Valid() && !other.Valid():
		return 0
	case !c.Valid():
		return 1
	case !other.Valid():
		return -1
	}
	n := min(len(c.fields), len(other.fields))
	for i := 0; i < n; i++ {
		if r := compareField(Field(i), c.fields[i], other.fields[i]); r != 0 {
			return r
		}
	}
	return 0
}

// Equal reports whether Compare returns 0.
func (c CallNumber) Equal(other CallNumber) bool {
	return c.Compare(other) == 0
}

// Less reports whether c sorts strictly before other.
func (c CallNumber) Less(other CallNumber) bool {
	return c.Compare(other) < 0
}

// Between reports whether c is valid and lies within [lo, hi].
func (c CallNumber) Between(lo, hi CallNumber) bool {
	return c.Valid() && c.Compare(lo) >= 0 && c.Compare(hi) <= 0
}

func compareField(f Field, a, b string) int {
	switch f {
	case ClassNumber:
		return cmp.Compare(intOrAbsent(a), intOrAbsent(b))
	case Decimal, Cutter1Number, Cutter2Number:
		return Fraction(a).truncate().Compare(Fraction(b).truncate())
	case Remainder:
		return strings.Compare(remainderKey(a), remainderKey(b))
	case ClassLetters:
		return strings.Compare(letterKey(a, lettersWidth), letterKey(b, lettersWidth))
	default:
		return strings.Compare(letterKey(a, cutterWidth), letterKey(b, cutterWidth))
	}
}

// intOrAbsent maps an absent integer field to -1 so it sorts first and
// clamps present values to the largest encodable class number.
func intOrAbsent(s string) int {
	if s == "" {
		return -1
	}
	return min(intValue(s), maxClassNumber)
}

// letterKey folds letters and keeps at most width of them.
func letterKey(s string, width int) string {
	s = foldLetters(s)
	if len(s) > width {
		return s[:width]
	}
	return s
}

func intValue(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return math.MaxInt
		}
		return 0
	}
	return v
}

func foldLetters(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, " ", ""))
}
