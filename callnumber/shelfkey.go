package callnumber

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Segment widths of the forward shelfkey. The layout is
//
//	LLLNNNN.DDDDDD CNNNNNN CNNNNNN RRRRRRRRRRRRRRRRRRR
//
// letters, class number, decimal, cutter 1, cutter 2 and remainder,
// always ShelfkeyLength bytes.
const (
	lettersWidth   = 3
	numberWidth    = 4
	fractionWidth  = 6
	cutterWidth    = 1
	remainderWidth = 19
	digitRunWidth  = 6

	// ShelfkeyLength is the fixed length of forward and reverse shelfkeys.
	ShelfkeyLength = 50

	maxClassNumber = 9999
)

// Byte offsets of each segment in a forward shelfkey.
const (
	offLetters   = 0
	offNumber    = offLetters + lettersWidth
	offDecimal   = offNumber + numberWidth + 1
	offC1Letter  = offDecimal + fractionWidth + 1
	offC1Number  = offC1Letter + cutterWidth
	offC2Letter  = offC1Number + fractionWidth + 1
	offC2Number  = offC2Letter + cutterWidth
	offRemainder = offC2Number + fractionWidth + 1
)

// alnum is the collation order reversed by the reverse shelfkey.
const alnum = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

var (
	reverseTable [256]byte
	forwardTable [256]byte

	digitRun   = regexp.MustCompile(`\d+`)
	spaceDot   = regexp.MustCompile(` ?\. ?`)
	multiSpace = regexp.MustCompile(` {2,}`)
)

func init() {
	for i := range reverseTable {
		reverseTable[i] = '~'
	}
	for i := 0; i < len(alnum); i++ {
		reverseTable[alnum[i]] = alnum[len(alnum)-1-i]
		forwardTable[alnum[len(alnum)-1-i]] = alnum[i]
	}
	reverseTable[' '] = '~'
	reverseTable['.'] = '}'
	forwardTable['~'] = ' '
	forwardTable['}'] = '.'
}

// Shelfkey returns the fixed-width forward shelfkey. Byte-wise order of
// shelfkeys follows Compare. The empty call number has no shelfkey.
func (c CallNumber) Shelfkey() string {
	if !c.Valid() {
		return ""
	}
	var b strings.Builder
	b.Grow(ShelfkeyLength)
	b.WriteString(padRight(foldLetters(c.Field(ClassLetters)), lettersWidth))
	b.WriteString(numberKey(c.Field(ClassNumber)))
	b.WriteByte('.')
	b.WriteString(c.Decimal().key())
	b.WriteByte(' ')
	l1, n1 := c.Cutter1()
	b.WriteString(padRight(foldLetters(l1), cutterWidth))
	b.WriteString(n1.key())
	b.WriteByte(' ')
	l2, n2 := c.Cutter2()
	b.WriteString(padRight(foldLetters(l2), cutterWidth))
	b.WriteString(n2.key())
	b.WriteByte(' ')
	b.WriteString(padRight(remainderKey(c.Remainder()), remainderWidth))
	return b.String()
}

// ReverseShelfkey returns a shelfkey whose ascending byte order is the
// descending order of forward shelfkeys.
func (c CallNumber) ReverseShelfkey() string {
	return ReverseKey(c.Shelfkey())
}

// ReverseKey maps a forward shelfkey to its reverse form: every
// character of [0-9A-Z] is replaced by its mirror in that alphabet,
// space becomes '~', '.' becomes '}', and the result is padded with '~'.
func ReverseKey(forward string) string {
	if forward == "" {
		return ""
	}
	out := make([]byte, max(len(forward), ShelfkeyLength))
	for i := range out {
		if i < len(forward) {
			out[i] = reverseTable[forward[i]]
		} else {
			out[i] = '~'
		}
	}
	return string(out)
}

// FromShelfkey decodes a forward shelfkey back into a call number.
func FromShelfkey(key string) (CallNumber, error) {
	if len(key) > ShelfkeyLength || len(key) < offDecimal {
		return CallNumber{}, fmt.Errorf("%w: length %d", ErrMalformedShelfkey, len(key))
	}
	key = padRight(key, ShelfkeyLength)

	fields := make([]string, fieldCount)
	fields[ClassLetters] = strings.TrimSpace(key[offLetters : offLetters+lettersWidth])

	num := strings.TrimSpace(key[offNumber : offNumber+numberWidth])
	if num != "" && !isDigits(num) {
		return CallNumber{}, fmt.Errorf("%w: class number %q", ErrMalformedShelfkey, num)
	}
	fields[ClassNumber] = stripLeadingZeros(num)

	for _, seg := range []struct {
		field Field
		off   int
	}{
		{Decimal, offDecimal},
		{Cutter1Number, offC1Number},
		{Cutter2Number, offC2Number},
	} {
		raw := key[seg.off : seg.off+fractionWidth]
		if strings.TrimSpace(raw) != "" && !isDigits(raw) {
			return CallNumber{}, fmt.Errorf("%w: %s %q", ErrMalformedShelfkey, seg.field, raw)
		}
		fields[seg.field] = fractionFromKey(raw).String()
	}

	fields[Cutter1Letter] = strings.TrimSpace(key[offC1Letter : offC1Letter+cutterWidth])
	fields[Cutter2Letter] = strings.TrimSpace(key[offC2Letter : offC2Letter+cutterWidth])
	fields[Remainder] = strings.TrimSpace(key[offRemainder:])

	c, err := FromFields(fields)
	if err != nil {
		return CallNumber{}, err
	}
	if !c.Valid() {
		return CallNumber{}, fmt.Errorf("%w: blank key", ErrMalformedShelfkey)
	}
	return c, nil
}

// FromReverseShelfkey decodes a reverse shelfkey.
func FromReverseShelfkey(key string) (CallNumber, error) {
	out := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		ch := forwardTable[key[i]]
		if ch == 0 {
			return CallNumber{}, fmt.Errorf("%w: byte %q at %d", ErrMalformedShelfkey, key[i], i)
		}
		out = append(out, ch)
	}
	return FromShelfkey(strings.TrimRight(string(out), " "))
}

// UpperBound returns the largest call number carrying exactly the given
// class letters: every numeric field and cutter letter is maximal.
func UpperBound(letters string) CallNumber {
	nines := strings.Repeat("9", fractionWidth)
	c, _ := FromFields([]string{
		foldLetters(letters),
		strconv.Itoa(maxClassNumber),
		nines,
		"Z", nines,
		"Z", nines,
	})
	return c
}

func numberKey(s string) string {
	if s == "" {
		return strings.Repeat(" ", numberWidth)
	}
	return fmt.Sprintf("%0*d", numberWidth, min(intValue(s), maxClassNumber))
}

// remainderKey normalises free text for comparison and encoding: upper
// case, punctuation other than '.' folded to spaces, no spaces around
// '.', digit runs zero-padded to six places, at most remainderWidth bytes.
// It is idempotent, so remainders decoded from a shelfkey compare equal
// to the originals.
func remainderKey(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	out := multiSpace.ReplaceAllString(b.String(), " ")
	out = spaceDot.ReplaceAllString(out, ".")
	out = strings.TrimSpace(out)
	out = digitRun.ReplaceAllStringFunc(out, func(run string) string {
		if len(run) >= digitRunWidth {
			return run
		}
		return strings.Repeat("0", digitRunWidth-len(run)) + run
	})
	if len(out) > remainderWidth {
		cut := out[:remainderWidth]
		if isDigit(out[remainderWidth]) {
			cut = strings.TrimRight(cut, "0123456789")
		}
		out = strings.TrimRight(cut, " ")
	}
	return out
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return s != ""
}
