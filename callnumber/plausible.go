package callnumber

import (
	"regexp"
	"strings"
)

// nonLCInitials are first letters that no LC class uses.
const nonLCInitials = "IOWXY"

// nonLCPrefixes are local shelving schemes that parse like LC numbers.
var nonLCPrefixes = []string{"MSS", "DVD", "VHS"}

// sudocPattern matches the slash and colon notation of Superintendent of
// Documents numbers ("Y 4.AG 8/1:996").
var sudocPattern = regexp.MustCompile(`\d+/\d+|:`)

// Plausible reports whether c looks like a real LC call number rather
// than a local or government-documents number that happens to parse.
func (c CallNumber) Plausible() bool {
	letters := foldLetters(c.ClassLetters())
	if letters == "" || strings.ContainsRune(nonLCInitials, rune(letters[0])) {
		return false
	}
	for _, p := range nonLCPrefixes {
		if strings.HasPrefix(letters, p) {
			return false
		}
	}

	num, hasNum := c.ClassNumber()
	dec := c.Decimal()
	if !hasNum && !dec.Present() {
		return false
	}
	if num > maxClassNumber {
		return false
	}
	if dec.Present() && len(strings.TrimLeft(dec.String(), "0")) > 4 {
		return false
	}
	return !sudocPattern.MatchString(c.Remainder())
}
