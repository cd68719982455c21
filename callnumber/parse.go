package callnumber

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

var (
	// loosePattern accepts a bare class (e.g. "QA") as well as full numbers.
	loosePattern = regexp.MustCompile(`^([A-Z]{1,3})\s*(\d+)?\s*(?:\.(\d+))?\s*(?:\.?\s*([A-Z])\s*(\d+))?\s*(?:\.?\s*([A-Z]?)\s*(\d+))?\s*(.*)$`)

	// validPattern requires at least one digit after the class letters.
	validPattern = regexp.MustCompile(`^[A-Z]{1,3}\s*\d`)

	pathPrefix   = regexp.MustCompile(`^\w+/\s*`)
	paddedNumber = regexp.MustCompile(`^([A-Z]{1,3})\s*0+(\d)`)
	spaceRun     = regexp.MustCompile(`\s+`)
)

// cutter2YearThreshold separates second-cutter numbers from trailing
// years, volumes and pages when the cutter letter is missing.
const cutter2YearThreshold = 1000

// Parse decomposes raw into a call number. Input that does not look like
// a call number yields the empty value and a warning; it never fails.
func Parse(raw string) CallNumber {
	c, err := TryParse(raw)
	if err != nil {
		slog.Warn("Unparseable call number", "input", raw, "error", err)
	}
	return c
}

// TryParse is Parse for callers that want the failure as an error.
// Blank input yields the empty value without error.
func TryParse(raw string) (CallNumber, error) {
	s := clean(raw)
	if s == "" {
		return CallNumber{}, nil
	}
	m := loosePattern.FindStringSubmatch(s)
	if m == nil {
		return CallNumber{}, fmt.Errorf("%w: %q", ErrUnparseable, raw)
	}

	fields := make([]string, fieldCount)
	copy(fields, m[1:])
	fields[ClassNumber] = stripLeadingZeros(fields[ClassNumber])
	fields[Remainder] = strings.TrimSpace(fields[Remainder])

	if fields[Cutter2Letter] == "" && fields[Cutter2Number] != "" &&
		intValue(fields[Cutter2Number]) > cutter2YearThreshold {
		fields[Remainder] = strings.TrimSpace(fields[Cutter2Number] + " " + fields[Remainder])
		fields[Cutter2Number] = ""
	}

	c := CallNumber{fields: trimFields(fields), display: s}
	if !c.Valid() {
		return CallNumber{}, fmt.Errorf("%w: %q", ErrUnparseable, raw)
	}
	return c, nil
}

// MustParse is Parse for fixtures and constants; it panics on failure.
func MustParse(raw string) CallNumber {
	c, err := TryParse(raw)
	if err != nil {
		panic(err)
	}
	if !c.Valid() {
		panic(fmt.Sprintf("callnumber: blank input %q", raw))
	}
	return c
}

// IsValid reports whether raw has the strict shape of an LC call number:
// class letters followed by at least one digit.
func IsValid(raw string) bool {
	return validPattern.MatchString(clean(raw))
}

// clean trims the input, drops a leading "word/" location prefix, folds
// case and whitespace and undoes the zero padding left by shelfkeys.
func clean(raw string) string {
	s := strings.TrimSpace(raw)
	s = pathPrefix.ReplaceAllString(s, "")
	s = strings.ToUpper(s)
	s = spaceRun.ReplaceAllString(s, " ")
	s = paddedNumber.ReplaceAllString(s, "$1$2")
	return strings.TrimSpace(s)
}

func stripLeadingZeros(s string) string {
	if s == "" {
		return s
	}
	t := strings.TrimLeft(s, "0")
	if t == "" {
		return "0"
	}
	return t
}
