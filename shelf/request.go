package shelf

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/c360studio/lccshelf/callnumber"
)

// ErrUnsupportedOffset is returned for the right offset mode, which has no
// defined window layout.
var ErrUnsupportedOffset = errors.New("unsupported window offset")

// Offset places the origin within the page-0 window.
type Offset string

// Offset modes.
const (
	// OffsetCenter puts the origin in the middle of page 0, left of centre
	// for even widths.
	OffsetCenter Offset = "center"
	// OffsetLeft ends page 0 with the origin, preceded by the items filed
	// before it.
	OffsetLeft Offset = "left"
	// OffsetRight is accepted by ParseOffset but rejected by Browse.
	OffsetRight Offset = "right"
)

// ParseOffset maps a user-supplied mode to an Offset. Blank selects
// OffsetCenter.
func ParseOffset(s string) (Offset, error) {
	switch o := Offset(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return OffsetCenter, nil
	case OffsetCenter, OffsetLeft, OffsetRight:
		return o, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedOffset, s)
	}
}

// Request describes one browse window.
//
// The origin is Origin when it carries both shelfkeys, otherwise the
// document fetched by OriginID (or Origin's id). CallNumber is the
// fallback starting point when no origin resolves.
type Request struct {
	Origin     Item
	OriginID   string
	CallNumber callnumber.CallNumber
	Width      int
	Page       int
	Offset     Offset
}

func (r Request) originID() string {
	if r.OriginID != "" {
		return r.OriginID
	}
	if r.Origin != nil {
		return r.Origin.ItemID()
	}
	return ""
}

// direction is one side of the origin.
type direction int

const (
	previous direction = iota
	next
)

func (d direction) String() string {
	if d == previous {
		return "previous"
	}
	return "next"
}

// field is the sorted field that walks away from the origin in d.
func (d direction) field() Field {
	if d == previous {
		return FieldReverseShelfkey
	}
	return FieldShelfkey
}

// span is the slice of the term run kept for one side of a window:
// terms [start, total) counted from the origin outwards.
type span struct {
	dir   direction
	start int
	total int
}

func (s span) size() int {
	return s.total - s.start
}

// pageInRange reports whether every term count derived from page and
// width fits in an int. Pages beyond it lie far past either end of any
// index.
func pageInRange(width, page int) bool {
	limit := math.MaxInt / (2 * max(width, 1))
	return page >= -limit && page <= limit
}

// pageZeroOffset is how many terms of side d page 0 shows. The origin
// takes the remaining slot.
func pageZeroOffset(offset Offset, d direction, width int) int {
	switch offset {
	case OffsetLeft:
		if d == previous {
			return width - 1
		}
		return 0
	default:
		if d == previous {
			return (width - 1) / 2
		}
		return width / 2
	}
}

// plan returns the sides a window fetches, in display order. A page out
// of range fetches nothing.
func plan(offset Offset, width, page int) ([]span, error) {
	if offset == OffsetRight {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOffset, offset)
	}
	if !pageInRange(width, page) {
		return nil, nil
	}
	if page == 0 {
		if offset == OffsetLeft {
			return []span{{dir: previous, total: pageZeroOffset(offset, previous, width)}}, nil
		}
		return []span{
			{dir: previous, total: pageZeroOffset(offset, previous, width)},
			{dir: next, total: pageZeroOffset(offset, next, width)},
		}, nil
	}

	d := next
	pageTerms := page * width
	if page < 0 {
		d = previous
		pageTerms = -pageTerms
	}
	total := pageZeroOffset(offset, d, width) + pageTerms
	return []span{{dir: d, start: total - width, total: total}}, nil
}
