package classification

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/c360studio/lccshelf/callnumber"
)

// Kind tags the four node variants.
type Kind int

// Node kinds, outermost first.
const (
	KindRoot Kind = iota
	KindClass
	KindSubclass
	KindRange
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindClass:
		return "class"
	case KindSubclass:
		return "subclass"
	case KindRange:
		return "range"
	default:
		return "unknown"
	}
}

// exactSubclasses are three-letter subclasses filed inside another
// subclass's numeric span; they match on their letters alone.
var exactSubclasses = map[string]bool{
	"DJK": true,
	"KBM": true,
	"KBP": true,
}

// Node is one entry of the outline. Nodes are read-only once built.
type Node struct {
	Kind       Kind
	Name       string
	ASCIIName  string
	SortAs     string
	Code       string
	StartLabel string
	EndLabel   string
	Note       string
	Artificial bool
	Depth      int
	Children   []*Node

	// letters is the class letters that digit-only range labels inherit.
	letters string
	bounds  *bounds
}

// bounds is shared between a node and its pruned copies.
type bounds struct {
	once       sync.Once
	start, end callnumber.CallNumber
}

// Start returns the lower bound of the node's range, materialised on
// first use. The root has no bounds.
func (n *Node) Start() callnumber.CallNumber {
	n.materialize()
	return n.bounds.start
}

// End returns the upper bound of the node's range.
func (n *Node) End() callnumber.CallNumber {
	n.materialize()
	return n.bounds.end
}

func (n *Node) materialize() {
	n.bounds.once.Do(func() {
		b := n.bounds
		switch n.Kind {
		case KindRoot:
			return
		case KindClass:
			b.start = callnumber.Parse(n.Code)
			b.end = callnumber.UpperBound(padZ(n.Code))
		case KindSubclass:
			lo, hi := splitLabel(n.Code)
			if hi == "" {
				hi = lo
			}
			b.start = callnumber.Parse(lo)
			b.end = callnumber.UpperBound(hi)
		case KindRange:
			lo, hi := splitLabel(n.Code)
			lo = withLetters(lo, n.letters)
			if hi == "" {
				hi = lo
			} else {
				hi = withLetters(hi, leadingLetters(lo))
			}
			b.start = callnumber.Parse(lo)
			b.end = callnumber.Parse(hi)
		}
		if n.StartLabel != "" {
			b.start = callnumber.Parse(n.StartLabel)
		}
		if n.EndLabel != "" {
			b.end = callnumber.Parse(n.EndLabel)
		}
	})
}

// Contains reports whether cn falls under this node.
//
// A class contains every number whose letters begin with the class
// letters. Exceptional and artificial subclasses match their letters
// exactly; other subclasses and ranges use their numeric bounds.
func (n *Node) Contains(cn callnumber.CallNumber) bool {
	if !cn.Valid() {
		return false
	}
	switch n.Kind {
	case KindRoot:
		return true
	case KindClass:
		return strings.HasPrefix(cn.ClassLetters(), n.Code)
	case KindSubclass:
		if n.exactMatch() {
			return cn.ClassLetters() == n.Code
		}
		return cn.Between(n.Start(), n.End())
	case KindRange:
		return cn.Between(n.Start(), n.End())
	default:
		return false
	}
}

func (n *Node) exactMatch() bool {
	if strings.Contains(n.Code, "-") || n.StartLabel != "" || n.EndLabel != "" {
		return false
	}
	return exactSubclasses[n.Code] || n.Artificial
}

// Label is the code followed by the name, as shown in listings.
func (n *Node) Label() string {
	if n.Code == "" {
		return n.Name
	}
	return n.Code + " " + n.Name
}

// splitLabel splits "KJ-KKZ" or "1-939" into its two ends.
func splitLabel(label string) (string, string) {
	lo, hi, _ := strings.Cut(label, "-")
	return strings.TrimSpace(lo), strings.TrimSpace(hi)
}

func withLetters(s, letters string) string {
	if s != "" && s[0] >= '0' && s[0] <= '9' {
		return letters + s
	}
	return s
}

func leadingLetters(s string) string {
	i := 0
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		i++
	}
	return s[:i]
}

func padZ(letters string) string {
	for len(letters) < 3 {
		letters += "Z"
	}
	return letters
}

// asciiName strips diacritics and drops anything left outside ASCII.
func asciiName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	for _, r := range folded {
		if r < unicode.MaxASCII {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
