package classification

import (
	"fmt"
	"log/slog"
	"strings"
)

// Problem names a class of outline inconsistency.
type Problem string

// Outline problems reported by Validate.
const (
	ProblemBackwards Problem = "backwards range"
	ProblemStray     Problem = "stray"
	ProblemBadStart  Problem = "bad start"
	ProblemBadEnd    Problem = "bad end"
	ProblemOverlap   Problem = "overlap"
)

// overlapAllowed lists subclasses known to share numeric space with a
// neighbour in the published outline.
var overlapAllowed = map[string]bool{
	"DJK": true,
	"KBM": true,
	"KBP": true,
	"KBR": true,
	"KBU": true,
	"KDZ": true,
}

// Diagnostic is one inconsistency found by Validate.
type Diagnostic struct {
	Problem Problem
	Path    string
	Detail  string
}

// String renders the diagnostic for logs.
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s (%s)", d.Problem, d.Path, d.Detail)
}

// Validate checks every node's children against the parent's bounds and
// against each other. Nothing is rejected; problems are returned.
func Validate(root *Node) []Diagnostic {
	var out []Diagnostic
	validateNode(root, nil, &out)
	return out
}

// LogDiagnostics writes each diagnostic to logger at warn level.
func LogDiagnostics(logger *slog.Logger, diags []Diagnostic) {
	for _, d := range diags {
		logger.Warn("Outline inconsistency",
			"problem", string(d.Problem),
			"path", d.Path,
			"detail", d.Detail)
	}
}

func validateNode(n *Node, trail []string, out *[]Diagnostic) {
	if n.Kind != KindRoot {
		trail = append(trail, n.Code)
	}
	ps, pe := n.Start(), n.End()
	bounded := n.Kind != KindRoot && ps.Valid() && pe.Valid()

	var prev *Node
	for _, child := range n.Children {
		path := strings.Join(append(trail[:len(trail):len(trail)], child.Code), " > ")
		cs, ce := child.Start(), child.End()

		if cs.Valid() && ce.Valid() && cs.Compare(ce) > 0 {
			*out = append(*out, Diagnostic{ProblemBackwards, path, fmt.Sprintf("%s > %s", cs, ce)})
		}

		if bounded && cs.Valid() && ce.Valid() {
			badStart := cs.Compare(ps) < 0 || cs.Compare(pe) > 0
			badEnd := ce.Compare(pe) > 0 || ce.Compare(ps) < 0
			switch {
			case badStart && badEnd:
				*out = append(*out, Diagnostic{ProblemStray, path, fmt.Sprintf("%s-%s outside %s-%s", cs, ce, ps, pe)})
			case badStart:
				*out = append(*out, Diagnostic{ProblemBadStart, path, fmt.Sprintf("%s outside %s-%s", cs, ps, pe)})
			case badEnd:
				*out = append(*out, Diagnostic{ProblemBadEnd, path, fmt.Sprintf("%s outside %s-%s", ce, ps, pe)})
			}
		}

		if prev != nil && !overlapAllowed[prev.Code] && !overlapAllowed[child.Code] {
			if prevEnd := prev.End(); prevEnd.Valid() && cs.Valid() && prevEnd.Compare(cs) > 0 {
				*out = append(*out, Diagnostic{ProblemOverlap, path, fmt.Sprintf("starts at %s before %s ends at %s", cs, prev.Code, prevEnd)})
			}
		}
		prev = child

		validateNode(child, trail, out)
	}
}
