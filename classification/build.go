package classification

import (
	"fmt"
	"strings"
)

// rootName names the synthetic node above the top-level classes.
const rootName = "Library of Congress Classification"

// Build folds top-level class records into an outline rooted at a
// synthetic KindRoot node. Records keep their input order.
func Build(records []Record) (*Node, error) {
	root := &Node{
		Kind:      KindRoot,
		Name:      rootName,
		ASCIIName: rootName,
		bounds:    &bounds{},
	}
	for _, rec := range records {
		child, err := buildNode(rec, KindRoot, 1, "")
		if err != nil {
			return nil, err
		}
		root.Children = append(root.Children, child)
	}
	return root, nil
}

func buildNode(rec Record, parent Kind, depth int, letters string) (*Node, error) {
	kind, code, err := rec.kind()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(rec.Name) == "" {
		return nil, fmt.Errorf("%w: %s %q has no name", ErrInvalidRecord, kind, code)
	}
	if !allowedUnder(kind, parent) {
		return nil, fmt.Errorf("%w: %s %q cannot appear under a %s", ErrInvalidRecord, kind, code, parent)
	}

	switch kind {
	case KindClass:
		letters = code
	case KindSubclass:
		lo, _ := splitLabel(code)
		letters = leadingLetters(lo)
	case KindRange:
		lo, _ := splitLabel(code)
		if l := leadingLetters(lo); l != "" {
			letters = l
		}
	}

	n := &Node{
		Kind:       kind,
		Name:       strings.TrimSpace(rec.Name),
		ASCIIName:  asciiName(rec.Name),
		SortAs:     rec.SortAs,
		Code:       code,
		StartLabel: strings.TrimSpace(rec.Start),
		EndLabel:   strings.TrimSpace(rec.End),
		Note:       rec.Note,
		Artificial: rec.artificial(),
		Depth:      depth,
		letters:    letters,
		bounds:     &bounds{},
	}
	for _, sec := range rec.Sections {
		child, err := buildNode(sec, kind, depth+1, letters)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", code, err)
		}
		n.Children = append(n.Children, child)
	}
	return n, nil
}

// allowedUnder encodes the outline shape: classes only at the top,
// subclasses under classes or other subclasses, ranges anywhere below a
// class.
func allowedUnder(kind, parent Kind) bool {
	switch kind {
	case KindClass:
		return parent == KindRoot
	case KindSubclass:
		return parent == KindClass || parent == KindSubclass
	case KindRange:
		return parent != KindRoot
	default:
		return false
	}
}
