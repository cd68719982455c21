// Package shelf assembles virtual shelf-browse windows: the items filed
// immediately before and after an origin item, in call number order.
//
// The engine sits between two collaborators. A TermIndex returns the
// distinct shelfkeys at or after a starting key on a sorted field, and a
// DocumentLookup resolves a set of keys to the documents filed under
// them. Browser sizes the term request from the window width, page and
// offset mode, fetches one or both directions, reconciles the two
// collaborators when they disagree and returns exactly Width slots.
package shelf

import (
	"context"

	"github.com/c360studio/lccshelf/callnumber"
)

// Field names a sorted, searchable document field.
type Field string

// Fields the engine queries.
const (
	FieldID              Field = "id"
	FieldShelfkey        Field = "shelfkey"
	FieldReverseShelfkey Field = "reverse_shelfkey"
)

// Item is anything that can anchor a browse window.
type Item interface {
	ItemID() string
	Shelfkey() string
	ReverseShelfkey() string
}

// Document is an item as returned by a DocumentLookup.
type Document struct {
	ID              string `msgpack:"id" json:"id"`
	CallNumber      string `msgpack:"call_number" json:"call_number"`
	ShelfkeyValue   string `msgpack:"shelfkey" json:"shelfkey"`
	ReverseKeyValue string `msgpack:"reverse_shelfkey" json:"reverse_shelfkey"`
	Title           string `msgpack:"title,omitempty" json:"title,omitempty"`
}

// NewDocument builds a document with both shelfkeys derived from the
// call number. An unparseable call number leaves the keys empty.
func NewDocument(id, raw, title string) Document {
	cn := callnumber.Parse(raw)
	return Document{
		ID:              id,
		CallNumber:      raw,
		ShelfkeyValue:   cn.Shelfkey(),
		ReverseKeyValue: cn.ReverseShelfkey(),
		Title:           title,
	}
}

// ItemID implements Item.
func (d Document) ItemID() string { return d.ID }

// Shelfkey implements Item.
func (d Document) Shelfkey() string { return d.ShelfkeyValue }

// ReverseShelfkey implements Item.
func (d Document) ReverseShelfkey() string { return d.ReverseKeyValue }

// TermIndex lists distinct values of a sorted field.
type TermIndex interface {
	// Terms returns up to limit distinct values of field that are >= from,
	// in ascending byte order.
	Terms(ctx context.Context, field Field, from string, limit int) ([]string, error)
}

// DocumentLookup resolves field values to documents. Results may come
// back in any order.
type DocumentLookup interface {
	Lookup(ctx context.Context, field Field, values []string) ([]Document, error)
}

// SlotKind tags the content of a window slot.
type SlotKind int

// Slot kinds.
const (
	SlotDocument SlotKind = iota
	SlotMissing
	SlotDuplicate
)

// String returns the slot kind name used in logs and CLI output.
func (k SlotKind) String() string {
	switch k {
	case SlotDocument:
		return "document"
	case SlotMissing:
		return "missing"
	case SlotDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Slot is one position in a window. Document is set only for
// SlotDocument and SlotDuplicate.
type Slot struct {
	Kind     SlotKind  `msgpack:"kind" json:"kind"`
	Document *Document `msgpack:"document,omitempty" json:"document,omitempty"`
}

func documentSlot(d Document) Slot {
	return Slot{Kind: SlotDocument, Document: &d}
}

func missingSlot() Slot {
	return Slot{Kind: SlotMissing}
}

// Window is an ordered browse result. OriginIndex is the origin's slot,
// or -1 when the window does not include the origin.
type Window struct {
	Slots       []Slot `msgpack:"slots" json:"slots"`
	OriginIndex int    `msgpack:"origin_index" json:"origin_index"`
}

// Documents returns the documents in slot order, skipping markers.
func (w Window) Documents() []Document {
	var out []Document
	for _, s := range w.Slots {
		if s.Kind == SlotDocument && s.Document != nil {
			out = append(out, *s.Document)
		}
	}
	return out
}

// Len returns the number of slots.
func (w Window) Len() int {
	return len(w.Slots)
}

func emptyWindow() Window {
	return Window{OriginIndex: -1}
}
