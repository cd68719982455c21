// Package classification builds the Library of Congress classification
// outline (class → subclass → range) from YAML records and answers
// containment and navigation queries for call numbers.
//
// The outline is built once into an immutable Registry and shared by
// readers without locking. A Holder gives callers an explicit rebuild
// point; Watcher uses it to reload the outline when its files change.
package classification

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidRecord is returned for records that do not fit the outline schema.
var ErrInvalidRecord = errors.New("invalid classification record")

// Record is one entry of an outline file. Each file holds a single
// top-level class record whose sections nest recursively. Exactly one of
// Class, Subclass or Range must be set.
type Record struct {
	Name     string   `yaml:"name"`
	SortAs   string   `yaml:"sort_as,omitempty"`
	Class    string   `yaml:"class,omitempty"`
	Subclass string   `yaml:"subclass,omitempty"`
	Range    string   `yaml:"range,omitempty"`
	Start    string   `yaml:"start,omitempty"`
	End      string   `yaml:"end,omitempty"`
	Note     string   `yaml:"note,omitempty"`
	LCCO     *bool    `yaml:"lcco,omitempty"`
	Sections []Record `yaml:"sections,omitempty"`
}

// DecodeRecord parses a single outline document. Unknown keys are rejected.
func DecodeRecord(data []byte) (Record, error) {
	var rec Record
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rec); err != nil {
		return Record{}, fmt.Errorf("decode outline record: %w", err)
	}
	return rec, nil
}

// kind reports which node kind the record describes.
func (r Record) kind() (Kind, string, error) {
	set := 0
	var kind Kind
	var code string
	if s := strings.TrimSpace(r.Class); s != "" {
		set++
		kind, code = KindClass, strings.ToUpper(s)
	}
	if s := strings.TrimSpace(r.Subclass); s != "" {
		set++
		kind, code = KindSubclass, strings.ToUpper(s)
	}
	if s := strings.TrimSpace(r.Range); s != "" {
		set++
		kind, code = KindRange, strings.ToUpper(s)
	}
	if set != 1 {
		return 0, "", fmt.Errorf("%w: %q must set exactly one of class, subclass, range", ErrInvalidRecord, r.Name)
	}
	return kind, code, nil
}

// artificial reports whether the record is absent from the published outline.
func (r Record) artificial() bool {
	return r.LCCO != nil && !*r.LCCO
}
