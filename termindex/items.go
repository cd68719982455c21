package termindex

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/lccshelf/callnumber"
	"github.com/c360studio/lccshelf/shelf"
)

// ItemRecord is one entry of an items file.
type ItemRecord struct {
	ID         string `yaml:"id"`
	CallNumber string `yaml:"call_number"`
	Title      string `yaml:"title,omitempty"`
}

// ReadItems decodes an items file: a YAML list of ItemRecord.
func ReadItems(path string) ([]ItemRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read items file: %w", err)
	}
	var items []ItemRecord
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse items file: %w", err)
	}
	return items, nil
}

// ImportResult reports what Import stored.
type ImportResult struct {
	Stored      int
	Skipped     int
	Implausible int
}

// Import stores every item with a parseable call number in one
// transaction. Items without an id or a usable call number are skipped
// and logged; implausible call numbers are stored but counted.
func (s *Store) Import(ctx context.Context, items []ItemRecord) (ImportResult, error) {
	var res ImportResult
	docs := make([]shelf.Document, 0, len(items))
	for _, it := range items {
		if it.ID == "" {
			s.logger.Warn("Skipping item without id", "call_number", it.CallNumber)
			res.Skipped++
			continue
		}
		cn, err := callnumber.TryParse(it.CallNumber)
		if err != nil || !cn.Valid() {
			s.logger.Warn("Skipping item without a usable call number", "id", it.ID, "call_number", it.CallNumber)
			res.Skipped++
			continue
		}
		if !cn.Plausible() {
			s.logger.Debug("Implausible LC call number", "id", it.ID, "call_number", it.CallNumber)
			res.Implausible++
		}
		docs = append(docs, newDocument(it.ID, cn, it.Title))
	}
	if err := s.Put(ctx, docs...); err != nil {
		return ImportResult{}, err
	}
	res.Stored = len(docs)
	s.logger.Info("Items imported",
		"stored", res.Stored,
		"skipped", res.Skipped,
		"implausible", res.Implausible)
	return res, nil
}
