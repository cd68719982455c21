package shelf

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// fakeIndex is an in-memory term index and document lookup. Terms come
// from every document, lookups skip hidden ones, mimicking an index that
// holds entries for records the lookup filters out.
type fakeIndex struct {
	docs   []Document
	hidden map[string]bool

	termsErr  error
	lookupErr error

	mu          sync.Mutex
	termCalls   int
	lookupCalls int
}

func newFakeIndex(pairs ...string) *fakeIndex {
	f := &fakeIndex{hidden: map[string]bool{}}
	for i := 0; i+1 < len(pairs); i += 2 {
		f.add(pairs[i], pairs[i+1])
	}
	return f
}

func (f *fakeIndex) add(id, cn string) Document {
	d := NewDocument(id, cn, "")
	f.docs = append(f.docs, d)
	return d
}

func (f *fakeIndex) doc(id string) Document {
	for _, d := range f.docs {
		if d.ID == id {
			return d
		}
	}
	panic(fmt.Sprintf("no document %q", id))
}

func value(d Document, field Field) string {
	switch field {
	case FieldID:
		return d.ID
	case FieldShelfkey:
		return d.ShelfkeyValue
	case FieldReverseShelfkey:
		return d.ReverseKeyValue
	}
	return ""
}

func (f *fakeIndex) Terms(_ context.Context, field Field, from string, limit int) ([]string, error) {
	f.mu.Lock()
	f.termCalls++
	f.mu.Unlock()
	if f.termsErr != nil {
		return nil, f.termsErr
	}
	seen := map[string]bool{}
	var out []string
	for _, d := range f.docs {
		v := value(d, field)
		if v >= from && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeIndex) Lookup(_ context.Context, field Field, values []string) ([]Document, error) {
	f.mu.Lock()
	f.lookupCalls++
	f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	want := map[string]bool{}
	for _, v := range values {
		want[v] = true
	}
	var out []Document
	// Reverse insertion order so callers cannot rely on it.
	for i := len(f.docs) - 1; i >= 0; i-- {
		d := f.docs[i]
		if want[value(d, field)] && !f.hidden[d.ID] {
			out = append(out, d)
		}
	}
	return out, nil
}

var errIndexDown = errors.New("index unavailable")

// mapCache is a Cache that never expires entries.
type mapCache struct {
	entries map[string]Window
	hits    int
	ttl     time.Duration
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string]Window{}}
}

func (c *mapCache) Fetch(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (Window, error)) (Window, error) {
	c.ttl = ttl
	if w, ok := c.entries[key]; ok {
		c.hits++
		return w, nil
	}
	w, err := compute(ctx)
	if err != nil {
		return Window{}, err
	}
	c.entries[key] = w
	return w, nil
}
