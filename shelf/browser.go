package shelf

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/lccshelf/callnumber"
)

// Width limits applied when the caller does not configure their own.
const (
	DefaultWidth    = 7
	DefaultMaxWidth = 100
)

// Browser assembles browse windows from a term index and a document
// lookup. It holds no per-request state and is safe for concurrent use.
type Browser struct {
	terms        TermIndex
	docs         DocumentLookup
	logger       *slog.Logger
	cache        Cache
	cacheTTL     time.Duration
	metrics      *Metrics
	defaultWidth int
	maxWidth     int
}

// BrowserOption configures a Browser.
type BrowserOption func(*Browser)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) BrowserOption {
	return func(b *Browser) {
		b.logger = logger
	}
}

// WithCache memoises windows in c for ttl.
func WithCache(c Cache, ttl time.Duration) BrowserOption {
	return func(b *Browser) {
		b.cache = c
		b.cacheTTL = ttl
	}
}

// WithMetrics records browse outcomes in m.
func WithMetrics(m *Metrics) BrowserOption {
	return func(b *Browser) {
		b.metrics = m
	}
}

// WithWidthLimits sets the width used when a request has none and the
// largest width served.
func WithWidthLimits(defaultWidth, maxWidth int) BrowserOption {
	return func(b *Browser) {
		if defaultWidth > 0 {
			b.defaultWidth = defaultWidth
		}
		if maxWidth > 0 {
			b.maxWidth = maxWidth
		}
	}
}

// NewBrowser creates a browser over the given collaborators.
func NewBrowser(terms TermIndex, docs DocumentLookup, opts ...BrowserOption) *Browser {
	b := &Browser{
		terms:        terms,
		docs:         docs,
		logger:       slog.Default(),
		defaultWidth: DefaultWidth,
		maxWidth:     DefaultMaxWidth,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Browse returns the window described by req. The only error is
// ErrUnsupportedOffset; collaborator failures degrade the window instead.
func (b *Browser) Browse(ctx context.Context, req Request) (Window, error) {
	if req.Offset == "" {
		req.Offset = OffsetCenter
	}
	req.Width = b.width(req.Width)
	spans, err := plan(req.Offset, req.Width, req.Page)
	if err != nil {
		return Window{}, err
	}
	if !pageInRange(req.Width, req.Page) {
		b.logger.Warn("Browse page out of range", "page", req.Page, "width", req.Width)
		w := emptyWindow()
		w.Slots = pad(nil, req.Width, next)
		return w, nil
	}

	compute := func(ctx context.Context) (Window, error) {
		return b.browse(ctx, req, spans), nil
	}
	key := cacheKey(req)
	if b.cache == nil || key == "" {
		return b.browse(ctx, req, spans), nil
	}
	w, err := b.cache.Fetch(ctx, key, b.cacheTTL, compute)
	if err != nil {
		b.logger.Warn("Window cache failed; computing directly", "key", key, "error", err)
		return b.browse(ctx, req, spans), nil
	}
	return w, nil
}

// BrowseFrom pages through the shelf from a literal call number with no
// origin item. Page p >= 0 covers the terms [p*width, (p+1)*width) at or
// after cn; negative pages walk backwards from cn.
func (b *Browser) BrowseFrom(ctx context.Context, cn callnumber.CallNumber, width, page int) (Window, error) {
	return b.Browse(ctx, Request{CallNumber: cn, Width: width, Page: page})
}

func (b *Browser) width(w int) int {
	if w <= 0 {
		w = b.defaultWidth
	}
	return min(w, b.maxWidth)
}

func (b *Browser) browse(ctx context.Context, req Request, spans []span) Window {
	log := b.logger.With(
		"request_id", uuid.New().String(),
		"width", req.Width,
		"page", req.Page,
		"offset", string(req.Offset))

	origin, ok := b.resolveOrigin(ctx, log, req)
	if !ok {
		if req.CallNumber.Valid() {
			return b.browseFrom(ctx, log, req.CallNumber, req.Width, req.Page)
		}
		log.Warn("Browse origin could not be resolved", "origin_id", req.originID())
		return emptyWindow()
	}
	b.metrics.window(string(req.Offset), windowDirection(req.Offset, req.Page))

	w := emptyWindow()
	for _, sp := range spans {
		if sp.dir == next {
			w.Slots = append(w.Slots, b.side(ctx, log, sp, origin.Shelfkey(), true)...)
			continue
		}
		w.Slots = append(w.Slots, b.side(ctx, log, sp, origin.ReverseShelfkey(), true)...)
		if req.Page == 0 {
			w.OriginIndex = len(w.Slots)
			w.Slots = append(w.Slots, documentSlot(originDocument(origin)))
		}
	}
	return b.finish(log, w, req.Width)
}

func (b *Browser) browseFrom(ctx context.Context, log *slog.Logger, cn callnumber.CallNumber, width, page int) Window {
	log = log.With("call_number", cn.String())
	w := emptyWindow()
	if page >= 0 {
		b.metrics.window("literal", next.String())
		sp := span{dir: next, start: page * width, total: (page + 1) * width}
		w.Slots = b.side(ctx, log, sp, cn.Shelfkey(), false)
	} else {
		b.metrics.window("literal", previous.String())
		n := -page
		sp := span{dir: previous, start: (n - 1) * width, total: n * width}
		w.Slots = b.side(ctx, log, sp, cn.ReverseShelfkey(), true)
	}
	return b.finish(log, w, width)
}

// resolveOrigin returns the origin when req carries both keys, or the
// document fetched by id.
func (b *Browser) resolveOrigin(ctx context.Context, log *slog.Logger, req Request) (Item, bool) {
	if req.Origin != nil && req.Origin.Shelfkey() != "" && req.Origin.ReverseShelfkey() != "" {
		return req.Origin, true
	}
	id := req.originID()
	if id == "" {
		return nil, false
	}
	for _, d := range b.lookup(ctx, log, FieldID, []string{id}) {
		if d.ID == id && d.ShelfkeyValue != "" && d.ReverseKeyValue != "" {
			return d, true
		}
	}
	return nil, false
}

// side fetches the slots for one span, in ascending shelf order, always
// exactly sp.size() long. With skipFrom set, a leading term equal to from
// is the origin itself and is not counted.
func (b *Browser) side(ctx context.Context, log *slog.Logger, sp span, from string, skipFrom bool) []Slot {
	if sp.size() <= 0 {
		return nil
	}
	field := sp.dir.field()
	log = log.With("direction", sp.dir.String(), "field", string(field), "from", from)

	limit := sp.total
	if skipFrom {
		limit++
	}
	terms, err := b.terms.Terms(ctx, field, from, limit)
	if err != nil {
		log.Error("Term lookup failed", "error", err)
		b.metrics.absorbedError("terms")
		terms = nil
	}
	if skipFrom && len(terms) > 0 && terms[0] == from {
		terms = terms[1:]
	}
	if len(terms) > sp.total {
		terms = terms[:sp.total]
	}
	if sp.start < len(terms) {
		terms = terms[sp.start:]
	} else {
		terms = nil
	}

	docs := b.lookup(ctx, log, field, terms)
	slots := b.reconcile(log, sp.dir, docs, len(terms))
	if short := sp.size() - len(slots); short > 0 {
		log.Debug("Shelf ends before window edge", "slots", len(slots), "want", sp.size())
		slots = pad(slots, short, sp.dir)
		b.metrics.missingSlots(short)
	}
	return slots
}

func (b *Browser) lookup(ctx context.Context, log *slog.Logger, field Field, values []string) []Document {
	if len(values) == 0 {
		return nil
	}
	docs, err := b.docs.Lookup(ctx, field, values)
	if err != nil {
		log.Error("Document lookup failed", "lookup_field", string(field), "values", len(values), "error", err)
		b.metrics.absorbedError("documents")
		return nil
	}
	return docs
}

// reconcile orders docs along the shelf and forces them to want slots.
// Missing slots go at the end farthest from the origin; surplus documents
// are dropped from that end too.
func (b *Browser) reconcile(log *slog.Logger, dir direction, docs []Document, want int) []Slot {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].ShelfkeyValue != docs[j].ShelfkeyValue {
			return docs[i].ShelfkeyValue < docs[j].ShelfkeyValue
		}
		return docs[i].ID < docs[j].ID
	})

	switch {
	case len(docs) < want:
		log.Error("Document lookup returned fewer documents than terms",
			"terms", want, "documents", len(docs))
		b.metrics.missingSlots(want - len(docs))
	case len(docs) > want:
		log.Error("Document lookup returned more documents than terms",
			"terms", want, "documents", len(docs))
		b.metrics.surplusDocuments(len(docs) - want)
		if dir == previous {
			docs = docs[len(docs)-want:]
		} else {
			docs = docs[:want]
		}
	}

	slots := make([]Slot, 0, want)
	for _, d := range docs {
		slots = append(slots, documentSlot(d))
	}
	return pad(slots, want-len(slots), dir)
}

// finish marks repeated documents and forces the window to width slots.
func (b *Browser) finish(log *slog.Logger, w Window, width int) Window {
	seen := make(map[string]int, len(w.Slots))
	for i, s := range w.Slots {
		if s.Kind != SlotDocument {
			continue
		}
		if first, dup := seen[s.Document.ID]; dup {
			log.Error("Duplicate document in browse window", "id", s.Document.ID, "slot", i, "first_slot", first)
			w.Slots[i].Kind = SlotDuplicate
			b.metrics.duplicateSlot()
			continue
		}
		seen[s.Document.ID] = i
	}

	switch {
	case len(w.Slots) < width:
		b.metrics.missingSlots(width - len(w.Slots))
		w.Slots = pad(w.Slots, width-len(w.Slots), next)
	case len(w.Slots) > width:
		w.Slots = w.Slots[:width]
		if w.OriginIndex >= width {
			w.OriginIndex = -1
		}
	}

	log.Debug("Browse window assembled",
		"slots", len(w.Slots),
		"documents", len(w.Documents()),
		"origin_index", w.OriginIndex)
	return w
}

// pad adds n missing markers at the head (previous) or tail (next).
func pad(slots []Slot, n int, dir direction) []Slot {
	if n <= 0 {
		return slots
	}
	markers := make([]Slot, n)
	for i := range markers {
		markers[i] = missingSlot()
	}
	if dir == previous {
		return append(markers, slots...)
	}
	return append(slots, markers...)
}

// windowDirection labels the sides a window spans.
func windowDirection(offset Offset, page int) string {
	switch {
	case page < 0 || (page == 0 && offset == OffsetLeft):
		return previous.String()
	case page > 0:
		return next.String()
	default:
		return "both"
	}
}

func originDocument(origin Item) Document {
	switch d := origin.(type) {
	case Document:
		return d
	case *Document:
		return *d
	default:
		return Document{
			ID:              origin.ItemID(),
			ShelfkeyValue:   origin.Shelfkey(),
			ReverseKeyValue: origin.ReverseShelfkey(),
		}
	}
}
