package shelf

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/lccshelf/callnumber"
)

// shelfFixture holds fifteen items in shelf order, d01 through d15.
func shelfFixture() *fakeIndex {
	return newFakeIndex(
		"d01", "A1",
		"d02", "A2",
		"d03", "B1",
		"d04", "B50",
		"d05", "C1",
		"d06", "D10",
		"d07", "D20",
		"d08", "QA76.1",
		"d09", "QA76.47",
		"d10", "QA76.5",
		"d11", "QA77",
		"d12", "QB1",
		"d13", "R5",
		"d14", "S10",
		"d15", "T100",
	)
}

const missing = "-"

// layout renders a window as document ids, with "-" for missing slots and
// "dup:<id>" for duplicates.
func layout(w Window) []string {
	out := make([]string, len(w.Slots))
	for i, s := range w.Slots {
		switch s.Kind {
		case SlotDocument:
			out[i] = s.Document.ID
		case SlotDuplicate:
			out[i] = "dup:" + s.Document.ID
		default:
			out[i] = missing
		}
	}
	return out
}

// ids lists the documents of a window, skipping markers.
func ids(w Window) []string {
	var out []string
	for _, d := range w.Documents() {
		out = append(out, d.ID)
	}
	return out
}

func TestBrowse_HappyPath(t *testing.T) {
	idx := shelfFixture()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	b := NewBrowser(idx, idx, WithMetrics(metrics))

	w, err := b.Browse(context.Background(), Request{Origin: idx.doc("d08"), Width: 7})
	require.NoError(t, err)

	assert.Equal(t, []string{"d05", "d06", "d07", "d08", "d09", "d10", "d11"}, layout(w))
	assert.Equal(t, 3, w.OriginIndex)
	assert.Len(t, w.Documents(), 7)
	assert.Equal(t, 2, idx.termCalls, "one term lookup per side")
	assert.Equal(t, 2, idx.lookupCalls, "one document lookup per side")

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.windows.WithLabelValues("center", "both")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.missing))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.duplicates))
}

func TestBrowse_EvenWidthPutsOriginLeftOfCentre(t *testing.T) {
	idx := shelfFixture()
	b := NewBrowser(idx, idx)

	w, err := b.Browse(context.Background(), Request{Origin: idx.doc("d08"), Width: 6})
	require.NoError(t, err)

	assert.Equal(t, []string{"d06", "d07", "d08", "d09", "d10", "d11"}, layout(w))
	assert.Equal(t, 2, w.OriginIndex)
}

func TestBrowse_Paging(t *testing.T) {
	idx := shelfFixture()
	b := NewBrowser(idx, idx)
	origin := idx.doc("d08")

	tests := []struct {
		name       string
		offset     Offset
		width      int
		page       int
		want       []string
		wantOrigin int
	}{
		{"center next page", OffsetCenter, 7, 1, []string{"d12", "d13", "d14", "d15", missing, missing, missing}, -1},
		{"center previous page", OffsetCenter, 7, -1, []string{missing, missing, missing, "d01", "d02", "d03", "d04"}, -1},
		{"center narrow next", OffsetCenter, 3, 1, []string{"d10", "d11", "d12"}, -1},
		{"center narrow second next", OffsetCenter, 3, 2, []string{"d13", "d14", "d15"}, -1},
		{"center narrow previous", OffsetCenter, 3, -1, []string{"d04", "d05", "d06"}, -1},
		{"left page zero ends with origin", OffsetLeft, 4, 0, []string{"d05", "d06", "d07", "d08"}, 3},
		{"left previous page", OffsetLeft, 4, -1, []string{"d01", "d02", "d03", "d04"}, -1},
		{"left second previous page", OffsetLeft, 4, -2, []string{missing, missing, missing, missing}, -1},
		{"left next page", OffsetLeft, 4, 1, []string{"d09", "d10", "d11", "d12"}, -1},
		{"left second next page", OffsetLeft, 4, 2, []string{"d13", "d14", "d15", missing}, -1},
		{"left width one", OffsetLeft, 1, 0, []string{"d08"}, 0},
		{"left width one previous", OffsetLeft, 1, -1, []string{"d07"}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := b.Browse(context.Background(), Request{
				Origin: origin,
				Width:  tt.width,
				Page:   tt.page,
				Offset: tt.offset,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, layout(w))
			assert.Equal(t, tt.wantOrigin, w.OriginIndex)
		})
	}
}

func TestBrowse_LeftPagesTileTheShelf(t *testing.T) {
	idx := shelfFixture()
	b := NewBrowser(idx, idx)

	var seen []string
	for page := -3; page <= 3; page++ {
		w, err := b.Browse(context.Background(), Request{
			Origin: idx.doc("d08"),
			Width:  4,
			Page:   page,
			Offset: OffsetLeft,
		})
		require.NoError(t, err)
		seen = append(seen, ids(w)...)
	}
	assert.Equal(t, []string{
		"d01", "d02", "d03", "d04", "d05", "d06", "d07", "d08",
		"d09", "d10", "d11", "d12", "d13", "d14", "d15",
	}, seen, "every item once, in shelf order")
}

func TestBrowse_PageOutOfRange(t *testing.T) {
	allMissing := []string{missing, missing, missing, missing, missing, missing, missing}
	pages := []int{
		math.MaxInt,
		math.MinInt,
		math.MaxInt / 2,
		math.MinInt / 2,
		math.MaxInt / 14,
		-(math.MaxInt / 14),
	}

	for _, page := range pages {
		t.Run(fmt.Sprintf("browse %d", page), func(t *testing.T) {
			idx := shelfFixture()
			b := NewBrowser(idx, idx)

			for _, offset := range []Offset{OffsetCenter, OffsetLeft} {
				w, err := b.Browse(context.Background(), Request{Origin: idx.doc("d08"), Width: 7, Page: page, Offset: offset})
				require.NoError(t, err)
				assert.Equal(t, allMissing, layout(w))
				assert.Equal(t, -1, w.OriginIndex)
			}
		})

		t.Run(fmt.Sprintf("browse from %d", page), func(t *testing.T) {
			idx := shelfFixture()
			b := NewBrowser(idx, idx)

			w, err := b.BrowseFrom(context.Background(), callnumber.MustParse("QA76"), 7, page)
			require.NoError(t, err)
			assert.Equal(t, allMissing, layout(w))
			assert.Equal(t, -1, w.OriginIndex)
		})
	}

	t.Run("beyond the bound skips the index", func(t *testing.T) {
		idx := shelfFixture()
		b := NewBrowser(idx, idx)

		_, err := b.Browse(context.Background(), Request{OriginID: "d08", Width: 7, Page: math.MaxInt})
		require.NoError(t, err)
		assert.Zero(t, idx.termCalls)
		assert.Zero(t, idx.lookupCalls)
	})
}

func TestBrowse_FewerDocumentsThanTerms(t *testing.T) {
	idx := shelfFixture()
	idx.hidden["d10"] = true
	idx.hidden["d11"] = true
	metrics := NewMetrics(prometheus.NewRegistry())
	var logs bytes.Buffer
	b := NewBrowser(idx, idx, WithMetrics(metrics), WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	w, err := b.Browse(context.Background(), Request{Origin: idx.doc("d08"), Width: 7})
	require.NoError(t, err)

	assert.Equal(t, []string{"d05", "d06", "d07", "d08", "d09", missing, missing}, layout(w))
	assert.Len(t, w.Documents(), 5)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.missing))

	out := logs.String()
	assert.Contains(t, out, `level=ERROR msg="Document lookup returned fewer documents than terms"`)
	assert.Contains(t, out, "request_id=")
	assert.Contains(t, out, "direction=next field=shelfkey from=")
	assert.Contains(t, out, "terms=3 documents=1")
}

func TestBrowse_FewerDocumentsPadsPreviousAtHead(t *testing.T) {
	idx := shelfFixture()
	idx.hidden["d06"] = true
	b := NewBrowser(idx, idx)

	w, err := b.Browse(context.Background(), Request{Origin: idx.doc("d08"), Width: 7})
	require.NoError(t, err)

	assert.Equal(t, []string{missing, "d05", "d07", "d08", "d09", "d10", "d11"}, layout(w))
	assert.Equal(t, 3, w.OriginIndex)
}

func TestBrowse_MoreDocumentsThanTerms(t *testing.T) {
	idx := shelfFixture()
	idx.add("d09b", "QA76.47")
	metrics := NewMetrics(prometheus.NewRegistry())
	b := NewBrowser(idx, idx, WithMetrics(metrics))

	w, err := b.Browse(context.Background(), Request{Origin: idx.doc("d08"), Width: 7})
	require.NoError(t, err)

	assert.Equal(t, []string{"d05", "d06", "d07", "d08", "d09", "d09b", "d10"}, layout(w))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.surplus))
}

func TestBrowse_MismatchLogsError(t *testing.T) {
	idx := shelfFixture()
	idx.add("d09b", "QA76.47")
	var logs bytes.Buffer
	b := NewBrowser(idx, idx, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	_, err := b.Browse(context.Background(), Request{Origin: idx.doc("d08"), Width: 7})
	require.NoError(t, err)

	out := logs.String()
	assert.Contains(t, out, `level=ERROR msg="Document lookup returned more documents than terms"`)
	assert.Contains(t, out, "terms=3 documents=4")
}

func TestBrowse_DuplicatesAreMarked(t *testing.T) {
	idx := shelfFixture()
	// A second record under the origin's id, filed further along.
	idx.add("d08", "QA76.48")
	metrics := NewMetrics(prometheus.NewRegistry())
	var logs bytes.Buffer
	b := NewBrowser(idx, idx, WithMetrics(metrics), WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	w, err := b.Browse(context.Background(), Request{Origin: idx.doc("d08"), Width: 7})
	require.NoError(t, err)

	assert.Equal(t, []string{"d05", "d06", "d07", "d08", "d09", "dup:d08", "d10"}, layout(w))
	assert.Equal(t, 3, w.OriginIndex)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.duplicates))

	out := logs.String()
	assert.Contains(t, out, `level=ERROR msg="Duplicate document in browse window"`)
	assert.Contains(t, out, "id=d08 slot=5 first_slot=3")
}

func TestBrowse_OriginResolution(t *testing.T) {
	idx := shelfFixture()
	b := NewBrowser(idx, idx)
	want := []string{"d05", "d06", "d07", "d08", "d09", "d10", "d11"}

	t.Run("by id", func(t *testing.T) {
		w, err := b.Browse(context.Background(), Request{OriginID: "d08", Width: 7})
		require.NoError(t, err)
		assert.Equal(t, want, layout(w))
	})

	t.Run("item without keys is re-fetched", func(t *testing.T) {
		w, err := b.Browse(context.Background(), Request{Origin: Document{ID: "d08"}, Width: 7})
		require.NoError(t, err)
		assert.Equal(t, want, layout(w))
		assert.Equal(t, "QA76.1", w.Slots[3].Document.CallNumber)
	})

	t.Run("unresolved without call number", func(t *testing.T) {
		w, err := b.Browse(context.Background(), Request{OriginID: "nope", Width: 7})
		require.NoError(t, err)
		assert.Empty(t, w.Slots)
		assert.Equal(t, -1, w.OriginIndex)
	})

	t.Run("nothing at all", func(t *testing.T) {
		w, err := b.Browse(context.Background(), Request{Width: 7})
		require.NoError(t, err)
		assert.Empty(t, w.Slots)
	})

	t.Run("unresolved falls back to call number", func(t *testing.T) {
		w, err := b.Browse(context.Background(), Request{
			OriginID:   "nope",
			CallNumber: callnumber.MustParse("QA76.1"),
			Width:      7,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"d08", "d09", "d10", "d11", "d12", "d13", "d14"}, layout(w))
		assert.Equal(t, -1, w.OriginIndex)
	})
}

func TestBrowseFrom(t *testing.T) {
	idx := shelfFixture()
	b := NewBrowser(idx, idx)
	start := callnumber.MustParse("QA76.2")

	tests := []struct {
		page int
		want []string
	}{
		{0, []string{"d09", "d10", "d11"}},
		{1, []string{"d12", "d13", "d14"}},
		{2, []string{"d15", missing, missing}},
		{-1, []string{"d06", "d07", "d08"}},
		{-2, []string{"d03", "d04", "d05"}},
		{-3, []string{missing, "d01", "d02"}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("page %d", tt.page), func(t *testing.T) {
			w, err := b.BrowseFrom(context.Background(), start, 3, tt.page)
			require.NoError(t, err)
			assert.Equal(t, tt.want, layout(w))
			assert.Equal(t, -1, w.OriginIndex)
		})
	}
}

func TestBrowseFrom_IncludesExactKey(t *testing.T) {
	idx := shelfFixture()
	b := NewBrowser(idx, idx)

	w, err := b.BrowseFrom(context.Background(), callnumber.MustParse("QA76.5"), 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"d10", "d11"}, layout(w))

	w, err = b.BrowseFrom(context.Background(), callnumber.MustParse("QA76.5"), 2, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"d08", "d09"}, layout(w))
}

func TestBrowse_RightOffsetUnsupported(t *testing.T) {
	idx := shelfFixture()
	b := NewBrowser(idx, idx)

	_, err := b.Browse(context.Background(), Request{Origin: idx.doc("d08"), Width: 7, Offset: OffsetRight})
	assert.ErrorIs(t, err, ErrUnsupportedOffset)
	assert.Zero(t, idx.termCalls)
}

func TestBrowse_CollaboratorErrorsAreAbsorbed(t *testing.T) {
	t.Run("terms", func(t *testing.T) {
		idx := shelfFixture()
		idx.termsErr = errIndexDown
		metrics := NewMetrics(prometheus.NewRegistry())
		b := NewBrowser(idx, idx, WithMetrics(metrics))

		w, err := b.Browse(context.Background(), Request{Origin: idx.doc("d08"), Width: 7})
		require.NoError(t, err)
		assert.Equal(t, []string{missing, missing, missing, "d08", missing, missing, missing}, layout(w))
		assert.Equal(t, 2.0, testutil.ToFloat64(metrics.absorbed.WithLabelValues("terms")))
	})

	t.Run("documents", func(t *testing.T) {
		idx := shelfFixture()
		idx.lookupErr = errIndexDown
		metrics := NewMetrics(prometheus.NewRegistry())
		b := NewBrowser(idx, idx, WithMetrics(metrics))

		w, err := b.Browse(context.Background(), Request{Origin: idx.doc("d08"), Width: 7})
		require.NoError(t, err)
		assert.Equal(t, []string{missing, missing, missing, "d08", missing, missing, missing}, layout(w))
		assert.Equal(t, 2.0, testutil.ToFloat64(metrics.absorbed.WithLabelValues("documents")))
	})

	t.Run("origin lookup", func(t *testing.T) {
		idx := shelfFixture()
		idx.lookupErr = errIndexDown
		b := NewBrowser(idx, idx)

		w, err := b.Browse(context.Background(), Request{OriginID: "d08", Width: 7})
		require.NoError(t, err)
		assert.Empty(t, w.Slots)
	})
}

func TestBrowse_WidthLimits(t *testing.T) {
	idx := shelfFixture()
	b := NewBrowser(idx, idx, WithWidthLimits(5, 9))

	w, err := b.Browse(context.Background(), Request{Origin: idx.doc("d08")})
	require.NoError(t, err)
	assert.Len(t, w.Slots, 5)
	assert.Equal(t, 2, w.OriginIndex)

	w, err = b.Browse(context.Background(), Request{Origin: idx.doc("d08"), Width: 50})
	require.NoError(t, err)
	assert.Len(t, w.Slots, 9)
	assert.Equal(t, 4, w.OriginIndex)
}

func TestBrowse_Cache(t *testing.T) {
	idx := shelfFixture()
	cache := newMapCache()
	b := NewBrowser(idx, idx, WithCache(cache, time.Minute))
	req := Request{OriginID: "d08", Width: 7}

	first, err := b.Browse(context.Background(), req)
	require.NoError(t, err)
	calls := idx.termCalls

	second, err := b.Browse(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, calls, idx.termCalls, "second window comes from the cache")
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, time.Minute, cache.ttl)
	assert.Contains(t, cache.entries, "window/v1/id:d08/7/0/center")
}

func TestParseOffset(t *testing.T) {
	tests := []struct {
		in      string
		want    Offset
		wantErr bool
	}{
		{"", OffsetCenter, false},
		{"center", OffsetCenter, false},
		{" Left ", OffsetLeft, false},
		{"right", OffsetRight, false},
		{"middle", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOffset(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedOffset)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name   string
		offset Offset
		width  int
		page   int
		want   []span
	}{
		{"center page zero", OffsetCenter, 7, 0, []span{{dir: previous, total: 3}, {dir: next, total: 3}}},
		{"center even width", OffsetCenter, 8, 0, []span{{dir: previous, total: 3}, {dir: next, total: 4}}},
		{"center next", OffsetCenter, 7, 2, []span{{dir: next, start: 10, total: 17}}},
		{"center previous", OffsetCenter, 7, -1, []span{{dir: previous, start: 3, total: 10}}},
		{"left page zero", OffsetLeft, 5, 0, []span{{dir: previous, total: 4}}},
		{"left previous", OffsetLeft, 5, -1, []span{{dir: previous, start: 4, total: 9}}},
		{"left next", OffsetLeft, 5, 1, []span{{dir: next, start: 0, total: 5}}},
		{"left second next", OffsetLeft, 5, 2, []span{{dir: next, start: 5, total: 10}}},
		{"page past the bound", OffsetCenter, 7, math.MaxInt, nil},
		{"page before the bound", OffsetLeft, 7, math.MinInt, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := plan(tt.offset, tt.width, tt.page)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := plan(OffsetRight, 7, 0)
	assert.ErrorIs(t, err, ErrUnsupportedOffset)
}
