package classification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/lccshelf/callnumber"
)

func boolPtr(b bool) *bool { return &b }

func lawOutline(t *testing.T) *Node {
	t.Helper()
	root, err := Build([]Record{{
		Name:  "Law",
		Class: "K",
		Sections: []Record{
			{Name: "Law in general", Subclass: "K", Sections: []Record{
				{Name: "Jurisprudence", Range: "K201-487"},
			}},
			{Name: "Jewish law", Subclass: "KBM"},
			{Name: "Law of the United States", Subclass: "KF", Sections: []Record{
				{Name: "Federal law", Range: "KF1-9827", Sections: []Record{
					{Name: "Bibliography", Range: "1-8"},
					{Name: "Legal education", Range: "261-292"},
				}},
			}},
			{Name: "Law of Asia", Subclass: "KJ-KKZ"},
			{Name: "Regional grouping", Subclass: "KZA", LCCO: boolPtr(false)},
		},
	}})
	require.NoError(t, err)
	return root
}

func TestBuild_Shape(t *testing.T) {
	root := lawOutline(t)

	assert.Equal(t, KindRoot, root.Kind)
	assert.Equal(t, 0, root.Depth)
	require.Len(t, root.Children, 1)

	k := root.Children[0]
	assert.Equal(t, KindClass, k.Kind)
	assert.Equal(t, "K", k.Code)
	assert.Equal(t, 1, k.Depth)
	require.Len(t, k.Children, 5)

	kf := k.Children[2]
	assert.Equal(t, KindSubclass, kf.Kind)
	assert.Equal(t, "KF", kf.Code)
	assert.Equal(t, 2, kf.Depth)

	bib := kf.Children[0].Children[0]
	assert.Equal(t, KindRange, bib.Kind)
	assert.Equal(t, 4, bib.Depth)
	assert.Equal(t, "KF1", bib.Start().String())
	assert.Equal(t, "KF8", bib.End().String())
	assert.Equal(t, "1-8 Bibliography", bib.Label())

	assert.True(t, k.Children[4].Artificial)
	assert.False(t, kf.Artificial)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name    string
		records []Record
	}{
		{"two kinds", []Record{{Name: "Law", Class: "K", Subclass: "KF"}}},
		{"no kind", []Record{{Name: "Law"}}},
		{"no name", []Record{{Class: "K"}}},
		{"class below class", []Record{{Name: "Law", Class: "K", Sections: []Record{{Name: "Nested", Class: "KF"}}}}},
		{"subclass below range", []Record{{Name: "Law", Class: "K", Sections: []Record{
			{Name: "Range", Range: "K1-10", Sections: []Record{{Name: "Nested", Subclass: "KF"}}},
		}}}},
		{"range at top", []Record{{Name: "Loose", Range: "K1-10"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.records)
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
}

func TestDecodeRecord(t *testing.T) {
	rec, err := DecodeRecord([]byte(`
name: Science
class: q
sections:
  - name: Mathematics
    subclass: QA
    lcco: true
`))
	require.NoError(t, err)
	assert.Equal(t, "Science", rec.Name)
	require.Len(t, rec.Sections, 1)
	assert.False(t, rec.Sections[0].artificial())

	kind, code, err := rec.kind()
	require.NoError(t, err)
	assert.Equal(t, KindClass, kind)
	assert.Equal(t, "Q", code)

	_, err = DecodeRecord([]byte("name: Science\nclass: Q\ncolour: blue\n"))
	assert.Error(t, err)
}

func TestContains(t *testing.T) {
	root := lawOutline(t)
	k := root.Children[0]
	general, kbm, kf, asia, kza := k.Children[0], k.Children[1], k.Children[2], k.Children[3], k.Children[4]

	tests := []struct {
		name string
		node *Node
		cn   string
		want bool
	}{
		{"class takes its letters", k, "KF101.A1", true},
		{"class takes longer letters", k, "KZA1", true},
		{"class rejects other letters", k, "AB101", false},
		{"subclass by bounds", kf, "KF4550.Z9", true},
		{"subclass excludes neighbour", kf, "KFA1", false},
		{"single-letter subclass", general, "K201", true},
		{"single-letter subclass excludes longer letters", general, "KF101", false},
		{"exceptional subclass exact", kbm, "KBM524.2", true},
		{"exceptional subclass rejects prefix", kbm, "KB1", false},
		{"artificial subclass exact", kza, "KZA1340", true},
		{"hyphenated subclass start", asia, "KJ2", true},
		{"hyphenated subclass middle", asia, "KJV4000", true},
		{"hyphenated subclass end", asia, "KKZ9999", true},
		{"hyphenated subclass past end", asia, "KL1", false},
		{"range inherits letters", kf.Children[0].Children[1], "KF272", true},
		{"range excludes other letters", kf.Children[0].Children[1], "K272", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.node.Contains(callnumber.MustParse(tt.cn)))
		})
	}

	assert.False(t, k.Contains(callnumber.CallNumber{}), "empty call number is never contained")
	assert.True(t, root.Contains(callnumber.MustParse("Z1")))
}

func TestBounds_ExplicitLabels(t *testing.T) {
	root, err := Build([]Record{{
		Name:  "Science",
		Class: "Q",
		Sections: []Record{
			{Name: "Mathematics", Subclass: "QA", Start: "QA1", End: "QA939"},
		},
	}})
	require.NoError(t, err)

	qa := root.Children[0].Children[0]
	assert.Equal(t, "QA1", qa.Start().String())
	assert.Equal(t, "QA939", qa.End().String())
	assert.True(t, qa.Contains(callnumber.MustParse("QA939.5")))
	assert.False(t, qa.Contains(callnumber.MustParse("QA940")))
}

func TestASCIIName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"History of Germany", "History of Germany"},
		{"Histoire de l'Église", "Histoire de l'Eglise"},
		{"Österreich  und   Ungarn", "Osterreich und Ungarn"},
		{"Law — general", "Law general"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, asciiName(tt.in))
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "root", KindRoot.String())
	assert.Equal(t, "class", KindClass.String())
	assert.Equal(t, "subclass", KindSubclass.String())
	assert.Equal(t, "range", KindRange.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
