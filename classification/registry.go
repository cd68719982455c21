package classification

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/c360studio/lccshelf/callnumber"
)

// DefaultPattern matches outline files below the outline directory.
const DefaultPattern = "**/*.{yml,yaml}"

// Registry is an immutable, fully built outline. It is safe to share
// between goroutines.
type Registry struct {
	root        *Node
	byCode      map[string]*Node
	diagnostics []Diagnostic
}

// NewRegistry builds and validates an outline from top-level class
// records.
func NewRegistry(records []Record) (*Registry, error) {
	root, err := Build(records)
	if err != nil {
		return nil, err
	}
	r := &Registry{
		root:   root,
		byCode: make(map[string]*Node),
	}
	root.Walk(func(n *Node) bool {
		if n.Code != "" {
			if _, dup := r.byCode[n.Code]; !dup {
				r.byCode[n.Code] = n
			}
		}
		return true
	})
	r.diagnostics = Validate(root)
	return r, nil
}

// Load reads every outline file under dir matching pattern, decodes them
// concurrently and builds a registry with the classes in code order.
// Validation problems are logged at debug level and kept on the registry;
// see LogDiagnostics.
func Load(ctx context.Context, dir, pattern string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if pattern == "" {
		pattern = DefaultPattern
	}
	fsys := os.DirFS(dir)
	files, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("glob outline files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no outline files in %s matching %s", dir, pattern)
	}

	records := make([]Record, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := fs.ReadFile(fsys, name)
			if err != nil {
				return fmt.Errorf("read %s: %w", name, err)
			}
			rec, err := DecodeRecord(data)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Class < records[j].Class
	})

	reg, err := NewRegistry(records)
	if err != nil {
		return nil, err
	}
	for _, d := range reg.diagnostics {
		logger.Debug("Outline inconsistency",
			"problem", string(d.Problem),
			"path", d.Path,
			"detail", d.Detail)
	}
	logger.Info("Classification outline loaded",
		"dir", dir,
		"files", len(files),
		"nodes", reg.Size(),
		"diagnostics", len(reg.diagnostics))
	return reg, nil
}

// Root returns the synthetic root node.
func (r *Registry) Root() *Node {
	return r.root
}

// Size returns the number of nodes below the root.
func (r *Registry) Size() int {
	n := -1
	r.root.Walk(func(*Node) bool {
		n++
		return true
	})
	return n
}

// Diagnostics returns the problems found when the registry was built.
func (r *Registry) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), r.diagnostics...)
}

// Classify returns the path from the top-level class down to the most
// specific node containing cn, or nil when no class does.
func (r *Registry) Classify(cn callnumber.CallNumber) []*Node {
	path := r.root.PathTo(cn)
	if len(path) <= 1 {
		return nil
	}
	return path[1:]
}

// Lookup returns the node with the given code, falling back to a search
// by name.
func (r *Registry) Lookup(id string) *Node {
	if n, ok := r.byCode[strings.ToUpper(strings.TrimSpace(id))]; ok {
		return n
	}
	return r.root.Find(id)
}

// Prune returns the outline restricted to nodes at or below depth that
// contain cn.
func (r *Registry) Prune(cn callnumber.CallNumber, depth int) *Node {
	return r.root.Prune(cn, depth)
}

// Holder publishes the current registry to concurrent readers and is the
// single place a rebuilt registry is installed.
type Holder struct {
	current atomic.Pointer[Registry]
}

// NewHolder returns a holder serving r.
func NewHolder(r *Registry) *Holder {
	h := &Holder{}
	h.current.Store(r)
	return h
}

// Get returns the registry in effect.
func (h *Holder) Get() *Registry {
	return h.current.Load()
}

// Swap installs r and returns the previous registry.
func (h *Holder) Swap(r *Registry) *Registry {
	return h.current.Swap(r)
}
