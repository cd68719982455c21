package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360studio/lccshelf/callnumber"
	"github.com/c360studio/lccshelf/classification"
	"github.com/c360studio/lccshelf/config"
	"github.com/c360studio/lccshelf/shelf"
	"github.com/c360studio/lccshelf/storage"
	"github.com/c360studio/lccshelf/termindex"
)

// App wires the outline, the term index and the browser together. Each
// piece is opened on first use so one-shot commands only pay for what
// they touch.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	// Outline
	holder  *classification.Holder
	watcher *classification.Watcher

	// Index and browsing
	store      *termindex.Store
	browser    *shelf.Browser
	cacheMode  string
	closeCache func()

	registry *prometheus.Registry
	metrics  *shelf.Metrics
	server   *http.Server
}

// NewApp creates a new application instance.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	reg := prometheus.NewRegistry()
	return &App{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		metrics:  shelf.NewMetrics(reg),
	}
}

// Outline returns the classification registry, loading it on first use.
func (a *App) Outline(ctx context.Context) (*classification.Registry, error) {
	if a.holder != nil {
		return a.holder.Get(), nil
	}
	reg, err := classification.Load(ctx, a.cfg.Classification.Dir, a.cfg.Classification.Pattern, a.logger)
	if err != nil {
		return nil, fmt.Errorf("load outline: %w", err)
	}
	if a.cfg.Classification.ShouldValidate() {
		classification.LogDiagnostics(a.logger, reg.Diagnostics())
	}
	a.holder = classification.NewHolder(reg)
	return reg, nil
}

// Watch starts reloading the outline on file changes when configured.
func (a *App) Watch(ctx context.Context) error {
	if !a.cfg.Classification.ShouldWatch() || a.watcher != nil {
		return nil
	}
	if _, err := a.Outline(ctx); err != nil {
		return err
	}
	w, err := classification.NewWatcher(a.cfg.Classification.Dir, a.cfg.Classification.Pattern, a.holder, a.logger)
	if err != nil {
		return fmt.Errorf("create outline watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		_ = w.Stop()
		return fmt.Errorf("start outline watcher: %w", err)
	}
	a.watcher = w

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.Reloaded():
				if a.cfg.Classification.ShouldValidate() {
					classification.LogDiagnostics(a.logger, a.holder.Get().Diagnostics())
				}
			}
		}
	}()
	return nil
}

// Index returns the term index, opening it on first use.
func (a *App) Index(ctx context.Context) (*termindex.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, err := termindex.Open(ctx, a.cfg.Index.Path, a.logger)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	a.store = store
	return store, nil
}

// Browser returns the shelf browser over the index with the configured
// window cache.
func (a *App) Browser(ctx context.Context) (*shelf.Browser, error) {
	if a.browser != nil {
		return a.browser, nil
	}
	store, err := a.Index(ctx)
	if err != nil {
		return nil, err
	}

	opts := []shelf.BrowserOption{
		shelf.WithLogger(a.logger),
		shelf.WithMetrics(a.metrics),
		shelf.WithWidthLimits(a.cfg.Browse.DefaultWidth, a.cfg.Browse.MaxWidth),
	}
	cache, err := a.cache(ctx)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		opts = append(opts, shelf.WithCache(cache, a.cfg.Browse.TTL()))
	}

	a.browser = shelf.NewBrowser(store, store, opts...)
	return a.browser, nil
}

func (a *App) cache(ctx context.Context) (shelf.Cache, error) {
	ttl := a.cfg.Browse.TTL()
	if ttl <= 0 {
		a.cacheMode = "off"
		return nil, nil
	}
	if a.cfg.NATS.URL == "" {
		a.cacheMode = "memory"
		return storage.NewMemoryCache(), nil
	}
	kv, closeFn, err := storage.Connect(ctx, a.cfg.NATS.URL, a.cfg.NATS.Bucket, ttl, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect window cache: %w", err)
	}
	a.cacheMode = "nats"
	a.closeCache = closeFn
	return kv, nil
}

// ServeMetrics exposes the browse counters at addr until Shutdown.
func (a *App) ServeMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	a.server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server failed", "addr", addr, "error", err)
		}
	}()
	a.logger.Info("Serving metrics", "addr", addr)
}

// Shutdown releases everything the app opened.
func (a *App) Shutdown(timeout time.Duration) {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Warn("Metrics server shutdown failed", "error", err)
		}
		cancel()
	}
	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Warn("Outline watcher stop failed", "error", err)
		}
	}
	if a.closeCache != nil {
		a.closeCache()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("Index close failed", "error", err)
		}
	}
}

// RunREPL reads commands from in until EOF or quit.
func (a *App) RunREPL(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "lccshelf> ")

		if !scanner.Scan() {
			// EOF (Ctrl+D)
			fmt.Fprintln(out)
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "quit" || input == "exit" {
			return nil
		}

		if err := a.handleCommand(ctx, input, out); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
}

func (a *App) handleCommand(ctx context.Context, input string, out io.Writer) error {
	cmd, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "/help", "help":
		fmt.Fprintln(out, "Available commands:")
		fmt.Fprintln(out, "  parse <call number>           - Show fields and shelfkeys")
		fmt.Fprintln(out, "  classify <call number>        - Show the outline path")
		fmt.Fprintln(out, "  outline <code or name>        - Show an outline node and its sections")
		fmt.Fprintln(out, "  browse <id> [width] [page]    - Browse around an item")
		fmt.Fprintln(out, "  near <call number> [page]     - Browse from a call number")
		fmt.Fprintln(out, "  /status                       - Show outline and index status")
		fmt.Fprintln(out, "  /config                       - Show current configuration")
		fmt.Fprintln(out, "  quit/exit                     - Exit the shell")
		return nil

	case "parse":
		cn, err := callnumber.TryParse(rest)
		if err != nil {
			return err
		}
		printCallNumber(out, cn)
		return nil

	case "classify":
		reg, err := a.Outline(ctx)
		if err != nil {
			return err
		}
		printPath(out, reg.Classify(callnumber.Parse(rest)))
		return nil

	case "outline":
		reg, err := a.Outline(ctx)
		if err != nil {
			return err
		}
		n := reg.Lookup(rest)
		if n == nil {
			return fmt.Errorf("no outline node %q", rest)
		}
		printTree(out, n, 0)
		return nil

	case "browse":
		args := strings.Fields(rest)
		if len(args) == 0 {
			return errors.New("browse needs an item id")
		}
		req := shelf.Request{OriginID: args[0]}
		var err error
		if req.Width, err = optionalInt(args, 1); err != nil {
			return err
		}
		if req.Page, err = optionalInt(args, 2); err != nil {
			return err
		}
		b, err := a.Browser(ctx)
		if err != nil {
			return err
		}
		w, err := b.Browse(ctx, req)
		if err != nil {
			return err
		}
		printWindow(out, w)
		return nil

	case "near":
		raw, page := rest, 0
		if i := strings.LastIndex(rest, " "); i > 0 {
			if p, err := strconv.Atoi(rest[i+1:]); err == nil {
				raw, page = rest[:i], p
			}
		}
		cn, err := callnumber.TryParse(raw)
		if err != nil {
			return err
		}
		b, err := a.Browser(ctx)
		if err != nil {
			return err
		}
		w, err := b.BrowseFrom(ctx, cn, 0, page)
		if err != nil {
			return err
		}
		printWindow(out, w)
		return nil

	case "/status":
		return a.printStatus(ctx, out)

	case "/config":
		printConfig(out, a.cfg)
		return nil

	default:
		fmt.Fprintf(out, "Unknown command: %s\n", cmd)
		fmt.Fprintln(out, "Type /help for available commands.")
		return nil
	}
}

func (a *App) printStatus(ctx context.Context, out io.Writer) error {
	reg, err := a.Outline(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Outline: %d nodes, %d diagnostics\n", reg.Size(), len(reg.Diagnostics()))

	store, err := a.Index(ctx)
	if err != nil {
		return err
	}
	n, err := store.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Index: %d items (%s)\n", n, a.cfg.Index.Path)
	if a.cacheMode != "" {
		fmt.Fprintf(out, "Cache: %s\n", a.cacheMode)
	}
	return nil
}

func optionalInt(args []string, i int) (int, error) {
	if len(args) <= i {
		return 0, nil
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", args[i])
	}
	return n, nil
}
