// Package main provides the lccshelf binary entry point.
// lccshelf parses Library of Congress call numbers, places them in the
// LC classification outline and browses a virtual shelf of indexed items.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/lccshelf/callnumber"
	"github.com/c360studio/lccshelf/config"
	"github.com/c360studio/lccshelf/shelf"
	"github.com/c360studio/lccshelf/termindex"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "lccshelf"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "LC call number shelf browser",
		Long: `lccshelf works with Library of Congress call numbers.

It provides:
- Parsing and normalisation into sortable shelfkeys
- Placement in the LC classification outline
- Virtual shelf browsing over a local item index`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		parseCmd(),
		classifyCmd(g),
		validateCmd(g),
		loadCmd(g),
		browseCmd(g),
		shellCmd(g),
	)

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func newLogger(level string) *slog.Logger {
	l := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// setup loads configuration and builds the app for a subcommand.
func (g *globalFlags) setup() (*App, error) {
	logger := newLogger(g.logLevel)
	slog.SetDefault(logger)

	loader := config.NewLoader(logger)
	var (
		cfg *config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = loader.LoadFile(g.configPath)
	} else {
		cfg, err = loader.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewApp(cfg, logger), nil
}

func parseCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "parse <call number>",
		Short: "Parse a call number and show its fields and shelfkeys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := strings.Join(args, " ")
			cn, err := callnumber.TryParse(raw)
			if err != nil {
				return err
			}
			if !cn.Valid() {
				return fmt.Errorf("%w: %q", callnumber.ErrUnparseable, raw)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"call_number":      cn.String(),
					"fields":           cn.Fields(),
					"shelfkey":         cn.Shelfkey(),
					"reverse_shelfkey": cn.ReverseShelfkey(),
					"plausible":        cn.Plausible(),
				})
			}
			printCallNumber(cmd.OutOrStdout(), cn)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func classifyCmd(g *globalFlags) *cobra.Command {
	var depth int

	cmd := &cobra.Command{
		Use:   "classify <call number>",
		Short: "Show where a call number falls in the classification outline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.setup()
			if err != nil {
				return err
			}
			defer app.Shutdown(5 * time.Second)

			reg, err := app.Outline(cmd.Context())
			if err != nil {
				return err
			}
			cn, err := callnumber.TryParse(strings.Join(args, " "))
			if err != nil {
				return err
			}
			if depth > 0 {
				if tree := reg.Prune(cn, depth); tree != nil {
					printTree(cmd.OutOrStdout(), tree, 0)
				}
				return nil
			}
			printPath(cmd.OutOrStdout(), reg.Classify(cn))
			return nil
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 0, "Print the outline pruned to the call number from this depth")
	return cmd
}

func validateCmd(g *globalFlags) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the classification outline for inconsistencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.setup()
			if err != nil {
				return err
			}
			defer app.Shutdown(5 * time.Second)

			reg, err := app.Outline(cmd.Context())
			if err != nil {
				return err
			}
			diags := reg.Diagnostics()
			printDiagnostics(cmd.OutOrStdout(), diags)
			if strict && len(diags) > 0 {
				return fmt.Errorf("%d outline inconsistencies", len(diags))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when any inconsistency is found")
	return cmd
}

func loadCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "load <items.yaml>",
		Short: "Import items into the term index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.setup()
			if err != nil {
				return err
			}
			defer app.Shutdown(5 * time.Second)

			items, err := termindex.ReadItems(args[0])
			if err != nil {
				return err
			}
			store, err := app.Index(cmd.Context())
			if err != nil {
				return err
			}
			res, err := store.Import(cmd.Context(), items)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %d, skipped %d, implausible %d\n", res.Stored, res.Skipped, res.Implausible)
			return nil
		},
	}
}

func browseCmd(g *globalFlags) *cobra.Command {
	var (
		raw    string
		width  int
		page   int
		offset string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "browse [item id]",
		Short: "Show the items shelved around an item or a call number",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && raw == "" {
				return errors.New("give an item id or --call-number")
			}
			off, err := shelf.ParseOffset(offset)
			if err != nil {
				return err
			}

			app, err := g.setup()
			if err != nil {
				return err
			}
			defer app.Shutdown(5 * time.Second)

			b, err := app.Browser(cmd.Context())
			if err != nil {
				return err
			}
			req := shelf.Request{Width: width, Page: page, Offset: off}
			if len(args) == 1 {
				req.OriginID = args[0]
			}
			if raw != "" {
				if req.CallNumber, err = callnumber.TryParse(raw); err != nil {
					return err
				}
			}

			w, err := b.Browse(cmd.Context(), req)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), w)
			}
			printWindow(cmd.OutOrStdout(), w)
			return nil
		},
	}

	cmd.Flags().StringVar(&raw, "call-number", "", "Browse from a call number when no item id resolves")
	cmd.Flags().IntVarP(&width, "width", "w", 0, "Window width (default from config)")
	cmd.Flags().IntVarP(&page, "page", "p", 0, "Page relative to the origin (negative = earlier)")
	cmd.Flags().StringVar(&offset, "offset", string(shelf.OffsetCenter), "Origin placement on page 0 (center, left)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func shellCmd(g *globalFlags) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive shell over the outline and the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.setup()
			if err != nil {
				return err
			}
			defer app.Shutdown(5 * time.Second)

			ctx := cmd.Context()
			if err := app.Watch(ctx); err != nil {
				return err
			}
			if metricsAddr != "" {
				app.ServeMetrics(metricsAddr)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s. Type /help for commands.\n", appName, Version)
			return app.RunREPL(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	return cmd
}
