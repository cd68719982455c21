package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/c360studio/lccshelf/callnumber"
	"github.com/c360studio/lccshelf/classification"
	"github.com/c360studio/lccshelf/config"
	"github.com/c360studio/lccshelf/shelf"
)

func printCallNumber(out io.Writer, cn callnumber.CallNumber) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "call number\t%s\n", cn)
	for i, v := range cn.Fields() {
		if v == "" {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\n", callnumber.Field(i), v)
	}
	fmt.Fprintf(tw, "shelfkey\t%q\n", cn.Shelfkey())
	fmt.Fprintf(tw, "reverse shelfkey\t%q\n", cn.ReverseShelfkey())
	fmt.Fprintf(tw, "plausible\t%t\n", cn.Plausible())
	_ = tw.Flush()
}

func printPath(out io.Writer, path []*classification.Node) {
	if len(path) == 0 {
		fmt.Fprintln(out, "(unclassified)")
		return
	}
	for i, n := range path {
		fmt.Fprintf(out, "%s%s\n", strings.Repeat("  ", i), n.Label())
	}
}

func printTree(out io.Writer, n *classification.Node, indent int) {
	if n.Kind != classification.KindRoot {
		fmt.Fprintf(out, "%s%s\n", strings.Repeat("  ", indent), n.Label())
		indent++
	}
	for _, c := range n.Children {
		printTree(out, c, indent)
	}
}

func printDiagnostics(out io.Writer, diags []classification.Diagnostic) {
	if len(diags) == 0 {
		fmt.Fprintln(out, "outline is consistent")
		return
	}
	for _, d := range diags {
		fmt.Fprintln(out, d.String())
	}
}

func printWindow(out io.Writer, w shelf.Window) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for i, s := range w.Slots {
		marker := " "
		if i == w.OriginIndex {
			marker = ">"
		}
		switch {
		case s.Document == nil:
			fmt.Fprintf(tw, "%s\t%d\t-\t(%s)\t\n", marker, i, s.Kind)
		case s.Kind == shelf.SlotDuplicate:
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t(duplicate of %s)\n", marker, i, s.Document.CallNumber, s.Document.Title, s.Document.ID)
		default:
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", marker, i, s.Document.CallNumber, s.Document.Title, s.Document.ID)
		}
	}
	_ = tw.Flush()
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printConfig(out io.Writer, cfg *config.Config) {
	fmt.Fprintf(out, "Classification:\n")
	fmt.Fprintf(out, "  Dir: %s\n", cfg.Classification.Dir)
	fmt.Fprintf(out, "  Pattern: %s\n", cfg.Classification.Pattern)
	fmt.Fprintf(out, "  Watch: %t\n", cfg.Classification.ShouldWatch())
	fmt.Fprintf(out, "  Validate: %t\n", cfg.Classification.ShouldValidate())
	fmt.Fprintf(out, "\nIndex:\n")
	fmt.Fprintf(out, "  Path: %s\n", cfg.Index.Path)
	fmt.Fprintf(out, "\nNATS:\n")
	if cfg.NATS.URL != "" {
		fmt.Fprintf(out, "  URL: %s\n", cfg.NATS.URL)
		fmt.Fprintf(out, "  Bucket: %s\n", cfg.NATS.Bucket)
	} else {
		fmt.Fprintln(out, "  Mode: process-local cache")
	}
	fmt.Fprintf(out, "\nBrowse:\n")
	fmt.Fprintf(out, "  Default width: %d\n", cfg.Browse.DefaultWidth)
	fmt.Fprintf(out, "  Max width: %d\n", cfg.Browse.MaxWidth)
	fmt.Fprintf(out, "  Cache TTL: %s\n", cfg.Browse.TTL())
}
