package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/bodysplice/internal/htmlstream"
)

var (
	openColor     = color.New(color.FgCyan).SprintFunc()
	closeColor    = color.New(color.FgBlue).SprintFunc()
	boundaryColor = color.New(color.FgGreen, color.Bold).SprintFunc()
	dimColor      = color.New(color.Faint).SprintFunc()
)

func newEventsCmd() *cobra.Command {
	var chunk int

	cmd := &cobra.Command{
		Use:   "events FILE",
		Short: "Print tag events and splice points of a page",
		Long: `Print every open and close tag the tokenizer reports, indented by
nesting, and every point at which the page is split for splicing.

With --chunk N the file is fed in N-byte pieces; the events and splice
points do not change with the chunk size. Use - to read stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, closeSrc, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer closeSrc()
			return runEvents(cmd.Context(), cmd.OutOrStdout(), src, chunk)
		},
	}
	cmd.Flags().IntVar(&chunk, "chunk", 0, "feed the input in chunks of this many bytes (0 reads it whole)")
	return cmd
}

func openInput(cmd *cobra.Command, name string) (io.Reader, func(), error) {
	if name == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

// eventPrinter is both the observer and the sink of the transform.
type eventPrinter struct {
	w     io.Writer
	depth int
}

func (p *eventPrinter) OpenTag(name string) htmlstream.Action {
	fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("  ", p.depth), openColor("<"+name+">"))
	p.depth++
	return htmlstream.Continue
}

func (p *eventPrinter) CloseTag(name string) htmlstream.Action {
	if p.depth > 0 {
		p.depth--
	}
	fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("  ", p.depth), closeColor("</"+name+">"))
	return htmlstream.Continue
}

func (p *eventPrinter) Chunk([]byte) error { return nil }

func (p *eventPrinter) Boundary(b htmlstream.Boundary) error {
	fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("  ", p.depth),
		boundaryColor(fmt.Sprintf("-- splice offset=%d depth=%d", b.Offset, b.Depth)))
	return nil
}

func runEvents(ctx context.Context, w io.Writer, src io.Reader, chunk int) error {
	p := &eventPrinter{w: w}
	t := htmlstream.NewTransform(p, htmlstream.WithObserver(p))

	if chunk > 0 {
		if _, err := htmlstream.Pipe(ctx, src, t, chunk); err != nil {
			return err
		}
	} else {
		data, err := io.ReadAll(src)
		if err != nil {
			return err
		}
		if _, err := t.Write(data); err != nil {
			return err
		}
		if err := t.Close(); err != nil {
			return err
		}
	}

	s := t.Stats()
	fmt.Fprintln(w, dimColor(fmt.Sprintf("bytes=%d splices=%d chunks=%d", s.BytesIn, s.Boundaries, s.Chunks)))
	return nil
}
