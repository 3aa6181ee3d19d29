package main

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MalithGihan/pdfview/internal/source"
	"github.com/MalithGihan/pdfview/internal/viewer"
)

type renderFlags struct {
	file          string
	out           string
	width, height int
	timeout       time.Duration
}

func newRenderCmd(a *app) *cobra.Command {
	f := &renderFlags{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Write page 1 of a document, centered in a viewport, to a PNG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.render(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "document location (default documents.default)")
	cmd.Flags().StringVarP(&f.out, "out", "o", "page1.png", "output PNG path")
	cmd.Flags().IntVar(&f.width, "width", 0, "viewport width (default viewport.width)")
	cmd.Flags().IntVar(&f.height, "height", 0, "viewport height (default viewport.height)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", time.Minute, "how long to wait for the render")
	return cmd
}

// render writes the viewport even when the document fails to load; the
// failure only shows up in the log.
func (a *app) render(ctx context.Context, f *renderFlags) error {
	loc := source.Location(f.file)
	if f.file == "" {
		loc = source.Location(a.cfg.Documents.Default)
	}
	vp := viewer.Viewport{Width: a.cfg.Viewport.Width, Height: a.cfg.Viewport.Height}
	if f.width > 0 {
		vp.Width = f.width
	}
	if f.height > 0 {
		vp.Height = f.height
	}

	srcs, err := a.sources()
	if err != nil {
		return err
	}
	rt, err := a.runtime(srcs)
	if err != nil {
		return err
	}
	defer rt.Close()

	v := viewer.New(rt, viewer.WithLogger(a.log), viewer.WithDPI(a.cfg.Engine.DPI))
	defer v.Unmount()
	if err := v.Mount(loc); err != nil {
		return err
	}
	waitCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	snap, err := v.Wait(waitCtx)
	if err != nil {
		a.log.Warn("render did not finish", zap.Stringer("location", loc), zap.Error(err))
	}

	if err := os.MkdirAll(filepath.Dir(f.out), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	out, err := os.Create(f.out)
	if err != nil {
		return err
	}
	if err := png.Encode(out, v.Compose(vp)); err != nil {
		out.Close()
		return fmt.Errorf("writing %s: %w", f.out, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	a.log.Info("viewport written",
		zap.String("out", f.out),
		zap.Stringer("location", loc),
		zap.Stringer("state", snap.State),
		zap.Int("width", vp.Width),
		zap.Int("height", vp.Height))
	return nil
}
