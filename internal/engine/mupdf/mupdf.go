//go:build mupdf

package mupdf

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/gen2brain/go-fitz"

	"github.com/MalithGihan/pdfview/internal/engine"
	"github.com/MalithGihan/pdfview/internal/source"
)

const (
	Name       = "mupdf"
	DefaultDPI = 96
)

func init() {
	engine.Register(Name, New)
}

// Engine rasterizes with MuPDF. It produces the raster only; text and
// annotation layers are never filled in.
type Engine struct {
	src source.Resolver
	dpi float64
}

func New(cfg engine.Config) (engine.Engine, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("mupdf: no document source")
	}
	dpi := cfg.DPI
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &Engine{src: cfg.Source, dpi: dpi}, nil
}

type session struct {
	loc source.Location

	mu  sync.Mutex
	doc *fitz.Document
}

func (s *session) Location() source.Location { return s.loc }

func (e *Engine) Open(ctx context.Context, loc source.Location) (engine.Session, error) {
	data, err := e.src.Fetch(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", engine.ErrDocumentLoad, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", engine.ErrDocumentLoad, loc, err)
	}
	return &session{loc: loc, doc: doc}, nil
}

func (e *Engine) Render(ctx context.Context, s engine.Session, page int, opts engine.Options) (*engine.Surface, error) {
	sess, ok := s.(*session)
	if !ok {
		return nil, fmt.Errorf("%w: session not opened by mupdf", engine.ErrRender)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.doc == nil {
		return nil, fmt.Errorf("%w: session closed", engine.ErrRender)
	}
	if n := sess.doc.NumPage(); page < 1 || page > n {
		return nil, fmt.Errorf("%w: page %d of %d", engine.ErrPageRange, page, n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dpi := opts.DPI
	if dpi <= 0 {
		dpi = e.dpi
	}
	img, err := sess.doc.ImageDPI(page-1, dpi)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", engine.ErrRender, page, err)
	}
	return &engine.Surface{
		Page:   page,
		Image:  img,
		Width:  points(img.Bounds(), dpi).X,
		Height: points(img.Bounds(), dpi).Y,
	}, nil
}

func (e *Engine) Close(s engine.Session) error {
	sess, ok := s.(*session)
	if !ok {
		return fmt.Errorf("%w: session not opened by mupdf", engine.ErrRender)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.doc == nil {
		return nil
	}
	err := sess.doc.Close()
	sess.doc = nil
	return err
}

type size struct{ X, Y float64 }

func points(r image.Rectangle, dpi float64) size {
	return size{X: float64(r.Dx()) * 72 / dpi, Y: float64(r.Dy()) * 72 / dpi}
}
