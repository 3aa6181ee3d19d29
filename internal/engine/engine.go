// Package engine defines the rendering capability the viewer depends on and
// the process-wide runtime that hosts it.
package engine

import (
	"context"
	"errors"
	"image"

	"github.com/MalithGihan/pdfview/internal/source"
)

var (
	ErrDocumentLoad  = errors.New("engine: document load failed")
	ErrRender        = errors.New("engine: render failed")
	ErrPageRange     = errors.New("engine: page out of range")
	ErrClosed        = errors.New("engine: closed")
	ErrUnknownEngine = errors.New("engine: unknown engine")
)

// Session is an opened document. It is owned by exactly one caller and must be
// released with Engine.Close.
type Session interface {
	Location() source.Location
}

// Options control what Render produces besides the raster.
type Options struct {
	// DPI of the raster; zero uses the engine default.
	DPI             float64
	TextLayer       bool
	AnnotationLayer bool
}

// Surface is a rendered page.
type Surface struct {
	Page  int
	Image *image.RGBA
	// Width and Height of the page in PDF points.
	Width, Height float64
	Text          []TextRun
	Links         []Link
}

func (s *Surface) Empty() bool {
	return s == nil || s.Image == nil || s.Image.Bounds().Empty()
}

// TextRun is a piece of page text in raster pixel coordinates.
type TextRun struct {
	Text   string
	Bounds image.Rectangle
}

// Link is an external link annotation in raster pixel coordinates.
type Link struct {
	URI    string
	Bounds image.Rectangle
}

// Engine is the capability interface over a concrete PDF renderer.
// Pages are 1-based.
type Engine interface {
	Open(ctx context.Context, loc source.Location) (Session, error)
	Render(ctx context.Context, s Session, page int, opts Options) (*Surface, error)
	Close(s Session) error
}

// Config is passed to a Factory.
type Config struct {
	Source source.Resolver
	DPI    float64
}

type Factory func(cfg Config) (Engine, error)
