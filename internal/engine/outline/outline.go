// Package outline is a pure-Go engine. It rasterizes the text runs and
// rectangles of a page's content stream; images, paths and embedded fonts
// are not drawn.
package outline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/ledongthuc/pdf"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/MalithGihan/pdfview/internal/engine"
	"github.com/MalithGihan/pdfview/internal/source"
)

const (
	Name       = "outline"
	DefaultDPI = 96

	minFacePx = 4
	maxPixels = 10000 * 10000
)

// US Letter, used when a page has no usable MediaBox.
var letter = box{0, 0, 612, 792}

var ruleColor = color.RGBA{0x60, 0x60, 0x60, 0xff}

func init() {
	engine.Register(Name, New)
}

type Engine struct {
	src  source.Resolver
	dpi  float64
	font *opentype.Font
}

func New(cfg engine.Config) (engine.Engine, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("outline: no document source")
	}
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("outline: load font: %w", err)
	}
	dpi := cfg.DPI
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &Engine{src: cfg.Source, dpi: dpi, font: f}, nil
}

type session struct {
	loc source.Location

	mu sync.Mutex
	r  *pdf.Reader
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
	r, err := newReader(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", engine.ErrDocumentLoad, loc, err)
	}
	return &session{loc: loc, r: r}, nil
}

func newReader(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			r, err = nil, fmt.Errorf("malformed document: %v", p)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

func (e *Engine) Close(s engine.Session) error {
	sess, ok := s.(*session)
	if !ok {
		return fmt.Errorf("%w: session not opened by outline", engine.ErrRender)
	}
	sess.mu.Lock()
	sess.r = nil
	sess.mu.Unlock()
	return nil
}

func (e *Engine) Render(ctx context.Context, s engine.Session, page int, opts engine.Options) (*engine.Surface, error) {
	sess, ok := s.(*session)
	if !ok {
		return nil, fmt.Errorf("%w: session not opened by outline", engine.ErrRender)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.r == nil {
		return nil, fmt.Errorf("%w: session closed", engine.ErrRender)
	}

	n := sess.r.NumPage()
	if page < 1 || page > n {
		return nil, fmt.Errorf("%w: page %d of %d", engine.ErrPageRange, page, n)
	}
	p := sess.r.Page(page)
	if p.V.IsNull() {
		return nil, fmt.Errorf("%w: page %d missing", engine.ErrRender, page)
	}

	dpi := opts.DPI
	if dpi <= 0 {
		dpi = e.dpi
	}
	pg := newPageGeom(mediaBox(p.V), dpi/72)
	if !pg.fits(maxPixels) {
		return nil, fmt.Errorf("%w: page %d too large at %.0f dpi", engine.ErrRender, page, dpi)
	}

	content, err := pageContent(p)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, pg.w, pg.h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	for _, r := range content.Rect {
		strokeRect(img, pg.rect(r.Min.X, r.Min.Y, r.Max.X, r.Max.Y))
	}

	faces := map[int]font.Face{}
	defer func() {
		for _, f := range faces {
			f.Close()
		}
	}()
	for _, t := range content.Text {
		face, err := e.face(faces, t.FontSize*pg.scale)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", engine.ErrRender, err)
		}
		x, y := pg.point(t.X, t.Y)
		d := font.Drawer{Dst: img, Src: image.Black, Face: face, Dot: fixed.P(x, y)}
		d.DrawString(t.S)
	}

	surf := &engine.Surface{
		Page:   page,
		Image:  img,
		Width:  pg.box.width(),
		Height: pg.box.height(),
	}
	if opts.TextLayer {
		surf.Text = textRuns(content.Text, pg)
	}
	if opts.AnnotationLayer {
		surf.Links = links(p.V, pg)
	}
	return surf, nil
}

func pageContent(p pdf.Page) (c pdf.Content, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: content stream: %v", engine.ErrRender, r)
		}
	}()
	return p.Content(), nil
}

func (e *Engine) face(cache map[int]font.Face, px float64) (font.Face, error) {
	size := int(math.Round(px))
	if size < minFacePx {
		size = minFacePx
	}
	if f, ok := cache[size]; ok {
		return f, nil
	}
	f, err := opentype.NewFace(e.font, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	cache[size] = f
	return f, nil
}

func strokeRect(img *image.RGBA, r image.Rectangle) {
	r = r.Canon().Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	src := image.NewUniform(ruleColor)
	if r.Dx() <= 2 || r.Dy() <= 2 {
		draw.Draw(img, r, src, image.Point{}, draw.Over)
		return
	}
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1),
		image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y),
		image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e, src, image.Point{}, draw.Over)
	}
}
