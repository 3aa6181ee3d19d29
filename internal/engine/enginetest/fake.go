// Package enginetest provides an in-memory engine for tests.
package enginetest

import (
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"sync"

	"github.com/MalithGihan/pdfview/internal/engine"
	"github.com/MalithGihan/pdfview/internal/source"
)

// RenderCall records one Render invocation.
type RenderCall struct {
	Location source.Location
	Page     int
	Options  engine.Options
}

// Fake serves documents from Pages (identifier -> page count). Unknown
// identifiers fail to load. Opening an identifier with a Gate blocks until the
// gate channel is closed or the context ends.
type Fake struct {
	Width, Height int
	// IgnoreCancel makes gated opens wait for the gate even after the context
	// is canceled, like an engine that cannot abandon a fetch.
	IgnoreCancel bool

	mu      sync.Mutex
	pages   map[source.Location]int
	gates   map[source.Location]chan struct{}
	opened  []source.Location
	closed  []source.Location
	renders []RenderCall
	live    int
	nextID  int
}

func New() *Fake {
	return &Fake{
		Width:  40,
		Height: 60,
		pages:  map[source.Location]int{},
		gates:  map[source.Location]chan struct{}{},
	}
}

func (f *Fake) AddDocument(loc source.Location, pages int) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[loc] = pages
	return f
}

// Gate makes Open(loc) block until the returned function is called.
func (f *Fake) Gate(loc source.Location) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[loc] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Factory returns a factory that always yields f.
func (f *Fake) Factory() engine.Factory {
	return func(engine.Config) (engine.Engine, error) { return f, nil }
}

type session struct {
	id  int
	loc source.Location
}

func (s *session) Location() source.Location { return s.loc }

func (f *Fake) Open(ctx context.Context, loc source.Location) (engine.Session, error) {
	f.mu.Lock()
	gate := f.gates[loc]
	f.mu.Unlock()
	switch {
	case gate != nil && f.IgnoreCancel:
		<-gate
	case gate != nil:
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil && !f.IgnoreCancel {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.pages[loc]; !ok {
		return nil, fmt.Errorf("%w: %w: %s", engine.ErrDocumentLoad, source.ErrNotFound, loc)
	}
	f.nextID++
	f.live++
	f.opened = append(f.opened, loc)
	return &session{id: f.nextID, loc: loc}, nil
}

func (f *Fake) Render(ctx context.Context, s engine.Session, page int, opts engine.Options) (*engine.Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sess, ok := s.(*session)
	if !ok {
		return nil, fmt.Errorf("%w: foreign session", engine.ErrRender)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renders = append(f.renders, RenderCall{Location: sess.loc, Page: page, Options: opts})
	if n := f.pages[sess.loc]; page < 1 || page > n {
		return nil, fmt.Errorf("%w: page %d of %d", engine.ErrPageRange, page, n)
	}
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	c := ColorOf(sess.loc)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return &engine.Surface{Page: page, Image: img, Width: float64(f.Width), Height: float64(f.Height)}, nil
}

func (f *Fake) Close(s engine.Session) error {
	sess, ok := s.(*session)
	if !ok {
		return fmt.Errorf("%w: foreign session", engine.ErrRender)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live--
	f.closed = append(f.closed, sess.loc)
	return nil
}

// ColorOf is the fill colour of every surface rendered for loc.
func ColorOf(loc source.Location) color.RGBA {
	h := fnv.New32a()
	h.Write([]byte(loc))
	v := h.Sum32()
	return color.RGBA{R: uint8(v), G: uint8(v >> 8), B: uint8(v >> 16) | 1, A: 0xff}
}

func (f *Fake) Opened() []source.Location {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]source.Location(nil), f.opened...)
}

func (f *Fake) Closed() []source.Location {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]source.Location(nil), f.closed...)
}

func (f *Fake) Renders() []RenderCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RenderCall(nil), f.renders...)
}

// Live is the number of sessions opened and not yet closed.
func (f *Fake) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live
}
