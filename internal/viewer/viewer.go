// Package viewer implements the single-page viewer container: it keeps at most
// one rendering session, keyed by location, and shows page 1 of it.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/MalithGihan/pdfview/internal/engine"
	"github.com/MalithGihan/pdfview/internal/source"
)

// FirstPage is the only page the viewer renders.
const FirstPage = 1

// State is the lifecycle of a viewer's current mount.
type State int

const (
	Unloaded State = iota
	Loading
	Rendered
	Failed
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Rendered:
		return "rendered"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for st := Unloaded; st <= Failed; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("viewer: unknown state %q", b)
}

// Option configures a Viewer.
type Option func(*Viewer)

func WithLogger(l *zap.Logger) Option {
	return func(v *Viewer) {
		if l != nil {
			v.log = l
		}
	}
}

// WithDPI sets the raster resolution; zero keeps the engine default.
func WithDPI(dpi float64) Option {
	return func(v *Viewer) { v.dpi = dpi }
}

// Snapshot is what a host can observe of a viewer. Surface is nil unless
// State is Rendered.
type Snapshot struct {
	Location source.Location
	State    State
	Surface  *engine.Surface
	Err      error
}

// Viewer is a container that holds at most one rendering session and shows
// page 1 of it. It is safe for concurrent use.
type Viewer struct {
	rt  *engine.Runtime
	log *zap.Logger
	dpi float64

	mu      sync.Mutex
	gen     uint64
	loc     source.Location
	state   State
	err     error
	surface *engine.Surface
	eng     engine.Engine
	session engine.Session
	cancel  context.CancelFunc
	settled chan struct{}
}

// New returns an unmounted viewer that renders on rt.
func New(rt *engine.Runtime, opts ...Option) *Viewer {
	v := &Viewer{
		rt:      rt,
		log:     zap.NewNop(),
		settled: closedChan(),
	}
	for _, o := range opts {
		o(v)
	}
	v.log = v.log.Named("viewer")
	return v
}

// Mount shows page 1 of loc. Mounting the location that is already mounted
// does nothing; any other location replaces the current session. Load and
// render failures are not returned: they leave the viewport empty.
func (v *Viewer) Mount(loc source.Location) error {
	if err := loc.Validate(); err != nil {
		return err
	}

	v.mu.Lock()
	if v.state != Unloaded && v.loc == loc {
		v.mu.Unlock()
		return nil
	}
	eng, old := v.detachLocked()
	v.gen++
	gen := v.gen
	ctx, cancel := context.WithCancel(context.Background())
	settled := make(chan struct{})
	v.loc, v.state, v.cancel, v.settled = loc, Loading, cancel, settled
	v.mu.Unlock()

	v.release(eng, old)
	v.log.Debug("mount", zap.Stringer("location", loc), zap.Uint64("generation", gen))

	err := v.rt.Schedule(ctx, func(ctx context.Context, eng engine.Engine) {
		v.load(ctx, eng, gen, loc, settled)
	})
	if err != nil {
		v.finish(gen, nil, nil, nil, err, settled)
	}
	return nil
}

// Unmount releases the session and empties the viewport.
func (v *Viewer) Unmount() {
	v.mu.Lock()
	eng, old := v.detachLocked()
	v.gen++
	v.loc, v.state, v.err = "", Unloaded, nil
	v.settled = closedChan()
	v.mu.Unlock()

	v.release(eng, old)
}

// Snapshot returns the viewer's current location, state and surface.
func (v *Viewer) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Snapshot{Location: v.loc, State: v.state, Surface: v.surface, Err: v.err}
}

// Settled is closed once the current mount has finished rendering or failed.
func (v *Viewer) Settled() <-chan struct{} {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.settled
}

// Wait blocks until the current mount settles or ctx ends.
func (v *Viewer) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-v.Settled():
		return v.Snapshot(), nil
	case <-ctx.Done():
		return v.Snapshot(), ctx.Err()
	}
}

// load opens loc and renders page 1. An engine panic settles the mount as
// failed instead of leaving it loading.
func (v *Viewer) load(ctx context.Context, eng engine.Engine, gen uint64, loc source.Location, settled chan struct{}) {
	var (
		sess     engine.Session
		finished bool
	)
	defer func() {
		p := recover()
		if p == nil {
			return
		}
		if finished {
			panic(p)
		}
		v.finish(gen, eng, sess, nil, fmt.Errorf("%w: engine panic: %v", engine.ErrRender, p), settled)
	}()

	sess, err := eng.Open(ctx, loc)
	if err != nil {
		finished = true
		v.finish(gen, eng, nil, nil, err, settled)
		return
	}
	surf, err := eng.Render(ctx, sess, FirstPage, engine.Options{DPI: v.dpi})
	if err == nil && surf.Empty() {
		err = engine.ErrRender
	}
	finished = true
	v.finish(gen, eng, sess, surf, err, settled)
}

// finish publishes a render result unless a later mount superseded it, in
// which case the session is closed and the result dropped.
func (v *Viewer) finish(gen uint64, eng engine.Engine, sess engine.Session, surf *engine.Surface, err error, settled chan struct{}) {
	v.mu.Lock()
	stale := gen != v.gen
	if !stale {
		v.eng, v.session = eng, sess
		if err != nil {
			v.state, v.err, v.surface = Failed, err, nil
		} else {
			v.state, v.err, v.surface = Rendered, nil, surf
		}
	}
	loc := v.loc
	v.mu.Unlock()
	if stale {
		v.release(eng, sess)
	}
	close(settled)

	switch {
	case stale:
		v.log.Debug("dropped superseded render", zap.Uint64("generation", gen))
	case errors.Is(err, context.Canceled):
		v.log.Debug("render canceled", zap.Stringer("location", loc))
	case err != nil:
		v.log.Warn("page 1 not rendered", zap.Stringer("location", loc), zap.Error(err))
	default:
		v.log.Info("page 1 rendered", zap.Stringer("location", loc),
			zap.Int("width", surf.Image.Bounds().Dx()), zap.Int("height", surf.Image.Bounds().Dy()))
	}
}

func (v *Viewer) detachLocked() (engine.Engine, engine.Session) {
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	eng, sess := v.eng, v.session
	v.eng, v.session, v.surface, v.err = nil, nil, nil, nil
	return eng, sess
}

func (v *Viewer) release(eng engine.Engine, sess engine.Session) {
	if eng == nil || sess == nil {
		return
	}
	if err := eng.Close(sess); err != nil {
		v.log.Warn("closing session", zap.Stringer("location", sess.Location()), zap.Error(err))
	}
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
