package viewer

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MalithGihan/pdfview/internal/engine"
	"github.com/MalithGihan/pdfview/internal/engine/enginetest"
	"github.com/MalithGihan/pdfview/internal/source"
)

const (
	paystub source.Location = "/pdfs/paystub.pdf"
	invoice source.Location = "/pdfs/invoice.pdf"
	missing source.Location = "/pdfs/missing.pdf"
)

func newRuntime(t *testing.T, fake *enginetest.Fake) *engine.Runtime {
	t.Helper()
	rt := engine.NewRuntime(fake.Factory(), engine.Config{}, 2, zaptest.NewLogger(t))
	t.Cleanup(func() { rt.Close() })
	return rt
}

func waitSettled(t *testing.T, v *Viewer) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := v.Wait(ctx)
	require.NoError(t, err, "viewer did not settle")
	return snap
}

func TestMountRendersFirstPageWithoutLayers(t *testing.T) {
	fake := enginetest.New().AddDocument(paystub, 1)
	v := New(newRuntime(t, fake), WithLogger(zaptest.NewLogger(t)), WithDPI(96))

	assert.Equal(t, Unloaded, v.Snapshot().State)
	require.NoError(t, v.Mount(paystub))

	snap := waitSettled(t, v)
	require.Equal(t, Rendered, snap.State)
	assert.Equal(t, paystub, snap.Location)
	require.False(t, snap.Surface.Empty())
	assert.Equal(t, FirstPage, snap.Surface.Page)

	renders := fake.Renders()
	require.Len(t, renders, 1)
	assert.Equal(t, enginetest.RenderCall{
		Location: paystub,
		Page:     1,
		Options:  engine.Options{DPI: 96, TextLayer: false, AnnotationLayer: false},
	}, renders[0])
}

func TestMountMissingDocumentStaysEmpty(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	fake := enginetest.New()
	v := New(newRuntime(t, fake), WithLogger(zap.New(core)))

	assert.NotPanics(t, func() { require.NoError(t, v.Mount(missing)) })

	snap := waitSettled(t, v)
	assert.Equal(t, Failed, snap.State)
	assert.Nil(t, snap.Surface)
	assert.ErrorIs(t, snap.Err, engine.ErrDocumentLoad)
	assert.ErrorIs(t, snap.Err, source.ErrNotFound)
	assert.Equal(t, 0, fake.Live())

	img := v.Compose(Viewport{Width: 100, Height: 100})
	for _, p := range img.Pix {
		require.Zero(t, p)
	}
	assert.Equal(t, 1, logs.FilterMessage("page 1 not rendered").Len())
}

// panicEngine delegates to an engine but panics while rendering.
type panicEngine struct{ engine.Engine }

func (panicEngine) Render(context.Context, engine.Session, int, engine.Options) (*engine.Surface, error) {
	panic("image: NewRGBA Rectangle has huge or negative dimensions")
}

func TestEnginePanicSettlesAsFailed(t *testing.T) {
	fake := enginetest.New().AddDocument(paystub, 1)
	factory := func(cfg engine.Config) (engine.Engine, error) {
		eng, err := fake.Factory()(cfg)
		if err != nil {
			return nil, err
		}
		return panicEngine{eng}, nil
	}
	rt := engine.NewRuntime(factory, engine.Config{}, 1, zaptest.NewLogger(t))
	t.Cleanup(func() { rt.Close() })
	v := New(rt, WithLogger(zaptest.NewLogger(t)))

	require.NoError(t, v.Mount(paystub))
	snap := waitSettled(t, v)
	assert.Equal(t, Failed, snap.State)
	assert.Nil(t, snap.Surface)
	assert.ErrorIs(t, snap.Err, engine.ErrRender)

	v.Unmount()
	assert.Equal(t, 0, fake.Live(), "session opened before the panic is released")
}

func TestMountRejectsEmptyLocation(t *testing.T) {
	v := New(newRuntime(t, enginetest.New()))
	assert.ErrorIs(t, v.Mount(""), source.ErrInvalidLocation)
	assert.Equal(t, Unloaded, v.Snapshot().State)
}

func TestEmptyDocumentFails(t *testing.T) {
	fake := enginetest.New().AddDocument(paystub, 0)
	v := New(newRuntime(t, fake))
	require.NoError(t, v.Mount(paystub))

	snap := waitSettled(t, v)
	assert.Equal(t, Failed, snap.State)
	assert.ErrorIs(t, snap.Err, engine.ErrPageRange)
}

func TestChangingLocationReplacesSession(t *testing.T) {
	fake := enginetest.New().AddDocument(paystub, 1).AddDocument(invoice, 3)
	v := New(newRuntime(t, fake))

	require.NoError(t, v.Mount(paystub))
	first := waitSettled(t, v)
	require.Equal(t, Rendered, first.State)

	require.NoError(t, v.Mount(invoice))
	second := waitSettled(t, v)
	require.Equal(t, Rendered, second.State)
	assert.Equal(t, invoice, second.Location)
	assert.NotSame(t, first.Surface, second.Surface)
	assert.Equal(t, enginetest.ColorOf(invoice), second.Surface.Image.RGBAAt(0, 0))

	assert.Equal(t, []source.Location{paystub}, fake.Closed())
	assert.Equal(t, 1, fake.Live())
}

func TestRemountSameLocationIsNoop(t *testing.T) {
	fake := enginetest.New().AddDocument(paystub, 1)
	rt := newRuntime(t, fake)
	v := New(rt)

	require.NoError(t, v.Mount(paystub))
	first := waitSettled(t, v)
	require.NoError(t, v.Mount(paystub))
	second := waitSettled(t, v)

	assert.Same(t, first.Surface, second.Surface)
	assert.Len(t, fake.Opened(), 1)
	assert.Equal(t, 1, rt.Initializations())
}

func TestEngineInitializedOncePerProcess(t *testing.T) {
	fake := enginetest.New().AddDocument(paystub, 1)
	rt := newRuntime(t, fake)

	var wg sync.WaitGroup
	viewers := make([]*Viewer, 8)
	for i := range viewers {
		viewers[i] = New(rt)
		wg.Add(1)
		go func(v *Viewer) {
			defer wg.Done()
			assert.NoError(t, v.Mount(paystub))
		}(viewers[i])
	}
	wg.Wait()
	for _, v := range viewers {
		assert.Equal(t, Rendered, waitSettled(t, v).State)
	}

	assert.Equal(t, 1, rt.Initializations())
	assert.Equal(t, len(viewers), fake.Live())
}

func TestSupersededRenderIsDropped(t *testing.T) {
	fake := enginetest.New().AddDocument(paystub, 1).AddDocument(invoice, 1)
	fake.IgnoreCancel = true
	release := fake.Gate(paystub)
	defer release()
	v := New(newRuntime(t, fake))

	require.NoError(t, v.Mount(paystub))
	staleSettled := v.Settled()
	require.NoError(t, v.Mount(invoice))

	snap := waitSettled(t, v)
	require.Equal(t, Rendered, snap.State)
	assert.Equal(t, invoice, snap.Location)

	release()
	select {
	case <-staleSettled:
	case <-time.After(5 * time.Second):
		t.Fatal("superseded mount never settled")
	}

	snap = v.Snapshot()
	assert.Equal(t, invoice, snap.Location)
	assert.Equal(t, enginetest.ColorOf(invoice), snap.Surface.Image.RGBAAt(0, 0))
	assert.Equal(t, 1, fake.Live())
	assert.Equal(t, []source.Location{paystub}, fake.Closed())
}

func TestUnmountReleasesSession(t *testing.T) {
	fake := enginetest.New().AddDocument(paystub, 1)
	v := New(newRuntime(t, fake))

	require.NoError(t, v.Mount(paystub))
	waitSettled(t, v)
	require.Equal(t, 1, fake.Live())

	v.Unmount()
	snap := v.Snapshot()
	assert.Equal(t, Unloaded, snap.State)
	assert.Nil(t, snap.Surface)
	assert.Equal(t, 0, fake.Live())

	// Mounting the same location again after unmount opens a new session.
	require.NoError(t, v.Mount(paystub))
	assert.Equal(t, Rendered, waitSettled(t, v).State)
	assert.Len(t, fake.Opened(), 2)
}

func TestUnmountCancelsInFlightLoad(t *testing.T) {
	fake := enginetest.New().AddDocument(paystub, 1)
	fake.Gate(paystub)
	v := New(newRuntime(t, fake))

	require.NoError(t, v.Mount(paystub))
	inflight := v.Settled()
	v.Unmount()

	select {
	case <-inflight:
	case <-time.After(5 * time.Second):
		t.Fatal("canceled load never settled")
	}
	assert.Equal(t, Unloaded, v.Snapshot().State)
	assert.Equal(t, 0, fake.Live())
}

func TestComposeCentersPage(t *testing.T) {
	fake := enginetest.New().AddDocument(paystub, 1)
	v := New(newRuntime(t, fake))
	require.NoError(t, v.Mount(paystub))
	waitSettled(t, v)

	img := v.Compose(Viewport{Width: 100, Height: 100})
	require.Equal(t, image.Rect(0, 0, 100, 100), img.Bounds())

	// The fake page is 40x60, so it sits at (30,20)-(70,80).
	want := enginetest.ColorOf(paystub)
	assert.Equal(t, want, img.RGBAAt(30, 20))
	assert.Equal(t, want, img.RGBAAt(69, 79))
	assert.Zero(t, img.RGBAAt(29, 50).A)
	assert.Zero(t, img.RGBAAt(70, 50).A)
	assert.Zero(t, img.RGBAAt(50, 19).A)
	assert.Zero(t, img.RGBAAt(50, 80).A)
}

func TestCenter(t *testing.T) {
	cases := []struct {
		name string
		page image.Point
		vp   Viewport
		want image.Point
	}{
		{"fits", image.Pt(40, 60), Viewport{100, 100}, image.Pt(30, 20)},
		{"exact", image.Pt(100, 100), Viewport{100, 100}, image.Pt(0, 0)},
		{"wider than viewport", image.Pt(300, 50), Viewport{100, 100}, image.Pt(0, 25)},
		{"taller than viewport", image.Pt(50, 300), Viewport{100, 100}, image.Pt(25, 0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Center(tc.page, tc.vp))
		})
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unloaded", Unloaded.String())
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "rendered", Rendered.String())
	assert.Equal(t, "failed", Failed.String())
	b, err := Rendered.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "rendered", string(b))

	var s State
	require.NoError(t, s.UnmarshalText([]byte("failed")))
	assert.Equal(t, Failed, s)
	assert.Error(t, s.UnmarshalText([]byte("zoomed")))
}
