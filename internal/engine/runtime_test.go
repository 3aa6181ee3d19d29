package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/MalithGihan/pdfview/internal/engine"
	"github.com/MalithGihan/pdfview/internal/engine/enginetest"
)

func TestRuntimeEnsureIsIdempotent(t *testing.T) {
	fake := enginetest.New()
	calls := 0
	var mu sync.Mutex
	factory := func(cfg engine.Config) (engine.Engine, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return fake, nil
	}
	rt := engine.NewRuntime(factory, engine.Config{}, 2, zaptest.NewLogger(t))
	defer rt.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eng, err := rt.Ensure()
			assert.NoError(t, err)
			assert.Same(t, fake, eng)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, rt.Initializations())
}

func TestRuntimeInitFailureIsSticky(t *testing.T) {
	boom := errors.New("no worker")
	calls := 0
	rt := engine.NewRuntime(func(engine.Config) (engine.Engine, error) {
		calls++
		return nil, boom
	}, engine.Config{}, 1, zaptest.NewLogger(t))
	defer rt.Close()

	_, err := rt.Ensure()
	require.ErrorIs(t, err, boom)
	err = rt.Schedule(context.Background(), func(context.Context, engine.Engine) {})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRuntimeScheduleRunsJobs(t *testing.T) {
	fake := enginetest.New()
	rt := engine.NewRuntime(fake.Factory(), engine.Config{}, 3, zaptest.NewLogger(t))
	defer rt.Close()

	var wg sync.WaitGroup
	got := make(chan engine.Engine, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		require.NoError(t, rt.Schedule(context.Background(), func(_ context.Context, eng engine.Engine) {
			defer wg.Done()
			got <- eng
		}))
	}
	wg.Wait()
	close(got)
	for eng := range got {
		assert.Same(t, fake, eng)
	}
}

func TestRuntimeSurvivesPanickingJob(t *testing.T) {
	rt := engine.NewRuntime(enginetest.New().Factory(), engine.Config{}, 1, zaptest.NewLogger(t))
	defer rt.Close()

	require.NoError(t, rt.Schedule(context.Background(), func(context.Context, engine.Engine) {
		panic("bad page")
	}))
	done := make(chan struct{})
	require.NoError(t, rt.Schedule(context.Background(), func(context.Context, engine.Engine) {
		close(done)
	}))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not recover from panic")
	}
}

func TestRuntimeClose(t *testing.T) {
	rt := engine.NewRuntime(enginetest.New().Factory(), engine.Config{}, 1, zaptest.NewLogger(t))
	_, err := rt.Ensure()
	require.NoError(t, err)
	require.NoError(t, rt.Close())
	require.NoError(t, rt.Close())

	err = rt.Schedule(context.Background(), func(context.Context, engine.Engine) {})
	assert.ErrorIs(t, err, engine.ErrClosed)
}

func TestRegistry(t *testing.T) {
	engine.Register("test-registry", enginetest.New().Factory())
	f, err := engine.Lookup("test-registry")
	require.NoError(t, err)
	assert.NotNil(t, f)
	assert.Contains(t, engine.Names(), "test-registry")

	_, err = engine.Lookup("does-not-exist")
	assert.ErrorIs(t, err, engine.ErrUnknownEngine)

	assert.Panics(t, func() { engine.Register("test-registry", enginetest.New().Factory()) })
}
