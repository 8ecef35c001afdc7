package mapengine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-itinerary-map/internal/types"
)

// fakeSurface records what the renderer asks of it. Project maps one degree to
// one hundred pixels.
type fakeSurface struct {
	view          View
	base          *BaseLayer
	overlays      map[OverlayHandle]Overlay
	next          OverlayHandle
	fits          int
	popup         *Popup
	fullscreen    bool
	fullscreenErr error
	baseErr       error
	closed        bool
	// shift is added to every projection, standing in for a viewport change.
	shift ScreenPoint
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{overlays: make(map[OverlayHandle]Overlay)}
}

func (s *fakeSurface) SetView(v View) error { s.view = v; return nil }
func (s *fakeSurface) View() View           { return s.view }

func (s *fakeSurface) AttachBaseLayer(l BaseLayer) error {
	if s.baseErr != nil {
		return s.baseErr
	}
	s.base = &l
	return nil
}

func (s *fakeSurface) AddOverlay(o Overlay) (OverlayHandle, error) {
	s.next++
	s.overlays[s.next] = o
	return s.next, nil
}

func (s *fakeSurface) RemoveOverlay(h OverlayHandle) error {
	if _, ok := s.overlays[h]; !ok {
		return errors.New("unknown handle")
	}
	delete(s.overlays, h)
	return nil
}

func (s *fakeSurface) OverlayCount() int { return len(s.overlays) }

func (s *fakeSurface) FitBounds(b orb.Bound, _ int) error {
	s.fits++
	s.view = View{Center: b.Center(), Zoom: 12}
	return nil
}

func (s *fakeSurface) Project(p orb.Point) (ScreenPoint, error) {
	return ScreenPoint{X: p.Lon()*100 + s.shift.X, Y: -p.Lat()*100 + s.shift.Y}, nil
}

func (s *fakeSurface) ShowPopup(p Popup) error { s.popup = &p; return nil }
func (s *fakeSurface) HidePopup() error        { s.popup = nil; return nil }

func (s *fakeSurface) RequestFullscreen(on bool) error {
	if s.fullscreenErr != nil {
		return s.fullscreenErr
	}
	s.fullscreen = on
	return nil
}

func (s *fakeSurface) Close() error {
	s.closed = true
	s.overlays = map[OverlayHandle]Overlay{}
	return nil
}

// MockSurfaceProvider is a mock implementation of SurfaceProvider
type MockSurfaceProvider struct {
	mock.Mock
}

func (m *MockSurfaceProvider) Acquire(ctx context.Context, container Container) (Surface, error) {
	args := m.Called(ctx, container)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(Surface), args.Error(1)
}

// blockingProvider waits for release or for ctx to end.
type blockingProvider struct {
	started chan struct{}
	release chan struct{}
	surface *fakeSurface
}

func (p *blockingProvider) Acquire(ctx context.Context, _ Container) (Surface, error) {
	close(p.started)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.release:
		return p.surface, nil
	}
}

var testContainer = Container{ID: "map", Width: 800, Height: 600}

func setupEngineTest(t *testing.T) (*Engine, *fakeSurface, *MockSurfaceProvider) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	surface := newFakeSurface()
	provider := new(MockSurfaceProvider)
	provider.On("Acquire", mock.Anything, testContainer).Return(surface, nil)
	engine := New(provider, Options{
		DefaultView: View{Center: orb.Point{0, 0}, Zoom: 2},
		BaseLayer:   BaseLayer{Name: "osm"},
	}, logger)
	return engine, surface, provider
}

func TestEngine_InitAndRedraw(t *testing.T) {
	ctx := context.Background()
	engine, surface, provider := setupEngineTest(t)

	require.NoError(t, engine.Init(ctx, testContainer))
	require.NotNil(t, surface.base)
	assert.Equal(t, "osm", surface.base.Name)
	assert.Equal(t, StateReady, engine.Snapshot().State)

	engine.SetItinerary(ctx, threeDayItinerary())
	snap := engine.Snapshot()
	assert.Equal(t, 3, snap.MarkerCount)
	assert.Equal(t, 1, snap.RouteCount)
	assert.Equal(t, 1, snap.ArrowCount)
	assert.Equal(t, 5, snap.OverlayCount)
	assert.Equal(t, 5, surface.OverlayCount())
	assert.Equal(t, "Lisbon", snap.Destination)
	assert.Equal(t, 1, surface.fits)

	t.Run("repeated redraws never accumulate overlays", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			engine.Redraw(ctx)
			engine.ToggleLayer(ctx, types.ActivityMeal)
			assert.Equal(t, engine.Snapshot().Scene.OverlayCount(), surface.OverlayCount())
		}
		engine.ResetLayers(ctx)
		assert.Equal(t, 5, surface.OverlayCount())
	})

	t.Run("empty day leaves the viewport alone", func(t *testing.T) {
		before := surface.view
		fits := surface.fits
		engine.SelectDay(ctx, intPtr(3))
		assert.Equal(t, 0, engine.Snapshot().MarkerCount)
		assert.Equal(t, 0, surface.OverlayCount())
		assert.Equal(t, fits, surface.fits)
		assert.Equal(t, before, surface.view)
	})

	t.Run("reset restores everything", func(t *testing.T) {
		engine.ToggleLayer(ctx, types.ActivityAttraction)
		engine.Reset(ctx)
		snap := engine.Snapshot()
		assert.Nil(t, snap.SelectedDay)
		assert.Empty(t, snap.HiddenLayers)
		assert.Equal(t, 3, snap.MarkerCount)
	})

	provider.AssertExpectations(t)
}

func TestEngine_ToggleIsIdempotentInPairs(t *testing.T) {
	ctx := context.Background()
	engine, surface, _ := setupEngineTest(t)
	require.NoError(t, engine.Init(ctx, testContainer))
	engine.SetItinerary(ctx, threeDayItinerary())

	before := engine.Snapshot().Scene
	assert.False(t, engine.ToggleLayer(ctx, types.ActivityAttraction))
	assert.Equal(t, 1, engine.Snapshot().MarkerCount)
	assert.True(t, engine.ToggleLayer(ctx, types.ActivityAttraction))

	assert.Equal(t, before, engine.Snapshot().Scene)
	assert.Equal(t, before.OverlayCount(), surface.OverlayCount())
}

func TestEngine_RedrawBeforeInitIsDeferred(t *testing.T) {
	ctx := context.Background()
	engine, surface, _ := setupEngineTest(t)

	engine.SetItinerary(ctx, threeDayItinerary())
	snap := engine.Snapshot()
	assert.True(t, snap.Pending)
	assert.Equal(t, StateUninitialized, snap.State)
	assert.Zero(t, surface.OverlayCount())

	require.NoError(t, engine.Init(ctx, testContainer))
	snap = engine.Snapshot()
	assert.False(t, snap.Pending)
	assert.Equal(t, 5, surface.OverlayCount())
}

func TestEngine_InitFailureAndRetry(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	surface := newFakeSurface()
	provider := new(MockSurfaceProvider)
	boom := errors.New("container not mounted")
	provider.On("Acquire", mock.Anything, testContainer).Return(nil, boom).Once()
	provider.On("Acquire", mock.Anything, testContainer).Return(surface, nil).Once()
	engine := New(provider, Options{BaseLayer: BaseLayer{Name: "osm"}}, logger)

	err := engine.Init(ctx, testContainer)
	var ierr *InitializationError
	require.ErrorAs(t, err, &ierr)
	assert.True(t, ierr.Retryable())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "map", ierr.Container)

	snap := engine.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.True(t, snap.Retryable)
	assert.NotEmpty(t, snap.Error)

	engine.SetItinerary(ctx, threeDayItinerary())
	assert.True(t, engine.Snapshot().Pending)

	require.NoError(t, engine.Retry(ctx))
	snap = engine.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.Empty(t, snap.Error)
	assert.Equal(t, 5, surface.OverlayCount())
	provider.AssertExpectations(t)
}

func TestEngine_BaseLayerFailureClosesSurface(t *testing.T) {
	ctx := context.Background()
	engine, surface, _ := setupEngineTest(t)
	surface.baseErr = errors.New("tiles unreachable")

	err := engine.Init(ctx, testContainer)
	var ierr *InitializationError
	require.ErrorAs(t, err, &ierr)
	assert.True(t, surface.closed)
	assert.Equal(t, StateFailed, engine.Snapshot().State)
}

func TestEngine_InitTimeout(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	provider := &blockingProvider{started: make(chan struct{}), release: make(chan struct{})}
	engine := New(provider, Options{InitTimeout: 20 * time.Millisecond}, logger)

	err := engine.Init(context.Background(), testContainer)
	var ierr *InitializationError
	require.ErrorAs(t, err, &ierr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEngine_TeardownDuringInit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	surface := newFakeSurface()
	provider := &blockingProvider{started: make(chan struct{}), release: make(chan struct{}), surface: surface}
	engine := New(provider, Options{BaseLayer: BaseLayer{Name: "osm"}}, logger)

	done := make(chan error, 1)
	go func() { done <- engine.Init(context.Background(), testContainer) }()
	<-provider.started

	assert.ErrorIs(t, engine.Init(context.Background(), testContainer), ErrInitInProgress)
	require.NoError(t, engine.Teardown(context.Background()))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrDisposed)
	case <-time.After(time.Second):
		t.Fatal("init did not return after teardown")
	}
	assert.Equal(t, StateDisposed, engine.Snapshot().State)
	assert.False(t, surface.closed, "surface was never handed over")
}

func TestEngine_SelectMarker(t *testing.T) {
	ctx := context.Background()
	engine, surface, _ := setupEngineTest(t)
	require.NoError(t, engine.Init(ctx, testContainer))
	engine.SetItinerary(ctx, threeDayItinerary())

	var mu sync.Mutex
	var events []ActivitySelected
	unsubscribe := engine.OnActivitySelected(func(ev ActivitySelected) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
		// Listeners may call back into the engine.
		_ = engine.Snapshot()
	})

	t.Run("opens popup and notifies", func(t *testing.T) {
		popup, err := engine.SelectMarker(ctx, "d1-a1")
		require.NoError(t, err)
		assert.Equal(t, "Pasteis de Belem", popup.Title)
		require.NotNil(t, surface.popup)
		assert.Equal(t, "d1-a1", surface.popup.MarkerID)
		assert.InDelta(t, -920.32, popup.Position.X, 1e-6)
		assert.InDelta(t, -3869.75+PopupOffset.Y, popup.Position.Y, 1e-6)

		require.Len(t, events, 1)
		assert.Equal(t, 1, events[0].Day)
		assert.Equal(t, "Pasteis de Belem", events[0].Activity.Title)
	})

	t.Run("second selection replaces the popup", func(t *testing.T) {
		_, err := engine.SelectMarker(ctx, "d2-a0")
		require.NoError(t, err)
		snap := engine.Snapshot()
		require.NotNil(t, snap.Popup)
		assert.Equal(t, "d2-a0", snap.Popup.MarkerID)
	})

	t.Run("unknown marker", func(t *testing.T) {
		_, err := engine.SelectMarker(ctx, "d9-a0")
		assert.ErrorIs(t, err, ErrMarkerNotFound)
	})

	t.Run("close is explicit", func(t *testing.T) {
		assert.True(t, engine.ClosePopup())
		assert.Nil(t, surface.popup)
		assert.False(t, engine.ClosePopup())
	})

	t.Run("unsubscribe", func(t *testing.T) {
		unsubscribe()
		assert.Zero(t, engine.ListenerCount())
		_, err := engine.SelectMarker(ctx, "d1-a0")
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})
}

func TestEngine_ToggleFullscreen(t *testing.T) {
	ctx := context.Background()

	t.Run("accepted", func(t *testing.T) {
		engine, surface, _ := setupEngineTest(t)
		require.NoError(t, engine.Init(ctx, testContainer))
		assert.True(t, engine.ToggleFullscreen())
		assert.True(t, surface.fullscreen)
		assert.False(t, engine.ToggleFullscreen())
	})

	t.Run("refusal keeps the previous state", func(t *testing.T) {
		engine, surface, _ := setupEngineTest(t)
		surface.fullscreenErr = errors.New("not allowed")
		require.NoError(t, engine.Init(ctx, testContainer))
		assert.False(t, engine.ToggleFullscreen())
		assert.False(t, engine.Snapshot().Fullscreen)
	})
}

func TestEngine_Teardown(t *testing.T) {
	ctx := context.Background()
	engine, surface, _ := setupEngineTest(t)
	require.NoError(t, engine.Init(ctx, testContainer))
	engine.SetItinerary(ctx, threeDayItinerary())
	engine.OnActivitySelected(func(ActivitySelected) {})
	_, err := engine.SelectMarker(ctx, "d1-a0")
	require.NoError(t, err)

	require.NoError(t, engine.Teardown(ctx))
	assert.True(t, surface.closed)
	assert.Zero(t, surface.OverlayCount())
	assert.Nil(t, surface.popup)
	assert.Zero(t, engine.ListenerCount())

	snap := engine.Snapshot()
	assert.Equal(t, StateDisposed, snap.State)
	assert.Zero(t, snap.OverlayCount)
	assert.Nil(t, snap.Popup)

	t.Run("idempotent", func(t *testing.T) {
		assert.NoError(t, engine.Teardown(ctx))
	})

	t.Run("later calls are no-ops", func(t *testing.T) {
		engine.Redraw(ctx)
		engine.ToggleLayer(ctx, types.ActivityMeal)
		assert.Zero(t, engine.Snapshot().OverlayCount)
		_, err := engine.SelectMarker(ctx, "d1-a0")
		assert.ErrorIs(t, err, ErrDisposed)
		assert.ErrorIs(t, engine.Init(ctx, testContainer), ErrDisposed)
		assert.ErrorIs(t, engine.WithSurface(func(Surface, Scene) error { return nil }), ErrDisposed)
	})
}

func TestEngine_MultipleInstancesAreIndependent(t *testing.T) {
	ctx := context.Background()
	a, surfaceA, _ := setupEngineTest(t)
	b, surfaceB, _ := setupEngineTest(t)
	require.NoError(t, a.Init(ctx, testContainer))
	require.NoError(t, b.Init(ctx, testContainer))

	a.SetItinerary(ctx, threeDayItinerary())
	assert.Equal(t, 5, surfaceA.OverlayCount())
	assert.Zero(t, surfaceB.OverlayCount())

	require.NoError(t, a.Teardown(ctx))
	assert.Equal(t, StateReady, b.Snapshot().State)
}

func TestEngine_PopupFollowsMarkerAfterRedraw(t *testing.T) {
	ctx := context.Background()
	engine, surface, _ := setupEngineTest(t)
	require.NoError(t, engine.Init(ctx, testContainer))
	engine.SetItinerary(ctx, threeDayItinerary())

	_, err := engine.SelectMarker(ctx, "d1-a0")
	require.NoError(t, err)

	surface.shift = ScreenPoint{X: 250, Y: -120}
	engine.SelectDay(ctx, intPtr(1))

	anchor, err := surface.Project(orb.Point{-9.2160, 38.6916})
	require.NoError(t, err)
	want := ScreenPoint{X: anchor.X + PopupOffset.X, Y: anchor.Y + PopupOffset.Y}

	snap := engine.Snapshot()
	require.NotNil(t, snap.Popup)
	assert.Equal(t, "d1-a0", snap.Popup.MarkerID)
	assert.InDelta(t, want.X, snap.Popup.Position.X, 1e-6)
	assert.InDelta(t, want.Y, snap.Popup.Position.Y, 1e-6)
	require.NotNil(t, surface.popup)
	assert.Equal(t, snap.Popup.Position, surface.popup.Position)

	t.Run("marker filtered out keeps the last position", func(t *testing.T) {
		surface.shift = ScreenPoint{}
		engine.SelectDay(ctx, intPtr(2))

		snap := engine.Snapshot()
		require.NotNil(t, snap.Popup)
		assert.Equal(t, "d1-a0", snap.Popup.MarkerID)
		assert.InDelta(t, want.X, snap.Popup.Position.X, 1e-6)
		assert.InDelta(t, want.Y, snap.Popup.Position.Y, 1e-6)
	})
}

func TestEngine_ConcurrentOperationsNeverInterleave(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := setupEngineTest(t)
	require.NoError(t, engine.Init(ctx, testContainer))
	engine.SetItinerary(ctx, threeDayItinerary())

	const workers, ops = 8, 200
	categories := []types.ActivityType{types.ActivityAttraction, types.ActivityMeal, types.ActivityEntertainment}

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < ops; i++ {
				switch (w + i) % 7 {
				case 0:
					engine.ToggleLayer(ctx, categories[i%len(categories)])
				case 1:
					engine.SelectDay(ctx, intPtr(i%4))
				case 2:
					engine.SelectDay(ctx, nil)
				case 3:
					engine.SetItinerary(ctx, threeDayItinerary())
				case 4:
					_, _ = engine.SelectMarker(ctx, "d1-a"+strconv.Itoa(i%2))
				case 5:
					engine.ClosePopup()
				case 6:
					_ = engine.Snapshot()
				}
				err := engine.WithSurface(func(sf Surface, scene Scene) error {
					if sf.OverlayCount() != scene.OverlayCount() {
						return errors.New("surface has " + strconv.Itoa(sf.OverlayCount()) +
							" overlays, scene has " + strconv.Itoa(scene.OverlayCount()))
					}
					return nil
				})
				if err != nil {
					errs <- err
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	snap := engine.Snapshot()
	assert.Equal(t, snap.Scene.OverlayCount(), snap.OverlayCount)
}

func TestEngine_DoneClosesOnTeardown(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := setupEngineTest(t)
	require.NoError(t, engine.Init(ctx, testContainer))

	select {
	case <-engine.Done():
		t.Fatal("done closed before teardown")
	default:
	}

	require.NoError(t, engine.Teardown(ctx))
	require.NoError(t, engine.Teardown(ctx))
	select {
	case <-engine.Done():
	default:
		t.Fatal("done still open after teardown")
	}
}
