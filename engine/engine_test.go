package engine

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/anima-loader/engine/core"
	"github.com/spaghettifunk/anima-loader/engine/resources"
	"github.com/spaghettifunk/anima-loader/engine/systems"
)

func writePNG(t *testing.T, path string, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testConfig(dir string) *core.Config {
	cfg := core.DefaultConfig()
	cfg.Jobs.Workers = 2
	cfg.Storage = core.StorageConfig{Package: dir}
	return cfg
}

func TestEngineRunsAsyncLoadsToCompletion(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), color.NRGBA{R: 9, A: 255})

	var (
		e        *Engine
		handle   *resources.LoadHandle
		calls    int
		updates  int
		loadedOn int
	)
	g := &Game{
		ApplicationConfig: &ApplicationConfig{Name: "test", Config: testConfig(dir), TargetFrameRate: 200},
		FnInitialize: func(sm *systems.SystemManager) error {
			var err error
			handle, err = sm.ResourceSystem().LoadAsync(resources.ResourceTypeTexture, resources.StorageLocationPackage, "a.png", func(resources.Resource) {
				calls++
				loadedOn = updates
			})
			return err
		},
		FnUpdate: func(time.Duration) error {
			updates++
			select {
			case <-handle.Done():
				e.Quit()
			default:
			}
			return nil
		},
	}

	var err error
	if e, err = New(g); err != nil {
		t.Fatal(err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := e.Shutdown(); err != nil {
		t.Fatal(err)
	}

	if calls != 1 {
		t.Errorf("expected the delegate once, got %d", calls)
	}
	if handle.Err() != nil || handle.Resource().LoadState() != resources.LoadStateLoaded {
		t.Errorf("expected a loaded texture, got %s (%v)", handle.Resource().LoadState(), handle.Err())
	}
	// the delegate runs inside a frame, before the game update of that frame
	if loadedOn >= updates {
		t.Errorf("delegate ran after the last update (%d >= %d)", loadedOn, updates)
	}
	if e.Stage() != EngineStageShutDown {
		t.Errorf("expected the shut down stage, got %d", e.Stage())
	}
	if err := e.Shutdown(); !errors.Is(err, ErrEngineStage) {
		t.Errorf("expected a second Shutdown to fail, got %v", err)
	}
}

func TestEngineStopsOnUpdateError(t *testing.T) {
	boom := errors.New("boom")
	g := &Game{
		ApplicationConfig: &ApplicationConfig{Config: testConfig(t.TempDir()), TargetFrameRate: 200},
		FnUpdate:          func(time.Duration) error { return boom },
	}
	e, err := New(g)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown()

	if err := e.Run(context.Background()); !errors.Is(err, ErrEngineStage) {
		t.Errorf("expected Run before Initialize to fail, got %v", err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Run(ctx); !errors.Is(err, boom) {
		t.Errorf("expected the update error, got %v", err)
	}
}

func TestEngineRunHonoursContext(t *testing.T) {
	e, err := New(&Game{ApplicationConfig: &ApplicationConfig{Config: testConfig(t.TempDir())}})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown()
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := e.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestEngineEvictsChangedAssets(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), color.NRGBA{G: 1, A: 255})
	cfg := testConfig(dir)
	cfg.Watch.Enabled = true

	var e *Engine
	rewritten := false
	g := &Game{
		ApplicationConfig: &ApplicationConfig{Config: cfg, TargetFrameRate: 200},
		FnInitialize: func(sm *systems.SystemManager) error {
			_, err := sm.ResourceSystem().Load(resources.ResourceTypeTexture, resources.StorageLocationPackage, "a.png")
			return err
		},
		FnUpdate: func(time.Duration) error {
			if !rewritten {
				rewritten = true
				writePNG(t, filepath.Join(dir, "a.png"), color.NRGBA{G: 2, A: 255})
				return nil
			}
			if e.SystemManager().ResourceSystem().Count() == 0 {
				e.Quit()
			}
			return nil
		},
	}

	var err error
	if e, err = New(g); err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown()
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	if e.SystemManager().ResourceSystem().Count() != 1 {
		t.Fatal("expected the texture in the pool")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Run(ctx); err != nil {
		t.Fatalf("changed texture was never evicted: %v", err)
	}
}
