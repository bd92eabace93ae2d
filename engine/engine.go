package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/anima-loader/engine/assets"
	"github.com/spaghettifunk/anima-loader/engine/core"
	"github.com/spaghettifunk/anima-loader/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine is shut down and cannot be used anymore
	EngineStageShutDown
)

var ErrEngineStage = errors.New("engine is not in the right stage")

// Engine owns the main thread: it runs the main thread jobs of the loader
// once per frame, forwards asset changes to the resource pool and calls the
// game hooks.
type Engine struct {
	currentStage  Stage
	gameInstance  *Game
	config        *core.Config
	isRunning     atomic.Bool
	systemManager *systems.SystemManager
	watcher       *assets.AssetWatcher
	clock         *core.Clock
	lastTime      time.Duration
	frameTime     time.Duration
}

func New(g *Game) (*Engine, error) {
	if g.ApplicationConfig == nil {
		g.ApplicationConfig = &ApplicationConfig{}
	}
	cfg := g.ApplicationConfig.Config
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		currentStage: EngineStageBooting,
		gameInstance: g,
		config:       cfg,
		clock:        core.NewClock(),
		frameTime:    g.ApplicationConfig.frameTime(),
	}

	level, _ := core.ParseLogLevel(cfg.Log.Level)
	core.SetLogLevel(level)
	core.EventInitialize()
	core.MetricsInitialize()

	sm, err := systems.NewSystemManager(cfg)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	e.systemManager = sm

	if cfg.Watch.Enabled {
		w, err := assets.NewAssetWatcher(sm.FileSystem())
		if err != nil {
			core.LogError("failed to create the asset watcher: %s", err)
			_ = sm.Shutdown()
			return nil, err
		}
		e.watcher = w
	}

	e.currentStage = EngineStageBootComplete
	return e, nil
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageBootComplete {
		return fmt.Errorf("%w: cannot initialize from stage %d", ErrEngineStage, e.currentStage)
	}
	e.currentStage = EngineStageInitializing

	core.EventRegister(core.EventCodeApplicationQuit, e, e.onEvent)

	if e.watcher != nil {
		if err := e.watcher.Start(); err != nil {
			return err
		}
		core.LogInfo("watching %d asset files for changes", e.watcher.Count())
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e.systemManager); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

// Run loops until the application quit event fires, ctx ends or a game
// update fails. It must be called from the main thread.
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("%w: cannot run from stage %d", ErrEngineStage, e.currentStage)
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	var changes <-chan assets.AssetChange
	if e.watcher != nil {
		changes = e.watcher.Events()
	}

	ticker := time.NewTicker(e.frameTime)
	defer ticker.Stop()

	for e.isRunning.Load() {
		select {
		case <-ctx.Done():
			e.isRunning.Store(false)
			return ctx.Err()

		case change, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			e.onAssetChanged(change)

		case <-ticker.C:
			if err := e.frame(); err != nil {
				core.LogError("game update failed, shutting down: %s", err)
				e.isRunning.Store(false)
				return err
			}
		}
	}
	return nil
}

func (e *Engine) frame() error {
	// Update clock and get delta time.
	e.clock.Update()
	currentTime := e.clock.Elapsed()
	delta := currentTime - e.lastTime
	frameStart := time.Now()

	// Builds and delegates of async loads run here.
	e.systemManager.JobSystem().Update()

	if e.gameInstance.FnUpdate != nil {
		if err := e.gameInstance.FnUpdate(delta); err != nil {
			return err
		}
	}

	core.MetricsFrame(time.Since(frameStart))
	e.lastTime = currentTime
	return nil
}

// Quit asks the main loop to stop at the end of the current frame.
func (e *Engine) Quit() {
	// NOTE: firing an event to itself, but there may be other listeners.
	core.EventFire(core.EventCodeApplicationQuit, e, core.EventContext{})
}

// Shutdown stops the watcher, completes every pending load and releases the
// providers. Call it from the main thread after Run returned.
func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShuttingDown || e.currentStage == EngineStageShutDown {
		return fmt.Errorf("%w: already shutting down", ErrEngineStage)
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)

	var errs []error
	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.systemManager.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	core.EventUnregister(core.EventCodeApplicationQuit, e)

	snapshot := core.MetricsGet()
	core.LogInfo("loaded %d resources, %d failed, avg load %.2fms over %d frames",
		snapshot.Loaded, snapshot.Failed, snapshot.AvgLoadMS, snapshot.Frames)

	e.currentStage = EngineStageShutDown
	return errors.Join(errs...)
}

func (e *Engine) SystemManager() *systems.SystemManager {
	return e.systemManager
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	switch code {
	case core.EventCodeApplicationQuit:
		core.LogInfo("EventCodeApplicationQuit received, shutting down.")
		e.isRunning.Store(false)
	}
	// other listeners may want to know as well
	return false
}

// onAssetChanged drops pooled resources built from a changed file, the next
// request loads them again.
func (e *Engine) onAssetChanged(change assets.AssetChange) {
	n := e.systemManager.ResourceSystem().EvictPath(change.Location, change.Path)
	if n > 0 {
		core.LogInfo("asset %s:%s changed, evicted %d resources", change.Location, change.Path, n)
	}
}
