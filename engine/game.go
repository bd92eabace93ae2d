package engine

import (
	"time"

	"github.com/spaghettifunk/anima-loader/engine/systems"
)

// Game holds the hooks the engine calls on the main thread.
type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnShutdown        Shutdown
}

type Initialize func(sm *systems.SystemManager) error
type Update func(deltaTime time.Duration) error
type Shutdown func() error
