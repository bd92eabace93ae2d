package engine

import (
	"time"

	"github.com/spaghettifunk/anima-loader/engine/core"
)

type ApplicationConfig struct {
	// The application name used in log lines.
	Name string
	// Loader configuration. DefaultConfig is used when nil.
	Config *core.Config
	// Frames per second the main loop aims for. Zero means 60.
	TargetFrameRate int
}

func (ac *ApplicationConfig) frameTime() time.Duration {
	fps := ac.TargetFrameRate
	if fps <= 0 {
		fps = 60
	}
	return time.Second / time.Duration(fps)
}
