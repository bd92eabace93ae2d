/*
anima-loader preloads the resources listed in a manifest through the
asynchronous loading pipeline, or packs images into the engine's own
container format.

	anima-loader [-c config.toml] [-m manifest.yaml] [-v] load
	anima-loader [-c config.toml] [-v] pack in.png out.aimg
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pborman/getopt"
	"github.com/spaghettifunk/anima-loader/engine"
	"github.com/spaghettifunk/anima-loader/engine/assets/loaders"
	"github.com/spaghettifunk/anima-loader/engine/core"
	"github.com/spaghettifunk/anima-loader/engine/resources"
	"github.com/spaghettifunk/anima-loader/engine/systems"
	"github.com/spaghettifunk/anima-loader/testbed"
)

func main() {
	configPath := getopt.StringLong("config", 'c', "", "path to the TOML configuration", "file")
	manifestPath := getopt.StringLong("manifest", 'm', "manifest.yaml", "resources to preload", "file")
	verbose := getopt.BoolLong("verbose", 'v', "log debug messages")
	getopt.SetParameters("load | pack <in> <out>")
	getopt.Parse()

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		core.LogError(err.Error())
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	level, _ := core.ParseLogLevel(cfg.Log.Level)
	core.SetLogLevel(level)

	args := getopt.Args()
	if len(args) == 0 {
		args = []string{"load"}
	}

	switch args[0] {
	case "load":
		err = load(cfg, *manifestPath)
	case "pack":
		if len(args) != 3 {
			getopt.Usage()
			os.Exit(2)
		}
		err = pack(cfg, args[1], args[2])
	default:
		getopt.Usage()
		os.Exit(2)
	}
	if err != nil {
		core.LogError(err.Error())
		os.Exit(1)
	}
}

func load(cfg *core.Config, manifestPath string) error {
	manifest, err := testbed.LoadManifest(manifestPath)
	if err != nil {
		return err
	}
	pg := testbed.NewPreloadGame(cfg, manifest)

	e, err := engine.New(pg.Game)
	if err != nil {
		return err
	}
	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		return err
	}

	// signal channel to capture system calls
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	runErr := e.Run(ctx)
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %s", err)
	}
	pg.Report(os.Stdout)
	if runErr != nil {
		return runErr
	}
	if n := pg.Failed(); n > 0 {
		return fmt.Errorf("%d of %d resources failed to load", n, len(pg.Results()))
	}
	return nil
}

// pack decodes in with whichever image provider accepts its extension and
// writes it to out as a packed image.
func pack(cfg *core.Config, in, out string) error {
	cfg.Images.FlipY = false
	sm, err := systems.NewSystemManager(cfg)
	if err != nil {
		return err
	}
	defer sm.Shutdown()

	res, err := sm.ResourceSystem().Load(resources.ResourceTypeImage, resources.StorageLocationRoot, in)
	if err != nil {
		return err
	}
	img, ok := res.(*resources.Image)
	if !ok {
		return fmt.Errorf("%s did not decode to an image", in)
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := loaders.EncodePackedImage(f, img); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	desc := img.Descriptor()
	core.LogInfo("packed %s (%dx%d %s) into %s", in, desc.Width, desc.Height, desc.Format, out)
	return nil
}
