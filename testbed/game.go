package testbed

import (
	"fmt"
	"io"
	"time"

	"github.com/spaghettifunk/anima-loader/engine"
	"github.com/spaghettifunk/anima-loader/engine/core"
	"github.com/spaghettifunk/anima-loader/engine/resources"
	"github.com/spaghettifunk/anima-loader/engine/systems"
)

// Result is the outcome of one manifest entry.
type Result struct {
	Entry   Entry
	State   resources.LoadState
	Err     error
	Elapsed time.Duration
}

type gameState struct {
	manifest *Manifest
	results  []Result
	pending  int
	started  time.Time
}

// PreloadGame loads every entry of a manifest and quits once all of them
// reached a terminal state.
type PreloadGame struct {
	*engine.Game
	state *gameState
}

func NewPreloadGame(config *core.Config, manifest *Manifest) *PreloadGame {
	state := &gameState{manifest: manifest}
	pg := &PreloadGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				Name:   "Anima Loader",
				Config: config,
			},
			State: state,
		},
		state: state,
	}
	pg.FnInitialize = pg.initialize
	pg.FnUpdate = pg.update
	pg.FnShutdown = pg.shutdown
	return pg
}

func (pg *PreloadGame) initialize(sm *systems.SystemManager) error {
	st := pg.state
	st.started = time.Now()
	st.results = make([]Result, len(st.manifest.Resources))
	rs := sm.ResourceSystem()

	for i, e := range st.manifest.Resources {
		st.results[i].Entry = e
		t, loc, err := e.Resolve()
		if err != nil {
			return err
		}

		if !e.Async {
			res, err := rs.Load(t, loc, e.Path)
			pg.record(i, res, err)
			continue
		}

		idx := i
		st.pending++
		_, err = rs.LoadAsync(t, loc, e.Path, func(res resources.Resource) {
			st.pending--
			pg.record(idx, res, res.Err())
		})
		if err != nil {
			st.pending--
			pg.record(i, nil, err)
		}
	}
	core.LogInfo("preloading %d resources, %d async", len(st.results), st.pending)
	return nil
}

func (pg *PreloadGame) record(i int, res resources.Resource, err error) {
	r := &pg.state.results[i]
	r.Elapsed = time.Since(pg.state.started)
	r.Err = err
	r.State = resources.LoadStateFailed
	if res != nil {
		r.State = res.LoadState()
	}
	if err != nil {
		core.LogError("%s: %s", r.Entry, err)
		return
	}
	core.LogDebug("%s: %s", r.Entry, r.State)
}

func (pg *PreloadGame) update(deltaTime time.Duration) error {
	if pg.state.pending == 0 {
		core.EventFire(core.EventCodeApplicationQuit, pg, core.EventContext{})
	}
	return nil
}

func (pg *PreloadGame) shutdown() error {
	if pg.state.pending != 0 {
		return fmt.Errorf("%d resources never completed", pg.state.pending)
	}
	return nil
}

func (pg *PreloadGame) Results() []Result {
	return pg.state.results
}

// Failed is the number of entries that did not load.
func (pg *PreloadGame) Failed() int {
	n := 0
	for _, r := range pg.state.results {
		if r.State != resources.LoadStateLoaded {
			n++
		}
	}
	return n
}

// Report writes one line per entry.
func (pg *PreloadGame) Report(w io.Writer) {
	for _, r := range pg.state.results {
		if r.Err != nil {
			fmt.Fprintf(w, "%-8s %-40s %8s  %s\n", r.State, r.Entry, r.Elapsed.Round(time.Microsecond), r.Err)
			continue
		}
		fmt.Fprintf(w, "%-8s %-40s %8s\n", r.State, r.Entry, r.Elapsed.Round(time.Microsecond))
	}
}
