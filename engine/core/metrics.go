package core

import (
	"sync"
	"time"

	"github.com/spaghettifunk/anima-loader/engine/containers"
	"golang.org/x/exp/constraints"
)

// Number of recent loads the rolling average is computed over.
const AVG_COUNT int = 30

type MetricsState struct {
	mutex sync.Mutex

	Loaded   uint64
	Failed   uint64
	Frames   uint64
	recent   *containers.RingQueue[float64]
	lastAvg  float64
	frameMS  *containers.RingQueue[float64]
	frameAvg float64
}

// MetricsSnapshot is a copy of the counters safe to read without locks.
type MetricsSnapshot struct {
	Loaded        uint64
	Failed        uint64
	Frames        uint64
	AvgLoadMS     float64
	AvgFrameMS    float64
	RecentSamples int
}

var onceMetrics sync.Once
var metricsState *MetricsState

func MetricsInitialize() {
	onceMetrics.Do(func() {
		metricsState = &MetricsState{
			recent:  containers.NewRingQueue[float64](AVG_COUNT),
			frameMS: containers.NewRingQueue[float64](AVG_COUNT),
		}
	})
}

// MetricsResourceLoaded records a finished load and how long it took from
// request to terminal state.
func MetricsResourceLoaded(elapsed time.Duration, ok bool) {
	MetricsInitialize()
	metricsState.mutex.Lock()
	defer metricsState.mutex.Unlock()

	if ok {
		metricsState.Loaded++
	} else {
		metricsState.Failed++
	}
	metricsState.lastAvg = pushSample(metricsState.recent, float64(elapsed)/float64(time.Millisecond))
}

// MetricsFrame records the duration of one engine update cycle.
func MetricsFrame(frameElapsed time.Duration) {
	MetricsInitialize()
	metricsState.mutex.Lock()
	defer metricsState.mutex.Unlock()

	metricsState.Frames++
	metricsState.frameAvg = pushSample(metricsState.frameMS, float64(frameElapsed)/float64(time.Millisecond))
}

func MetricsGet() MetricsSnapshot {
	MetricsInitialize()
	metricsState.mutex.Lock()
	defer metricsState.mutex.Unlock()

	return MetricsSnapshot{
		Loaded:        metricsState.Loaded,
		Failed:        metricsState.Failed,
		Frames:        metricsState.Frames,
		AvgLoadMS:     metricsState.lastAvg,
		AvgFrameMS:    metricsState.frameAvg,
		RecentSamples: metricsState.recent.Len(),
	}
}

// MetricsReset zeroes every counter.
func MetricsReset() {
	MetricsInitialize()
	metricsState.mutex.Lock()
	defer metricsState.mutex.Unlock()

	metricsState.Loaded = 0
	metricsState.Failed = 0
	metricsState.Frames = 0
	metricsState.lastAvg = 0
	metricsState.frameAvg = 0
	metricsState.recent = containers.NewRingQueue[float64](AVG_COUNT)
	metricsState.frameMS = containers.NewRingQueue[float64](AVG_COUNT)
}

// pushSample appends v to the window, evicting the oldest sample when full,
// and returns the new average.
func pushSample(window *containers.RingQueue[float64], v float64) float64 {
	if window.IsFull() {
		_, _ = window.Dequeue()
	}
	_ = window.Enqueue(v)

	samples := make([]float64, 0, window.Len())
	window.Each(func(s float64) { samples = append(samples, s) })
	return Average(samples)
}

// Average returns the arithmetic mean of values, 0 for an empty slice.
func Average[T constraints.Integer | constraints.Float](values []T) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	return sum / float64(len(values))
}
