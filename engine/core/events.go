package core

import "sync"

// EventContext carries the payload of a fired event.
type EventContext struct {
	// Path of the resource or asset the event is about.
	Path string
	// Location is the storage location, as the integer value of
	// resources.StorageLocation.
	Location uint8
	// ResourceType as the integer value of resources.ResourceType.
	ResourceType int
	// Err is set for failure events.
	Err error
}

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EventCodeApplicationQuit SystemEventCode = 0x01

	// A resource reached the loaded state. Fired on the main thread.
	EventCodeResourceLoaded SystemEventCode = 0x02

	// A resource reached the failed state. Fired on the main thread.
	EventCodeResourceFailed SystemEventCode = 0x03

	// An asset file was created, written or removed on disk. Fired from the
	// watcher goroutine.
	EventCodeAssetChanged SystemEventCode = 0x04

	MaxEventCode SystemEventCode = 0xFF
)

// This should be more than enough codes...
const MaxMessageCodes = 16384

// Should return true if handled.
type FnOnEvent func(code SystemEventCode, sender interface{}, listener interface{}, data EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

type eventSystemState struct {
	mutex sync.RWMutex
	// Lookup table for event codes.
	registered [MaxMessageCodes][]*registeredEvent
}

var onceEvent sync.Once
var eventState *eventSystemState

func EventInitialize() {
	onceEvent.Do(func() {
		eventState = &eventSystemState{}
	})
}

// EventShutdown drops every registration.
func EventShutdown() {
	if eventState == nil {
		return
	}
	eventState.mutex.Lock()
	defer eventState.mutex.Unlock()
	for i := range eventState.registered {
		eventState.registered[i] = nil
	}
}

// EventRegister listens for events sent with code. A listener can only be
// registered once per code; duplicates return false.
func EventRegister(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	if eventState == nil || code < 0 || int(code) >= MaxMessageCodes || onEvent == nil {
		return false
	}
	eventState.mutex.Lock()
	defer eventState.mutex.Unlock()

	for _, e := range eventState.registered[code] {
		if e.listener == listener {
			LogWarn("listener already registered for event code %d", code)
			return false
		}
	}
	eventState.registered[code] = append(eventState.registered[code], &registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

// EventUnregister stops listener from receiving code. Returns false when no
// registration matched.
func EventUnregister(code SystemEventCode, listener interface{}) bool {
	if eventState == nil || code < 0 || int(code) >= MaxMessageCodes {
		return false
	}
	eventState.mutex.Lock()
	defer eventState.mutex.Unlock()

	events := eventState.registered[code]
	for i, e := range events {
		if e.listener == listener {
			eventState.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

// EventFire sends data to the listeners of code in registration order. A
// listener returning true stops propagation. Returns true if handled.
func EventFire(code SystemEventCode, sender interface{}, data EventContext) bool {
	if eventState == nil || code < 0 || int(code) >= MaxMessageCodes {
		return false
	}
	eventState.mutex.RLock()
	events := make([]*registeredEvent, len(eventState.registered[code]))
	copy(events, eventState.registered[code])
	eventState.mutex.RUnlock()

	for _, e := range events {
		if e.callback(code, sender, e.listener, data) {
			return true
		}
	}
	return false
}
