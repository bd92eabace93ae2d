package assets

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/anima-loader/engine/core"
	"github.com/spaghettifunk/anima-loader/engine/resources"
)

// ChangeKind tells what happened to an asset file.
type ChangeKind int

const (
	ChangeWritten ChangeKind = iota
	ChangeRemoved
)

// AssetChange is emitted for every file event below a watched root.
type AssetChange struct {
	Location resources.StorageLocation
	Path     string
	Kind     ChangeKind
}

type AssetInfo struct {
	Location    resources.StorageLocation
	Path        string
	LastChanged time.Time
}

// AssetWatcher keeps an index of the files under the storage roots and
// reports changes so cached resources can be reloaded.
type AssetWatcher struct {
	fs     *FileSystem
	assets map[string]AssetInfo
	mutex  sync.RWMutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
	events   chan AssetChange
	errors   chan error
}

var ErrWatcherClosed = errors.New("asset watcher already closed")

func NewAssetWatcher(fs *FileSystem) (*AssetWatcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &AssetWatcher{
		fs:       fs,
		assets:   make(map[string]AssetInfo),
		fsnotify: fsWatch,
		events:   make(chan AssetChange, 64),
		errors:   make(chan error, 8),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}, nil
}

// Start indexes and watches every configured root that exists on disk.
func (am *AssetWatcher) Start() error {
	if am.isClosed {
		return ErrWatcherClosed
	}
	for loc, root := range am.fs.Roots() {
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			core.LogDebug("storage root %s (%s) not present, not watching it", root, loc)
			continue
		}
		if err := am.watchRecursive(root, false); err != nil {
			return err
		}
	}
	go am.start()
	return nil
}

// Events delivers asset changes. The channel is closed by Close.
func (am *AssetWatcher) Events() <-chan AssetChange {
	return am.events
}

// Errors delivers watcher errors. The channel is closed by Close.
func (am *AssetWatcher) Errors() <-chan error {
	return am.errors
}

// Lookup returns the index entry of a file.
func (am *AssetWatcher) Lookup(location resources.StorageLocation, path string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	info, ok := am.assets[indexKey(location, path)]
	return info, ok
}

// Count is the number of indexed files.
func (am *AssetWatcher) Count() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

func (am *AssetWatcher) Close() error {
	if am.isClosed {
		return ErrWatcherClosed
	}
	am.isClosed = true
	close(am.done)
	<-am.stopped
	return nil
}

func (am *AssetWatcher) start() {
	defer close(am.stopped)
	for {
		select {

		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := am.watchRecursive(e.Name, false); err != nil {
						core.LogError("failed to watch new directory %s: %s", e.Name, err)
					}
				}
				continue
			}
			// Handle create or modify events
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				am.handleFileEvent(e.Name, ChangeWritten)
			}
			// Can't stat a deleted path, so it is treated as a file and its
			// watch (if it was a directory) is dropped as well.
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				am.handleFileEvent(e.Name, ChangeRemoved)
				_ = am.fsnotify.Remove(e.Name)
			}

		case e, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(e.Error())
			select {
			case am.errors <- e:
			default:
			}

		case <-am.done:
			am.fsnotify.Close()
			close(am.events)
			close(am.errors)
			return
		}
	}
}

// watchRecursive adds all directories under the given one to the watch list
// and indexes the files it finds.
func (am *AssetWatcher) watchRecursive(path string, unWatch bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if unWatch {
				return am.fsnotify.Remove(walkPath)
			}
			return am.fsnotify.Add(walkPath)
		}
		am.index(walkPath)
		return nil
	})
}

func (am *AssetWatcher) index(absolute string) (AssetInfo, bool) {
	loc, rel, ok := am.fs.Locate(absolute)
	if !ok {
		return AssetInfo{}, false
	}
	info := AssetInfo{Location: loc, Path: rel, LastChanged: time.Now()}
	am.mutex.Lock()
	am.assets[indexKey(loc, rel)] = info
	am.mutex.Unlock()
	return info, true
}

// Handle the creation, modification or removal of a file
func (am *AssetWatcher) handleFileEvent(absolute string, kind ChangeKind) {
	var info AssetInfo
	if kind == ChangeRemoved {
		loc, rel, ok := am.fs.Locate(absolute)
		if !ok {
			return
		}
		info = AssetInfo{Location: loc, Path: rel}
		am.mutex.Lock()
		delete(am.assets, indexKey(loc, rel))
		am.mutex.Unlock()
	} else {
		var ok bool
		if info, ok = am.index(absolute); !ok {
			return
		}
	}

	change := AssetChange{Location: info.Location, Path: info.Path, Kind: kind}
	core.LogDebug("asset %s %s changed", info.Location, info.Path)
	core.EventFire(core.EventCodeAssetChanged, am, core.EventContext{
		Path:     info.Path,
		Location: uint8(info.Location),
	})

	select {
	case am.events <- change:
	default:
		core.LogWarn("asset change queue full, dropping event for %s", info.Path)
	}
}

func indexKey(location resources.StorageLocation, path string) string {
	return location.String() + ":" + path
}
