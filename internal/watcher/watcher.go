// Package watcher re-runs extraction when markdown files change. Raw
// fsnotify events are filtered, coalesced per path over a debounce window
// and handed to handlers as one sorted batch.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/poutila/doxstrux/internal/logging"
)

// FileWatcher watches directory trees with debouncing.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	filters   []FileFilter
	handlers  []ChangeHandler
	logger    logging.Logger
	mutex     sync.RWMutex
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
	Size    int64
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileFilter reports whether a path is of interest.
type FileFilter func(path string) bool

// ChangeHandler receives one debounced batch, sorted by path.
type ChangeHandler func(ctx context.Context, events []ChangeEvent) error

// Debouncer groups rapid file changes together
type Debouncer struct {
	delay   time.Duration
	output  chan []ChangeEvent
	timer   *time.Timer
	pending map[string]ChangeEvent
	mutex   sync.Mutex
}

// NewFileWatcher creates a watcher that waits debounceDelay after the last
// event before flushing a batch.
func NewFileWatcher(debounceDelay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = logging.Nop()
	}

	return &FileWatcher{
		watcher: w,
		debouncer: &Debouncer{
			delay:   debounceDelay,
			output:  make(chan []ChangeEvent, 10),
			pending: make(map[string]ChangeEvent),
		},
		logger: logger.WithComponent("watcher"),
	}, nil
}

// AddFilter adds a filter; an event must pass every filter.
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddHandler adds a change handler
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// AddPath watches a single directory or file.
func (fw *FileWatcher) AddPath(path string) error {
	clean, err := validatePath(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	return fw.watcher.Add(clean)
}

// AddRecursive watches root and every directory below it, skipping hidden
// directories and vendor trees.
func (fw *FileWatcher) AddRecursive(root string) error {
	clean, err := validatePath(root)
	if err != nil {
		return fmt.Errorf("invalid root path: %w", err)
	}

	return filepath.WalkDir(clean, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != clean && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		return fw.watcher.Add(path)
	})
}

// validatePath cleans path and rejects parent-directory components.
func validatePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return "", fmt.Errorf("path contains directory traversal: %s", path)
		}
	}
	return filepath.Clean(path), nil
}

func skipDir(name string) bool {
	return name == "vendor" || name == "node_modules" || (strings.HasPrefix(name, ".") && name != ".")
}

// Run processes events until ctx is cancelled, then closes the watcher.
func (fw *FileWatcher) Run(ctx context.Context) error {
	defer fw.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return nil
			}
			fw.handleFsnotifyEvent(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return nil
			}
			fw.logger.Warn(ctx, err, "file watcher error")
		case events := <-fw.debouncer.output:
			fw.dispatch(ctx, events)
		}
	}
}

// Stop cancels any pending flush and closes the fsnotify watcher.
func (fw *FileWatcher) Stop() error {
	fw.debouncer.mutex.Lock()
	if fw.debouncer.timer != nil {
		fw.debouncer.timer.Stop()
	}
	fw.debouncer.mutex.Unlock()

	return fw.watcher.Close()
}

func (fw *FileWatcher) dispatch(ctx context.Context, events []ChangeEvent) {
	fw.mutex.RLock()
	handlers := fw.handlers
	fw.mutex.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, events); err != nil {
			fw.logger.Warn(ctx, err, "change handler failed", "events", len(events))
		}
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	info, statErr := os.Stat(event.Name)

	// New directories are watched so files created inside them are seen.
	if statErr == nil && info.IsDir() {
		if event.Op&fsnotify.Create != 0 && !skipDir(filepath.Base(event.Name)) {
			if err := fw.AddRecursive(event.Name); err != nil {
				fw.logger.Warn(context.Background(), err, "cannot watch new directory", "path", event.Name)
			}
		}
		return
	}

	if !fw.accept(event.Name) {
		return
	}

	ce := ChangeEvent{Type: eventType(event.Op), Path: event.Name}
	if statErr == nil {
		ce.ModTime = info.ModTime()
		ce.Size = info.Size()
	}
	fw.debouncer.addEvent(ce)
}

func (fw *FileWatcher) accept(path string) bool {
	fw.mutex.RLock()
	defer fw.mutex.RUnlock()
	for _, filter := range fw.filters {
		if !filter(path) {
			return false
		}
	}
	return true
}

func eventType(op fsnotify.Op) EventType {
	switch {
	case op&fsnotify.Create != 0:
		return EventTypeCreated
	case op&fsnotify.Remove != 0:
		return EventTypeDeleted
	case op&fsnotify.Rename != 0:
		return EventTypeRenamed
	default:
		return EventTypeModified
	}
}

// addEvent records event, keeping the latest per path, and re-arms the timer.
func (d *Debouncer) addEvent(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.pending[event.Path] = event

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *Debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if len(d.pending) == 0 {
		return
	}

	events := make([]ChangeEvent, 0, len(d.pending))
	for _, event := range d.pending {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })

	select {
	case d.output <- events:
		d.pending = make(map[string]ChangeEvent)
	default:
		// Consumer is behind; keep the batch and retry on the next event.
	}
}

// MarkdownFilter accepts .md and .markdown files.
func MarkdownFilter(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// NoHiddenFilter rejects dotfiles and editor swap files.
func NoHiddenFilter(path string) bool {
	base := filepath.Base(path)
	return !strings.HasPrefix(base, ".") && !strings.HasSuffix(base, "~")
}

// NoVendorFilter rejects paths inside vendor or node_modules.
func NoVendorFilter(path string) bool {
	p := "/" + filepath.ToSlash(path)
	return !strings.Contains(p, "/vendor/") && !strings.Contains(p, "/node_modules/")
}
