// Package download saves exported documents the way a browser download
// manager does: data is handed over as an object URL, every download gets an
// id, and progress is reported asynchronously to registered listeners.
package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tesh254/gemd/internal/logger"
)

// State is the lifecycle position of a download.
type State string

const (
	StateInProgress  State = "in_progress"
	StateComplete    State = "complete"
	StateInterrupted State = "interrupted"
)

// Interrupt reasons reported in Delta.Error.
const (
	ReasonUserCanceled = "USER_CANCELED"
	ReasonFileFailed   = "FILE_FAILED"
	ReasonInvalidURL   = "NETWORK_INVALID_REQUEST"
)

// ConflictAction decides what happens when the target file already exists.
type ConflictAction string

const (
	ConflictUniquify  ConflictAction = "uniquify"
	ConflictOverwrite ConflictAction = "overwrite"
)

// Options describe one download.
type Options struct {
	URL      string
	Filename string
	// SaveAs asks the Prompter for the final location before writing.
	SaveAs         bool
	ConflictAction ConflictAction
}

// Delta is a state change notification.
type Delta struct {
	ID       int
	Previous State
	State    State
	Path     string
	Error    string
}

// Terminal reports whether the download left the in-progress state.
func (d Delta) Terminal() bool {
	return d.State != StateInProgress
}

// Item is the manager's record of a download.
type Item struct {
	ID        int
	URL       string
	Path      string
	State     State
	Error     string
	Bytes     int
	StartTime time.Time
	EndTime   time.Time
}

// Listener receives state changes for every download.
type Listener func(Delta)

// ListenerID identifies a registered listener.
type ListenerID int

// Prompter chooses where a file is saved. Returning ok=false means the user
// dismissed the dialog.
type Prompter interface {
	SaveAs(ctx context.Context, suggested string) (path string, ok bool, err error)
}

// ManagerConfig holds Manager dependencies.
type ManagerConfig struct {
	// Dir is where files land unless the prompter picks another place.
	Dir      string
	Blobs    *BlobStore
	Prompter Prompter
	Logger   logger.Logger
}

// Manager runs downloads and dispatches their state changes.
type Manager struct {
	dir      string
	blobs    *BlobStore
	prompter Prompter
	log      logger.Logger

	mu           sync.Mutex
	nextID       int
	items        map[int]*Item
	listeners    map[ListenerID]Listener
	order        []ListenerID
	nextListener ListenerID
	wg           sync.WaitGroup
}

// NewManager creates a Manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Blobs == nil {
		cfg.Blobs = NewBlobStore()
	}
	if cfg.Prompter == nil {
		cfg.Prompter = AcceptPrompter{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	return &Manager{
		dir:       cfg.Dir,
		blobs:     cfg.Blobs,
		prompter:  cfg.Prompter,
		log:       cfg.Logger,
		items:     make(map[int]*Item),
		listeners: make(map[ListenerID]Listener),
	}
}

// Blobs returns the store object URLs are resolved against.
func (m *Manager) Blobs() *BlobStore {
	return m.blobs
}

// CreateObjectURL registers b with the manager's blob store.
func (m *Manager) CreateObjectURL(b Blob) string {
	return m.blobs.CreateObjectURL(b)
}

// RevokeObjectURL releases url in the manager's blob store.
func (m *Manager) RevokeObjectURL(url string) {
	m.blobs.RevokeObjectURL(url)
}

// AddListener registers l for every subsequent state change.
func (m *Manager) AddListener(l Listener) ListenerID {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextListener++
	id := m.nextListener
	m.listeners[id] = l
	m.order = append(m.order, id)
	return id
}

// RemoveListener unregisters a listener. It reports whether it was registered.
func (m *Manager) RemoveListener(id ListenerID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.listeners[id]; !ok {
		return false
	}
	delete(m.listeners, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// Download starts a download and returns its id. The file is written in the
// background; watch the listeners for the outcome.
func (m *Manager) Download(ctx context.Context, opts Options) (int, error) {
	if err := validateFilename(opts.Filename); err != nil {
		return 0, err
	}
	if _, err := m.blobs.Read(opts.URL); err != nil {
		return 0, fmt.Errorf("download %q: %w", opts.URL, err)
	}
	if opts.ConflictAction == "" {
		opts.ConflictAction = ConflictUniquify
	}

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.items[id] = &Item{ID: id, URL: opts.URL, State: StateInProgress, StartTime: time.Now()}
	m.mu.Unlock()

	m.log.Debug("Download started", logger.Int("id", id), logger.String("filename", opts.Filename))

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(ctx, id, opts)
	}()
	return id, nil
}

func (m *Manager) run(ctx context.Context, id int, opts Options) {
	target := filepath.Join(m.dir, opts.Filename)

	if opts.SaveAs {
		path, ok, err := m.prompter.SaveAs(ctx, target)
		switch {
		case err != nil:
			m.log.Warn("Save dialog failed", logger.Int("id", id), logger.Err(err))
			m.finish(id, "", 0, ReasonFileFailed)
			return
		case !ok:
			m.finish(id, "", 0, ReasonUserCanceled)
			return
		}
		target = path
	}

	if ctx.Err() != nil {
		m.finish(id, "", 0, ReasonUserCanceled)
		return
	}

	blob, err := m.blobs.Read(opts.URL)
	if err != nil {
		m.finish(id, "", 0, ReasonInvalidURL)
		return
	}

	path, err := writeFile(target, blob.Data, opts.ConflictAction)
	if err != nil {
		m.log.Error("Failed to write download", logger.Int("id", id), logger.String("path", target), logger.Err(err))
		m.finish(id, "", 0, ReasonFileFailed)
		return
	}
	m.finish(id, path, len(blob.Data), "")
}

func (m *Manager) finish(id int, path string, size int, reason string) {
	m.mu.Lock()
	item := m.items[id]
	prev := item.State
	item.EndTime = time.Now()
	item.Path = path
	item.Bytes = size
	item.Error = reason
	item.State = StateComplete
	if reason != "" {
		item.State = StateInterrupted
	}
	delta := Delta{ID: id, Previous: prev, State: item.State, Path: path, Error: reason}
	m.mu.Unlock()

	m.log.Debug("Download finished", logger.Int("id", id), logger.String("state", string(delta.State)), logger.String("error", reason))
	m.notify(delta)
}

func (m *Manager) notify(d Delta) {
	m.mu.Lock()
	ls := make([]Listener, 0, len(m.order))
	for _, id := range m.order {
		ls = append(ls, m.listeners[id])
	}
	m.mu.Unlock()

	for _, l := range ls {
		l(d)
	}
}

// Item returns a copy of the record for id.
func (m *Manager) Item(id int) (Item, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return Item{}, false
	}
	return *item, true
}

// Wait blocks until every started download has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func validateFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("filename must not be empty")
	}
	if filepath.IsAbs(name) || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("filename %q must be a plain file name", name)
	}
	return nil
}

// writeFile writes data to path, resolving name conflicts per action, and
// returns the path actually written.
func writeFile(path string, data []byte, action ConflictAction) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if action == ConflictUniquify {
		path = uniquePath(path)
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

// uniquePath returns path, or "name (n).ext" for the first n that is free.
func uniquePath(path string) string {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
	}
}
