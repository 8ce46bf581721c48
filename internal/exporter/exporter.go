// Package exporter coordinates one export: load the page, extract the
// conversation, render Markdown and hand it to the download manager.
//
// The orchestrator owns an explicit state value
//
//	Idle -> Extracting -> Converting -> Saving -> Completed | Cancelled
//	                 \-> Failed
//
// and always returns to Idle. Every error of a run is caught here and turned
// into an error status; nothing propagates further.
package exporter

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tesh254/gemd/internal/chat"
	"github.com/tesh254/gemd/internal/download"
	"github.com/tesh254/gemd/internal/logger"
	"github.com/tesh254/gemd/internal/markdown"
	"github.com/tesh254/gemd/internal/scraper"
	"github.com/tesh254/gemd/internal/storage"
)

var (
	// ErrWrongContext means the page is not a conversation page.
	ErrWrongContext = errors.New("page is not a Gemini chat page")
	// ErrEmptyExtraction means extraction found no turns at all.
	ErrEmptyExtraction = errors.New("no chat content found")
	// ErrBusy is returned when an export is already running.
	ErrBusy = errors.New("an export is already running")
)

// PageLoader loads the page to export.
type PageLoader interface {
	LoadSource(ctx context.Context, src scraper.Source) (*scraper.Page, error)
}

// Extractor reads a conversation out of a page.
type Extractor interface {
	Extract(page *scraper.Page) chat.Conversation
}

// Downloader is the host download facility.
type Downloader interface {
	CreateObjectURL(b download.Blob) string
	RevokeObjectURL(url string)
	Download(ctx context.Context, opts download.Options) (int, error)
	AddListener(l download.Listener) download.ListenerID
	RemoveListener(id download.ListenerID) bool
}

// Recorder keeps the history of exports.
type Recorder interface {
	StoreRecord(r *storage.Record) error
}

// Config holds Orchestrator dependencies and settings.
type Config struct {
	Loader     PageLoader
	Extractor  Extractor
	Downloader Downloader
	// Recorder is optional.
	Recorder Recorder
	// Observer is optional and called synchronously on every change.
	Observer Observer
	Logger   logger.Logger
	// Hosts the page must live on. SkipHostCheck disables the check.
	Hosts         []string
	SkipHostCheck bool
	Now           func() time.Time
}

// Result describes a finished export.
type Result struct {
	State        State
	Conversation chat.Conversation
	Filename     string
	Path         string
	DownloadID   int
	// Reason is the interrupt reason reported by the download manager.
	Reason string
	Err    error
}

// Orchestrator runs exports, one at a time.
type Orchestrator struct {
	cfg Config

	run sync.Mutex

	mu       sync.Mutex
	snapshot Snapshot
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Orchestrator{cfg: cfg}
}

// Snapshot returns the current state and status.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshot
}

func (o *Orchestrator) set(state State, status *Status, busy bool) {
	o.mu.Lock()
	o.snapshot.State = state
	o.snapshot.Busy = busy
	if status != nil {
		o.snapshot.Status = *status
	}
	snap := o.snapshot
	o.mu.Unlock()

	if o.cfg.Observer != nil {
		o.cfg.Observer(snap)
	}
}

// Run exports the page described by src. It returns ErrBusy without touching
// the state when another export is in flight.
func (o *Orchestrator) Run(ctx context.Context, src scraper.Source) Result {
	if !o.run.TryLock() {
		return Result{State: StateFailed, Err: ErrBusy}
	}
	defer o.run.Unlock()

	res := o.export(ctx, src)
	if res.Err != nil {
		res.State = StateFailed
		status := Status{Level: LevelError, Message: errorMessage(res.Err)}
		o.cfg.Logger.Error("Export failed", logger.String("source", src.String()), logger.Err(res.Err))
		o.set(StateFailed, &status, true)
	}

	o.set(StateIdle, nil, false)
	return res
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, ErrWrongContext):
		return msgWrongContext
	case errors.Is(err, ErrEmptyExtraction):
		return msgEmptyExtract
	default:
		return msgErrorPrefix + err.Error()
	}
}

func (o *Orchestrator) export(ctx context.Context, src scraper.Source) Result {
	var res Result

	o.set(StateExtracting, &Status{Level: LevelInfo, Message: msgExtracting}, true)

	page, err := o.cfg.Loader.LoadSource(ctx, src)
	if err != nil {
		res.Err = err
		return res
	}
	if !o.cfg.SkipHostCheck && !page.OnHost(o.cfg.Hosts) {
		res.Err = fmt.Errorf("%w: %s", ErrWrongContext, page.URL)
		return res
	}

	res.Conversation = o.cfg.Extractor.Extract(page)
	if res.Conversation.Empty() {
		res.Err = ErrEmptyExtraction
		return res
	}
	o.cfg.Logger.Debug("Conversation extracted",
		logger.String("title", res.Conversation.Title),
		logger.Int("messages", len(res.Conversation.Messages)))

	o.set(StateConverting, nil, true)
	doc, err := markdown.Convert(res.Conversation, o.cfg.Now())
	if err != nil {
		res.Err = err
		return res
	}

	o.set(StateSaving, nil, true)
	res.Filename = download.Filename(res.Conversation.Title)
	delta, id, err := o.save(ctx, doc, res.Filename)
	res.DownloadID = id
	if err != nil {
		res.Err = err
		return res
	}

	res.Path = delta.Path
	res.Reason = delta.Error
	if delta.State == download.StateComplete {
		res.State = StateCompleted
		o.set(StateCompleted, &Status{Level: LevelSuccess, Message: msgSuccess}, true)
	} else {
		res.State = StateCancelled
		if delta.Error != download.ReasonUserCanceled {
			o.cfg.Logger.Warn("Download interrupted", logger.Int("id", id), logger.String("reason", delta.Error))
		}
		o.set(StateCancelled, nil, true)
	}

	o.record(src, res, doc)
	return res
}

// save hands doc to the downloader and waits for the download to leave the
// in-progress state. The object URL is revoked and the listener removed
// exactly once, after the download settles or the context ends.
func (o *Orchestrator) save(ctx context.Context, doc, filename string) (download.Delta, int, error) {
	dl := o.cfg.Downloader
	url := dl.CreateObjectURL(download.NewMarkdownBlob(doc))

	var revoke sync.Once
	release := func() {
		revoke.Do(func() { dl.RevokeObjectURL(url) })
	}

	settled := make(chan download.Delta, 1)
	w := download.Watch(dl, func(d download.Delta) {
		release()
		settled <- d
	})

	id, err := dl.Download(ctx, download.Options{
		URL:      url,
		Filename: filename,
		SaveAs:   true,
	})
	if err != nil {
		w.Stop()
		release()
		return download.Delta{}, 0, fmt.Errorf("download failed: %w", err)
	}
	w.Bind(id)

	o.set(StateSaving, &Status{Level: LevelInfo, Message: msgSaving}, true)

	select {
	case d := <-settled:
		return d, id, nil
	case <-ctx.Done():
		w.Stop()
		release()
		return download.Delta{}, id, ctx.Err()
	}
}

func (o *Orchestrator) record(src scraper.Source, res Result, doc string) {
	if o.cfg.Recorder == nil {
		return
	}
	state := string(download.StateComplete)
	if res.State != StateCompleted {
		state = string(download.StateInterrupted)
	}
	rec := &storage.Record{
		ID:         uuid.NewString(),
		DownloadID: res.DownloadID,
		Title:      res.Conversation.Title,
		Filename:   res.Filename,
		Path:       res.Path,
		State:      state,
		Messages:   len(res.Conversation.Messages),
		Checksum:   fmt.Sprintf("%x", sha256.Sum256([]byte(doc))),
		Source:     src.String(),
		CreatedAt:  o.cfg.Now(),
	}
	if err := o.cfg.Recorder.StoreRecord(rec); err != nil {
		o.cfg.Logger.Warn("Failed to record export", logger.Err(err))
	}
}
