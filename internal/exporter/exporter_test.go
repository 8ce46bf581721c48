package exporter_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesh254/gemd/internal/chat"
	"github.com/tesh254/gemd/internal/download"
	"github.com/tesh254/gemd/internal/exporter"
	"github.com/tesh254/gemd/internal/extractor"
	"github.com/tesh254/gemd/internal/scraper"
	"github.com/tesh254/gemd/internal/storage"
)

const chatURL = "https://gemini.google.com/app/abc"

const twoTurnHTML = `<html><body>
<div class="conversation-turn"><div data-test-id="user-message"><div class="markdown">Hi</div></div></div>
<div class="conversation-turn"><div data-test-id="model-message"><div class="markdown">Hello</div></div></div>
</body></html>`

var fixedNow = func() time.Time { return time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC) }

// htmlLoader serves a fixed document.
type htmlLoader struct {
	html string
	url  string
	err  error
}

func (l htmlLoader) LoadSource(_ context.Context, _ scraper.Source) (*scraper.Page, error) {
	if l.err != nil {
		return nil, l.err
	}
	return scraper.NewPage([]byte(l.html), l.url)
}

// staticExtractor returns a fixed conversation.
type staticExtractor struct{ conv chat.Conversation }

func (e staticExtractor) Extract(*scraper.Page) chat.Conversation { return e.conv }

// fakeDownloader records every interaction. Deltas are delivered to every
// listener ever added, removed or not, to catch double handling.
type fakeDownloader struct {
	mu        sync.Mutex
	listeners []download.Listener
	created   int
	revoked   int
	removed   int
	downloads int
	opts      download.Options

	states []download.State
	err    error
	// syncEmit delivers deltas before Download returns.
	syncEmit bool
	block    chan struct{}
}

func (f *fakeDownloader) CreateObjectURL(download.Blob) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	return "blob:test/1"
}

func (f *fakeDownloader) RevokeObjectURL(string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked++
}

func (f *fakeDownloader) AddListener(l download.Listener) download.ListenerID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, l)
	return download.ListenerID(len(f.listeners))
}

func (f *fakeDownloader) RemoveListener(download.ListenerID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed++
	return true
}

func (f *fakeDownloader) Download(_ context.Context, opts download.Options) (int, error) {
	f.mu.Lock()
	f.downloads++
	f.opts = opts
	f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}

	const id = 42
	emit := func() {
		if f.block != nil {
			<-f.block
		}
		f.mu.Lock()
		ls := append([]download.Listener(nil), f.listeners...)
		f.mu.Unlock()
		// Another download's events must be ignored.
		for _, l := range ls {
			l(download.Delta{ID: id + 1, State: download.StateComplete})
		}
		for _, s := range f.states {
			for _, l := range ls {
				l(download.Delta{ID: id, Previous: download.StateInProgress, State: s, Path: "/out/file.md"})
			}
		}
	}
	if f.syncEmit {
		emit()
	} else {
		go emit()
	}
	return id, nil
}

func (f *fakeDownloader) counts() (created, revoked, removed, downloads int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created, f.revoked, f.removed, f.downloads
}

type statusLog struct {
	mu    sync.Mutex
	snaps []exporter.Snapshot
}

func (s *statusLog) observe(snap exporter.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
}

func (s *statusLog) statuses(level exporter.Level) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	seen := ""
	for _, snap := range s.snaps {
		if snap.Status.Level == level && snap.Status.Message != seen {
			out = append(out, snap.Status.Message)
			seen = snap.Status.Message
		}
	}
	return out
}

func (s *statusLog) states() []exporter.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []exporter.State
	for _, snap := range s.snaps {
		if len(out) == 0 || out[len(out)-1] != snap.State {
			out = append(out, snap.State)
		}
	}
	return out
}

func newOrchestrator(loader exporter.PageLoader, ex exporter.Extractor, dl exporter.Downloader, log *statusLog) *exporter.Orchestrator {
	return exporter.New(exporter.Config{
		Loader:     loader,
		Extractor:  ex,
		Downloader: dl,
		Observer:   log.observe,
		Hosts:      []string{"gemini.google.com"},
		Now:        fixedNow,
	})
}

func TestRun_RoundTripWithManager(t *testing.T) {
	dir := t.TempDir()
	manager := download.NewManager(download.ManagerConfig{Dir: dir})
	log := &statusLog{}
	o := newOrchestrator(htmlLoader{html: twoTurnHTML, url: chatURL}, extractor.New(extractor.DefaultRules()), manager, log)

	res := o.Run(context.Background(), scraper.Source{Location: "chat.html"})

	require.NoError(t, res.Err)
	assert.Equal(t, exporter.StateCompleted, res.State)
	assert.Equal(t, "Hi-Gemini.md", res.Filename)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	doc := string(data)

	assert.True(t, strings.HasPrefix(doc, "# Hi - Gemini June 1, 2025\n"))
	iUser := strings.Index(doc, "## User")
	iHi := strings.Index(doc, "Hi\n")
	iGemini := strings.Index(doc, "## Gemini")
	iHello := strings.Index(doc, "Hello")
	require.True(t, iUser >= 0 && iHi > iUser && iGemini > iHi && iHello > iGemini, doc)
	assert.Equal(t, 1, strings.Count(doc[iUser:iGemini], "---"))

	assert.Equal(t, 0, manager.Blobs().Len(), "object URL released")
	assert.Equal(t, []string{"✓ Chat downloaded successfully!"}, log.statuses(exporter.LevelSuccess))
	assert.Equal(t, []exporter.State{
		exporter.StateExtracting,
		exporter.StateConverting,
		exporter.StateSaving,
		exporter.StateCompleted,
		exporter.StateIdle,
	}, log.states())
	assert.False(t, o.Snapshot().Busy)
}

func TestRun_FilenameFromTitle(t *testing.T) {
	dl := &fakeDownloader{states: []download.State{download.StateComplete}}
	conv := chat.Conversation{Title: "My Chat!! Idea", Messages: []chat.Turn{{Role: chat.RoleUser, Content: "x"}}}
	o := newOrchestrator(htmlLoader{html: "<html></html>", url: chatURL}, staticExtractor{conv}, dl, &statusLog{})

	res := o.Run(context.Background(), scraper.Source{})

	require.NoError(t, res.Err)
	assert.Equal(t, "My_Chat_Idea-Gemini.md", res.Filename)
	assert.Equal(t, "My_Chat_Idea-Gemini.md", dl.opts.Filename)
	assert.True(t, dl.opts.SaveAs)
}

func TestRun_EmptyExtraction(t *testing.T) {
	dl := &fakeDownloader{}
	log := &statusLog{}
	o := newOrchestrator(htmlLoader{html: `<html><body><p>tiny</p></body></html>`, url: chatURL}, extractor.New(extractor.DefaultRules()), dl, log)

	res := o.Run(context.Background(), scraper.Source{})

	assert.ErrorIs(t, res.Err, exporter.ErrEmptyExtraction)
	assert.Equal(t, exporter.StateFailed, res.State)
	assert.Equal(t, []string{"No chat content found"}, log.statuses(exporter.LevelError))
	created, _, _, downloads := dl.counts()
	assert.Zero(t, created)
	assert.Zero(t, downloads)
	assert.NotContains(t, log.states(), exporter.StateConverting)
	assert.Equal(t, exporter.StateIdle, o.Snapshot().State)
}

func TestRun_WrongContext(t *testing.T) {
	dl := &fakeDownloader{}
	log := &statusLog{}
	o := newOrchestrator(htmlLoader{html: twoTurnHTML, url: "https://example.com/chat"}, extractor.New(extractor.DefaultRules()), dl, log)

	res := o.Run(context.Background(), scraper.Source{})

	assert.ErrorIs(t, res.Err, exporter.ErrWrongContext)
	assert.Equal(t, []string{"Please open a Gemini chat page"}, log.statuses(exporter.LevelError))
	_, _, _, downloads := dl.counts()
	assert.Zero(t, downloads)
}

func TestRun_SkipHostCheck(t *testing.T) {
	dl := &fakeDownloader{states: []download.State{download.StateComplete}}
	o := exporter.New(exporter.Config{
		Loader:        htmlLoader{html: twoTurnHTML, url: "file:///tmp/chat.html"},
		Extractor:     extractor.New(extractor.DefaultRules()),
		Downloader:    dl,
		SkipHostCheck: true,
	})

	res := o.Run(context.Background(), scraper.Source{})

	require.NoError(t, res.Err)
	assert.Equal(t, exporter.StateCompleted, res.State)
}

func TestRun_InterruptedIsSilentAndReleasesOnce(t *testing.T) {
	dl := &fakeDownloader{states: []download.State{
		download.StateInProgress,
		download.StateInterrupted,
		download.StateInterrupted,
	}}
	log := &statusLog{}
	o := newOrchestrator(htmlLoader{html: twoTurnHTML, url: chatURL}, extractor.New(extractor.DefaultRules()), dl, log)

	res := o.Run(context.Background(), scraper.Source{})

	require.NoError(t, res.Err)
	assert.Equal(t, exporter.StateCancelled, res.State)
	assert.Empty(t, log.statuses(exporter.LevelSuccess))
	assert.Empty(t, log.statuses(exporter.LevelError))

	// Wait for the fake to finish delivering the duplicate delta.
	require.Eventually(t, func() bool {
		_, revoked, _, _ := dl.counts()
		return revoked > 0
	}, time.Second, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	_, revoked, removed, _ := dl.counts()
	assert.Equal(t, 1, revoked)
	assert.Equal(t, 1, removed)
}

func TestRun_DeltaBeforeDownloadReturns(t *testing.T) {
	dl := &fakeDownloader{states: []download.State{download.StateComplete}, syncEmit: true}
	o := newOrchestrator(htmlLoader{html: twoTurnHTML, url: chatURL}, extractor.New(extractor.DefaultRules()), dl, &statusLog{})

	res := o.Run(context.Background(), scraper.Source{})

	require.NoError(t, res.Err)
	assert.Equal(t, exporter.StateCompleted, res.State)
	_, revoked, removed, _ := dl.counts()
	assert.Equal(t, 1, revoked)
	assert.Equal(t, 1, removed)
}

func TestRun_DownloadError(t *testing.T) {
	dl := &fakeDownloader{err: errors.New("disk on fire")}
	log := &statusLog{}
	o := newOrchestrator(htmlLoader{html: twoTurnHTML, url: chatURL}, extractor.New(extractor.DefaultRules()), dl, log)

	res := o.Run(context.Background(), scraper.Source{})

	require.Error(t, res.Err)
	assert.Equal(t, []string{"Error: download failed: disk on fire"}, log.statuses(exporter.LevelError))
	_, revoked, removed, _ := dl.counts()
	assert.Equal(t, 1, revoked)
	assert.Equal(t, 1, removed)
	assert.Equal(t, exporter.StateIdle, o.Snapshot().State)
}

func TestRun_LoadError(t *testing.T) {
	log := &statusLog{}
	o := newOrchestrator(htmlLoader{err: errors.New("no such file")}, extractor.New(extractor.DefaultRules()), &fakeDownloader{}, log)

	res := o.Run(context.Background(), scraper.Source{})

	require.Error(t, res.Err)
	assert.Equal(t, []string{"Error: no such file"}, log.statuses(exporter.LevelError))
}

func TestRun_ContextCanceledWhileSaving(t *testing.T) {
	dl := &fakeDownloader{states: []download.State{download.StateComplete}, block: make(chan struct{})}
	defer close(dl.block)
	o := newOrchestrator(htmlLoader{html: twoTurnHTML, url: chatURL}, extractor.New(extractor.DefaultRules()), dl, &statusLog{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res := o.Run(ctx, scraper.Source{})

	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.Equal(t, exporter.StateFailed, res.State)
	_, revoked, removed, _ := dl.counts()
	assert.Equal(t, 1, revoked)
	assert.Equal(t, 1, removed)
}

func TestRun_Busy(t *testing.T) {
	dl := &fakeDownloader{states: []download.State{download.StateComplete}, block: make(chan struct{})}
	log := &statusLog{}
	o := newOrchestrator(htmlLoader{html: twoTurnHTML, url: chatURL}, extractor.New(extractor.DefaultRules()), dl, log)

	done := make(chan exporter.Result)
	go func() { done <- o.Run(context.Background(), scraper.Source{}) }()

	require.Eventually(t, func() bool {
		return o.Snapshot().State == exporter.StateSaving && o.Snapshot().Status.Message == "Saving file..."
	}, time.Second, 5*time.Millisecond)

	second := o.Run(context.Background(), scraper.Source{})
	assert.ErrorIs(t, second.Err, exporter.ErrBusy)
	assert.True(t, o.Snapshot().Busy)

	close(dl.block)
	first := <-done
	require.NoError(t, first.Err)
	assert.False(t, o.Snapshot().Busy)
}

type memRecorder struct {
	mu      sync.Mutex
	records []*storage.Record
}

func (r *memRecorder) StoreRecord(rec *storage.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func TestRun_RecordsHistory(t *testing.T) {
	rec := &memRecorder{}
	dl := &fakeDownloader{states: []download.State{download.StateComplete}}
	o := exporter.New(exporter.Config{
		Loader:     htmlLoader{html: twoTurnHTML, url: chatURL},
		Extractor:  extractor.New(extractor.DefaultRules()),
		Downloader: dl,
		Recorder:   rec,
		Hosts:      []string{"gemini.google.com"},
		Now:        fixedNow,
	})

	res := o.Run(context.Background(), scraper.Source{Location: "chat.html"})
	require.NoError(t, res.Err)

	require.Len(t, rec.records, 1)
	r := rec.records[0]
	assert.Equal(t, "complete", r.State)
	assert.Equal(t, 42, r.DownloadID)
	assert.Equal(t, 2, r.Messages)
	assert.Equal(t, "chat.html", r.Source)
	assert.Len(t, r.Checksum, 64)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "saving", exporter.StateSaving.String())
	assert.True(t, exporter.StateCancelled.Terminal())
	assert.False(t, exporter.StateSaving.Terminal())
	assert.Equal(t, "unknown", exporter.State(99).String())
}
