// Package api is the message router between callers (CLI, MCP tools) and the
// export pipeline. It answers the two messages a chat page can send and
// exposes the same operations as plain methods.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tesh254/gemd/internal/chat"
	"github.com/tesh254/gemd/internal/download"
	"github.com/tesh254/gemd/internal/exporter"
	"github.com/tesh254/gemd/internal/extractor"
	"github.com/tesh254/gemd/internal/logger"
	"github.com/tesh254/gemd/internal/scraper"
	"github.com/tesh254/gemd/internal/storage"
)

// Message actions.
const (
	ActionDownload    = "download"
	ActionExtractChat = "extractChat"
)

// ErrUnknownAction is returned for messages no handler claims.
var ErrUnknownAction = errors.New("unknown action")

// Message is a request from a page or tool.
type Message struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// DownloadData asks for a Markdown document to be saved.
type DownloadData struct {
	Markdown string `json:"markdown"`
	Filename string `json:"filename"`
}

// ExtractData names the page to extract. HTML, when set, is used instead of
// fetching URL.
type ExtractData struct {
	URL     string `json:"url,omitempty"`
	HTML    string `json:"html,omitempty"`
	PageURL string `json:"page_url,omitempty"`
}

// DownloadResponse acknowledges a download request.
type DownloadResponse struct {
	Success bool `json:"success"`
}

// Config holds API dependencies. Storage is optional.
type Config struct {
	Scraper   *scraper.Scraper
	Extractor *extractor.Extractor
	Manager   *download.Manager
	Exporter  *exporter.Orchestrator
	Storage   *storage.Storage
	Logger    logger.Logger
}

// API provides methods to interact with the export pipeline.
type API struct {
	scraper   *scraper.Scraper
	extractor *extractor.Extractor
	manager   *download.Manager
	exporter  *exporter.Orchestrator
	storage   *storage.Storage
	log       logger.Logger
}

// NewAPI creates a new API instance.
func NewAPI(cfg Config) *API {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	return &API{
		scraper:   cfg.Scraper,
		extractor: cfg.Extractor,
		manager:   cfg.Manager,
		exporter:  cfg.Exporter,
		storage:   cfg.Storage,
		log:       cfg.Logger,
	}
}

// HandleMessage routes msg to its handler. A download is acknowledged as soon
// as it starts; its failures are logged and never returned.
func (a *API) HandleMessage(ctx context.Context, msg Message) (any, error) {
	switch msg.Action {
	case ActionDownload:
		var data DownloadData
		if err := decode(msg.Data, &data); err != nil {
			return nil, err
		}
		// The download outlives the request that started it.
		if _, err := a.Download(context.WithoutCancel(ctx), data); err != nil {
			a.log.Error("Download failed", logger.String("filename", data.Filename), logger.Err(err))
		}
		return DownloadResponse{Success: true}, nil
	case ActionExtractChat:
		var data ExtractData
		if err := decode(msg.Data, &data); err != nil {
			return nil, err
		}
		return a.ExtractChat(ctx, data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, msg.Action)
	}
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid message data: %w", err)
	}
	return nil
}

// ExtractChat loads the page described by data and extracts its conversation.
func (a *API) ExtractChat(ctx context.Context, data ExtractData) (chat.Conversation, error) {
	src := scraper.Source{Location: data.URL, PageURL: data.PageURL}
	if data.HTML != "" {
		src.Body = strings.NewReader(data.HTML)
		if src.PageURL == "" {
			src.PageURL = data.URL
		}
	}
	page, err := a.scraper.LoadSource(ctx, src)
	if err != nil {
		return chat.Conversation{}, err
	}
	return a.extractor.Extract(page), nil
}

// Download hands data to the download manager. The returned channel receives
// the terminal state of the download; the object URL is released when it
// settles.
func (a *API) Download(ctx context.Context, data DownloadData) (<-chan download.Delta, error) {
	url := a.manager.CreateObjectURL(download.NewMarkdownBlob(data.Markdown))

	settled := make(chan download.Delta, 1)
	w := download.Watch(a.manager, func(d download.Delta) {
		a.manager.RevokeObjectURL(url)
		if d.State != download.StateComplete && d.Error != download.ReasonUserCanceled {
			a.log.Warn("Download interrupted", logger.Int("id", d.ID), logger.String("reason", d.Error))
		}
		settled <- d
	})

	id, err := a.manager.Download(ctx, download.Options{
		URL:      url,
		Filename: data.Filename,
		SaveAs:   true,
	})
	if err != nil {
		w.Stop()
		a.manager.RevokeObjectURL(url)
		return nil, fmt.Errorf("download failed: %w", err)
	}
	w.Bind(id)
	return settled, nil
}

// Export runs the full pipeline for src.
func (a *API) Export(ctx context.Context, src scraper.Source) exporter.Result {
	return a.exporter.Run(ctx, src)
}

// History lists recorded exports, newest first.
func (a *API) History(limit int) ([]*storage.Record, error) {
	if a.storage == nil {
		return nil, nil
	}
	return a.storage.ListRecords(limit)
}

// DeleteRecord removes one history record.
func (a *API) DeleteRecord(id string) error {
	if a.storage == nil {
		return storage.ErrNotFound
	}
	return a.storage.DeleteRecord(id)
}

// Clean deletes the export history.
func (a *API) Clean() error {
	if a.storage == nil {
		return nil
	}
	return a.storage.Clean()
}
