package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tesh254/gemd/internal/api"
	"github.com/tesh254/gemd/internal/exporter"
	"github.com/tesh254/gemd/internal/logger"
	"github.com/tesh254/gemd/internal/scraper"
)

// Core serves the API as MCP tools.
type Core struct {
	Logger logger.Logger
}

type ExtractChatArgs struct {
	URL     string `json:"url,omitempty" jsonschema:"URL or local path of the chat page"`
	HTML    string `json:"html,omitempty" jsonschema:"saved HTML of the chat page, used instead of url"`
	PageURL string `json:"page_url,omitempty" jsonschema:"URL the page was saved from"`
}

type DownloadArgs struct {
	Markdown string `json:"markdown" jsonschema:"the Markdown document"`
	Filename string `json:"filename" jsonschema:"plain file name to save as"`
}

type ExportChatArgs struct {
	URL     string `json:"url,omitempty" jsonschema:"URL or local path of the chat page"`
	HTML    string `json:"html,omitempty" jsonschema:"saved HTML of the chat page, used instead of url"`
	PageURL string `json:"page_url,omitempty" jsonschema:"URL the page was saved from"`
}

type DownloadOutput struct {
	ID    int    `json:"id"`
	State string `json:"state"`
	Path  string `json:"path,omitempty"`
	Error string `json:"error,omitempty"`
}

type ExportOutput struct {
	State    string `json:"state"`
	Title    string `json:"title"`
	Messages int    `json:"messages"`
	Filename string `json:"filename,omitempty"`
	Path     string `json:"path,omitempty"`
}

func (c *Core) log() logger.Logger {
	if c.Logger == nil {
		return logger.NewNop()
	}
	return c.Logger
}

// NewServer builds the MCP server with every tool registered.
func (c *Core) NewServer(internalAPI *api.API) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "gemd MCP Server", Version: "v1.0.0"}, nil)
	c.registerTools(server, internalAPI)
	return server
}

// StartServer serves over streamable HTTP when httpAddress is set, stdio
// otherwise. It returns when ctx ends or the transport fails.
func (c *Core) StartServer(ctx context.Context, internalAPI *api.API, httpAddress string) error {
	server := c.NewServer(internalAPI)
	if httpAddress != "" {
		return c.ServeHTTP(ctx, server, httpAddress)
	}
	return c.ServeStdio(ctx, server)
}

func (c *Core) ServeHTTP(ctx context.Context, server *mcp.Server, httpAddress string) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
	srv := &http.Server{Addr: httpAddress, Handler: loggingHandler(c.log(), handler)}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	c.log().Info("MCP handler listening", logger.String("address", httpAddress))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (c *Core) ServeStdio(ctx context.Context, server *mcp.Server) error {
	transport := &mcp.StdioTransport{}
	t := &mcp.LoggingTransport{Transport: transport, Writer: os.Stderr}
	c.log().Info("Starting MCP server with stdio transport")
	return server.Run(ctx, t)
}

func textResult(v any) (*mcp.CallToolResult, error) {
	result, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(result)},
		},
	}, nil
}

func (c *Core) registerTools(server *mcp.Server, internalAPI *api.API) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "extract_chat",
		Description: "Extract the title and messages of a Gemini chat page.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ExtractChatArgs) (*mcp.CallToolResult, any, error) {
		if args.URL == "" && args.HTML == "" {
			return nil, nil, fmt.Errorf("url or html is required")
		}
		conv, err := internalAPI.ExtractChat(ctx, api.ExtractData{URL: args.URL, HTML: args.HTML, PageURL: args.PageURL})
		if err != nil {
			return nil, nil, err
		}
		res, err := textResult(conv)
		return res, nil, err
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "download",
		Description: "Save a Markdown document through the download manager.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args DownloadArgs) (*mcp.CallToolResult, any, error) {
		settled, err := internalAPI.Download(context.WithoutCancel(ctx), api.DownloadData{Markdown: args.Markdown, Filename: args.Filename})
		if err != nil {
			return nil, nil, err
		}
		select {
		case d := <-settled:
			res, err := textResult(DownloadOutput{ID: d.ID, State: string(d.State), Path: d.Path, Error: d.Error})
			return res, nil, err
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "export_chat",
		Description: "Extract a Gemini chat page and save it as Markdown.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ExportChatArgs) (*mcp.CallToolResult, any, error) {
		src := scraper.Source{Location: args.URL, PageURL: args.PageURL}
		if args.HTML != "" {
			src.Body = strings.NewReader(args.HTML)
			if src.PageURL == "" {
				src.PageURL = args.URL
			}
		}
		result := internalAPI.Export(ctx, src)
		if result.Err != nil {
			return nil, nil, result.Err
		}
		res, err := textResult(exportOutput(result))
		return res, nil, err
	})
}

func exportOutput(r exporter.Result) ExportOutput {
	return ExportOutput{
		State:    r.State.String(),
		Title:    r.Conversation.Title,
		Messages: len(r.Conversation.Messages),
		Filename: r.Filename,
		Path:     r.Path,
	}
}
