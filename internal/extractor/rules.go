package extractor

import (
	"fmt"

	"github.com/andybalholm/cascadia"
)

// Content formats for turn bodies.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
)

// RoleMarkers decide whether a turn container belongs to a role. Self
// selectors are matched against the container itself, Descendant selectors
// anywhere inside it.
type RoleMarkers struct {
	Self       []string `mapstructure:"self" yaml:"self" json:"self"`
	Descendant []string `mapstructure:"descendant" yaml:"descendant" json:"descendant"`
}

// Rules is the selector data driving extraction. Every list is tried in
// order and the first usable match wins, so the page layout can change
// without touching code: override the lists in the config file.
type Rules struct {
	DefaultTitle          string   `mapstructure:"default-title" yaml:"default-title" json:"default_title"`
	TitleSelectors        []string `mapstructure:"title-selectors" yaml:"title-selectors" json:"title_selectors"`
	RejectTitles          []string `mapstructure:"reject-titles" yaml:"reject-titles" json:"reject_titles"`
	RejectTitleSubstrings []string `mapstructure:"reject-title-contains" yaml:"reject-title-contains" json:"reject_title_contains"`
	FirstUserMessage      []string `mapstructure:"first-user-message" yaml:"first-user-message" json:"first_user_message"`
	MaxTitleLength        int      `mapstructure:"max-title-length" yaml:"max-title-length" json:"max_title_length"`

	ContainerSelectors []string    `mapstructure:"container-selectors" yaml:"container-selectors" json:"container_selectors"`
	ContentSelectors   []string    `mapstructure:"content-selectors" yaml:"content-selectors" json:"content_selectors"`
	UserMarkers        RoleMarkers `mapstructure:"user-markers" yaml:"user-markers" json:"user_markers"`
	ModelMarkers       RoleMarkers `mapstructure:"model-markers" yaml:"model-markers" json:"model_markers"`
	ContentFormat      string      `mapstructure:"content-format" yaml:"content-format" json:"content_format"`

	// MinFallbackLineLength is the length a body text line must exceed to be
	// used as a title when no turn could be found.
	MinFallbackLineLength int    `mapstructure:"min-fallback-line-length" yaml:"min-fallback-line-length" json:"min_fallback_line_length"`
	FailureMessage        string `mapstructure:"failure-message" yaml:"failure-message" json:"failure_message"`
}

// DefaultRules returns the selectors known to work on the Gemini web app.
func DefaultRules() Rules {
	return Rules{
		DefaultTitle: "Gemini Conversation",
		TitleSelectors: []string{
			"span.conversation-title",
			".conversation-title",
			`div[data-test-id="conversation-title"]`,
			`button[aria-label*="Rename"]`,
			"mat-panel-title",
			`textarea[placeholder*="chat"]`,
			".chat-name",
			"h1",
		},
		RejectTitles:          []string{"Chats"},
		RejectTitleSubstrings: []string{"New chat"},
		FirstUserMessage:      []string{`[data-test-id*="user"] .markdown`, ".user-message"},
		MaxTitleLength:        100,
		ContainerSelectors: []string{
			`[data-test-id*="conversation-turn"]`,
			".conversation-turn",
			`[class*="message"]`,
		},
		ContentSelectors: []string{"[data-message-text]", ".message-content", ".markdown"},
		UserMarkers: RoleMarkers{
			Self:       []string{".user-message"},
			Descendant: []string{`[data-test-id="user-message"]`, `[alt*="User"]`},
		},
		ModelMarkers: RoleMarkers{
			Self:       []string{".model-message"},
			Descendant: []string{`[data-test-id="model-message"]`, `[alt*="Gemini"]`},
		},
		ContentFormat:         FormatText,
		MinFallbackLineLength: 10,
		FailureMessage:        "Chat content extraction failed. Please report this issue.",
	}
}

// WithDefaults fills every unset field from DefaultRules.
func (r Rules) WithDefaults() Rules {
	d := DefaultRules()
	if r.DefaultTitle == "" {
		r.DefaultTitle = d.DefaultTitle
	}
	if len(r.TitleSelectors) == 0 {
		r.TitleSelectors = d.TitleSelectors
	}
	if r.RejectTitles == nil {
		r.RejectTitles = d.RejectTitles
	}
	if r.RejectTitleSubstrings == nil {
		r.RejectTitleSubstrings = d.RejectTitleSubstrings
	}
	if len(r.FirstUserMessage) == 0 {
		r.FirstUserMessage = d.FirstUserMessage
	}
	if r.MaxTitleLength <= 0 {
		r.MaxTitleLength = d.MaxTitleLength
	}
	if len(r.ContainerSelectors) == 0 {
		r.ContainerSelectors = d.ContainerSelectors
	}
	if len(r.ContentSelectors) == 0 {
		r.ContentSelectors = d.ContentSelectors
	}
	if len(r.UserMarkers.Self)+len(r.UserMarkers.Descendant) == 0 {
		r.UserMarkers = d.UserMarkers
	}
	if len(r.ModelMarkers.Self)+len(r.ModelMarkers.Descendant) == 0 {
		r.ModelMarkers = d.ModelMarkers
	}
	if r.ContentFormat == "" {
		r.ContentFormat = d.ContentFormat
	}
	if r.MinFallbackLineLength <= 0 {
		r.MinFallbackLineLength = d.MinFallbackLineLength
	}
	if r.FailureMessage == "" {
		r.FailureMessage = d.FailureMessage
	}
	return r
}

// Validate checks that every selector compiles and the content format is known.
func (r Rules) Validate() error {
	groups := map[string][]string{
		"title-selectors":          r.TitleSelectors,
		"first-user-message":       r.FirstUserMessage,
		"container-selectors":      r.ContainerSelectors,
		"content-selectors":        r.ContentSelectors,
		"user-markers.self":        r.UserMarkers.Self,
		"user-markers.descendant":  r.UserMarkers.Descendant,
		"model-markers.self":       r.ModelMarkers.Self,
		"model-markers.descendant": r.ModelMarkers.Descendant,
	}
	for name, selectors := range groups {
		for _, sel := range selectors {
			if _, err := cascadia.Compile(sel); err != nil {
				return fmt.Errorf("invalid selector %q in %s: %w", sel, name, err)
			}
		}
	}
	switch r.ContentFormat {
	case FormatText, FormatMarkdown:
	default:
		return fmt.Errorf("unknown content format %q", r.ContentFormat)
	}
	return nil
}
