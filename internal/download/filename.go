package download

import (
	"regexp"
	"strings"
	"unicode"
)

// FilenameSuffix ends every exported file name.
const FilenameSuffix = "-Gemini.md"

// MaxTitleLength bounds the sanitized title part of a file name.
const MaxTitleLength = 80

var (
	spaceRuns      = regexp.MustCompile(`\s+`)
	underscoreRuns = regexp.MustCompile(`_+`)
)

// SanitizeTitle turns an arbitrary title into a file system safe name.
// Applying it to its own output returns the same string.
func SanitizeTitle(title string) string {
	s := strings.Map(func(r rune) rune {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			return r
		case unicode.IsSpace(r):
			return ' '
		default:
			return '_'
		}
	}, title)

	s = spaceRuns.ReplaceAllString(s, "_")
	s = underscoreRuns.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > MaxTitleLength {
		s = strings.TrimRight(s[:MaxTitleLength], "_")
	}
	return s
}

// Filename returns the download name for a conversation title.
func Filename(title string) string {
	return SanitizeTitle(title) + FilenameSuffix
}
