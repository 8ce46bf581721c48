// Package ui draws orchestrator state and tables for the terminal. Every
// function is a pure renderer: it returns text and never holds state.
package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/tesh254/gemd/internal/chat"
	"github.com/tesh254/gemd/internal/exporter"
	"github.com/tesh254/gemd/internal/storage"
)

const rule = "=============================================================================="

// Status renders the status line of a snapshot, or "" when there is none.
func Status(snap exporter.Snapshot) string {
	msg := snap.Status.Message
	if msg == "" {
		return ""
	}
	switch snap.Status.Level {
	case exporter.LevelSuccess:
		return color.GreenString("%s", msg)
	case exporter.LevelError:
		return color.RedString("%s", msg)
	default:
		return color.YellowString("%s", msg)
	}
}

// StatusPrinter returns an observer that prints each new status line once.
func StatusPrinter(print func(string)) exporter.Observer {
	last := ""
	return func(snap exporter.Snapshot) {
		line := Status(snap)
		if line == "" || line == last {
			return
		}
		last = line
		print(line)
	}
}

// Banner describes the export about to run.
func Banner(source string, outputDir string) string {
	green := color.New(color.FgGreen).SprintFunc()
	var b strings.Builder
	b.WriteString(rule + "\n")
	b.WriteString("        " + green("Gemini chat export") + "\n")
	b.WriteString(rule + "\n")
	b.WriteString(fmt.Sprintf("Source:     %s\n", source))
	b.WriteString(fmt.Sprintf("Output dir: %s\n", outputDir))
	b.WriteString(rule)
	return b.String()
}

// ConversationTable lists the extracted turns with a preview of each.
func ConversationTable(conv chat.Conversation) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle(conv.Title)
	t.AppendHeader(table.Row{"#", "Role", "Length", "Preview"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignLeft},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignLeft, WidthMax: 60},
	})
	for i, turn := range conv.Messages {
		t.AppendRow(table.Row{i + 1, turn.Role.Label(), strconv.Itoa(len(turn.Content)), preview(turn.Content, 60)})
	}
	return t.Render()
}

// HistoryTable lists recorded exports.
func HistoryTable(records []*storage.Record) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "When", "Title", "State", "Turns", "Path"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: 40},
		{Number: 6, WidthMax: 60},
	})
	for _, r := range records {
		state := r.State
		if state == "complete" {
			state = color.GreenString("%s", state)
		} else {
			state = color.YellowString("%s", state)
		}
		t.AppendRow(table.Row{r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Title, state, r.Messages, r.Path})
	}
	return t.Render()
}

// Error renders an error box.
func Error(err error) string {
	red := color.New(color.FgRed).SprintFunc()
	return red("⚠ Error") + " " + err.Error()
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
