package download

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// AcceptPrompter always saves to the suggested location.
type AcceptPrompter struct{}

// SaveAs implements Prompter.
func (AcceptPrompter) SaveAs(_ context.Context, suggested string) (string, bool, error) {
	return suggested, true, nil
}

// TerminalPrompter asks on a terminal. An empty answer accepts the suggested
// path, end of input (Ctrl-D) dismisses the dialog, anything else is taken as
// the target path. Answering with a directory keeps the suggested file name.
type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer
}

// SaveAs implements Prompter.
func (p TerminalPrompter) SaveAs(ctx context.Context, suggested string) (string, bool, error) {
	fmt.Fprintf(p.Out, "Save as [%s]: ", suggested)

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := bufio.NewReader(p.In).ReadString('\n')
		ch <- answer{line: line, err: err}
	}()

	var a answer
	select {
	case <-ctx.Done():
		fmt.Fprintln(p.Out)
		return "", false, nil
	case a = <-ch:
	}

	if a.err != nil && a.err != io.EOF {
		return "", false, fmt.Errorf("read answer: %w", a.err)
	}
	if a.err == io.EOF && a.line == "" {
		fmt.Fprintln(p.Out)
		return "", false, nil
	}

	choice := strings.TrimSpace(a.line)
	if choice == "" {
		return suggested, true, nil
	}
	choice = expandHome(choice)
	if info, err := os.Stat(choice); err == nil && info.IsDir() {
		choice = filepath.Join(choice, filepath.Base(suggested))
	}
	return choice, true, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
