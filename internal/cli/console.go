package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// console writes pipeline status lines to stdout. Lines are colored only
// when the writer is a terminal.
type console struct {
	w      io.Writer
	accent *color.Color
}

func newConsole(w io.Writer) *console {
	accent := color.New(color.FgCyan, color.Bold)
	if isTerminal(w) && os.Getenv("NO_COLOR") == "" {
		accent.EnableColor()
	} else {
		accent.DisableColor()
	}
	return &console{w: w, accent: accent}
}

func (c *console) Status(line string) {
	fmt.Fprintln(c.w, c.accent.Sprint(line))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
