package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/render"
)

// printView writes a job as indented JSON, or as Markdown styled for the
// terminal when out is one.
func printView(out io.Writer, view core.ProgressView, asJSON bool) error {
	if asJSON {
		return printJSON(out, view)
	}
	md := render.Markdown(view)
	if width, ok := terminalWidth(out); ok && !noColor {
		md = render.Terminal(md, width)
	}
	_, err := fmt.Fprint(out, md)
	return err
}

func terminalWidth(w io.Writer) (int, bool) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0, false
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return 80, true
	}
	if width > 120 {
		width = 120
	}
	return width, true
}

func progressLine(view core.ProgressView) string {
	return fmt.Sprintf("%-20s %3d%%  %-13s %s", view.JobID, view.ProgressPercent, view.StageName, view.Message)
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
