// Package clip copies rendered reports to the user's clipboard.
package clip

import (
	"errors"
	"fmt"
	"io"
	"os"

	atotto "github.com/atotto/clipboard"
	osc52 "github.com/aymanbagabas/go-osc52/v2"
	"golang.org/x/term"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/render"
)

// Method is the mechanism that made the text available.
type Method string

const (
	MethodNative Method = "native"
	MethodOSC52  Method = "osc52"
	// MethodFile means no clipboard was reachable and the text was saved
	// to a file instead.
	MethodFile Method = "file"
)

// Result reports how a copy succeeded.
type Result struct {
	Method   Method
	FilePath string // set for MethodFile
}

// Terminals drop or stall on larger OSC52 payloads.
const osc52LimitBytes = 100_000

// Copier writes text to the native clipboard, then the terminal clipboard,
// then a file in Dir.
type Copier struct {
	Native func(text string) error
	// Terminal receives the OSC52 sequence. It should not be the stream a
	// TUI renders to.
	Terminal io.Writer
	IsTTY    func() bool
	Getenv   func(string) string
	Dir      string
}

// New returns a copier for the current process.
func New() *Copier {
	return &Copier{
		Native:   atotto.WriteAll,
		Terminal: os.Stderr,
		IsTTY:    func() bool { return term.IsTerminal(int(os.Stderr.Fd())) },
		Getenv:   os.Getenv,
	}
}

// Copy makes text available using the first method that works.
func (c *Copier) Copy(text string) (Result, error) {
	if text == "" {
		return Result{}, errors.New("nothing to copy")
	}
	if c.Native != nil {
		if err := c.Native(text); err == nil {
			return Result{Method: MethodNative}, nil
		}
	}
	if err := c.osc52(text); err == nil {
		return Result{Method: MethodOSC52}, nil
	}
	path, err := c.writeFile(text)
	if err != nil {
		return Result{}, fmt.Errorf("copying report: %w", err)
	}
	return Result{Method: MethodFile, FilePath: path}, nil
}

// CopyReport renders a job as Markdown and copies it.
func (c *Copier) CopyReport(view core.ProgressView) (Result, error) {
	return c.Copy(render.Markdown(view))
}

func (c *Copier) osc52(text string) error {
	if c.Terminal == nil || c.IsTTY == nil || !c.IsTTY() {
		return errors.New("no terminal")
	}
	if len(text) > osc52LimitBytes {
		return fmt.Errorf("text too large for OSC52 (%d bytes > %d)", len(text), osc52LimitBytes)
	}
	seq := osc52.New(text).Limit(osc52LimitBytes)
	getenv := c.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if getenv("TMUX") != "" {
		seq = seq.Tmux()
	} else if getenv("STY") != "" {
		seq = seq.Screen()
	}
	_, err := seq.WriteTo(c.Terminal)
	return err
}

func (c *Copier) writeFile(text string) (path string, err error) {
	f, err := os.CreateTemp(c.Dir, "reelsight-report-*.md")
	if err != nil {
		return "", err
	}
	path = f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	if _, err = f.WriteString(text); err != nil {
		_ = f.Close()
		return "", err
	}
	if err = f.Close(); err != nil {
		return "", err
	}
	return path, nil
}
