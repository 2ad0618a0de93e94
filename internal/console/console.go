// Package console prints colored pass/fail lines for QA runs.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// ANSI escape codes.
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Red    = "\033[91m"
	Green  = "\033[92m"
	Yellow = "\033[93m"
	Blue   = "\033[94m"
	Cyan   = "\033[96m"
)

// Printer writes colorized output lines.
type Printer struct {
	w     io.Writer
	color bool
}

// New returns a Printer for w. When force is nil, color is enabled only if
// w is a terminal and NO_COLOR is unset.
func New(w io.Writer, force *bool) *Printer {
	color := false
	if force != nil {
		color = *force
	} else if _, ok := os.LookupEnv("NO_COLOR"); !ok {
		color = isTerminal(w)
	}
	return &Printer{w: w, color: color}
}

// Plain returns a Printer that never emits escape codes.
func Plain(w io.Writer) *Printer {
	return &Printer{w: w}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Colored reports whether escape codes are emitted.
func (p *Printer) Colored() bool {
	return p.color
}

// Colorize wraps s in the given color when color output is enabled.
func (p *Printer) Colorize(color, s string) string {
	if !p.color {
		return s
	}
	return color + s + Reset
}

// Header prints a banner line around title.
func (p *Printer) Header(title string) {
	bar := strings.Repeat("=", 70)
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, p.Colorize(Bold+Blue, bar))
	fmt.Fprintln(p.w, p.Colorize(Bold+Blue, "  "+title))
	fmt.Fprintln(p.w, p.Colorize(Bold+Blue, bar))
}

// Step prints a numbered sub-heading inside a suite.
func (p *Printer) Step(format string, args ...any) {
	fmt.Fprintln(p.w, p.Colorize(Cyan, "\n▶ "+fmt.Sprintf(format, args...)))
}

// Success prints a green check line.
func (p *Printer) Success(format string, args ...any) {
	p.line(Green, "✅", format, args...)
}

// Error prints a red cross line.
func (p *Printer) Error(format string, args ...any) {
	p.line(Red, "❌", format, args...)
}

// Warning prints a yellow warning line.
func (p *Printer) Warning(format string, args ...any) {
	p.line(Yellow, "⚠️ ", format, args...)
}

// Info prints an uncolored informational line.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintf(p.w, "   %s\n", fmt.Sprintf(format, args...))
}

// Println writes a raw line.
func (p *Printer) Println(a ...any) {
	fmt.Fprintln(p.w, a...)
}

func (p *Printer) line(color, mark, format string, args ...any) {
	fmt.Fprintln(p.w, p.Colorize(color, mark+" "+fmt.Sprintf(format, args...)))
}
