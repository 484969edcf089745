package output

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ColorScheme defines the colors used for different elements in the output
type ColorScheme struct {
	Client    *color.Color
	Scenario  *color.Color
	Success   *color.Color
	Warn      *color.Color
	Error     *color.Color
	Highlight *color.Color
	Muted     *color.Color
}

// DefaultColorScheme returns the default color scheme
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Client:    color.New(color.FgBlue, color.Bold),
		Scenario:  color.New(color.FgCyan),
		Success:   color.New(color.FgGreen, color.Bold),
		Warn:      color.New(color.FgYellow, color.Bold),
		Error:     color.New(color.FgRed, color.Bold),
		Highlight: color.New(color.FgMagenta, color.Bold),
		Muted:     color.New(color.FgWhite),
	}
}

// NoColorScheme returns a color scheme with all colors disabled
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()

	scheme.Client.DisableColor()
	scheme.Scenario.DisableColor()
	scheme.Success.DisableColor()
	scheme.Warn.DisableColor()
	scheme.Error.DisableColor()
	scheme.Highlight.DisableColor()
	scheme.Muted.DisableColor()

	return scheme
}

// Console writes orchestration progress and diagnostics to a terminal,
// degrading to plain text when the destination is not a TTY.
type Console struct {
	out     io.Writer
	errOut  io.Writer
	scheme  *ColorScheme
	Verbose bool
}

// NewConsole creates a Console writing to stdout/stderr with colors
// enabled only when stdout is a terminal.
func NewConsole(verbose bool) *Console {
	scheme := DefaultColorScheme()
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		scheme = NoColorScheme()
	}
	return &Console{out: os.Stdout, errOut: os.Stderr, scheme: scheme, Verbose: verbose}
}

// NewConsoleWriter creates a Console for explicit writers with colors
// disabled. Intended for tests.
func NewConsoleWriter(out, errOut io.Writer) *Console {
	return &Console{out: out, errOut: errOut, scheme: NoColorScheme()}
}

// Scheme exposes the active color scheme for callers that format
// their own lines (e.g. the validation report).
func (c *Console) Scheme() *ColorScheme { return c.scheme }

// Infof prints a progress line.
func (c *Console) Infof(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format+"\n", args...)
}

// Debugf prints a progress line only in verbose mode.
func (c *Console) Debugf(format string, args ...interface{}) {
	if c.Verbose {
		fmt.Fprintf(c.out, format+"\n", args...)
	}
}

// Warnf prints a warning to stderr.
func (c *Console) Warnf(format string, args ...interface{}) {
	fmt.Fprintf(c.errOut, "%s %s\n", c.scheme.Warn.Sprint("WARN"), fmt.Sprintf(format, args...))
}

// Errorf prints an error to stderr.
func (c *Console) Errorf(format string, args ...interface{}) {
	fmt.Fprintf(c.errOut, "%s %s\n", c.scheme.Error.Sprint("ERROR"), fmt.Sprintf(format, args...))
}

// Successf prints a success line.
func (c *Console) Successf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, "%s %s\n", c.scheme.Success.Sprint("OK"), fmt.Sprintf(format, args...))
}
