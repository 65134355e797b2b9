package errz

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Formatter renders errors with an optional colored source snippet.
type Formatter struct {
	UseColor bool
}

// NewFormatter creates a new error formatter.
func NewFormatter(useColor bool) *Formatter {
	return &Formatter{UseColor: useColor}
}

var (
	colorError    = color.New(color.FgHiRed, color.Bold)
	colorLocation = color.New(color.FgCyan)
	colorPipe     = color.New(color.FgHiBlack)
	colorCaret    = color.New(color.FgHiRed)
)

func (f *Formatter) paint(c *color.Color, s string) string {
	if !f.UseColor {
		return s
	}
	c.EnableColor()
	return c.Sprint(s)
}

// Format renders any error. Compile error aggregates are rendered one
// diagnostic after another.
func (f *Formatter) Format(err error) string {
	if errs := CompileErrors(err); len(errs) > 0 {
		var b strings.Builder
		for i, e := range errs {
			if i > 0 {
				b.WriteString("\n")
			}
			f.write(&b, "compile error", e.Message, e.Location)
		}
		return b.String()
	}
	if rerr, ok := AsRuntimeError(err); ok {
		var b strings.Builder
		msg := rerr.Message
		if rerr.CommandName != "" {
			msg = fmt.Sprintf("%s (in command '%s')", msg, rerr.CommandName)
		}
		f.write(&b, "runtime error", msg, rerr.Location)
		return b.String()
	}
	return f.paint(colorError, "error") + ": " + err.Error() + "\n"
}

func (f *Formatter) write(b *strings.Builder, label, message string, loc SourceLocation) {
	b.WriteString(f.paint(colorError, label))
	b.WriteString(": ")
	b.WriteString(message)
	b.WriteString("\n")
	if loc.IsZero() {
		return
	}
	b.WriteString("  --> ")
	b.WriteString(f.paint(colorLocation, loc.String()))
	b.WriteString("\n")
	if loc.Source == "" {
		return
	}
	gutter := fmt.Sprintf("%d", loc.Line)
	pad := strings.Repeat(" ", len(gutter))
	fmt.Fprintf(b, "%s %s %s\n", gutter, f.paint(colorPipe, "|"), loc.Source)
	width := loc.Length
	if width < 1 {
		width = 1
	}
	caret := strings.Repeat(" ", loc.Column-1) + strings.Repeat("^", width)
	fmt.Fprintf(b, "%s %s %s\n", pad, f.paint(colorPipe, "|"), f.paint(colorCaret, caret))
}
