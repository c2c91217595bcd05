package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/buger/goterm"
	"github.com/fatih/color"
)

var (
	narrativeColor = color.New(color.FgCyan)                // Story text
	choiceColor    = color.New(color.FgGreen)               // Player choices
	optionColor    = color.New(color.FgHiBlue)              // Offered options
	progressColor  = color.New(color.FgHiBlack)             // Progress steps
	errorColor     = color.New(color.FgRed, color.Bold)     // Exchange failures
	titleColor     = color.New(color.FgMagenta, color.Bold) // Titles
	separatorColor = color.New(color.FgHiBlack)             // Separators
	infoColor      = color.New(color.FgYellow)              // Status lines
	promptColor    = color.New(color.FgHiBlue)              // Input prompt
)

// terminalWidth falls back to 80 columns when stdout is not a terminal.
func terminalWidth() int {
	if w := goterm.Width(); w > 0 {
		return w
	}
	return 80
}

// Separator printed to w.
func Separator(w io.Writer) {
	separatorColor.Fprintln(w, strings.Repeat("-", terminalWidth()))
}

// Title printed to w.
func Title(w io.Writer, text string, args ...any) {
	width := terminalWidth()
	title := "      " + fmt.Sprintf(text, args...) + "      "
	leftWidth := max((width-len(title))/2, 0)
	separator1 := strings.Repeat("-", leftWidth)
	separator2 := strings.Repeat("-", max(width-len(title)-len(separator1), 0))
	titleColor.Fprintf(w, "%s%s%s\n", separator1, title, separator2)
}

// Info printed to w.
func Info(w io.Writer, text string, args ...any) {
	infoColor.Fprintf(w, text, args...)
}
