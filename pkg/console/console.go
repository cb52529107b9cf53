// Package console renders compiler diagnostics and status messages for the
// terminal. All output helpers degrade to plain text when stderr is not a
// terminal or when NO_COLOR is set.
package console

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
	gutterStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// colorEnabled reports whether styled output should be produced.
func colorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stderr.Fd())
}

func render(style lipgloss.Style, s string) string {
	if !colorEnabled() {
		return s
	}
	return style.Render(s)
}

// ErrorPosition identifies a source location for a compiler diagnostic.
type ErrorPosition struct {
	File   string
	Line   int
	Column int
}

// CompilerError is a rich diagnostic with optional source context lines.
type CompilerError struct {
	Position ErrorPosition
	Type     string // "error" or "warning"
	Message  string
	Context  []string
	Hint     string
}

// FormatError renders a compiler diagnostic in the conventional
// file:line:col: type: message form, followed by numbered context lines
// centered on the error position.
func FormatError(err CompilerError) string {
	var b strings.Builder

	pos := fmt.Sprintf("%s:%d:%d:", ToRelativePath(err.Position.File), err.Position.Line, err.Position.Column)
	label := err.Type
	if label == "" {
		label = "error"
	}
	style := errorStyle
	if label == "warning" {
		style = warningStyle
	}
	fmt.Fprintf(&b, "%s %s %s\n", dimRender(pos), render(style, label+":"), err.Message)

	if len(err.Context) > 0 {
		// Context lines are centered on the reported line.
		start := err.Position.Line - len(err.Context)/2
		if start < 1 {
			start = 1
		}
		width := len(fmt.Sprintf("%d", start+len(err.Context)-1))
		for i, line := range err.Context {
			gutter := fmt.Sprintf("%*d |", width, start+i)
			fmt.Fprintf(&b, "  %s %s\n", render(gutterStyle, gutter), line)
		}
	}

	return b.String()
}

func dimRender(s string) string {
	return render(dimStyle, s)
}

// FormatErrorWithSuggestions renders an error message followed by a bulleted
// list of suggested next actions.
func FormatErrorWithSuggestions(message string, suggestions []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", render(errorStyle, "✗"), message)
	if len(suggestions) > 0 {
		b.WriteString("Suggestions:\n")
		for _, s := range suggestions {
			fmt.Fprintf(&b, "  • %s\n", s)
		}
	}
	return b.String()
}

// FormatErrorMessage renders a one-line error message.
func FormatErrorMessage(message string) string {
	return fmt.Sprintf("%s %s", render(errorStyle, "✗"), message)
}

// FormatWarningMessage renders a one-line warning message.
func FormatWarningMessage(message string) string {
	return fmt.Sprintf("%s %s", render(warningStyle, "⚠"), message)
}

// FormatSuccessMessage renders a one-line success message.
func FormatSuccessMessage(message string) string {
	return fmt.Sprintf("%s %s", render(successStyle, "✓"), message)
}

// FormatInfoMessage renders a one-line informational message.
func FormatInfoMessage(message string) string {
	return fmt.Sprintf("%s %s", render(infoStyle, "ℹ"), message)
}

// FormatVerboseMessage renders a dimmed message for verbose output.
func FormatVerboseMessage(message string) string {
	return dimRender(message)
}

// ToRelativePath converts an absolute path to one relative to the working
// directory when that makes it shorter to read; other paths pass through.
func ToRelativePath(path string) string {
	if !filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(cwd, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
