package ui

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"

	"studiopipe/pkg/errors"
)

var (
	// Check if output supports colors
	supportsColor = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	// Output receives every Show* message. Tests swap it for a buffer.
	Output io.Writer = os.Stdout

	// Color functions
	ColorSuccess  = colorFunc(ansi.Green)
	ColorError    = colorFunc(ansi.Red)
	ColorWarning  = colorFunc(ansi.Yellow)
	ColorInfo     = colorFunc(ansi.Cyan)
	ColorProgress = colorFunc(ansi.Blue)
	ColorBold     = colorFunc("default+b")
	ColorDim      = colorFunc("default+h")
)

// colorFunc returns a function that colors text if supported
func colorFunc(color string) func(string) string {
	return func(text string) string {
		if supportsColor {
			return ansi.Color(text, color)
		}
		return text
	}
}

// ShowHeader displays a formatted header
func ShowHeader(title string) {
	width := 50
	if len(title)+4 > width {
		width = len(title) + 4
	}
	padding := (width - len(title) - 2) / 2

	fmt.Fprintln(Output, "\n+"+strings.Repeat("-", width-2)+"+")
	fmt.Fprintf(Output, "|%s%s%s|\n",
		strings.Repeat(" ", padding),
		ColorBold(title),
		strings.Repeat(" ", width-2-padding-len(title)),
	)
	fmt.Fprintln(Output, "+"+strings.Repeat("-", width-2)+"+")
}

// ShowError displays a formatted error message. Structured errors print
// their code, cause chain and recovery suggestions.
func ShowError(err error) {
	if err == nil {
		return
	}

	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		fmt.Fprintf(Output, "\n%s\n", ColorError("ERROR:"))
		for i, line := range strings.Split(err.Error(), "\n") {
			if i == 0 {
				fmt.Fprintf(Output, "  %s\n", line)
			} else {
				fmt.Fprintf(Output, "  %s\n", ColorDim(line))
			}
		}
		if suggestion := getSuggestion(err.Error()); suggestion != "" {
			fmt.Fprintf(Output, "\n  %s %s\n", ColorInfo("TIP:"), ColorInfo(suggestion))
		}
		return
	}

	fmt.Fprintf(Output, "\n%s %s\n", ColorError("ERROR:"), ColorDim(string(appErr.Code)))
	fmt.Fprintf(Output, "  %s\n", appErr.Message)
	if appErr.Cause != nil {
		for _, line := range strings.Split(appErr.Cause.Error(), "\n") {
			fmt.Fprintf(Output, "  %s\n", ColorDim(line))
		}
	}

	suggestions := appErr.Suggestions
	if len(suggestions) == 0 {
		if s := getSuggestion(err.Error()); s != "" {
			suggestions = []string{s}
		}
	}
	if len(suggestions) > 0 {
		fmt.Fprintf(Output, "\n  %s\n", ColorInfo("TIP:"))
		for _, s := range suggestions {
			fmt.Fprintf(Output, "    - %s\n", s)
		}
	}
}

// ShowSuccess displays a success message
func ShowSuccess(message string) {
	fmt.Fprintf(Output, "%s %s\n", ColorSuccess("SUCCESS:"), message)
}

// ShowWarning displays a warning message
func ShowWarning(message string) {
	fmt.Fprintf(Output, "%s %s\n", ColorWarning("WARNING:"), ColorWarning(message))
}

// ShowInfo displays an info message
func ShowInfo(message string) {
	fmt.Fprintf(Output, "%s %s\n", ColorInfo("INFO:"), message)
}

// Box draws a box around content
func Box(title, content string) {
	lines := strings.Split(content, "\n")
	maxLen := len(title)

	for _, line := range lines {
		if len(line) > maxLen {
			maxLen = len(line)
		}
	}

	borderLen := maxLen - len(title) - 1
	if borderLen < 0 {
		borderLen = 0
	}
	fmt.Fprintf(Output, "+- %s %s+\n", ColorBold(title), strings.Repeat("-", borderLen))

	for _, line := range lines {
		fmt.Fprintf(Output, "| %s%s |\n", line, strings.Repeat(" ", maxLen-len(line)))
	}

	fmt.Fprintf(Output, "+%s+\n", strings.Repeat("-", maxLen+3))
}

// FormatCount renders n with comma thousands separators (1234567 -> 1,234,567).
func FormatCount(n int64) string {
	digits := strconv.FormatInt(n, 10)
	sign := ""
	if n < 0 {
		sign, digits = "-", digits[1:]
	}
	if len(digits) <= 3 {
		return sign + digits
	}

	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return sign + b.String()
}

// getSuggestion returns helpful suggestions based on error messages
func getSuggestion(message string) string {
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "authentication failed") || strings.Contains(lower, "incorrect username or password"):
		return "Check the user and password of the connection in connections.toml"
	case strings.Contains(lower, "connection refused"):
		return "Verify your Snowflake account identifier and network connectivity"
	case strings.Contains(lower, "syntax error"):
		return "Review the SQL statement in the error context"
	case strings.Contains(lower, "permission denied") || strings.Contains(lower, "insufficient privileges"):
		return "Ensure your role has the necessary privileges"
	case strings.Contains(lower, "does not exist"):
		return "Verify the dynamic tables exist or check warehouse.database"
	default:
		return ""
	}
}
