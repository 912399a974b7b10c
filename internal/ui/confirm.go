package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Confirm displays a warning line and asks a yes/no question on out,
// reading the answer from in. Anything other than "y" or "yes" declines.
func Confirm(in io.Reader, out io.Writer, warning, prompt string) bool {
	if warning != "" {
		line := lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true).
			Render(fmt.Sprintf("  %s  %s", WarningMarker, warning))
		_, _ = fmt.Fprintln(out, line)
	}

	promptStyle := lipgloss.NewStyle().Foreground(WarningColor)
	_, _ = fmt.Fprint(out, promptStyle.Render(prompt+" [y/N]: "))

	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && input == "" {
		_, _ = fmt.Fprintln(out)
		return false
	}

	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	}

	cancelStyle := lipgloss.NewStyle().Foreground(MutedColor)
	_, _ = fmt.Fprintln(out, cancelStyle.Render("  Operation cancelled."))
	return false
}
