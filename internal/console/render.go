package console

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
)

const (
	Banner     = "Type `help` to get started."
	EmptyLog   = "No console activity yet."
	PromptIdle = "cad> "
	PromptBusy = "cad (processing)> "
)

func kindColors(k Kind) text.Colors {
	switch k {
	case KindSuccess:
		return text.Colors{text.FgGreen}
	case KindError:
		return text.Colors{text.FgRed}
	default:
		return text.Colors{text.FgCyan}
	}
}

// RenderEntry formats an entry as its input line followed by its output.
func RenderEntry(e LogEntry) string {
	var b strings.Builder
	b.WriteString(text.Colors{text.Bold}.Sprint("> " + e.Input))
	b.WriteString("\n")
	colors := kindColors(e.Kind)
	for i, line := range strings.Split(e.Output, "\n") {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("  ")
		b.WriteString(colors.Sprint(line))
	}
	return b.String()
}

// RenderLog formats every entry, oldest first.
func RenderLog(entries []LogEntry) string {
	if len(entries) == 0 {
		return text.Colors{text.Faint}.Sprint(EmptyLog)
	}
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, RenderEntry(e))
	}
	return strings.Join(parts, "\n")
}

// Prompt returns the input prompt for the console's state.
func (c *Console) Prompt() string {
	if c.Processing() {
		return PromptBusy
	}
	return PromptIdle
}
