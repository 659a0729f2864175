package telegram

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"mathcanvas/api/internal/calc"
)

const maxMessageLen = 3900

const helpText = `Send a photo of a drawn expression, equation system or sketch and I will solve it.
Assignments like x = 4 are remembered for this chat.
Commands:
/vars - show remembered variables
/set <name> <value> - remember a variable
/reset - forget all variables
/engine [gemini|openai] - show or switch the model`

func formatRecords(b calc.Batch, degraded bool) string {
	if degraded {
		return "Could not read an answer from the model. Try redrawing more clearly."
	}
	if len(b) == 0 {
		return "Nothing to solve was found in the picture."
	}
	var sb strings.Builder
	for i, r := range b {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s = %v", r.Expr, r.Result)
		if r.Assign {
			sb.WriteString("  (saved)")
		}
	}
	return clip(sb.String())
}

func formatVars(vars calc.Variables) string {
	if len(vars) == 0 {
		return "No variables yet."
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s = %v", k, vars[k])
	}
	return clip(sb.String())
}

func clip(s string) string {
	if len(s) <= maxMessageLen {
		return s
	}
	n := maxMessageLen
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
