package llm

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"mathcanvas/api/internal/calc"
)

const (
	NameGemini = "gemini"
	NameOpenAI = "openai"
)

var ErrUnknownEngine = errors.New("unknown llm_name")

// Engines holds the configured completion services. A nil field means the
// service has no credentials.
type Engines struct {
	Default string
	Gemini  calc.Completer
	OpenAI  calc.Completer
}

// GetEngine resolves llmName, falling back to Default when it is empty.
func (e *Engines) GetEngine(llmName string) (calc.Completer, error) {
	name := strings.ToLower(strings.TrimSpace(llmName))
	if name == "" {
		name = strings.ToLower(e.Default)
	}
	var c calc.Completer
	switch name {
	case NameGemini:
		c = e.Gemini
	case "gpt", NameOpenAI:
		c = e.OpenAI
	default:
		return nil, fmt.Errorf("%w %q; use one of %s", ErrUnknownEngine, llmName, strings.Join(e.Names(), ", "))
	}
	if c == nil {
		return nil, fmt.Errorf("%w %q: engine is not configured", ErrUnknownEngine, name)
	}
	return c, nil
}

// Names lists the configured engines.
func (e *Engines) Names() []string {
	var out []string
	if e.Gemini != nil {
		out = append(out, NameGemini)
	}
	if e.OpenAI != nil {
		out = append(out, NameOpenAI)
	}
	sort.Strings(out)
	return out
}
