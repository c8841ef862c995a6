package agent

import (
	"fmt"
	"strings"

	"github.com/rahul/switchboard/internal/engine"
)

// Kind names a worker a plan step can be routed to.
type Kind string

const (
	KindMath      Kind = "math"
	KindString    Kind = "string"
	KindWebSearch Kind = "web_search"
	KindWeather   Kind = "weather"
	KindCode      Kind = "code"
	KindWriter    Kind = "writer"
	KindEditor    Kind = "editor"
)

// Kinds lists every worker kind in the order they are shown to planners.
func Kinds() []Kind {
	return []Kind{KindMath, KindString, KindWebSearch, KindWeather, KindCode, KindWriter, KindEditor}
}

// ParseKind maps a worker name from a plan to a Kind. Matching ignores case and
// surrounding space, and accepts "-" in place of "_".
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_"))
	switch k {
	case KindMath, KindString, KindWebSearch, KindWeather, KindCode, KindWriter, KindEditor:
		return k, nil
	}
	return "", engine.UnknownWorkerError(name)
}

// Summary is the one-line description planners see for the kind.
func (k Kind) Summary() string {
	switch k {
	case KindMath:
		return "arithmetic, powers, factorials and multi-step calculations"
	case KindString:
		return "counting words or letters and changing text case"
	case KindWebSearch:
		return "searching the web and reading pages or PDFs"
	case KindWeather:
		return "current weather for a location"
	case KindCode:
		return "writing and running small Starlark (Python-like) programs, workspace files"
	case KindWriter:
		return "writing structured markdown content from research"
	case KindEditor:
		return "reviewing and improving written content"
	default:
		return fmt.Sprintf("unknown worker %q", string(k))
	}
}

// describeKinds renders the "- kind: summary" list used in planner prompts.
func describeKinds(kinds []Kind) string {
	lines := make([]string, 0, len(kinds))
	for _, k := range kinds {
		lines = append(lines, fmt.Sprintf("- %s: %s", k, k.Summary()))
	}
	return strings.Join(lines, "\n")
}
