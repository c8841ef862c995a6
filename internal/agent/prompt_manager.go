package agent

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// PromptManager loads system prompts from a directory, falling back to the built-in
// prompts for anything missing. An empty Directory uses only the built-ins.
type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

// persona files are shared by every text worker, in this order; other non-worker .md
// files follow alphabetically.
var personaOrder = map[string]int{
	"identity.md": 1,
	"soul.md":     2,
	"user.md":     3,
}

// GetPersona joins the persona files of the directory. It returns "" when there are none.
func (pm *PromptManager) GetPersona() (string, error) {
	if pm == nil || pm.Directory == "" {
		return "", nil
	}
	files, err := os.ReadDir(pm.Directory)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read prompts directory: %v", err)
	}

	sort.Slice(files, func(i, j int) bool {
		oi, okI := personaOrder[files[i].Name()]
		oj, okJ := personaOrder[files[j].Name()]
		if okI && okJ {
			return oi < oj
		}
		if okI {
			return true
		}
		if okJ {
			return false
		}
		return files[i].Name() < files[j].Name()
	})

	var contents []string
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".md") || reservedPrompt(f.Name()) {
			continue
		}
		path := filepath.Join(pm.Directory, f.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("failed to read prompt file", "path", path, "error", err)
			continue
		}
		contents = append(contents, strings.TrimSpace(string(data)))
	}
	return strings.Join(contents, "\n\n---\n\n"), nil
}

// reservedPrompt reports whether a file overrides a built-in prompt rather than
// being part of the persona.
func reservedPrompt(name string) bool {
	base := strings.TrimSuffix(name, ".md")
	if base == "planner" || base == "summarizer" {
		return true
	}
	_, err := ParseKind(base)
	return err == nil
}

// GetWorkerPrompt returns the system prompt for a worker kind. Chain prompts have the
// capability listing substituted for {{tools}}.
func (pm *PromptManager) GetWorkerPrompt(kind Kind, toolList string) (string, error) {
	prompt, err := pm.override(string(kind))
	if err != nil {
		return "", err
	}
	if prompt == "" {
		var ok bool
		if prompt, ok = defaultChainPrompts[kind]; !ok {
			if prompt, ok = defaultTextPrompts[kind]; !ok {
				return "", fmt.Errorf("no prompt for worker %q", kind)
			}
		}
	}
	return strings.ReplaceAll(prompt, toolsMarker, toolList), nil
}

// GetPlannerPrompt returns planner.md or the built-in planner prompt.
func (pm *PromptManager) GetPlannerPrompt() (string, error) {
	prompt, err := pm.override("planner")
	if err != nil {
		return "", err
	}
	if prompt == "" {
		prompt = defaultPlannerPrompt
	}
	return prompt, nil
}

func (pm *PromptManager) override(name string) (string, error) {
	if pm == nil || pm.Directory == "" {
		return "", nil
	}
	path := filepath.Join(pm.Directory, name+".md")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s prompt: %v", name, err)
	}
	return string(data), nil
}
