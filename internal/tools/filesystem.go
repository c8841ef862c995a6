package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Workspace gives the code worker sandboxed file access below Root.
type Workspace struct {
	Root string
}

func NewWorkspace(root string) *Workspace {
	absRoot, _ := filepath.Abs(root)
	return &Workspace{Root: absRoot}
}

// resolve maps a workspace-relative name to an absolute path, rejecting escapes.
func (w *Workspace) resolve(name string) (string, error) {
	target := filepath.Join(w.Root, name)
	rel, err := filepath.Rel(w.Root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("unsafe path attempt: %s", name)
	}
	return target, nil
}

func (w *Workspace) Read(name string) (string, error) {
	path, err := w.resolve(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(data), nil
}

func (w *Workspace) Write(name, content string) (string, error) {
	path, err := w.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return fmt.Sprintf("Successfully wrote to %s", name), nil
}

func (w *Workspace) List(name string) (string, error) {
	path, err := w.resolve(name)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", fmt.Errorf("failed to list directory: %w", err)
	}
	var b strings.Builder
	for _, entry := range entries {
		typeStr := "file"
		if entry.IsDir() {
			typeStr = "dir"
		}
		fmt.Fprintf(&b, "[%s] %s\n", typeStr, entry.Name())
	}
	if b.Len() == 0 {
		return "Directory is empty", nil
	}
	return b.String(), nil
}

// Capabilities exposes the workspace as chain operations.
func (w *Workspace) Capabilities() Set {
	return Set{
		{
			Name:        "read_file",
			Description: "Read a file from the workspace.",
			Params:      []string{"path"},
			Fn: func(ctx context.Context, args []any) (any, error) {
				if err := wantArgs(args, 1, 1); err != nil {
					return nil, err
				}
				name, err := stringArg(args, 0)
				if err != nil {
					return nil, err
				}
				return w.Read(name)
			},
		},
		{
			Name:        "write_file",
			Description: "Write text to a file in the workspace, creating directories as needed.",
			Params:      []string{"path", "content"},
			Fn: func(ctx context.Context, args []any) (any, error) {
				if err := wantArgs(args, 2, 2); err != nil {
					return nil, err
				}
				name, err := stringArg(args, 0)
				if err != nil {
					return nil, err
				}
				content, err := stringArg(args, 1)
				if err != nil {
					return nil, err
				}
				return w.Write(name, content)
			},
		},
		{
			Name:        "list_files",
			Description: "List a workspace directory. Use \".\" for the root.",
			Params:      []string{"dir"},
			Fn: func(ctx context.Context, args []any) (any, error) {
				if err := wantArgs(args, 0, 1); err != nil {
					return nil, err
				}
				dir := "."
				if len(args) == 1 {
					var err error
					if dir, err = stringArg(args, 0); err != nil {
						return nil, err
					}
				}
				return w.List(dir)
			},
		},
	}
}
