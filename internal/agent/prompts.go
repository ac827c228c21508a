package agent

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
)

//go:embed prompts/*.md
var defaultPrompts embed.FS

// Prompt kinds
const (
	PromptAct     = "act"
	PromptObserve = "observe"
	PromptExtract = "extract"
)

// PromptManager assembles system prompts. Files in Directory override the
// embedded defaults of the same name.
type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

// GetPrompt returns identity.md, <kind>.md and the optional user.md joined
// in that order. The kind file must exist.
func (pm *PromptManager) GetPrompt(kind string) (string, error) {
	parts := []struct {
		name     string
		required bool
	}{
		{"identity.md", false},
		{kind + ".md", true},
		{"user.md", false},
	}

	var contents []string
	for _, p := range parts {
		data, err := pm.read(p.name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && !p.required {
				continue
			}
			return "", fmt.Errorf("failed to load %s prompt: %w", kind, err)
		}
		if s := strings.TrimSpace(data); s != "" {
			contents = append(contents, s)
		}
	}

	return strings.Join(contents, "\n\n---\n\n"), nil
}

func (pm *PromptManager) read(name string) (string, error) {
	if pm.Directory != "" {
		path := filepath.Join(pm.Directory, name)
		data, err := os.ReadFile(path)
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("Warning: Failed to read prompt file %s: %v", path, err)
		}
	}
	data, err := defaultPrompts.ReadFile("prompts/" + name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
