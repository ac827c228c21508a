package skills

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const noDescription = "No description available"

// Skill is an entry under .cursor/skills.
type Skill struct {
	Name        string
	Description string
	// Dir is the skill directory name.
	Dir string
}

type frontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Dir returns the skills directory below root.
func Dir(root string) string {
	return filepath.Join(root, ".cursor", "skills")
}

// List reads every <root>/.cursor/skills/*/SKILL.md carrying YAML
// frontmatter. Unreadable skills are logged and skipped.
func List(root string) ([]Skill, error) {
	dir := Dir(root)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("error reading skills directory: %w", err)
	}

	var out []Skill
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name(), "SKILL.md"))
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.Printf("Warning: Could not read skill at %s: %v", entry.Name(), err)
			}
			continue
		}
		skill, ok, err := parse(data, entry.Name())
		if err != nil {
			log.Printf("Warning: Invalid frontmatter in skill %s: %v", entry.Name(), err)
			continue
		}
		if ok {
			out = append(out, skill)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dir < out[j].Dir })
	return out, nil
}

func parse(data []byte, dirName string) (Skill, bool, error) {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(data, []byte("---\n")) {
		return Skill{}, false, nil
	}
	rest := data[len("---\n"):]
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return Skill{}, false, nil
	}

	var fm frontmatter
	if err := yaml.Unmarshal(rest[:end], &fm); err != nil {
		return Skill{}, false, err
	}
	s := Skill{
		Name:        strings.TrimSpace(fm.Name),
		Description: strings.TrimSpace(fm.Description),
		Dir:         dirName,
	}
	if s.Name == "" {
		s.Name = dirName
	}
	if s.Description == "" {
		s.Description = noDescription
	}
	return s, true, nil
}
