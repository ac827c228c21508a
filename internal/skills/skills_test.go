package skills

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSkill(t *testing.T, root, dir, content string) {
	t.Helper()
	path := filepath.Join(Dir(root), dir)
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatal(err)
	}
	if content == "" {
		return
	}
	if err := os.WriteFile(filepath.Join(path, "SKILL.md"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestList(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "stagehand", "---\nname: stagehand-flows\ndescription: Write browser flows in natural language\n---\n# Body\n")
	writeSkill(t, root, "anon", "---\ndescription: \"Quoted: description\"\n---\n")
	writeSkill(t, root, "bare", "# No frontmatter\n")
	writeSkill(t, root, "empty-dir", "")
	writeSkill(t, root, "windows", "---\r\nname: crlf\r\n---\r\n")

	got, err := List(root)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 skills, got %+v", got)
	}

	if got[0].Dir != "anon" || got[0].Name != "anon" || got[0].Description != "Quoted: description" {
		t.Errorf("unexpected skill %+v", got[0])
	}
	if got[1].Name != "stagehand-flows" || got[1].Description != "Write browser flows in natural language" {
		t.Errorf("unexpected skill %+v", got[1])
	}
	if got[2].Name != "crlf" || got[2].Description != noDescription {
		t.Errorf("unexpected skill %+v", got[2])
	}
}

func TestList_MissingDir(t *testing.T) {
	if _, err := List(t.TempDir()); err == nil {
		t.Error("expected error for missing skills directory")
	}
}
