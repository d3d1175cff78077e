package skills

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleManifest = `---
name: pdf-report
description: |
  Build PDF reports from structured data.
  Use when the user asks for a printable report.
license: MIT
compatibility: requires python3 on PATH
allowed-tools: [fs/readText, fs/writeText]
metadata:
  author: platform-team
  category: documents
---

# PDF Report

Run scripts/render.py with the collected data.
`

func writeSkillDir(t *testing.T, manifest string, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, SkillFilename), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestLoadSkill(t *testing.T) {
	dir := writeSkillDir(t, sampleManifest, map[string]string{
		"scripts/render.py": "print('render')",
		"reference.md":      "# Reference",
		"data/fonts.json":   "{}",
		".hidden":           "skip me",
	})

	def, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	fm := def.Frontmatter
	if fm.Name != "pdf-report" {
		t.Errorf("name = %q", fm.Name)
	}
	if !strings.Contains(fm.Description, "printable report") {
		t.Errorf("description = %q", fm.Description)
	}
	if fm.License != "MIT" {
		t.Errorf("license = %q", fm.License)
	}
	if len(fm.AllowedTools) != 2 || fm.AllowedTools[0] != "fs/readText" {
		t.Errorf("allowed tools = %v", fm.AllowedTools)
	}
	if fm.Metadata["author"] != "platform-team" || fm.Metadata["category"] != "documents" {
		t.Errorf("metadata = %v", fm.Metadata)
	}
	if !strings.Contains(def.Instructions, "scripts/render.py") {
		t.Errorf("instructions = %q", def.Instructions)
	}

	if len(def.Resources) != 3 {
		t.Fatalf("resources = %v", def.Resources)
	}
	// Sorted by relative path, manifest and dotfiles excluded.
	wantTypes := map[string]ResourceType{
		"data/fonts.json":   ResourceData,
		"reference.md":      ResourceInstructions,
		"scripts/render.py": ResourceCode,
	}
	for _, r := range def.Resources {
		if wantTypes[r.RelativePath] != r.Type {
			t.Errorf("resource %s type = %s", r.RelativePath, r.Type)
		}
	}
}

func TestLoadSkillExcludesVendoredDirs(t *testing.T) {
	dir := writeSkillDir(t, sampleManifest, map[string]string{
		"node_modules/pkg/index.js": "x",
		"scripts/run.sh":            "echo hi",
	})

	def, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(def.Resources) != 1 || def.Resources[0].RelativePath != "scripts/run.sh" {
		t.Errorf("resources = %v", def.Resources)
	}
}

func TestParseFrontmatterErrors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
	}{
		{"no opening delimiter", "name: x\n---\nbody"},
		{"no closing delimiter", "---\nname: x\nbody"},
		{"missing name", "---\ndescription: d\n---\nbody"},
		{"missing description", "---\nname: good-name\n---\nbody"},
		{"bad key line", "---\nname: good-name\ndescription: d\njust text\n---\n"},
		{"list item malformed", "---\nname: good-name\ndescription: d\nallowed-tools:\n  not a list\n---\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.manifest), ""); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestParseQuotedAndDashLists(t *testing.T) {
	manifest := "---\n" +
		"name: 'my-skill'\n" +
		"description: \"does things\"\n" +
		"allowed-tools:\n" +
		"  - fs/readText\n" +
		"  - \"http/fetchText\"\n" +
		"---\nbody\n"

	def, err := Parse([]byte(manifest), "")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if def.Frontmatter.Name != "my-skill" || def.Frontmatter.Description != "does things" {
		t.Errorf("frontmatter = %+v", def.Frontmatter)
	}
	if len(def.Frontmatter.AllowedTools) != 2 || def.Frontmatter.AllowedTools[1] != "http/fetchText" {
		t.Errorf("allowed tools = %v", def.Frontmatter.AllowedTools)
	}
}

func TestValidateFrontmatter(t *testing.T) {
	valid := func() Frontmatter {
		return Frontmatter{Name: "good-skill", Description: "fine"}
	}

	tests := []struct {
		name    string
		mutate  func(*Frontmatter)
		wantErr bool
	}{
		{"valid", func(*Frontmatter) {}, false},
		{"uppercase name", func(f *Frontmatter) { f.Name = "BadName" }, true},
		{"leading hyphen", func(f *Frontmatter) { f.Name = "-skill" }, true},
		{"trailing hyphen", func(f *Frontmatter) { f.Name = "skill-" }, true},
		{"double hyphen", func(f *Frontmatter) { f.Name = "a--b" }, true},
		{"too long name", func(f *Frontmatter) { f.Name = strings.Repeat("a", 65) }, true},
		{"reserved word", func(f *Frontmatter) { f.Name = "claude-helper" }, true},
		{"xml in description", func(f *Frontmatter) { f.Description = "use <tool> here" }, true},
		{"long description", func(f *Frontmatter) { f.Description = strings.Repeat("x", 1025) }, true},
		{"long compatibility", func(f *Frontmatter) { f.Compatibility = strings.Repeat("x", 501) }, true},
		{"spaces in name", func(f *Frontmatter) { f.Name = "my skill" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm := valid()
			tt.mutate(&fm)
			err := ValidateFrontmatter(&fm)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFrontmatter() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
