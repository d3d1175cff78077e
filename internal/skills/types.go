// Package skills loads instruction-based tools from SKILL.md manifests:
// a YAML frontmatter header followed by markdown instructions, plus any
// resource files living next to the manifest.
package skills

import "path/filepath"

const (
	// SkillFilename is the expected manifest filename.
	SkillFilename = "SKILL.md"

	// FrontmatterDelimiter marks the beginning and end of frontmatter.
	FrontmatterDelimiter = "---"
)

// Frontmatter is the parsed YAML header of a SKILL.md file.
type Frontmatter struct {
	// Name is the unique skill identifier (lowercase, hyphens allowed).
	Name string

	// Description explains what the skill does and when to use it.
	Description string

	// License is an optional license identifier.
	License string

	// Compatibility states runtime requirements in prose.
	Compatibility string

	// AllowedTools restricts which tools the skill may invoke at
	// execution time. Empty means unrestricted.
	AllowedTools []string

	// Metadata holds free-form string pairs from a nested metadata block.
	Metadata map[string]string
}

// ResourceType classifies files bundled with a skill.
type ResourceType string

const (
	ResourceInstructions ResourceType = "instructions" // .md
	ResourceCode         ResourceType = "code"         // .py .sh .js .ts
	ResourceData         ResourceType = "data"         // everything else
)

// Resource is one file discovered under a skill directory.
type Resource struct {
	// RelativePath is the path relative to the skill directory,
	// always with forward slashes.
	RelativePath string `json:"relativePath"`

	// AbsolutePath is the resolved filesystem path.
	AbsolutePath string `json:"absolutePath"`

	// Extension includes the leading dot, lowercased.
	Extension string `json:"extension"`

	// Type is derived from the extension.
	Type ResourceType `json:"type"`
}

// Definition is a fully loaded skill: frontmatter, instruction body, and
// the resource files found beside the manifest.
type Definition struct {
	Frontmatter Frontmatter

	// Instructions is the markdown body after the frontmatter.
	Instructions string

	// Resources lists bundled files, sorted by relative path.
	Resources []Resource

	// DirPath is the skill directory.
	DirPath string

	// ManifestPath is the SKILL.md path.
	ManifestPath string
}

// ResourcesByType returns the resources with the given type.
func (d *Definition) ResourcesByType(resourceType ResourceType) []Resource {
	var out []Resource
	for _, r := range d.Resources {
		if r.Type == resourceType {
			out = append(out, r)
		}
	}
	return out
}

// Resource looks up a resource by its relative path.
func (d *Definition) Resource(relativePath string) (Resource, bool) {
	normalized := filepath.ToSlash(relativePath)
	for _, r := range d.Resources {
		if r.RelativePath == normalized {
			return r, true
		}
	}
	return Resource{}, false
}

func typeForExtension(ext string) ResourceType {
	switch ext {
	case ".md":
		return ResourceInstructions
	case ".py", ".sh", ".js", ".ts":
		return ResourceCode
	default:
		return ResourceData
	}
}
