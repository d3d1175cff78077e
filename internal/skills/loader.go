package skills

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// excludedDirs are never scanned for resources.
var excludedDirs = map[string]bool{
	"node_modules": true,
	"__pycache__":  true,
	".git":         true,
}

// Load reads and validates the skill rooted at dirPath. The directory
// must contain a SKILL.md manifest.
func Load(dirPath string) (*Definition, error) {
	manifestPath := filepath.Join(dirPath, SkillFilename)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data, dirPath)
}

// Parse builds a Definition from manifest content. Resources are scanned
// from dirPath when it exists on disk.
func Parse(data []byte, dirPath string) (*Definition, error) {
	rawFrontmatter, body, err := splitManifest(data)
	if err != nil {
		return nil, err
	}

	fm, err := parseFrontmatter(rawFrontmatter)
	if err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	if err := ValidateFrontmatter(&fm); err != nil {
		return nil, err
	}

	def := &Definition{
		Frontmatter:  fm,
		Instructions: strings.TrimSpace(body),
		DirPath:      dirPath,
		ManifestPath: filepath.Join(dirPath, SkillFilename),
	}

	if dirPath != "" {
		if info, statErr := os.Stat(dirPath); statErr == nil && info.IsDir() {
			resources, scanErr := scanResources(dirPath)
			if scanErr != nil {
				return nil, fmt.Errorf("scan resources: %w", scanErr)
			}
			def.Resources = resources
		}
	}

	return def, nil
}

// scanResources walks the skill directory collecting bundled files. The
// manifest itself, dotfiles, and vendored directories are skipped.
func scanResources(dirPath string) ([]Resource, error) {
	var resources []Resource

	err := filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != dirPath && (excludedDirs[name] || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || name == SkillFilename {
			return nil
		}

		rel, err := filepath.Rel(dirPath, path)
		if err != nil {
			return err
		}
		ext := strings.ToLower(filepath.Ext(name))
		resources = append(resources, Resource{
			RelativePath: filepath.ToSlash(rel),
			AbsolutePath: path,
			Extension:    ext,
			Type:         typeForExtension(ext),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(resources, func(i, j int) bool {
		return resources[i].RelativePath < resources[j].RelativePath
	})
	return resources, nil
}
