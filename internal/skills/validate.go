package skills

import (
	"fmt"
	"strings"
)

const (
	maxNameLength         = 64
	maxDescriptionLength  = 1024
	maxCompatibilityChars = 500
)

// reservedNameWords may not appear anywhere in a skill name.
var reservedNameWords = []string{"anthropic", "claude"}

// ValidateFrontmatter enforces the manifest rules: a kebab-case name, a
// bounded description, and no markup that could confuse downstream
// prompt assembly.
func ValidateFrontmatter(fm *Frontmatter) error {
	if err := validateName(fm.Name); err != nil {
		return err
	}

	description := strings.TrimSpace(fm.Description)
	if description == "" {
		return fmt.Errorf("description is required")
	}
	if len(description) > maxDescriptionLength {
		return fmt.Errorf("description exceeds %d characters (got %d)", maxDescriptionLength, len(description))
	}
	if containsXMLTag(description) {
		return fmt.Errorf("description must not contain XML tags")
	}

	if len(fm.Compatibility) > maxCompatibilityChars {
		return fmt.Errorf("compatibility exceeds %d characters (got %d)", maxCompatibilityChars, len(fm.Compatibility))
	}

	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("name exceeds %d characters (got %d)", maxNameLength, len(name))
	}
	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-') {
			return fmt.Errorf("name must be lowercase alphanumeric with hyphens: got %q", name)
		}
	}
	if strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-") {
		return fmt.Errorf("name must not start or end with a hyphen: got %q", name)
	}
	if strings.Contains(name, "--") {
		return fmt.Errorf("name must not contain consecutive hyphens: got %q", name)
	}
	for _, word := range reservedNameWords {
		if strings.Contains(name, word) {
			return fmt.Errorf("name contains reserved word %q", word)
		}
	}
	if containsXMLTag(name) {
		return fmt.Errorf("name must not contain XML tags")
	}
	return nil
}

// containsXMLTag detects "<tag>"-shaped sequences.
func containsXMLTag(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != '<' {
			continue
		}
		j := i + 1
		if j < len(s) && s[j] == '/' {
			j++
		}
		start := j
		for j < len(s) && (isAlnum(s[j]) || s[j] == '-' || s[j] == '_') {
			j++
		}
		if j > start && j < len(s) && s[j] == '>' {
			return true
		}
	}
	return false
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
