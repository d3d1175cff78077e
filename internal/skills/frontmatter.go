package skills

import (
	"fmt"
	"strings"
)

// parseFrontmatter parses the YAML subset used by SKILL.md headers:
// top-level "key: value" scalars, single or double quoted strings, block
// literals ("key: |"), inline flow lists ("[a, b]"), dash item lists, and
// one nested level of string pairs under "metadata:". Anything fancier is
// a parse error rather than a silent misread.
func parseFrontmatter(raw string) (Frontmatter, error) {
	var fm Frontmatter
	lines := strings.Split(raw, "\n")

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			return fm, fmt.Errorf("line %d: unexpected indentation outside a block", i+1)
		}

		key, rest, ok := splitKey(trimmed)
		if !ok {
			return fm, fmt.Errorf("line %d: expected \"key: value\", got %q", i+1, trimmed)
		}

		switch key {
		case "name":
			fm.Name = unquote(rest)
		case "description":
			if rest == "|" || rest == "|-" {
				block, next, err := readBlock(lines, i+1)
				if err != nil {
					return fm, err
				}
				fm.Description = block
				i = next - 1
			} else {
				fm.Description = unquote(rest)
			}
		case "license":
			fm.License = unquote(rest)
		case "compatibility":
			fm.Compatibility = unquote(rest)
		case "allowed-tools", "allowedTools":
			items, next, err := readList(lines, i, rest)
			if err != nil {
				return fm, err
			}
			fm.AllowedTools = items
			i = next - 1
		case "metadata":
			if rest != "" {
				return fm, fmt.Errorf("line %d: metadata must be a nested block", i+1)
			}
			pairs, next, err := readNested(lines, i+1)
			if err != nil {
				return fm, err
			}
			fm.Metadata = pairs
			i = next - 1
		default:
			// Unknown keys are tolerated so manifests can carry
			// annotations this loader does not interpret.
			if rest == "|" || rest == "|-" {
				_, next, err := readBlock(lines, i+1)
				if err != nil {
					return fm, err
				}
				i = next - 1
			}
		}
	}

	return fm, nil
}

func splitKey(line string) (key, rest string, ok bool) {
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// readBlock consumes an indented literal block starting at lines[start].
// Returns the joined text and the index of the first line after the block.
func readBlock(lines []string, start int) (string, int, error) {
	var block []string
	indent := -1
	i := start
	for ; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			block = append(block, "")
			continue
		}
		leading := len(line) - len(strings.TrimLeft(line, " \t"))
		if leading == 0 {
			break
		}
		if indent == -1 {
			indent = leading
		}
		if leading < indent {
			break
		}
		block = append(block, line[indent:])
	}
	if indent == -1 {
		return "", i, fmt.Errorf("line %d: empty block literal", start)
	}
	return strings.TrimRight(strings.Join(block, "\n"), "\n"), i, nil
}

// readList parses either an inline flow list on the key line or a dash
// item list on the following lines.
func readList(lines []string, keyLine int, rest string) ([]string, int, error) {
	if rest != "" {
		if !strings.HasPrefix(rest, "[") || !strings.HasSuffix(rest, "]") {
			return nil, 0, fmt.Errorf("line %d: expected a list, got %q", keyLine+1, rest)
		}
		inner := strings.TrimSpace(rest[1 : len(rest)-1])
		if inner == "" {
			return nil, keyLine + 1, nil
		}
		var items []string
		for _, part := range strings.Split(inner, ",") {
			if item := unquote(strings.TrimSpace(part)); item != "" {
				items = append(items, item)
			}
		}
		return items, keyLine + 1, nil
	}

	var items []string
	i := keyLine + 1
	for ; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		if len(lines[i]) > 0 && lines[i][0] != ' ' && lines[i][0] != '\t' {
			break
		}
		if !strings.HasPrefix(trimmed, "- ") && trimmed != "-" {
			return nil, 0, fmt.Errorf("line %d: expected list item, got %q", i+1, trimmed)
		}
		if item := unquote(strings.TrimSpace(strings.TrimPrefix(trimmed, "-"))); item != "" {
			items = append(items, item)
		}
	}
	return items, i, nil
}

// readNested parses one indented level of string pairs.
func readNested(lines []string, start int) (map[string]string, int, error) {
	pairs := make(map[string]string)
	i := start
	for ; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		if len(lines[i]) > 0 && lines[i][0] != ' ' && lines[i][0] != '\t' {
			break
		}
		key, rest, ok := splitKey(trimmed)
		if !ok {
			return nil, 0, fmt.Errorf("line %d: expected nested \"key: value\", got %q", i+1, trimmed)
		}
		pairs[key] = unquote(rest)
	}
	return pairs, i, nil
}

// splitManifest separates frontmatter from the markdown body.
func splitManifest(data []byte) (frontmatter, body string, err error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(text, "\n")

	if len(lines) == 0 || strings.TrimSpace(lines[0]) != FrontmatterDelimiter {
		return "", "", fmt.Errorf("missing opening frontmatter delimiter")
	}

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == FrontmatterDelimiter {
			return strings.Join(lines[1:i], "\n"), strings.Join(lines[i+1:], "\n"), nil
		}
	}
	return "", "", fmt.Errorf("missing closing frontmatter delimiter")
}
