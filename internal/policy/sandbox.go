package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/haasonsaas/toolhub/pkg/models"
)

// ResolveInSandbox resolves a raw path against the configured sandbox roots
// and returns the absolute, symlink-expanded path when it lies inside at
// least one root. Relative paths resolve against the first root.
//
// Any ".." segment in the raw input is flagged as traversal before
// resolution; a path that merely normalizes into a root is not enough.
func ResolveInSandbox(raw string, roots []string) (string, error) {
	clean := strings.TrimSpace(raw)
	if clean == "" {
		return "", models.NewToolError(models.ErrPathOutsideSandbox, "path is required", nil)
	}
	if len(roots) == 0 {
		return "", models.NewToolError(models.ErrPathOutsideSandbox, "no sandbox roots configured", nil)
	}
	for _, segment := range strings.Split(filepath.ToSlash(clean), "/") {
		if segment == ".." {
			return "", models.NewToolError(models.ErrPathOutsideSandbox,
				fmt.Sprintf("path %q contains a traversal segment", raw), nil)
		}
	}

	var target string
	if filepath.IsAbs(clean) {
		target = filepath.Clean(clean)
	} else {
		target = filepath.Join(roots[0], clean)
	}
	resolved, err := realPath(target)
	if err != nil {
		return "", models.NewToolError(models.ErrPathOutsideSandbox,
			fmt.Sprintf("resolve %q: %v", raw, err), nil)
	}

	for _, root := range roots {
		rootResolved, err := realPath(root)
		if err != nil {
			continue
		}
		if contains(rootResolved, resolved) {
			return resolved, nil
		}
	}
	return "", models.NewToolError(models.ErrPathOutsideSandbox,
		fmt.Sprintf("path %q escapes the sandbox", raw), nil)
}

// realPath expands symlinks in the target. When the target does not exist
// yet, its nearest existing ancestor is resolved instead and the remaining
// segments are re-appended.
func realPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	dir, base := filepath.Split(filepath.Clean(abs))
	var pending []string
	for {
		pending = append([]string{base}, pending...)
		dir = filepath.Clean(dir)
		resolved, err = filepath.EvalSymlinks(dir)
		if err == nil {
			return filepath.Join(append([]string{resolved}, pending...)...), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", err
		}
		dir, base = parent, filepath.Base(dir)
	}
}

func contains(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator)))
}
