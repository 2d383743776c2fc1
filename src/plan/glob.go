package plan

import (
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
)

// ExpandGlobs expands glob patterns (spec §4.6: "Expand source globs against
// the package root") relative to root, returning absolute paths in
// deterministic sorted order. A pattern containing "**" matches any number
// of directory levels; everything else is a plain filepath.Match pattern
// against the path relative to root.
func ExpandGlobs(root string, patterns []string) ([]string, error) {
	var all []string
	seen := map[string]bool{}
	for _, pattern := range patterns {
		matches, err := expandOne(root, pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				all = append(all, m)
			}
		}
	}
	sort.Strings(all)
	return all, nil
}

func expandOne(root, pattern string) ([]string, error) {
	if !strings.Contains(pattern, "**") {
		matches, err := filepath.Glob(filepath.Join(root, pattern))
		if err != nil {
			return nil, err
		}
		return matches, nil
	}

	idx := strings.Index(pattern, "**")
	prefix := strings.TrimSuffix(pattern[:idx], "/")
	suffix := strings.TrimPrefix(pattern[idx+2:], "/")
	walkRoot := filepath.Join(root, prefix)

	var matches []string
	err := godirwalk.Walk(walkRoot, &godirwalk.Options{
		Callback: func(p string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(walkRoot, p)
			if err != nil {
				return err
			}
			if suffix == "" {
				matches = append(matches, p)
				return nil
			}
			ok, err := path.Match(suffix, filepath.ToSlash(rel))
			if err != nil {
				return err
			}
			if ok || strings.HasSuffix(filepath.ToSlash(rel), "/"+suffix) {
				matches = append(matches, p)
			}
			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}
