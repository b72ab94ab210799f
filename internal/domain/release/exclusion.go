package release

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrBadPattern is returned for exclusion patterns path.Match cannot parse.
var ErrBadPattern = errors.New("invalid exclusion pattern")

// ExclusionList is an ordered set of rsync-style exclusion patterns.
//
// A pattern without a slash matches the base name at any depth. A pattern with
// a slash matches the tail of the relative path, or the whole path when it
// starts with "/". A trailing slash restricts the pattern to directories.
type ExclusionList []string

// DefaultExclusions returns the paths never shipped in a WordPress plugin release.
func DefaultExclusions() ExclusionList {
	return ExclusionList{
		".git",
		".github",
		".gitignore",
		".phpcs.xml.dist",
		".phpunit.result.cache",
		"node_modules",
		"tests",
		"bin",
		"build",
		"vendor",
		"composer.json",
		"composer.lock",
		"phpunit.xml.dist",
		"phpunit.xml",
		"*.sh",
		"CLAUDE.md",
		"TESTING.md",
		"RELEASE.md",
		".claude",
		".kiro",
		".tinkersan",
		".playwright-mcp",
		"scripts",
		".agent",
	}
}

// Validate checks that every pattern is well formed.
func (l ExclusionList) Validate() error {
	for _, pattern := range l {
		trimmed := strings.TrimSuffix(strings.TrimPrefix(pattern, "/"), "/")
		if trimmed == "" {
			return fmt.Errorf("%w: %q is empty", ErrBadPattern, pattern)
		}

		if _, err := path.Match(trimmed, ""); err != nil {
			return fmt.Errorf("%w: %q: %w", ErrBadPattern, pattern, err)
		}
	}

	return nil
}

// Matches reports whether the entry itself matches a pattern, ignoring its ancestors.
// relPath is slash separated and relative to the source root.
func (l ExclusionList) Matches(relPath string, isDir bool) bool {
	relPath = strings.Trim(relPath, "/")
	if relPath == "" || relPath == "." {
		return false
	}

	for _, pattern := range l {
		if matchPattern(pattern, relPath, isDir) {
			return true
		}
	}

	return false
}

func matchPattern(pattern, relPath string, isDir bool) bool {
	dirOnly := strings.HasSuffix(pattern, "/")
	if dirOnly {
		if !isDir {
			return false
		}

		pattern = strings.TrimSuffix(pattern, "/")
	}

	anchored := strings.HasPrefix(pattern, "/")
	pattern = strings.TrimPrefix(pattern, "/")

	switch {
	case anchored:
		return match(pattern, relPath)
	case !strings.Contains(pattern, "/"):
		return match(pattern, path.Base(relPath))
	default:
		// Unanchored patterns with a slash may match any tail starting at a component boundary.
		for tail := relPath; ; {
			if match(pattern, tail) {
				return true
			}

			idx := strings.IndexByte(tail, '/')
			if idx < 0 {
				return false
			}

			tail = tail[idx+1:]
		}
	}
}

func match(pattern, name string) bool {
	ok, err := path.Match(pattern, name)

	return err == nil && ok
}
