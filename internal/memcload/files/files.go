package files

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mattn/go-zglob"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
)

// Enumerate returns the files matching pattern in lexical order. Files whose name starts with a dot have already
// been loaded and are never returned. A pattern matching nothing is not an error.
func Enumerate(pattern string) ([]string, error) {
	expanded, err := homedir.Expand(pattern)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	matches, err := zglob.Glob(expanded)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "expanding pattern %s", pattern)
	}

	paths := make([]string, 0, len(matches))
	for _, path := range matches {
		if IsLoaded(path) {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}

// IsLoaded reports whether path carries the completion marker.
func IsLoaded(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// DotRename marks path as loaded by renaming it to a dot-prefixed name in the same directory, returning the new
// path.
func DotRename(path string) (string, error) {
	dir, name := filepath.Split(path)
	target := filepath.Join(dir, "."+name)
	if err := os.Rename(path, target); err != nil {
		return "", errors.WithStack(err)
	}
	return target, nil
}
