// Package file implements the local filesystem data source: a single input
// file, or a directory whose matching files form one logical corpus.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Expand resolves path into the ordered list of input files.
//
// A regular file expands to itself. A directory expands to all files inside
// it matching pattern (e.g. "*.json"), in lexicographic order, so a
// multi-file corpus streams deterministically. An empty directory is not an
// error; it yields an empty corpus.
func Expand(path, pattern string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	if pattern == "" {
		pattern = "*.json"
	}
	matches, err := filepath.Glob(filepath.Join(path, pattern))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", path, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// Open opens one input file for reading, honoring prior context cancellation.
func Open(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}
