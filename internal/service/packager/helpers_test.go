package packager

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeTree creates files under root from a relative path to contents map.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for rel, contents := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(contents), 0o644))
	}
}

// listTree returns the slash-separated relative paths below root.
func listTree(t *testing.T, root string) []string {
	t.Helper()

	var paths []string

	err := filepath.Walk(root, func(p string, _ os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}

		paths = append(paths, filepath.ToSlash(rel))

		return nil
	})
	require.NoError(t, err)
	sort.Strings(paths)

	return paths
}

// zipEntries returns the entry names of the archive at path.
func zipEntries(t *testing.T, path string) []string {
	t.Helper()

	reader, err := zip.OpenReader(path)
	require.NoError(t, err)

	defer func() {
		_ = reader.Close()
	}()

	names := make([]string, 0, len(reader.File))
	for _, f := range reader.File {
		names = append(names, f.Name)
	}

	sort.Strings(names)

	return names
}

// fakeRunner stands in for the dependency manager.
type fakeRunner struct {
	mu     sync.Mutex
	calls  []Command
	output []byte
	err    error
}

func (f *fakeRunner) Run(_ context.Context, cmd Command) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.mu.Unlock()

	if f.err != nil {
		return f.output, f.err
	}

	// Behave like composer: produce an autoloader next to the manifest.
	vendor := filepath.Join(cmd.Dir, "vendor")
	if err := os.MkdirAll(vendor, 0o755); err != nil {
		return nil, err
	}

	return f.output, os.WriteFile(filepath.Join(vendor, "autoload.php"), []byte("<?php\n"), 0o644)
}

// fakePublisher records uploads.
type fakePublisher struct {
	keys     []string
	metadata map[string]string
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, key, filePath string, metadata map[string]string) (string, error) {
	if _, err := os.Stat(filePath); err != nil {
		return "", err
	}

	f.keys = append(f.keys, key)
	f.metadata = metadata

	if f.err != nil {
		return "", f.err
	}

	return "s3://releases/" + key, nil
}
