package packager

import (
	"archive/zip"
	"context"
	"crypto/sha512"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestArchive verifies entry naming, contents and the reported artifact.
func TestArchive(t *testing.T) {
	t.Parallel()

	buildRoot := t.TempDir()
	writeTree(t, buildRoot, map[string]string{
		"demo/demo.php":                demoHeader,
		"demo/includes/class-demo.php": "<?php class Demo {}",
		"demo/vendor/autoload.php":     "<?php",
	})

	built, err := Archive(context.Background(), buildRoot, "demo", "v2.3.1")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(buildRoot, "demo-v2.3.1.zip"), built.Path)

	info, err := os.Stat(built.Path)
	require.NoError(t, err)
	require.Equal(t, info.Size(), built.SizeBytes)

	contents, err := os.ReadFile(built.Path)
	require.NoError(t, err)

	sum := sha512.Sum512(contents)
	require.Equal(t, hex.EncodeToString(sum[:]), built.Checksum)

	require.Equal(t, []string{
		"demo/",
		"demo/demo.php",
		"demo/includes/",
		"demo/includes/class-demo.php",
		"demo/vendor/",
		"demo/vendor/autoload.php",
	}, zipEntries(t, built.Path))

	reader, err := zip.OpenReader(built.Path)
	require.NoError(t, err)

	defer func() {
		_ = reader.Close()
	}()

	for _, f := range reader.File {
		require.False(t, strings.HasPrefix(f.Name, "/"), f.Name)
		require.NotContains(t, f.Name, `\`)
		require.NotContains(t, f.Name, "..")

		if f.FileInfo().IsDir() {
			continue
		}

		require.Equal(t, zip.Deflate, f.Method)
	}

	f, err := reader.Open("demo/includes/class-demo.php")
	require.NoError(t, err)

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.Equal(t, "<?php class Demo {}", string(data))
}

// TestArchive_LeavesOnlyTheArchive verifies no temporary files survive archival.
func TestArchive_LeavesOnlyTheArchive(t *testing.T) {
	t.Parallel()

	buildRoot := t.TempDir()
	writeTree(t, buildRoot, map[string]string{"demo/a.php": "<?php"})

	_, err := Archive(context.Background(), buildRoot, "demo", "v1.0.0")
	require.NoError(t, err)

	// Archiving again replaces the existing file in place.
	writeTree(t, buildRoot, map[string]string{"demo/b.php": "<?php"})

	_, err = Archive(context.Background(), buildRoot, "demo", "v1.0.0")
	require.NoError(t, err)

	require.Equal(t, []string{"demo", "demo-v1.0.0.zip", "demo/a.php", "demo/b.php"}, listTree(t, buildRoot))
	require.Equal(t, []string{"demo/", "demo/a.php", "demo/b.php"}, zipEntries(t, filepath.Join(buildRoot, "demo-v1.0.0.zip")))
}

// TestArchive_PreservesModes verifies file permissions are recorded in the entries.
func TestArchive_PreservesModes(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("POSIX permissions")
	}

	buildRoot := t.TempDir()
	writeTree(t, buildRoot, map[string]string{"demo/tool.php": "<?php"})
	require.NoError(t, os.Chmod(filepath.Join(buildRoot, "demo", "tool.php"), 0o755))

	built, err := Archive(context.Background(), buildRoot, "demo", "v1.0.0")
	require.NoError(t, err)

	reader, err := zip.OpenReader(built.Path)
	require.NoError(t, err)

	defer func() {
		_ = reader.Close()
	}()

	for _, f := range reader.File {
		if f.Name == "demo/tool.php" {
			require.Equal(t, os.FileMode(0o755), f.Mode().Perm())
			return
		}
	}

	t.Fatal("demo/tool.php not archived")
}

// TestArchive_MissingStaging verifies a missing staging directory reports ErrArchival and writes nothing.
func TestArchive_MissingStaging(t *testing.T) {
	t.Parallel()

	buildRoot := t.TempDir()

	_, err := Archive(context.Background(), buildRoot, "demo", "v1.0.0")
	require.ErrorIs(t, err, ErrArchival)
	require.Empty(t, listTree(t, buildRoot))
}

// TestArchive_Cancelled verifies a cancelled archival leaves no partial artifact.
func TestArchive_Cancelled(t *testing.T) {
	t.Parallel()

	buildRoot := t.TempDir()
	writeTree(t, buildRoot, map[string]string{"demo/a.php": "<?php"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Archive(ctx, buildRoot, "demo", "v1.0.0")
	require.ErrorIs(t, err, ErrArchival)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []string{"demo", "demo/a.php"}, listTree(t, buildRoot))
}
