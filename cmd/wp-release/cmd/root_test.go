package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/wp-release/internal/config"
)

// execute runs the CLI with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	root := newRootCommand(new(flags))
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.Execute()

	return out.String(), err
}

// TestApplyOverrides verifies only flags set on the command line replace config values.
func TestApplyOverrides(t *testing.T) {
	f := new(flags)
	root := newRootCommand(f)
	require.NoError(t, root.ParseFlags([]string{
		"--slug", "demo",
		"--build-dir", "dist",
		"--exclude", "*.map",
		"--exclude", "docs/",
		"--skip-install",
		"--publish-bucket", "releases",
	}))

	cfg := config.Default()
	cfg.Name = "From File"
	cfg.Installer.Command = "php composer.phar"

	applyOverrides(root, f, cfg)

	require.Equal(t, "demo", cfg.Slug)
	require.Equal(t, "dist", cfg.BuildDir)
	require.Equal(t, "From File", cfg.Name)
	require.Equal(t, "php composer.phar", cfg.Installer.Command)
	require.True(t, cfg.Installer.Skip)
	require.Equal(t, "releases", cfg.Publish.Bucket)
	require.Equal(t, []string{"*.map", "docs/"}, []string(cfg.Excludes[len(cfg.Excludes)-2:]))
}

// TestBuild runs a JSON build of a plugin without Composer dependencies.
func TestBuild(t *testing.T) {
	t.Chdir(t.TempDir())

	require.NoError(t, os.WriteFile("demo.php", []byte("<?php\n/*\n * Plugin Name: Demo\n * Version: 2.3.1\n */\n"), 0o644))
	require.NoError(t, os.WriteFile("a.php", []byte("<?php"), 0o644))

	out, err := execute(t, "--slug", "demo", "--output", "json", "--log-level", "error")
	require.NoError(t, err)

	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Equal(t, "v2.3.1", report["version"])
	require.Equal(t, filepath.Join("build", "demo-v2.3.1.zip"), report["path"])
	require.FileExists(t, filepath.Join("build", "demo-v2.3.1.zip"))
}

// TestBuild_Failures verifies setup errors are returned before anything is built.
func TestBuild_Failures(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := execute(t, "--output", "yaml")
	require.ErrorIs(t, err, errUnknownOutput)

	_, err = execute(t, "--config", "missing.yaml")
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = execute(t, "--log-level", "loud")
	require.ErrorContains(t, err, "unknown log level")

	_, err = execute(t, "--slug", "Bad Slug", "--log-level", "error")

	var validationErr *config.ValidationError

	require.ErrorAs(t, err, &validationErr)
	require.NoDirExists(t, "build")
}

// TestInit verifies the default configuration is written once.
func TestInit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "my-plugin")
	require.NoError(t, os.Mkdir(dir, 0o755))
	t.Chdir(dir)

	_, err := execute(t, "init", "--log-level", "error")
	require.NoError(t, err)

	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, "my-plugin", cfg.Slug)

	_, err = execute(t, "init")
	require.ErrorIs(t, err, errConfigExists)

	_, err = execute(t, "init", "--force", "--log-level", "error")
	require.NoError(t, err)
}

// TestVersionCommand verifies the version subcommand is attached.
func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, "wp-release")
}
