package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/wp-release/internal/domain/release"
)

// TestValidate checks required fields and format validations.
func TestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Validate(Default()))

	// Missing slug.
	cfg := Default()
	cfg.Slug = ""

	err := Validate(cfg)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, err.Error(), "slug is required")

	// Bad slug.
	cfg = Default()
	cfg.Slug = "Unit Testing"
	require.ErrorContains(t, Validate(cfg), `slug "Unit Testing"`)

	// Manifest with a path separator.
	cfg = Default()
	cfg.Manifests = []string{"../composer.json"}
	require.ErrorContains(t, Validate(cfg), "manifests[0]")

	// Bad endpoint.
	cfg = Default()
	cfg.Publish.Endpoint = "not a url"
	require.ErrorContains(t, Validate(cfg), "publish.endpoint")

	// Bad exclusion pattern.
	cfg = Default()
	cfg.Excludes = release.ExclusionList{"[z-"}
	require.ErrorIs(t, Validate(cfg), release.ErrBadPattern)

	// Blank optional fields are defaulted.
	cfg = Default()
	cfg.SourceDir = ""
	cfg.HeaderGlob = ""
	cfg.Installer.Command = ""
	require.NoError(t, Validate(cfg))
	require.Equal(t, ".", cfg.SourceDir)
	require.Equal(t, DefaultHeaderGlob, cfg.HeaderGlob)
	require.Equal(t, DefaultInstallerCommand, cfg.Installer.Command)

	require.Error(t, Validate(nil))
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "wp-release.yaml")

	cfg := Default()
	cfg.Slug = "demo"
	cfg.Name = "Demo"
	cfg.Excludes = release.ExclusionList{".git", "*.sh"}
	cfg.Publish = Publish{Bucket: "releases", Prefix: "plugins/demo", Endpoint: "http://127.0.0.1:9000", PathStyle: true}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
	require.True(t, loaded.Publish.Enabled())

	_, err = os.Stat(path)
	require.NoError(t, err)
}

// TestLoad_PartialFileKeepsDefaults verifies that unspecified keys keep default values.
func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("slug: demo\nbuild_dir: dist\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "demo", cfg.Slug)
	require.Equal(t, "dist", cfg.BuildDir)
	require.Equal(t, Default().Excludes, cfg.Excludes)
	require.Contains(t, cfg.Excludes, "/"+DefaultConfigFilename)
	require.Equal(t, DefaultInstallerCommand, cfg.Installer.Command)
	require.False(t, cfg.Publish.Enabled())
}

// TestLoad_MissingFiles distinguishes the implicit default file from an explicit path.
func TestLoad_MissingFiles(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	_, err = Load("missing.yaml")
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestLoad_Malformed reports YAML errors.
func TestLoad_Malformed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("slug: [\n"), 0o600))

	_, err := Load(path)
	require.ErrorContains(t, err, "unmarshal settings")
}

// TestSlugFromDirectory derives slugs from directory names.
func TestSlugFromDirectory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	for _, tc := range []struct {
		dir    string
		want   string
		wantOK bool
	}{
		{dir: "unit-testing", want: "unit-testing", wantOK: true},
		{dir: "My_Plugin", want: "my_plugin", wantOK: true},
		{dir: "my plugin", want: "my plugin", wantOK: false},
	} {
		got, ok := SlugFromDirectory(filepath.Join(root, tc.dir))
		require.Equal(t, tc.want, got)
		require.Equal(t, tc.wantOK, ok, tc.dir)
	}
}
