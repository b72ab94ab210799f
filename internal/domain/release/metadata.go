package release

import (
	"strings"

	"github.com/blang/semver"
)

const (
	// DefaultVersion is used when no declaration file carries a Version header.
	DefaultVersion = "v1.0.0"

	// versionPrefix is prepended to discovered versions that lack it.
	versionPrefix = "v"
)

// PluginMetadata identifies the plugin being packaged.
// It is computed once per run and never modified afterwards.
type PluginMetadata struct {
	// Slug is the filesystem and URL safe identifier, e.g. "unit-testing".
	Slug string
	// DisplayName is printed in the build banner.
	DisplayName string
	// Version always carries the leading "v".
	Version string
}

// NormalizeVersion prepends "v" unless raw already starts with it.
func NormalizeVersion(raw string) string {
	if strings.HasPrefix(raw, versionPrefix) {
		return raw
	}

	return versionPrefix + raw
}

// IsSemantic reports whether a normalized version is a valid semantic version.
func IsSemantic(version string) bool {
	_, err := semver.Parse(strings.TrimPrefix(version, versionPrefix))

	return err == nil
}

// ArchiveName returns the file name of the release archive, "<slug>-<version>.zip".
func (m PluginMetadata) ArchiveName() string {
	return m.Slug + "-" + m.Version + ".zip"
}
