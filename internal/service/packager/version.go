package packager

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/oshokin/wp-release/internal/domain/release"
)

var (
	// pluginNamePattern marks a file as the plugin declaration file.
	pluginNamePattern = regexp.MustCompile(`(?i)Plugin Name:[ \t]*(.*)`)
	// versionPattern extracts the version from the declaration header.
	versionPattern = regexp.MustCompile(`Version:[ \t]*(.+)`)
)

// Header is what the plugin declaration file says about the plugin.
type Header struct {
	// File is the declaration file the values were read from.
	File string
	// Name is the Plugin Name header value.
	Name string
	// Version is the normalized Version header value.
	Version string
}

// ReadHeader scans the top-level files of sourceRoot matching glob, in lexical
// order, for the first one declaring both a plugin name and a version.
// When none does it returns the default version and ErrVersionNotFound.
func ReadHeader(sourceRoot, glob string) (Header, error) {
	candidates, err := filepath.Glob(filepath.Join(sourceRoot, glob))
	if err != nil {
		return Header{}, fmt.Errorf("list declaration candidates: %w", err)
	}

	for _, file := range candidates {
		info, err := os.Stat(file)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		contents, err := os.ReadFile(filepath.Clean(file))
		if err != nil {
			return Header{}, fmt.Errorf("read %s: %w", file, err)
		}

		nameMatch := pluginNamePattern.FindSubmatch(contents)
		if nameMatch == nil {
			continue
		}

		versionMatch := versionPattern.FindSubmatch(contents)
		if versionMatch == nil {
			continue
		}

		// The version becomes part of the archive file name.
		version := strings.TrimSpace(string(versionMatch[1]))
		if version == "" || strings.ContainsAny(version, `/\`) {
			continue
		}

		return Header{
			File:    file,
			Name:    strings.TrimSpace(string(nameMatch[1])),
			Version: release.NormalizeVersion(version),
		}, nil
	}

	return Header{Version: release.DefaultVersion}, ErrVersionNotFound
}
