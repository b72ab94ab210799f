// Package version exposes build metadata of the wp-release binary itself.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags. This is unrelated to the plugin version discovered while packaging.
package version
