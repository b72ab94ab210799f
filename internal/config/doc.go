// Package config defines the release build settings and provides helpers to
// load, validate and save them in YAML format.
//
// Settings missing from the file keep their defaults: slug "unit-testing",
// build root "build", Composer as installer and the standard WordPress plugin
// exclusion list extended with the configuration file itself.
package config
