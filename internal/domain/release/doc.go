// Package release holds the value types of a plugin release: the plugin
// metadata read from the declaration header, the exclusion rules applied to
// the staged tree and the archive produced at the end of a packaging run.
package release
