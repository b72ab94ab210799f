// Package packager builds the distributable zip of a WordPress plugin.
//
// A run discovers the plugin version from the declaration header, recreates
// the build root, stages a filtered copy of the sources, installs production
// Composer dependencies into the staged copy, removes the dependency
// manifests, archives the staged tree under "<slug>/" and removes the staging
// directory. Every step runs once, in order, against the filesystem state left
// by the previous one; the first fatal error stops the run.
//
// Two runs against the same build root at the same time are not supported.
package packager
