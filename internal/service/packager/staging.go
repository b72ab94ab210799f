package packager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/oshokin/wp-release/internal/domain/release"
)

// DefaultDirMode is used for the build root and the staging directory.
const DefaultDirMode os.FileMode = 0o755

var errUnsafeBuildRoot = errors.New("build root must not contain the source root")

// PrepareOutputDirectories removes buildRoot recursively and recreates it with
// an empty staging directory named after slug, returning the staging path.
func PrepareOutputDirectories(buildRoot, slug string) (string, error) {
	stagingPath := filepath.Join(buildRoot, slug)

	if err := os.RemoveAll(buildRoot); err != nil {
		return "", fmt.Errorf("%w: remove %s: %w", ErrStagingDirectory, buildRoot, err)
	}

	if err := os.MkdirAll(buildRoot, DefaultDirMode); err != nil {
		return "", fmt.Errorf("%w: create %s: %w", ErrStagingDirectory, buildRoot, err)
	}

	if err := os.Mkdir(stagingPath, DefaultDirMode); err != nil {
		return "", fmt.Errorf("%w: create %s: %w", ErrStagingDirectory, stagingPath, err)
	}

	return stagingPath, nil
}

// checkBuildRoot refuses build roots whose removal would delete the sources.
func checkBuildRoot(sourceRoot, buildRoot string) error {
	sourceAbs, err := filepath.Abs(sourceRoot)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStagingDirectory, err)
	}

	buildAbs, err := filepath.Abs(buildRoot)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStagingDirectory, err)
	}

	if isWithin(sourceAbs, buildAbs) {
		return fmt.Errorf("%w: %s: %w", ErrStagingDirectory, buildRoot, errUnsafeBuildRoot)
	}

	return nil
}

// isWithin reports whether p equals dir or lies below it.
func isWithin(p, dir string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}

	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// StageSources mirrors sourceRoot into stagingPath, skipping every entry the
// exclusion list matches together with the subtrees of excluded directories.
// Permissions, modification times and symlinks are preserved, and entries in
// stagingPath that were not copied from the source are removed. The build
// root containing stagingPath is never copied into itself.
func StageSources(ctx context.Context, sourceRoot, stagingPath string, exclusions release.ExclusionList) error {
	sourceAbs, err := filepath.Abs(sourceRoot)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCopyFailure, err)
	}

	stagingAbs, err := filepath.Abs(stagingPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCopyFailure, err)
	}

	if err = os.MkdirAll(stagingAbs, DefaultDirMode); err != nil {
		return fmt.Errorf("%w: %w", ErrCopyFailure, err)
	}

	s := &stager{
		ctx:        ctx,
		sourceAbs:  sourceAbs,
		stagingAbs: stagingAbs,
		buildAbs:   filepath.Dir(stagingAbs),
		exclusions: exclusions,
		copied:     make(map[string]struct{}),
	}

	if err = filepath.WalkDir(sourceAbs, s.visit); err != nil {
		return fmt.Errorf("%w: %w", ErrCopyFailure, err)
	}

	// Directory times are restored last because copying children touches them.
	for _, dir := range slices.Backward(s.dirs) {
		if err = os.Chtimes(dir.path, dir.modTime, dir.modTime); err != nil {
			return fmt.Errorf("%w: %w", ErrCopyFailure, err)
		}
	}

	if err = s.removeExtraneous(); err != nil {
		return fmt.Errorf("%w: %w", ErrCopyFailure, err)
	}

	return nil
}

// stager carries the state of a single StageSources call.
type stager struct {
	ctx        context.Context //nolint:containedctx // Scoped to a single WalkDir call.
	sourceAbs  string
	stagingAbs string
	buildAbs   string
	exclusions release.ExclusionList
	// copied holds the slash-separated relative paths written to the staging tree.
	copied map[string]struct{}
	dirs   []stagedDir
}

type stagedDir struct {
	path    string
	modTime time.Time
}

func (s *stager) visit(path string, entry fs.DirEntry, err error) error {
	if err != nil {
		return err
	}

	if err = s.ctx.Err(); err != nil {
		return err
	}

	if path == s.sourceAbs {
		return nil
	}

	if path == s.buildAbs || path == s.stagingAbs {
		return skip(entry)
	}

	rel, err := filepath.Rel(s.sourceAbs, path)
	if err != nil {
		return err
	}

	slashRel := filepath.ToSlash(rel)
	if s.exclusions.Matches(slashRel, entry.IsDir()) {
		return skip(entry)
	}

	info, err := entry.Info()
	if err != nil {
		return err
	}

	target := filepath.Join(s.stagingAbs, rel)

	switch mode := info.Mode(); {
	case mode.IsDir():
		if err = makeDir(target, mode.Perm()); err != nil {
			return err
		}

		s.dirs = append(s.dirs, stagedDir{path: target, modTime: info.ModTime()})
	case mode&fs.ModeSymlink != 0:
		if err = copySymlink(path, target); err != nil {
			return err
		}
	case mode.IsRegular():
		if err = copyFile(path, target, info); err != nil {
			return err
		}
	default:
		// Devices, sockets and pipes are not part of a plugin release.
		return nil
	}

	s.copied[slashRel] = struct{}{}

	return nil
}

// removeExtraneous deletes staging entries that were not produced from the source.
func (s *stager) removeExtraneous() error {
	return filepath.WalkDir(s.stagingAbs, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if path == s.stagingAbs {
			return nil
		}

		rel, err := filepath.Rel(s.stagingAbs, path)
		if err != nil {
			return err
		}

		if _, ok := s.copied[filepath.ToSlash(rel)]; ok {
			return nil
		}

		if err = os.RemoveAll(path); err != nil {
			return err
		}

		return skip(entry)
	})
}

func skip(entry fs.DirEntry) error {
	if entry.IsDir() {
		return fs.SkipDir
	}

	return nil
}

func makeDir(target string, perm os.FileMode) error {
	if err := os.MkdirAll(target, perm); err != nil {
		return err
	}

	// MkdirAll is subject to the umask.
	return os.Chmod(target, perm)
}

func copySymlink(source, target string) error {
	link, err := os.Readlink(source)
	if err != nil {
		return err
	}

	if err = os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return os.Symlink(link, target)
}

// copyFile copies a regular file preserving its permission bits and modification time.
func copyFile(source, target string, info fs.FileInfo) (err error) {
	in, err := os.Open(filepath.Clean(source))
	if err != nil {
		return err
	}

	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(filepath.Clean(target), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return err
	}

	if err = out.Chmod(info.Mode().Perm()); err != nil {
		return err
	}

	return os.Chtimes(target, info.ModTime(), info.ModTime())
}

// CleanupStaging removes the staging directory.
func CleanupStaging(stagingPath string) error {
	if err := os.RemoveAll(stagingPath); err != nil {
		return fmt.Errorf("%w: %w", ErrCleanup, err)
	}

	return nil
}
