package packager

import (
	"archive/zip"
	"context"
	"crypto"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/wp-release/internal/domain/release"
)

const (
	// ArtifactFileMode is the permission of the produced archive.
	ArtifactFileMode os.FileMode = 0o644

	// ArtifactChecksumFunction hashes the archive before it is moved into place.
	ArtifactChecksumFunction crypto.Hash = crypto.SHA512
)

var errNotDirectory = errors.New("staging path is not a directory")

// Archive compresses buildRoot/<slug> into buildRoot/<slug>-<version>.zip with
// every entry rooted at "<slug>/". The archive is written to a temporary file
// and moved into place only after its checksum verifies, so a failure never
// leaves a partial archive at the final path.
func Archive(ctx context.Context, buildRoot, slug, version string) (release.Artifact, error) {
	stagingPath := filepath.Join(buildRoot, slug)

	info, err := os.Stat(stagingPath)
	if err != nil {
		return release.Artifact{}, fmt.Errorf("%w: %w", ErrArchival, err)
	}

	if !info.IsDir() {
		return release.Artifact{}, fmt.Errorf("%w: %s: %w", ErrArchival, stagingPath, errNotDirectory)
	}

	meta := release.PluginMetadata{Slug: slug, Version: version}
	target := filepath.Join(buildRoot, meta.ArchiveName())

	temporary, err := os.CreateTemp(buildRoot, "."+meta.ArchiveName()+".*.tmp")
	if err != nil {
		return release.Artifact{}, fmt.Errorf("%w: %w", ErrArchival, err)
	}

	defer func() {
		_ = temporary.Close()
		_ = os.Remove(temporary.Name())
	}()

	hasher := sha512.New()
	if err = writeZip(ctx, io.MultiWriter(temporary, hasher), stagingPath, slug); err != nil {
		return release.Artifact{}, fmt.Errorf("%w: %w", ErrArchival, err)
	}

	checksum := hasher.Sum(nil)

	if _, err = temporary.Seek(0, io.SeekStart); err != nil {
		return release.Artifact{}, fmt.Errorf("%w: %w", ErrArchival, err)
	}

	if err = placeArtifact(temporary, target, checksum); err != nil {
		return release.Artifact{}, fmt.Errorf("%w: %w", ErrArchival, err)
	}

	stat, err := os.Stat(target)
	if err != nil {
		return release.Artifact{}, fmt.Errorf("%w: %w", ErrArchival, err)
	}

	return release.Artifact{
		Path:      target,
		SizeBytes: stat.Size(),
		Checksum:  hex.EncodeToString(checksum),
	}, nil
}

// writeZip streams the tree at root into w, naming entries "<prefix>/<relative path>".
func writeZip(ctx context.Context, w io.Writer, root, prefix string) error {
	zw := zip.NewWriter(w)

	err := filepath.WalkDir(root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if err = ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}

		return addZipEntry(zw, p, path.Join(prefix, filepath.ToSlash(rel)), info)
	})
	if err != nil {
		_ = zw.Close()
		return err
	}

	return zw.Close()
}

func addZipEntry(zw *zip.Writer, source, name string, info fs.FileInfo) error {
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}

	header.Name = name

	mode := info.Mode()

	switch {
	case mode.IsDir():
		header.Name += "/"
		header.Method = zip.Store

		_, err = zw.CreateHeader(header)

		return err
	case mode&fs.ModeSymlink != 0:
		// Links are stored as links, the way `zip --symlinks` does.
		link, err := os.Readlink(source)
		if err != nil {
			return err
		}

		header.Method = zip.Store

		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}

		_, err = io.WriteString(w, link)

		return err
	case mode.IsRegular():
		header.Method = zip.Deflate

		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}

		return copyInto(w, source)
	default:
		return nil
	}
}

func copyInto(w io.Writer, source string) error {
	f, err := os.Open(filepath.Clean(source))
	if err != nil {
		return err
	}

	defer func() {
		_ = f.Close()
	}()

	_, err = io.Copy(w, f)

	return err
}

// placeArtifact atomically replaces target with the contents of r after
// verifying them against checksum.
func placeArtifact(r io.Reader, target string, checksum []byte) error {
	// The replacement renames the current target aside, so one has to exist.
	created := false

	if _, err := os.Stat(target); errors.Is(err, fs.ErrNotExist) {
		f, err := os.OpenFile(filepath.Clean(target), os.O_CREATE|os.O_WRONLY, ArtifactFileMode)
		if err != nil {
			return err
		}

		_ = f.Close()
		created = true
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: ArtifactFileMode,
		Checksum:   checksum,
		Hash:       ArtifactChecksumFunction,
	}

	if err := goupdate.Apply(r, options); err != nil {
		if created {
			_ = os.Remove(target)
		}

		return fmt.Errorf("move archive into place: %w", err)
	}

	return nil
}
