// Package download is the download engine: for each planned file it
// fetches, verifies, decompresses, and re-verifies into a scratch
// staging directory.
package download

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/IMQS/log"
	"github.com/pkg/errors"

	"github.com/IMQS/clientupdater/internal/config"
	"github.com/IMQS/clientupdater/internal/errkind"
	"github.com/IMQS/clientupdater/internal/hashid"
	"github.com/IMQS/clientupdater/internal/lzmafile"
	"github.com/IMQS/clientupdater/internal/manifest"
	"github.com/IMQS/clientupdater/internal/transport"
)

const archiveExt = ".lzma"

// stagingDirName is the scratch area content is fetched into before the
// second-stage bootstrap mirrors it onto the live tree.
const stagingDirName = "Updater"

// maxAttempts is the retry budget for one file: one try, one retry.
// A second consecutive failure aborts the whole update.
const maxAttempts = 2

// ProgressFunc reports bytes transferred for the file currently
// downloading.
type ProgressFunc func(percent float64, bytesDone int64)

// Engine executes the download plan built by package reconcile.
type Engine struct {
	transport *transport.Transport
	log       *log.Logger
}

// New builds an Engine around an existing Transport.
func New(t *transport.Transport, logger *log.Logger) *Engine {
	return &Engine{transport: t, log: logger}
}

func remoteURL(mirrorURL, relPath, ext string) string {
	clean := strings.ReplaceAll(relPath, "\\", "/")
	return strings.TrimRight(mirrorURL, "/") + "/" + clean + ext
}

// FetchPlanFile downloads one planned file into the staging directory
// under rootDir, retrying once on failure.
func (e *Engine) FetchPlanFile(ctx context.Context, rootDir, mirrorURL string, entry manifest.FileEntry, progress ProgressFunc) error {
	stageRoot := filepath.Join(rootDir, stagingDirName)
	finalPath := filepath.Join(stageRoot, filepath.FromSlash(entry.Path))

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return errkind.ErrCancelled
		}
		err := e.attemptPlanFile(ctx, mirrorURL, entry, finalPath, progress)
		if err == nil {
			return nil
		}
		lastErr = err
		e.log.Warnf("download attempt %v/%v for %v failed: %v", attempt+1, maxAttempts, entry.Path, err)
	}
	return errors.Wrap(lastErr, "too many retries")
}

func (e *Engine) attemptPlanFile(ctx context.Context, mirrorURL string, entry manifest.FileEntry, finalPath string, progress ProgressFunc) error {
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o775); err != nil {
		return errors.Wrap(errkind.ErrFilesystemFailed, err.Error())
	}

	archivePath := finalPath + archiveExt
	fetchPath := finalPath
	ext := ""
	if entry.Archived() {
		fetchPath = archivePath
		ext = archiveExt
	}

	// Fast path: a staged file from a previous, interrupted attempt may
	// already be correct. A staged archive is checked against the archive
	// identifier, a staged plaintext file against the plaintext identifier.
	expected := entry.Identifier
	if entry.Archived() {
		expected = entry.ArchiveIdentifier
	}
	if fileIntact(fetchPath, expected) {
		return e.finishFromStage(ctx, entry, finalPath, archivePath)
	}

	url := remoteURL(mirrorURL, entry.Path, ext)
	if err := e.transport.Download(ctx, url, fetchPath, progress); err != nil {
		return err
	}

	return e.finishFromStage(ctx, entry, finalPath, archivePath)
}

// finishFromStage runs the verify/decompress/verify tail of the pipeline
// once fetchPath (either the final plaintext or its archive) is on disk.
func (e *Engine) finishFromStage(ctx context.Context, entry manifest.FileEntry, finalPath, archivePath string) error {
	if entry.Archived() {
		h, err := hashid.Of(archivePath)
		if err != nil || !hashid.Equal(h, entry.ArchiveIdentifier) {
			os.Remove(archivePath)
			return errors.Wrap(errkind.ErrHashMismatch, "archive identifier mismatch for "+entry.Path)
		}
		if err := lzmafile.Decompress(ctx, archivePath, finalPath); err != nil {
			return err
		}
		os.Remove(archivePath)
	}

	h, err := hashid.Of(finalPath)
	if err != nil || !hashid.Equal(h, entry.Identifier) {
		os.Remove(finalPath)
		return errors.Wrap(errkind.ErrHashMismatch, "identifier mismatch for "+entry.Path)
	}
	return nil
}

func fileIntact(path, expectedIdentifier string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	h, err := hashid.Of(path)
	if err != nil {
		return false
	}
	return hashid.Equal(h, expectedIdentifier)
}

// FetchComponent downloads a custom component directly to its local_path
// under rootDir — no staging directory, and it never touches the main
// plan.
func (e *Engine) FetchComponent(ctx context.Context, rootDir, mirrorURL string, comp *config.Component, progress ProgressFunc) error {
	finalPath := filepath.Join(rootDir, filepath.FromSlash(comp.LocalPath))
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o775); err != nil {
		return errors.Wrap(errkind.ErrFilesystemFailed, err.Error())
	}

	ext := ""
	if comp.Archived && !comp.NoArchiveExtensionOnDownloadPath {
		ext = archiveExt
	}
	archivePath := finalPath + archiveExt

	url := comp.DownloadPath
	if !comp.DownloadPathIsAbsolute {
		url = remoteURL(mirrorURL, comp.DownloadPath, "")
	}
	url += ext

	fetchPath := finalPath
	if comp.Archived {
		fetchPath = archivePath
	}

	if err := e.transport.Download(ctx, url, fetchPath, progress); err != nil {
		return err
	}

	// CustomComponent carries a single remote_identifier — unlike
	// FileEntry there is no separate archived-form hash, so that one
	// identifier verifies whatever was actually fetched: the archive, if
	// archived, before it is unpacked.
	h, err := hashid.Of(fetchPath)
	if err != nil || !hashid.Equal(h, comp.RemoteIdentifier) {
		os.Remove(fetchPath)
		return errors.Wrap(errkind.ErrHashMismatch, "identifier mismatch for component "+comp.IniName)
	}

	if comp.Archived {
		if err := lzmafile.Decompress(ctx, archivePath, finalPath); err != nil {
			return err
		}
		os.Remove(archivePath)
	}
	return nil
}
