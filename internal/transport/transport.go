// Package transport is the cancellable HTTP GET used for every mirror
// fetch: manifests, scripts, and content files alike. It disables
// caching, composes a fixed User-Agent, reports progress, and only
// allows one download in flight per handle.
package transport

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/IMQS/clientupdater/internal/errkind"
)

// ProgressFunc is called periodically during a download with the percent
// complete (0 if content length is unknown) and bytes written so far.
type ProgressFunc func(percent float64, bytesDone int64)

// Transport issues GET requests for one updater session. Downloads on a
// single Transport are serialized — callers wanting concurrency should
// use one Transport per concurrent download.
type Transport struct {
	client *http.Client
	mu     sync.Mutex

	localGame      string
	updaterVersion string
	gameVersion    string
	hostVersion    string
}

// New builds a Transport that identifies itself with the given User-Agent
// components. updaterVersion of "N/A" omits the "Updater/..." segment.
func New(localGame, updaterVersion, gameVersion, hostVersion string) *Transport {
	return &Transport{
		client:         &http.Client{},
		localGame:      localGame,
		updaterVersion: updaterVersion,
		gameVersion:    gameVersion,
		hostVersion:    hostVersion,
	}
}

func (t *Transport) userAgent() string {
	ua := t.localGame + " "
	if t.updaterVersion != "N/A" {
		ua += "Updater/" + t.updaterVersion + " "
	}
	ua += "Game/" + t.gameVersion + " Client/" + t.hostVersion
	return ua
}

// Download fetches url to destPath, creating parent directories as
// needed. The response body is streamed into a uuid-suffixed temp file
// alongside destPath and only renamed into place once fully written, so
// a reader can never observe a partial destPath; on cancellation or any
// error the temp file is removed and destPath is left untouched. Only
// one Download call may be in flight per Transport at a time;
// concurrent callers block on each other.
func (t *Transport) Download(ctx context.Context, url, destPath string, progress ProgressFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(errkind.ErrTransportFailed, err.Error())
	}
	req.Header.Set("User-Agent", t.userAgent())
	req.Header.Set("Cache-Control", "no-cache, no-store, max-age=0")
	req.Header.Set("Pragma", "no-cache")

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errkind.ErrCancelled
		}
		return errors.Wrap(errkind.ErrTransportFailed, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(errkind.ErrTransportFailed, "unexpected status %v fetching %v", resp.Status, url)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o775); err != nil {
		return errors.Wrap(errkind.ErrFilesystemFailed, err.Error())
	}
	tempPath := destPath + "." + uuid.New().String() + ".part"
	out, err := os.Create(tempPath)
	if err != nil {
		return errors.Wrap(errkind.ErrFilesystemFailed, err.Error())
	}

	fail := func(err error) error {
		out.Close()
		os.Remove(tempPath)
		return err
	}

	total := resp.ContentLength
	var done int64
	buf := make([]byte, 32*1024)
	for {
		if ctx.Err() != nil {
			return fail(errkind.ErrCancelled)
		}
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return fail(errors.Wrap(errkind.ErrFilesystemFailed, werr.Error()))
			}
			done += int64(n)
			if progress != nil {
				pct := 0.0
				if total > 0 {
					pct = float64(done) / float64(total) * 100
				}
				progress(pct, done)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			if ctx.Err() != nil {
				return fail(errkind.ErrCancelled)
			}
			return fail(errors.Wrap(errkind.ErrTransportFailed, rerr.Error()))
		}
	}

	if err := out.Close(); err != nil {
		os.Remove(tempPath)
		return errors.Wrap(errkind.ErrFilesystemFailed, err.Error())
	}
	if err := os.Rename(tempPath, destPath); err != nil {
		os.Remove(tempPath)
		return errors.Wrap(errkind.ErrFilesystemFailed, err.Error())
	}
	return nil
}
