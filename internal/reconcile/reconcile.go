// Package reconcile implements the three-way diff between the local
// tree, the local manifest, and the server manifest, producing a
// download Plan.
package reconcile

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/IMQS/clientupdater/internal/config"
	"github.com/IMQS/clientupdater/internal/hashid"
	"github.com/IMQS/clientupdater/internal/manifest"
)

// Plan is an ordered list of files to download, plus their total size.
type Plan struct {
	Files   []manifest.FileEntry
	TotalKB int64
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func entryKB(e manifest.FileEntry) int64 {
	if e.Archived() {
		return int64(e.ArchiveSizeKB)
	}
	return int64(e.SizeKB)
}

// Build diffs server against local+disk and returns the files that need
// downloading. Ignore masks are deliberately not consulted here — they
// only apply during the orchestrator's local verification pass (see
// IsIgnored).
func Build(rootDir string, local, server *manifest.Manifest) (*Plan, error) {
	localByPath := local.PathMap()
	plan := &Plan{}

	for _, s := range server.Files {
		needsDownload := false

		if l, ok := localByPath[s.Path]; ok {
			full := filepath.Join(rootDir, s.Path)
			if !fileExists(full) {
				needsDownload = true
			} else if !hashid.Equal(l.Identifier, s.Identifier) {
				needsDownload = true
			}
		} else {
			full := filepath.Join(rootDir, s.Path)
			if fileExists(full) {
				h, err := hashid.Of(full)
				if err != nil || !hashid.Equal(h, s.Identifier) {
					needsDownload = true
				}
			} else {
				needsDownload = true
			}
		}

		if needsDownload {
			plan.Files = append(plan.Files, s)
			plan.TotalKB += entryKB(s)
		}
	}

	return plan, nil
}

// IsIgnored reports whether path matches any ignore mask. Masks are
// substring matches against the uppercased path, not glob patterns,
// despite the "mask" name — this is the legacy client's actual
// semantics, preserved for compatibility.
func IsIgnored(path string, masks []string) bool {
	upper := strings.ToUpper(path)
	for _, mask := range masks {
		if mask == "" {
			continue
		}
		if strings.Contains(upper, strings.ToUpper(mask)) {
			return true
		}
	}
	return false
}

// ComponentsOutdated reports whether any custom component that is present
// on disk has a remote identifier differing from its local one.
func ComponentsOutdated(components []config.Component, rootDir string) bool {
	for _, c := range components {
		full := filepath.Join(rootDir, c.LocalPath)
		if fileExists(full) && !hashid.Equal(c.RemoteIdentifier, c.LocalIdentifier) {
			return true
		}
	}
	return false
}
