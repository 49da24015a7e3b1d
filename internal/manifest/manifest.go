// Package manifest represents the updater's manifest store: the
// server-published "version" file and the locally-persisted mirror of it,
// both INI-shaped.
package manifest

import (
	"strconv"
	"strings"

	"github.com/IMQS/log"
	"github.com/go-ini/ini"
	"github.com/pkg/errors"

	"github.com/IMQS/clientupdater/internal/errkind"
)

// FileEntry is one tracked file: a path, its content identifier, and,
// if archived, the identifier and size of its compressed form.
type FileEntry struct {
	Path              string
	Identifier        string
	SizeKB            int
	ArchiveIdentifier string
	ArchiveSizeKB     int
}

// Archived reports whether this entry has a compressed form on the mirror.
func (f FileEntry) Archived() bool {
	return f.ArchiveIdentifier != ""
}

// Manifest is a parsed "version" file: game/updater versions plus every
// tracked file and add-on.
type Manifest struct {
	GameVersion       string
	UpdaterVersion    string
	ManualDownloadURL string
	Files             []FileEntry
	AddOns            []FileEntry // Path holds the add-on's ini_name
}

// PathMap indexes Files by path. Duplicate paths: last entry in the
// section wins, matching the INI parser's own duplicate-key policy.
func (m *Manifest) PathMap() map[string]FileEntry {
	out := make(map[string]FileEntry, len(m.Files))
	for _, f := range m.Files {
		out[f.Path] = f
	}
	return out
}

// AddOnByName looks up an add-on by its CustomComponent ini_name.
func (m *Manifest) AddOnByName(name string) (FileEntry, bool) {
	for _, a := range m.AddOns {
		if a.Path == name {
			return a, true
		}
	}
	return FileEntry{}, false
}

func warnf(logger *log.Logger, format string, args ...interface{}) {
	if logger != nil {
		logger.Warnf(format, args...)
	}
}

// splitFields splits a manifest value on commas and trims each field.
func splitFields(v string) []string {
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseSizeKB(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// Parse reads a manifest's [DTA]/[FileVersions]/[ArchivedFiles]/[AddOns]
// sections from raw INI bytes. Entries with fewer than two comma-separated
// fields are malformed and are skipped with a log line, per spec.
func Parse(data []byte, logger *log.Logger) (*Manifest, error) {
	f, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, data)
	if err != nil {
		return nil, errors.Wrap(errkind.ErrManifestMalformed, err.Error())
	}

	m := &Manifest{}
	if f.HasSection("DTA") {
		dta := f.Section("DTA")
		m.GameVersion = dta.Key("Version").String()
		m.UpdaterVersion = dta.Key("UpdaterVersion").String()
		m.ManualDownloadURL = dta.Key("ManualDownloadURL").String()
	}

	archived := map[string]FileEntry{}
	if f.HasSection("ArchivedFiles") {
		for _, k := range f.Section("ArchivedFiles").Keys() {
			fields := splitFields(k.Value())
			if len(fields) < 2 {
				warnf(logger, "manifest: malformed ArchivedFiles entry %q, skipping", k.Name())
				continue
			}
			archived[k.Name()] = FileEntry{
				ArchiveIdentifier: fields[0],
				ArchiveSizeKB:     parseSizeKB(fields[1]),
			}
		}
	}

	if f.HasSection("FileVersions") {
		for _, k := range f.Section("FileVersions").Keys() {
			fields := splitFields(k.Value())
			if len(fields) < 2 {
				warnf(logger, "manifest: malformed FileVersions entry %q, skipping", k.Name())
				continue
			}
			e := FileEntry{
				Path:       k.Name(),
				Identifier: fields[0],
				SizeKB:     parseSizeKB(fields[1]),
			}
			if a, ok := archived[k.Name()]; ok {
				e.ArchiveIdentifier = a.ArchiveIdentifier
				e.ArchiveSizeKB = a.ArchiveSizeKB
			}
			m.Files = append(m.Files, e)
		}
	}

	if f.HasSection("AddOns") {
		for _, k := range f.Section("AddOns").Keys() {
			fields := splitFields(k.Value())
			if len(fields) < 2 {
				warnf(logger, "manifest: malformed AddOns entry %q, skipping", k.Name())
				continue
			}
			m.AddOns = append(m.AddOns, FileEntry{
				Path:       k.Name(),
				Identifier: fields[0],
				SizeKB:     parseSizeKB(fields[1]),
			})
		}
	}

	return m, nil
}

// Write serializes m back out in the same section layout Parse reads,
// so the local manifest ("version") round-trips.
func Write(m *Manifest) ([]byte, error) {
	f := ini.Empty()

	dta, err := f.NewSection("DTA")
	if err != nil {
		return nil, errors.Wrap(errkind.ErrFilesystemFailed, err.Error())
	}
	dta.Key("Version").SetValue(m.GameVersion)
	dta.Key("UpdaterVersion").SetValue(m.UpdaterVersion)
	dta.Key("ManualDownloadURL").SetValue(m.ManualDownloadURL)

	if len(m.Files) > 0 {
		fv, err := f.NewSection("FileVersions")
		if err != nil {
			return nil, errors.Wrap(errkind.ErrFilesystemFailed, err.Error())
		}
		var archivedAny bool
		for _, e := range m.Files {
			fv.Key(e.Path).SetValue(e.Identifier + "," + strconv.Itoa(e.SizeKB))
			if e.Archived() {
				archivedAny = true
			}
		}
		if archivedAny {
			af, err := f.NewSection("ArchivedFiles")
			if err != nil {
				return nil, errors.Wrap(errkind.ErrFilesystemFailed, err.Error())
			}
			for _, e := range m.Files {
				if e.Archived() {
					af.Key(e.Path).SetValue(e.ArchiveIdentifier + "," + strconv.Itoa(e.ArchiveSizeKB))
				}
			}
		}
	}

	if len(m.AddOns) > 0 {
		ao, err := f.NewSection("AddOns")
		if err != nil {
			return nil, errors.Wrap(errkind.ErrFilesystemFailed, err.Error())
		}
		for _, e := range m.AddOns {
			ao.Key(e.Path).SetValue(e.Identifier + "," + strconv.Itoa(e.SizeKB))
		}
	}

	var buf strings.Builder
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(errkind.ErrFilesystemFailed, err.Error())
	}
	return []byte(buf.String()), nil
}
