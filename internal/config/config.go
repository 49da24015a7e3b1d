// Package config parses the updater's own configuration: mirrors, custom
// components, and ignore masks, from UpdaterConfig.ini (or, if that file
// is missing, the legacy updateconfig.ini).
package config

import (
	"os"
	"strings"

	"github.com/go-ini/ini"
	"github.com/pkg/errors"

	"github.com/IMQS/clientupdater/internal/errkind"
)

// Mirror is one entry of [DownloadMirrors].
type Mirror struct {
	URL      string
	Name     string
	Location string
}

// Component is an optional, separately-downloaded add-on module.
type Component struct {
	DisplayName                     string
	IniName                         string
	DownloadPath                    string
	LocalPath                       string
	DownloadPathIsAbsolute          bool
	NoArchiveExtensionOnDownloadPath bool

	// Mutable runtime fields. The version check sets RemoteIdentifier,
	// RemoteSize and LocalIdentifier for components listed in the server
	// manifest's [AddOns]; the other fields are not set by the updater.
	RemoteSize        int
	RemoteArchiveSize int
	RemoteIdentifier  string
	LocalIdentifier   string
	Archived          bool
	Initialized       bool
	IsBeingDownloaded bool
}

// UpdaterConfig is the parsed UpdaterConfig.ini / updateconfig.ini.
type UpdaterConfig struct {
	IgnoreMasks []string
	Mirrors     []Mirror
	Components  []Component
}

// defaultIgnoreMasks are the file patterns excluded from local
// verification when a config file doesn't override them.
var defaultIgnoreMasks = []string{".rtf", ".txt", "Theme.ini", "gui_settings.xml"}

// Default returns a config with the documented default ignore masks and
// nothing else — the starting point before a config file is loaded.
func Default() *UpdaterConfig {
	c := &UpdaterConfig{}
	c.IgnoreMasks = append(c.IgnoreMasks, defaultIgnoreMasks...)
	return c
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseBoolFlag(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes"
}

// isAbsoluteDownloadPath infers CustomComponent.download_path_is_absolute
// from the one signal present in the config line itself — a path
// starting with http:// or https:// is already a full URL, anything else
// is resolved against the mirror.
func isAbsoluteDownloadPath(p string) bool {
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

// Load parses UpdaterConfig.ini: [Settings] IgnoreMasks, [DownloadMirrors],
// and [CustomComponents].
func Load(path string) (*UpdaterConfig, error) {
	f, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, path)
	if err != nil {
		return nil, errors.Wrap(errkind.ErrConfigMissing, err.Error())
	}

	c := Default()

	if f.HasSection("Settings") {
		if v := f.Section("Settings").Key("IgnoreMasks").String(); v != "" {
			c.IgnoreMasks = splitCSV(v)
		}
	}

	if f.HasSection("DownloadMirrors") {
		for _, k := range f.Section("DownloadMirrors").Keys() {
			fields := splitCSV(k.Value())
			if len(fields) < 3 {
				continue
			}
			c.Mirrors = append(c.Mirrors, Mirror{URL: fields[0], Name: fields[1], Location: fields[2]})
		}
	}

	if f.HasSection("CustomComponents") {
		for _, k := range f.Section("CustomComponents").Keys() {
			fields := splitCSV(k.Value())
			if len(fields) < 4 {
				continue
			}
			comp := Component{
				DisplayName:   fields[0],
				IniName:       fields[1],
				DownloadPath:  fields[2],
				LocalPath:     fields[3],
			}
			comp.DownloadPathIsAbsolute = isAbsoluteDownloadPath(comp.DownloadPath)
			if len(fields) >= 5 {
				comp.NoArchiveExtensionOnDownloadPath = parseBoolFlag(fields[4])
			}
			c.Components = append(c.Components, comp)
		}
	}

	return c, nil
}

// LoadLegacy parses the legacy updateconfig.ini fallback: comma-separated
// lines of <url>,<name>,<location>, one mirror per line, no sections.
func LoadLegacy(path string) (*UpdaterConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errkind.ErrConfigMissing, err.Error())
	}

	c := Default()
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimRight(strings.TrimSpace(line), "\r")
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		fields := splitCSV(line)
		if len(fields) < 3 {
			continue
		}
		c.Mirrors = append(c.Mirrors, Mirror{URL: fields[0], Name: fields[1], Location: fields[2]})
	}
	return c, nil
}

// LoadWithFallback loads UpdaterConfig.ini, falling back to the legacy
// updateconfig.ini when the new config file is missing.
func LoadWithFallback(configPath, legacyPath string) (*UpdaterConfig, error) {
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}
	return LoadLegacy(legacyPath)
}
