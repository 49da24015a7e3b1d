package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleConfig = `
[Settings]
IgnoreMasks=.rtf,.txt,Theme.ini,gui_settings.xml,.log

[DownloadMirrors]
a=https://mirror-a.example/,Mirror A,US East
b=https://mirror-b.example/,Mirror B,EU West

[CustomComponents]
hires=High Resolution Textures,hires_textures,addons/hires,Content/hires,1
`

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "UpdaterConfig.ini")
	if err := os.WriteFile(p, []byte(sampleConfig), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.IgnoreMasks) != 5 {
		t.Fatalf("expected 5 ignore masks, got %v: %v", len(c.IgnoreMasks), c.IgnoreMasks)
	}
	if len(c.Mirrors) != 2 {
		t.Fatalf("expected 2 mirrors, got %v", len(c.Mirrors))
	}
	if c.Mirrors[0].Name != "Mirror A" {
		t.Fatalf("unexpected first mirror: %+v", c.Mirrors[0])
	}
	if len(c.Components) != 1 {
		t.Fatalf("expected 1 component, got %v", len(c.Components))
	}
	comp := c.Components[0]
	if comp.IniName != "hires_textures" || !comp.NoArchiveExtensionOnDownloadPath {
		t.Fatalf("unexpected component: %+v", comp)
	}
	if comp.DownloadPathIsAbsolute {
		t.Fatalf("expected relative download path: %+v", comp)
	}
}

func TestLoadLegacyConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "updateconfig.ini")
	body := "https://mirror-a.example/,Mirror A,US East\nhttps://mirror-b.example/,Mirror B,EU West\n"
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadLegacy(p)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Mirrors) != 2 {
		t.Fatalf("expected 2 mirrors, got %v", len(c.Mirrors))
	}
	if len(c.IgnoreMasks) != 4 {
		t.Fatalf("expected default ignore masks, got %v", c.IgnoreMasks)
	}
}

func TestLoadWithFallback(t *testing.T) {
	dir := t.TempDir()
	legacy := filepath.Join(dir, "updateconfig.ini")
	if err := os.WriteFile(legacy, []byte("https://mirror-a.example/,Mirror A,US East\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadWithFallback(filepath.Join(dir, "UpdaterConfig.ini"), legacy)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Mirrors) != 1 {
		t.Fatalf("expected fallback to legacy config, got %+v", c)
	}
}
