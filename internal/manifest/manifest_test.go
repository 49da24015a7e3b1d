package manifest

import "testing"

const sampleManifest = `
; sample server manifest
[DTA]
Version=1.1
UpdaterVersion=3
ManualDownloadURL=https://example.test/manual

[FileVersions]
game.dat=111222333,10
readme.txt=444555,1
broken=onlyonefield

[ArchivedFiles]
game.dat=999888777,4

[AddOns]
hires_textures=123123123,512
`

func TestParseServerManifest(t *testing.T) {
	m, err := Parse([]byte(sampleManifest), nil)
	if err != nil {
		t.Fatal(err)
	}
	if m.GameVersion != "1.1" || m.UpdaterVersion != "3" {
		t.Fatalf("unexpected versions: %+v", m)
	}
	if m.ManualDownloadURL != "https://example.test/manual" {
		t.Fatalf("unexpected manual url: %v", m.ManualDownloadURL)
	}

	byPath := m.PathMap()
	if len(byPath) != 2 {
		t.Fatalf("expected 2 well-formed file entries (malformed skipped), got %v", len(byPath))
	}

	game := byPath["game.dat"]
	if game.Identifier != "111222333" || game.SizeKB != 10 {
		t.Fatalf("unexpected game.dat entry: %+v", game)
	}
	if !game.Archived() || game.ArchiveIdentifier != "999888777" || game.ArchiveSizeKB != 4 {
		t.Fatalf("expected game.dat to be archived: %+v", game)
	}

	readme := byPath["readme.txt"]
	if readme.Archived() {
		t.Fatalf("readme.txt should not be archived: %+v", readme)
	}

	addon, ok := m.AddOnByName("hires_textures")
	if !ok || addon.Identifier != "123123123" || addon.SizeKB != 512 {
		t.Fatalf("unexpected add-on entry: %+v", addon)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	m, err := Parse([]byte(sampleManifest), nil)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := Write(m)
	if err != nil {
		t.Fatal(err)
	}
	m2, err := Parse(raw, nil)
	if err != nil {
		t.Fatal(err)
	}
	if m2.GameVersion != m.GameVersion {
		t.Fatalf("round trip lost game version: %v vs %v", m2.GameVersion, m.GameVersion)
	}
	if len(m2.Files) != len(m.Files) {
		t.Fatalf("round trip lost files: %v vs %v", len(m2.Files), len(m.Files))
	}
}
