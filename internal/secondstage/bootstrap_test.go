package secondstage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSkipAsSelfOrAssembly(t *testing.T) {
	if !skipAsSelfOrAssembly("client", "client", nil) {
		t.Fatal("expected self basename match to skip")
	}
	if !skipAsSelfOrAssembly("Resources/client.dll", "client", nil) {
		t.Fatal("expected Resources/<self> to skip")
	}
	if skipAsSelfOrAssembly("game.dat", "client", nil) {
		t.Fatal("did not expect game.dat to be skipped")
	}
	if !skipAsSelfOrAssembly("lib.dll", "client", []string{"lib"}) {
		t.Fatal("expected referenced assembly to skip")
	}
	if skipAsSelfOrAssembly("Data/client.dat", "client", nil) {
		t.Fatal("same basename nested outside root/Resources must still be mirrored")
	}
	if skipAsSelfOrAssembly("Resources/Sub/client.dll", "client", nil) {
		t.Fatal("same basename two levels under Resources must still be mirrored")
	}
}

func TestFindLauncherForKey(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "Resources"), 0o775)
	os.WriteFile(filepath.Join(dir, "Resources", "client"), []byte("fake"), 0o755)
	content := "SomeOtherKey=ignored\nLauncherExe=Resources/client ; comment\n"
	os.WriteFile(filepath.Join(dir, "Resources", "ClientDefinitions.ini"), []byte(content), 0o644)

	launcher, err := findLauncherForKey(dir, "LauncherExe")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(launcher) != "client" {
		t.Fatalf("expected launcher client, got %v", launcher)
	}
}

func TestFindLauncherForKeyMissingLine(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "Resources"), 0o775)
	os.WriteFile(filepath.Join(dir, "Resources", "ClientDefinitions.ini"), []byte("Nothing=here\n"), 0o644)

	if _, err := findLauncherForKey(dir, "LauncherExe"); err == nil {
		t.Fatal("expected error when the key is absent")
	}
}

func TestMirrorStagedTreeSkipsVersionAndSelf(t *testing.T) {
	base := t.TempDir()
	stage := filepath.Join(base, "Updater")
	os.MkdirAll(stage, 0o775)
	os.WriteFile(filepath.Join(stage, "version"), []byte("v2"), 0o644)
	os.WriteFile(filepath.Join(stage, "game.dat"), []byte("new content"), 0o644)
	os.WriteFile(filepath.Join(stage, "SecondStageUpdater"), []byte("bootstrap"), 0o755)

	if err := mirrorStagedTree(stage, base, "SecondStageUpdater", nil, NewLogger(os.Stdout, nil)); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(base, "version")); err == nil {
		t.Fatal("version should be promoted separately, not by mirrorStagedTree")
	}
	if _, err := os.Stat(filepath.Join(base, "SecondStageUpdater")); err == nil {
		t.Fatal("the bootstrap's own executable should not be mirrored")
	}
	got, err := os.ReadFile(filepath.Join(base, "game.dat"))
	if err != nil || string(got) != "new content" {
		t.Fatalf("expected game.dat to be mirrored, got %q %v", got, err)
	}
}

func TestRunFailsWithoutStagingDir(t *testing.T) {
	base := t.TempDir()
	err := Run("client", base, NewLogger(os.Stdout, nil))
	if err == nil {
		t.Fatal("expected Run to fail when Updater/ is absent")
	}
}
