package scripts

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestDeleteSection(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "old.dat"), []byte("x"), 0o644)

	script := "[Delete]\nold.dat=\nmissing.dat=\n"
	if err := Run(context.Background(), dir, []byte(script), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "old.dat")); err == nil {
		t.Fatal("expected old.dat to be deleted")
	}
}

func TestRenameSection(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.dat"), []byte("x"), 0o644)

	script := "[Rename]\na.dat=b.dat\n"
	if err := Run(context.Background(), dir, []byte(script), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "b.dat")); err != nil {
		t.Fatal("expected b.dat to exist after rename")
	}
}

func TestRenameAndMergeWithoutExistingDest(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "src"), 0o775)
	os.WriteFile(filepath.Join(dir, "src", "f.dat"), []byte("x"), 0o644)

	script := "[RenameAndMerge]\nsrc=dst\n"
	if err := Run(context.Background(), dir, []byte(script), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "dst", "f.dat")); err != nil {
		t.Fatal("expected dst/f.dat to exist (behaves like RenameFolder)")
	}
}

func TestRenameAndMergeWithExistingDest(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "src"), 0o775)
	os.MkdirAll(filepath.Join(dir, "dst"), 0o775)
	os.WriteFile(filepath.Join(dir, "src", "new.dat"), []byte("new"), 0o644)
	os.WriteFile(filepath.Join(dir, "src", "dup.dat"), []byte("src-version"), 0o644)
	os.WriteFile(filepath.Join(dir, "dst", "dup.dat"), []byte("dst-version"), 0o644)

	script := "[RenameAndMerge]\nsrc=dst\n"
	if err := Run(context.Background(), dir, []byte(script), nil); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, "dst", "new.dat")); err != nil {
		t.Fatal("expected new.dat to be moved into dst")
	}
	body, err := os.ReadFile(filepath.Join(dir, "dst", "dup.dat"))
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "dst-version" {
		t.Fatal("expected existing dst file to win, source copy dropped")
	}
	if _, err := os.Stat(filepath.Join(dir, "src", "dup.dat")); err == nil {
		t.Fatal("expected source duplicate to be deleted")
	}
}

func TestDeleteFolderIfEmpty(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "emptydir", "subdir"), 0o775)
	os.MkdirAll(filepath.Join(dir, "nonempty"), 0o775)
	os.WriteFile(filepath.Join(dir, "nonempty", "f.dat"), []byte("x"), 0o644)

	script := "[DeleteFolderIfEmpty]\nemptydir=\nnonempty=\n"
	if err := Run(context.Background(), dir, []byte(script), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "emptydir")); err == nil {
		t.Fatal("expected emptydir (containing only a subdirectory) to be deleted")
	}
	if _, err := os.Stat(filepath.Join(dir, "nonempty")); err != nil {
		t.Fatal("expected nonempty to survive")
	}
}

func TestCreateFolder(t *testing.T) {
	dir := t.TempDir()
	script := "[CreateFolder]\nnewdir/sub=\n"
	if err := Run(context.Background(), dir, []byte(script), nil); err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(filepath.Join(dir, "newdir", "sub")); err != nil || !info.IsDir() {
		t.Fatal("expected newdir/sub to be created")
	}
}

func TestRunFileDeletesScriptAfterwards(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "updateexec")
	os.WriteFile(scriptPath, []byte("[CreateFolder]\nx=\n"), 0o644)

	if err := RunFile(context.Background(), dir, scriptPath, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(scriptPath); err == nil {
		t.Fatal("expected script file to be deleted after running")
	}
}
