package lzmafile

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ulikunitz/xz/lzma"
)

func compress(t *testing.T, plain []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(plain); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecompressRoundTrip(t *testing.T) {
	plain := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog\n"), 200)
	archive := compress(t, plain)

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "game.dat.lzma")
	dstPath := filepath.Join(dir, "game.dat")
	if err := os.WriteFile(srcPath, archive, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Decompress(context.Background(), srcPath, dstPath); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dstPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("round trip mismatch: got %v bytes, want %v bytes", len(got), len(plain))
	}
}

func TestDecompressTruncatedArchiveFails(t *testing.T) {
	plain := bytes.Repeat([]byte("payload"), 4096)
	archive := compress(t, plain)

	// Cut well into the compressed stream, past the 13-byte header, so the
	// declared plaintext length can never be reached.
	truncated := archive[:len(archive)-len(archive)/4]

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "game.dat.lzma")
	dstPath := filepath.Join(dir, "game.dat")
	if err := os.WriteFile(srcPath, truncated, 0o644); err != nil {
		t.Fatal(err)
	}

	err := Decompress(context.Background(), srcPath, dstPath)
	if err == nil {
		t.Fatal("expected an error decompressing a truncated archive")
	}
	if _, statErr := os.Stat(dstPath); statErr == nil {
		t.Fatal("expected partial output to be removed on failure")
	}
}

func TestCompressThenDecompressRoundTrip(t *testing.T) {
	plain := bytes.Repeat([]byte("manifest publisher content\n"), 300)

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "game.dat")
	archivePath := filepath.Join(dir, "game.dat.lzma")
	dstPath := filepath.Join(dir, "game.dat.out")

	if err := os.WriteFile(srcPath, plain, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Compress(srcPath, archivePath); err != nil {
		t.Fatal(err)
	}
	if err := Decompress(context.Background(), archivePath, dstPath); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dstPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("round trip mismatch: got %v bytes, want %v bytes", len(got), len(plain))
	}
}

func TestDecompressCancellation(t *testing.T) {
	plain := bytes.Repeat([]byte("payload"), 100000)
	archive := compress(t, plain)

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "game.dat.lzma")
	dstPath := filepath.Join(dir, "game.dat")
	if err := os.WriteFile(srcPath, archive, 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Decompress(ctx, srcPath, dstPath)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if _, statErr := os.Stat(dstPath); statErr == nil {
		t.Fatal("expected partial output to be removed on cancellation")
	}
}
