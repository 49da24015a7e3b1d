// Command manifest-publish walks a built client tree and writes its
// content-hash manifest (the "version" file mirrors serve to the
// updater).
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/IMQS/cli"
	"github.com/IMQS/log"

	"github.com/IMQS/clientupdater/internal/hashid"
	"github.com/IMQS/clientupdater/internal/lzmafile"
	"github.com/IMQS/clientupdater/internal/manifest"
)

var logger *log.Logger

// skipNames are the updater's own bookkeeping files, never tracked as
// content.
var skipNames = map[string]bool{
	"version":   true,
	"version_u": true,
}

// skipDirs are never walked into when building a manifest.
var skipDirs = map[string]bool{
	"Updater": true,
}

func buildManifest(root, gameVersion, updaterVersion string) (*manifest.Manifest, error) {
	m := &manifest.Manifest{GameVersion: gameVersion, UpdaterVersion: updaterVersion}

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			return rerr
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if skipDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if skipNames[info.Name()] || strings.HasSuffix(rel, ".lzma") {
			return nil
		}

		plainID, err := hashid.Of(path)
		if err != nil {
			return err
		}
		entry := manifest.FileEntry{
			Path:       rel,
			Identifier: plainID,
			SizeKB:     int(info.Size()/1024) + 1,
		}

		// Only publish an archived form when compression actually wins;
		// some content (already-compressed textures, audio) doesn't
		// shrink, and shipping an archive nobody benefits from just
		// costs the mirror extra storage.
		archivePath := path + ".lzma"
		keepArchive := false
		if err := lzmafile.Compress(path, archivePath); err == nil {
			if archiveInfo, serr := os.Stat(archivePath); serr == nil && archiveInfo.Size() < info.Size() {
				if archiveID, herr := hashid.Of(archivePath); herr == nil {
					entry.ArchiveIdentifier = archiveID
					entry.ArchiveSizeKB = int(archiveInfo.Size()/1024) + 1
					keepArchive = true
				}
			}
		}
		if !keepArchive {
			os.Remove(archivePath)
		}

		m.Files = append(m.Files, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func run(name string, args []string, options cli.OptionSet) {
	var err error
	switch name {
	case "build":
		err = doBuild(args[0], args[1])
	}
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func doBuild(root, gameVersion string) error {
	m, err := buildManifest(root, gameVersion, "N/A")
	if err != nil {
		return err
	}
	data, err := manifest.Write(m)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(root, "version"), data, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote manifest for %v files\n", len(m.Files))
	return nil
}

func main() {
	logger = log.New(log.Stdout)
	app := cli.App{}
	app.Description = "manifest-publish [options] command"
	app.DefaultExec = run
	app.AddCommand("build", "Walk root-dir and write its content-hash manifest to root-dir/version", "root-dir", "game-version")
	app.Run()
}
