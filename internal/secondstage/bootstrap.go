// Package secondstage is the standalone bootstrap process that finishes
// an update after the host client exits: it waits on a cross-process
// mutex, mirrors the staged tree over the live installation, and
// launches the client.
package secondstage

import (
	"io"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/IMQS/clientupdater/internal/errkind"
)

const (
	mutexTimeout   = 30 * time.Second
	settleDelay    = 1 * time.Second
	stagingDirName = "Updater"
)

// Run executes the full handoff against baseDir. clientExeName is the
// name of the process that just exited; the handoff itself is driven
// entirely by the mutex and the staged tree; it's carried only for the
// skip-self-by-basename check below.
func Run(clientExeName, baseDir string, log *Logger) error {
	baseDir = strings.Trim(baseDir, `"`)

	mtx, err := newNamedMutex()
	if err != nil {
		log.Fatal("could not open host mutex: %v", err)
		return errors.Wrap(errkind.ErrMutexTimeout, err.Error())
	}
	abandoned, err := mtx.acquire(mutexTimeout)
	if err != nil {
		log.Fatal("timed out waiting for host to exit: %v", err)
		return err
	}
	defer mtx.release()
	if abandoned {
		log.Warn("host mutex was abandoned by its previous owner, proceeding")
	}

	time.Sleep(settleDelay)

	stageDir := filepath.Join(baseDir, stagingDirName)
	if info, err := os.Stat(stageDir); err != nil || !info.IsDir() {
		log.Fatal("staging directory %v is missing", stageDir)
		return errkind.ErrFilesystemFailed
	}

	selfBase := ""
	if exePath, err := os.Executable(); err == nil {
		selfBase = basenameNoExt(exePath)
	} else {
		selfBase = basenameNoExt(clientExeName)
	}
	assemblies := referencedAssemblies()

	if err := mirrorStagedTree(stageDir, baseDir, selfBase, assemblies, log); err != nil {
		log.Fatal("mirroring staged tree failed: %v", err)
		return err
	}

	stagedVersion := filepath.Join(stageDir, "version")
	if _, err := os.Stat(stagedVersion); err == nil {
		if err := copyFile(stagedVersion, filepath.Join(baseDir, "version")); err != nil {
			log.Fatal("failed to promote version file: %v", err)
			return errors.Wrap(errkind.ErrFilesystemFailed, err.Error())
		}
	}

	launcher, err := findLauncher(baseDir)
	if err != nil {
		log.Fatal("%v", err)
		return err
	}
	cmd := exec.Command(launcher)
	cmd.Dir = filepath.Dir(launcher)
	if err := cmd.Start(); err != nil {
		log.Fatal("failed to launch %v: %v", launcher, err)
		return errors.Wrap(errkind.ErrLauncherMissing, err.Error())
	}

	log.Info("launched %v", launcher)
	return nil
}

// referencedAssemblies would, in the original .NET-era client, list the
// second-stage executable's referenced assembly DLLs so they could be
// excluded from the mirror pass the same way the executable itself is.
// A statically linked Go binary carries no such sidecar set, so there
// is nothing to enumerate; self-skipping by basename is what actually
// protects the running executable.
func referencedAssemblies() []string {
	return nil
}

// mirrorStagedTree copies every file under stageDir to the matching
// path under baseDir, skipping the bootstrap's own executable (by
// basename, at root or under Resources/), its referenced assemblies,
// and the literal "version" file — the orchestrator already moved the
// authoritative manifest into the staging directory before spawning
// this process, so "version" here is promoted separately, after the
// mirror pass.
func mirrorStagedTree(stageDir, baseDir, selfBase string, assemblies []string, log *Logger) error {
	return filepath.Walk(stageDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(stageDir, path)
		if rerr != nil {
			return rerr
		}
		rel = filepath.ToSlash(rel)

		if rel == "version" {
			return nil
		}
		if skipAsSelfOrAssembly(rel, selfBase, assemblies) {
			return nil
		}

		dst := filepath.Join(baseDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dst), 0o775); err != nil {
			log.Warn("mkdir %v failed: %v", filepath.Dir(dst), err)
			return nil
		}
		if err := copyFile(path, dst); err != nil {
			log.Warn("copy %v failed: %v", rel, err)
		}
		return nil
	})
}

// skipAsSelfOrAssembly reports whether rel names the running executable
// or one of its referenced assemblies, but only when rel sits at the
// tree root or directly under Resources/ — a same-named file nested
// anywhere deeper in the staged tree is ordinary content and must still
// be mirrored.
func skipAsSelfOrAssembly(rel, selfBase string, assemblies []string) bool {
	if selfBase == "" {
		return false
	}
	dir, file := path.Split(rel)
	if dir != "" && dir != "Resources/" {
		return false
	}
	target := basenameNoExt(file)
	names := append([]string{selfBase}, assemblies...)
	for _, n := range names {
		if target == basenameNoExt(n) {
			return true
		}
	}
	return false
}

func basenameNoExt(p string) string {
	b := filepath.Base(p)
	return strings.TrimSuffix(b, filepath.Ext(b))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

// findLauncher reads Resources/ClientDefinitions.ini for the platform's
// launcher key and resolves it to a path under baseDir.
func findLauncher(baseDir string) (string, error) {
	key := "LauncherExe"
	if runtime.GOOS != "windows" {
		key = "UnixLauncherExe"
	}
	return findLauncherForKey(baseDir, key)
}

func findLauncherForKey(baseDir, key string) (string, error) {
	path := filepath.Join(baseDir, "Resources", "ClientDefinitions.ini")
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(errkind.ErrLauncherMissing, err.Error())
	}

	prefix := key + "="
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimRight(strings.TrimSpace(line), "\r")
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		value := strings.TrimPrefix(line, prefix)
		if idx := strings.Index(value, ";"); idx >= 0 {
			value = value[:idx]
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		full := filepath.Join(baseDir, filepath.FromSlash(value))
		if _, err := os.Stat(full); err != nil {
			return "", errors.Wrap(errkind.ErrLauncherMissing, "launcher "+full+" does not exist")
		}
		return full, nil
	}
	return "", errors.Wrap(errkind.ErrLauncherMissing, "no "+key+" line in ClientDefinitions.ini")
}
