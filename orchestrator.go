package clientupdater

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/IMQS/log"
	"github.com/pkg/errors"

	"github.com/IMQS/clientupdater/internal/config"
	"github.com/IMQS/clientupdater/internal/download"
	"github.com/IMQS/clientupdater/internal/errkind"
	"github.com/IMQS/clientupdater/internal/hashid"
	"github.com/IMQS/clientupdater/internal/manifest"
	"github.com/IMQS/clientupdater/internal/mirrorlist"
	"github.com/IMQS/clientupdater/internal/reconcile"
	"github.com/IMQS/clientupdater/internal/scripts"
	"github.com/IMQS/clientupdater/internal/transport"
)

const (
	localManifestName  = "version"
	stagedManifestName = "version_u"
	preUpdateScript    = "preupdateexec"
	postUpdateScript   = "updateexec"
	stagingDirName     = "Updater"
)

// Errors returned by the orchestrator's own state-machine guards, as
// distinct from the pipeline errkind sentinels.
var (
	ErrCheckInProgress = errors.New("version check already in progress")
	ErrUpdateInProgress = errors.New("update already in progress")
	ErrNotOutdated      = errors.New("StartUpdate called while state is not OUTDATED")
)

// Updater is the state machine sequencing version check, plan, download,
// scripts, and second-stage handoff. It exclusively owns VersionState,
// the current plan, and the manual-update-required flag; the mirror
// list and components are shared read-mostly and mutated only from
// within the orchestrator's own calls.
type Updater struct {
	mu    sync.Mutex
	state VersionState

	rootDir  string
	observer Observer
	log      *log.Logger

	mirrors   *mirrorlist.List
	transport *transport.Transport
	engine    *download.Engine
	cfg       *config.UpdaterConfig

	localGameVersion string
	updaterVersion   string

	manualUpdateRequired bool
	manualDownloadURL    string

	plan   *reconcile.Plan
	local  *manifest.Manifest
	server *manifest.Manifest

	cancel *CancelToken
}

// New builds an Updater rooted at rootDir. productName, localGameVersion,
// updaterVersion, and hostVersion identify this installation in the
// Transport's User-Agent; the up-to-date and manual-update-required
// checks compare against the local manifest file instead. A nil observer
// is replaced with NoopObserver.
func New(rootDir string, cfg *config.UpdaterConfig, productName, localGameVersion, updaterVersion, hostVersion string, observer Observer, logger *log.Logger) *Updater {
	if observer == nil {
		observer = NoopObserver{}
	}

	mirrors := make([]mirrorlist.Mirror, len(cfg.Mirrors))
	for i, m := range cfg.Mirrors {
		mirrors[i] = mirrorlist.Mirror{URL: m.URL, Name: m.Name, Location: m.Location}
	}
	list := mirrorlist.New(mirrors)
	t := transport.New(productName, updaterVersion, localGameVersion, hostVersion)

	return &Updater{
		state:            StateUnknown,
		rootDir:          rootDir,
		observer:         observer,
		log:              logger,
		mirrors:          list,
		transport:        t,
		engine:           download.New(t, logger),
		cfg:              cfg,
		localGameVersion: localGameVersion,
		updaterVersion:   updaterVersion,
	}
}

// State returns the orchestrator's current VersionState.
func (u *Updater) State() VersionState {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// Plan returns the most recently built download plan, or nil if none
// has been built yet.
func (u *Updater) Plan() *reconcile.Plan {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.plan
}

// ManualUpdateInfo reports whether the server requires a manual update
// (updater_version mismatch) and, if so, the download URL to direct the
// user to.
func (u *Updater) ManualUpdateInfo() (required bool, downloadURL string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.manualUpdateRequired, u.manualDownloadURL
}

// Mirrors exposes the mirror list so a host UI can reprioritize it
// between checks.
func (u *Updater) Mirrors() *mirrorlist.List {
	return u.mirrors
}

// Cancel requests that an in-flight StartUpdate stop at its next
// check point. A no-op if no update is running.
func (u *Updater) Cancel() {
	u.mu.Lock()
	token := u.cancel
	u.mu.Unlock()
	token.Cancel()
}

func (u *Updater) setState(s VersionState) {
	u.mu.Lock()
	old := u.state
	u.state = s
	u.mu.Unlock()
	if old != s {
		u.observer.OnVersionStateChanged(old, s)
	}
}

func entryKB(e manifest.FileEntry) int64 {
	if e.Archived() {
		return int64(e.ArchiveSizeKB)
	}
	return int64(e.SizeKB)
}

func (u *Updater) loadLocalManifest() *manifest.Manifest {
	data, err := os.ReadFile(filepath.Join(u.rootDir, localManifestName))
	if err != nil {
		return &manifest.Manifest{}
	}
	m, err := manifest.Parse(data, u.log)
	if err != nil {
		return &manifest.Manifest{}
	}
	return m
}

// fetchServerManifestWithFailover tries every mirror in order, starting
// from the failover cursor's current position, until one serves the
// manifest file, and parses the first one fetched; a parse error is
// returned as is, without trying further mirrors. A full pass with no
// successful fetch is ErrMirrorExhausted.
func (u *Updater) fetchServerManifestWithFailover(ctx context.Context) (*manifest.Manifest, error) {
	attempts := u.mirrors.Len()
	if attempts == 0 {
		return nil, errkind.ErrMirrorExhausted
	}
	destPath := filepath.Join(u.rootDir, stagedManifestName)

	for i := 0; i < attempts; i++ {
		mir, ok := u.mirrors.Current()
		if !ok {
			return nil, errkind.ErrMirrorExhausted
		}

		url := strings.TrimRight(mir.URL, "/") + "/version"
		if err := u.transport.Download(ctx, url, destPath, nil); err == nil {
			data, rerr := os.ReadFile(destPath)
			if rerr == nil {
				return manifest.Parse(data, u.log)
			}
			u.log.Warnf("orchestrator: reading fetched manifest from %v failed: %v", mir.Name, rerr)
		} else {
			u.log.Warnf("orchestrator: manifest fetch from %v failed: %v", mir.Name, err)
		}
		u.mirrors.Advance()
	}
	return nil, errkind.ErrMirrorExhausted
}

// runRemoteScript fetches name from the current mirror and runs it.
// Absence on the mirror (a 404, say) is not an error: both
// preupdateexec and updateexec are optional.
func (u *Updater) runRemoteScript(ctx context.Context, name string) {
	mir, ok := u.mirrors.Current()
	if !ok {
		return
	}
	url := strings.TrimRight(mir.URL, "/") + "/" + name
	path := filepath.Join(u.rootDir, name)
	if err := u.transport.Download(ctx, url, path, nil); err != nil {
		return
	}
	if err := scripts.RunFile(ctx, u.rootDir, path, u.log); err != nil {
		u.log.Warnf("orchestrator: %v failed: %v", name, err)
	}
}

// verifyLocalFileVersions repairs the local manifest in place: entries
// whose file has gone missing are dropped, and entries whose file is
// still present are rehashed so a stale identifier can't mask real
// drift. Ignore-masked entries are trusted and left untouched.
func (u *Updater) verifyLocalFileVersions(local *manifest.Manifest) {
	total := len(local.Files)
	kept := make([]manifest.FileEntry, 0, total)

	for i, f := range local.Files {
		if reconcile.IsIgnored(f.Path, u.cfg.IgnoreMasks) {
			kept = append(kept, f)
			u.observer.OnLocalFileCheckProgressChanged(i+1, total)
			continue
		}

		full := filepath.Join(u.rootDir, f.Path)
		if _, err := os.Stat(full); err != nil {
			u.observer.OnLocalFileCheckProgressChanged(i+1, total)
			continue
		}
		if h, err := hashid.Of(full); err == nil {
			f.Identifier = h
		}
		kept = append(kept, f)
		u.observer.OnLocalFileCheckProgressChanged(i+1, total)
	}

	local.Files = kept
	u.observer.OnLocalFileVersionsChecked()
}

// CheckForUpdates fetches and parses the server manifest (with mirror
// failover), compares it against the local manifest, and transitions to
// UPTODATE or OUTDATED. Rejected with ErrCheckInProgress/ErrUpdateInProgress
// if a check or update is already running.
func (u *Updater) CheckForUpdates(ctx context.Context) error {
	u.mu.Lock()
	switch u.state {
	case StateCheckInProgress:
		u.mu.Unlock()
		return ErrCheckInProgress
	case StateUpdateInProgress:
		u.mu.Unlock()
		return ErrUpdateInProgress
	}
	old := u.state
	u.state = StateCheckInProgress
	u.mu.Unlock()
	u.observer.OnVersionStateChanged(old, StateCheckInProgress)

	server, err := u.fetchServerManifestWithFailover(ctx)
	if err != nil {
		u.setState(StateUnknown)
		u.observer.OnUpdateFailed(err)
		return err
	}
	local := u.loadLocalManifest()

	u.mu.Lock()
	u.local = local
	u.server = server
	u.mu.Unlock()
	for i := range u.cfg.Components {
		c := &u.cfg.Components[i]
		if a, ok := server.AddOnByName(c.IniName); ok {
			c.RemoteIdentifier = a.Identifier
			c.RemoteSize = a.SizeKB
			if h, err := hashid.Of(filepath.Join(u.rootDir, filepath.FromSlash(c.LocalPath))); err == nil {
				c.LocalIdentifier = h
			}
		}
	}
	u.observer.OnFileIdentifiersUpdated()

	if server.GameVersion == local.GameVersion {
		u.setState(StateUpToDate)
		if reconcile.ComponentsOutdated(u.cfg.Components, u.rootDir) {
			u.observer.OnCustomComponentsOutdated()
		}
		return nil
	}

	if server.UpdaterVersion != "N/A" && server.UpdaterVersion != local.UpdaterVersion {
		u.mu.Lock()
		u.manualUpdateRequired = true
		u.manualDownloadURL = server.ManualDownloadURL
		u.mu.Unlock()
		u.setState(StateOutdated)
		return nil
	}

	plan, err := reconcile.Build(u.rootDir, local, server)
	if err != nil {
		u.setState(StateUnknown)
		u.observer.OnUpdateFailed(err)
		return err
	}
	u.mu.Lock()
	u.plan = plan
	u.mu.Unlock()
	u.setState(StateOutdated)
	return nil
}

// StartUpdate runs preupdateexec, re-verifies local file versions,
// rebuilds the plan, downloads every planned file, runs updateexec, and
// finalizes — either handing off to the second stage or, if nothing was
// staged, completing directly. Only valid from OUTDATED.
func (u *Updater) StartUpdate(ctx context.Context) error {
	u.mu.Lock()
	if u.state != StateOutdated {
		u.mu.Unlock()
		return ErrNotOutdated
	}
	old := u.state
	u.state = StateUpdateInProgress
	token := NewCancelToken(ctx)
	u.cancel = token
	server := u.server
	local := u.local
	u.mu.Unlock()
	u.observer.OnVersionStateChanged(old, StateUpdateInProgress)

	if server == nil {
		return u.finishWithError(errkind.ErrManifestMalformed)
	}
	if local == nil {
		local = &manifest.Manifest{}
	}

	runCtx := token.Context()

	u.runRemoteScript(runCtx, preUpdateScript)

	u.verifyLocalFileVersions(local)

	plan, err := reconcile.Build(u.rootDir, local, server)
	if err != nil {
		return u.finishWithError(err)
	}
	u.mu.Lock()
	u.plan = plan
	u.mu.Unlock()

	var totalDoneKB int64
	for _, f := range plan.Files {
		if runCtx.Err() != nil {
			return u.cancelUpdate()
		}

		mir, ok := u.mirrors.Current()
		if !ok {
			return u.finishWithError(errkind.ErrMirrorExhausted)
		}

		entry := f
		progress := func(pct float64, done int64) {
			totalPct := 0.0
			if plan.TotalKB > 0 {
				totalPct = float64(totalDoneKB)/float64(plan.TotalKB)*100 + pct/100*float64(entryKB(entry))/float64(plan.TotalKB)*100
			}
			u.observer.OnUpdateProgress(entry.Path, pct, totalPct)
		}

		if err := u.engine.FetchPlanFile(runCtx, u.rootDir, mir.URL, entry, progress); err != nil {
			if runCtx.Err() != nil {
				return u.cancelUpdate()
			}
			return u.finishWithError(err)
		}

		totalDoneKB += entryKB(entry)
		archiveName := ""
		if entry.Archived() {
			archiveName = filepath.Base(entry.Path) + ".lzma"
		}
		u.observer.OnFileDownloadCompleted(archiveName)

		if runCtx.Err() != nil {
			return u.cancelUpdate()
		}
	}

	u.runRemoteScript(runCtx, postUpdateScript)

	if err := u.finalize(runCtx, server); err != nil {
		return u.finishWithError(err)
	}
	return nil
}

func (u *Updater) finishWithError(err error) error {
	u.mu.Lock()
	u.cancel = nil
	u.mu.Unlock()
	u.setState(StateUnknown)
	u.observer.OnUpdateFailed(err)
	return err
}

// cancelUpdate reverts to OUTDATED and clears the cancel token,
// preserving whatever is already staged so the next attempt resumes
// from cache.
func (u *Updater) cancelUpdate() error {
	u.mu.Lock()
	u.cancel = nil
	u.mu.Unlock()
	u.setState(StateOutdated)
	return errkind.ErrCancelled
}

// finalize applies the outcome of a completed download pass. If a
// staging directory was populated, the new manifest is moved into it, a
// staged second-stage binary (if any) is copied over the live one under
// Resources/, and a second-stage process is spawned to finish the swap. Otherwise everything was
// already written directly to rootDir, so the version file is simply
// promoted and the update completes without a restart.
func (u *Updater) finalize(ctx context.Context, server *manifest.Manifest) error {
	stageDir := filepath.Join(u.rootDir, stagingDirName)
	versionUPath := filepath.Join(u.rootDir, stagedManifestName)

	if info, err := os.Stat(stageDir); err == nil && info.IsDir() {
		if err := renameOrCopy(versionUPath, filepath.Join(stageDir, localManifestName)); err != nil {
			return err
		}

		themeSrc := filepath.Join(stageDir, "Theme_c.ini")
		if _, err := os.Stat(themeSrc); err == nil {
			themeDst := filepath.Join(u.rootDir, "INI", "Theme.ini")
			os.MkdirAll(filepath.Dir(themeDst), 0o775)
			copyFile(themeSrc, themeDst)
		}

		stagedBinary := filepath.Join(stageDir, "Resources", secondStageBinaryName())
		if _, err := os.Stat(stagedBinary); err == nil {
			liveBinary := filepath.Join(u.rootDir, "Resources", secondStageBinaryName())
			os.MkdirAll(filepath.Dir(liveBinary), 0o775)
			copyFile(stagedBinary, liveBinary)
		}

		exe, err := os.Executable()
		if err != nil {
			exe = "client"
		}
		if err := spawnSecondStage(filepath.Base(exe), u.rootDir); err != nil {
			return errors.Wrap(errkind.ErrLauncherMissing, err.Error())
		}

		u.mu.Lock()
		u.cancel = nil
		u.mu.Unlock()
		u.observer.OnRestart()
		return nil
	}

	if err := renameOrCopy(versionUPath, filepath.Join(u.rootDir, localManifestName)); err != nil {
		return err
	}

	local := u.loadLocalManifest()
	u.verifyLocalFileVersions(local)

	u.mu.Lock()
	u.local = local
	u.cancel = nil
	u.mu.Unlock()
	u.setState(StateUpToDate)
	u.observer.OnUpdateCompleted()
	return nil
}

func secondStageBinaryName() string {
	if runtime.GOOS == "windows" {
		return "SecondStageUpdater.exe"
	}
	return "SecondStageUpdater"
}

// spawnSecondStage launches the bootstrap binary under rootDir/Resources
// with the two
// positional arguments it expects: the client executable name and the
// installation root.
func spawnSecondStage(clientExeName, rootDir string) error {
	bin := filepath.Join(rootDir, "Resources", secondStageBinaryName())
	if _, err := os.Stat(bin); err != nil {
		return errors.Wrap(errkind.ErrLauncherMissing, "second-stage binary missing: "+err.Error())
	}
	cmd := exec.Command(bin, clientExeName, rootDir)
	return cmd.Start()
}

func renameOrCopy(src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(errkind.ErrFilesystemFailed, err.Error())
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o775); err != nil {
		return errors.Wrap(errkind.ErrFilesystemFailed, err.Error())
	}
	if err := os.Rename(src, dst); err != nil {
		if cerr := copyFile(src, dst); cerr != nil {
			return errors.Wrap(errkind.ErrFilesystemFailed, cerr.Error())
		}
		os.Remove(src)
	}
	return nil
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
