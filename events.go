package clientupdater

// Observer receives every host-visible notification the Updater raises
// over the course of a check and an update. Passing one into New avoids
// a global event registry; hosts construct an Updater with whatever
// Observer they need, including two side-by-side in tests.
type Observer interface {
	OnFileIdentifiersUpdated()
	OnLocalFileCheckProgressChanged(done, total int)
	OnCustomComponentsOutdated()
	OnLocalFileVersionsChecked()
	OnUpdateCompleted()
	OnUpdateFailed(err error)
	OnVersionStateChanged(old, new VersionState)
	// OnFileDownloadCompleted reports the archive name that was just
	// unpacked, or "" when the file that completed wasn't archived.
	OnFileDownloadCompleted(archiveName string)
	OnRestart()
	OnUpdateProgress(currentFile string, filePercent, totalPercent float64)
}

// NoopObserver implements Observer with no-ops, so hosts and tests can
// embed it and override only the methods they care about.
type NoopObserver struct{}

func (NoopObserver) OnFileIdentifiersUpdated()                              {}
func (NoopObserver) OnLocalFileCheckProgressChanged(done, total int)        {}
func (NoopObserver) OnCustomComponentsOutdated()                           {}
func (NoopObserver) OnLocalFileVersionsChecked()                           {}
func (NoopObserver) OnUpdateCompleted()                                    {}
func (NoopObserver) OnUpdateFailed(err error)                              {}
func (NoopObserver) OnVersionStateChanged(old, new VersionState)           {}
func (NoopObserver) OnFileDownloadCompleted(archiveName string)            {}
func (NoopObserver) OnRestart()                                            {}
func (NoopObserver) OnUpdateProgress(file string, filePct, totalPct float64) {}

// EventKind tags a ProgressStream message with the Observer method it
// corresponds to.
type EventKind int

const (
	EventFileIdentifiersUpdated EventKind = iota
	EventLocalFileCheckProgress
	EventCustomComponentsOutdated
	EventLocalFileVersionsChecked
	EventUpdateCompleted
	EventUpdateFailed
	EventVersionStateChanged
	EventFileDownloadCompleted
	EventRestart
	EventUpdateProgress
)

// Event is one tagged message on a ProgressStream.
type Event struct {
	Kind              EventKind
	Err               error
	OldState, NewState VersionState
	Done, Total       int
	ArchiveName       string
	CurrentFile       string
	FilePercent       float64
	TotalPercent      float64
}

// ProgressStream is an Observer that funnels every notification onto a
// single channel, for hosts that would rather range over messages than
// implement every Observer method.
type ProgressStream struct {
	C chan Event
}

// NewProgressStream creates a ProgressStream with the given channel
// buffer size.
func NewProgressStream(buffer int) *ProgressStream {
	return &ProgressStream{C: make(chan Event, buffer)}
}

func (p *ProgressStream) send(e Event) {
	select {
	case p.C <- e:
	default:
		// Drop rather than block the updater's worker on a slow reader.
	}
}

func (p *ProgressStream) OnFileIdentifiersUpdated() {
	p.send(Event{Kind: EventFileIdentifiersUpdated})
}
func (p *ProgressStream) OnLocalFileCheckProgressChanged(done, total int) {
	p.send(Event{Kind: EventLocalFileCheckProgress, Done: done, Total: total})
}
func (p *ProgressStream) OnCustomComponentsOutdated() {
	p.send(Event{Kind: EventCustomComponentsOutdated})
}
func (p *ProgressStream) OnLocalFileVersionsChecked() {
	p.send(Event{Kind: EventLocalFileVersionsChecked})
}
func (p *ProgressStream) OnUpdateCompleted() {
	p.send(Event{Kind: EventUpdateCompleted})
}
func (p *ProgressStream) OnUpdateFailed(err error) {
	p.send(Event{Kind: EventUpdateFailed, Err: err})
}
func (p *ProgressStream) OnVersionStateChanged(old, new VersionState) {
	p.send(Event{Kind: EventVersionStateChanged, OldState: old, NewState: new})
}
func (p *ProgressStream) OnFileDownloadCompleted(archiveName string) {
	p.send(Event{Kind: EventFileDownloadCompleted, ArchiveName: archiveName})
}
func (p *ProgressStream) OnRestart() {
	p.send(Event{Kind: EventRestart})
}
func (p *ProgressStream) OnUpdateProgress(file string, filePct, totalPct float64) {
	p.send(Event{Kind: EventUpdateProgress, CurrentFile: file, FilePercent: filePct, TotalPercent: totalPct})
}
