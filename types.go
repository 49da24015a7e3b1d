package clientupdater

// VersionState is the Updater's observable phase, from an unchecked
// install through a check in progress, up to date or outdated, and
// finally an update in progress.
type VersionState int

const (
	StateUnknown VersionState = iota
	StateUpToDate
	StateOutdated
	StateMismatched
	StateCheckInProgress
	StateUpdateInProgress
)

func (s VersionState) String() string {
	switch s {
	case StateUnknown:
		return "Unknown"
	case StateUpToDate:
		return "UpToDate"
	case StateOutdated:
		return "Outdated"
	case StateMismatched:
		return "Mismatched"
	case StateCheckInProgress:
		return "UpdateCheckInProgress"
	case StateUpdateInProgress:
		return "UpdateInProgress"
	default:
		return "Unknown"
	}
}
