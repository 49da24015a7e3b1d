package secondstage

import "time"

// mutexID is the fixed, globally-scoped name of the Windows mutex the
// second-stage bootstrap takes; the unix implementation locks a file
// instead.
const mutexID = `Global\IMQS-ClientUpdater-9F2B1B1E-4B0B-4B8E-9C2B-7B6E6B6E6B6E`

// namedMutex is the process-wide lock the second-stage bootstrap holds
// while it mirrors the staged tree. Nothing on the host side of this
// repository takes the lock, so acquiring it does not by itself wait for
// the host client to exit; the only pause before the copy is Run's
// one-second settle delay. Platform files provide the real
// implementation; this interface is what bootstrap.go drives.
type namedMutex interface {
	// acquire blocks up to timeout waiting for the mutex. abandoned
	// reports whether the previous holder died without releasing it,
	// which is treated the same as a clean acquire.
	acquire(timeout time.Duration) (abandoned bool, err error)
	release()
}
