//go:build !windows

package secondstage

import (
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/IMQS/clientupdater/internal/errkind"
)

// unixMutex emulates the named mutex with an flock'd file under the
// system temp directory. POSIX has no cross-process kernel object
// equivalent to a Windows named mutex; flock is the closest analogue
// the pack's stack offers, and the kernel releasing it automatically
// when the holder dies is indistinguishable here from a clean release,
// so acquire never reports abandoned on this platform.
type unixMutex struct {
	fd int
}

func lockFilePath() string {
	return filepath.Join(os.TempDir(), "imqs-clientupdater.lock")
}

func newNamedMutex() (namedMutex, error) {
	fd, err := unix.Open(lockFilePath(), unix.O_CREAT|unix.O_RDWR, 0o666)
	if err != nil {
		return nil, errkind.ErrMutexTimeout
	}
	return &unixMutex{fd: fd}, nil
}

func (m *unixMutex) acquire(timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		if err := unix.Flock(m.fd, unix.LOCK_EX|unix.LOCK_NB); err == nil {
			return false, nil
		}
		if time.Now().After(deadline) {
			return false, errkind.ErrMutexTimeout
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func (m *unixMutex) release() {
	unix.Flock(m.fd, unix.LOCK_UN)
	unix.Close(m.fd)
}
