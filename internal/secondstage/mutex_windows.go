//go:build windows

package secondstage

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"

	"github.com/IMQS/clientupdater/internal/errkind"
)

type windowsMutex struct {
	handle windows.Handle
}

func newNamedMutex() (namedMutex, error) {
	name, err := windows.UTF16PtrFromString(mutexID)
	if err != nil {
		return nil, errors.Wrap(errkind.ErrMutexTimeout, err.Error())
	}
	h, err := windows.CreateMutex(nil, false, name)
	if err != nil {
		return nil, errors.Wrap(errkind.ErrMutexTimeout, err.Error())
	}
	return &windowsMutex{handle: h}, nil
}

func (m *windowsMutex) acquire(timeout time.Duration) (bool, error) {
	ev, err := windows.WaitForSingleObject(m.handle, uint32(timeout/time.Millisecond))
	switch ev {
	case windows.WAIT_OBJECT_0:
		return false, nil
	case windows.WAIT_ABANDONED:
		return true, nil
	case windows.WAIT_TIMEOUT:
		return false, errkind.ErrMutexTimeout
	default:
		if err != nil {
			return false, errors.Wrap(errkind.ErrMutexTimeout, err.Error())
		}
		return false, errkind.ErrMutexTimeout
	}
}

func (m *windowsMutex) release() {
	windows.ReleaseMutex(m.handle)
	windows.CloseHandle(m.handle)
}
