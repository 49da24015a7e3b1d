// Package errkind holds the sentinel error values that the updater
// dispatches on. Every package wraps one of these with github.com/pkg/errors
// so that errors.Cause recovers the sentinel regardless of how much context
// was layered on top of it.
package errkind

import "errors"

var (
	ErrConfigMissing     = errors.New("config-missing")
	ErrManifestMalformed = errors.New("manifest-malformed")
	ErrMirrorExhausted   = errors.New("mirror-exhausted")
	ErrTransportFailed   = errors.New("transport-failed")
	ErrHashMismatch      = errors.New("hash-mismatch")
	ErrDecompressFailed  = errors.New("decompress-failed")
	ErrScriptStepFailed  = errors.New("script-step-failed")
	ErrFilesystemFailed  = errors.New("filesystem-failed")
	ErrMutexTimeout      = errors.New("mutex-timeout")
	ErrLauncherMissing   = errors.New("launcher-missing")
	ErrCancelled         = errors.New("cancelled")
)
