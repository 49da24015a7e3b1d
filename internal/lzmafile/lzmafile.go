// Package lzmafile decompresses the LZMA-framed archives the manifest
// archiver produces: 5 bytes of LZMA coder properties, followed by 8
// little-endian bytes of plaintext length, followed by the compressed
// stream. That is exactly the classic ".lzma" alone-format header, so
// github.com/ulikunitz/xz/lzma's reader parses it without any custom
// framing code on this side.
package lzmafile

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/ulikunitz/xz/lzma"

	"github.com/IMQS/clientupdater/internal/errkind"
)

// Decompress streams srcPath (LZMA-framed) to dstPath (plaintext).
// If srcPath's compressed stream ends before the declared plaintext
// length is produced, this fails rather than silently truncating — the
// decoder does not trust the length field blindly. Trailing bytes past
// the declared length are ignored. On error or cancellation, dstPath is
// removed.
func Decompress(ctx context.Context, srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return errors.Wrap(errkind.ErrDecompressFailed, err.Error())
	}
	defer src.Close()

	r, err := lzma.NewReader(src)
	if err != nil {
		return errors.Wrap(errkind.ErrDecompressFailed, err.Error())
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		return errors.Wrap(errkind.ErrDecompressFailed, err.Error())
	}

	fail := func(err error) error {
		dst.Close()
		os.Remove(dstPath)
		return err
	}

	buf := make([]byte, 32*1024)
	for {
		if ctx.Err() != nil {
			return fail(errkind.ErrCancelled)
		}
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return fail(errors.Wrap(errkind.ErrFilesystemFailed, werr.Error()))
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			// Includes io.ErrUnexpectedEOF when the stream ends before the
			// header's declared plaintext length is reached.
			return fail(errors.Wrap(errkind.ErrDecompressFailed, rerr.Error()))
		}
	}

	if err := dst.Close(); err != nil {
		os.Remove(dstPath)
		return errors.Wrap(errkind.ErrFilesystemFailed, err.Error())
	}
	return nil
}

// Compress streams srcPath (plaintext) to dstPath as an LZMA-framed
// archive, for the manifest publisher to produce the archived form of a
// content file.
func Compress(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return errors.Wrap(errkind.ErrDecompressFailed, err.Error())
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return errors.Wrap(errkind.ErrDecompressFailed, err.Error())
	}

	w, err := lzma.NewWriter(dst)
	if err != nil {
		dst.Close()
		os.Remove(dstPath)
		return errors.Wrap(errkind.ErrDecompressFailed, err.Error())
	}

	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		dst.Close()
		os.Remove(dstPath)
		return errors.Wrap(errkind.ErrDecompressFailed, err.Error())
	}
	if err := w.Close(); err != nil {
		dst.Close()
		os.Remove(dstPath)
		return errors.Wrap(errkind.ErrDecompressFailed, err.Error())
	}
	if err := dst.Close(); err != nil {
		os.Remove(dstPath)
		return errors.Wrap(errkind.ErrFilesystemFailed, err.Error())
	}
	return nil
}
