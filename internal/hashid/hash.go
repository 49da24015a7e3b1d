// Package hashid computes the updater's on-wire content identifier.
//
// The identifier is not hex — it is the decimal representation of each
// byte of an MD5 digest, concatenated with no separators. This exact
// textual form is what existing manifests contain, so it has to be
// preserved for compatibility rather than "improved" to hex or base64.
package hashid

import (
	"crypto/md5"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Of streams path through MD5 and returns its manifest identifier.
// The file is opened for shared reading and streamed, never mapped, so a
// concurrent writer elsewhere on the system does not wedge the hasher.
func Of(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "identifier unavailable")
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrap(err, "identifier unavailable")
	}

	sum := h.Sum(nil)
	var sb strings.Builder
	sb.Grow(len(sum) * 3)
	for _, b := range sum {
		sb.WriteString(strconv.Itoa(int(b)))
	}
	return sb.String(), nil
}

// Equal compares two identifiers case-insensitively, per spec.
func Equal(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
