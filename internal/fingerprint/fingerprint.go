package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Digest streams r through SHA-256 and returns the hex digest.
// The result depends only on the bytes read, never on filename or time,
// which is what makes it usable as a dedup key. Hashing a file while it
// is being saved is a matter of handing Digest a TeeReader.
func Digest(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
