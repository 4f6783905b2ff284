package fingerprint

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/zeebo/blake3"
)

// DefaultHeaders is the ordered header list mixed into a fingerprint. The
// order is part of the fingerprint and must not change between releases.
var DefaultHeaders = []string{
	"User-Agent",
	"Accept-Language",
	"Sec-CH-UA",
	"Sec-CH-UA-Platform",
	"Sec-CH-UA-Mobile",
}

// KeySize is the required length of the fingerprint key.
const KeySize = 32

// ErrNoSalt is returned by Compute when the per-session salt is missing.
var ErrNoSalt = errors.New("fingerprint: missing salt")

// Computer derives a stable client fingerprint from request headers.
type Computer struct {
	key     []byte
	headers []string
}

// NewComputer returns a Computer keyed with key. A nil headers list uses
// DefaultHeaders.
func NewComputer(key []byte, headers []string) (*Computer, error) {
	if len(key) != KeySize {
		return nil, errors.New("fingerprint: key must be 32 bytes")
	}
	if len(headers) == 0 {
		headers = DefaultHeaders
	}
	canon := make([]string, len(headers))
	for i, h := range headers {
		canon[i] = http.CanonicalHeaderKey(strings.TrimSpace(h))
	}
	return &Computer{key: append([]byte(nil), key...), headers: canon}, nil
}

// Compute returns the hex fingerprint of r under salt. Identical header
// values yield identical output; the order headers were set in does not
// matter.
func (c *Computer) Compute(r *http.Request, salt []byte) (string, error) {
	if len(salt) == 0 {
		return "", ErrNoSalt
	}
	h, err := blake3.NewKeyed(c.key)
	if err != nil {
		return "", err
	}
	writeField(h, salt)
	for _, name := range c.headers {
		src := r.Header.Values(name)
		vals := make([]string, len(src))
		for i, v := range src {
			vals[i] = strings.TrimSpace(v)
		}
		writeField(h, []byte(name))
		writeField(h, []byte(strings.Join(vals, ",")))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeField(h *blake3.Hasher, b []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(b)))
	_, _ = h.Write(n[:])
	_, _ = h.Write(b)
}
