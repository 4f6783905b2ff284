package internal

import (
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Key purposes. Each sub-key is derived independently from the master secret
// so that no two components share key material.
const (
	PurposeSessionAEAD  = "session-aead"
	PurposeFingerprint  = "fingerprint"
	PurposeCookieHash   = "cookie-hash"
	PurposeCookieBlock  = "cookie-block"
	PurposeBootstrapJWT = "bootstrap-jwt"
)

const keyInfoPrefix = "sessiongate/v1/"

// DeriveKey expands secret into a size-byte key bound to purpose.
func DeriveKey(secret []byte, purpose string, size int) ([]byte, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty master secret")
	}
	if purpose == "" || size <= 0 {
		return nil, errors.New("invalid key derivation request")
	}
	r := hkdf.New(sha256.New, secret, nil, []byte(keyInfoPrefix+purpose))
	out := make([]byte, size)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

// KeySet holds every sub-key derived from one master secret.
type KeySet struct {
	SessionAEAD []byte
	Fingerprint []byte
	CookieHash  []byte
	CookieBlock []byte
	Bootstrap   []byte
}

// DeriveKeySet derives all sub-keys from secret.
func DeriveKeySet(secret []byte) (KeySet, error) {
	var ks KeySet
	for _, d := range []struct {
		dst     *[]byte
		purpose string
		size    int
	}{
		{&ks.SessionAEAD, PurposeSessionAEAD, 32},
		{&ks.Fingerprint, PurposeFingerprint, 32},
		{&ks.CookieHash, PurposeCookieHash, 64},
		{&ks.CookieBlock, PurposeCookieBlock, 32},
		{&ks.Bootstrap, PurposeBootstrapJWT, 32},
	} {
		k, err := DeriveKey(secret, d.purpose, d.size)
		if err != nil {
			return KeySet{}, err
		}
		*d.dst = k
	}
	return ks, nil
}
