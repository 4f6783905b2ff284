package session

import (
	"testing"
	"time"
)

// FuzzRecordDecode exercises the binary payload decoder with arbitrary inputs.
// Goal: no panics, and anything accepted re-encodes.
func FuzzRecordDecode(f *testing.F) {
	encoded, err := MarshalBinary(testRecord())
	if err == nil {
		f.Add(encoded)
		f.Add(encoded[:10])
		f.Add(encoded[:len(encoded)-1])
	}
	f.Add(encodeV1(testRecord()))
	f.Add([]byte{})
	f.Add([]byte{CurrentSchemaVersion})
	f.Add([]byte{255, 255, 255})

	f.Fuzz(func(t *testing.T, data []byte) {
		rec, err := UnmarshalBinary(data)
		if err != nil {
			return
		}
		if _, err := MarshalBinary(rec); err != nil {
			t.Fatalf("decoded record does not re-encode: %v", err)
		}
	})
}

// FuzzTokenDecode feeds arbitrary strings to the codec with legacy decoding
// enabled. Nothing may panic and nothing unauthenticated may decode.
func FuzzTokenDecode(f *testing.F) {
	c, err := NewCodec(testKey(1), WithLegacyDecode(true), WithClock(func() time.Time { return testNow }))
	if err != nil {
		f.Fatal(err)
	}
	tok, err := c.Encode(testRecord())
	if err != nil {
		f.Fatal(err)
	}
	f.Add(tok)
	f.Add(tok[:len(tok)/2])
	f.Add("eyJzaWQiOiJ4In0=")
	f.Add("")

	f.Fuzz(func(t *testing.T, s string) {
		rec, err := c.Decode(s)
		if err != nil {
			return
		}
		if rec.Version != LegacyVersion && rec.Version != CurrentSchemaVersion {
			t.Fatalf("unexpected version %d", rec.Version)
		}
	})
}
