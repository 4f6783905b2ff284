package session

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, KeySize)
}

func testRecord() *Record {
	return &Record{
		ID:              "0192f3a4-sess",
		SubjectID:       "user-42",
		Email:           "owner@example.com",
		DisplayName:     "Acme Owner",
		TenantID:        "8f14e45f-ceea-467e-a7b1-6c2b0d8a3f10",
		OnboardingState: StatePayment,
		IssuedAt:        testNow,
		ExpiresAt:       testNow.Add(24 * time.Hour),
		Fingerprint:     "c0ffee",
		Version:         CurrentSchemaVersion,
	}
}

func requireSameRecord(t *testing.T, want, got *Record) {
	t.Helper()
	if !want.SyncEqual(got) {
		t.Fatalf("record mismatch\nwant %+v\n got %+v", *want, *got)
	}
}

// encodeV1 writes the previous schema so migration can be exercised.
func encodeV1(rec *Record) []byte {
	var buf bytes.Buffer
	buf.WriteByte(SchemaVersionV1)
	for _, v := range []string{rec.ID, rec.SubjectID, rec.Email, rec.TenantID} {
		buf.WriteByte(byte(len(v)))
		buf.WriteString(v)
	}
	buf.WriteByte(byte(rec.OnboardingState))
	_ = binary.Write(&buf, binary.BigEndian, rec.IssuedAt.Unix())
	_ = binary.Write(&buf, binary.BigEndian, rec.ExpiresAt.Unix())
	return buf.Bytes()
}
