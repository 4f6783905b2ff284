package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

var errPayloadVersion = errors.New("invalid session payload version")

// MarshalBinary encodes rec in the current schema version. The first byte of
// the output is always CurrentSchemaVersion.
func MarshalBinary(rec *Record) ([]byte, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteByte(CurrentSchemaVersion)

	for _, f := range []struct {
		name  string
		value string
	}{
		{"id", rec.ID},
		{"subjectID", rec.SubjectID},
		{"email", rec.Email},
		{"displayName", rec.DisplayName},
		{"tenantID", rec.TenantID},
	} {
		if err := writeString(&buf, f.name, f.value); err != nil {
			return nil, err
		}
	}

	buf.WriteByte(byte(rec.OnboardingState))

	if err := binary.Write(&buf, binary.BigEndian, rec.IssuedAt.UnixMilli()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, rec.ExpiresAt.UnixMilli()); err != nil {
		return nil, err
	}

	if err := writeString(&buf, "fingerprint", rec.Fingerprint); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a payload written by MarshalBinary or by an earlier
// schema version. Records from older versions are migrated forward in memory;
// Version reports what was read.
func UnmarshalBinary(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != CurrentSchemaVersion && version != SchemaVersionV1 {
		return nil, fmt.Errorf("%w: %d", errPayloadVersion, version)
	}

	rec := &Record{Version: version}

	if rec.ID, err = readString(reader); err != nil {
		return nil, err
	}
	if rec.SubjectID, err = readString(reader); err != nil {
		return nil, err
	}
	if rec.Email, err = readString(reader); err != nil {
		return nil, err
	}
	if version == CurrentSchemaVersion {
		if rec.DisplayName, err = readString(reader); err != nil {
			return nil, err
		}
	}
	if rec.TenantID, err = readString(reader); err != nil {
		return nil, err
	}

	state, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	rec.OnboardingState = OnboardingState(state)
	if !rec.OnboardingState.Valid() {
		return nil, ErrUnknownState
	}

	var issued, expires int64
	if err := binary.Read(reader, binary.BigEndian, &issued); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &expires); err != nil {
		return nil, err
	}

	if version == SchemaVersionV1 {
		// v1 stored whole seconds.
		rec.IssuedAt = time.Unix(issued, 0).UTC()
		rec.ExpiresAt = time.Unix(expires, 0).UTC()
	} else {
		rec.IssuedAt = time.UnixMilli(issued).UTC()
		rec.ExpiresAt = time.UnixMilli(expires).UTC()
		if rec.Fingerprint, err = readString(reader); err != nil {
			return nil, err
		}
	}

	if reader.Len() != 0 {
		return nil, errors.New("session: trailing bytes in payload")
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

func writeString(buf *bytes.Buffer, name, v string) error {
	if len(v) > 255 {
		return fmt.Errorf("session: %s too long", name)
	}
	buf.WriteByte(byte(len(v)))
	buf.WriteString(v)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
