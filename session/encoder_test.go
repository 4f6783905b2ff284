package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBinaryRoundTrip(t *testing.T) {
	rec := testRecord()
	data, err := MarshalBinary(rec)
	require.NoError(t, err)
	require.Equal(t, CurrentSchemaVersion, data[0])

	got, err := UnmarshalBinary(data)
	require.NoError(t, err)
	requireSameRecord(t, rec, got)
	require.Equal(t, CurrentSchemaVersion, got.Version)
}

func TestBinaryNilTenantRoundTrip(t *testing.T) {
	rec := testRecord()
	rec.TenantID = ""
	rec.Fingerprint = ""
	rec.OnboardingState = StateNotStarted

	data, err := MarshalBinary(rec)
	require.NoError(t, err)
	got, err := UnmarshalBinary(data)
	require.NoError(t, err)
	require.False(t, got.HasTenant())
	require.Empty(t, got.Fingerprint)
}

func TestBinaryV1Migration(t *testing.T) {
	rec := testRecord()
	got, err := UnmarshalBinary(encodeV1(rec))
	require.NoError(t, err)

	require.Equal(t, SchemaVersionV1, got.Version)
	require.Equal(t, rec.ID, got.ID)
	require.Equal(t, rec.TenantID, got.TenantID)
	require.Equal(t, rec.OnboardingState, got.OnboardingState)
	require.True(t, rec.ExpiresAt.Equal(got.ExpiresAt))
	require.Empty(t, got.DisplayName)
	require.Empty(t, got.Fingerprint)

	// Re-encoding always moves the record to the current schema.
	data, err := MarshalBinary(got)
	require.NoError(t, err)
	require.Equal(t, CurrentSchemaVersion, data[0])
}

func TestBinaryRejectsUnknownVersion(t *testing.T) {
	data, err := MarshalBinary(testRecord())
	require.NoError(t, err)
	for _, v := range []byte{0, 3, 9, 255} {
		data[0] = v
		_, err := UnmarshalBinary(data)
		require.Error(t, err, "version %d", v)
	}
}

func TestBinaryRejectsTrailingBytes(t *testing.T) {
	data, err := MarshalBinary(testRecord())
	require.NoError(t, err)
	_, err = UnmarshalBinary(append(data, 0))
	require.Error(t, err)
}

func TestBinaryRejectsInvalidRecords(t *testing.T) {
	rec := testRecord()
	rec.ExpiresAt = rec.IssuedAt
	_, err := MarshalBinary(rec)
	require.Error(t, err)

	rec = testRecord()
	rec.OnboardingState = StateComplete + 1
	_, err = MarshalBinary(rec)
	require.True(t, errors.Is(err, ErrUnknownState))

	rec = testRecord()
	rec.DisplayName = string(make([]byte, 256))
	_, err = MarshalBinary(rec)
	require.Error(t, err)
}

func TestParseOnboardingState(t *testing.T) {
	cases := map[string]OnboardingState{
		"NOT_STARTED":   StateNotStarted,
		"business-info": StateBusinessInfo,
		"subscription":  StateSubscription,
		" Payment ":     StatePayment,
		"setup":         StateSetup,
		"COMPLETE":      StateComplete,
	}
	for in, want := range cases {
		got, err := ParseOnboardingState(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := ParseOnboardingState("billing")
	require.ErrorIs(t, err, ErrUnknownState)
}

func TestOnboardingStateText(t *testing.T) {
	b, err := StateSetup.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "SETUP", string(b))

	var s OnboardingState
	require.NoError(t, s.UnmarshalText([]byte("SUBSCRIPTION")))
	require.Equal(t, StateSubscription, s)
	require.Equal(t, StateComplete, StateComplete.Next())
	require.Equal(t, StatePayment, StateSubscription.Next())
}
