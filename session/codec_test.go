package session

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T, opts ...CodecOption) *Codec {
	t.Helper()
	opts = append([]CodecOption{WithClock(func() time.Time { return testNow })}, opts...)
	c, err := NewCodec(testKey(1), opts...)
	require.NoError(t, err)
	return c
}

func TestCodecRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	rec := testRecord()

	tok, err := c.Encode(rec)
	require.NoError(t, err)

	got, err := c.Decode(tok)
	require.NoError(t, err)
	requireSameRecord(t, rec, got)
}

func TestCodecNoncesDiffer(t *testing.T) {
	c := newTestCodec(t)
	a, err := c.Encode(testRecord())
	require.NoError(t, err)
	b, err := c.Encode(testRecord())
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestCodecRejectsEveryBitFlip(t *testing.T) {
	c := newTestCodec(t)
	tok, err := c.Encode(testRecord())
	require.NoError(t, err)
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	require.NoError(t, err)

	for i := range raw {
		for bit := 0; bit < 8; bit++ {
			mut := append([]byte(nil), raw...)
			mut[i] ^= 1 << bit
			_, err := c.Decode(base64.RawURLEncoding.EncodeToString(mut))
			require.ErrorIs(t, err, ErrInvalidSession, "byte %d bit %d", i, bit)
		}
	}
}

func TestCodecRejectsTruncation(t *testing.T) {
	c := newTestCodec(t)
	tok, err := c.Encode(testRecord())
	require.NoError(t, err)
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	require.NoError(t, err)

	for n := 0; n < len(raw); n++ {
		_, err := c.Decode(base64.RawURLEncoding.EncodeToString(raw[:n]))
		require.ErrorIs(t, err, ErrInvalidSession, "len %d", n)
	}
}

func TestCodecRejectsWrongKey(t *testing.T) {
	tok, err := newTestCodec(t).Encode(testRecord())
	require.NoError(t, err)

	other, err := NewCodec(testKey(2), WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	_, err = other.Decode(tok)
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestCodecRotatedKeyDecodes(t *testing.T) {
	old, err := NewCodec(testKey(2), WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	tok, err := old.Encode(testRecord())
	require.NoError(t, err)

	c := newTestCodec(t, WithRotatedKeys(testKey(2)))
	got, err := c.Decode(tok)
	require.NoError(t, err)
	require.Equal(t, testRecord().ID, got.ID)

	// New tokens are sealed with the primary key only.
	fresh, err := c.Encode(got)
	require.NoError(t, err)
	_, err = old.Decode(fresh)
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestCodecRejectsExpired(t *testing.T) {
	c := newTestCodec(t)
	rec := testRecord()
	rec.IssuedAt = testNow.Add(-2 * time.Hour)
	rec.ExpiresAt = testNow
	tok, err := c.Encode(rec)
	require.NoError(t, err)

	_, err = c.Decode(tok)
	require.ErrorIs(t, err, ErrInvalidSession)
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestCodecRejectsUnknownTokenVersion(t *testing.T) {
	c := newTestCodec(t)
	tok, err := c.Encode(testRecord())
	require.NoError(t, err)
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	require.NoError(t, err)

	raw[0] = 7
	_, err = c.Decode(base64.RawURLEncoding.EncodeToString(raw))
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestCodecRejectsGarbage(t *testing.T) {
	c := newTestCodec(t, WithLegacyDecode(true))
	for _, tok := range []string{"", "   ", "!!!", "AA", "not-a-token", "e30"} {
		_, err := c.Decode(tok)
		require.ErrorIs(t, err, ErrInvalidSession, tok)
	}
}

func legacyToken(t *testing.T, body map[string]any) string {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(b)
}

func TestCodecLegacyDisabledByDefault(t *testing.T) {
	c := newTestCodec(t)
	tok := legacyToken(t, map[string]any{
		"session_id": "legacy-1",
		"user_id":    "user-1",
		"exp":        testNow.Add(time.Hour).Unix(),
	})
	_, err := c.Decode(tok)
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestCodecLegacyAccepted(t *testing.T) {
	c := newTestCodec(t, WithLegacyDecode(true))
	tok := legacyToken(t, map[string]any{
		"sid":              "legacy-1",
		"sub":              "user-1",
		"email":            "a@example.com",
		"tenantId":         "tenant-9",
		"needs_onboarding": false,
		"iat":              testNow.Add(-time.Hour).Unix(),
		"exp":              testNow.Add(time.Hour).Unix(),
	})

	rec, err := c.Decode(tok)
	require.NoError(t, err)
	require.Equal(t, LegacyVersion, rec.Version)
	require.Equal(t, "legacy-1", rec.ID)
	require.Equal(t, "user-1", rec.SubjectID)
	require.Equal(t, "tenant-9", rec.TenantID)
	require.Equal(t, StateComplete, rec.OnboardingState)
	require.Empty(t, rec.Fingerprint)

	// Re-issue moves it to the current scheme.
	fresh, err := c.Encode(rec)
	require.NoError(t, err)
	again, err := c.Decode(fresh)
	require.NoError(t, err)
	require.Equal(t, CurrentSchemaVersion, again.Version)
}

func TestCodecLegacyUnpadded(t *testing.T) {
	c := newTestCodec(t, WithLegacyDecode(true))
	b, err := json.Marshal(map[string]any{
		"session_id":      "legacy-2",
		"user_id":         "user-2",
		"onboarding_step": "subscription",
		"exp":             testNow.Add(time.Hour).Unix(),
	})
	require.NoError(t, err)

	rec, err := c.Decode(base64.RawURLEncoding.EncodeToString(b))
	require.NoError(t, err)
	require.Equal(t, StateSubscription, rec.OnboardingState)
	require.False(t, rec.HasTenant())
}

func TestCodecLegacyRejectsIncomplete(t *testing.T) {
	c := newTestCodec(t, WithLegacyDecode(true))
	cases := []map[string]any{
		{"user_id": "u", "exp": testNow.Add(time.Hour).Unix()},
		{"session_id": "s", "exp": testNow.Add(time.Hour).Unix()},
		{"session_id": "s", "user_id": "u"},
		{"session_id": "s", "user_id": "u", "exp": testNow.Add(-time.Minute).Unix(), "iat": testNow.Add(-time.Hour).Unix()},
		{"session_id": "s", "user_id": "u", "exp": testNow.Add(time.Hour).Unix(), "onboarding_step": "bogus"},
	}
	for i, body := range cases {
		_, err := c.Decode(legacyToken(t, body))
		require.ErrorIs(t, err, ErrInvalidSession, "case %d", i)
	}
}

func TestNewCodecRejectsShortKey(t *testing.T) {
	_, err := NewCodec([]byte("short"))
	require.Error(t, err)
	_, err = NewCodec(testKey(1), WithRotatedKeys([]byte("short")))
	require.Error(t, err)
}
