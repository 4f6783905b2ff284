package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := NewRedisStore(rdb, "gwtest")
	store.now = func() time.Time { return testNow }
	return store, mr
}

func storeImpls(t *testing.T) map[string]Store {
	redisStore, _ := newRedisStoreTest(t)
	return map[string]Store{
		"redis":  redisStore,
		"memory": NewMemoryStore(func() time.Time { return testNow }),
	}
}

func TestStoreSaveGetDelete(t *testing.T) {
	for name, store := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := testRecord()

			require.NoError(t, store.Save(ctx, rec))
			got, err := store.Get(ctx, rec.ID)
			require.NoError(t, err)
			requireSameRecord(t, rec, got)

			require.NoError(t, store.Delete(ctx, rec.ID))
			require.NoError(t, store.Delete(ctx, rec.ID))
			_, err = store.Get(ctx, rec.ID)
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreLastWriterWins(t *testing.T) {
	for name, store := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := testRecord()
			require.NoError(t, store.Save(ctx, rec))

			next := *rec
			next.OnboardingState = StateSetup
			require.NoError(t, store.Save(ctx, &next))

			got, err := store.Get(ctx, rec.ID)
			require.NoError(t, err)
			require.Equal(t, StateSetup, got.OnboardingState)
		})
	}
}

func TestStoreDeleteSubject(t *testing.T) {
	for name, store := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := testRecord()
			b := testRecord()
			b.ID = "second"
			other := testRecord()
			other.ID = "other"
			other.SubjectID = "someone-else"
			for _, r := range []*Record{a, b, other} {
				require.NoError(t, store.Save(ctx, r))
			}

			n, err := store.DeleteSubject(ctx, a.SubjectID)
			require.NoError(t, err)
			require.Equal(t, 2, n)

			_, err = store.Get(ctx, a.ID)
			require.ErrorIs(t, err, ErrNotFound)
			_, err = store.Get(ctx, b.ID)
			require.ErrorIs(t, err, ErrNotFound)
			_, err = store.Get(ctx, other.ID)
			require.NoError(t, err)

			n, err = store.DeleteSubject(ctx, a.SubjectID)
			require.NoError(t, err)
			require.Zero(t, n)
		})
	}
}

func TestStoreConsumeOnce(t *testing.T) {
	for name, store := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ok, err := store.ConsumeOnce(ctx, "jti-1", time.Minute)
			require.NoError(t, err)
			require.True(t, ok)

			ok, err = store.ConsumeOnce(ctx, "jti-1", time.Minute)
			require.NoError(t, err)
			require.False(t, ok)

			ok, err = store.ConsumeOnce(ctx, "jti-2", time.Minute)
			require.NoError(t, err)
			require.True(t, ok)
		})
	}
}

func TestRedisStoreExpiry(t *testing.T) {
	store, mr := newRedisStoreTest(t)
	ctx := context.Background()
	rec := testRecord()
	require.NoError(t, store.Save(ctx, rec))

	ttl := mr.TTL(store.key(rec.ID))
	require.Equal(t, 24*time.Hour, ttl)
	require.True(t, mr.TTL(store.subjectKey(rec.SubjectID)) >= ttl)

	mr.FastForward(25 * time.Hour)
	_, err := store.Get(ctx, rec.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreSubjectIndexKeepsLongestTTL(t *testing.T) {
	store, mr := newRedisStoreTest(t)
	ctx := context.Background()

	long := testRecord()
	require.NoError(t, store.Save(ctx, long))

	short := testRecord()
	short.ID = "short"
	short.ExpiresAt = testNow.Add(time.Hour)
	require.NoError(t, store.Save(ctx, short))

	require.Equal(t, 24*time.Hour, mr.TTL(store.subjectKey(long.SubjectID)))
}

func TestRedisStoreCorruptBlobIsRevoked(t *testing.T) {
	store, mr := newRedisStoreTest(t)
	require.NoError(t, mr.Set(store.key("broken"), "\x09junk"))

	_, err := store.Get(context.Background(), "broken")
	require.ErrorIs(t, err, ErrNotFound)
	require.False(t, mr.Exists(store.key("broken")))
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr := newRedisStoreTest(t)
	mr.Close()
	ctx := context.Background()

	_, err := store.Get(ctx, "x")
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.ErrorIs(t, store.Save(ctx, testRecord()), ErrStoreUnavailable)
	_, err = store.ConsumeOnce(ctx, "k", time.Second)
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.ErrorIs(t, store.Ping(ctx), ErrStoreUnavailable)
}

func TestMemoryStoreExpiry(t *testing.T) {
	now := testNow
	store := NewMemoryStore(func() time.Time { return now })
	rec := testRecord()
	require.NoError(t, store.Save(context.Background(), rec))

	now = rec.ExpiresAt
	_, err := store.Get(context.Background(), rec.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.Zero(t, store.Len())
}
