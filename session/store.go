package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by a Store when no live record exists for an id.
var ErrNotFound = errors.New("session not found in store")

// ErrStoreUnavailable wraps every backend failure of a Store.
var ErrStoreUnavailable = errors.New("session store unavailable")

// Store is the authoritative copy of session state. Writes are
// last-writer-wins per session id.
type Store interface {
	// Save upserts rec and expires it at rec.ExpiresAt.
	Save(ctx context.Context, rec *Record) error
	// Get returns ErrNotFound for unknown or expired ids.
	Get(ctx context.Context, id string) (*Record, error)
	// Delete is idempotent.
	Delete(ctx context.Context, id string) error
	// DeleteSubject removes every session of a subject and reports how many
	// live sessions were removed.
	DeleteSubject(ctx context.Context, subjectID string) (int, error)
	// ConsumeOnce records key and reports whether this call was the first
	// to do so within ttl.
	ConsumeOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

const deleteSessionScript = `
local existed = redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if redis.call("SCARD", KEYS[2]) == 0 then
  redis.call("DEL", KEYS[2])
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// The subject index lives as long as its longest-lived member.
const saveSessionScript = `
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
redis.call("SADD", KEYS[2], ARGV[2])
local ttl = tonumber(redis.call("PTTL", KEYS[2]))
if ttl < tonumber(ARGV[3]) then
  redis.call("PEXPIRE", KEYS[2], ARGV[3])
end
return 1
`

var saveSessionLua = redis.NewScript(saveSessionScript)

// RedisStore keeps records under <prefix>:sess:<id>, indexes them per subject
// under <prefix>:subj:<subject> and keeps single-use markers under
// <prefix>:once:<key>.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore returns a Store backed by client. An empty prefix defaults to
// "gw".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "gw"
	}
	return &RedisStore{redis: client, prefix: prefix, now: time.Now}
}

func (s *RedisStore) key(id string) string { return s.prefix + ":sess:" + id }

func (s *RedisStore) subjectKey(subjectID string) string { return s.prefix + ":subj:" + subjectID }

func (s *RedisStore) onceKey(key string) string { return s.prefix + ":once:" + key }

// Save implements Store.
//
//	Performance: one script call (SET, SADD, conditional PEXPIRE).
func (s *RedisStore) Save(ctx context.Context, rec *Record) error {
	data, err := MarshalBinary(rec)
	if err != nil {
		return err
	}
	ttl := rec.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.Delete(ctx, rec.ID)
	}

	ms := ttl.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	keys := []string{s.key(rec.ID), s.subjectKey(rec.SubjectID)}
	err = saveSessionLua.Run(ctx, s.redis, keys, data, rec.ID, ms).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	rec, err := UnmarshalBinary(data)
	if err != nil {
		// A blob we cannot read is treated as revoked.
		_ = s.redis.Del(ctx, s.key(id)).Err()
		return nil, ErrNotFound
	}
	if rec.ID != id || rec.Expired(s.now()) {
		if err := s.deleteWithIndex(ctx, id, rec.SubjectID); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return rec, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	rec, err := UnmarshalBinary(data)
	if err != nil {
		if err := s.redis.Del(ctx, s.key(id)).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return nil
	}
	return s.deleteWithIndex(ctx, id, rec.SubjectID)
}

func (s *RedisStore) deleteWithIndex(ctx context.Context, id, subjectID string) error {
	err := deleteSessionLua.Run(ctx, s.redis, []string{s.key(id), s.subjectKey(subjectID)}, id).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// DeleteSubject implements Store.
//
// The member set is read before deletion, so a session saved concurrently
// with this call may survive it. It expires on its own or is caught by the
// next call.
func (s *RedisStore) DeleteSubject(ctx context.Context, subjectID string) (int, error) {
	subjectKey := s.subjectKey(subjectID)
	ids, err := s.redis.SMembers(ctx, subjectKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, s.key(id))
	}

	var delCmd *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			delCmd = pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, subjectKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if delCmd == nil {
		return 0, nil
	}
	return int(delCmd.Val()), nil
}

// ConsumeOnce implements Store.
func (s *RedisStore) ConsumeOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Second
	}
	ok, err := s.redis.SetNX(ctx, s.onceKey(key), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ok, nil
}

// Ping checks connectivity to the backing Redis.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
