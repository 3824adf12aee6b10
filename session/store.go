package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned when the user has no live session.
	ErrNotFound = errors.New("session: not found")
	// ErrRefreshMismatch is returned by Rotate when the presented refresh
	// token is not the one currently bound to the session.
	ErrRefreshMismatch = errors.New("session: refresh token mismatch")
	// ErrUnavailable wraps transport failures of the backing store.
	ErrUnavailable = errors.New("session: store unavailable")
)

const (
	rotateStatusNotFound    int64 = 0
	rotateStatusExpired     int64 = 1
	rotateStatusMismatch    int64 = 2
	rotateStatusRotated     int64 = 3
	rotateStatusInvalidBlob int64 = 4
)

// Shared by both scripts: layout offsets follow Encode.
const parseSessionLua = `
local function read_be64(s, i)
  local v = 0
  for k = 0, 7 do
    local b = string.byte(s, i + k)
    if not b then
      return nil
    end
    v = v * 256 + b
  end
  return v
end

local function parse_session(data)
  if string.byte(data, 1) ~= 1 then
    return nil
  end
  local user_len = string.byte(data, 2)
  if not user_len or user_len == 0 then
    return nil
  end
  local refresh_offset = 3 + user_len + 32
  if #data ~= refresh_offset + 32 + 16 - 1 then
    return nil
  end
  return {
    refresh_hash = string.sub(data, refresh_offset, refresh_offset + 31),
    expires_at = read_be64(data, #data - 7)
  }
end
`

const deleteSessionScript = parseSessionLua + `
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end
redis.call("DEL", KEYS[1])
local parsed = parse_session(data)
if not parsed or not parsed.expires_at then
  return 0
end
if parsed.expires_at <= tonumber(ARGV[1]) then
  return 0
end
return 1
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

const rotateRefreshScript = parseSessionLua + `
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end

local parsed = parse_session(data)
if not parsed or not parsed.expires_at then
  return 4
end

if parsed.expires_at <= tonumber(ARGV[3]) then
  redis.call("DEL", KEYS[1])
  return 1
end

if parsed.refresh_hash ~= ARGV[1] then
  return 2
end

redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[4])
return 3
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

// RedisStore keeps one session per user under "<prefix>:<userID>".
//
// Put is a single SET, so a concurrent pair of logins for the same user
// leaves exactly one record: whichever write lands last.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a [RedisStore] backed by the given Redis client.
func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "pbs"
	}
	return &RedisStore{redis: rdb, prefix: prefix, now: time.Now}
}

// WithClock replaces the clock used for lazy expiry checks.
func (s *RedisStore) WithClock(now func() time.Time) *RedisStore {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *RedisStore) key(userID string) string {
	return s.prefix + ":" + userID
}

// Put creates or replaces the session of sess.UserID. The key TTL follows
// the session's remaining lifetime.
//
//	Performance: 1 Redis SET.
func (s *RedisStore) Put(ctx context.Context, sess *Session) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	ttl := sess.Remaining(s.now())
	if ttl <= 0 {
		return errors.New("session already expired")
	}

	if err := s.redis.Set(ctx, s.key(sess.UserID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get returns the live session of userID. An expired record is removed and
// reported as [ErrNotFound].
//
//	Performance: 1 Redis GET (+1 DEL when expired).
func (s *RedisStore) Get(ctx context.Context, userID string) (*Session, error) {
	key := s.key(userID)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}

	if sess.Expired(s.now()) {
		if err := s.redis.Del(ctx, key).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, ErrNotFound
	}

	return sess, nil
}

// Delete removes the session of userID. It returns [ErrNotFound] when there
// was no live session to remove, so a repeated call fails the same way.
//
//	Performance: 1 Lua EVALSHA.
func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	existed, err := deleteSessionLua.Run(ctx, s.redis, []string{s.key(userID)}, s.now().Unix()).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if existed == 0 {
		return ErrNotFound
	}
	return nil
}

// Rotate swaps in next only if the stored refresh digest equals presented.
//
//	Performance: 1 Lua EVALSHA (atomic compare-and-swap).
func (s *RedisStore) Rotate(ctx context.Context, userID string, presented [32]byte, next *Session) error {
	if next == nil || next.UserID != userID {
		return errors.New("rotation target does not match user")
	}
	data, err := Encode(next)
	if err != nil {
		return err
	}

	now := s.now()
	ttl := next.Remaining(now)
	if ttl <= 0 {
		return errors.New("session already expired")
	}

	code, err := rotateRefreshLua.Run(
		ctx,
		s.redis,
		[]string{s.key(userID)},
		presented[:],
		data,
		now.Unix(),
		ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch code {
	case rotateStatusRotated:
		return nil
	case rotateStatusNotFound, rotateStatusExpired:
		return ErrNotFound
	case rotateStatusMismatch:
		return ErrRefreshMismatch
	case rotateStatusInvalidBlob:
		return ErrCorrupt
	default:
		return fmt.Errorf("%w: unknown refresh script status %d", ErrUnavailable, code)
	}
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return time.Since(start), nil
}
