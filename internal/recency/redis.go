package recency

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// recordScript applies one interaction atomically on the Redis server.
//
// KEYS[1] sorted set of targets scored by interaction time (unix microseconds)
// KEYS[2] hash of target -> interaction sequence
// KEYS[3] per-subject sequence counter
// ARGV[1] target, ARGV[2] interaction time, ARGV[3] capacity
//
// Victims are the oldest interactions, lowest sequence first on equal times.
// Returns {created (1|0), evicted}.
var recordScript = redis.NewScript(`
local existed = redis.call('ZSCORE', KEYS[1], ARGV[1])
local seq = redis.call('INCR', KEYS[3])
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
redis.call('HSET', KEYS[2], ARGV[1], seq)
local cap = tonumber(ARGV[3])
local n = redis.call('ZCARD', KEYS[1])
local evicted = 0
if n > cap then
  local flat = redis.call('ZRANGE', KEYS[1], 0, -1, 'WITHSCORES')
  local items = {}
  for i = 1, #flat, 2 do
    local s = tonumber(redis.call('HGET', KEYS[2], flat[i])) or 0
    items[#items + 1] = {flat[i], tonumber(flat[i + 1]), s}
  end
  table.sort(items, function(a, b)
    if a[2] ~= b[2] then
      return a[2] < b[2]
    end
    return a[3] < b[3]
  end)
  evicted = n - cap
  for i = 1, evicted do
    redis.call('ZREM', KEYS[1], items[i][1])
    redis.call('HDEL', KEYS[2], items[i][1])
  end
end
if existed then
  return {0, evicted}
end
return {1, evicted}
`)

// RedisStore keeps lists in Redis sorted sets.
//
// Each target is scored by its last interaction time and carries the
// per-subject sequence of that interaction, which orders equal times.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed store. Keys are namespaced under prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "carmarket:recency"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) keys(list List, subjectID string) (set, seqs, counter string) {
	base := s.prefix + ":" + string(list) + ":{" + subjectID + "}"
	return base + ":targets", base + ":seqs", base + ":seq"
}

// Record implements Store.
func (s *RedisStore) Record(ctx context.Context, list List, subjectID, targetID string, at time.Time, capacity int) (Result, error) {
	if !list.Valid() {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownList, list)
	}
	set, seqs, counter := s.keys(list, subjectID)

	vals, err := recordScript.Run(ctx, s.client,
		[]string{set, seqs, counter},
		targetID, at.UnixMicro(), capacity,
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("failed to record %s interaction: %w", list, err)
	}
	if len(vals) != 2 {
		return Result{}, fmt.Errorf("unexpected script reply length %d", len(vals))
	}

	res := Result{Outcome: Refreshed, Evicted: int(vals[1])}
	if vals[0] == 1 {
		res.Outcome = Created
	}
	return res, nil
}

// ListRecent implements Store.
func (s *RedisStore) ListRecent(ctx context.Context, list List, subjectID string) ([]Entry, error) {
	if !list.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownList, list)
	}
	set, seqs, _ := s.keys(list, subjectID)

	members, err := s.client.ZRevRangeWithScores(ctx, set, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", list, err)
	}
	if len(members) == 0 {
		return []Entry{}, nil
	}

	fields := make([]string, len(members))
	for i, m := range members {
		fields[i] = fmt.Sprint(m.Member)
	}
	seqValues, err := s.client.HMGet(ctx, seqs, fields...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s sequences: %w", list, err)
	}

	entries := make([]Entry, len(members))
	for i, m := range members {
		e := Entry{
			SubjectID:         subjectID,
			TargetID:          fields[i],
			LastInteractionAt: time.UnixMicro(int64(m.Score)).UTC(),
		}
		if raw, ok := seqValues[i].(string); ok {
			if seq, err := strconv.ParseInt(raw, 10, 64); err == nil {
				e.Seq = seq
			}
		}
		entries[i] = e
	}
	slices.SortStableFunc(entries, func(a, b Entry) int {
		switch {
		case newer(a, b):
			return -1
		case newer(b, a):
			return 1
		default:
			return 0
		}
	})
	return entries, nil
}
