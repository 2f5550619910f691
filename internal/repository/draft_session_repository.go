package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrDraftLocked means another user holds the draft's editing lock.
var ErrDraftLocked = errors.New("draft is locked by another editor")

// DraftSessionRepository keeps the single-writer lock of each draft and a
// cache of its last saved snapshot in redis.
type DraftSessionRepository interface {
	AcquireLock(ctx context.Context, draftID, owner uint, ttl time.Duration) error
	ReleaseLock(ctx context.Context, draftID, owner uint) error
	LockOwner(ctx context.Context, draftID uint) (uint, bool, error)
	CacheSnapshot(ctx context.Context, draftID uint, version int64, payload []byte, ttl time.Duration) error
	CachedSnapshot(ctx context.Context, draftID uint) (int64, []byte, bool, error)
	InvalidateSnapshot(ctx context.Context, draftID uint) error
}

type redisDraftSessionRepository struct {
	redisClient *redis.Client
}

func NewDraftSessionRepository(redisClient *redis.Client) DraftSessionRepository {
	return &redisDraftSessionRepository{redisClient: redisClient}
}

func lockKey(draftID uint) string     { return fmt.Sprintf("draft:%d:lock", draftID) }
func snapshotKey(draftID uint) string { return fmt.Sprintf("draft:%d:snapshot", draftID) }

// releaseScript deletes the lock only if owner still holds it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireLock takes the lock for owner, or extends it when owner already
// holds it.
func (r *redisDraftSessionRepository) AcquireLock(ctx context.Context, draftID, owner uint, ttl time.Duration) error {
	ownerValue := strconv.FormatUint(uint64(owner), 10)
	ok, err := r.redisClient.SetNX(ctx, lockKey(draftID), ownerValue, ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire draft lock: %w", err)
	}
	if ok {
		return nil
	}

	current, err := r.redisClient.Get(ctx, lockKey(draftID)).Result()
	if err == redis.Nil {
		// expired between SETNX and GET
		return r.AcquireLock(ctx, draftID, owner, ttl)
	}
	if err != nil {
		return fmt.Errorf("read draft lock: %w", err)
	}
	if current != ownerValue {
		return ErrDraftLocked
	}
	return r.redisClient.Expire(ctx, lockKey(draftID), ttl).Err()
}

func (r *redisDraftSessionRepository) ReleaseLock(ctx context.Context, draftID, owner uint) error {
	ownerValue := strconv.FormatUint(uint64(owner), 10)
	return releaseScript.Run(ctx, r.redisClient, []string{lockKey(draftID)}, ownerValue).Err()
}

func (r *redisDraftSessionRepository) LockOwner(ctx context.Context, draftID uint) (uint, bool, error) {
	v, err := r.redisClient.Get(ctx, lockKey(draftID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("malformed lock owner %q: %w", v, err)
	}
	return uint(id), true, nil
}

// CacheSnapshot stores payload as a hash {version, payload}.
func (r *redisDraftSessionRepository) CacheSnapshot(ctx context.Context, draftID uint, version int64, payload []byte, ttl time.Duration) error {
	key := snapshotKey(draftID)
	pipe := r.redisClient.TxPipeline()
	pipe.HSet(ctx, key, "version", version, "payload", payload)
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *redisDraftSessionRepository) CachedSnapshot(ctx context.Context, draftID uint) (int64, []byte, bool, error) {
	vals, err := r.redisClient.HGetAll(ctx, snapshotKey(draftID)).Result()
	if err != nil {
		return 0, nil, false, err
	}
	payload, ok := vals["payload"]
	if !ok {
		return 0, nil, false, nil
	}
	version, err := strconv.ParseInt(vals["version"], 10, 64)
	if err != nil {
		return 0, nil, false, nil
	}
	return version, []byte(payload), true, nil
}

func (r *redisDraftSessionRepository) InvalidateSnapshot(ctx context.Context, draftID uint) error {
	return r.redisClient.Del(ctx, snapshotKey(draftID)).Err()
}
