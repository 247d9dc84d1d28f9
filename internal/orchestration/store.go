package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists sessions and their player slots.
type Store interface {
	Save(ctx context.Context, s *Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (*Session, error)
	// ClaimBind marks the session as bound. It returns false if it was already claimed.
	ClaimBind(ctx context.Context, id string, ttl time.Duration) (bool, error)
	SaveSlots(ctx context.Context, id string, slots []PlayerSlot, ttl time.Duration) error
	Slots(ctx context.Context, id string) ([]PlayerSlot, error)
	Delete(ctx context.Context, id string) error
	CountActive(ctx context.Context, now time.Time) (int64, error)
	NextPortSeq(ctx context.Context) (int64, error)
}

// key layout:
//
//	orch:session:{id}        -> JSON Session, expires with the session
//	orch:session:{id}:bound  -> bind claim
//	orch:session:{id}:slots  -> Hash(playerID -> JSON PlayerSlot)
//	orch:sessions            -> ZSet(id) scored by expiry time, for counting live sessions
//	orch:port_seq            -> port allocation counter
const (
	sessionsIndexKey = "orch:sessions"
	portSeqKey       = "orch:port_seq"
)

func sessionKey(id string) string { return fmt.Sprintf("orch:session:%s", id) }
func bindKey(id string) string    { return fmt.Sprintf("orch:session:%s:bound", id) }
func slotsKey(id string) string   { return fmt.Sprintf("orch:session:%s:slots", id) }

type redisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) Store {
	return &redisStore{rdb: rdb}
}

func (r *redisStore) Save(ctx context.Context, s *Session, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	expiry := float64(time.Now().Add(ttl).Unix())

	p := r.rdb.TxPipeline()
	p.Set(ctx, sessionKey(s.ID), data, ttl)
	p.ZAdd(ctx, sessionsIndexKey, redis.Z{Score: expiry, Member: s.ID})
	_, err = p.Exec(ctx)
	return err
}

func (r *redisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return &s, nil
}

func (r *redisStore) ClaimBind(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	return r.rdb.SetNX(ctx, bindKey(id), "1", ttl).Result()
}

func (r *redisStore) SaveSlots(ctx context.Context, id string, slots []PlayerSlot, ttl time.Duration) error {
	values := make([]interface{}, 0, len(slots)*2)
	for _, slot := range slots {
		data, err := json.Marshal(slot)
		if err != nil {
			return err
		}
		values = append(values, slot.PlayerID, data)
	}

	p := r.rdb.TxPipeline()
	p.HSet(ctx, slotsKey(id), values...)
	p.Expire(ctx, slotsKey(id), ttl)
	_, err := p.Exec(ctx)
	return err
}

func (r *redisStore) Slots(ctx context.Context, id string) ([]PlayerSlot, error) {
	raw, err := r.rdb.HGetAll(ctx, slotsKey(id)).Result()
	if err != nil {
		return nil, err
	}

	slots := make([]PlayerSlot, 0, len(raw))
	for playerID, data := range raw {
		var slot PlayerSlot
		if err := json.Unmarshal([]byte(data), &slot); err != nil {
			return nil, fmt.Errorf("decoding slot %s/%s: %w", id, playerID, err)
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

func (r *redisStore) Delete(ctx context.Context, id string) error {
	p := r.rdb.TxPipeline()
	p.Del(ctx, sessionKey(id), bindKey(id), slotsKey(id))
	p.ZRem(ctx, sessionsIndexKey, id)
	_, err := p.Exec(ctx)
	return err
}

// CountActive drops index entries whose session has expired and counts the rest.
func (r *redisStore) CountActive(ctx context.Context, now time.Time) (int64, error) {
	cutoff := strconv.FormatInt(now.Unix(), 10)
	if err := r.rdb.ZRemRangeByScore(ctx, sessionsIndexKey, "-inf", "("+cutoff).Err(); err != nil {
		return 0, err
	}
	return r.rdb.ZCard(ctx, sessionsIndexKey).Result()
}

func (r *redisStore) NextPortSeq(ctx context.Context) (int64, error) {
	return r.rdb.Incr(ctx, portSeqKey).Result()
}
