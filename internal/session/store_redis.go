package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/charades-server/internal/domain"
)

const (
	defaultRoomTTL = 6 * time.Hour
	keyPrefix      = "charades:"
)

// RedisStore keeps each room as one JSON document plus a player -> room index.
// Writes use WATCH on the room key so a concurrent writer fails instead of
// silently clobbering.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultRoomTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) keyRoom(code string) string { return keyPrefix + "room:" + strings.TrimSpace(code) }
func (s *RedisStore) keyPlayer(id string) string { return keyPrefix + "player:" + strings.TrimSpace(id) }
func (s *RedisStore) keyRooms() string           { return keyPrefix + "rooms" }

func (s *RedisStore) Get(ctx context.Context, code string) (*domain.GameState, error) {
	return s.load(ctx, s.rdb, code)
}

func (s *RedisStore) load(ctx context.Context, c redis.Cmdable, code string) (*domain.GameState, error) {
	raw, err := c.Get(ctx, s.keyRoom(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var st domain.GameState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, err
	}
	if st.Scores == nil {
		st.Scores = map[string]int{}
	}
	return &st, nil
}

func (s *RedisStore) Save(ctx context.Context, st *domain.GameState) error {
	if st == nil || st.Room.Code == "" {
		return ErrInvalidState
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	code := st.Room.Code
	key := s.keyRoom(code)

	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		prev, err := s.load(ctx, tx, code)
		if err != nil {
			return err
		}
		keep := make(map[string]bool, len(st.Room.Players))
		for _, p := range st.Room.Players {
			keep[p.ID] = true
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, s.ttl)
			pipe.SAdd(ctx, s.keyRooms(), code)
			pipe.Expire(ctx, s.keyRooms(), s.ttl)
			for _, p := range st.Room.Players {
				pipe.Set(ctx, s.keyPlayer(p.ID), code, s.ttl)
			}
			if prev != nil {
				for _, p := range prev.Room.Players {
					if !keep[p.ID] {
						pipe.Del(ctx, s.keyPlayer(p.ID))
					}
				}
			}
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConcurrent
	}
	return err
}

func (s *RedisStore) Delete(ctx context.Context, code string) error {
	prev, err := s.Get(ctx, code)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.keyRoom(code))
		pipe.SRem(ctx, s.keyRooms(), code)
		if prev != nil {
			for _, p := range prev.Room.Players {
				pipe.Del(ctx, s.keyPlayer(p.ID))
			}
		}
		return nil
	})
	return err
}

// Codes lists live rooms, pruning index entries whose document expired.
func (s *RedisStore) Codes(ctx context.Context) (map[string]bool, error) {
	codes, err := s.rdb.SMembers(ctx, s.keyRooms()).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(codes))
	for _, c := range codes {
		n, err := s.rdb.Exists(ctx, s.keyRoom(c)).Result()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			_ = s.rdb.SRem(ctx, s.keyRooms(), c).Err()
			continue
		}
		out[c] = true
	}
	return out, nil
}

func (s *RedisStore) RoomOfPlayer(ctx context.Context, playerID string) (string, error) {
	code, err := s.rdb.Get(ctx, s.keyPlayer(playerID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return code, err
}

func (s *RedisStore) Close() error { return s.rdb.Close() }
