package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"chatroom/internal/models"

	redis "github.com/redis/go-redis/v9"
)

const (
	participantNamesKey = "chat:participants:names"
	participantSeenKey  = "chat:participants:seen"
)

// insertParticipant registers the display name and last-seen time in one
// step; it returns 0 when the name key is already taken.
var insertParticipant = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2]) == 0 then
	return 0
end
redis.call('HSET', KEYS[2], ARGV[1], ARGV[3])
return 1
`)

// touchParticipant raises last-seen to ARGV[2] unless it is already newer;
// it returns -1 for an unknown name.
var touchParticipant = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
	return -1
end
local current = tonumber(redis.call('HGET', KEYS[2], ARGV[1]) or '0')
if tonumber(ARGV[2]) > current then
	redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
end
return 1
`)

// RedisParticipantRepo stores participants in two Redis hashes keyed by the
// case-folded name: one holds the display name, the other last-seen in unix nanos.
type RedisParticipantRepo struct {
	client *redis.Client
}

func NewRedisParticipantRepo(client *redis.Client) *RedisParticipantRepo {
	return &RedisParticipantRepo{client: client}
}

// ConnectRedis parses url, pings the server and returns the client.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return c, nil
}

var _ ParticipantRepo = (*RedisParticipantRepo)(nil)

func (r *RedisParticipantRepo) FindByName(ctx context.Context, name string) (models.Participant, error) {
	key := models.NameKey(name)

	var nameCmd, seenCmd *redis.StringCmd
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		nameCmd = pipe.HGet(ctx, participantNamesKey, key)
		seenCmd = pipe.HGet(ctx, participantSeenKey, key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return models.Participant{}, fmt.Errorf("redis: find participant: %w", err)
	}

	display, err := nameCmd.Result()
	if errors.Is(err, redis.Nil) {
		return models.Participant{}, ErrNotFound
	}
	if err != nil {
		return models.Participant{}, err
	}

	seen, err := seenCmd.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return models.Participant{}, fmt.Errorf("redis: parse last seen: %w", err)
	}

	return models.Participant{Name: display, LastSeen: time.Unix(0, seen)}, nil
}

func (r *RedisParticipantRepo) Insert(ctx context.Context, p models.Participant) error {
	keys := []string{participantNamesKey, participantSeenKey}
	n, err := insertParticipant.Run(ctx, r.client, keys, models.NameKey(p.Name), p.Name, p.LastSeen.UnixNano()).Int()
	if err != nil {
		return fmt.Errorf("redis: insert participant: %w", err)
	}
	if n == 0 {
		return ErrDuplicate
	}
	return nil
}

func (r *RedisParticipantRepo) UpdateLastSeen(ctx context.Context, name string, seen time.Time) error {
	keys := []string{participantNamesKey, participantSeenKey}
	n, err := touchParticipant.Run(ctx, r.client, keys, models.NameKey(name), seen.UnixNano()).Int()
	if err != nil {
		return fmt.Errorf("redis: update last seen: %w", err)
	}
	if n < 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RedisParticipantRepo) Delete(ctx context.Context, name string) error {
	key := models.NameKey(name)

	var removed *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.HDel(ctx, participantNamesKey, key)
		pipe.HDel(ctx, participantSeenKey, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: delete participant: %w", err)
	}
	if removed.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RedisParticipantRepo) ListAll(ctx context.Context) ([]models.Participant, error) {
	var namesCmd, seenCmd *redis.MapStringStringCmd
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		namesCmd = pipe.HGetAll(ctx, participantNamesKey)
		seenCmd = pipe.HGetAll(ctx, participantSeenKey)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis: list participants: %w", err)
	}

	seen := seenCmd.Val()
	out := make([]models.Participant, 0, len(namesCmd.Val()))
	for key, display := range namesCmd.Val() {
		nanos, _ := strconv.ParseInt(seen[key], 10, 64)
		out = append(out, models.Participant{Name: display, LastSeen: time.Unix(0, nanos)})
	}
	sort.Slice(out, func(i, j int) bool {
		return models.NameKey(out[i].Name) < models.NameKey(out[j].Name)
	})
	return out, nil
}
