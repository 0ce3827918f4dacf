package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kjstillabower/weather-snapshot-service/internal/models"
	"github.com/kjstillabower/weather-snapshot-service/internal/observability"
)

const (
	redisSnapshotPrefix = "weather:snapshot:"
	redisCityPrefix     = "weather:city:"
	redisRecentKey      = "weather:recent"

	// Index members whose snapshot key vanished are pruned on read; bound the retries.
	maxDanglingRetries = 3
)

// RedisRepository stores each snapshot as JSON under weather:snapshot:<id> and indexes it
// in two sorted sets scored by capture time: weather:recent and weather:city:<location>.
type RedisRepository struct {
	client redis.UniversalClient
}

// NewRedisClient connects to addr and verifies the connection with PING.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// NewRedisRepository wraps an existing client. The caller owns the client's lifecycle.
func NewRedisRepository(client redis.UniversalClient) *RedisRepository {
	return &RedisRepository{client: client}
}

func snapshotKey(id string) string    { return redisSnapshotPrefix + id }
func cityIndexKey(city string) string { return redisCityPrefix + cityKey(city) }

// captureScore uses milliseconds so the score stays exact in a float64.
func captureScore(t time.Time) float64 { return float64(t.UnixMilli()) }

func (r *RedisRepository) GetByID(ctx context.Context, id string) (snap models.WeatherSnapshot, found bool, err error) {
	defer func(start time.Time) { observability.ObserveRepository(BackendRedis, "get_by_id", start, err) }(time.Now())
	return r.get(ctx, id)
}

func (r *RedisRepository) get(ctx context.Context, id string) (models.WeatherSnapshot, bool, error) {
	raw, err := r.client.Get(ctx, snapshotKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.WeatherSnapshot{}, false, nil
	}
	if err != nil {
		return models.WeatherSnapshot{}, false, fmt.Errorf("get snapshot %s: %w", id, err)
	}
	var snap models.WeatherSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return models.WeatherSnapshot{}, false, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return snap, true, nil
}

func (r *RedisRepository) GetByCity(ctx context.Context, city string) (snap models.WeatherSnapshot, found bool, err error) {
	defer func(start time.Time) { observability.ObserveRepository(BackendRedis, "get_by_city", start, err) }(time.Now())

	index := cityIndexKey(city)
	for i := 0; i < maxDanglingRetries; i++ {
		ids, err := r.client.ZRevRange(ctx, index, 0, 0).Result()
		if err != nil {
			return models.WeatherSnapshot{}, false, fmt.Errorf("read city index: %w", err)
		}
		if len(ids) == 0 {
			return models.WeatherSnapshot{}, false, nil
		}
		snap, found, err := r.get(ctx, ids[0])
		if err != nil || found {
			return snap, found, err
		}
		if err := r.client.ZRem(ctx, index, ids[0]).Err(); err != nil {
			return models.WeatherSnapshot{}, false, fmt.Errorf("prune city index: %w", err)
		}
	}
	return models.WeatherSnapshot{}, false, nil
}

// GetRecent returns up to count snapshots, most recently captured first.
func (r *RedisRepository) GetRecent(ctx context.Context, count int) (out []models.WeatherSnapshot, err error) {
	defer func(start time.Time) { observability.ObserveRepository(BackendRedis, "get_recent", start, err) }(time.Now())
	if count <= 0 {
		return []models.WeatherSnapshot{}, nil
	}

	ids, err := r.client.ZRevRange(ctx, redisRecentKey, 0, int64(count-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read recent index: %w", err)
	}
	out = make([]models.WeatherSnapshot, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = snapshotKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read snapshots: %w", err)
	}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var snap models.WeatherSnapshot
		if err := json.Unmarshal([]byte(s), &snap); err != nil {
			return nil, fmt.Errorf("decode snapshot %s: %w", ids[i], err)
		}
		out = append(out, snap)
	}
	return out, nil
}

// Save upserts the snapshot and its index entries in one MULTI/EXEC. When an existing
// snapshot moves to a different location its old city index entry is removed.
func (r *RedisRepository) Save(ctx context.Context, snapshot models.WeatherSnapshot) (err error) {
	defer func(start time.Time) { observability.ObserveRepository(BackendRedis, "save", start, err) }(time.Now())

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", snapshot.ID, err)
	}
	previous, existed, err := r.get(ctx, snapshot.ID)
	if err != nil {
		return err
	}

	score := captureScore(snapshot.CapturedAt)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if existed && cityIndexKey(previous.City) != cityIndexKey(snapshot.City) {
			pipe.ZRem(ctx, cityIndexKey(previous.City), snapshot.ID)
		}
		pipe.Set(ctx, snapshotKey(snapshot.ID), raw, 0)
		pipe.ZAdd(ctx, redisRecentKey, redis.Z{Score: score, Member: snapshot.ID})
		pipe.ZAdd(ctx, cityIndexKey(snapshot.City), redis.Z{Score: score, Member: snapshot.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", snapshot.ID, err)
	}
	return nil
}

func (r *RedisRepository) Delete(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { observability.ObserveRepository(BackendRedis, "delete", start, err) }(time.Now())

	snap, found, err := r.get(ctx, id)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, snapshotKey(id))
		pipe.ZRem(ctx, redisRecentKey, id)
		if found {
			pipe.ZRem(ctx, cityIndexKey(snap.City), id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	return nil
}

// Ping checks that redis is reachable. Used for health checks.
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
