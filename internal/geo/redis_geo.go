package geo

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/taxi-dispatch/internal/models"
)

// RedisFleet mirrors taxi positions into a Redis GEO set. It is a secondary
// read model fed by the location consumer; the authoritative availability
// state lives in the pool.
type RedisFleet struct {
	client *redis.Client
	key    string
}

func NewRedisFleet(addr, password, key string) *RedisFleet {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisFleet{client: c, key: key}
}

func (r *RedisFleet) Upsert(ctx context.Context, t models.Taxi) error {
	if _, err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Longitude: t.Location.Lon,
		Latitude:  t.Location.Lat,
		Name:      t.ID,
	}).Result(); err != nil {
		return err
	}
	return r.client.HSet(ctx, metaKey(t.ID), map[string]interface{}{
		"plate":   t.LicensePlate,
		"status":  string(t.Status()),
		"updated": time.Now().Format(time.RFC3339),
	}).Err()
}

// Nearby returns taxi ids within radiusKm of the given point, closest first.
func (r *RedisFleet) Nearby(ctx context.Context, c models.Coordinate, radiusKm float64, limit int) ([]string, error) {
	res, err := r.client.GeoRadius(ctx, r.key, c.Lon, c.Lat, &redis.GeoRadiusQuery{
		Radius: radiusKm,
		Unit:   "km",
		Count:  limit,
		Sort:   "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(res))
	for _, g := range res {
		ids = append(ids, g.Name)
	}
	return ids, nil
}

func (r *RedisFleet) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *RedisFleet) Close() error { return r.client.Close() }

func metaKey(id string) string { return "taxi:meta:" + id }
