package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// AvailabilityCache keeps recently computed availability views per doctor.
// Cached reads may be slightly stale; booking re-validates inside its
// transaction, so staleness only affects what the calendar shows.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

func NewAvailabilityCache(client *redis.Client, ttl time.Duration, log zerolog.Logger) *AvailabilityCache {
	return &AvailabilityCache{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

func datesKey(doctorID uuid.UUID, serviceID *uuid.UUID) string {
	svc := "-"
	if serviceID != nil {
		svc = serviceID.String()
	}
	return fmt.Sprintf("avail:%s:dates:%s", doctorID, svc)
}

func timesKey(doctorID, serviceID uuid.UUID, date string) string {
	return fmt.Sprintf("avail:%s:times:%s:%s", doctorID, serviceID, date)
}

func (c *AvailabilityCache) GetDates(ctx context.Context, doctorID uuid.UUID, serviceID *uuid.UUID) ([]string, bool) {
	return c.get(ctx, datesKey(doctorID, serviceID))
}

func (c *AvailabilityCache) SetDates(ctx context.Context, doctorID uuid.UUID, serviceID *uuid.UUID, dates []string) {
	c.set(ctx, datesKey(doctorID, serviceID), dates)
}

func (c *AvailabilityCache) GetTimes(ctx context.Context, doctorID, serviceID uuid.UUID, date string) ([]string, bool) {
	return c.get(ctx, timesKey(doctorID, serviceID, date))
}

func (c *AvailabilityCache) SetTimes(ctx context.Context, doctorID, serviceID uuid.UUID, date string, times []string) {
	c.set(ctx, timesKey(doctorID, serviceID, date), times)
}

// InvalidateDoctor drops every cached view for one doctor. Called after any
// slot or appointment mutation for that doctor.
func (c *AvailabilityCache) InvalidateDoctor(ctx context.Context, doctorID uuid.UUID) {
	pattern := fmt.Sprintf("avail:%s:*", doctorID)

	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.log.Warn().Err(err).Str("doctor_id", doctorID.String()).Msg("availability cache scan failed")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn().Err(err).Str("doctor_id", doctorID.String()).Msg("availability cache invalidation failed")
	}
}

func (c *AvailabilityCache) get(ctx context.Context, key string) ([]string, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn().Err(err).Str("key", key).Msg("availability cache read failed")
		}
		return nil, false
	}

	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("availability cache payload corrupt")
		return nil, false
	}
	return values, true
}

func (c *AvailabilityCache) set(ctx context.Context, key string, values []string) {
	raw, err := json.Marshal(values)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("availability cache write failed")
	}
}
