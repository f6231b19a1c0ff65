/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/friendsincode/haulroster/internal/events"
	"github.com/friendsincode/haulroster/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig contains Redis pub/sub configuration.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	ChannelPrefix string

	// Consecutive publish failures before the bus stops using Redis.
	MaxFailures int
}

// DefaultRedisConfig returns default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:          "localhost:6379",
		ChannelPrefix: DefaultSubjectPrefix,
		MaxFailures:   5,
	}
}

// RedisBus fans events out over Redis pub/sub with an in-memory fallback.
type RedisBus struct {
	client *redis.Client
	local  *events.Bus
	logger zerolog.Logger
	prefix string
	nodeID string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	channels    map[events.EventType]*redis.PubSub
	useFallback bool
	failCount   int
	maxFails    int
}

// NewRedisBus creates a Redis-backed event bus. An unreachable Redis yields
// an in-memory bus.
func NewRedisBus(cfg RedisConfig, nodeID string, logger zerolog.Logger) (*RedisBus, error) {
	if cfg.ChannelPrefix == "" {
		cfg.ChannelPrefix = DefaultSubjectPrefix
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	ctx, cancel := context.WithCancel(context.Background())
	rb := &RedisBus{
		local:    events.NewBus(),
		logger:   logger.With().Str("component", "eventbus").Str("transport", "redis").Logger(),
		prefix:   cfg.ChannelPrefix,
		nodeID:   nodeID,
		ctx:      ctx,
		cancel:   cancel,
		channels: make(map[events.EventType]*redis.PubSub),
		maxFails: cfg.MaxFailures,
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		rb.logger.Warn().Err(err).Msg("Redis connection failed, using in-memory event bus")
		rb.useFallback = true
		return rb, nil
	}

	rb.client = client
	rb.logger.Info().Str("addr", cfg.Addr).Msg("Redis event bus initialized")
	return rb, nil
}

// Subscribe registers a local subscriber and, on first use of the event
// type, a Redis subscription relaying remote events.
func (rb *RedisBus) Subscribe(eventType events.EventType) events.Subscriber {
	sub := rb.local.Subscribe(eventType)

	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.useFallback {
		return sub
	}
	if _, ok := rb.channels[eventType]; ok {
		return sub
	}

	pubsub := rb.client.Subscribe(rb.ctx, subject(rb.prefix, eventType))
	// Wait for the subscription confirmation so that events published right
	// after Subscribe returns are not missed.
	if _, err := pubsub.Receive(rb.ctx); err != nil {
		rb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("Redis subscribe failed")
		_ = pubsub.Close()
		return sub
	}
	rb.channels[eventType] = pubsub

	rb.wg.Add(1)
	go rb.receive(eventType, pubsub)
	return sub
}

func (rb *RedisBus) receive(eventType events.EventType, pubsub *redis.PubSub) {
	defer rb.wg.Done()
	ch := pubsub.Channel()

	for {
		select {
		case <-rb.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				rb.logger.Debug().Str("event_type", string(eventType)).Msg("Redis channel closed")
				return
			}
			env, err := unmarshalEnvelope([]byte(msg.Payload))
			if err != nil {
				rb.logger.Error().Err(err).Msg("dropping malformed Redis message")
				continue
			}
			if env.NodeID == rb.nodeID {
				continue
			}
			rb.local.Publish(env.EventType, env.Payload)
		}
	}
}

// Publish delivers locally, then to Redis unless the breaker has tripped.
func (rb *RedisBus) Publish(eventType events.EventType, payload events.Payload) {
	rb.local.Publish(eventType, payload)
	telemetry.EventsPublishedTotal.WithLabelValues(string(eventType), "memory").Inc()

	rb.mu.Lock()
	fallback := rb.useFallback
	rb.mu.Unlock()
	if fallback {
		return
	}

	data, err := marshalEnvelope(eventType, payload, rb.nodeID)
	if err != nil {
		rb.logger.Error().Err(err).Msg("failed to marshal Redis message")
		return
	}

	ctx, cancel := context.WithTimeout(rb.ctx, 2*time.Second)
	defer cancel()
	if err := rb.client.Publish(ctx, subject(rb.prefix, eventType), data).Err(); err != nil {
		rb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to Redis")
		rb.handleFailure()
		return
	}
	telemetry.EventsPublishedTotal.WithLabelValues(string(eventType), "redis").Inc()

	rb.mu.Lock()
	rb.failCount = 0
	rb.mu.Unlock()
}

// Unsubscribe removes a local subscriber.
func (rb *RedisBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	rb.local.Unsubscribe(eventType, sub)
}

// Fallback reports whether the bus has stopped using Redis.
func (rb *RedisBus) Fallback() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.useFallback
}

func (rb *RedisBus) handleFailure() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.failCount++
	if rb.failCount >= rb.maxFails && !rb.useFallback {
		rb.logger.Warn().Int("fail_count", rb.failCount).Msg("Redis failure threshold reached, switching to in-memory fallback")
		rb.useFallback = true
	}
}

// Close stops receivers, closes local subscribers and the Redis client.
func (rb *RedisBus) Close() error {
	rb.cancel()

	rb.mu.Lock()
	for eventType, pubsub := range rb.channels {
		_ = pubsub.Close()
		delete(rb.channels, eventType)
	}
	rb.mu.Unlock()

	rb.wg.Wait()
	_ = rb.local.Close()

	if rb.client != nil {
		return rb.client.Close()
	}
	return nil
}
