// Package redis connects the claim store to Redis and exports pool metrics.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"iam/internal/platform/config"
)

// PoolMetrics mirrors redis.PoolStats. Cumulative pool counters are exported
// as counters advanced by the delta between samples.
type PoolMetrics struct {
	Hits       prometheus.Counter
	Misses     prometheus.Counter
	Timeouts   prometheus.Counter
	StaleConns prometheus.Counter
	TotalConns prometheus.Gauge
	IdleConns  prometheus.Gauge
}

func NewPoolMetrics(reg prometheus.Registerer) *PoolMetrics {
	f := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return f.NewCounter(prometheus.CounterOpts{Name: "iam_redis_pool_" + name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{Name: "iam_redis_pool_" + name, Help: help})
	}
	return &PoolMetrics{
		Hits:       counter("hits_total", "Connections found free in the pool"),
		Misses:     counter("misses_total", "Connections not found free in the pool"),
		Timeouts:   counter("timeouts_total", "Waits for a pool connection that timed out"),
		StaleConns: counter("stale_conns_total", "Stale connections removed from the pool"),
		TotalConns: gauge("total_conns", "Connections currently in the pool"),
		IdleConns:  gauge("idle_conns", "Idle connections currently in the pool"),
	}
}

// Client is a go-redis client plus pool sampling.
type Client struct {
	*redis.Client
	metrics *PoolMetrics
	last    redis.PoolStats
}

// New dials Redis from cfg and pings it. Pool metrics go to the default
// registerer. An empty URL means Redis is not used, reported as nil, nil.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	return NewWithRegisterer(ctx, cfg, prometheus.DefaultRegisterer)
}

func NewWithRegisterer(ctx context.Context, cfg config.RedisConfig, reg prometheus.Registerer) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Client{Client: rdb, metrics: NewPoolMetrics(reg)}, nil
}

func (c *Client) Metrics() *PoolMetrics {
	return c.metrics
}

// Health is the readiness check.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// RunPoolStats samples the pool every interval until ctx is done.
func (c *Client) RunPoolStats(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.RecordPoolStats()
		}
	}
}

// RecordPoolStats takes one sample. Only RunPoolStats should call it
// concurrently with traffic; samples themselves must not overlap.
func (c *Client) RecordPoolStats() {
	stats := *c.PoolStats()

	c.metrics.TotalConns.Set(float64(stats.TotalConns))
	c.metrics.IdleConns.Set(float64(stats.IdleConns))
	addDelta(c.metrics.Hits, stats.Hits, c.last.Hits)
	addDelta(c.metrics.Misses, stats.Misses, c.last.Misses)
	addDelta(c.metrics.Timeouts, stats.Timeouts, c.last.Timeouts)
	addDelta(c.metrics.StaleConns, stats.StaleConns, c.last.StaleConns)

	c.last = stats
}

func addDelta(c prometheus.Counter, now, prev uint32) {
	if now > prev {
		c.Add(float64(now - prev))
	}
}
