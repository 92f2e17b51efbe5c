package probe

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hamed0406/healthmon/internal/domain"
)

// cacheClient is the subset of the redis client the cache probe needs.
type cacheClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Info(ctx context.Context, section ...string) *redis.StringCmd
}

// CacheProbe pings the cache tier and reads its hit ratio and memory use.
type CacheProbe struct {
	client cacheClient
	// MinHitRatePct marks the tier degraded when the keyspace hit rate is
	// below it. Zero disables the check.
	MinHitRatePct float64
}

func NewCacheProbe(client cacheClient, minHitRatePct float64) *CacheProbe {
	return &CacheProbe{client: client, MinHitRatePct: minHitRatePct}
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (c *CacheProbe) Name() string { return "cache" }

func (c *CacheProbe) Run(ctx context.Context) domain.ProbeResult {
	start := time.Now()
	if err := c.client.Ping(ctx).Err(); err != nil {
		return domain.Failed(c.Name(), start, fmt.Errorf("ping: %w", err))
	}
	latency := domain.SinceMS(start)

	out := domain.ProbeResult{
		Name:       c.Name(),
		Status:     domain.StatusHealthy,
		LatencyMS:  latency,
		ObservedAt: time.Now().UTC(),
		Detail:     map[string]any{},
	}

	stats, err := c.client.Info(ctx, "stats").Result()
	if err != nil {
		out.Status = domain.StatusDegraded
		out.Detail[domain.DetailError] = "info stats: " + err.Error()
		return out
	}
	kv := parseInfo(stats)
	hits, _ := strconv.ParseFloat(kv["keyspace_hits"], 64)
	misses, _ := strconv.ParseFloat(kv["keyspace_misses"], 64)
	if hits+misses > 0 {
		rate := hits / (hits + misses) * 100
		out.Detail["hitRatePct"] = rate
		if c.MinHitRatePct > 0 && rate < c.MinHitRatePct {
			out.Status = domain.StatusDegraded
		}
	}

	if mem, err := c.client.Info(ctx, "memory").Result(); err == nil {
		if v, err := strconv.ParseUint(parseInfo(mem)["used_memory"], 10, 64); err == nil {
			out.Detail["usedMemoryBytes"] = v
		}
	}
	if clients, err := c.client.Info(ctx, "clients").Result(); err == nil {
		if v, err := strconv.Atoi(parseInfo(clients)["connected_clients"]); err == nil {
			out.Detail["connectedClients"] = v
		}
	}
	return out
}

// parseInfo splits the "key:value" lines of a redis INFO reply.
func parseInfo(s string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if ok {
			out[k] = v
		}
	}
	return out
}
