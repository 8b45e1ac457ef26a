package commands

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/dyluth/warren/internal/config"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/trace"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// openRedisStore connects to the session's trace in Redis and verifies the
// connection.
func openRedisStore(ctx context.Context, redisURL, session string) (*trace.RedisStore, error) {
	if redisURL == "" {
		redisURL = os.Getenv("REDIS_URL")
	}
	if redisURL == "" {
		return nil, printer.Error(
			"Redis URL required",
			"This command reads the trace from Redis.",
			[]string{"Pass --redis-url redis://localhost:6379", "Set REDIS_URL"},
		)
	}
	if err := config.ValidateSessionName(session); err != nil {
		return nil, printer.Error(
			"invalid session name",
			err.Error(),
			[]string{"Pass the session used by 'warren solve' with --session"},
		)
	}

	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	store, err := trace.NewRedisStore(redisOpts, session)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace store: %w", err)
	}

	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", redisURL),
			map[string]string{"Session": session, "Error": err.Error()},
			[]string{"Check that Redis is running and reachable"},
		)
	}
	return store, nil
}

// openStore returns the trace store selected by cfg.
func openStore(ctx context.Context, cfg *config.WarrenConfig) (trace.Store, error) {
	if cfg.Trace.Backend == "redis" {
		return openRedisStore(ctx, cfg.Trace.RedisURL, cfg.Session)
	}
	return trace.NewMemoryStore(), nil
}

var nonSessionChars = regexp.MustCompile(`[^a-z0-9-]+`)

// defaultSession derives a fresh session name from the problem name.
func defaultSession(problem string) string {
	base := strings.Trim(nonSessionChars.ReplaceAllString(strings.ToLower(problem), "-"), "-")
	if base == "" {
		base = "warren"
	}
	if len(base) > 40 {
		base = strings.TrimRight(base[:40], "-")
	}
	return fmt.Sprintf("%s-%s", base, uuid.New().String()[:8])
}
