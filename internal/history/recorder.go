// Package history hands finished match results to the external history
// service. The arena's only obligation is an append to a Redis stream; the
// history service consumes it at its own pace, so a slow or absent consumer
// never backs up into the game loop.
package history

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/redis/go-redis/v9"

	"pong-arena/internal/config"
	"pong-arena/internal/game"
)

// RedisRecorder appends match results to a Redis stream.
type RedisRecorder struct {
	client *redis.Client
	stream string
}

// NewRedisRecorder connects to Redis and verifies the connection.
func NewRedisRecorder(ctx context.Context, cfg config.HistoryConfig) (*RedisRecorder, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return &RedisRecorder{client: client, stream: cfg.Stream}, nil
}

// Record appends one result to the stream. Called at most once per match.
func (r *RedisRecorder) Record(ctx context.Context, res game.Result) error {
	err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		Values: resultValues(res),
	}).Err()
	if err != nil {
		return fmt.Errorf("appending result for room %s: %w", res.RoomID, err)
	}
	return nil
}

// Close releases the Redis connection.
func (r *RedisRecorder) Close() error {
	return r.client.Close()
}

// resultValues flattens a result into stream fields. Scores travel as strings
// because Redis stream values are flat text.
func resultValues(res game.Result) map[string]any {
	return map[string]any{
		"room":         res.RoomID,
		"winner_id":    res.Winner.ID,
		"winner_name":  res.Winner.Name,
		"loser_id":     res.Loser.ID,
		"loser_name":   res.Loser.Name,
		"winner_score": strconv.Itoa(res.WinnerScore),
		"loser_score":  strconv.Itoa(res.LoserScore),
		"forfeit":      strconv.FormatBool(res.Forfeit),
	}
}

// LogRecorder logs results instead of persisting them. Used when no Redis
// backend is configured.
type LogRecorder struct{}

func (LogRecorder) Record(_ context.Context, res game.Result) error {
	log.Printf("🏁 %s beat %s %d-%d in room %s (forfeit=%v) - no history backend configured",
		res.Winner.Name, res.Loser.Name, res.WinnerScore, res.LoserScore, res.RoomID, res.Forfeit)
	return nil
}
