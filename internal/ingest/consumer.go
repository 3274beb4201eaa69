package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"reel/internal/config"
	"reel/internal/logging"
	"reel/internal/queue"
	"reel/internal/services"
)

// Enqueuer stores task submissions.
type Enqueuer interface {
	Enqueue(ctx context.Context, req queue.NewTask) (int64, error)
}

// Consumer reads a Redis stream through a consumer group.
type Consumer struct {
	cfg      config.Redis
	rdb      *redis.Client
	enqueuer Enqueuer
	logger   *slog.Logger
	backoff  time.Duration
}

// NewConsumer builds a consumer for the configured stream. No connection is
// made until Run.
func NewConsumer(cfg config.Redis, enqueuer Enqueuer, logger *slog.Logger) *Consumer {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Consumer{
		cfg:      cfg,
		rdb:      rdb,
		enqueuer: enqueuer,
		logger:   logging.NewComponentLogger(logger, "ingest"),
		backoff:  2 * time.Second,
	}
}

// Close releases the Redis connection pool.
func (c *Consumer) Close() error {
	return c.rdb.Close()
}

func (c *Consumer) block() time.Duration {
	if c.cfg.BlockSeconds > 0 {
		return time.Duration(c.cfg.BlockSeconds) * time.Second
	}
	return 5 * time.Second
}

// Run consumes until ctx is cancelled. Entries left pending by a previous run
// of this consumer are processed first.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}
	c.logger.Info("stream ingest started",
		logging.EventType("ingest_started"),
		logging.String("stream", c.cfg.Stream),
		logging.String("group", c.cfg.Group),
		logging.String("consumer", c.cfg.Consumer),
	)

	cursor := "0"
	for ctx.Err() == nil {
		streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.cfg.Group,
			Consumer: c.cfg.Consumer,
			Streams:  []string{c.cfg.Stream, cursor},
			Count:    16,
			Block:    c.block(),
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				break
			}
			logging.WarnWithContext(c.logger, "stream read failed; retrying", "ingest_read_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that Redis is reachable at "+c.cfg.Addr),
				logging.String(logging.FieldImpact, "remote submissions are delayed"),
			)
			if !sleepCtx(ctx, c.backoff) {
				break
			}
			continue
		}

		delivered := 0
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				delivered++
				if c.handle(ctx, msg) {
					if err := c.rdb.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil && ctx.Err() == nil {
						c.logger.Warn("stream ack failed", logging.String("entry", msg.ID), logging.Error(err),
							logging.EventType("ingest_ack_failed"),
							logging.String(logging.FieldErrorHint, "check Redis connectivity"),
							logging.String(logging.FieldImpact, "entry will be redelivered and rejected as a duplicate"),
						)
					}
				}
			}
		}
		// Backlog replay ends once no pending entries remain.
		if cursor == "0" && delivered == 0 {
			cursor = ">"
		}
	}
	c.logger.Info("stream ingest stopped", logging.EventType("ingest_stopped"))
	return nil
}

func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return services.Wrap(services.ErrExternalTool, "ingest", "create group", fmt.Sprintf("stream %s", c.cfg.Stream), err)
	}
	return nil
}

// handle stores one entry and reports whether it should be acknowledged.
// Transient store failures leave the entry pending for redelivery.
func (c *Consumer) handle(ctx context.Context, msg redis.XMessage) bool {
	logger := c.logger.With(logging.String("entry", msg.ID))
	req, err := decodeRequest(msg.Values)
	if err != nil {
		logging.WarnWithContext(logger, "discarding malformed stream entry", "ingest_invalid",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "producers must send an absolute source_path"),
			logging.String(logging.FieldImpact, "entry acknowledged without a task"),
		)
		return true
	}
	id, err := c.enqueuer.Enqueue(ctx, req.NewTask(c.cfg.LibraryID))
	switch {
	case err == nil:
		logging.WithContext(services.WithTaskID(ctx, id), logger).Info("remote task enqueued",
			logging.EventType("ingest_enqueued"),
			logging.String("source_path", req.SourcePath),
		)
		return true
	case errors.Is(err, queue.ErrDuplicateSource), errors.Is(err, services.ErrValidation):
		logging.WarnWithContext(logger, "stream entry rejected", "ingest_rejected",
			logging.Error(err),
			logging.String("source_path", req.SourcePath),
			logging.String(logging.FieldErrorHint, "the source is already queued or invalid"),
			logging.String(logging.FieldImpact, "entry acknowledged without a new task"),
		)
		return true
	default:
		logging.ErrorWithContext(logger, "failed to store stream entry", "ingest_store_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check task database access"),
		)
		return false
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
