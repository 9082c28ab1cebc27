// Package sink delivers fetch results to durable destinations: a Postgres
// table, a GCS bucket or a Pub/Sub topic.
package sink

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/fetcher/internal/fetcher"
)

// Provider names accepted by New.
const (
	ProviderNone     = "none"
	ProviderPostgres = "postgres"
	ProviderGCS      = "gcs"
	ProviderPubSub   = "pubsub"
)

// Sink receives completed results. Implementations must be safe for
// concurrent use.
type Sink interface {
	Write(ctx context.Context, results []fetcher.Result) error
	Close() error
}

// Config selects and configures a Sink.
type Config struct {
	Provider string
	Postgres PostgresConfig
	GCS      GCSConfig
	PubSub   PubSubConfig
}

// Nop discards results.
type Nop struct{}

// Write implements Sink.
func (Nop) Write(context.Context, []fetcher.Result) error { return nil }

// Close implements Sink.
func (Nop) Close() error { return nil }

// New builds the Sink named by cfg.Provider. An empty provider yields Nop.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Sink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderNone:
		logger.Debug("result sink disabled")
		return Nop{}, nil
	case ProviderPostgres:
		logger.Info("using postgres result sink", zap.String("table", cfg.Postgres.Table))
		return asSink(NewPostgres(ctx, cfg.Postgres))
	case ProviderGCS:
		logger.Info("using gcs result sink", zap.String("bucket", cfg.GCS.Bucket))
		return asSink(NewGCS(ctx, cfg.GCS))
	case ProviderPubSub:
		logger.Info("using pubsub result sink", zap.String("topic", cfg.PubSub.TopicID))
		return asSink(NewPubSub(ctx, cfg.PubSub))
	default:
		return nil, fmt.Errorf("unknown sink provider: %s", cfg.Provider)
	}
}

// asSink keeps a typed nil out of the Sink interface.
func asSink[S Sink](s S, err error) (Sink, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
