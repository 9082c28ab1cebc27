package sink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewSelectsProvider(t *testing.T) {
	t.Parallel()

	for _, provider := range []string{"", "none", " NONE "} {
		s, err := New(context.Background(), Config{Provider: provider}, zap.NewNop())
		require.NoError(t, err)
		require.IsType(t, Nop{}, s)
		require.NoError(t, s.Write(context.Background(), sampleResults()))
		require.NoError(t, s.Close())
	}

	_, err := New(context.Background(), Config{Provider: "kafka"}, nil)
	require.EqualError(t, err, "unknown sink provider: kafka")
}

func TestNewPropagatesProviderErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		provider string
		want     string
	}{
		{ProviderPostgres, "sink.postgres.dsn is required"},
		{ProviderGCS, "sink.gcs.bucket is required"},
		{ProviderPubSub, "sink.pubsub.project_id"},
	}
	for _, tt := range tests {
		_, err := New(context.Background(), Config{Provider: tt.provider}, zap.NewNop())
		require.ErrorContains(t, err, tt.want)
	}
}
