package app_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/fetcher/internal/app"
	"github.com/JakeFAU/fetcher/internal/config"
	"github.com/JakeFAU/fetcher/internal/sink"
)

func TestNewApp_Success(t *testing.T) {
	t.Chdir(t.TempDir())

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  max_concurrency: 3\nlogging:\n  development: false\n  level: error\n"), 0o600))

	a, err := app.NewApp(context.Background(), path)
	require.NoError(t, err)
	require.NotNil(t, a)
	t.Cleanup(a.Close)

	assert.NotNil(t, a.GetLogger())
	assert.Equal(t, 3, a.Config().Engine.MaxConcurrency)
	assert.Equal(t, 3, a.GetEngine().Stats().Capacity)
}

func TestNewApp_ConfigErrors(t *testing.T) {
	testCases := []struct {
		name          string
		content       string
		expectedError string
	}{
		{
			name:          "invalid concurrency",
			content:       "engine:\n  max_concurrency: 0\n",
			expectedError: "engine.max_concurrency must be > 0",
		},
		{
			name:          "auth without key",
			content:       "auth:\n  enabled: true\n",
			expectedError: "auth.api_key must be set",
		},
		{
			name:          "unknown sink",
			content:       "sink:\n  provider: kafka\n",
			expectedError: "unknown sink.provider",
		},
		{
			name:          "bad log level",
			content:       "logging:\n  level: loud\n",
			expectedError: "parse log level",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0o600))

			a, err := app.NewApp(context.Background(), path)
			require.Error(t, err)
			assert.Nil(t, a)
			assert.Contains(t, err.Error(), tc.expectedError)
		})
	}
}

func TestNew_UsesConfiguredEngine(t *testing.T) {
	cfg := config.Config{
		Engine: config.EngineConfig{
			MaxConcurrency:   2,
			DefaultTimeout:   time.Second,
			HostPollInterval: 10 * time.Millisecond,
		},
	}

	a := app.New(cfg, zap.NewNop(), nil)
	stats := a.GetEngine().Stats()
	assert.Equal(t, 2, stats.Capacity)
	assert.Zero(t, stats.InFlight)
	assert.Empty(t, stats.ActiveHosts)
	assert.IsType(t, sink.Nop{}, a.GetSink())
	a.Close()
}

type recordingSink struct {
	sink.Nop
	closed bool
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

func TestApp_CloseClosesSink(t *testing.T) {
	rs := &recordingSink{}
	a := app.New(config.Config{}, zap.NewNop(), rs)
	require.Same(t, rs, a.GetSink())

	a.Close()
	assert.True(t, rs.closed)
}
