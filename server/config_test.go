package server

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9090"
log:
  level: warn
game:
  max_players: 2
  sweep_interval: 50ms
rate_limit:
  default_interval: 200ms
  actions:
    ping: 1s
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 2, cfg.Game.MaxPlayers)
	assert.Equal(t, 50*time.Millisecond, cfg.Game.SweepInterval)
	assert.Equal(t, 30*time.Second, cfg.Game.HeartbeatInterval, "unset fields keep defaults")
	assert.Equal(t, 40, cfg.Game.GridWidth)
	assert.Equal(t, 200*time.Millisecond, cfg.RateLimit.DefaultInterval)
	assert.Equal(t, time.Second, cfg.RateLimit.IntervalFor(EventPing))
	assert.Equal(t, 200*time.Millisecond, cfg.RateLimit.IntervalFor(EventPlayerReady))
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "not yaml", content: "addr: [unclosed"},
		{name: "zero capacity", content: "game:\n  max_players: 0\n"},
		{name: "empty grid", content: "game:\n  grid_width: 0\n"},
		{name: "no sweep", content: "game:\n  sweep_interval: 0s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestWatchConfig_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0o644))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu  sync.Mutex
		got []Config
	)
	err := WatchConfig(ctx, path, zap.NewNop().Sugar(), func(cfg Config) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, cfg)
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\n"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0 && got[len(got)-1].Log.Level == "error"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestApplyReload(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	level := zap.NewAtomicLevel()
	prev := DefaultConfig()
	next := DefaultConfig()
	next.Log.Level = "error"
	next.RateLimit.DefaultInterval = time.Second

	ApplyReload(ctx, prev, next, level, c, zap.NewNop().Sugar())

	assert.Equal(t, zap.ErrorLevel, level.Level())
	rules, err := c.RateLimits(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Second, rules.DefaultInterval)
}

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, level, err := NewLogger(LogConfig{File: path, Level: "info", MaxSizeMB: 1})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("visible")
	require.NoError(t, SetLogLevel(level, "debug"))
	logger.Debug("now visible")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "visible")
	assert.Contains(t, string(data), "now visible")
	assert.NotContains(t, string(data), "hidden")

	assert.Error(t, SetLogLevel(level, "loud"))
	_, _, err = NewLogger(LogConfig{File: path, Level: "loud"})
	assert.Error(t, err)
}
