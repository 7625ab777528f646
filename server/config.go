package server

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 服务配置（YAML），未出现的字段使用 DefaultConfig 中的值
type Config struct {
	Addr      string          `yaml:"addr"`
	StaticDir string          `yaml:"static_dir"`
	Log       LogConfig       `yaml:"log"`
	Game      GameConfig      `yaml:"game"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	WS        WSConfig        `yaml:"ws"`
}

type LogConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Console    bool   `yaml:"console"`
}

// GameConfig 房间与网格参数，修改需重启
type GameConfig struct {
	MaxPlayers        int           `yaml:"max_players"`
	GridWidth         int           `yaml:"grid_width"`
	GridHeight        int           `yaml:"grid_height"`
	SpawnMinX         int           `yaml:"spawn_min_x"`
	SpawnSpanX        int           `yaml:"spawn_span_x"`
	SpawnMinY         int           `yaml:"spawn_min_y"`
	SpawnSpanY        int           `yaml:"spawn_span_y"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

// RateLimitConfig 附属事件的节流规则，可热更新
type RateLimitConfig struct {
	DefaultInterval time.Duration            `yaml:"default_interval" json:"defaultInterval"`
	Retention       time.Duration            `yaml:"retention" json:"retention"`
	PurgeInterval   time.Duration            `yaml:"purge_interval" json:"purgeInterval"`
	Actions         map[string]time.Duration `yaml:"actions" json:"actions"`
}

// IntervalFor 某个事件的最小间隔
func (c RateLimitConfig) IntervalFor(action string) time.Duration {
	if d, ok := c.Actions[action]; ok {
		return d
	}
	return c.DefaultInterval
}

func (c RateLimitConfig) clone() RateLimitConfig {
	out := c
	out.Actions = make(map[string]time.Duration, len(c.Actions))
	for k, v := range c.Actions {
		out.Actions[k] = v
	}
	return out
}

type WSConfig struct {
	ReadLimit    int64         `yaml:"read_limit"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
	SendBuffer   int           `yaml:"send_buffer"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Addr:      ":8080",
		StaticDir: "web",
		Log: LogConfig{
			File:       "app.log",
			Level:      "debug",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		Game: GameConfig{
			MaxPlayers:        4,
			GridWidth:         40,
			GridHeight:        30,
			SpawnMinX:         5,
			SpawnSpanX:        30,
			SpawnMinY:         5,
			SpawnSpanY:        20,
			SweepInterval:     100 * time.Millisecond,
			HeartbeatInterval: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			DefaultInterval: 100 * time.Millisecond,
			Retention:       time.Minute,
			PurgeInterval:   5 * time.Minute,
			Actions: map[string]time.Duration{
				EventChatMessage: 500 * time.Millisecond,
				EventGetStats:    time.Second,
			},
		},
		WS: WSConfig{
			ReadLimit:    1 << 20, // 1MB
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 5 * time.Second,
			PingInterval: 54 * time.Second,
			SendBuffer:   64,
		},
	}
}

// LoadConfig 读取 YAML；文件不存在时返回默认配置
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate 检查会导致运行期 panic 的取值
func (c Config) Validate() error {
	g := c.Game
	switch {
	case g.MaxPlayers < 1:
		return errors.New("game.max_players must be >= 1")
	case g.GridWidth < 1 || g.GridHeight < 1:
		return errors.New("game grid must be at least 1x1")
	case g.SpawnSpanX < 1 || g.SpawnSpanY < 1:
		return errors.New("game spawn span must be >= 1")
	case g.SweepInterval <= 0 || g.HeartbeatInterval <= 0:
		return errors.New("game intervals must be positive")
	case c.RateLimit.PurgeInterval <= 0:
		return errors.New("rate_limit.purge_interval must be positive")
	case c.WS.PingInterval <= 0 || c.WS.SendBuffer < 1:
		return errors.New("ws.ping_interval and ws.send_buffer must be positive")
	}
	return nil
}
