package server

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchConfig 监听配置文件变化，重新加载成功后回调 onChange。
// 监听所在目录而不是文件本身，编辑器以重命名方式保存时也能收到事件。
func WatchConfig(ctx context.Context, path string, log *zap.SugaredLogger, onChange func(Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = w.Close()
		return fmt.Errorf("watch config: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch config: %w", err)
	}

	go func() {
		defer w.Close()
		// 同一次保存往往触发多个事件，合并后再加载
		var debounce <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
					debounce = time.After(100 * time.Millisecond)
				}
			case <-debounce:
				debounce = nil
				cfg, err := LoadConfig(abs)
				if err != nil {
					log.Warnw("config reload failed", "path", abs, "err", err)
					continue
				}
				log.Infow("config reloaded", "path", abs)
				onChange(cfg)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warnw("config watcher error", "err", err)
			}
		}
	}()
	return nil
}

// ApplyReload 把可热更新的部分（日志级别、节流规则）应用到运行中的服务
func ApplyReload(ctx context.Context, prev, next Config, level zap.AtomicLevel, coord *Coordinator, log *zap.SugaredLogger) {
	if err := SetLogLevel(level, next.Log.Level); err != nil {
		log.Warnw("invalid log level in reloaded config", "err", err)
	}
	if err := coord.SetRateLimits(ctx, next.RateLimit); err != nil {
		log.Warnw("apply rate limits", "err", err)
	}
	if prev.Game != next.Game || prev.WS != next.WS || prev.Addr != next.Addr {
		log.Warn("game, ws and addr settings changed; restart required to apply them")
	}
}
