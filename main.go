package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"snakearena/server"
)

// 入口：启动 HTTP + WebSocket 服务与多人房间协调器
func main() {
	var (
		configPath string
		addr       string
	)
	flag.StringVar(&configPath, "config", "config.yaml", "path to YAML config (optional)")
	flag.StringVar(&addr, "addr", "", "server listen address, overrides config, e.g. :8080")
	flag.Parse()

	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		panic(err)
	}
	if addr != "" {
		cfg.Addr = addr
	}

	// 使用 zap 日志库写入滚动文件
	logger, level, err := server.NewLogger(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	coord := server.NewCoordinator(cfg.Game, cfg.RateLimit, log)
	coordDone := make(chan struct{})
	go func() {
		defer close(coordDone)
		_ = coord.Run(ctx)
	}()

	if _, err := os.Stat(configPath); err == nil {
		current := cfg
		err := server.WatchConfig(ctx, configPath, log, func(next server.Config) {
			server.ApplyReload(ctx, current, next, level, coord, log)
			current = next
		})
		if err != nil {
			log.Warnw("config hot reload disabled", "err", err)
		}
	}

	ws := server.NewWSHandler(coord, cfg.WS, log)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Routes(coord, ws, cfg.StaticDir),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("snake arena listening on %s; open http://localhost%v/", cfg.Addr, cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）
	<-ctx.Done()
	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("http shutdown", "err", err)
	}
	<-coordDone
}
