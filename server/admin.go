package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// Admin 运维接口：统计、指标与节流规则热更新
type Admin struct {
	coord *Coordinator
}

func NewAdmin(coord *Coordinator) *Admin {
	return &Admin{coord: coord}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// HandleStats GET /admin/stats 返回房间统计
func (a *Admin) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	st, err := a.coord.Stats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleMetrics GET /metrics 输出运行指标
func (a *Admin) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"metrics": a.coord.Metrics().Snapshot()})
}

// rateLimitBody 时长以毫秒表示
type rateLimitBody struct {
	DefaultIntervalMs *int64           `json:"defaultIntervalMs,omitempty"`
	RetentionMs       *int64           `json:"retentionMs,omitempty"`
	PurgeIntervalMs   *int64           `json:"purgeIntervalMs,omitempty"`
	ActionsMs         map[string]int64 `json:"actionsMs,omitempty"`
}

func ms(d time.Duration) *int64 {
	v := d.Milliseconds()
	return &v
}

// HandleRateLimit 节流规则的读取与更新
// GET  /admin/ratelimit  返回当前规则
// POST /admin/ratelimit  以 JSON 载荷更新部分字段，actionsMs 中的条目逐个覆盖
func (a *Admin) HandleRateLimit(w http.ResponseWriter, r *http.Request) {
	cur, err := a.coord.RateLimits(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	switch r.Method {
	case http.MethodGet:
		body := rateLimitBody{
			DefaultIntervalMs: ms(cur.DefaultInterval),
			RetentionMs:       ms(cur.Retention),
			PurgeIntervalMs:   ms(cur.PurgeInterval),
			ActionsMs:         make(map[string]int64, len(cur.Actions)),
		}
		for k, v := range cur.Actions {
			body.ActionsMs[k] = v.Milliseconds()
		}
		writeJSON(w, http.StatusOK, body)
	case http.MethodPost:
		var body rateLimitBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if body.DefaultIntervalMs != nil {
			cur.DefaultInterval = time.Duration(*body.DefaultIntervalMs) * time.Millisecond
		}
		if body.RetentionMs != nil {
			cur.Retention = time.Duration(*body.RetentionMs) * time.Millisecond
		}
		if body.PurgeIntervalMs != nil {
			if *body.PurgeIntervalMs <= 0 {
				http.Error(w, "purgeIntervalMs must be positive", http.StatusBadRequest)
				return
			}
			cur.PurgeInterval = time.Duration(*body.PurgeIntervalMs) * time.Millisecond
		}
		for k, v := range body.ActionsMs {
			cur.Actions[k] = time.Duration(v) * time.Millisecond
		}
		if err := a.coord.SetRateLimits(r.Context(), cur); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// Routes 注册 HTTP 路由
func Routes(coord *Coordinator, ws *WSHandler, staticDir string) *http.ServeMux {
	admin := NewAdmin(coord)
	mux := http.NewServeMux()
	mux.Handle("/ws", ws)
	// 前后端分离：将 / 映射到静态资源目录
	mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	mux.HandleFunc("/admin/stats", admin.HandleStats)
	mux.HandleFunc("/admin/ratelimit", admin.HandleRateLimit)
	mux.HandleFunc("/metrics", admin.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
