package server

import (
	"sync/atomic"
)

// Metrics 记录运行期的关键指标（用于监控与调试）
type Metrics struct {
	Connections    int64 // 累计连接数
	InputsAccepted int64 // 被接受的方向输入
	InputsRejected int64 // 反向或玩家已死亡被拒绝的输入
	InvalidDropped int64 // 载荷非法被丢弃的事件
	RateLimited    int64 // 被节流丢弃的附属事件
	RelaysSent     int64 // 转发给其他玩家的帧数
	SendDropped    int64 // 因发送队列满被丢弃的帧数
	SweepCount     int64 // 房间广播轮次
	TotalSweepNs   int64 // 广播累计耗时（纳秒）
}

// 以下方法允许 nil 接收者

func (m *Metrics) IncConnections() {
	if m != nil {
		atomic.AddInt64(&m.Connections, 1)
	}
}

func (m *Metrics) IncInputsAccepted() {
	if m != nil {
		atomic.AddInt64(&m.InputsAccepted, 1)
	}
}

func (m *Metrics) IncInputsRejected() {
	if m != nil {
		atomic.AddInt64(&m.InputsRejected, 1)
	}
}

func (m *Metrics) IncInvalidDropped() {
	if m != nil {
		atomic.AddInt64(&m.InvalidDropped, 1)
	}
}

func (m *Metrics) IncRateLimited() {
	if m != nil {
		atomic.AddInt64(&m.RateLimited, 1)
	}
}

func (m *Metrics) IncSendDropped() {
	if m != nil {
		atomic.AddInt64(&m.SendDropped, 1)
	}
}

func (m *Metrics) AddRelays(n int) {
	if m != nil {
		atomic.AddInt64(&m.RelaysSent, int64(n))
	}
}

func (m *Metrics) AddSweep(ns int64) {
	if m != nil {
		atomic.AddInt64(&m.SweepCount, 1)
		atomic.AddInt64(&m.TotalSweepNs, ns)
	}
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	sweeps := atomic.LoadInt64(&m.SweepCount)
	total := atomic.LoadInt64(&m.TotalSweepNs)
	var avgMs float64
	if sweeps > 0 {
		avgMs = float64(total) / float64(sweeps) / 1e6
	}
	return map[string]any{
		"connections":     atomic.LoadInt64(&m.Connections),
		"inputs_accepted": atomic.LoadInt64(&m.InputsAccepted),
		"inputs_rejected": atomic.LoadInt64(&m.InputsRejected),
		"invalid_dropped": atomic.LoadInt64(&m.InvalidDropped),
		"rate_limited":    atomic.LoadInt64(&m.RateLimited),
		"relays_sent":     atomic.LoadInt64(&m.RelaysSent),
		"send_dropped":    atomic.LoadInt64(&m.SendDropped),
		"sweep_count":     sweeps,
		"avg_sweep_ms":    avgMs,
	}
}
