package server

import (
	"sync"
	"time"
)

type limitKey struct {
	conn   PlayerID
	action string
}

type limitEntry struct {
	at       time.Time
	interval time.Duration
}

// RateLimiter 按 (连接, 事件) 记录最近一次放行时间，用于节流高频事件
type RateLimiter struct {
	mu   sync.Mutex
	last map[limitKey]limitEntry
	now  func() time.Time
}

// NewRateLimiter now 为空时使用 time.Now
func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{last: make(map[limitKey]limitEntry), now: now}
}

// Allow 距上次放行不足 minInterval 时返回 false 且不更新状态
func (l *RateLimiter) Allow(conn PlayerID, action string, minInterval time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := limitKey{conn: conn, action: action}
	now := l.now()
	if e, ok := l.last[k]; ok && now.Sub(e.at) < minInterval {
		return false
	}
	l.last[k] = limitEntry{at: now, interval: minInterval}
	return true
}

// PurgeOlderThan 删除超过 maxAge 的记录，返回删除条数。
// 仍处于节流期内的记录不会被删除，即使 maxAge 比它的间隔短。
func (l *RateLimiter) PurgeOlderThan(maxAge time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	n := 0
	for k, e := range l.last {
		age := now.Sub(e.at)
		if age > maxAge && age >= e.interval {
			delete(l.last, k)
			n++
		}
	}
	return n
}

// Len 当前记录数
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.last)
}
