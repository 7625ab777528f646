package server

import (
	"encoding/json"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// recorder 记录发往某个连接的所有帧
type recorder struct {
	mu     sync.Mutex
	frames []Envelope
	closed bool
}

func (r *recorder) Enqueue(b []byte) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		panic(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, env)
}

func (r *recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *recorder) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.frames))
	for _, f := range r.frames {
		out = append(out, f.Type)
	}
	return out
}

func (r *recorder) count(eventType string) int {
	n := 0
	for _, t := range r.types() {
		if t == eventType {
			n++
		}
	}
	return n
}

// last 解码最后一条指定类型的帧
func (r *recorder) last(t *testing.T, eventType string, v any) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.frames) - 1; i >= 0; i-- {
		if r.frames[i].Type == eventType {
			require.NoError(t, json.Unmarshal(r.frames[i].Data, v))
			return
		}
	}
	t.Fatalf("no %q frame recorded, got %v", eventType, r.frames)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeClock) {
	t.Helper()
	cfg := DefaultConfig()
	clock := newFakeClock()
	c := NewCoordinator(cfg.Game, cfg.RateLimit, zaptest.NewLogger(t).Sugar(),
		WithClock(clock.Now), WithRand(rand.New(rand.NewSource(1))))
	return c, clock
}

func msg(t *testing.T, eventType string, payload any) Envelope {
	t.Helper()
	env := Envelope{Type: eventType}
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		env.Data = b
	}
	return env
}

// connectAndJoin 在测试协程内直接驱动处理函数，不经过事件循环
func connectAndJoin(t *testing.T, c *Coordinator, id PlayerID) *recorder {
	t.Helper()
	rec := &recorder{}
	c.handleConnect(id, rec)
	c.handleMessage(id, msg(t, EventJoinGame, JoinGameMessage{GameType: "snake"}))
	return rec
}

// checkDirectoryInvariants 每个已注册玩家恰好映射到一个存在的房间，且房间不超员
func checkDirectoryInvariants(t *testing.T, d *Directory) {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	for pid, roomID := range d.playerRoom {
		r, ok := d.rooms[roomID]
		require.Truef(t, ok, "player %s maps to missing room %s", pid, roomID)
		_, ok = r.players[pid]
		require.Truef(t, ok, "room %s does not contain player %s", roomID, pid)
	}
	total := 0
	for id, r := range d.rooms {
		require.LessOrEqual(t, r.Len(), r.MaxPlayers, "room %s over capacity", id)
		require.Len(t, r.order, r.Len())
		total += r.Len()
	}
	require.Equal(t, len(d.playerRoom), total)
	require.Len(t, d.order, len(d.rooms))
}
