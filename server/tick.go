package server

import (
	"context"
	"time"
)

// Run 事件循环：连接事件、房间广播、心跳与节流表清理都在这一个协程内串行执行。
// ctx 取消后关闭所有连接并返回。
func (c *Coordinator) Run(ctx context.Context) error {
	sweep := time.NewTicker(c.cfg.SweepInterval)
	defer sweep.Stop()
	heartbeat := time.NewTicker(c.cfg.HeartbeatInterval)
	defer heartbeat.Stop()
	c.purgeTicker = time.NewTicker(c.rules.PurgeInterval)
	defer c.purgeTicker.Stop()

	c.log.Infow("coordinator started", "sweep", c.cfg.SweepInterval, "heartbeat", c.cfg.HeartbeatInterval,
		"maxPlayers", c.cfg.MaxPlayers)
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return nil
		case ev := <-c.events:
			c.handle(ev)
		case fn := <-c.calls:
			fn()
		case <-sweep.C:
			c.sweepRooms()
		case <-heartbeat.C:
			c.heartbeat()
		case <-c.purgeTicker.C:
			c.purgeRateLimits()
		}
	}
}

// sweepRooms 为每个非空房间补齐食物并广播 room-update
func (c *Coordinator) sweepRooms() {
	start := time.Now()
	for _, r := range c.dir.Rooms() {
		if r.Len() == 0 {
			continue
		}
		if r.EnsureFood(c.grid) {
			c.log.Debugw("food spawned", "room", r.ID, "x", r.Food.X, "y", r.Food.Y)
		}
		b := Encode(EventRoomUpdate, RoomUpdatePayload{
			Food:      r.Food,
			Players:   r.Views(),
			Timestamp: c.now().UnixMilli(),
		})
		r.Broadcast(b, "")
	}
	c.metrics.AddSweep(time.Since(start).Nanoseconds())
}

// heartbeat 向所有连接（无论是否已加入房间）广播服务端时间
func (c *Coordinator) heartbeat() {
	b := Encode(EventHeartbeat, HeartbeatPayload{Timestamp: c.now().UnixMilli()})
	for _, s := range c.sessions {
		s.Conn.Enqueue(b)
	}
}

func (c *Coordinator) purgeRateLimits() {
	if n := c.limiter.PurgeOlderThan(c.rules.Retention); n > 0 {
		c.log.Debugw("rate limit entries purged", "count", n, "remaining", c.limiter.Len())
	}
}

func (c *Coordinator) shutdown() {
	for id, s := range c.sessions {
		if cl, ok := s.Conn.(closer); ok {
			cl.Close()
		}
		delete(c.sessions, id)
	}
	c.log.Info("coordinator stopped")
}
