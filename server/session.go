package server

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

// SessionState 连接会话状态：Unjoined -> Joined -> Closed
type SessionState int

const (
	StateUnjoined SessionState = iota
	StateJoined
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateUnjoined:
		return "unjoined"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session 将一条传输连接绑定到玩家身份与房间目录
type Session struct {
	ID    PlayerID
	Conn  Sender
	state SessionState

	dir     *Directory
	grid    *Grid
	now     func() time.Time
	log     *zap.SugaredLogger
	metrics *Metrics
}

// State 当前状态
func (s *Session) State() SessionState { return s.state }

// room 解析会话所在房间
func (s *Session) room() (*Room, *Player, error) {
	r, ok := s.dir.RoomOf(s.ID)
	if !ok {
		return nil, nil, ErrStaleReference
	}
	p, ok := r.Player(s.ID)
	if !ok {
		return nil, nil, ErrStaleReference
	}
	return r, p, nil
}

// OnJoin 分配房间并注册玩家，只在 Unjoined 状态有效
func (s *Session) OnJoin(gameType string) {
	if s.state != StateUnjoined {
		s.log.Debugw("join ignored", "player", s.ID, "state", s.state)
		return
	}
	if gameType == "" {
		gameType = "snake"
	}
	p := &Player{
		ID: s.ID,
		State: GameState{
			Snake:     []Point{s.grid.Spawn()},
			Score:     0,
			IsAlive:   true,
			Direction: DirRight,
		},
		LastUpdate: s.now(),
		Conn:       s.Conn,
	}
	r, err := s.dir.Assign(p)
	if err != nil {
		s.log.Warnw("join failed", "player", s.ID, "err", err)
		if errors.Is(err, ErrRoomNotFound) {
			s.Conn.Enqueue(Encode(EventError, ErrorPayload{Message: "Failed to join game room"}))
		}
		return
	}
	s.state = StateJoined

	count := r.Len()
	s.Conn.Enqueue(Encode(EventPlayerJoined, PlayerJoinedPayload{PlayerID: s.ID, RoomID: r.ID, PlayerCount: count}))
	n := r.Broadcast(Encode(EventPlayerJoined, PlayerJoinedPayload{PlayerID: s.ID, PlayerCount: count}), s.ID)
	s.metrics.AddRelays(n)
	s.Conn.Enqueue(Encode(EventGameStateFull, GameStatePayload{
		Room:    r.Info(),
		Players: r.Views(),
		Food:    r.Food,
	}))
	s.log.Infow("player joined", "player", s.ID, "room", r.ID, "gameType", gameType,
		"count", count, "max", r.MaxPlayers)
}

// OnInput 方向输入：校验合法且不为反向后更新并转发给同房间其他人
func (s *Session) OnInput(dir Direction, ts int64) {
	if s.state != StateJoined {
		return
	}
	r, p, err := s.room()
	if err != nil {
		s.log.Debugw("input dropped", "player", s.ID, "err", err)
		return
	}
	if !p.State.IsAlive {
		s.metrics.IncInputsRejected()
		return
	}
	if !dir.Valid() {
		s.metrics.IncInvalidDropped()
		return
	}
	if p.State.Direction.Opposite() == dir {
		s.metrics.IncInputsRejected()
		return
	}
	p.State.Direction = dir
	s.metrics.IncInputsAccepted()
	n := r.Broadcast(Encode(EventInputUpdate, InputUpdatePayload{PlayerID: s.ID, Direction: dir, Timestamp: ts}), s.ID)
	s.metrics.AddRelays(n)
}

// OnGameStateUpdate 合并客户端上报的部分状态并转发。
// 不校验状态是否可由上一状态推得。
func (s *Session) OnGameStateUpdate(partial PartialState, ts int64) {
	if s.state != StateJoined {
		return
	}
	r, p, err := s.room()
	if err != nil {
		s.log.Debugw("state update dropped", "player", s.ID, "err", err)
		return
	}
	p.State.Merge(partial)
	p.LastUpdate = s.now()
	n := r.Broadcast(Encode(EventPlayerUpdate, PlayerUpdatePayload{PlayerID: s.ID, GameState: p.View().GameState, Timestamp: ts}), s.ID)
	s.metrics.AddRelays(n)
}

// Relay 把附属事件转发给同房间其他玩家，未加入时丢弃
func (s *Session) Relay(b []byte) {
	if s.state != StateJoined {
		return
	}
	r, _, err := s.room()
	if err != nil {
		return
	}
	s.metrics.AddRelays(r.Broadcast(b, s.ID))
}

// OnDisconnect 任意状态可调用，幂等
func (s *Session) OnDisconnect() {
	if s.state == StateClosed {
		return
	}
	prev := s.state
	s.state = StateClosed
	if prev != StateJoined {
		return
	}
	r, ok := s.dir.RemovePlayer(s.ID)
	if !ok {
		return
	}
	s.metrics.AddRelays(r.Broadcast(Encode(EventPlayerLeft, PlayerLeftPayload{PlayerID: s.ID, PlayerCount: r.Len()}), s.ID))
	if r.Len() == 0 {
		s.log.Infow("removed empty room", "room", r.ID)
	}
}
