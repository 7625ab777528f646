package server

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

type eventKind int

const (
	evConnect eventKind = iota
	evMessage
	evDisconnect
)

// event 由传输层协程投递给事件循环
type event struct {
	kind eventKind
	id   PlayerID
	conn Sender
	env  Envelope
}

// closer 可关闭的发送端（ClientConn）
type closer interface {
	Close()
}

// Coordinator 顶层编排：持有房间目录、会话与节流器。
// 所有状态只在 Run 的单个协程内读写，传输层只负责投递事件。
type Coordinator struct {
	cfg     GameConfig
	rules   RateLimitConfig
	log     *zap.SugaredLogger
	metrics *Metrics
	now     func() time.Time
	rng     *rand.Rand

	dir      *Directory
	grid     *Grid
	limiter  *RateLimiter
	sessions map[PlayerID]*Session

	events chan event
	calls  chan func()
	done   chan struct{}

	purgeTicker *time.Ticker
}

// Option 构造选项
type Option func(*Coordinator)

// WithClock 注入时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithRand 注入随机源（测试用）
func WithRand(rng *rand.Rand) Option {
	return func(c *Coordinator) { c.rng = rng }
}

// WithMetrics 共享指标
func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// NewCoordinator 创建协调器；调用 Run 之前不会处理任何事件
func NewCoordinator(cfg GameConfig, rules RateLimitConfig, log *zap.SugaredLogger, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:      cfg,
		rules:    rules.clone(),
		log:      log,
		now:      time.Now,
		sessions: make(map[PlayerID]*Session),
		events:   make(chan event, 1024),
		calls:    make(chan func()),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = &Metrics{}
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(c.now().UnixNano()))
	}
	c.grid = NewGrid(cfg, c.rng)
	c.dir = NewDirectory(cfg.MaxPlayers, c.grid, c.now)
	c.limiter = NewRateLimiter(c.now)
	return c
}

// Metrics 指标
func (c *Coordinator) Metrics() *Metrics { return c.metrics }

func (c *Coordinator) post(ev event) error {
	select {
	case <-c.done:
		return ErrStopped
	default:
	}
	select {
	case c.events <- ev:
		return nil
	case <-c.done:
		return ErrStopped
	}
}

// Connect 注册新连接，事件循环会立即回送 connected
func (c *Coordinator) Connect(id PlayerID, conn Sender) error {
	return c.post(event{kind: evConnect, id: id, conn: conn})
}

// Deliver 投递一条入站消息；同一连接的消息按投递顺序处理
func (c *Coordinator) Deliver(id PlayerID, env Envelope) error {
	return c.post(event{kind: evMessage, id: id, env: env})
}

// Disconnect 连接关闭
func (c *Coordinator) Disconnect(id PlayerID) error {
	return c.post(event{kind: evDisconnect, id: id})
}

// do 在事件循环中执行 fn 并等待其完成
func (c *Coordinator) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	call := func() {
		fn()
		close(finished)
	}
	select {
	case c.calls <- call:
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-c.done:
		return ErrStopped
	}
}

// RoomStats 单个房间的统计
type RoomStats struct {
	ID          string `json:"id"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
	IsActive    bool   `json:"isActive"`
}

// Stats 只读统计
type Stats struct {
	TotalRooms   int         `json:"totalRooms"`
	TotalPlayers int         `json:"totalPlayers"`
	Rooms        []RoomStats `json:"rooms"`
}

// Stats 查询全局统计
func (c *Coordinator) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := c.do(ctx, func() { st = c.stats() })
	return st, err
}

func (c *Coordinator) stats() Stats {
	rooms := c.dir.Rooms()
	_, players := c.dir.Counts()
	st := Stats{TotalRooms: len(rooms), TotalPlayers: players, Rooms: make([]RoomStats, 0, len(rooms))}
	for _, r := range rooms {
		st.Rooms = append(st.Rooms, RoomStats{ID: r.ID, PlayerCount: r.Len(), MaxPlayers: r.MaxPlayers, IsActive: r.IsActive})
	}
	return st
}

// RateLimits 当前节流规则
func (c *Coordinator) RateLimits(ctx context.Context) (RateLimitConfig, error) {
	var rules RateLimitConfig
	err := c.do(ctx, func() { rules = c.rules.clone() })
	return rules, err
}

// SetRateLimits 热更新节流规则
func (c *Coordinator) SetRateLimits(ctx context.Context, rules RateLimitConfig) error {
	rules = rules.clone()
	return c.do(ctx, func() { c.applyRateLimits(rules) })
}

func (c *Coordinator) applyRateLimits(rules RateLimitConfig) {
	if rules.PurgeInterval > 0 && rules.PurgeInterval != c.rules.PurgeInterval && c.purgeTicker != nil {
		c.purgeTicker.Reset(rules.PurgeInterval)
	}
	if rules.PurgeInterval <= 0 {
		rules.PurgeInterval = c.rules.PurgeInterval
	}
	c.rules = rules
	c.log.Infow("rate limits updated", "default", rules.DefaultInterval, "retention", rules.Retention,
		"purge", rules.PurgeInterval, "actions", len(rules.Actions))
}

func (c *Coordinator) handle(ev event) {
	switch ev.kind {
	case evConnect:
		c.handleConnect(ev.id, ev.conn)
	case evMessage:
		c.handleMessage(ev.id, ev.env)
	case evDisconnect:
		c.handleDisconnect(ev.id)
	}
}

func (c *Coordinator) handleConnect(id PlayerID, conn Sender) {
	if _, ok := c.sessions[id]; ok {
		c.log.Warnw("duplicate connection id", "player", id)
		return
	}
	s := &Session{
		ID:      id,
		Conn:    conn,
		dir:     c.dir,
		grid:    c.grid,
		now:     c.now,
		log:     c.log,
		metrics: c.metrics,
	}
	c.sessions[id] = s
	c.metrics.IncConnections()
	conn.Enqueue(Encode(EventConnected, ConnectedPayload{PlayerID: id}))
	c.log.Infow("player connected", "player", id)
}

func (c *Coordinator) handleMessage(id PlayerID, env Envelope) {
	s, ok := c.sessions[id]
	if !ok {
		c.log.Debugw("message for unknown connection", "player", id, "type", env.Type, "err", ErrStaleReference)
		return
	}
	c.dispatch(s, env)
}

func (c *Coordinator) handleDisconnect(id PlayerID) {
	s, ok := c.sessions[id]
	if !ok {
		return
	}
	s.OnDisconnect()
	delete(c.sessions, id)
	if cl, ok := s.Conn.(closer); ok {
		cl.Close()
	}
	c.log.Infow("player disconnected", "player", id)
}

func (c *Coordinator) decode(s *Session, env Envelope, v any) bool {
	if err := decodeData(env.Data, v); err != nil {
		c.metrics.IncInvalidDropped()
		c.log.Debugw("payload dropped", "player", s.ID, "type", env.Type, "err", err)
		return false
	}
	return true
}

func (c *Coordinator) dispatch(s *Session, env Envelope) {
	switch env.Type {
	case EventJoinGame:
		var m JoinGameMessage
		if c.decode(s, env, &m) {
			s.OnJoin(m.GameType)
		}
	case EventPlayerInput:
		var m PlayerInputMessage
		if c.decode(s, env, &m) {
			s.OnInput(m.Direction, m.Timestamp)
		}
	case EventGameStateUpdate:
		var m GameStateUpdateMessage
		if c.decode(s, env, &m) && m.GameState != nil {
			s.OnGameStateUpdate(*m.GameState, m.Timestamp)
		}
	default:
		c.dispatchAncillary(s, env)
	}
}

var ancillaryEvents = map[string]bool{
	EventChatMessage:    true,
	EventPlayerReady:    true,
	EventGameOver:       true,
	EventGetStats:       true,
	EventPing:           true,
	EventCreateRoom:     true,
	EventJoinRoom:       true,
	EventStartGame:      true,
	EventPauseGame:      true,
	EventResetGame:      true,
	EventSpectate:       true,
	EventSnakeCollision: true,
	EventFoodEaten:      true,
}

// dispatchAncillary 附属事件：节流后转发或应答，不涉及房间协调
func (c *Coordinator) dispatchAncillary(s *Session, env Envelope) {
	if !ancillaryEvents[env.Type] {
		c.metrics.IncInvalidDropped()
		c.log.Debugw("unknown event", "player", s.ID, "type", env.Type)
		return
	}
	if !c.limiter.Allow(s.ID, env.Type, c.rules.IntervalFor(env.Type)) {
		c.metrics.IncRateLimited()
		return
	}
	now := c.now().UnixMilli()
	switch env.Type {
	case EventChatMessage:
		var m ChatMessage
		if c.decode(s, env, &m) {
			s.Relay(Encode(EventChatMessage, ChatRelayPayload{PlayerID: s.ID, Message: m.Message, Timestamp: now}))
		}
	case EventPlayerReady:
		var m PlayerReadyMessage
		if c.decode(s, env, &m) {
			s.Relay(Encode(EventPlayerReady, PlayerReadyPayload{PlayerID: s.ID, Ready: m.Ready}))
		}
	case EventGameOver:
		var m GameOverMessage
		if c.decode(s, env, &m) {
			c.log.Infow("game over", "player", s.ID, "score", m.Score, "cause", m.Cause)
			s.Relay(Encode(EventPlayerGameOver, PlayerGameOverPayload{PlayerID: s.ID, Score: m.Score, Cause: m.Cause}))
		}
	case EventGetStats:
		s.Conn.Enqueue(Encode(EventStats, c.stats()))
	case EventPing:
		var m PingMessage
		if c.decode(s, env, &m) {
			s.Conn.Enqueue(Encode(EventPong, PongPayload{Timestamp: m.Timestamp, ServerTime: now}))
		}
	default:
		c.log.Infow("event received", "player", s.ID, "type", env.Type, "data", string(env.Data))
	}
}
