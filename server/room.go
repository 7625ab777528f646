package server

import (
	"math/rand"
	"time"
)

// Sender 连接的发送端；实现必须非阻塞
type Sender interface {
	Enqueue(b []byte)
}

// Grid 随机落点：食物在整个网格内均匀分布，出生点在内缩区域内
type Grid struct {
	cfg GameConfig
	rng *rand.Rand
}

func NewGrid(cfg GameConfig, rng *rand.Rand) *Grid {
	return &Grid{cfg: cfg, rng: rng}
}

// Food 独立随机 X/Y；多人模式下不避让蛇身
func (g *Grid) Food() Point {
	return Point{X: g.rng.Intn(g.cfg.GridWidth), Y: g.rng.Intn(g.cfg.GridHeight)}
}

// Spawn 出生点
func (g *Grid) Spawn() Point {
	return Point{
		X: g.cfg.SpawnMinX + g.rng.Intn(g.cfg.SpawnSpanX),
		Y: g.cfg.SpawnMinY + g.rng.Intn(g.cfg.SpawnSpanY),
	}
}

// Room 房间：一组共享食物的玩家。只由协调器事件循环访问，不做并发保护
type Room struct {
	ID         string
	MaxPlayers int

	// IsActive/StartTime 只记录不迁移
	IsActive  bool
	StartTime time.Time
	Food      *Point

	players map[PlayerID]*Player
	order   []PlayerID // 加入顺序，保证快照输出稳定
}

// NewRoom 创建房间，初始化数据结构
func NewRoom(id string, maxPlayers int) *Room {
	return &Room{
		ID:         id,
		MaxPlayers: maxPlayers,
		players:    make(map[PlayerID]*Player),
	}
}

// Len 当前玩家数
func (r *Room) Len() int { return len(r.players) }

// HasSpace 容量检查（建议性，由 Directory 在注册前调用）
func (r *Room) HasSpace() bool { return len(r.players) < r.MaxPlayers }

// Player 按 ID 查找
func (r *Room) Player(id PlayerID) (*Player, bool) {
	p, ok := r.players[id]
	return p, ok
}

// Players 按加入顺序返回玩家
func (r *Room) Players() []*Player {
	out := make([]*Player, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.players[id])
	}
	return out
}

func (r *Room) add(p *Player) {
	if _, ok := r.players[p.ID]; !ok {
		r.order = append(r.order, p.ID)
	}
	r.players[p.ID] = p
}

func (r *Room) remove(id PlayerID) bool {
	if _, ok := r.players[id]; !ok {
		return false
	}
	delete(r.players, id)
	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// EnsureFood 没有食物时生成一个，返回是否新生成
func (r *Room) EnsureFood(g *Grid) bool {
	if r.Food != nil {
		return false
	}
	f := g.Food()
	r.Food = &f
	return true
}

// Views 所有玩家状态的快照
func (r *Room) Views() []PlayerView {
	out := make([]PlayerView, 0, len(r.order))
	for _, p := range r.Players() {
		out = append(out, p.View())
	}
	return out
}

// Info 房间元数据
func (r *Room) Info() RoomInfo {
	return RoomInfo{ID: r.ID, PlayerCount: r.Len(), MaxPlayers: r.MaxPlayers}
}

// Broadcast 向房间内除 except 以外的所有玩家发送同一帧，返回发送数
func (r *Room) Broadcast(b []byte, except PlayerID) int {
	n := 0
	for _, id := range r.order {
		if id == except {
			continue
		}
		if p := r.players[id]; p.Conn != nil {
			p.Conn.Enqueue(b)
			n++
		}
	}
	return n
}
