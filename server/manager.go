package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Directory 管理所有房间的生命周期以及 玩家 -> 房间 的反向索引。
// 房间成员的增删只经过 Directory，保证每个玩家同一时刻只在一个房间内。
type Directory struct {
	mu         sync.Mutex
	rooms      map[string]*Room
	order      []string // 创建顺序，FindAvailable 按此顺序扫描
	playerRoom map[PlayerID]string

	maxPlayers int
	grid       *Grid
	now        func() time.Time
}

// NewDirectory 创建空目录
func NewDirectory(maxPlayers int, grid *Grid, now func() time.Time) *Directory {
	if now == nil {
		now = time.Now
	}
	return &Directory{
		rooms:      make(map[string]*Room),
		playerRoom: make(map[PlayerID]string),
		maxPlayers: maxPlayers,
		grid:       grid,
		now:        now,
	}
}

// FindAvailableRoom 返回第一个未满的房间
func (d *Directory) FindAvailableRoom() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.findLocked()
}

func (d *Directory) findLocked() (string, bool) {
	for _, id := range d.order {
		if d.rooms[id].HasSpace() {
			return id, true
		}
	}
	return "", false
}

// CreateRoom 新建房间并预先生成一个食物
func (d *Directory) CreateRoom() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.createLocked().ID
}

func (d *Directory) createLocked() *Room {
	id := d.newRoomID()
	for d.rooms[id] != nil {
		id = d.newRoomID()
	}
	r := NewRoom(id, d.maxPlayers)
	r.EnsureFood(d.grid)
	d.rooms[id] = r
	d.order = append(d.order, id)
	return r
}

// newRoomID 形如 room_<毫秒时间戳>_<9位随机后缀>
func (d *Directory) newRoomID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("room_%d_%s", d.now().UnixMilli(), suffix)
}

// RegisterPlayer 将玩家放入指定房间；不重复检查容量
func (d *Directory) RegisterPlayer(roomID string, p *Player) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registerLocked(roomID, p)
}

func (d *Directory) registerLocked(roomID string, p *Player) error {
	r, ok := d.rooms[roomID]
	if !ok {
		return fmt.Errorf("register %s: %w: %s", p.ID, ErrRoomNotFound, roomID)
	}
	if old, ok := d.playerRoom[p.ID]; ok && old != roomID {
		d.removeLocked(p.ID)
	}
	r.add(p)
	d.playerRoom[p.ID] = roomID
	return nil
}

// Assign 查找或创建房间并注册玩家，整个过程在同一把锁内完成
func (d *Directory) Assign(p *Player) (*Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.findLocked()
	if !ok {
		id = d.createLocked().ID
	}
	if err := d.registerLocked(id, p); err != nil {
		return nil, err
	}
	return d.rooms[id], nil
}

// RemovePlayer 移除玩家，房间空了立即删除。
// 返回玩家原来所在的房间（可能已被删除），玩家不存在时返回 false。
func (d *Directory) RemovePlayer(id PlayerID) (*Room, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.removeLocked(id)
}

func (d *Directory) removeLocked(id PlayerID) (*Room, bool) {
	roomID, ok := d.playerRoom[id]
	if !ok {
		return nil, false
	}
	delete(d.playerRoom, id)
	r, ok := d.rooms[roomID]
	if !ok {
		return nil, false
	}
	r.remove(id)
	if r.Len() == 0 {
		d.deleteRoomLocked(roomID)
	}
	return r, true
}

func (d *Directory) deleteRoomLocked(roomID string) {
	delete(d.rooms, roomID)
	for i, id := range d.order {
		if id == roomID {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Room 按 ID 查找房间
func (d *Directory) Room(id string) (*Room, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.rooms[id]
	return r, ok
}

// RoomOf 查找玩家所在房间
func (d *Directory) RoomOf(id PlayerID) (*Room, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	roomID, ok := d.playerRoom[id]
	if !ok {
		return nil, false
	}
	r, ok := d.rooms[roomID]
	return r, ok
}

// Rooms 按创建顺序返回所有房间
func (d *Directory) Rooms() []*Room {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Room, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.rooms[id])
	}
	return out
}

// Counts 房间数与已注册玩家数
func (d *Directory) Counts() (rooms, players int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.rooms), len(d.playerRoom)
}
