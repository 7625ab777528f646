package server

import (
	"time"

	"github.com/google/uuid"
)

// PlayerID 表示玩家唯一标识（连接级别，每个活动连接唯一）
type PlayerID string

// NewPlayerID 为新连接分配标识
func NewPlayerID() PlayerID {
	return PlayerID(uuid.NewString())
}

// Direction 蛇头朝向
type Direction string

const (
	DirUp    Direction = "UP"
	DirDown  Direction = "DOWN"
	DirLeft  Direction = "LEFT"
	DirRight Direction = "RIGHT"
)

// Valid 是否为四个基本方向之一
func (d Direction) Valid() bool {
	switch d {
	case DirUp, DirDown, DirLeft, DirRight:
		return true
	}
	return false
}

// Opposite 返回相反方向；非法方向返回空串
func (d Direction) Opposite() Direction {
	switch d {
	case DirUp:
		return DirDown
	case DirDown:
		return DirUp
	case DirLeft:
		return DirRight
	case DirRight:
		return DirLeft
	}
	return ""
}

// Point 网格坐标
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// GameState 玩家上报/广播的游戏状态
type GameState struct {
	Snake     []Point   `json:"snake"`
	Score     int       `json:"score"`
	IsAlive   bool      `json:"isAlive"`
	Direction Direction `json:"direction"`
}

// PartialState 增量状态：nil 字段表示未提供，保留旧值
type PartialState struct {
	Snake     *[]Point   `json:"snake,omitempty"`
	Score     *int       `json:"score,omitempty"`
	IsAlive   *bool      `json:"isAlive,omitempty"`
	Direction *Direction `json:"direction,omitempty"`
}

// Merge 浅合并：提供的字段覆盖，未提供的字段保持不变
func (s *GameState) Merge(p PartialState) {
	if p.Snake != nil {
		s.Snake = clonePoints(*p.Snake)
	}
	if p.Score != nil {
		s.Score = *p.Score
	}
	if p.IsAlive != nil {
		s.IsAlive = *p.IsAlive
	}
	if p.Direction != nil {
		s.Direction = *p.Direction
	}
}

// Player 房间内的玩家实体，只由其所在的 Room 持有
type Player struct {
	ID         PlayerID
	State      GameState
	LastUpdate time.Time

	Conn Sender // 网络连接的发送端
}

// PlayerView 快照中单个玩家的视图
type PlayerView struct {
	ID        PlayerID  `json:"id"`
	GameState GameState `json:"gameState"`
}

// View 生成不共享底层切片的只读视图
func (p *Player) View() PlayerView {
	st := p.State
	st.Snake = clonePoints(p.State.Snake)
	return PlayerView{ID: p.ID, GameState: st}
}

func clonePoints(src []Point) []Point {
	out := make([]Point, len(src))
	copy(out, src)
	return out
}
