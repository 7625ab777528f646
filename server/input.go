package server

import "encoding/json"

// 入站事件
const (
	EventJoinGame        = "join-game"
	EventPlayerInput     = "player-input"
	EventGameStateUpdate = "game-state-update"

	EventChatMessage    = "chat-message"
	EventPlayerReady    = "player-ready"
	EventGameOver       = "game-over"
	EventGetStats       = "get-stats"
	EventPing           = "ping"
	EventCreateRoom     = "create-room"
	EventJoinRoom       = "join-room"
	EventStartGame      = "start-game"
	EventPauseGame      = "pause-game"
	EventResetGame      = "reset-game"
	EventSpectate       = "spectate"
	EventSnakeCollision = "snake-collision"
	EventFoodEaten      = "food-eaten"
)

// 出站事件
const (
	EventConnected      = "connected"
	EventPlayerJoined   = "player-joined"
	EventGameStateFull  = "game-state"
	EventRoomUpdate     = "room-update"
	EventInputUpdate    = "input-update"
	EventPlayerUpdate   = "player-update"
	EventPlayerLeft     = "player-left"
	EventHeartbeat      = "heartbeat"
	EventError          = "error"
	EventStats          = "stats"
	EventPong           = "pong"
	EventPlayerGameOver = "player-game-over"
)

// Envelope WebSocket 文本帧统一格式
// 示例：{"type":"player-input","data":{"direction":"UP","timestamp":1700000000000}}
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// 入站载荷

type JoinGameMessage struct {
	GameType string `json:"gameType"`
}

type PlayerInputMessage struct {
	Direction Direction `json:"direction"`
	Timestamp int64     `json:"timestamp"`
}

type GameStateUpdateMessage struct {
	GameState *PartialState `json:"gameState"`
	Timestamp int64         `json:"timestamp"`
}

type ChatMessage struct {
	Message string `json:"message"`
}

type PlayerReadyMessage struct {
	Ready bool `json:"ready"`
}

type GameOverMessage struct {
	Score int    `json:"score"`
	Cause string `json:"cause"`
}

type PingMessage struct {
	Timestamp int64 `json:"timestamp"`
}

// 出站载荷

type ConnectedPayload struct {
	PlayerID PlayerID `json:"playerId"`
}

type PlayerJoinedPayload struct {
	PlayerID    PlayerID `json:"playerId"`
	RoomID      string   `json:"roomId,omitempty"` // 仅发给加入者本人
	PlayerCount int      `json:"playerCount"`
}

type RoomInfo struct {
	ID          string `json:"id"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
}

type GameStatePayload struct {
	Room    RoomInfo     `json:"room"`
	Players []PlayerView `json:"players"`
	Food    *Point       `json:"food"`
}

type RoomUpdatePayload struct {
	Food      *Point       `json:"food"`
	Players   []PlayerView `json:"players"`
	Timestamp int64        `json:"timestamp"`
}

type InputUpdatePayload struct {
	PlayerID  PlayerID  `json:"playerId"`
	Direction Direction `json:"direction"`
	Timestamp int64     `json:"timestamp"`
}

type PlayerUpdatePayload struct {
	PlayerID  PlayerID  `json:"playerId"`
	GameState GameState `json:"gameState"`
	Timestamp int64     `json:"timestamp"`
}

type PlayerLeftPayload struct {
	PlayerID    PlayerID `json:"playerId"`
	PlayerCount int      `json:"playerCount"`
}

type HeartbeatPayload struct {
	Timestamp int64 `json:"timestamp"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type ChatRelayPayload struct {
	PlayerID  PlayerID `json:"playerId"`
	Message   string   `json:"message"`
	Timestamp int64    `json:"timestamp"`
}

type PlayerReadyPayload struct {
	PlayerID PlayerID `json:"playerId"`
	Ready    bool     `json:"ready"`
}

type PlayerGameOverPayload struct {
	PlayerID PlayerID `json:"playerId"`
	Score    int      `json:"score"`
	Cause    string   `json:"cause"`
}

type PongPayload struct {
	Timestamp  int64 `json:"timestamp"`
	ServerTime int64 `json:"serverTime"`
}

// Encode 将事件编码为一帧；载荷均为本包内的可序列化结构，忽略错误
func Encode(eventType string, payload any) []byte {
	data, _ := json.Marshal(payload)
	b, _ := json.Marshal(Envelope{Type: eventType, Data: data})
	return b
}

// decodeData 解析载荷；缺省载荷按空对象处理
func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return invalidInput(err)
	}
	return nil
}
