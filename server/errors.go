package server

import (
	"errors"
	"fmt"
)

var (
	// ErrRoomNotFound 分配房间失败，对请求方回送 error 事件，连接保持
	ErrRoomNotFound = errors.New("room not found")
	// ErrInvalidInput 载荷格式或方向非法，静默丢弃
	ErrInvalidInput = errors.New("invalid input")
	// ErrStaleReference 引用了已不存在的玩家或房间，视为无操作
	ErrStaleReference = errors.New("stale reference")
	// ErrStopped 协调器已停止
	ErrStopped = errors.New("coordinator stopped")
)

func invalidInput(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}
