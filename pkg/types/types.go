// Package types 提供跨包共享的类型定义
package types

import "context"

// PressResult 一次按键的处理结果
type PressResult struct {
	Seq     int    `json:"seq"`               // 按键前的计数值
	RoomID  string `json:"room_id,omitempty"` // 目标房间
	Update  string `json:"update,omitempty"`  // 更新类型: ping, structured
	Summary string `json:"summary,omitempty"` // 更新摘要
}

// Status 中继当前状态
type Status struct {
	Room             string `json:"room"`
	PressCount       int    `json:"press_count"`
	Actions          int    `json:"actions"`
	ModeratorPending bool   `json:"moderator_pending"`

	// 以下字段仅在启用按键日志或定时重置时有意义
	FailedPresses   int64  `json:"failed_presses"`
	ScheduledResets int    `json:"scheduled_resets"`
	LastResetError  string `json:"last_reset_error,omitempty"`
}

// Relay 接口定义
// 用于解耦 server 包对 relay 包的直接依赖
type Relay interface {
	Press(ctx context.Context) (*PressResult, error)
	Status() Status
}
