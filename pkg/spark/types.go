// Package spark 提供协作平台（Cisco Spark）REST API 客户端
package spark

import (
	"fmt"
	"io"
)

// DefaultBaseURL 平台 API 默认地址
const DefaultBaseURL = "https://api.ciscospark.com/v1"

// 平台调用的操作名，用于日志和指标
const (
	OpListRooms        = "list_rooms"
	OpCreateRoom       = "create_room"
	OpDeleteRoom       = "delete_room"
	OpCreateMembership = "create_membership"
	OpCreateMessage    = "create_message"
)

// Room 房间
type Room struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// roomList 房间列表响应
type roomList struct {
	Items []Room `json:"items"`
}

// Membership 成员关系请求
type Membership struct {
	RoomID      string
	PersonEmail string
	IsModerator bool
}

// MessageFile 随消息上传的文件
type MessageFile struct {
	// Name 显示文件名
	Name string

	// ContentType MIME 类型
	ContentType string

	// Content 文件内容，在请求体发送完毕前保持可读
	Content io.Reader
}

// Message 以 multipart 编码发送的结构化消息
type Message struct {
	RoomID   string
	Text     string
	Markdown string
	File     *MessageFile
}

// APIError 平台返回非成功状态码
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("received error code %d", e.StatusCode)
}
