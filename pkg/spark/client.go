package spark

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/KodaTao/ButtonRelay/pkg/observability"
)

// Client 平台 API 客户端
type Client struct {
	config     *Config
	httpClient *http.Client
	observer   func(operation string, status int)
}

// Config 客户端配置
type Config struct {
	// BaseURL API 基础 URL
	BaseURL string

	// Token Bot 的 Bearer Token
	Token string

	// Timeout 请求超时，0 表示不超时（net/http 默认行为）
	Timeout time.Duration
}

// ClientOption 客户端选项
type ClientOption func(*Client)

// WithHTTPClient 使用自定义 http.Client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithObserver 设置调用观察者，每次收到响应（或传输失败，status 为 0）时回调
func WithObserver(fn func(operation string, status int)) ClientOption {
	return func(c *Client) {
		c.observer = fn
	}
}

// NewClient 创建客户端
func NewClient(cfg *Config, opts ...ClientOption) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListRooms 列出 Bot 可见的所有房间，顺序与平台返回一致
func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	body, err := c.do(ctx, OpListRooms, http.MethodGet, "/rooms", nil, "", http.StatusOK)
	if err != nil {
		return nil, err
	}

	var list roomList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("failed to parse room list: %w", err)
	}
	return list.Items, nil
}

// CreateRoom 创建房间
func (c *Client) CreateRoom(ctx context.Context, title string) (*Room, error) {
	form := url.Values{}
	form.Set("title", title)

	body, err := c.do(ctx, OpCreateRoom, http.MethodPost, "/rooms",
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", http.StatusOK)
	if err != nil {
		return nil, err
	}

	var room Room
	if err := json.Unmarshal(body, &room); err != nil {
		return nil, fmt.Errorf("failed to parse created room: %w", err)
	}
	return &room, nil
}

// DeleteRoom 删除房间，平台应返回 204
func (c *Client) DeleteRoom(ctx context.Context, roomID string) error {
	_, err := c.do(ctx, OpDeleteRoom, http.MethodDelete, "/rooms/"+url.PathEscape(roomID), nil, "", http.StatusNoContent)
	return err
}

// CreateMembership 将用户加入房间
func (c *Client) CreateMembership(ctx context.Context, m Membership) error {
	form := url.Values{}
	form.Set("roomId", m.RoomID)
	form.Set("personEmail", m.PersonEmail)
	if m.IsModerator {
		form.Set("isModerator", "true")
	}

	_, err := c.do(ctx, OpCreateMembership, http.MethodPost, "/memberships",
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", http.StatusOK)
	return err
}

// PostText 以普通表单发送纯文本消息，仅包含 roomId 和 text 两个字段
func (c *Client) PostText(ctx context.Context, roomID, text string) error {
	form := url.Values{}
	form.Set("roomId", roomID)
	form.Set("text", text)

	_, err := c.do(ctx, OpCreateMessage, http.MethodPost, "/messages",
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", http.StatusOK)
	return err
}

// PostMultipart 以 multipart 编码发送结构化消息
// 文件内容边读边写入请求体，调用方需在返回后再关闭文件
func (c *Client) PostMultipart(ctx context.Context, msg *Message) error {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	done := make(chan struct{})

	go func() {
		defer close(done)
		err := writeMessage(writer, msg)
		if err == nil {
			err = writer.Close()
		}
		pw.CloseWithError(err)
	}()

	_, err := c.do(ctx, OpCreateMessage, http.MethodPost, "/messages",
		pr, writer.FormDataContentType(), http.StatusOK)

	// 请求提前结束时解除写协程的阻塞，并等待其不再读取文件
	pr.Close()
	<-done
	return err
}

// writeMessage 写入消息的各个字段
func writeMessage(w *multipart.Writer, msg *Message) error {
	if err := w.WriteField("roomId", msg.RoomID); err != nil {
		return err
	}
	if msg.Markdown != "" {
		if err := w.WriteField("markdown", msg.Markdown); err != nil {
			return err
		}
	}
	if msg.Text != "" {
		if err := w.WriteField("text", msg.Text); err != nil {
			return err
		}
	}
	if msg.File == nil {
		return nil
	}

	contentType := msg.File.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="files"; filename="%s"`, quoteEscaper.Replace(msg.File.Name)))
	header.Set("Content-Type", contentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, msg.File.Content)
	return err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// do 发送带认证的请求并检查状态码
func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, want int) ([]byte, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(op, 0)
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	c.observe(op, resp.StatusCode)
	observability.UpstreamCallLog(ctx, op, resp.StatusCode, time.Since(start).Milliseconds())

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != want {
		observability.ErrorContext(ctx, "Upstream API error",
			"operation", op,
			"status", resp.StatusCode,
			"body", truncate(string(respBody), 512),
		)
		return nil, &APIError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	return respBody, nil
}

func (c *Client) observe(op string, status int) {
	if c.observer != nil {
		c.observer(op, status)
	}
}

// truncate 截断文本（用于日志）
func truncate(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "..."
}
