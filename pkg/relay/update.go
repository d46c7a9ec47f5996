package relay

import (
	"fmt"
	"io"
	"os"
)

// UpdateKind 更新类型
type UpdateKind string

const (
	UpdatePing       UpdateKind = "ping"       // 动作列表用完后的编号 ping，纯文本
	UpdateStructured UpdateKind = "structured" // 来自动作的文本/Markdown，可带文件
)

// DefaultContentType 未声明类型时的文件 MIME 类型
const DefaultContentType = "application/octet-stream"

// Update 一次按键产生的内容，只在本次请求内存在
type Update struct {
	Kind     UpdateKind
	Text     string
	Markdown string
	File     *Attachment
}

// Attachment 附带的文件
type Attachment struct {
	// Name 上传时显示的文件名：优先使用 label，否则为原始路径
	Name        string
	Path        string
	ContentType string

	content io.ReadCloser
}

// Content 返回文件内容
func (a *Attachment) Content() io.Reader {
	return a.content
}

// Close 释放打开的文件
func (u *Update) Close() error {
	if u == nil || u.File == nil || u.File.content == nil {
		return nil
	}
	err := u.File.content.Close()
	u.File.content = nil
	return err
}

// Summary 返回用于日志的简短描述
func (u *Update) Summary() string {
	switch {
	case u.Kind == UpdatePing:
		return u.Text
	case u.File != nil:
		return u.File.Name
	case u.Markdown != "":
		return "using markdown content"
	default:
		return u.Text
	}
}

// BuildUpdate 根据按键序号选择动作并生成更新
// seq 为本次按键前的计数值；超出动作列表后返回 "ping <seq>"，不会循环
func BuildUpdate(actions []Action, seq int) (*Update, error) {
	if seq < 0 || seq >= len(actions) {
		return &Update{
			Kind: UpdatePing,
			Text: fmt.Sprintf("ping %d", seq),
		}, nil
	}

	action := actions[seq]
	update := &Update{Kind: UpdateStructured}

	if action.Markdown != "" {
		update.Markdown = action.Markdown
	} else if action.Message != "" {
		update.Text = action.Message
	}

	if action.File == "" {
		return update, nil
	}

	file, err := os.Open(action.File)
	if err != nil {
		return nil, resourceError("build_update", err)
	}

	name := action.Label
	if name == "" {
		name = action.File
	}

	contentType := action.Type
	if contentType == "" {
		contentType = DefaultContentType
	}

	update.File = &Attachment{
		Name:        name,
		Path:        action.File,
		ContentType: contentType,
		content:     file,
	}

	// 只渲染文本的客户端也能看到说明
	if update.Text == "" && update.Markdown == "" {
		update.Text = fmt.Sprintf("'%s'", name)
	}

	return update, nil
}
