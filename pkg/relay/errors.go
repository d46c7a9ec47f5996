package relay

import (
	"errors"
	"fmt"

	"github.com/KodaTao/ButtonRelay/pkg/spark"
)

// ErrorKind 错误类别
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration" // 启动时配置错误，进程退出
	KindUpstream      ErrorKind = "upstream"      // 平台返回非成功状态或无法连接
	KindResource      ErrorKind = "resource"      // 本地文件无法读取
)

// Error 中继错误，Message 会原样返回给触发设备
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind 判断错误链中是否包含指定类别的中继错误
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func configError(format string, args ...any) *Error {
	return &Error{
		Kind:    KindConfiguration,
		Op:      "configure",
		Message: fmt.Sprintf(format, args...),
	}
}

// upstreamError 包装平台调用错误
func upstreamError(op string, err error) *Error {
	msg := err.Error()
	var apiErr *spark.APIError
	if errors.As(err, &apiErr) {
		msg = apiErr.Error()
	}
	return &Error{
		Kind:    KindUpstream,
		Op:      op,
		Message: msg,
		Err:     err,
	}
}

func resourceError(op string, err error) *Error {
	return &Error{
		Kind:    KindResource,
		Op:      op,
		Message: err.Error(),
		Err:     err,
	}
}
