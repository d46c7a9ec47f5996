// Package server 提供 HTTP Server 功能
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/KodaTao/ButtonRelay/pkg/observability"
	"github.com/KodaTao/ButtonRelay/pkg/storage"
	"github.com/KodaTao/ButtonRelay/pkg/types"
)

// Server HTTP 服务器
type Server struct {
	relay   types.Relay
	journal *storage.Journal
	metrics *observability.Metrics
	engine  *gin.Engine
	config  *ServerConfig
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host        string
	Port        int
	Mode        string // debug, release, test
	MetricsPath string
}

// ServerOption 服务器选项
type ServerOption func(*Server)

// WithJournal 暴露按键日志查询接口
func WithJournal(j *storage.Journal) ServerOption {
	return func(s *Server) {
		s.journal = j
	}
}

// WithMetrics 暴露指标接口
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer 创建 HTTP 服务器
func NewServer(relay types.Relay, config *ServerConfig, opts ...ServerOption) *Server {
	// 设置 Gin 模式
	switch config.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()

	// 添加中间件
	engine.Use(gin.Recovery())
	engine.Use(TraceMiddleware())
	engine.Use(LoggerMiddleware())

	server := &Server{
		relay:  relay,
		engine: engine,
		config: config,
	}
	for _, opt := range opts {
		opt(server)
	}

	// 注册路由
	server.setupRoutes()

	return server
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	// 按键触发入口
	s.engine.GET("/", s.press)
	s.engine.POST("/", s.press)

	// 健康检查
	s.engine.GET("/health", s.healthCheck)

	if s.journal != nil {
		s.engine.GET("/presses", s.listPresses)
	}

	if s.metrics != nil {
		path := s.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.engine.GET(path, gin.WrapH(s.metrics.Handler()))
	}
}

// Run 启动服务器
func (s *Server) Run() error {
	addr := s.config.Host + ":" + strconv.Itoa(s.config.Port)
	observability.Info("Preparing for web requests", "address", addr)
	return s.engine.Run(addr)
}

// GetEngine 获取 Gin 引擎（用于测试）
func (s *Server) GetEngine() *gin.Engine {
	return s.engine
}

// press 处理一次按键
// 设备只看响应体：成功返回 "OK\n"，失败返回错误信息，状态码始终为 200
// 设备断开连接不会中止按键，保留追踪 ID 但丢弃取消信号
func (s *Server) press(c *gin.Context) {
	ctx := context.WithoutCancel(c.Request.Context())
	if _, err := s.relay.Press(ctx); err != nil {
		c.String(http.StatusOK, err.Error()+"\n")
		return
	}
	c.String(http.StatusOK, "OK\n")
}

// 健康检查
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"relay":     s.relay.Status(),
	})
}

// 列出最近的按键记录
func (s *Server) listPresses(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "invalid limit: " + raw,
			})
			return
		}
		limit = n
	}

	records, err := s.journal.Recent(limit)
	if err != nil {
		observability.Error("List presses failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "List presses failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"presses": records,
		"count":   len(records),
	})
}

// TraceMiddleware 为每个请求生成追踪 ID
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := uuid.NewString()
		ctx := observability.WithTraceID(c.Request.Context(), traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Trace-Id", traceID)
		c.Next()
	}
}

// LoggerMiddleware 日志中间件
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		observability.InfoContext(c.Request.Context(), "HTTP request",
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}
