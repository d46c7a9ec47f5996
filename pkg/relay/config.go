// Package relay 实现按键触发到协作平台房间的中继
package relay

import (
	"time"

	"github.com/KodaTao/ButtonRelay/pkg/spark"
)

// DefaultPort 未指定端口时监听的端口
const DefaultPort = 80

// Config 应用配置
// 按键计数和"待添加主持人"标记不在这里，由 App 持有
type Config struct {
	// Room 目标房间名，按标题子串匹配
	Room string `mapstructure:"room"`

	// Token Bot 的 Bearer Token
	Token string `mapstructure:"cisco_spark_bttn_bot"`

	// Moderator 主持人身份（邮箱）
	Moderator string `mapstructure:"cisco_spark_bttn_man"`

	// Actions 按次序使用的动作列表
	Actions []Action `mapstructure:"bt.tn"`

	// Port 监听端口
	Port int `mapstructure:"port"`

	// Debug 调试模式
	Debug bool `mapstructure:"debug"`

	Server   ServerConfig   `mapstructure:"server"`
	API      APIConfig      `mapstructure:"api"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Reset    ResetConfig    `mapstructure:"reset"`
}

// Action 一次按键对应的动作
// Markdown 与 Message 至多一个有意义，Markdown 优先；文件字段可与二者组合
type Action struct {
	Markdown string `mapstructure:"markdown"`
	Message  string `mapstructure:"message"`
	File     string `mapstructure:"file"`
	Label    string `mapstructure:"label"`
	Type     string `mapstructure:"type"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// Host 监听地址
	Host string `mapstructure:"host"`

	// Mode gin 运行模式：debug, release, test, auto
	Mode string `mapstructure:"mode"`
}

// APIConfig 平台 API 配置
type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`

	// Timeout 请求超时（秒），0 表示不超时
	Timeout int `mapstructure:"timeout"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

// DatabaseConfig 按键日志数据库配置
type DatabaseConfig struct {
	// Enabled 是否记录按键日志
	Enabled bool `mapstructure:"enabled"`

	// Path 数据库文件路径，默认 :memory:，进程退出即丢弃
	Path string `mapstructure:"path"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ResetConfig 房间重置配置
type ResetConfig struct {
	// OnStart 启动时删除同名房间，得到干净的演示环境
	OnStart bool `mapstructure:"on_start"`

	// Cron 周期性重置的 cron 表达式（5 字段），为空表示不启用
	Cron string `mapstructure:"cron"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Port: DefaultPort,
		Server: ServerConfig{
			Host: "0.0.0.0",
			Mode: "auto",
		},
		API: APIConfig{
			BaseURL: spark.DefaultBaseURL,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Database: DatabaseConfig{
			Enabled: true,
			Path:    ":memory:",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Path:    "/metrics",
		},
		Reset: ResetConfig{
			OnStart: true,
		},
	}
}

// GinMode 解析 gin 运行模式，auto 时由调试标记决定
func (c *Config) GinMode() string {
	switch c.Server.Mode {
	case "debug", "release", "test":
		return c.Server.Mode
	}
	if c.Debug {
		return "debug"
	}
	return "release"
}

// LogLevel 调试模式下提升日志级别
func (c *Config) LogLevel() string {
	if c.Debug {
		return "debug"
	}
	return c.Log.Level
}

// ClientConfig 构造平台客户端配置
func (c *Config) ClientConfig() *spark.Config {
	return &spark.Config{
		BaseURL: c.API.BaseURL,
		Token:   c.Token,
		Timeout: time.Duration(c.API.Timeout) * time.Second,
	}
}

// Validate 验证配置
// Token 和主持人只要求存在，空值照常接受，由平台拒绝
func (c *Config) Validate() error {
	if c.Room == "" {
		return configError("missing room: configuration information")
	}
	return nil
}
