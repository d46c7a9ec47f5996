package relay

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// 环境变量
const (
	EnvToken     = "CISCO_SPARK_BTTN_BOT"
	EnvModerator = "CISCO_SPARK_BTTN_MAN"
	EnvDebug     = "DEBUG"
	EnvServer    = "SERVER"
)

// DefaultConfigFile 默认配置文件
const DefaultConfigFile = "settings.yaml"

// 配置文件中的键（viper 键不区分大小写）
const (
	keyRoom      = "room"
	keyActions   = "bt.tn"
	keyToken     = "cisco_spark_bttn_bot"
	keyModerator = "cisco_spark_bttn_man"
	keyPort      = "port"
	keyDebug     = "debug"
)

// LoadConfig 从配置文件和环境变量加载配置
// args 为命令行位置参数，第一个参数覆盖端口
//
// 端口优先级：命令行 > 文件 > 80
// 调试标记优先级：文件 > 环境变量 > false
// Token 和主持人：文件 > 环境变量，都没有时报错
func LoadConfig(path string, args []string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFile
	}

	// 动作列表的键 bt.tn 含有点号，改用 :: 作为层级分隔符
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	setDefaults(v)

	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, configError("failed to read configuration from '%s': %v", path, err)
	}

	if !v.InConfig(keyRoom) {
		return nil, configError("missing room: configuration information")
	}
	if !v.InConfig(keyActions) {
		return nil, configError("missing bt.tn: configuration information")
	}

	config := DefaultConfig()
	if err := v.Unmarshal(config); err != nil {
		return nil, configError("failed to parse configuration: %v", err)
	}

	if len(args) > 0 {
		port, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, configError("invalid port number specified: %s", args[0])
		}
		config.Port = port
	} else if !v.InConfig(keyPort) {
		config.Port = DefaultPort
	}

	if !v.InConfig(keyDebug) {
		config.Debug = parseDebug(os.Getenv(EnvDebug))
	}

	if !v.InConfig(keyToken) {
		token, ok := os.LookupEnv(EnvToken)
		if !ok {
			return nil, configError("missing %s in the environment", EnvToken)
		}
		config.Token = token
	}

	if !v.InConfig(keyModerator) {
		moderator, ok := os.LookupEnv(EnvModerator)
		if !ok {
			return nil, configError("missing %s in the environment", EnvModerator)
		}
		config.Moderator = moderator
	}

	if mode := os.Getenv(EnvServer); mode != "" {
		config.Server.Mode = mode
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("server::host", d.Server.Host)
	v.SetDefault("server::mode", d.Server.Mode)

	v.SetDefault("api::base_url", d.API.BaseURL)
	v.SetDefault("api::timeout", d.API.Timeout)

	v.SetDefault("log::level", d.Log.Level)
	v.SetDefault("log::format", d.Log.Format)
	v.SetDefault("log::output", d.Log.Output)

	v.SetDefault("database::enabled", d.Database.Enabled)
	v.SetDefault("database::path", d.Database.Path)

	v.SetDefault("metrics::enabled", d.Metrics.Enabled)
	v.SetDefault("metrics::path", d.Metrics.Path)

	v.SetDefault("reset::on_start", d.Reset.OnStart)
	v.SetDefault("reset::cron", d.Reset.Cron)
}

// parseDebug 解析调试环境变量，非空但无法识别的值视为开启
func parseDebug(val string) bool {
	if val == "" {
		return false
	}
	enabled, err := cast.ToBoolE(val)
	if err != nil {
		return true
	}
	return enabled
}
