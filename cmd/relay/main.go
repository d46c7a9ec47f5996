// Package main 是按键中继的 CLI 入口
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/KodaTao/ButtonRelay/pkg/observability"
	"github.com/KodaTao/ButtonRelay/pkg/relay"
	"github.com/KodaTao/ButtonRelay/pkg/server"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "relay [port]",
		Short: "ButtonRelay - relay button presses to a collaboration room",
		Long: `ButtonRelay receives a webhook when a physical button is pressed and
posts the next configured message or file to a collaboration room,
creating the room and adding a moderator on first use.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(args)
		},
	}

	// 全局 flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", relay.DefaultConfigFile, "configuration file")

	// 添加子命令
	rootCmd.AddCommand(resetCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// serve 启动 HTTP 服务器
func serve(args []string) error {
	app, err := newApp(args)
	if err != nil {
		return err
	}
	config := app.GetConfig()

	if err := startupReset(context.Background(), app); err != nil {
		return err
	}

	var opts []server.ServerOption
	if journal := app.GetJournal(); journal != nil {
		opts = append(opts, server.WithJournal(journal))
	}
	if metrics := app.GetMetrics(); metrics != nil {
		opts = append(opts, server.WithMetrics(metrics))
	}

	srv := server.NewServer(app, &server.ServerConfig{
		Host:        config.Server.Host,
		Port:        config.Port,
		Mode:        config.GinMode(),
		MetricsPath: config.Metrics.Path,
	}, opts...)

	// 优雅关闭
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		observability.Info("Received shutdown signal")
		_ = app.Shutdown()
		os.Exit(0)
	}()

	return srv.Run()
}

// startupReset 启动时清理房间，得到干净的演示环境
// 失败时关闭应用再返回
func startupReset(ctx context.Context, app *relay.App) error {
	if !app.GetConfig().Reset.OnStart {
		return nil
	}
	if err := app.Reset(ctx); err != nil {
		_ = app.Shutdown()
		return fmt.Errorf("failed to reset room: %w", err)
	}
	return nil
}

// resetCmd 删除目标房间后退出
func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete the target room so the next press recreates it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(nil)
			if err != nil {
				return err
			}
			defer app.Shutdown()

			return app.Reset(cmd.Context())
		},
	}
}

// versionCmd 显示版本信息
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("ButtonRelay v0.1.0")
		},
	}
}

// newApp 加载配置并初始化应用
func newApp(args []string) (*relay.App, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	config, err := relay.LoadConfig(cfgFile, args)
	if err != nil {
		return nil, err
	}

	app := relay.New(config)
	if err := app.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return app, nil
}
