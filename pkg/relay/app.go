package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/KodaTao/ButtonRelay/pkg/observability"
	"github.com/KodaTao/ButtonRelay/pkg/scheduler"
	"github.com/KodaTao/ButtonRelay/pkg/spark"
	"github.com/KodaTao/ButtonRelay/pkg/storage"
	"github.com/KodaTao/ButtonRelay/pkg/types"
)

// Platform 协作平台接口
// 由 spark.Client 实现，测试中可替换
type Platform interface {
	ListRooms(ctx context.Context) ([]spark.Room, error)
	CreateRoom(ctx context.Context, title string) (*spark.Room, error)
	DeleteRoom(ctx context.Context, roomID string) error
	CreateMembership(ctx context.Context, m spark.Membership) error
	PostText(ctx context.Context, roomID, text string) error
	PostMultipart(ctx context.Context, msg *spark.Message) error
}

// App 中继应用实例
// 按键和重置在同一把锁下串行执行
type App struct {
	config         *Config
	platform       Platform
	journal        *storage.Journal
	metrics        *observability.Metrics
	resetScheduler *scheduler.ResetScheduler

	mu                 sync.Mutex
	count              int
	shouldAddModerator bool
}

// Option 应用选项
type Option func(*App)

// WithPlatform 使用指定的平台实现
func WithPlatform(p Platform) Option {
	return func(a *App) {
		a.platform = p
	}
}

// WithJournal 使用指定的按键日志
func WithJournal(j *storage.Journal) Option {
	return func(a *App) {
		a.journal = j
	}
}

// WithMetrics 使用指定的指标
func WithMetrics(m *observability.Metrics) Option {
	return func(a *App) {
		a.metrics = m
	}
}

// New 创建 App，计数从 0 开始，主持人待添加
func New(config *Config, opts ...Option) *App {
	if config == nil {
		config = DefaultConfig()
	}

	a := &App{
		config:             config,
		shouldAddModerator: true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Initialize 初始化应用
// 包括：日志、指标、平台客户端、按键日志、定时重置
func (a *App) Initialize() error {
	// 1. 初始化日志
	if err := observability.InitLogger(observability.LogConfig{
		Level:    a.config.LogLevel(),
		Format:   a.config.Log.Format,
		Output:   a.config.Log.Output,
		FilePath: a.config.Log.FilePath,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	observability.Info("Initializing button relay",
		"room", a.config.Room,
		"actions", len(a.config.Actions),
		"port", a.config.Port,
		"debug", a.config.Debug,
	)

	// 2. 初始化指标
	if a.config.Metrics.Enabled && a.metrics == nil {
		a.metrics = observability.NewMetrics()
	}

	// 3. 初始化平台客户端
	if a.platform == nil {
		var opts []spark.ClientOption
		if a.metrics != nil {
			opts = append(opts, spark.WithObserver(a.metrics.ObserveUpstream))
		}
		a.platform = spark.NewClient(a.config.ClientConfig(), opts...)
		observability.Info("Platform client initialized",
			"base_url", a.config.API.BaseURL,
			"token", MaskToken(a.config.Token),
		)
	}

	// 4. 初始化按键日志
	if a.config.Database.Enabled && a.journal == nil {
		if err := storage.InitDB(storage.Config{Path: a.config.Database.Path}); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		journal, err := storage.NewJournal(storage.GetDB())
		if err != nil {
			return fmt.Errorf("failed to initialize press journal: %w", err)
		}
		a.journal = journal
	}

	// 5. 初始化定时重置（可选）
	if a.config.Reset.Cron != "" {
		s, err := scheduler.NewResetScheduler(a.config.Reset.Cron, a.Reset, slog.Default())
		if err != nil {
			return fmt.Errorf("failed to initialize reset scheduler: %w", err)
		}
		a.resetScheduler = s
		s.Start()
	}

	return nil
}

// Press 处理一次按键：解析房间 -> 添加主持人 -> 生成更新 -> 发送更新
// 任一步失败即中止，后续步骤不再执行
func (a *App) Press(ctx context.Context) (*types.PressResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	observability.InfoContext(ctx, "Button has been pressed")

	result := &types.PressResult{Seq: a.count}
	err := a.press(ctx, result)

	a.record(ctx, result, err, time.Since(start))

	if err != nil {
		observability.ErrorContext(ctx, "Press aborted", "error", err)
		return result, err
	}

	observability.InfoContext(ctx, "Room has been updated", "room_id", result.RoomID)
	return result, nil
}

func (a *App) press(ctx context.Context, result *types.PressResult) error {
	roomID, err := a.resolveRoom(ctx)
	if err != nil {
		return err
	}
	result.RoomID = roomID

	if err := a.ensureModerator(ctx, roomID); err != nil {
		return err
	}

	update, err := a.buildUpdate(ctx)
	if err != nil {
		return err
	}
	defer update.Close()

	result.Update = string(update.Kind)
	result.Summary = update.Summary()

	return a.postUpdate(ctx, roomID, update)
}

// resolveRoom 查找标题包含配置房间名的第一个房间，不存在时创建
// 不做缓存，每次按键都重新查找，房间被外部删除后会自动重建
func (a *App) resolveRoom(ctx context.Context) (string, error) {
	observability.InfoContext(ctx, "Looking for room", "room", a.config.Room)

	rooms, err := a.platform.ListRooms(ctx)
	if err != nil {
		return "", upstreamError("resolve_room", err)
	}

	for _, room := range rooms {
		if strings.Contains(room.Title, a.config.Room) {
			observability.DebugContext(ctx, "Found room", "room_id", room.ID, "title", room.Title)
			return room.ID, nil
		}
	}

	observability.InfoContext(ctx, "Room not found, creating it", "room", a.config.Room)

	room, err := a.platform.CreateRoom(ctx, a.config.Room)
	if err != nil {
		return "", upstreamError("create_room", err)
	}
	return room.ID, nil
}

// ensureModerator 首次解析房间（或重置后）添加主持人
// 成功后清除标记，直到下次重置都不再调用
func (a *App) ensureModerator(ctx context.Context, roomID string) error {
	if !a.shouldAddModerator {
		return nil
	}

	observability.InfoContext(ctx, "Adding moderator to the room", "moderator", a.config.Moderator)

	err := a.platform.CreateMembership(ctx, spark.Membership{
		RoomID:      roomID,
		PersonEmail: a.config.Moderator,
		IsModerator: true,
	})
	if err != nil {
		return upstreamError("ensure_moderator", err)
	}

	a.shouldAddModerator = false
	return nil
}

// buildUpdate 生成更新，计数先无条件加一
func (a *App) buildUpdate(ctx context.Context) (*Update, error) {
	seq := a.count
	a.count++

	update, err := BuildUpdate(a.config.Actions, seq)
	if err != nil {
		return nil, err
	}

	observability.InfoContext(ctx, "Update built", "seq", seq, "update", update.Summary())
	return update, nil
}

// postUpdate 发送更新：ping 使用普通表单，结构化更新使用 multipart
func (a *App) postUpdate(ctx context.Context, roomID string, update *Update) error {
	var err error
	if update.Kind == UpdatePing {
		err = a.platform.PostText(ctx, roomID, update.Text)
	} else {
		msg := &spark.Message{
			RoomID:   roomID,
			Text:     update.Text,
			Markdown: update.Markdown,
		}
		if update.File != nil {
			msg.File = &spark.MessageFile{
				Name:        update.File.Name,
				ContentType: update.File.ContentType,
				Content:     update.File.Content(),
			}
		}
		err = a.platform.PostMultipart(ctx, msg)
	}

	if err != nil {
		return upstreamError("post_update", err)
	}
	return nil
}

// Reset 删除所有标题匹配的房间，下次按键时重建并重新添加主持人
// 无论删除是否成功，主持人标记都会被置位
func (a *App) Reset(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	defer func() {
		a.shouldAddModerator = true
	}()

	observability.InfoContext(ctx, "Deleting room", "room", a.config.Room)

	rooms, err := a.platform.ListRooms(ctx)
	if err != nil {
		return upstreamError("reset_room", err)
	}

	deleted := 0
	for _, room := range rooms {
		if !strings.Contains(room.Title, a.config.Room) {
			continue
		}
		if err := a.platform.DeleteRoom(ctx, room.ID); err != nil {
			return upstreamError("reset_room", err)
		}
		deleted++
		observability.InfoContext(ctx, "Room deleted", "room_id", room.ID, "title", room.Title)
	}

	if deleted > 0 {
		observability.InfoContext(ctx, "Room will be re-created on next button press", "deleted", deleted)
	} else {
		observability.InfoContext(ctx, "No room with this name yet, it will be created on next button press")
	}
	return nil
}

// Status 返回当前状态
func (a *App) Status() types.Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	status := types.Status{
		Room:             a.config.Room,
		PressCount:       a.count,
		Actions:          len(a.config.Actions),
		ModeratorPending: a.shouldAddModerator,
	}

	if a.journal != nil {
		failed := storage.OutcomeFailed
		count, err := a.journal.Count(&failed)
		if err != nil {
			observability.Warn("Failed to count failed presses", "error", err)
		}
		status.FailedPresses = count
	}

	if a.resetScheduler != nil {
		runs, lastErr := a.resetScheduler.Stats()
		status.ScheduledResets = runs
		if lastErr != nil {
			status.LastResetError = lastErr.Error()
		}
	}

	return status
}

// record 写入按键日志和指标
func (a *App) record(ctx context.Context, result *types.PressResult, err error, duration time.Duration) {
	outcome := storage.OutcomeOK
	errMsg := ""
	if err != nil {
		outcome = storage.OutcomeFailed
		errMsg = err.Error()
	}

	observability.PressLog(ctx, result.Seq, result.Update, string(outcome), duration.Milliseconds())
	a.metrics.ObservePress(string(outcome), a.count)

	if a.journal == nil {
		return
	}
	rec := &storage.PressRecord{
		TraceID:    observability.GetTraceID(ctx),
		Seq:        result.Seq,
		RoomID:     result.RoomID,
		Update:     result.Update,
		Summary:    result.Summary,
		Outcome:    outcome,
		Error:      errMsg,
		DurationMs: duration.Milliseconds(),
	}
	if err := a.journal.Record(rec); err != nil {
		observability.WarnContext(ctx, "Failed to record press", "error", err)
	}
}

// GetConfig 获取配置
func (a *App) GetConfig() *Config {
	return a.config
}

// GetJournal 获取按键日志，未启用时为 nil
func (a *App) GetJournal() *storage.Journal {
	return a.journal
}

// GetMetrics 获取指标，未启用时为 nil
func (a *App) GetMetrics() *observability.Metrics {
	return a.metrics
}

// Shutdown 关闭应用
func (a *App) Shutdown() error {
	observability.Info("Shutting down button relay")

	if a.resetScheduler != nil {
		a.resetScheduler.Stop()
	}

	if err := storage.Close(); err != nil {
		observability.Error("Failed to close database", "error", err)
		return err
	}

	observability.Info("Button relay shutdown complete")
	return nil
}

// MaskToken 脱敏 Token，用于日志输出
func MaskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "****" + token[len(token)-4:]
}
