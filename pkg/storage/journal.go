package storage

import (
	"fmt"

	"gorm.io/gorm"
)

// PressOutcome 按键结果
type PressOutcome string

const (
	OutcomeOK     PressOutcome = "ok"     // 已发送
	OutcomeFailed PressOutcome = "failed" // 中途失败
)

// PressRecord 按键日志条目
// 只用于排查，计数器不会从这里恢复
type PressRecord struct {
	gorm.Model
	TraceID    string       `gorm:"index" json:"trace_id"`
	Seq        int          `gorm:"index" json:"seq"`                  // 按键前的计数值
	RoomID     string       `json:"room_id,omitempty"`                 // 目标房间
	Update     string       `json:"update,omitempty"`                  // 更新类型
	Summary    string       `gorm:"type:text" json:"summary,omitempty"` // 更新摘要
	Outcome    PressOutcome `gorm:"index" json:"outcome"`
	Error      string       `gorm:"type:text" json:"error,omitempty"`
	DurationMs int64        `json:"duration_ms"`
}

// TableName 指定表名
func (PressRecord) TableName() string {
	return "press_records"
}

// Journal PressRecord 数据访问层
type Journal struct {
	db *gorm.DB
}

// NewJournal 创建 Journal 并迁移表
func NewJournal(db *gorm.DB) (*Journal, error) {
	if db == nil {
		return nil, ErrDBNotInitialized
	}
	if err := db.AutoMigrate(&PressRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate press records: %w", err)
	}
	return &Journal{db: db}, nil
}

// Record 写入一条按键日志
func (j *Journal) Record(rec *PressRecord) error {
	return j.db.Create(rec).Error
}

// Recent 按时间倒序列出最近的记录
func (j *Journal) Recent(limit int) ([]PressRecord, error) {
	var records []PressRecord
	query := j.db.Model(&PressRecord{}).Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&records).Error
	return records, err
}

// Count 统计记录数量，outcome 为 nil 时统计全部
func (j *Journal) Count(outcome *PressOutcome) (int64, error) {
	var count int64
	query := j.db.Model(&PressRecord{})
	if outcome != nil {
		query = query.Where("outcome = ?", *outcome)
	}
	err := query.Count(&count).Error
	return count, err
}
