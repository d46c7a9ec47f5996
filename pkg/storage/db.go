// Package storage 提供数据存储功能
package storage

import (
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/KodaTao/ButtonRelay/pkg/observability"
)

// MemoryPath 内存数据库路径
const MemoryPath = ":memory:"

// DB 全局数据库实例
var DB *gorm.DB

// Config 数据库配置
type Config struct {
	Path string // 数据库文件路径
}

// Open 打开数据库连接
func Open(cfg Config) (*gorm.DB, error) {
	dbPath := cfg.Path
	if dbPath == "" {
		dbPath = MemoryPath
	}

	if dbPath != MemoryPath {
		// 处理路径中的 ~
		dbPath = expandPath(dbPath)

		// 确保目录存在
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// 每个内存连接都是独立的数据库，只保留一个连接
	if dbPath == MemoryPath {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

// InitDB 初始化全局数据库连接
func InitDB(cfg Config) error {
	db, err := Open(cfg)
	if err != nil {
		return err
	}

	DB = db
	observability.Info("Database initialized", "path", cfg.Path)

	return nil
}

// GetDB 获取数据库实例
func GetDB() *gorm.DB {
	return DB
}

// Close 关闭数据库连接
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	DB = nil
	return sqlDB.Close()
}

// expandPath 展开路径中的 ~ 为用户主目录
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

// 错误定义
var (
	ErrDBNotInitialized = &DBError{Message: "database not initialized"}
)

// DBError 数据库错误
type DBError struct {
	Message string
}

func (e *DBError) Error() string {
	return e.Message
}
