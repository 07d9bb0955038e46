package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"llmsecrets/internal/logger"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Setting 扩展本地持久化的键值项
type Setting struct {
	Name      string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

// Store 基于 sqlite 的键值存储
type Store struct {
	db *gorm.DB
}

// Open 打开数据库并迁移表结构
func Open(dsn, prefix string, l logger.Logger) (*Store, error) {
	if l == nil {
		l = logger.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         newGormLogger(l, gormlogger.Warn),
		NamingStrategy: schema.NamingStrategy{TablePrefix: prefix},
	})
	if err != nil {
		return nil, fmt.Errorf("打开数据库 %s: %w", dsn, err)
	}
	if err := db.AutoMigrate(&Setting{}); err != nil {
		return nil, fmt.Errorf("迁移表结构: %w", err)
	}
	return &Store{db: db}, nil
}

// Close 关闭底层连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetString 读取字符串值，不存在时 ok 为 false
func (s *Store) GetString(ctx context.Context, key string) (string, bool, error) {
	var st Setting
	err := s.db.WithContext(ctx).Where("name = ?", key).Take(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("读取 %s: %w", key, err)
	}
	return st.Value, true, nil
}

// SetString 写入或覆盖字符串值
func (s *Store) SetString(ctx context.Context, key, value string) error {
	st := Setting{Name: key, Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&st).Error
	if err != nil {
		return fmt.Errorf("写入 %s: %w", key, err)
	}
	return nil
}

// GetInt 读取整数值，不存在或无法解析时 ok 为 false
func (s *Store) GetInt(ctx context.Context, key string) (int, bool, error) {
	v, ok, err := s.GetString(ctx, key)
	if err != nil || !ok {
		return 0, false, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, nil
	}
	return n, true, nil
}

// SetInt 写入整数值
func (s *Store) SetInt(ctx context.Context, key string, value int) error {
	return s.SetString(ctx, key, strconv.Itoa(value))
}

// Delete 删除键
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("name = ?", key).Delete(&Setting{}).Error; err != nil {
		return fmt.Errorf("删除 %s: %w", key, err)
	}
	return nil
}
