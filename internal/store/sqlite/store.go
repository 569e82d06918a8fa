package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"inditrade/internal/store"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const defaultKey = "inditrade_user_v1"

// SnapshotModel maps to the account_snapshots table. One row per storage
// key; the payload is stored byte for byte.
type SnapshotModel struct {
	StorageKey string         `gorm:"column:storage_key;primaryKey;size:128"`
	Payload    datatypes.JSON `gorm:"type:json;not null"`
	Version    int64          `gorm:"not null;default:1"`
	UpdatedAt  time.Time
}

func (SnapshotModel) TableName() string { return "account_snapshots" }

// SnapshotStore implements store.SnapshotStore on GORM + SQLite.
type SnapshotStore struct {
	db  *gorm.DB
	key string
}

var _ store.SnapshotStore = (*SnapshotStore)(nil)

func NewSnapshotStore(path, key string) (*SnapshotStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	return NewSnapshotStoreFromDB(db, key)
}

func NewSnapshotStoreFromDB(db *gorm.DB, key string) (*SnapshotStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db cannot be nil")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = defaultKey
	}
	if err := db.AutoMigrate(&SnapshotModel{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &SnapshotStore{db: db, key: key}, nil
}

func (s *SnapshotStore) Load(ctx context.Context) ([]byte, error) {
	var m SnapshotModel
	err := s.db.WithContext(ctx).Where("storage_key = ?", s.key).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", s.key, err)
	}
	return []byte(m.Payload), nil
}

func (s *SnapshotStore) Save(ctx context.Context, snapshot []byte) error {
	m := SnapshotModel{
		StorageKey: s.key,
		Payload:    datatypes.JSON(append([]byte(nil), snapshot...)),
		Version:    1,
		UpdatedAt:  time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "storage_key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"payload":    m.Payload,
			"updated_at": m.UpdatedAt,
			"version":    gorm.Expr("version + 1"),
		}),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", s.key, err)
	}
	return nil
}

// Version returns how many times the snapshot has been written.
func (s *SnapshotStore) Version(ctx context.Context) (int64, error) {
	var m SnapshotModel
	err := s.db.WithContext(ctx).Select("version").Where("storage_key = ?", s.key).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return m.Version, err
}

func (s *SnapshotStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
