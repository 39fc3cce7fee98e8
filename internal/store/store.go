// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/agricure/agricure-locate/internal/acquisition"
)

var (
	ErrNoRecords   = errors.New("no resolutions recorded")
	ErrNotResolved = errors.New("state is not resolved")
)

// Resolution is one resolved position request.
type Resolution struct {
	ID           string    `gorm:"primaryKey;type:text" json:"id"`
	Request      uint64    `gorm:"index" json:"request"`
	Status       string    `gorm:"index" json:"status"`
	Capability   string    `json:"capability"`
	HasPosition  bool      `json:"has_position"`
	Latitude     float64   `json:"lat"`
	Longitude    float64   `json:"lng"`
	Accuracy     float64   `json:"accuracy,omitempty"`
	Source       string    `json:"source,omitempty"`
	ErrorCode    string    `json:"error_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ResolvedAt   time.Time `gorm:"index" json:"resolved_at"`
}

// Store keeps the resolution history in SQLite.
type Store struct {
	db *gorm.DB
}

// Open opens or creates the database at path and migrates the schema. Use ":memory:" for a
// throwaway database.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open resolution store: %w", err)
	}
	if err = db.AutoMigrate(&Resolution{}); err != nil {
		return nil, fmt.Errorf("failed to migrate resolution store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to access resolution store: %w", err)
	}
	if err = sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close resolution store: %w", err)
	}
	return nil
}

// Record stores a resolved snapshot. Loading and idle snapshots are rejected with ErrNotResolved.
func (s *Store) Record(ctx context.Context, capability string, state acquisition.State) (Resolution, error) {
	if !state.Resolved() {
		return Resolution{}, ErrNotResolved
	}
	res := Resolution{
		ID:         uuid.NewString(),
		Request:    state.Request,
		Status:     string(state.Status()),
		Capability: capability,
		ResolvedAt: state.UpdatedAt,
	}
	if res.ResolvedAt.IsZero() {
		res.ResolvedAt = time.Now()
	}
	if state.Position != nil {
		res.HasPosition = true
		res.Latitude = state.Position.Lat
		res.Longitude = state.Position.Lng
		res.Accuracy = state.Position.Accuracy
		res.Source = state.Position.Source
	}
	if state.Error != nil {
		res.ErrorCode = state.Error.Code.String()
		res.ErrorMessage = state.Error.Message
	}

	if err := s.db.WithContext(ctx).Create(&res).Error; err != nil {
		return res, fmt.Errorf("failed to record resolution: %w", err)
	}
	return res, nil
}

// Latest returns the most recent resolution.
func (s *Store) Latest(ctx context.Context) (Resolution, error) {
	var res Resolution
	err := s.db.WithContext(ctx).Order("resolved_at DESC").Order("request DESC").First(&res).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return res, ErrNoRecords
	}
	if err != nil {
		return res, fmt.Errorf("failed to query latest resolution: %w", err)
	}
	return res, nil
}

// List returns up to limit resolutions, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Resolution, error) {
	if limit <= 0 {
		limit = 50
	}
	list := make([]Resolution, 0, limit)
	if err := s.db.WithContext(ctx).Order("resolved_at DESC").Order("request DESC").Limit(limit).
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list resolutions: %w", err)
	}
	return list, nil
}

// Prune deletes resolutions older than olderThan and returns the number of deleted rows.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("resolved_at < ?", olderThan).Delete(&Resolution{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune resolutions: %w", result.Error)
	}
	return result.RowsAffected, nil
}
