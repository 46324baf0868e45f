// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/rapidaai/motioncam/pkg/commons"
)

const DefaultListLimit = 50

// Store keeps the history of recording sessions.
type Store interface {
	// Begin inserts a session in status "recording". A missing SessionID is
	// generated.
	Begin(ctx context.Context, rec *SessionRecord) error

	// Finish moves a session to closed or degraded.
	Finish(ctx context.Context, sessionID, status string, closedAt time.Time) error

	// RecordMux stores the mux outcome of a session.
	RecordMux(ctx context.Context, sessionID, muxStatus, detail string) error

	// List returns the most recent sessions, newest first.
	List(ctx context.Context, limit int) ([]SessionRecord, error)

	// LastSequence returns the highest recorded sequence, or -1 when empty.
	LastSequence(ctx context.Context) (int, error)

	Close() error
}

type sqliteStore struct {
	db     *gorm.DB
	logger commons.Logger
}

// NewSQLiteStore opens (creating when needed) the ledger database at path
// and migrates its schema.
func NewSQLiteStore(path string, logger commons.Logger) (Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	if err := db.AutoMigrate(&SessionRecord{}); err != nil {
		return nil, fmt.Errorf("migrating ledger: %w", err)
	}
	logger.Debugf("session ledger ready: path=%s", path)
	return &sqliteStore{db: db, logger: logger}, nil
}

func (s *sqliteStore) Begin(ctx context.Context, rec *SessionRecord) error {
	if rec.SessionID == "" {
		rec.SessionID = uuid.New().String()
	}
	if rec.Status == "" {
		rec.Status = StatusRecording
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to record session %s: %w", rec.SessionID, err)
	}
	s.logger.Debugf("recorded session: sessionId=%s, sequence=%d", rec.SessionID, rec.Sequence)
	return nil
}

func (s *sqliteStore) Finish(ctx context.Context, sessionID, status string, closedAt time.Time) error {
	if status != StatusClosed && status != StatusDegraded {
		return fmt.Errorf("invalid final status %q", status)
	}
	return s.update(ctx, sessionID, map[string]interface{}{
		"status":    status,
		"closed_at": closedAt,
	})
}

func (s *sqliteStore) RecordMux(ctx context.Context, sessionID, muxStatus, detail string) error {
	switch muxStatus {
	case MuxPending, MuxMuxed, MuxFailed, MuxSkipped:
	default:
		return fmt.Errorf("invalid mux status %q", muxStatus)
	}
	return s.update(ctx, sessionID, map[string]interface{}{
		"mux_status": muxStatus,
		"mux_detail": detail,
	})
}

func (s *sqliteStore) update(ctx context.Context, sessionID string, fields map[string]interface{}) error {
	fields["updated_date"] = time.Now()
	result := s.db.WithContext(ctx).Model(&SessionRecord{}).
		Where("session_id = ?", sessionID).
		Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update session %s: %w", sessionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("session %s: %w", sessionID, gorm.ErrRecordNotFound)
	}
	return nil
}

func (s *sqliteStore) List(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var out []SessionRecord
	if err := s.db.WithContext(ctx).Order("sequence desc, id desc").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return out, nil
}

func (s *sqliteStore) LastSequence(ctx context.Context) (int, error) {
	var rec SessionRecord
	err := s.db.WithContext(ctx).Order("sequence desc").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return -1, nil
	}
	if err != nil {
		return -1, fmt.Errorf("failed to read last sequence: %w", err)
	}
	return rec.Sequence, nil
}

func (s *sqliteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type noopStore struct{}

// NewNoopStore is used when the ledger is disabled.
func NewNoopStore() Store {
	return noopStore{}
}

func (noopStore) Begin(_ context.Context, rec *SessionRecord) error {
	if rec.SessionID == "" {
		rec.SessionID = uuid.New().String()
	}
	return nil
}

func (noopStore) Finish(context.Context, string, string, time.Time) error { return nil }

func (noopStore) RecordMux(context.Context, string, string, string) error { return nil }

func (noopStore) List(context.Context, int) ([]SessionRecord, error) { return nil, nil }

func (noopStore) LastSequence(context.Context) (int, error) { return -1, nil }

func (noopStore) Close() error { return nil }
