// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_ledger

import (
	"time"

	"gorm.io/gorm"
)

// Session status constants.
const (
	StatusRecording = "recording" // captures running
	StatusClosed    = "closed"    // captures stopped cleanly
	StatusDegraded  = "degraded"  // a capture failed; files may be partial
)

// Mux status constants.
const (
	MuxPending = "pending" // job submitted, combiner running or queued
	MuxMuxed   = "muxed"   // container written, sources removed
	MuxFailed  = "failed"  // combiner failed, sources kept
	MuxSkipped = "skipped" // single-mode or degraded session
)

// SessionRecord is one recording session. Rows are never deleted by the
// controller; status moves recording → closed|degraded and mux_status moves
// pending → muxed|failed, or is skipped.
type SessionRecord struct {
	Id          uint64     `json:"id" gorm:"primaryKey;autoIncrement"`
	SessionID   string     `json:"sessionId" gorm:"column:session_id;type:varchar(36);not null;uniqueIndex"`
	Sequence    int        `json:"sequence" gorm:"column:sequence;not null;index"`
	BasePath    string     `json:"basePath" gorm:"column:base_path;type:text;not null"`
	Audio       bool       `json:"audio" gorm:"column:audio;not null"`
	Video       bool       `json:"video" gorm:"column:video;not null"`
	Status      string     `json:"status" gorm:"column:status;type:varchar(20);not null;default:recording"`
	MuxStatus   string     `json:"muxStatus" gorm:"column:mux_status;type:varchar(20);not null;default:''"`
	MuxDetail   string     `json:"muxDetail,omitempty" gorm:"column:mux_detail;type:text;not null;default:''"`
	StartedAt   time.Time  `json:"startedAt" gorm:"column:started_at;not null"`
	ClosedAt    *time.Time `json:"closedAt,omitempty" gorm:"column:closed_at"`
	CreatedDate time.Time  `json:"createdDate" gorm:"column:created_date;not null;<-:create"`
	UpdatedDate time.Time  `json:"updatedDate" gorm:"column:updated_date"`
}

func (SessionRecord) TableName() string {
	return "capture_sessions"
}

func (r *SessionRecord) BeforeCreate(tx *gorm.DB) error {
	if r.CreatedDate.IsZero() {
		r.CreatedDate = time.Now()
	}
	if r.Status == "" {
		r.Status = StatusRecording
	}
	return nil
}
