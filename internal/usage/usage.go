// Package usage records completed story requests to the usage ledger.
package usage

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/storydeck/storydeck/internal/models"
)

const recordTimeout = 5 * time.Second

// Record describes a single story generation attempt.
type Record struct {
	Identity        string
	Model           string
	Tone            string
	Length          string
	PromptBytes     int
	CompletionChars int
	BYOK            bool
	Failed          bool
	Params          datatypes.JSON
	RequestedAt     time.Time
}

// Recorder persists usage records. A nil Recorder discards everything.
type Recorder struct {
	db    *gorm.DB
	nowFn func() time.Time
	wg    sync.WaitGroup
}

// NewRecorder creates a usage recorder backed by the given database.
func NewRecorder(conn *gorm.DB) *Recorder {
	return &Recorder{db: conn, nowFn: time.Now}
}

// Record writes a usage row in the background. Failures are logged, never
// propagated, so ledger trouble cannot slow down or break request handling.
func (r *Recorder) Record(rec Record) {
	if r == nil || r.db == nil {
		return
	}
	if rec.RequestedAt.IsZero() {
		rec.RequestedAt = r.nowFn()
	}
	row := &models.Usage{
		Identity:        rec.Identity,
		Model:           rec.Model,
		Tone:            rec.Tone,
		Length:          rec.Length,
		PromptBytes:     rec.PromptBytes,
		CompletionChars: rec.CompletionChars,
		BYOK:            rec.BYOK,
		Failed:          rec.Failed,
		Params:          rec.Params,
		RequestedAt:     rec.RequestedAt,
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if errCreate := r.db.WithContext(ctx).Create(row).Error; errCreate != nil {
			log.WithError(errCreate).Warn("usage: failed to record request")
		}
	}()
}

// Flush blocks until all in-flight writes have finished. Call on shutdown.
func (r *Recorder) Flush() {
	if r == nil {
		return
	}
	r.wg.Wait()
}

// Page is one page of usage rows for the admin API.
type Page struct {
	Total int64          `json:"total"`
	Rows  []models.Usage `json:"rows"`
}

// List returns usage rows ordered by most recent first.
func (r *Recorder) List(ctx context.Context, identity string, offset, limit int) (*Page, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("usage: recorder not configured")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := r.db.WithContext(ctx).Model(&models.Usage{})
	if identity != "" {
		query = query.Where("identity = ?", identity)
	}
	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		return nil, fmt.Errorf("usage: count: %w", errCount)
	}
	var rows []models.Usage
	errFind := query.Order("requested_at DESC").Offset(offset).Limit(limit).Find(&rows).Error
	if errFind != nil {
		return nil, fmt.Errorf("usage: list: %w", errFind)
	}
	return &Page{Total: total, Rows: rows}, nil
}
