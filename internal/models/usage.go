package models

import (
	"time"

	"gorm.io/datatypes"
)

// Usage records one admitted completion attempt. Quota counters themselves
// are never persisted; this ledger exists for operator visibility only.
type Usage struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Identity string `gorm:"type:varchar(64);not null;index"` // Caller identity (counter key, not authenticated).
	Model    string `gorm:"type:varchar(128);not null"`      // Requested model.
	Tone     string `gorm:"type:varchar(64)"`                // Requested tone.
	Length   string `gorm:"type:varchar(64)"`                // Requested length.

	PromptBytes     int `gorm:"not null;default:0"` // Raw input size in bytes.
	CompletionChars int `gorm:"not null;default:0"` // Returned content length.

	BYOK   bool `gorm:"column:byok;not null;default:false"` // Caller supplied their own key.
	Failed bool `gorm:"not null;default:false"`             // Upstream call failed.

	Params datatypes.JSON `gorm:"type:jsonb"` // Request parameters as submitted.

	RequestedAt time.Time `gorm:"not null;index"`          // Admission time.
	CreatedAt   time.Time `gorm:"not null;autoCreateTime"` // Row creation time.
}
