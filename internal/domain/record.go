package domain

import "time"

// CaptionRecord is the persisted form of a Caption, one row per image key.
// FileSize and ModTimeNS snapshot the source file at caption time and drive
// the cache freshness check: a record whose snapshot no longer matches the
// file on disk is stale.
type CaptionRecord struct {
	Key         string    `gorm:"type:text;primaryKey" json:"key"`
	ImagePath   string    `gorm:"type:text;not null" json:"image_path"`
	FileSize    int64     `gorm:"not null" json:"file_size"`
	ModTimeNS   int64     `gorm:"not null" json:"mod_time_ns"`
	VLMModel    string    `gorm:"type:text;not null" json:"vlm_model"`
	Payload     string    `gorm:"type:text;not null" json:"payload"`
	RawFallback bool      `json:"raw_fallback"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for CaptionRecord.
func (CaptionRecord) TableName() string {
	return "captions"
}
