package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/capvis/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CaptionRepository persists one caption record per image key and backs the
// batch cache. A record is considered fresh only while the source file's size
// and modification time still match the snapshot taken at caption time and
// the record is younger than maxAge.
type CaptionRepository struct {
	db     *gorm.DB
	maxAge time.Duration // zero disables the age check
}

// NewCaptionRepository creates a new CaptionRepository.
func NewCaptionRepository(db *gorm.DB, maxAge time.Duration) *CaptionRepository {
	return &CaptionRepository{db: db, maxAge: maxAge}
}

// Has reports whether a fresh caption record exists for the image.
func (r *CaptionRepository) Has(ctx context.Context, img domain.ImageRecord) (bool, error) {
	var rec domain.CaptionRecord
	err := r.db.WithContext(ctx).First(&rec, "key = ?", img.Key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: lookup %s: %v", domain.ErrStorage, img.Key, err)
	}
	return r.fresh(&rec, img), nil
}

func (r *CaptionRepository) fresh(rec *domain.CaptionRecord, img domain.ImageRecord) bool {
	if rec.FileSize != img.Size || rec.ModTimeNS != img.ModTime.UnixNano() {
		return false
	}
	if r.maxAge > 0 && time.Since(rec.CreatedAt) > r.maxAge {
		return false
	}
	return true
}

// Get retrieves the caption for key. Returns domain.ErrNotFound on a miss.
func (r *CaptionRepository) Get(ctx context.Context, key string) (*domain.Caption, error) {
	rec, err := r.GetRecord(ctx, key)
	if err != nil {
		return nil, err
	}

	var caption domain.Caption
	if rec.RawFallback {
		caption.RawText = rec.Payload
		return &caption, nil
	}
	if err := json.Unmarshal([]byte(rec.Payload), &caption); err != nil {
		return nil, fmt.Errorf("%w: decode payload for %s: %v", domain.ErrStorage, key, err)
	}
	return &caption, nil
}

// GetRecord retrieves the raw persisted record for key.
func (r *CaptionRepository) GetRecord(ctx context.Context, key string) (*domain.CaptionRecord, error) {
	var rec domain.CaptionRecord
	err := r.db.WithContext(ctx).First(&rec, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lookup %s: %v", domain.ErrStorage, key, err)
	}
	return &rec, nil
}

// Put persists the caption for img, overwriting any prior record for the
// same key. The write is durable before Put returns.
func (r *CaptionRepository) Put(ctx context.Context, img domain.ImageRecord, caption *domain.Caption, model string) error {
	rec := domain.CaptionRecord{
		Key:       img.Key,
		ImagePath: img.Path,
		FileSize:  img.Size,
		ModTimeNS: img.ModTime.UnixNano(),
		VLMModel:  model,
		CreatedAt: time.Now(),
	}

	if caption.Structured() {
		payload, err := json.Marshal(caption)
		if err != nil {
			return fmt.Errorf("%w: encode caption for %s: %v", domain.ErrStorage, img.Key, err)
		}
		rec.Payload = string(payload)
	} else {
		rec.Payload = caption.RawText
		rec.RawFallback = true
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			UpdateAll: true,
		}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("%w: put %s: %v", domain.ErrStorage, img.Key, err)
	}
	return nil
}

// Keys returns all known caption keys. The scan is finite and restartable;
// it is used to build the cache index at startup.
func (r *CaptionRepository) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := r.db.WithContext(ctx).
		Model(&domain.CaptionRecord{}).
		Order("key").
		Pluck("key", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list keys: %v", domain.ErrStorage, err)
	}
	return keys, nil
}

// Clear removes all caption records.
func (r *CaptionRepository) Clear(ctx context.Context) error {
	err := r.db.WithContext(ctx).
		Where("1 = 1").
		Delete(&domain.CaptionRecord{}).Error
	if err != nil {
		return fmt.Errorf("%w: clear: %v", domain.ErrStorage, err)
	}
	return nil
}

// CacheStats summarizes the persisted cache contents.
type CacheStats struct {
	Records      int64
	PayloadBytes int64
}

// Stats returns record count and total payload size.
func (r *CaptionRepository) Stats(ctx context.Context) (*CacheStats, error) {
	var stats CacheStats
	err := r.db.WithContext(ctx).
		Model(&domain.CaptionRecord{}).
		Select("count(*) as records, coalesce(sum(length(payload)), 0) as payload_bytes").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("%w: stats: %v", domain.ErrStorage, err)
	}
	return &stats, nil
}
