package outbox

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/moodegoozy/sofra-core/pkg/db/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(&event).Error
}

// FetchUnpublished returns pending events in creation order, skipping events
// that exhausted their publish attempts.
func (r *Repository) FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error) {
	var rows []models.OutboxEvent
	err := r.db.Where("published_at IS NULL AND attempt_count < ?", maxAttempts).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublished(id uuid.UUID) error {
	now := time.Now()
	return r.db.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{"published_at": now}).Error
}

// DeletePublishedBefore removes events that were published before the cutoff.
// Unpublished events are never deleted; they either publish or sit visibly
// failed for an operator.
func (r *Repository) DeletePublishedBefore(cutoff time.Time) (int64, error) {
	res := r.db.Where("published_at IS NOT NULL AND published_at < ?", cutoff).
		Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

func (r *Repository) MarkFailed(id uuid.UUID, cause error) error {
	msg := "unknown publish error"
	if cause != nil {
		msg = cause.Error()
	}
	return r.db.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"last_error":    msg,
		}).Error
}
