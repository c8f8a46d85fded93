package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/moodegoozy/sofra-core/pkg/db/models"
	"github.com/moodegoozy/sofra-core/pkg/enums"
	"github.com/moodegoozy/sofra-core/pkg/pagination"
)

// Filter narrows an audit query. Zero values mean "no constraint".
type Filter struct {
	Action     enums.AuditAction
	TargetType enums.AuditTargetType
	TargetID   uuid.UUID
	ActorID    uuid.UUID
	From       time.Time
	To         time.Time
}

// Repository is the append-only persistence surface for audit entries.
// There is deliberately no update or delete.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.AuditEntry) error
	List(ctx context.Context, filter Filter, cursor *pagination.Cursor, limit int) ([]models.AuditEntry, error)
	ListAll(ctx context.Context, filter Filter) ([]models.AuditEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an audit repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.AuditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) List(ctx context.Context, filter Filter, cursor *pagination.Cursor, limit int) ([]models.AuditEntry, error) {
	q := r.filtered(ctx, filter)

	if cursor != nil {
		q = q.Where(
			"(created_at > ?) OR (created_at = ? AND id > ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var entries []models.AuditEntry
	if err := q.Order("created_at ASC, id ASC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListAll(ctx context.Context, filter Filter) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	if err := r.filtered(ctx, filter).
		Order("created_at ASC, id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) filtered(ctx context.Context, filter Filter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.AuditEntry{})
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if filter.TargetType != "" {
		q = q.Where("target_type = ?", filter.TargetType)
	}
	if filter.TargetID != uuid.Nil {
		q = q.Where("target_id = ?", filter.TargetID)
	}
	if filter.ActorID != uuid.Nil {
		q = q.Where("actor_id = ?", filter.ActorID)
	}
	if !filter.From.IsZero() {
		q = q.Where("created_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		q = q.Where("created_at < ?", filter.To)
	}
	return q
}
