package trust

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/moodegoozy/sofra-core/pkg/db/models"
)

// Repository manages trust records and their append-only event history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.TrustRecord) error
	Get(ctx context.Context, restaurantID uuid.UUID) (*models.TrustRecord, error)
	UpdateGuarded(ctx context.Context, record *models.TrustRecord, expectedBalance int64) (bool, error)
	CreateEvent(ctx context.Context, event *models.TrustEvent) error
	ListEvents(ctx context.Context, restaurantID uuid.UUID) ([]models.TrustEvent, error)
	ListRecords(ctx context.Context) ([]models.TrustRecord, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a trust repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, record *models.TrustRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) Get(ctx context.Context, restaurantID uuid.UUID) (*models.TrustRecord, error) {
	var record models.TrustRecord
	if err := r.db.WithContext(ctx).
		First(&record, "restaurant_id = ?", restaurantID).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// UpdateGuarded writes the record only when the stored balance still matches
// expectedBalance. A false return means a concurrent writer got there first.
func (r *repository) UpdateGuarded(ctx context.Context, record *models.TrustRecord, expectedBalance int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.TrustRecord{}).
		Where("restaurant_id = ? AND point_balance = ?", record.RestaurantID, expectedBalance).
		Updates(map[string]any{
			"point_balance": record.PointBalance,
			"warning_count": record.WarningCount,
			"suspended":     record.Suspended,
			"suspended_at":  record.SuspendedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CreateEvent(ctx context.Context, event *models.TrustEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListEvents(ctx context.Context, restaurantID uuid.UUID) ([]models.TrustEvent, error) {
	var events []models.TrustEvent
	if err := r.db.WithContext(ctx).
		Where("restaurant_id = ?", restaurantID).
		Order("created_at ASC, id ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) ListRecords(ctx context.Context) ([]models.TrustRecord, error) {
	var records []models.TrustRecord
	if err := r.db.WithContext(ctx).
		Order("created_at ASC, restaurant_id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
