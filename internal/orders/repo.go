package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/moodegoozy/sofra-core/pkg/db/models"
	"github.com/moodegoozy/sofra-core/pkg/enums"
)

// Repository defines persistence operations for orders and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateStatusGuarded(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error)
	MarkSettled(ctx context.Context, orderID uuid.UUID, settledAt time.Time) (bool, error)
	ListByRestaurant(ctx context.Context, restaurantID uuid.UUID, status *enums.OrderStatus) ([]models.Order, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an orders repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateStatusGuarded moves the order from → to in a single statement guarded
// on the current status. A false return means another writer moved the order
// first; the caller decides whether that is a conflict or a replay.
func (r *repository) UpdateStatusGuarded(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error) {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["status"] = to

	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkSettled flips the settled flag exactly once per delivered order.
func (r *repository) MarkSettled(ctx context.Context, orderID uuid.UUID, settledAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ? AND settled = ?", orderID, enums.OrderStatusDelivered, false).
		Updates(map[string]any{
			"settled":    true,
			"settled_at": settledAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListByRestaurant(ctx context.Context, restaurantID uuid.UUID, status *enums.OrderStatus) ([]models.Order, error) {
	q := r.db.WithContext(ctx).
		Preload("Items").
		Where("restaurant_id = ?", restaurantID)
	if status != nil {
		q = q.Where("status = ?", *status)
	}

	var orders []models.Order
	if err := q.Order("created_at DESC, id DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
