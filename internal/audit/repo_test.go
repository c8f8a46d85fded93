package audit

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/moodegoozy/sofra-core/pkg/db/models"
	"github.com/moodegoozy/sofra-core/pkg/enums"
	"github.com/moodegoozy/sofra-core/pkg/pagination"
)

func setupAuditTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS audit_entries (
  id TEXT PRIMARY KEY,
  action TEXT NOT NULL,
  target_type TEXT NOT NULL,
  target_id TEXT NOT NULL,
  actor_id TEXT NOT NULL,
  actor_role TEXT NOT NULL,
  detail TEXT NOT NULL,
  payload TEXT,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func createEntry(t *testing.T, db *gorm.DB, action enums.AuditAction, targetType enums.AuditTargetType, targetID uuid.UUID, created time.Time) *models.AuditEntry {
	t.Helper()

	entry := &models.AuditEntry{
		ID:         uuid.New(),
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		ActorID:    uuid.New(),
		ActorRole:  enums.ActorRoleAdmin,
		Detail:     "test entry",
		CreatedAt:  created,
	}
	require.NoError(t, db.Create(entry).Error)
	return entry
}

func TestRepositoryListFiltersByTarget(t *testing.T) {
	db := setupAuditTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	orderID := uuid.New()
	restaurantID := uuid.New()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	createEntry(t, db, enums.AuditActionOrderSettled, enums.AuditTargetOrder, orderID, base)
	createEntry(t, db, enums.AuditActionTrustSignalApplied, enums.AuditTargetRestaurant, restaurantID, base.Add(time.Minute))
	createEntry(t, db, enums.AuditActionTrustSignalApplied, enums.AuditTargetRestaurant, uuid.New(), base.Add(2*time.Minute))

	entries, err := repo.List(ctx, Filter{
		TargetType: enums.AuditTargetRestaurant,
		TargetID:   restaurantID,
	}, nil, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, restaurantID, entries[0].TargetID)
}

func TestRepositoryListOrdersOldestFirstAndFiltersByTime(t *testing.T) {
	db := setupAuditTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	target := uuid.New()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	first := createEntry(t, db, enums.AuditActionOrderTransitioned, enums.AuditTargetOrder, target, base)
	second := createEntry(t, db, enums.AuditActionOrderTransitioned, enums.AuditTargetOrder, target, base.Add(time.Hour))
	createEntry(t, db, enums.AuditActionOrderTransitioned, enums.AuditTargetOrder, target, base.Add(48*time.Hour))

	entries, err := repo.List(ctx, Filter{
		From: base,
		To:   base.Add(2 * time.Hour),
	}, nil, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first.ID, entries[0].ID)
	assert.Equal(t, second.ID, entries[1].ID)
}

func TestRepositoryListHonorsCursor(t *testing.T) {
	db := setupAuditTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	target := uuid.New()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	var created []*models.AuditEntry
	for i := 0; i < 5; i++ {
		created = append(created, createEntry(t, db, enums.AuditActionLedgerAdjusted, enums.AuditTargetLedgerAccount, target, base.Add(time.Duration(i)*time.Minute)))
	}

	cursor := &pagination.Cursor{CreatedAt: created[1].CreatedAt, ID: created[1].ID}
	entries, err := repo.List(ctx, Filter{}, cursor, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, created[2].ID, entries[0].ID)
}

func TestRepositoryListAllReturnsEverything(t *testing.T) {
	db := setupAuditTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		createEntry(t, db, enums.AuditActionOrderSettled, enums.AuditTargetOrder, uuid.New(), base.Add(time.Duration(i)*time.Second))
	}

	entries, err := repo.ListAll(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}
