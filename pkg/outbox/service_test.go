package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/moodegoozy/sofra-core/pkg/db/models"
	"github.com/moodegoozy/sofra-core/pkg/enums"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(4))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(6)))),
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	require.NoError(t, conn.Exec(schema).Error)
	return conn
}

func TestEmitStoresEnvelope(t *testing.T) {
	conn := setupOutboxTestDB(t)
	svc := NewService(NewRepository(conn), nil)

	aggregateID := uuid.New()
	actorID := uuid.New()
	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderSettled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   aggregateID,
			Actor:         &ActorRef{ActorID: actorID, Role: enums.ActorRoleSystem},
			Data:          map[string]any{"platform_cents": 500},
			Version:       1,
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventOrderSettled, rows[0].EventType)
	assert.Equal(t, aggregateID, rows[0].AggregateID)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, actorID, envelope.Actor.ActorID)
	assert.JSONEq(t, `{"platform_cents":500}`, string(envelope.Data))
}

func TestEmitValidation(t *testing.T) {
	conn := setupOutboxTestDB(t)
	svc := NewService(NewRepository(conn), nil)

	err := svc.Emit(context.Background(), nil, DomainEvent{})
	assert.Error(t, err)

	err = conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.OutboxEventType("bogus"),
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
		})
	})
	assert.Error(t, err)
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	conn := setupOutboxTestDB(t)
	svc := NewService(NewRepository(conn), nil)

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderSettled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Version:       1,
		}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestFetchUnpublishedAndMark(t *testing.T) {
	conn := setupOutboxTestDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)

	var ids []uuid.UUID
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		for range 3 {
			id := uuid.New()
			ids = append(ids, id)
			if err := svc.Emit(context.Background(), tx, DomainEvent{
				EventType:     enums.EventTrustSignalApplied,
				AggregateType: enums.AggregateRestaurant,
				AggregateID:   id,
				Version:       1,
			}); err != nil {
				return err
			}
		}
		return nil
	}))

	rows, err := repo.FetchUnpublished(10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.NoError(t, repo.MarkPublished(rows[0].ID))
	require.NoError(t, repo.MarkFailed(rows[1].ID, assert.AnError))

	remaining, err := repo.FetchUnpublished(10, 5)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)

	// exhausting attempts hides the event from future fetches
	for range 5 {
		require.NoError(t, repo.MarkFailed(rows[2].ID, assert.AnError))
	}
	remaining, err = repo.FetchUnpublished(10, 5)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
	assert.Equal(t, rows[1].ID, remaining[0].ID)
}
