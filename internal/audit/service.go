package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/moodegoozy/sofra-core/pkg/db/models"
	"github.com/moodegoozy/sofra-core/pkg/enums"
	"github.com/moodegoozy/sofra-core/pkg/pagination"
)

// Actor identifies who performed an audited action.
type Actor struct {
	ID   uuid.UUID       `json:"id"`
	Role enums.ActorRole `json:"role"`
}

// SystemActor is the actor recorded for machine-initiated entries such as
// settlement triggered by the delivered transition.
var SystemActor = Actor{ID: uuid.Nil, Role: enums.ActorRoleSystem}

// RecordInput captures one audit fact. Payload is marshalled by Record.
type RecordInput struct {
	Action     enums.AuditAction
	TargetType enums.AuditTargetType
	TargetID   uuid.UUID
	Actor      Actor
	Detail     string
	Payload    any
}

// Page is one cursor page of audit entries.
type Page struct {
	Entries    []models.AuditEntry
	NextCursor string
}

// Service records and queries the append-only audit log.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.AuditEntry, error)
	Query(ctx context.Context, filter Filter, page pagination.Params) (*Page, error)
	CollectAll(ctx context.Context, filter Filter) ([]models.AuditEntry, error)
}

type service struct {
	repo Repository
}

// NewService wires an audit service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &service{repo: repo}, nil
}

// Record appends one entry, inside the caller's transaction when tx is
// non-nil so the audit fact commits or rolls back with the mutation it
// describes.
func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.AuditEntry, error) {
	if !input.Action.IsValid() {
		return nil, fmt.Errorf("invalid audit action %q", input.Action)
	}
	if !input.TargetType.IsValid() {
		return nil, fmt.Errorf("invalid audit target type %q", input.TargetType)
	}
	if input.TargetID == uuid.Nil {
		return nil, fmt.Errorf("audit target id is required")
	}
	if !input.Actor.Role.IsValid() {
		return nil, fmt.Errorf("invalid actor role %q", input.Actor.Role)
	}

	var payload json.RawMessage
	if input.Payload != nil {
		raw, err := json.Marshal(input.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshalling audit payload: %w", err)
		}
		payload = raw
	}

	entry := &models.AuditEntry{
		Action:     input.Action,
		TargetType: input.TargetType,
		TargetID:   input.TargetID,
		ActorID:    input.Actor.ID,
		ActorRole:  input.Actor.Role,
		Detail:     input.Detail,
		Payload:    payload,
	}

	repo := s.repo
	if tx != nil {
		repo = s.repo.WithTx(tx)
	}
	if err := repo.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) Query(ctx context.Context, filter Filter, page pagination.Params) (*Page, error) {
	cursor, err := pagination.ParseCursor(page.Cursor)
	if err != nil {
		return nil, err
	}

	limit := pagination.NormalizeLimit(page.Limit)
	entries, err := s.repo.List(ctx, filter, cursor, limit)
	if err != nil {
		return nil, err
	}

	result := &Page{Entries: entries}
	if len(entries) > limit {
		result.Entries = entries[:limit]
		last := result.Entries[limit-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return result, nil
}

func (s *service) CollectAll(ctx context.Context, filter Filter) ([]models.AuditEntry, error) {
	return s.repo.ListAll(ctx, filter)
}
