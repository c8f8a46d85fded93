package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/moodegoozy/sofra-core/internal/audit"
	"github.com/moodegoozy/sofra-core/pkg/enums"
	pkgerrors "github.com/moodegoozy/sofra-core/pkg/errors"
)

// actorRef is the request-body shape identifying who performs an operation.
// The surface sits behind the platform gateway, which authenticates callers
// and injects these fields.
type actorRef struct {
	ID   string `json:"id" validate:"required,uuid"`
	Role string `json:"role" validate:"required"`
}

func (a actorRef) toActor() (audit.Actor, error) {
	id, err := uuid.Parse(a.ID)
	if err != nil {
		return audit.Actor{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid actor id")
	}
	role, err := enums.ParseActorRole(a.Role)
	if err != nil {
		return audit.Actor{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid actor role")
	}
	return audit.Actor{ID: id, Role: role}, nil
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}
