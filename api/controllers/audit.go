package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/moodegoozy/sofra-core/api/responses"
	"github.com/moodegoozy/sofra-core/api/validators"
	"github.com/moodegoozy/sofra-core/internal/audit"
	"github.com/moodegoozy/sofra-core/pkg/enums"
	pkgerrors "github.com/moodegoozy/sofra-core/pkg/errors"
	"github.com/moodegoozy/sofra-core/pkg/logger"
	"github.com/moodegoozy/sofra-core/pkg/pagination"
)

// ListAudit returns a filtered, cursor-paginated page of the audit log.
func ListAudit(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := buildAuditFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		page, err := svc.Query(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newAuditPageResponse(page.Entries, page.NextCursor))
	}
}

func buildAuditFilter(r *http.Request) (audit.Filter, error) {
	filter := audit.Filter{}
	query := r.URL.Query()

	if raw := strings.TrimSpace(query.Get("action")); raw != "" {
		action, err := enums.ParseAuditAction(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid action filter")
		}
		filter.Action = action
	}
	if raw := strings.TrimSpace(query.Get("target_type")); raw != "" {
		targetType, err := enums.ParseAuditTargetType(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target_type filter")
		}
		filter.TargetType = targetType
	}
	if raw := strings.TrimSpace(query.Get("target_id")); raw != "" {
		targetID, err := uuid.Parse(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target_id filter")
		}
		filter.TargetID = targetID
	}
	if raw := strings.TrimSpace(query.Get("actor_id")); raw != "" {
		actorID, err := uuid.Parse(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid actor_id filter")
		}
		filter.ActorID = actorID
	}
	if raw := strings.TrimSpace(query.Get("from")); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "from must be RFC3339")
		}
		filter.From = from
	}
	if raw := strings.TrimSpace(query.Get("to")); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "to must be RFC3339")
		}
		filter.To = to
	}

	return filter, nil
}
