package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/moodegoozy/sofra-core/api/responses"
	"github.com/moodegoozy/sofra-core/api/validators"
	"github.com/moodegoozy/sofra-core/internal/ledger"
	"github.com/moodegoozy/sofra-core/pkg/enums"
	pkgerrors "github.com/moodegoozy/sofra-core/pkg/errors"
	"github.com/moodegoozy/sofra-core/pkg/logger"
)

// GetLedgerBalance returns one account with its balance and lifetime totals.
func GetLedgerBalance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := parseUUIDParam(r, "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		account, err := svc.GetBalance(r.Context(), accountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newAccountResponse(account))
	}
}

// FindLedgerAccount looks up an account by its owning party.
func FindLedgerAccount(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawKind := strings.TrimSpace(r.URL.Query().Get("party_kind"))
		kind := enums.LedgerPartyKind(rawKind)
		if !kind.IsValid() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid party_kind").WithDetails(map[string]any{"party_kind": rawKind}))
			return
		}
		partyID, err := uuid.Parse(strings.TrimSpace(r.URL.Query().Get("party_id")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid party_id"))
			return
		}

		account, err := svc.GetAccountByParty(r.Context(), kind, partyID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newAccountResponse(account))
	}
}

// ListLedgerTransactions returns all postings against an account, oldest
// first.
func ListLedgerTransactions(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := parseUUIDParam(r, "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txns, err := svc.ListTransactions(r.Context(), accountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newTransactionResponses(txns))
	}
}

type adjustLedgerRequest struct {
	AmountCents int64    `json:"amount_cents" validate:"required"`
	Reason      string   `json:"reason" validate:"required"`
	Actor       actorRef `json:"actor" validate:"required"`
}

// AdjustLedger posts a manual adjustment against an account. Refused when it
// would drive the balance negative.
func AdjustLedger(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := parseUUIDParam(r, "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req adjustLedgerRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := req.Actor.toActor()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithAccountID(r.Context(), accountID.String())
		txn, err := svc.Adjust(ctx, ledger.AdjustInput{
			AccountID:   accountID,
			AmountCents: req.AmountCents,
			Actor:       actor,
			Reason:      validators.SanitizeString(req.Reason, 500),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newTransactionResponse(txn))
	}
}
