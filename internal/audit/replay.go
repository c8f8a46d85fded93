package audit

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/moodegoozy/sofra-core/pkg/db/models"
	"github.com/moodegoozy/sofra-core/pkg/enums"
)

// TrustReplay is the reconstructed trust state for one restaurant.
type TrustReplay struct {
	PointBalance int64
	WarningCount int
	Suspended    bool
}

// ReplayState is the world as the audit log describes it: every ledger
// balance and every restaurant's trust state, rebuilt from scratch.
type ReplayState struct {
	Balances map[uuid.UUID]int64
	Trust    map[uuid.UUID]TrustReplay
}

// Replay folds audit entries, oldest first, into ledger balances and trust
// state. The reconciliation job compares the result against live rows; tests
// use it to prove the log alone determines the money.
func Replay(entries []models.AuditEntry) (*ReplayState, error) {
	state := &ReplayState{
		Balances: make(map[uuid.UUID]int64),
		Trust:    make(map[uuid.UUID]TrustReplay),
	}

	for i := range entries {
		entry := &entries[i]
		switch entry.Action {
		case enums.AuditActionOrderSettled:
			var p SettlementPayload
			if err := unmarshalPayload(entry, &p); err != nil {
				return nil, err
			}
			for _, posting := range p.Postings {
				state.Balances[posting.AccountID] += posting.AmountCents
			}

		case enums.AuditActionLedgerAdjusted:
			var p AdjustmentPayload
			if err := unmarshalPayload(entry, &p); err != nil {
				return nil, err
			}
			state.Balances[p.AccountID] += p.AmountCents

		case enums.AuditActionTrustSignalApplied:
			var p TrustSignalPayload
			if err := unmarshalPayload(entry, &p); err != nil {
				return nil, err
			}
			current := state.Trust[entry.TargetID]
			current.PointBalance = p.BalanceAfter
			current.WarningCount = p.WarningCount
			current.Suspended = p.Suspended
			state.Trust[entry.TargetID] = current

		case enums.AuditActionSuspensionCleared:
			current := state.Trust[entry.TargetID]
			current.Suspended = false
			state.Trust[entry.TargetID] = current

		case enums.AuditActionOrderTransitioned:
			// Order state changes carry no money or trust effect.

		default:
			return nil, fmt.Errorf("replay: unknown audit action %q", entry.Action)
		}
	}

	return state, nil
}

func unmarshalPayload(entry *models.AuditEntry, into any) error {
	if len(entry.Payload) == 0 {
		return fmt.Errorf("replay: audit entry %s (%s) has no payload", entry.ID, entry.Action)
	}
	if err := json.Unmarshal(entry.Payload, into); err != nil {
		return fmt.Errorf("replay: decoding payload for entry %s: %w", entry.ID, err)
	}
	return nil
}
