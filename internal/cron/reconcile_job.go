package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/moodegoozy/sofra-core/internal/audit"
	"github.com/moodegoozy/sofra-core/internal/ledger"
	"github.com/moodegoozy/sofra-core/internal/trust"
	"github.com/moodegoozy/sofra-core/pkg/db/models"
	"github.com/moodegoozy/sofra-core/pkg/logger"
	"github.com/moodegoozy/sofra-core/pkg/metrics"
)

const reconcileJobName = "ledger-trust-reconcile"

// Divergence kinds reported through the reconcile gauge.
const (
	divergenceLedgerBalance   = "ledger_balance"
	divergenceTrustBalance    = "trust_balance"
	divergenceTrustSuspension = "trust_suspension"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ReconcileJobParams configure the audit replay reconciliation job.
type ReconcileJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	AuditRepo  audit.Repository
	LedgerRepo ledger.Repository
	TrustRepo  trust.Repository
	Metrics    *metrics.CronJobMetrics
}

// NewReconcileJob builds the job that replays the audit log and compares the
// result against live ledger balances and trust records.
func NewReconcileJob(params ReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.AuditRepo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if params.LedgerRepo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.TrustRepo == nil {
		return nil, fmt.Errorf("trust repository required")
	}
	return &reconcileJob{
		logg:       params.Logger,
		db:         params.DB,
		auditRepo:  params.AuditRepo,
		ledgerRepo: params.LedgerRepo,
		trustRepo:  params.TrustRepo,
		metrics:    params.Metrics,
	}, nil
}

type reconcileJob struct {
	logg       *logger.Logger
	db         txRunner
	auditRepo  audit.Repository
	ledgerRepo ledger.Repository
	trustRepo  trust.Repository
	metrics    *metrics.CronJobMetrics
}

func (j *reconcileJob) Name() string { return reconcileJobName }

// Run replays every audit entry into balances and trust state, then diffs the
// replay against the live tables. Divergences are reported through the gauge
// and logs; they never fail the job because the finding is the point.
func (j *reconcileJob) Run(ctx context.Context) error {
	snapshot, err := j.loadSnapshot(ctx)
	if err != nil {
		return err
	}

	replayed, err := audit.Replay(snapshot.entries)
	if err != nil {
		return fmt.Errorf("replay audit log: %w", err)
	}

	report := j.compare(ctx, replayed, snapshot)
	j.setDivergence(divergenceLedgerBalance, report.ledgerBalance)
	j.setDivergence(divergenceTrustBalance, report.trustBalance)
	j.setDivergence(divergenceTrustSuspension, report.trustSuspension)

	summaryCtx := j.logg.WithFields(ctx, map[string]any{
		"audit_entries":    len(snapshot.entries),
		"ledger_accounts":  len(snapshot.accounts),
		"trust_records":    len(snapshot.records),
		"ledger_balance":   report.ledgerBalance,
		"trust_balance":    report.trustBalance,
		"trust_suspension": report.trustSuspension,
	})
	if report.total() > 0 {
		j.logg.Warn(summaryCtx, "audit replay diverged from live state")
	} else {
		j.logg.Info(summaryCtx, "audit replay matches live state")
	}
	return nil
}

type reconcileSnapshot struct {
	entries  []models.AuditEntry
	accounts []models.LedgerAccount
	records  []models.TrustRecord
}

type divergenceReport struct {
	ledgerBalance   int
	trustBalance    int
	trustSuspension int
}

func (r divergenceReport) total() int {
	return r.ledgerBalance + r.trustBalance + r.trustSuspension
}

// loadSnapshot reads the audit log and live state inside one transaction so
// the comparison sees a consistent view even while settlements run.
func (j *reconcileJob) loadSnapshot(ctx context.Context) (*reconcileSnapshot, error) {
	snapshot := &reconcileSnapshot{}
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		snapshot.entries, err = j.auditRepo.WithTx(tx).ListAll(ctx, audit.Filter{})
		if err != nil {
			return fmt.Errorf("list audit entries: %w", err)
		}
		snapshot.accounts, err = j.ledgerRepo.WithTx(tx).ListAccounts(ctx)
		if err != nil {
			return fmt.Errorf("list ledger accounts: %w", err)
		}
		snapshot.records, err = j.trustRepo.WithTx(tx).ListRecords(ctx)
		if err != nil {
			return fmt.Errorf("list trust records: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (j *reconcileJob) compare(ctx context.Context, replayed *audit.ReplayState, snapshot *reconcileSnapshot) divergenceReport {
	report := divergenceReport{}

	liveBalances := make(map[uuid.UUID]int64, len(snapshot.accounts))
	for _, account := range snapshot.accounts {
		liveBalances[account.ID] = account.BalanceCents
	}
	for accountID, want := range replayed.Balances {
		got, ok := liveBalances[accountID]
		if ok && got == want {
			delete(liveBalances, accountID)
			continue
		}
		report.ledgerBalance++
		mismatchCtx := j.logg.WithFields(ctx, map[string]any{
			"account_id":      accountID.String(),
			"replayed_cents":  want,
			"live_cents":      got,
			"account_missing": !ok,
		})
		j.logg.Warn(mismatchCtx, "ledger balance diverged from audit replay")
		delete(liveBalances, accountID)
	}
	// Remaining live accounts have balances the audit log never produced.
	for accountID, got := range liveBalances {
		if got == 0 {
			continue
		}
		report.ledgerBalance++
		mismatchCtx := j.logg.WithFields(ctx, map[string]any{
			"account_id": accountID.String(),
			"live_cents": got,
		})
		j.logg.Warn(mismatchCtx, "ledger account has balance with no audit trail")
	}

	liveTrust := make(map[uuid.UUID]models.TrustRecord, len(snapshot.records))
	for _, record := range snapshot.records {
		liveTrust[record.RestaurantID] = record
	}
	for restaurantID, want := range replayed.Trust {
		record, ok := liveTrust[restaurantID]
		if !ok {
			report.trustBalance++
			mismatchCtx := j.logg.WithRestaurantID(ctx, restaurantID.String())
			j.logg.Warn(mismatchCtx, "trust record missing for audited restaurant")
			continue
		}
		if record.PointBalance != want.PointBalance {
			report.trustBalance++
			mismatchCtx := j.logg.WithFields(ctx, map[string]any{
				"restaurant_id":   restaurantID.String(),
				"replayed_points": want.PointBalance,
				"live_points":     record.PointBalance,
			})
			j.logg.Warn(mismatchCtx, "trust balance diverged from audit replay")
		}
		if record.Suspended != want.Suspended {
			report.trustSuspension++
			mismatchCtx := j.logg.WithFields(ctx, map[string]any{
				"restaurant_id":      restaurantID.String(),
				"replayed_suspended": want.Suspended,
				"live_suspended":     record.Suspended,
			})
			j.logg.Warn(mismatchCtx, "trust suspension flag diverged from audit replay")
		}
	}

	return report
}

func (j *reconcileJob) setDivergence(kind string, count int) {
	if j.metrics == nil {
		return
	}
	j.metrics.SetDivergence(kind, count)
}
