package commission

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/moodegoozy/sofra-core/pkg/config"
	"github.com/moodegoozy/sofra-core/pkg/enums"
)

// Input describes a single order's billable shape. All money is integer cents.
type Input struct {
	ItemCount        int64
	DeliveryFeeCents int64
	Attribution      enums.AttributionKind
}

// Split is the computed payout for one order. Amounts are what each party is
// credited during settlement; zero amounts produce no ledger posting.
type Split struct {
	PlatformCents  int64 `json:"platform_cents"`
	ReferrerCents  int64 `json:"referrer_cents"`
	CourierCents   int64 `json:"courier_cents"`
	CourierClamped bool  `json:"courier_clamped"`
}

// Calculator computes commission splits from the configured rates. It holds
// no state beyond the rates and performs no I/O.
type Calculator struct {
	platformFeeCents  int64
	referrerRateCents int64
	courierFlatCents  int64
	courierRate       decimal.Decimal
}

// NewCalculator validates the rate config and returns a calculator.
func NewCalculator(cfg config.CommissionConfig) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{
		platformFeeCents:  cfg.PerItemPlatformFeeCents,
		referrerRateCents: cfg.PerItemReferrerRateCents,
		courierFlatCents:  cfg.CourierDeductionCents,
		courierRate:       cfg.CourierDeductionRateDecimal(),
	}, nil
}

// ComputeSplit derives the per-party amounts for an order. With a
// supervisor_admin attribution the referrer earns the per-item rate and the
// platform the per-item fee; with platform_direct (or no attribution at all)
// the platform collects both and the referrer earns nothing.
func (c *Calculator) ComputeSplit(in Input) (Split, error) {
	if in.ItemCount < 0 {
		return Split{}, fmt.Errorf("item count must not be negative, got %d", in.ItemCount)
	}
	if in.DeliveryFeeCents < 0 {
		return Split{}, fmt.Errorf("delivery fee must not be negative, got %d", in.DeliveryFeeCents)
	}
	if !in.Attribution.IsValid() {
		return Split{}, fmt.Errorf("invalid attribution kind %q", in.Attribution)
	}

	var split Split
	switch in.Attribution {
	case enums.AttributionKindSupervisorAdmin:
		split.ReferrerCents = in.ItemCount * c.referrerRateCents
		split.PlatformCents = in.ItemCount * c.platformFeeCents
	default:
		// platform_direct and unattributed restaurants: the platform keeps
		// the referrer slice.
		split.ReferrerCents = 0
		split.PlatformCents = in.ItemCount * (c.platformFeeCents + c.referrerRateCents)
	}

	deduction := c.courierDeduction(in.DeliveryFeeCents)
	split.CourierCents = in.DeliveryFeeCents - deduction
	if split.CourierCents < 0 {
		split.CourierCents = 0
		split.CourierClamped = true
	}

	return split, nil
}

// courierDeduction resolves the configured deduction: flat cents when set,
// otherwise rate × delivery fee rounded half-up exactly once.
func (c *Calculator) courierDeduction(deliveryFeeCents int64) int64 {
	if c.courierFlatCents > 0 {
		return c.courierFlatCents
	}
	if c.courierRate.IsZero() {
		return 0
	}
	return decimal.NewFromInt(deliveryFeeCents).
		Mul(c.courierRate).
		Round(0).
		IntPart()
}
