package vigilance

import (
	"fmt"
	"regexp"
	"time"

	"github.com/symphonia/tms_backend/models"
)

// Check statuses.
const (
	CheckStatusValid   = "valid"
	CheckStatusMissing = "missing"
	CheckStatusInvalid = "invalid"
	CheckStatusOK      = "ok"
	CheckStatusWarning = "warning"
)

// Check types.
const (
	CheckTaxId       = "tax_id"
	CheckVatNumber   = "vat_number"
	CheckLicense     = "transport_license"
	CheckPerformance = "performance"
	CheckRecency     = "recency"
	CheckVolume      = "volume"
)

type Check struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Impact  int    `json:"impact"`
	Message string `json:"message"`
}

type Result struct {
	Score      int       `json:"score"`
	Tier       string    `json:"tier"`
	Checks     []Check   `json:"checks"`
	ComputedAt time.Time `json:"computed_at"`
}

// Input carries the carrier attributes the score derives from.
type Input struct {
	TaxId         string
	VatNumber     string
	LicenseNumber string
	OnTimeRate    *float64 // percent, 0-100
	LastOrderAt   *time.Time
	TotalOrders   int
}

var siretPattern = regexp.MustCompile(`^\d{14}$`)

// Score is the deterministic vigilance function: start at 100, subtract
// penalties per signal family, clamp to [0,100]. Legal completeness weighs up
// to 30 points, performance up to 40, recency up to 20, volume up to 10.
func Score(in Input) Result {
	now := time.Now()
	score := 100
	checks := make([]Check, 0, 6)

	legal := legalChecks(in)
	for _, c := range legal {
		score += c.Impact
	}
	checks = append(checks, legal...)

	perf := performanceCheck(in.OnTimeRate)
	score += perf.Impact
	checks = append(checks, perf)

	rec := recencyCheck(in.LastOrderAt, now)
	score += rec.Impact
	checks = append(checks, rec)

	vol := volumeCheck(in.TotalOrders)
	score += vol.Impact
	checks = append(checks, vol)

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return Result{
		Score:      score,
		Tier:       TierForScore(score),
		Checks:     checks,
		ComputedAt: now,
	}
}

func TierForScore(score int) string {
	switch {
	case score >= 95:
		return models.VigilanceTierPremium
	case score >= 85:
		return models.VigilanceTierReferenced
	case score >= 70:
		return models.VigilanceTierActive
	case score >= 50:
		return models.VigilanceTierGuest
	default:
		return models.VigilanceTierObservation
	}
}

func legalChecks(in Input) []Check {
	checks := make([]Check, 0, 3)

	switch {
	case in.TaxId == "":
		checks = append(checks, Check{CheckTaxId, CheckStatusMissing, -10, "tax id (SIRET) is missing"})
	case !siretPattern.MatchString(in.TaxId):
		checks = append(checks, Check{CheckTaxId, CheckStatusInvalid, -10, "tax id (SIRET) must be 14 digits"})
	default:
		checks = append(checks, Check{CheckTaxId, CheckStatusValid, 0, "tax id (SIRET) on file"})
	}

	if in.VatNumber == "" {
		checks = append(checks, Check{CheckVatNumber, CheckStatusMissing, -10, "VAT number is missing"})
	} else {
		checks = append(checks, Check{CheckVatNumber, CheckStatusValid, 0, "VAT number on file"})
	}

	if in.LicenseNumber == "" {
		checks = append(checks, Check{CheckLicense, CheckStatusMissing, -10, "transport license is missing"})
	} else {
		checks = append(checks, Check{CheckLicense, CheckStatusValid, 0, "transport license on file"})
	}

	return checks
}

func performanceCheck(rate *float64) Check {
	if rate == nil {
		return Check{CheckPerformance, CheckStatusOK, 0, "no performance data yet"}
	}
	r := *rate
	switch {
	case r < 50:
		return Check{CheckPerformance, CheckStatusInvalid, -40, fmt.Sprintf("on-time rate %.0f%% is below 50%%", r)}
	case r < 70:
		return Check{CheckPerformance, CheckStatusWarning, -30, fmt.Sprintf("on-time rate %.0f%% is below 70%%", r)}
	case r < 85:
		return Check{CheckPerformance, CheckStatusWarning, -15, fmt.Sprintf("on-time rate %.0f%% is below 85%%", r)}
	case r < 95:
		return Check{CheckPerformance, CheckStatusOK, -5, fmt.Sprintf("on-time rate %.0f%% is below 95%%", r)}
	default:
		return Check{CheckPerformance, CheckStatusValid, 0, fmt.Sprintf("on-time rate %.0f%%", r)}
	}
}

func recencyCheck(lastOrderAt *time.Time, now time.Time) Check {
	if lastOrderAt == nil {
		return Check{CheckRecency, CheckStatusMissing, -20, "no order on record"}
	}
	days := int(now.Sub(*lastOrderAt).Hours() / 24)
	switch {
	case days > 180:
		return Check{CheckRecency, CheckStatusInvalid, -20, fmt.Sprintf("last order %d days ago", days)}
	case days > 90:
		return Check{CheckRecency, CheckStatusWarning, -15, fmt.Sprintf("last order %d days ago", days)}
	case days > 30:
		return Check{CheckRecency, CheckStatusWarning, -8, fmt.Sprintf("last order %d days ago", days)}
	case days > 7:
		return Check{CheckRecency, CheckStatusOK, -3, fmt.Sprintf("last order %d days ago", days)}
	default:
		return Check{CheckRecency, CheckStatusValid, 0, "recent activity"}
	}
}

func volumeCheck(totalOrders int) Check {
	switch {
	case totalOrders == 0:
		return Check{CheckVolume, CheckStatusMissing, -10, "no completed order"}
	case totalOrders < 5:
		return Check{CheckVolume, CheckStatusWarning, -8, fmt.Sprintf("only %d lifetime orders", totalOrders)}
	case totalOrders < 20:
		return Check{CheckVolume, CheckStatusOK, -5, fmt.Sprintf("%d lifetime orders", totalOrders)}
	case totalOrders < 50:
		return Check{CheckVolume, CheckStatusOK, -2, fmt.Sprintf("%d lifetime orders", totalOrders)}
	default:
		return Check{CheckVolume, CheckStatusValid, 0, fmt.Sprintf("%d lifetime orders", totalOrders)}
	}
}
