package truth

import (
	"github.com/shopspring/decimal"

	"bitbucket.org/flowlogic/wms_backend/models"
)

// Severity ladders. Each detector family grades on the magnitude of its own
// variance figures; larger magnitudes never map to a lower severity.

func gapSeverity(gap decimal.Decimal) models.Severity {
	abs := gap.Abs()
	switch {
	case abs.GreaterThan(decimal.NewFromInt(100)):
		return models.SeverityHigh
	case abs.GreaterThan(decimal.NewFromInt(10)):
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func cycleCountSeverity(variance decimal.Decimal, variancePercent float64) models.Severity {
	absVar := variance.Abs()
	absPct := variancePercent
	if absPct < 0 {
		absPct = -absPct
	}
	switch {
	case absPct > 20 || absVar.GreaterThan(decimal.NewFromInt(50)):
		return models.SeverityHigh
	case absPct > 10 || absVar.GreaterThan(decimal.NewFromInt(20)):
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func spikeSeverity(zScore float64) models.Severity {
	if zScore > 3 {
		return models.SeverityHigh
	}
	return models.SeverityMedium
}

func driftSeverity(percentDrift float64) models.Severity {
	abs := percentDrift
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs > 20:
		return models.SeverityHigh
	case abs > 10:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
