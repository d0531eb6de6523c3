package rootcause

import (
	"fmt"

	"github.com/shopspring/decimal"

	"bitbucket.org/flowlogic/wms_backend/models"
)

// GenerateRecommendations derives follow-up actions from the discrepancy and
// its ranked causes. A verification cycle count always leads; adjustment is
// only proposed for material variances and needs approval past 50 units.
func GenerateRecommendations(discrepancy *models.Discrepancy, causes []PossibleCause) []Recommendation {
	recommendations := []Recommendation{{
		Priority: 1,
		Action:   ActionCycleCount,
		Description: fmt.Sprintf("Perform cycle count at %s for %s",
			discrepancy.LocationCode, discrepancy.Sku),
		AssignTo: "inventory_control",
	}}

	for _, cause := range causes {
		switch cause.Category {
		case models.RootCauseCategoryHuman:
			recommendations = append(recommendations, Recommendation{
				Priority:    2,
				Action:      ActionTrainingReview,
				Description: "Review training for operator mentioned in investigation",
				AssignTo:    "supervisor",
			})
		case models.RootCauseCategoryLocation:
			recommendations = append(recommendations, Recommendation{
				Priority: 2,
				Action:   ActionLocationAudit,
				Description: fmt.Sprintf("Audit location %s for physical issues",
					discrepancy.LocationCode),
				AssignTo: "warehouse_ops",
			})
		case models.RootCauseCategoryProcess:
			recommendations = append(recommendations, Recommendation{
				Priority:    3,
				Action:      ActionProcessReview,
				Description: "Review related SOP for gaps or clarity issues",
				AssignTo:    "operations",
			})
		}
	}

	absVariance := discrepancy.Variance.Abs()
	if absVariance.GreaterThan(decimal.NewFromInt(10)) {
		recommendations = append(recommendations, Recommendation{
			Priority: 4,
			Action:   ActionAdjustment,
			Description: fmt.Sprintf("After root cause confirmed, adjust inventory by %s",
				discrepancy.Variance.Neg()),
			AssignTo:         "inventory_control",
			RequiresApproval: absVariance.GreaterThan(decimal.NewFromInt(50)),
		})
	}
	return recommendations
}
