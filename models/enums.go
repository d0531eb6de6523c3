package models

// DiscrepancyType identifies which detector produced a discrepancy.
type DiscrepancyType string

const (
	DiscrepancyTypeNegativeOnHand      DiscrepancyType = "negative_on_hand"
	DiscrepancyTypeUnexplainedShortage DiscrepancyType = "unexplained_shortage"
	DiscrepancyTypeUnexplainedOverage  DiscrepancyType = "unexplained_overage"
	DiscrepancyTypePhantomInventory    DiscrepancyType = "phantom_inventory"
	DiscrepancyTypeMisSlot             DiscrepancyType = "mis_slot"
	DiscrepancyTypeTransactionGap      DiscrepancyType = "transaction_gap"
	DiscrepancyTypeCycleCountVariance  DiscrepancyType = "cycle_count_variance"
	DiscrepancyTypeAdjustmentSpike     DiscrepancyType = "adjustment_spike"
	DiscrepancyTypeDriftDetected       DiscrepancyType = "drift_detected"
)

func (t DiscrepancyType) Valid() bool {
	switch t {
	case DiscrepancyTypeNegativeOnHand, DiscrepancyTypeUnexplainedShortage,
		DiscrepancyTypeUnexplainedOverage, DiscrepancyTypePhantomInventory,
		DiscrepancyTypeMisSlot, DiscrepancyTypeTransactionGap,
		DiscrepancyTypeCycleCountVariance, DiscrepancyTypeAdjustmentSpike,
		DiscrepancyTypeDriftDetected:
		return true
	}
	return false
}

// Severity is a pure function of variance magnitude, never user-set.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank orders severities for sorting; lower is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	}
	return 4
}

type DiscrepancyStatus string

const (
	DiscrepancyStatusOpen         DiscrepancyStatus = "OPEN"
	DiscrepancyStatusInvestigated DiscrepancyStatus = "INVESTIGATED"
	DiscrepancyStatusResolved     DiscrepancyStatus = "RESOLVED"
)

// CanTransitionTo enforces the one-way lifecycle OPEN -> INVESTIGATED ->
// RESOLVED. Each step is sequential: a discrepancy needs a confirmed root
// cause before it can resolve.
func (s DiscrepancyStatus) CanTransitionTo(next DiscrepancyStatus) bool {
	switch s {
	case DiscrepancyStatusOpen:
		return next == DiscrepancyStatusInvestigated
	case DiscrepancyStatusInvestigated:
		return next == DiscrepancyStatusResolved
	}
	return false
}

// RootCauseCategory is the coarse classification of a confirmed cause.
type RootCauseCategory string

const (
	RootCauseCategoryProcess   RootCauseCategory = "process"
	RootCauseCategoryHuman     RootCauseCategory = "human"
	RootCauseCategorySystem    RootCauseCategory = "system"
	RootCauseCategoryExternal  RootCauseCategory = "external"
	RootCauseCategoryEquipment RootCauseCategory = "equipment"
	RootCauseCategoryLocation  RootCauseCategory = "location"
	RootCauseCategoryTiming    RootCauseCategory = "timing"
	RootCauseCategoryUnknown   RootCauseCategory = "unknown"
)

func (c RootCauseCategory) Valid() bool {
	switch c {
	case RootCauseCategoryProcess, RootCauseCategoryHuman, RootCauseCategorySystem,
		RootCauseCategoryExternal, RootCauseCategoryEquipment, RootCauseCategoryLocation,
		RootCauseCategoryTiming, RootCauseCategoryUnknown:
		return true
	}
	return false
}

// Confidence levels form a total order; comparison goes through Rank, never
// through the string value.
type Confidence string

const (
	ConfidenceHigh        Confidence = "high"
	ConfidenceMedium      Confidence = "medium"
	ConfidenceLow         Confidence = "low"
	ConfidenceSpeculative Confidence = "speculative"
)

// Rank orders confidences for sorting; lower is stronger.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 0
	case ConfidenceMedium:
		return 1
	case ConfidenceLow:
		return 2
	case ConfidenceSpeculative:
		return 3
	}
	return 4
}

type TransactionType string

const (
	TransactionTypeReceive  TransactionType = "RECEIVE"
	TransactionTypePick     TransactionType = "PICK"
	TransactionTypePutaway  TransactionType = "PUTAWAY"
	TransactionTypeReplen   TransactionType = "REPLEN"
	TransactionTypeAdjust   TransactionType = "ADJUSTMENT"
	TransactionTypeTransfer TransactionType = "TRANSFER"
	TransactionTypeShip     TransactionType = "SHIP"
)

type InvestigationStatus string

const (
	InvestigationStatusConfirmed InvestigationStatus = "CONFIRMED"
)
