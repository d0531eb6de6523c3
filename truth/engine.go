package truth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"bitbucket.org/flowlogic/wms_backend/models"
	"bitbucket.org/flowlogic/wms_backend/utils"
)

// AnalysisTypeFull runs every detector in the bank.
const AnalysisTypeFull = "full"

// Engine runs the detector bank over a scope and window and records findings
// through the registry. Detector failures are isolated: one failing detector
// never suppresses the findings of its siblings.
type Engine struct {
	detectors []Detector
	registry  Registry
	logger    *logrus.Logger
}

// NewEngine builds an engine over an explicit ordered detector list.
func NewEngine(detectors []Detector, registry Registry, logger *logrus.Logger) *Engine {
	return &Engine{detectors: detectors, registry: registry, logger: logger}
}

// DefaultDetectors is the full bank in its canonical run order.
func DefaultDetectors(store Store) []Detector {
	return []Detector{
		&NegativeOnHandDetector{Store: store},
		&TransactionGapDetector{Store: store},
		&CycleCountVarianceDetector{Store: store},
		&AdjustmentSpikeDetector{Store: store},
		&DriftDetector{Store: store},
		&PhantomInventoryDetector{Store: store},
		&MisSlotDetector{Store: store},
		&UnexplainedVarianceDetector{Store: store},
		&UnexplainedVarianceDetector{Store: store, Overage: true},
	}
}

// Run executes the requested analysis. analysisType is either "full" or one
// discrepancy type naming a single detector.
func (e *Engine) Run(ctx context.Context, analysisType string, scope models.RecordScope, window models.TimeWindow) (*AnalysisResult, error) {
	selected, err := e.selectDetectors(analysisType)
	if err != nil {
		return nil, err
	}
	if window.To.Before(window.From) {
		return nil, utils.NewValidationError("window", "window end precedes its start")
	}

	result := &AnalysisResult{
		AnalysisId: uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Window:     window,
		Findings:   []Finding{},
	}

	for _, detector := range selected {
		findings, err := detector.Scan(ctx, scope, window)
		if err != nil {
			logDetectorFailure(e.logger, detector.Type(), err)
			result.Failures = append(result.Failures, DetectorFailure{
				Detector: detector.Type(),
				Error:    err.Error(),
			})
			continue
		}
		result.Findings = append(result.Findings, findings...)
	}

	for i := range result.Findings {
		created, err := e.registry.Upsert(ctx, result.Findings[i].toDiscrepancy(result.Timestamp))
		if err != nil {
			logDetectorFailure(e.logger, result.Findings[i].Type, err)
			result.Failures = append(result.Failures, DetectorFailure{
				Detector: result.Findings[i].Type,
				Error:    err.Error(),
			})
			continue
		}
		if created {
			result.DiscrepanciesCreated++
		}
	}

	if e.logger != nil {
		e.logger.WithFields(logrus.Fields{
			"analysisId":           result.AnalysisId,
			"analysisType":         analysisType,
			"findings":             len(result.Findings),
			"discrepanciesCreated": result.DiscrepanciesCreated,
			"failures":             len(result.Failures),
		}).Info("inventory analysis completed")
	}
	return result, nil
}

func (e *Engine) selectDetectors(analysisType string) ([]Detector, error) {
	if analysisType == "" || analysisType == AnalysisTypeFull {
		return e.detectors, nil
	}
	for _, d := range e.detectors {
		if string(d.Type()) == analysisType {
			return []Detector{d}, nil
		}
	}
	return nil, utils.NewValidationError("analysisType", "unknown analysis type "+analysisType)
}

func logDetectorFailure(logger *logrus.Logger, dtype models.DiscrepancyType, err error) {
	if logger == nil {
		return
	}
	logger.WithFields(logrus.Fields{
		"detector": dtype,
		"error":    err.Error(),
	}).Error("detector failed")
}
