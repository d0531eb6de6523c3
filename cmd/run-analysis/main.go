package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"bitbucket.org/flowlogic/wms_backend/config"
	"bitbucket.org/flowlogic/wms_backend/models"
	"bitbucket.org/flowlogic/wms_backend/truth"
)

// Runs a detector analysis from the command line, for cron jobs and
// ad hoc backfills. Prints a summary and exits non-zero on failure.
func main() {
	analysisType := flag.String("type", truth.AnalysisTypeFull, "analysis type (full or a single detector type)")
	sku := flag.String("sku", "", "restrict the scan to one SKU")
	locationCode := flag.String("location", "", "restrict the scan to one location code")
	days := flag.Int("days", 30, "lookback window in days")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found; using environment as-is")
	}

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()

	scope := models.RecordScope{}
	if *sku != "" {
		scope.Sku = sku
	}
	if *locationCode != "" {
		scope.LocationCode = locationCode
	}
	now := time.Now().UTC()
	window := models.TimeWindow{From: now.AddDate(0, 0, -*days), To: now}

	engine := truth.NewEngine(truth.DefaultDetectors(models.TruthStore{}), models.DiscrepancyRegistry{}, config.GetLogger())
	result, err := engine.Run(context.Background(), *analysisType, scope, window)
	if err != nil {
		log.Println("analysis failed:", err)
		os.Exit(1)
	}

	fmt.Printf("analysis %s (%s)\n", result.AnalysisId, *analysisType)
	fmt.Printf("  window: %s .. %s\n", window.From.Format(time.RFC3339), window.To.Format(time.RFC3339))
	fmt.Printf("  findings: %d, discrepancies created: %d\n", len(result.Findings), result.DiscrepanciesCreated)
	for _, failure := range result.Failures {
		fmt.Printf("  detector %s failed: %s\n", failure.Detector, failure.Error)
	}
	if len(result.Failures) > 0 {
		os.Exit(1)
	}
}
