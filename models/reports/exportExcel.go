package reports

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"bitbucket.org/flowlogic/wms_backend/models"
	"bitbucket.org/flowlogic/wms_backend/utils"
)

// ExportDiscrepanciesExcel writes the filtered discrepancy list as an xlsx
// workbook to w.
func ExportDiscrepanciesExcel(ctx context.Context, w io.Writer, filter models.DiscrepancyFilter) error {
	rows, _, err := models.ListDiscrepancies(ctx, filter, "detected_at", "desc", 500, 0)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := "Discrepancies"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	headers := []string{"ID", "Type", "Severity", "SKU", "Location", "Expected", "Actual", "Variance", "Variance %", "Value", "Status", "Detected At", "Description", "Root Cause"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for i, d := range rows {
		rowNo := i + 2
		f.SetCellValue(sheet, "A"+fmt.Sprint(rowNo), d.ID)
		f.SetCellValue(sheet, "B"+fmt.Sprint(rowNo), string(d.Type))
		f.SetCellValue(sheet, "C"+fmt.Sprint(rowNo), string(d.Severity))
		f.SetCellValue(sheet, "D"+fmt.Sprint(rowNo), d.Sku)
		f.SetCellValue(sheet, "E"+fmt.Sprint(rowNo), d.LocationCode)
		f.SetCellValue(sheet, "F"+fmt.Sprint(rowNo), d.ExpectedQty.String())
		f.SetCellValue(sheet, "G"+fmt.Sprint(rowNo), d.ActualQty.String())
		f.SetCellValue(sheet, "H"+fmt.Sprint(rowNo), d.Variance.String())
		f.SetCellValue(sheet, "I"+fmt.Sprint(rowNo), d.VariancePercent)
		f.SetCellValue(sheet, "J"+fmt.Sprint(rowNo), d.VarianceValue.String())
		f.SetCellValue(sheet, "K"+fmt.Sprint(rowNo), string(d.Status))
		f.SetCellValue(sheet, "L"+fmt.Sprint(rowNo), d.DetectedAt.Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheet, "M"+fmt.Sprint(rowNo), d.Description)
		f.SetCellValue(sheet, "N"+fmt.Sprint(rowNo), utils.DereferencePtr(d.RootCause, ""))
	}

	return f.Write(w)
}
