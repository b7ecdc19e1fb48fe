package ui

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/yvy-orbital/yvy-field-service/internal/delivery"
	"github.com/yvy-orbital/yvy-field-service/output"
)

// CreateReport analyses and zones a farm and writes both into one PDF.
func (a *App) CreateReport() {
	farm, err := a.ReadFarm()
	if err != nil {
		PrintError(err.Error())
		return
	}
	if err := ReadWindow(&farm); err != nil {
		PrintError(err.Error())
		return
	}

	ctx, cancel := a.context()
	defer cancel()

	result, err := a.Analyzer.AnalyzeFarm(ctx, farm)
	if err != nil {
		PrintError(fmt.Sprintf("Error analyzing farm: %s", err.Error()))
		return
	}
	var zones *delivery.ZoneResult
	if zones, err = a.Zoner.ZoneFarm(ctx, zoneRequest(farm, a.zoneCount())); err != nil {
		PrintWarning(fmt.Sprintf("Report without zones: %s", err.Error()))
	}

	report, err := delivery.BuildReport(farm, result, zones, time.Now())
	if err != nil {
		PrintError(err.Error())
		return
	}
	resultPath, err := a.CreateResultDirectory(farm.FarmID, "reports")
	if err != nil {
		PrintError(err.Error())
		return
	}
	outputPath := filepath.Join(resultPath, fmt.Sprintf("report_%s.pdf", result.Date))
	if err := output.SaveReport(report, outputPath); err != nil {
		PrintError(fmt.Sprintf("Error creating report: %s", err.Error()))
		a.notifyError(ctx, fmt.Sprintf("Yvy CLI\n\nError creating report: %s", err.Error()))
		return
	}

	PrintSuccess(fmt.Sprintf("Report created successfully!\n File: %s", outputPath))
	a.notifySuccess(ctx, fmt.Sprintf("Yvy CLI\n\nReport created successfully!\n\nFile: %s", outputPath))
}
