package ui

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yvy-orbital/yvy-field-service/internal/delivery"
)

// AnalyzeFarm handles the UI for computing the health indicators of a farm
func (a *App) AnalyzeFarm() {
	PrintWarning("- Boundary files are read from data/geojsons; features are matched by farm_id or plot_id.\n- Leave the dates empty to analyse the last 30 days.")

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
		a.notifyError(ctx, fmt.Sprintf("Yvy CLI\n\nError analyzing farm %s: %s", farm.FarmID, err.Error()))
		return
	}
	printResult(result)

	resultPath, err := a.CreateResultDirectory(farm.FarmID, "analysis")
	if err != nil {
		PrintError(err.Error())
		return
	}
	outputPath := filepath.Join(resultPath, result.Date+".json")
	if err := writeJSONFile(outputPath, result); err != nil {
		PrintError(err.Error())
		return
	}

	PrintSuccess(fmt.Sprintf("Successful analysis!\n Result located at: %s", outputPath))
	a.notifySuccess(ctx, fmt.Sprintf("Yvy CLI\n\nSuccessful analysis of farm %s\nNDVI %.3f, CO2e %.1f t\nResult located at: %s",
		farm.FarmID, result.NDVI, result.CO2Equivalent, outputPath))
}

func printResult(r *delivery.AnalysisResult) {
	fmt.Printf("\n%sIndicators for the window ending %s:%s\n", ColorGreen, r.Date, ColorReset)
	for _, m := range r.Metrics() {
		fmt.Printf("%s  %-26s %10s %s%s\n", ColorGreen, m.Name, m.Value, m.Unit, ColorReset)
	}
	if r.SatelliteImage != nil {
		fmt.Printf("%s  True color: %s%s\n", ColorGreen, *r.SatelliteImage, ColorReset)
	}
	if r.ThermalImage != nil {
		fmt.Printf("%s  Thermal:    %s%s\n", ColorGreen, *r.ThermalImage, ColorReset)
	}
	if len(r.Alerts) > 0 {
		lines := make([]string, len(r.Alerts))
		for i, alert := range r.Alerts {
			lines[i] = fmt.Sprintf("- %s: %s", alert.Type, alert.Message)
		}
		PrintWarning(strings.Join(lines, "\n"))
	}
}

func writeJSONFile(path string, v any) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	return nil
}
