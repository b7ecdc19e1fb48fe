package ui

import (
	"fmt"
	"strings"

	"github.com/yvy-orbital/yvy-field-service/internal/delivery"
)

// Backfill handles the UI for filling a farm's monthly reading history
func (a *App) Backfill() {
	if a.Readings == nil {
		PrintWarning("DATABASE_URL is not set: results will be printed but not stored.")
	}
	farm, err := a.ReadFarm()
	if err != nil {
		PrintError(err.Error())
		return
	}
	if farm.FarmID == "" {
		PrintError("a farm id is required to store readings")
		return
	}
	months, err := ReadInt(fmt.Sprintf("Enter the number of months (empty for %d): ", delivery.DefaultBackfillMonths), 1, 60, delivery.DefaultBackfillMonths)
	if err != nil {
		PrintError(err.Error())
		return
	}

	ctx, cancel := a.context()
	defer cancel()

	opts := delivery.BackfillOptions{Months: months, Pause: delivery.DefaultBackfillPause, ShowProgress: true}
	if a.Readings != nil {
		opts.Existing = a.Readings
	}
	outcomes, err := a.Analyzer.Backfill(ctx, farm, opts)
	if err != nil {
		PrintError(fmt.Sprintf("Error backfilling farm: %s", err.Error()))
		a.notifyError(ctx, fmt.Sprintf("Yvy CLI\n\nError backfilling farm %s: %s", farm.FarmID, err.Error()))
		return
	}

	fmt.Println()
	var done, skipped, failed int
	for _, o := range outcomes {
		switch {
		case o.Skipped:
			skipped++
			fmt.Printf("%s  %s skipped, reading exists%s\n", ColorYellow, o.Window.String(), ColorReset)
		case o.Err != nil:
			failed++
			fmt.Printf("%s  %s failed: %s%s\n", ColorRed, o.Window.String(), o.Err.Error(), ColorReset)
		default:
			done++
			fmt.Printf("%s  %s NDVI %.3f%s\n", ColorGreen, o.Window.String(), o.Result.NDVI, ColorReset)
		}
	}

	summary := fmt.Sprintf("Backfill of farm %s finished: %d analysed, %d skipped, %d failed", farm.FarmID, done, skipped, failed)
	PrintSuccess(summary)
	a.notifySuccess(ctx, "Yvy CLI\n\n"+summary)
}

// ListReadings prints the stored reading history of a farm
func (a *App) ListReadings() {
	if a.Readings == nil {
		PrintError("readings storage not configured, set DATABASE_URL")
		return
	}
	farmID := ReadString("Enter the farm id: ")
	if farmID == "" {
		PrintError("farm id cannot be empty")
		return
	}

	ctx, cancel := a.context()
	defer cancel()

	readings, err := a.Readings.ListReadings(ctx, farmID, 0)
	if err != nil {
		PrintError(err.Error())
		return
	}
	if len(readings) == 0 {
		PrintWarning(fmt.Sprintf("No readings stored for farm %s.", farmID))
		return
	}
	fmt.Printf("\n%s%-12s %7s %7s %7s %8s  %s%s\n", ColorGreen, "date", "ndvi", "ndwi", "temp", "co2e", "alerts", ColorReset)
	for _, r := range readings {
		fmt.Printf("%s%-12s %7.3f %7.3f %7.1f %8.1f  %s%s\n", ColorGreen,
			r.Date.Format("2006-01-02"), r.NDVI, r.NDWI, r.Temperature, r.CO2Equivalent, strings.Join(r.Alerts, ","), ColorReset)
	}
}
