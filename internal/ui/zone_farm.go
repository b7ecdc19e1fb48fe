package ui

import (
	"fmt"
	"path/filepath"

	"github.com/yvy-orbital/yvy-field-service/internal/dataset"
	"github.com/yvy-orbital/yvy-field-service/internal/delivery"
	"github.com/yvy-orbital/yvy-field-service/internal/zoning"
	"github.com/yvy-orbital/yvy-field-service/output"
)

// ZoneFarm handles the UI for splitting a farm into productivity zones and
// exporting the map, GeoJSON, sample CSV and chart.
func (a *App) ZoneFarm() {
	farm, err := a.ReadFarm()
	if err != nil {
		PrintError(err.Error())
		return
	}
	k, err := ReadInt(fmt.Sprintf("Enter the number of zones (empty for %d): ", a.zoneCount()), 1, 10, a.zoneCount())
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

	result, err := a.Zoner.ZoneFarm(ctx, zoneRequest(farm, k))
	if err != nil {
		PrintError(fmt.Sprintf("Error zoning farm: %s", err.Error()))
		a.notifyError(ctx, fmt.Sprintf("Yvy CLI\n\nError zoning farm %s: %s", farm.FarmID, err.Error()))
		return
	}
	if result.Samples.Source == dataset.Synthetic {
		PrintWarning(fmt.Sprintf("Using synthetic samples: %s", result.Samples.Reason))
	}
	printZones(result.Zones)

	resultPath, err := a.CreateResultDirectory(farm.FarmID, "zones")
	if err != nil {
		PrintError(err.Error())
		return
	}
	paths, err := exportZones(result, resultPath)
	if err != nil {
		PrintError(err.Error())
		return
	}

	msg := "Zones created successfully!"
	for _, p := range paths {
		msg += "\n " + p
	}
	PrintSuccess(msg)
	a.notifySuccess(ctx, "Yvy CLI\n\n"+msg)
}

func (a *App) zoneCount() int {
	if a.K > 0 {
		return a.K
	}
	return zoning.DefaultZoneCount
}

func zoneRequest(farm delivery.FarmRequest, k int) delivery.ZoneRequest {
	return delivery.ZoneRequest{
		Latitude:  farm.Latitude,
		Longitude: farm.Longitude,
		Hectares:  farm.Hectares,
		K:         k,
		Start:     farm.Start,
		End:       farm.End,
	}
}

func printZones(zones []zoning.Zone) {
	fmt.Printf("\n%sProductivity zones:%s\n", ColorGreen, ColorReset)
	for _, z := range zones {
		fmt.Printf("%s  %d. %-20s NDVI %.3f  %5.1f%%  %s%s\n", ColorGreen, z.ID, z.Name, z.NDVIAvg, z.AreaPercentage*100, z.Color, ColorReset)
	}
}

func exportZones(result *delivery.ZoneResult, dir string) ([]string, error) {
	labels := result.Labels()
	samples := result.Samples.Samples
	paths := []string{
		filepath.Join(dir, "zones.jpg"),
		filepath.Join(dir, "zones.geojson"),
		filepath.Join(dir, "samples.csv"),
		filepath.Join(dir, "zones_chart.png"),
	}
	if err := output.SaveZoneMap(result.Zones, output.DefaultZoneMapWidth, paths[0]); err != nil {
		return nil, err
	}
	if err := output.SaveZonesGeoJSON(result.Zones, paths[1]); err != nil {
		return nil, err
	}
	if err := output.SaveSamplesCSV(samples, labels, result.Zones, paths[2]); err != nil {
		return nil, err
	}
	if err := output.SaveZoneChart(samples, labels, result.Zones, paths[3]); err != nil {
		return nil, err
	}
	return paths, nil
}
