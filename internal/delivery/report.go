package delivery

import (
	"fmt"
	"time"

	"github.com/yvy-orbital/yvy-field-service/output"
)

// Metrics lists the indicators of r in report order.
func (r *AnalysisResult) Metrics() []output.Metric {
	f := func(v float64, prec int) string { return fmt.Sprintf("%.*f", prec, v) }
	metrics := []output.Metric{
		{Name: "NDVI", Value: f(r.NDVI, 3)},
		{Name: "NDWI", Value: f(r.NDWI, 3)},
		{Name: "NDRE", Value: f(r.NDRE, 3)},
		{Name: "RVI", Value: f(r.RVI, 3)},
		{Name: "OTCI", Value: f(r.OTCI, 3)},
		{Name: "Land surface temperature", Value: f(r.Temperature, 1), Unit: "C"},
		{Name: "Regional NDVI", Value: f(r.RegionalNDVI, 3)},
		{Name: "Biomass", Value: f(r.BiomassTHa, 1), Unit: "t/ha"},
		{Name: "Total biomass", Value: f(r.TotalBiomass, 1), Unit: "t"},
		{Name: "Carbon stock", Value: f(r.CarbonStock, 1), Unit: "t C"},
		{Name: "CO2 equivalent", Value: f(r.CO2Equivalent, 1), Unit: "t CO2e"},
	}
	if w := r.Weather; w != nil {
		metrics = append(metrics,
			output.Metric{Name: "Mean air temperature", Value: f(w.MeanTemperature, 1), Unit: "C"},
			output.Metric{Name: "Precipitation", Value: f(w.TotalPrecipitation, 1), Unit: "mm"},
			output.Metric{Name: "Mean relative humidity", Value: f(w.MeanHumidity, 0), Unit: "%"},
		)
	}
	return metrics
}

// BuildReport assembles the PDF content for a farm. Either result or zones
// may be nil.
func BuildReport(farm FarmRequest, result *AnalysisResult, zones *ZoneResult, now time.Time) (output.Report, error) {
	r := output.Report{Farm: farmLabel(farm), GeneratedAt: now}
	if farm.Start != "" || farm.End != "" {
		r.Window = farm.Start + "/" + farm.End
	}
	if result != nil {
		r.Metrics = result.Metrics()
		for _, a := range result.Alerts {
			r.Alerts = append(r.Alerts, a.Type+": "+a.Message)
		}
		if r.Window == "" {
			r.Window = "ending " + result.Date
		}
	}
	if zones != nil && len(zones.Zones) > 0 {
		r.Zones = zones.Zones
		img, err := output.RenderZoneMap(zones.Zones, output.DefaultZoneMapWidth)
		if err != nil {
			return r, fmt.Errorf("zone map: %w", err)
		}
		r.ZoneMap = img
		chart, err := output.ZoneChartPNG(zones.Samples.Samples, zones.Labels(), zones.Zones)
		if err != nil {
			return r, fmt.Errorf("zone chart: %w", err)
		}
		r.Chart = chart
	}
	return r, nil
}
