package delivery

import "fmt"

const (
	AlertVegetationStress = "VEGETATION_STRESS"
	AlertDroughtRisk      = "DROUGHT_RISK"
	AlertHeatStress       = "HEAT_STRESS"

	ndviStressThreshold   = 0.4
	ndwiDroughtThreshold  = -0.15
	heatStressTemperature = 32.0
)

type Alert struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Measurements flags which indicators were actually measured; alerts are
// only raised for those.
type Measurements struct {
	NDVI        bool
	NDWI        bool
	Temperature bool
}

func EvaluateAlerts(r *AnalysisResult, m Measurements) []Alert {
	alerts := []Alert{}
	if m.NDVI && r.NDVI < ndviStressThreshold {
		alerts = append(alerts, Alert{
			Type:    AlertVegetationStress,
			Message: fmt.Sprintf("Low NDVI (%.2f). Possible water or nutrient stress.", r.NDVI),
		})
	}
	if m.NDWI && r.NDWI < ndwiDroughtThreshold {
		alerts = append(alerts, Alert{
			Type:    AlertDroughtRisk,
			Message: fmt.Sprintf("Very low NDWI (%.2f). Low soil moisture.", r.NDWI),
		})
	}
	if m.Temperature && r.Temperature > heatStressTemperature {
		alerts = append(alerts, Alert{
			Type:    AlertHeatStress,
			Message: fmt.Sprintf("Surface temperature reached %.1f°C.", r.Temperature),
		})
	}
	return alerts
}

func alertTypes(alerts []Alert) []string {
	types := make([]string, len(alerts))
	for i, a := range alerts {
		types[i] = a.Type
	}
	return types
}
