package delivery

import "math"

const (
	carbonFraction = 0.47
	co2PerCarbon   = 3.67
)

type CarbonEstimate struct {
	BiomassPerHectare float64
	TotalBiomass      float64
	CarbonStock       float64
	CO2Equivalent     float64
}

// EstimateCarbon applies the NDVI biomass heuristic: biomass (t/ha) is
// max(0, 180*ndvi - 40).
func EstimateCarbon(meanNDVI, hectares float64) CarbonEstimate {
	biomass := math.Max(0, 180*meanNDVI-40)
	total := biomass * hectares
	carbon := total * carbonFraction
	return CarbonEstimate{
		BiomassPerHectare: biomass,
		TotalBiomass:      total,
		CarbonStock:       carbon,
		CO2Equivalent:     carbon * co2PerCarbon,
	}
}
