package pricing

import "github.com/Simplici0/atelier/internal/costing"

// Fabric holds the catalog prices used for fabric costing.
type Fabric struct {
	PricePerKg    float64
	PricePerMeter float64
}

// FabricCostForSize costs one piece by its weight in grams.
func FabricCostForSize(weightGrams, pricePerKg, wastePercentage float64) float64 {
	return (weightGrams / 1000.0) * pricePerKg * (1.0 + wastePercentage/100.0)
}

// FabricCostByConsumption costs one piece by linear consumption in meters.
func FabricCostByConsumption(consumptionMeters, pricePerMeter float64) float64 {
	return consumptionMeters * pricePerMeter
}

// SizeFabricCost is the fabric cost of one size row.
type SizeFabricCost struct {
	Size      string
	ByWeight  bool
	UnitCost  float64
	Pieces    int
	TotalCost float64
}

// FabricResult lists fabric cost per size plus the overall sum.
type FabricResult struct {
	Sizes []SizeFabricCost
	Total float64
}

// FabricBreakdown costs the fabric of every size in form. Weight-based costing
// is used for sizes with a positive weight; the rest fall back to the form's
// linear consumption. In single mode each size counts as one piece.
func FabricBreakdown(form costing.FormData, fabric Fabric) FabricResult {
	result := FabricResult{Sizes: make([]SizeFabricCost, 0, len(form.Sizes))}

	for _, size := range form.Sizes {
		row := SizeFabricCost{Size: size.Size, Pieces: 1}
		if form.PricingMode == costing.ModeMultiple {
			row.Pieces = size.Quantity
		}

		if size.Weight > 0 {
			row.ByWeight = true
			row.UnitCost = FabricCostForSize(size.Weight, fabric.PricePerKg, form.WastePercentage)
		} else {
			row.UnitCost = FabricCostByConsumption(form.FabricConsumption, fabric.PricePerMeter)
		}

		row.TotalCost = row.UnitCost * float64(row.Pieces)
		result.Total += row.TotalCost
		result.Sizes = append(result.Sizes, row)
	}

	if len(form.Sizes) == 0 && form.FabricConsumption > 0 {
		unit := FabricCostByConsumption(form.FabricConsumption, fabric.PricePerMeter)
		result.Sizes = append(result.Sizes, SizeFabricCost{UnitCost: unit, Pieces: 1, TotalCost: unit})
		result.Total = unit
	}

	return result
}
