package pricing

import "github.com/Simplici0/atelier/internal/costing"

// Breakdown contains the per-category subtotals of a form.
type Breakdown struct {
	CreationCost float64
	SuppliesCost float64
	LaborCost    float64
	FixedCost    float64
	Margin       float64
}

// Totals contains roll-up values from the pricing calculation.
type Totals struct {
	TotalCost  float64
	FinalPrice float64
}

// Result groups the full pricing output, including detailed breakdown and totals.
type Result struct {
	Breakdown Breakdown
	Totals    Totals
}

// CategoryTotal sums the totals of items.
func CategoryTotal(items []costing.CostItem) float64 {
	total := 0.0
	for _, item := range items {
		total += item.Total
	}
	return total
}

// FinalPrice applies a profit margin percentage on top of a cost.
func FinalPrice(totalCost, profitMargin float64) float64 {
	return totalCost * (1.0 + profitMargin/100.0)
}

// Calculate computes category subtotals, total cost and final price of a form.
func Calculate(form costing.FormData) Result {
	var b Breakdown
	for _, c := range costing.Categories {
		subtotal := CategoryTotal(form.Items(c))
		switch c {
		case costing.CategoryCreation:
			b.CreationCost = subtotal
		case costing.CategorySupplies:
			b.SuppliesCost = subtotal
		case costing.CategoryLabor:
			b.LaborCost = subtotal
		case costing.CategoryFixed:
			b.FixedCost = subtotal
		}
	}

	totalCost := b.CreationCost + b.SuppliesCost + b.LaborCost + b.FixedCost
	finalPrice := FinalPrice(totalCost, form.ProfitMargin)
	b.Margin = finalPrice - totalCost

	return Result{
		Breakdown: b,
		Totals: Totals{
			TotalCost:  totalCost,
			FinalPrice: finalPrice,
		},
	}
}

// Apply writes the derived totals into form.
func Apply(form *costing.FormData) Result {
	result := Calculate(*form)
	form.TotalCost = result.Totals.TotalCost
	form.FinalPrice = result.Totals.FinalPrice
	return result
}
