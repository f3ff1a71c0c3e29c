package hydrate

import (
	"math"
	"strconv"
	"strings"

	"github.com/Simplici0/atelier/internal/costing"
	"github.com/Simplici0/atelier/internal/numeric"
	"github.com/Simplici0/atelier/internal/pricing"
	"github.com/Simplici0/atelier/internal/store"
)

// Expand maps template details into a form. Numeric text that does not parse
// becomes zero. Cost rows with an unknown category or no description are
// returned as dropped instead of being applied.
func Expand(d store.TemplateDetails) (costing.FormData, []store.CostRow) {
	form := TextFields(d.Template)
	t := d.Template

	if t.FabricID != nil {
		id := *t.FabricID
		form.FabricID = &id
	}
	form.FabricConsumption = numeric.ParseOrZero(t.FabricConsumption)
	form.WastePercentage = costing.ClampPercent(numeric.ParseOrZero(t.WastePercentage))
	form.ProfitMargin = numeric.ParseOrZero(t.ProfitMargin)

	for _, row := range d.Sizes {
		form.SetSize(costing.SizeSpec{
			Size:     row.Size,
			Weight:   numeric.ParseOrZero(row.Weight),
			Quantity: parseQuantity(row.Quantity),
		})
	}

	var dropped []store.CostRow
	for _, row := range d.Costs {
		category, ok := costing.ParseCategory(row.Category)
		if !ok {
			dropped = append(dropped, row)
			continue
		}
		item := costing.NewCostItem(
			row.Description,
			numeric.ParseOrZero(row.UnitValue),
			numeric.ParseOrZero(row.Quantity),
			numeric.ParseOrZero(row.WastePercentage),
		)
		if !form.AddItem(category, item) {
			dropped = append(dropped, row)
		}
	}

	pricing.Apply(&form)
	return form, dropped
}

// MaxSizeQuantity bounds the piece count read back for one size.
const MaxSizeQuantity = 1_000_000

// parseQuantity reads a stored piece count, rounding to a whole number and
// clamping it to [0, MaxSizeQuantity].
func parseQuantity(raw string) int {
	q := math.Round(numeric.ParseOrZero(raw))
	switch {
	case math.IsNaN(q) || q < 0:
		return 0
	case q > MaxSizeQuantity:
		return MaxSizeQuantity
	}
	return int(q)
}

// TextFields builds a form from the text fields of t only, leaving every
// numeric field at its default.
func TextFields(t store.Template) costing.FormData {
	form := costing.NewFormData(costing.ParsePricingMode(t.PricingMode))
	form.GarmentType = t.GarmentType
	form.ModelName = t.ModelName
	form.Reference = strings.TrimSpace(t.Reference)
	form.Description = t.Description
	form.ImageURL = t.ImageURL
	return form
}

// ExportTemplate flattens a form into the persisted template shape. The
// returned template has no id.
func ExportTemplate(form costing.FormData) store.TemplateDetails {
	d := store.TemplateDetails{
		Template: store.Template{
			PricingMode:       string(form.PricingMode),
			GarmentType:       form.GarmentType,
			ModelName:         form.ModelName,
			Reference:         form.Reference,
			Description:       form.Description,
			ImageURL:          form.ImageURL,
			FabricConsumption: numeric.Format(form.FabricConsumption),
			WastePercentage:   numeric.Format(form.WastePercentage),
			ProfitMargin:      numeric.Format(form.ProfitMargin),
			TotalCost:         numeric.Format(form.TotalCost),
			FinalPrice:        numeric.Format(form.FinalPrice),
		},
		Sizes: make([]store.SizeRow, 0, len(form.Sizes)),
		Costs: make([]store.CostRow, 0),
	}
	if form.FabricID != nil {
		id := *form.FabricID
		d.Template.FabricID = &id
	}

	for _, s := range form.Sizes {
		d.Sizes = append(d.Sizes, store.SizeRow{
			Size:     s.Size,
			Weight:   numeric.Format(s.Weight),
			Quantity: strconv.Itoa(s.Quantity),
		})
	}

	for _, c := range costing.Categories {
		for _, item := range form.Items(c) {
			d.Costs = append(d.Costs, store.CostRow{
				Category:        c.String(),
				Description:     item.Description,
				UnitValue:       numeric.Format(item.UnitValue),
				Quantity:        numeric.Format(item.Quantity),
				WastePercentage: numeric.Format(item.WastePercentage),
				Total:           numeric.Format(item.Total),
			})
		}
	}

	return d
}
