package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/Simplici0/atelier/internal/costing"
	"github.com/Simplici0/atelier/internal/numeric"
	"github.com/Simplici0/atelier/internal/pricing"
)

var categoryLabels = map[costing.Category]string{
	costing.CategoryCreation: "Criação",
	costing.CategorySupplies: "Aviamentos",
	costing.CategoryLabor:    "Mão de obra",
	costing.CategoryFixed:    "Custos fixos",
}

func money(v float64) string {
	return "R$ " + humanize.FormatFloat("#.###,##", numeric.Money(v))
}

// summaryText renders the cost sheet of a form for copy and paste.
func summaryText(form costing.FormData, result pricing.Result, fabric *fabricView) string {
	var b strings.Builder

	title := strings.TrimSpace(strings.Join([]string{form.GarmentType, form.ModelName}, " "))
	if title == "" {
		title = "Sem nome"
	}
	fmt.Fprintf(&b, "Ficha de custo: %s\n", title)
	if form.Reference != "" {
		fmt.Fprintf(&b, "Referência: %s\n", form.Reference)
	}
	if form.PricingMode == costing.ModeMultiple {
		b.WriteString("Modo: grade\n")
	} else {
		b.WriteString("Modo: peça única\n")
	}

	if len(form.Sizes) > 0 {
		b.WriteString("\nTamanhos:\n")
		for _, s := range form.Sizes {
			if form.PricingMode == costing.ModeMultiple {
				fmt.Fprintf(&b, "- %s: %s g x %d\n", s.Size, numeric.Format(s.Weight), s.Quantity)
			} else {
				fmt.Fprintf(&b, "- %s: %s g\n", s.Size, numeric.Format(s.Weight))
			}
		}
	}

	if fabric != nil {
		fmt.Fprintf(&b, "\nTecido: %s\n", fabric.Fabric.Name)
		for _, row := range fabric.Sizes {
			label := row.Size
			if label == "" {
				label = "consumo"
			}
			fmt.Fprintf(&b, "- %s: %s x %d = %s\n", label, money(row.UnitCost), row.Pieces, money(row.TotalCost))
		}
		fmt.Fprintf(&b, "Total tecido: %s\n", money(fabric.Total))
	}

	b.WriteString("\nCustos:\n")
	for _, c := range costing.Categories {
		items := form.Items(c)
		fmt.Fprintf(&b, "%s: %s\n", categoryLabels[c], money(pricing.CategoryTotal(items)))
		for _, item := range items {
			fmt.Fprintf(&b, "- %s: %s x %s = %s\n", item.Description, money(item.UnitValue), numeric.Format(item.Quantity), money(item.Total))
		}
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "Custo total: %s\n", money(result.Totals.TotalCost))
	fmt.Fprintf(&b, "Margem (%s%%): %s\n", numeric.Format(form.ProfitMargin), money(result.Breakdown.Margin))
	fmt.Fprintf(&b, "Preço final: %s\n", money(result.Totals.FinalPrice))

	return b.String()
}
