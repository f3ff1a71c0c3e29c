package wizard

import "github.com/Simplici0/atelier/internal/costing"

var singleSuggestions = map[costing.Category][]string{
	costing.CategoryCreation: {"Modelagem", "Pilotagem", "Graduação", "Encaixe"},
	costing.CategorySupplies: {"Linha", "Botão", "Zíper", "Etiqueta", "Elástico", "Entretela"},
	costing.CategoryLabor:    {"Corte", "Costura", "Acabamento", "Passadoria"},
	costing.CategoryFixed:    {"Aluguel", "Energia", "Embalagem"},
}

var multipleSuggestions = map[costing.Category][]string{
	costing.CategoryCreation: {"Modelagem", "Pilotagem", "Graduação", "Encaixe", "Risco e enfesto"},
	costing.CategorySupplies: {"Linha", "Botão", "Zíper", "Etiqueta", "Tag", "Elástico", "Entretela"},
	costing.CategoryLabor:    {"Corte", "Facção", "Acabamento", "Passadoria", "Revisão"},
	costing.CategoryFixed:    {"Aluguel", "Energia", "Embalagem", "Frete do lote"},
}

// Suggestions returns the cost descriptions offered for a category in the
// given pricing mode.
func Suggestions(mode costing.PricingMode, c costing.Category) []string {
	table := singleSuggestions
	if mode == costing.ModeMultiple {
		table = multipleSuggestions
	}
	return append([]string(nil), table[c]...)
}
