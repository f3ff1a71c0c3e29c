package costing

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Category partitions cost items. The set is closed; see Categories.
type Category int

const (
	CategoryCreation Category = iota
	CategorySupplies
	CategoryLabor
	CategoryFixed
)

// Categories lists every category in display order.
var Categories = [...]Category{CategoryCreation, CategorySupplies, CategoryLabor, CategoryFixed}

var categoryTags = [...]string{
	CategoryCreation: "creation",
	CategorySupplies: "supplies",
	CategoryLabor:    "labor",
	CategoryFixed:    "fixed",
}

// String returns the persisted tag of the category.
func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryTags[c]
}

// Valid reports whether c is one of the four known categories.
func (c Category) Valid() bool {
	return c >= CategoryCreation && c <= CategoryFixed
}

// ParseCategory maps a persisted tag back to its category.
func ParseCategory(tag string) (Category, bool) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, c := range Categories {
		if categoryTags[c] == tag {
			return c, true
		}
	}
	return 0, false
}

// PricingMode selects single-piece or multiple-piece costing.
type PricingMode string

const (
	ModeSingle   PricingMode = "single"
	ModeMultiple PricingMode = "multiple"
)

// ParsePricingMode falls back to single for anything unrecognized.
func ParsePricingMode(raw string) PricingMode {
	if PricingMode(strings.ToLower(strings.TrimSpace(raw))) == ModeMultiple {
		return ModeMultiple
	}
	return ModeSingle
}

// CostItem is one itemized cost line. Total is derived from the other
// numeric fields and is only ever written by recalculate.
type CostItem struct {
	ID              string  `json:"id"`
	Description     string  `json:"description"`
	UnitValue       float64 `json:"unitValue"`
	Quantity        float64 `json:"quantity"`
	WastePercentage float64 `json:"wastePercentage"`
	Total           float64 `json:"total"`
}

// NewCostItem builds an item with a fresh id and a consistent total.
func NewCostItem(description string, unitValue, quantity, wastePercentage float64) CostItem {
	item := CostItem{
		ID:              uuid.NewString(),
		Description:     strings.TrimSpace(description),
		UnitValue:       unitValue,
		Quantity:        quantity,
		WastePercentage: wastePercentage,
	}
	item.recalculate()
	return item
}

// ItemTotal is unitValue * quantity with the waste surcharge applied.
func ItemTotal(unitValue, quantity, wastePercentage float64) float64 {
	return unitValue * quantity * (1 + wastePercentage/100)
}

func (i *CostItem) recalculate() {
	i.Total = ItemTotal(i.UnitValue, i.Quantity, i.WastePercentage)
}

// ItemPatch carries the fields an update touches; nil fields are left alone.
type ItemPatch struct {
	Description     *string  `json:"description,omitempty"`
	UnitValue       *float64 `json:"unitValue,omitempty"`
	Quantity        *float64 `json:"quantity,omitempty"`
	WastePercentage *float64 `json:"wastePercentage,omitempty"`
}

func (p ItemPatch) apply(item *CostItem) {
	if p.Description != nil {
		if d := strings.TrimSpace(*p.Description); d != "" {
			item.Description = d
		}
	}
	if p.UnitValue != nil && *p.UnitValue >= 0 {
		item.UnitValue = *p.UnitValue
	}
	if p.Quantity != nil {
		item.Quantity = *p.Quantity
	}
	if p.WastePercentage != nil {
		item.WastePercentage = ClampPercent(*p.WastePercentage)
	}
	item.recalculate()
}

// SizeSpec is one garment size of the form.
type SizeSpec struct {
	Size     string  `json:"size"`
	Weight   float64 `json:"weight"`
	Quantity int     `json:"quantity"`
}

// StandardSizes are the labels offered before any custom size.
var StandardSizes = []string{"PP", "P", "M", "G", "GG", "XG", "XXG"}

// FormData is the whole wizard state. It is owned by exactly one session.
type FormData struct {
	PricingMode PricingMode `json:"pricingMode"`

	GarmentType string `json:"garmentType"`
	ModelName   string `json:"modelName"`
	Reference   string `json:"reference"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`

	Sizes []SizeSpec `json:"sizes"`

	FabricID          *int64  `json:"fabricId"`
	FabricConsumption float64 `json:"fabricConsumption"`
	WastePercentage   float64 `json:"wastePercentage"`

	CreationCosts []CostItem `json:"creationCosts"`
	Supplies      []CostItem `json:"supplies"`
	Labor         []CostItem `json:"labor"`
	FixedCosts    []CostItem `json:"fixedCosts"`

	ProfitMargin float64 `json:"profitMargin"`
	TotalCost    float64 `json:"totalCost"`
	FinalPrice   float64 `json:"finalPrice"`
}

const (
	DefaultProfitMargin    = 40
	DefaultWastePercentage = 10
)

// NewFormData returns the initial state for a session in the given mode.
func NewFormData(mode PricingMode) FormData {
	return FormData{
		PricingMode:     mode,
		Sizes:           []SizeSpec{},
		CreationCosts:   []CostItem{},
		Supplies:        []CostItem{},
		Labor:           []CostItem{},
		FixedCosts:      []CostItem{},
		ProfitMargin:    DefaultProfitMargin,
		WastePercentage: DefaultWastePercentage,
	}
}

// Items returns the items of a category.
func (f *FormData) Items(c Category) []CostItem {
	return *f.slot(c)
}

func (f *FormData) slot(c Category) *[]CostItem {
	switch c {
	case CategoryCreation:
		return &f.CreationCosts
	case CategorySupplies:
		return &f.Supplies
	case CategoryLabor:
		return &f.Labor
	case CategoryFixed:
		return &f.FixedCosts
	}
	panic(fmt.Sprintf("costing: unknown category %d", int(c)))
}

// AddItem appends item to a category. Items without a description are
// rejected and AddItem reports false.
func (f *FormData) AddItem(c Category, item CostItem) bool {
	if !c.Valid() {
		return false
	}
	item.Description = strings.TrimSpace(item.Description)
	if item.Description == "" {
		return false
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.UnitValue < 0 {
		item.UnitValue = 0
	}
	item.WastePercentage = ClampPercent(item.WastePercentage)
	item.recalculate()

	items := f.slot(c)
	*items = append(*items, item)
	return true
}

// UpdateItem patches the item with the given id and recomputes its total.
func (f *FormData) UpdateItem(c Category, id string, patch ItemPatch) bool {
	if !c.Valid() {
		return false
	}
	items := *f.slot(c)
	for i := range items {
		if items[i].ID == id {
			patch.apply(&items[i])
			return true
		}
	}
	return false
}

// RemoveItem drops the item with the given id. Unknown ids are ignored.
func (f *FormData) RemoveItem(c Category, id string) {
	if !c.Valid() {
		return
	}
	items := f.slot(c)
	kept := (*items)[:0]
	for _, item := range *items {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	*items = kept
}

// SetSize inserts or replaces the entry for spec.Size. An entry left without
// any numeric input is removed instead of stored.
func (f *FormData) SetSize(spec SizeSpec) {
	spec.Size = strings.TrimSpace(spec.Size)
	if spec.Size == "" {
		return
	}
	if spec.Weight < 0 {
		spec.Weight = 0
	}
	if spec.Quantity < 0 {
		spec.Quantity = 0
	}
	if f.PricingMode != ModeMultiple {
		spec.Quantity = 1
	}

	empty := spec.Weight == 0 && (f.PricingMode != ModeMultiple || spec.Quantity == 0)
	if empty {
		f.RemoveSize(spec.Size)
		return
	}

	for i := range f.Sizes {
		if strings.EqualFold(f.Sizes[i].Size, spec.Size) {
			f.Sizes[i] = spec
			return
		}
	}
	f.Sizes = append(f.Sizes, spec)
}

// RemoveSize drops a size label. Unknown labels are ignored.
func (f *FormData) RemoveSize(size string) {
	kept := f.Sizes[:0]
	for _, s := range f.Sizes {
		if !strings.EqualFold(s.Size, strings.TrimSpace(size)) {
			kept = append(kept, s)
		}
	}
	f.Sizes = kept
}

// Clone returns a deep copy sharing no slices or pointers with f.
func (f FormData) Clone() FormData {
	out := f
	out.Sizes = append([]SizeSpec{}, f.Sizes...)
	out.CreationCosts = append([]CostItem{}, f.CreationCosts...)
	out.Supplies = append([]CostItem{}, f.Supplies...)
	out.Labor = append([]CostItem{}, f.Labor...)
	out.FixedCosts = append([]CostItem{}, f.FixedCosts...)
	if f.FabricID != nil {
		id := *f.FabricID
		out.FabricID = &id
	}
	return out
}

// ClampPercent bounds a percentage to [0, 100].
func ClampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

// Normalize restores the form invariants on data that did not go through
// AddItem or SetSize: item totals are recomputed, items without description
// are dropped and duplicate size labels keep their last entry.
func (f *FormData) Normalize() {
	for _, c := range Categories {
		items := f.slot(c)
		kept := make([]CostItem, 0, len(*items))
		for _, item := range *items {
			item.Description = strings.TrimSpace(item.Description)
			if item.Description == "" {
				continue
			}
			if item.ID == "" {
				item.ID = uuid.NewString()
			}
			item.WastePercentage = ClampPercent(item.WastePercentage)
			item.recalculate()
			kept = append(kept, item)
		}
		*items = kept
	}

	f.resetSizes()
}

// SetPricingMode switches the mode and re-applies every size under the new
// mode's rules, so single mode pins quantities and drops weightless rows.
func (f *FormData) SetPricingMode(mode PricingMode) {
	f.PricingMode = ParsePricingMode(string(mode))
	f.resetSizes()
}

func (f *FormData) resetSizes() {
	sizes := f.Sizes
	f.Sizes = make([]SizeSpec, 0, len(sizes))
	for _, s := range sizes {
		f.SetSize(s)
	}
}
