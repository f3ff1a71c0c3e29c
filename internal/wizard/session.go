// Package wizard holds the state of one pricing wizard session: the form being
// filled, the current step and the single mutation path that keeps derived
// totals in sync with every edit.
package wizard

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Simplici0/atelier/internal/costing"
	"github.com/Simplici0/atelier/internal/numeric"
	"github.com/Simplici0/atelier/internal/pricing"
	"github.com/Simplici0/atelier/internal/reference"
)

// ErrUnknownField is returned by UpdateField for names it does not handle.
var ErrUnknownField = errors.New("unknown form field")

// Field names a scalar form field settable through UpdateField.
type Field string

const (
	FieldPricingMode       Field = "pricingMode"
	FieldGarmentType       Field = "garmentType"
	FieldModelName         Field = "modelName"
	FieldReference         Field = "reference"
	FieldDescription       Field = "description"
	FieldImageURL          Field = "imageUrl"
	FieldFabricID          Field = "fabricId"
	FieldFabricConsumption Field = "fabricConsumption"
	FieldWastePercentage   Field = "wastePercentage"
	FieldProfitMargin      Field = "profitMargin"
)

// Patch is a multi-field update. Nil fields are left untouched.
type Patch struct {
	PricingMode       *costing.PricingMode `json:"pricingMode,omitempty"`
	GarmentType       *string              `json:"garmentType,omitempty"`
	ModelName         *string              `json:"modelName,omitempty"`
	Reference         *string              `json:"reference,omitempty"`
	Description       *string              `json:"description,omitempty"`
	ImageURL          *string              `json:"imageUrl,omitempty"`
	FabricID          *int64               `json:"fabricId,omitempty"`
	ClearFabric       bool                 `json:"clearFabric,omitempty"`
	FabricConsumption *float64             `json:"fabricConsumption,omitempty"`
	WastePercentage   *float64             `json:"wastePercentage,omitempty"`
	ProfitMargin      *float64             `json:"profitMargin,omitempty"`
}

// Session is one wizard run. It is not safe for concurrent use.
type Session struct {
	initialMode     costing.PricingMode
	form            costing.FormData
	step            Step
	referenceEdited bool
	now             func() time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces the time source used for reference codes.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession starts a wizard at the first step with a fresh form.
func NewSession(mode costing.PricingMode, opts ...Option) *Session {
	s := &Session{initialMode: costing.ParsePricingMode(string(mode)), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.ResetAll()
	return s
}

// Form returns a copy of the current form.
func (s *Session) Form() costing.FormData { return s.form.Clone() }

// TotalCost is the sum of every cost category.
func (s *Session) TotalCost() float64 { return s.form.TotalCost }

// FinalPrice is TotalCost with the profit margin applied.
func (s *Session) FinalPrice() float64 { return s.form.FinalPrice }

// Pricing returns the per-category breakdown of the current form.
func (s *Session) Pricing() pricing.Result { return pricing.Calculate(s.form) }

// ReferenceEdited reports whether the reference was typed by the user, in
// which case garment type changes no longer regenerate it.
func (s *Session) ReferenceEdited() bool { return s.referenceEdited }

// UpdateField sets one scalar field from its text value. Numeric text that
// does not parse is stored as zero.
func (s *Session) UpdateField(name Field, value string) error {
	var p Patch
	switch name {
	case FieldPricingMode:
		mode := costing.ParsePricingMode(value)
		p.PricingMode = &mode
	case FieldGarmentType:
		p.GarmentType = &value
	case FieldModelName:
		p.ModelName = &value
	case FieldReference:
		p.Reference = &value
	case FieldDescription:
		p.Description = &value
	case FieldImageURL:
		p.ImageURL = &value
	case FieldFabricID:
		id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || id <= 0 {
			p.ClearFabric = true
		} else {
			p.FabricID = &id
		}
	case FieldFabricConsumption:
		v := numeric.ParseOrZero(value)
		p.FabricConsumption = &v
	case FieldWastePercentage:
		v := numeric.ParseOrZero(value)
		p.WastePercentage = &v
	case FieldProfitMargin:
		v := numeric.ParseOrZero(value)
		p.ProfitMargin = &v
	default:
		return fmt.Errorf("update %q: %w", name, ErrUnknownField)
	}

	s.UpdateMultipleFields(p)
	return nil
}

// UpdateMultipleFields applies every set field of p, then recomputes totals once.
func (s *Session) UpdateMultipleFields(p Patch) {
	f := &s.form

	if p.PricingMode != nil {
		f.SetPricingMode(*p.PricingMode)
	}
	if p.ModelName != nil {
		f.ModelName = *p.ModelName
	}
	if p.Description != nil {
		f.Description = *p.Description
	}
	if p.ImageURL != nil {
		f.ImageURL = strings.TrimSpace(*p.ImageURL)
	}
	if p.Reference != nil {
		f.Reference = strings.TrimSpace(*p.Reference)
		s.referenceEdited = f.Reference != ""
	}
	if p.GarmentType != nil {
		f.GarmentType = *p.GarmentType
		if !s.referenceEdited && strings.TrimSpace(f.GarmentType) != "" {
			f.Reference = reference.GenerateAt(f.GarmentType, s.now())
		}
	}
	if p.ClearFabric {
		f.FabricID = nil
	}
	if p.FabricID != nil {
		id := *p.FabricID
		f.FabricID = &id
	}
	if p.FabricConsumption != nil && *p.FabricConsumption >= 0 {
		f.FabricConsumption = *p.FabricConsumption
	}
	if p.WastePercentage != nil {
		f.WastePercentage = costing.ClampPercent(*p.WastePercentage)
	}
	if p.ProfitMargin != nil {
		f.ProfitMargin = *p.ProfitMargin
	}

	s.recalculate()
}

// AddItem adds a cost item to a category.
func (s *Session) AddItem(c costing.Category, item costing.CostItem) bool {
	ok := s.form.AddItem(c, item)
	s.recalculate()
	return ok
}

// UpdateItem patches a cost item of a category.
func (s *Session) UpdateItem(c costing.Category, id string, patch costing.ItemPatch) bool {
	ok := s.form.UpdateItem(c, id, patch)
	s.recalculate()
	return ok
}

// RemoveItem removes a cost item of a category.
func (s *Session) RemoveItem(c costing.Category, id string) {
	s.form.RemoveItem(c, id)
	s.recalculate()
}

// SetSize inserts, replaces or clears a size entry.
func (s *Session) SetSize(spec costing.SizeSpec) {
	s.form.SetSize(spec)
}

// RemoveSize drops a size entry.
func (s *Session) RemoveSize(size string) {
	s.form.RemoveSize(size)
}

// Hydrate replaces the form with a loaded one in a single step. The loaded
// reference counts as user-owned.
func (s *Session) Hydrate(form costing.FormData) {
	next := form.Clone()
	next.PricingMode = costing.ParsePricingMode(string(next.PricingMode))
	next.Normalize()
	s.form = next
	s.referenceEdited = strings.TrimSpace(next.Reference) != ""
	s.recalculate()
}

// CurrentStep returns the step cursor.
func (s *Session) CurrentStep() Step { return s.step }

// SetStep jumps to step, clamped to the valid range.
func (s *Session) SetStep(step Step) { s.step = clampStep(int(step)) }

// Next advances one step, stopping at the summary.
func (s *Session) Next() { s.SetStep(s.step + 1) }

// Previous goes back one step, stopping at the first.
func (s *Session) Previous() { s.SetStep(s.step - 1) }

// AtSummary reports whether the cursor is on the last step. Reaching it does
// not submit anything.
func (s *Session) AtSummary() bool { return s.step == StepSummary }

// ResetAll discards the form and returns to the first step.
func (s *Session) ResetAll() {
	s.form = costing.NewFormData(s.initialMode)
	s.step = StepBasicInfo
	s.referenceEdited = false
	s.recalculate()
}

// Suggestions lists cost descriptions for the session's pricing mode.
func (s *Session) Suggestions(c costing.Category) []string {
	return Suggestions(s.form.PricingMode, c)
}

func (s *Session) recalculate() {
	pricing.Apply(&s.form)
}
