package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Simplici0/atelier/internal/catalog"
	"github.com/Simplici0/atelier/internal/costing"
	"github.com/Simplici0/atelier/internal/hydrate"
	"github.com/Simplici0/atelier/internal/pricing"
	"github.com/Simplici0/atelier/internal/store"
	"github.com/Simplici0/atelier/internal/wizard"
)

const maxBodyBytes = 1 << 20

type breakdownView struct {
	CreationCost float64 `json:"creationCost"`
	SuppliesCost float64 `json:"suppliesCost"`
	LaborCost    float64 `json:"laborCost"`
	FixedCost    float64 `json:"fixedCost"`
	Margin       float64 `json:"margin"`
	TotalCost    float64 `json:"totalCost"`
	FinalPrice   float64 `json:"finalPrice"`
}

type sizeFabricView struct {
	Size      string  `json:"size,omitempty"`
	ByWeight  bool    `json:"byWeight"`
	UnitCost  float64 `json:"unitCost"`
	Pieces    int     `json:"pieces"`
	TotalCost float64 `json:"totalCost"`
}

type fabricView struct {
	Fabric store.Fabric     `json:"fabric"`
	Sizes  []sizeFabricView `json:"sizes"`
	Total  float64          `json:"total"`
}

type sessionView struct {
	ID              string              `json:"id"`
	Step            string              `json:"step"`
	StepIndex       int                 `json:"stepIndex"`
	AtSummary       bool                `json:"atSummary"`
	ReferenceEdited bool                `json:"referenceEdited"`
	TemplateID      int64               `json:"templateId,omitempty"`
	Form            costing.FormData    `json:"form"`
	Pricing         breakdownView       `json:"pricing"`
	Fabric          *fabricView         `json:"fabric,omitempty"`
	Suggestions     map[string][]string `json:"suggestions"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleFabricsList(w http.ResponseWriter, r *http.Request) {
	fabrics, err := s.catalog.List(r.Context())
	if err != nil {
		s.logger.Printf("list fabrics: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load fabrics")
		return
	}
	writeJSON(w, http.StatusOK, fabrics)
}

type fabricRequest struct {
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	PricePerKg    float64 `json:"pricePerKg"`
	PricePerMeter float64 `json:"pricePerMeter"`
	GramWeight    float64 `json:"gramWeight"`
	UsableWidth   float64 `json:"usableWidth"`
	Active        *bool   `json:"active"`
}

// handleFabricSave creates a fabric on POST /fabrics and replaces one on
// PUT /fabrics/{id}. The cached catalog is dropped after every write.
func (s *server) handleFabricSave(w http.ResponseWriter, r *http.Request) {
	var id int64
	if raw := chi.URLParam(r, "id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid fabric id")
			return
		}
		id = parsed
	}

	var req fabricRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "fabric name is required")
		return
	}
	if req.PricePerKg < 0 || req.PricePerMeter < 0 || req.GramWeight < 0 || req.UsableWidth < 0 {
		writeError(w, http.StatusBadRequest, "fabric prices and measures must not be negative")
		return
	}

	fabric := store.Fabric{
		ID:            id,
		Name:          req.Name,
		Type:          strings.TrimSpace(req.Type),
		PricePerKg:    req.PricePerKg,
		PricePerMeter: req.PricePerMeter,
		GramWeight:    req.GramWeight,
		UsableWidth:   req.UsableWidth,
		Active:        req.Active == nil || *req.Active,
	}
	saved, err := s.store.UpsertFabric(r.Context(), fabric)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "fabric not found")
		return
	}
	if err != nil {
		s.logger.Printf("save fabric: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save fabric")
		return
	}
	s.catalog.Invalidate()

	fabric.ID = saved
	status := http.StatusOK
	if id == 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, fabric)
}

func (s *server) handleTemplatesList(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	templates, err := s.store.ListTemplates(r.Context(), query)
	if err != nil {
		s.logger.Printf("list templates: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load templates")
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *server) handleTemplateDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid template id")
		return
	}

	details, err := s.templates.CachedRequest(r.Context(), hydrate.Key(id), func(ctx context.Context) (store.TemplateDetails, error) {
		return s.store.GetTemplateDetails(ctx, id)
	})
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}
	if err != nil {
		s.logger.Printf("get template %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to load template")
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (s *server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PricingMode string `json:"pricingMode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	session := wizard.NewSession(costing.ParsePricingMode(req.PricingMode))
	e := s.sessions.create(session, hydrate.New(s.store, s.templates, s.logger))

	e.mu.Lock()
	defer e.mu.Unlock()
	writeJSON(w, http.StatusCreated, s.viewLocked(r.Context(), e))
}

func (s *server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	e, ok := s.entry(w, r)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	writeJSON(w, http.StatusOK, s.viewLocked(r.Context(), e))
}

func (s *server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.remove(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type patchRequest struct {
	Field string `json:"field,omitempty"`
	Value string `json:"value,omitempty"`
	wizard.Patch
}

// handleSessionPatch sets a single field from text ({"field","value"}) or
// applies a multi-field patch.
func (s *server) handleSessionPatch(w http.ResponseWriter, r *http.Request) {
	e, ok := s.entry(w, r)
	if !ok {
		return
	}

	var req patchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if req.Field != "" {
		if err := e.session.UpdateField(wizard.Field(req.Field), req.Value); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	} else {
		e.session.UpdateMultipleFields(req.Patch)
	}
	writeJSON(w, http.StatusOK, s.viewLocked(r.Context(), e))
}

func (s *server) handleSessionReset(w http.ResponseWriter, r *http.Request) {
	e, ok := s.entry(w, r)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.session.ResetAll()
	e.hydrator.Forget()
	e.templateID = 0
	writeJSON(w, http.StatusOK, s.viewLocked(r.Context(), e))
}

func (s *server) handleSessionStep(w http.ResponseWriter, r *http.Request) {
	e, ok := s.entry(w, r)
	if !ok {
		return
	}

	var req struct {
		Action string `json:"action"`
		Step   string `json:"step"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case req.Step != "":
		step, ok := wizard.ParseStep(req.Step)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown step")
			return
		}
		e.session.SetStep(step)
	case req.Action == "next":
		e.session.Next()
	case req.Action == "previous":
		e.session.Previous()
	default:
		writeError(w, http.StatusBadRequest, "action must be next or previous")
		return
	}
	writeJSON(w, http.StatusOK, s.viewLocked(r.Context(), e))
}

func (s *server) handleSizeSet(w http.ResponseWriter, r *http.Request) {
	e, ok := s.entry(w, r)
	if !ok {
		return
	}

	var req struct {
		Weight   float64 `json:"weight"`
		Quantity int     `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.session.SetSize(costing.SizeSpec{Size: chi.URLParam(r, "size"), Weight: req.Weight, Quantity: req.Quantity})
	writeJSON(w, http.StatusOK, s.viewLocked(r.Context(), e))
}

func (s *server) handleSizeRemove(w http.ResponseWriter, r *http.Request) {
	e, ok := s.entry(w, r)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.session.RemoveSize(chi.URLParam(r, "size"))
	writeJSON(w, http.StatusOK, s.viewLocked(r.Context(), e))
}

func (s *server) handleCostAdd(w http.ResponseWriter, r *http.Request) {
	e, ok := s.entry(w, r)
	if !ok {
		return
	}
	category, ok := costing.ParseCategory(chi.URLParam(r, "category"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown cost category")
		return
	}

	var req struct {
		Description     string  `json:"description"`
		UnitValue       float64 `json:"unitValue"`
		Quantity        float64 `json:"quantity"`
		WastePercentage float64 `json:"wastePercentage"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	item := costing.NewCostItem(req.Description, req.UnitValue, req.Quantity, req.WastePercentage)
	if !e.session.AddItem(category, item) {
		writeError(w, http.StatusUnprocessableEntity, "description is required")
		return
	}
	writeJSON(w, http.StatusCreated, s.viewLocked(r.Context(), e))
}

func (s *server) handleCostUpdate(w http.ResponseWriter, r *http.Request) {
	e, ok := s.entry(w, r)
	if !ok {
		return
	}
	category, ok := costing.ParseCategory(chi.URLParam(r, "category"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown cost category")
		return
	}

	var patch costing.ItemPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.session.UpdateItem(category, chi.URLParam(r, "itemID"), patch) {
		writeError(w, http.StatusNotFound, "cost item not found")
		return
	}
	writeJSON(w, http.StatusOK, s.viewLocked(r.Context(), e))
}

func (s *server) handleCostRemove(w http.ResponseWriter, r *http.Request) {
	e, ok := s.entry(w, r)
	if !ok {
		return
	}
	category, ok := costing.ParseCategory(chi.URLParam(r, "category"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown cost category")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.session.RemoveItem(category, chi.URLParam(r, "itemID"))
	writeJSON(w, http.StatusOK, s.viewLocked(r.Context(), e))
}

// handleTemplateLoad hydrates the session from a template record. A record
// with an id is fetched from storage; one without id is copied as sent.
func (s *server) handleTemplateLoad(w http.ResponseWriter, r *http.Request) {
	e, ok := s.entry(w, r)
	if !ok {
		return
	}

	var record store.TemplateDetails
	if err := decodeJSON(r, &record); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	status := e.hydrator.LoadTemplate(r.Context(), e, record)

	e.mu.Lock()
	defer e.mu.Unlock()

	switch status {
	case hydrate.StatusLoaded:
		e.templateID = record.Template.ID
	case hydrate.StatusCopied, hydrate.StatusPartial:
		e.templateID = 0
	}
	writeJSON(w, http.StatusOK, struct {
		Status  string      `json:"status"`
		Session sessionView `json:"session"`
	}{status.String(), s.viewLocked(r.Context(), e)})
}

// handleTemplateSave persists the session form. A session loaded from or
// saved to a template updates it unless ?new=1 is given.
func (s *server) handleTemplateSave(w http.ResponseWriter, r *http.Request) {
	e, ok := s.entry(w, r)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	details := hydrate.ExportTemplate(e.session.Form())
	if r.URL.Query().Get("new") != "1" {
		details.Template.ID = e.templateID
	}

	id, err := s.store.SaveTemplate(r.Context(), details)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}
	if err != nil {
		s.logger.Printf("save template: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save template")
		return
	}

	s.templates.Invalidate(hydrate.Key(id))
	e.templateID = id
	e.hydrator.Remember(id)
	writeJSON(w, http.StatusOK, struct {
		TemplateID int64       `json:"templateId"`
		Session    sessionView `json:"session"`
	}{id, s.viewLocked(r.Context(), e)})
}

func (s *server) handleSummaryText(w http.ResponseWriter, r *http.Request) {
	e, ok := s.entry(w, r)
	if !ok {
		return
	}
	e.mu.Lock()
	form := e.session.Form()
	result := e.session.Pricing()
	e.mu.Unlock()

	fabric, _ := s.fabricFor(r.Context(), form)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, summaryText(form, result, fabric))
}

func (s *server) entry(w http.ResponseWriter, r *http.Request) (*sessionEntry, bool) {
	e, ok := s.sessions.get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return e, true
}

// viewLocked renders e; the caller holds e.mu.
func (s *server) viewLocked(ctx context.Context, e *sessionEntry) sessionView {
	form := e.session.Form()
	result := e.session.Pricing()

	view := sessionView{
		ID:              e.id,
		Step:            e.session.CurrentStep().String(),
		StepIndex:       int(e.session.CurrentStep()),
		AtSummary:       e.session.AtSummary(),
		ReferenceEdited: e.session.ReferenceEdited(),
		TemplateID:      e.templateID,
		Form:            form,
		Pricing: breakdownView{
			CreationCost: result.Breakdown.CreationCost,
			SuppliesCost: result.Breakdown.SuppliesCost,
			LaborCost:    result.Breakdown.LaborCost,
			FixedCost:    result.Breakdown.FixedCost,
			Margin:       result.Breakdown.Margin,
			TotalCost:    result.Totals.TotalCost,
			FinalPrice:   result.Totals.FinalPrice,
		},
		Suggestions: make(map[string][]string, len(costing.Categories)),
	}
	for _, c := range costing.Categories {
		view.Suggestions[c.String()] = e.session.Suggestions(c)
	}
	if fabric, ok := s.fabricFor(ctx, form); ok {
		view.Fabric = fabric
	}
	return view
}

// fabricFor costs the fabric of form against the catalog. It reports false
// when no fabric is selected or the catalog cannot resolve it.
func (s *server) fabricFor(ctx context.Context, form costing.FormData) (*fabricView, bool) {
	if form.FabricID == nil {
		return nil, false
	}
	f, err := s.catalog.Get(ctx, *form.FabricID)
	if err != nil {
		s.logger.Printf("fabric %d for pricing: %v", *form.FabricID, err)
		return nil, false
	}

	breakdown := pricing.FabricBreakdown(form, catalog.PricingInput(f))
	view := &fabricView{Fabric: f, Sizes: make([]sizeFabricView, 0, len(breakdown.Sizes)), Total: breakdown.Total}
	for _, row := range breakdown.Sizes {
		view.Sizes = append(view.Sizes, sizeFabricView(row))
	}
	return view, true
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
