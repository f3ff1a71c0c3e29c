package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Simplici0/atelier/internal/cache"
	"github.com/Simplici0/atelier/internal/catalog"
	"github.com/Simplici0/atelier/internal/db"
	"github.com/Simplici0/atelier/internal/migrations"
	"github.com/Simplici0/atelier/internal/seed"
	"github.com/Simplici0/atelier/internal/store"
)

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func newTestServer(t *testing.T) *server {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "server-test.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	ctx := context.Background()
	if err := migrations.Up(ctx, database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	if _, err := seed.Run(ctx, database, seed.DefaultFabrics); err != nil {
		t.Fatalf("seed fabrics: %v", err)
	}

	st := store.New(database)
	srv := newServer(st, catalog.New(st, time.Minute), cache.New[store.TemplateDetails](time.Minute))
	srv.logger = log.New(io.Discard, "", 0)
	return srv
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeView(t *testing.T, rr *httptest.ResponseRecorder) sessionView {
	t.Helper()

	var view sessionView
	if err := json.NewDecoder(rr.Body).Decode(&view); err != nil {
		t.Fatalf("decode session view: %v (body=%s)", err, rr.Body.String())
	}
	return view
}

func createSession(t *testing.T, h http.Handler, mode string) sessionView {
	t.Helper()

	rr := doJSON(t, h, http.MethodPost, "/sessions", map[string]string{"pricingMode": mode})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create session: status %d, body %s", rr.Code, rr.Body.String())
	}
	return decodeView(t, rr)
}

func TestSessionFlowRecomputesTotals(t *testing.T) {
	srv := newTestServer(t)
	h := srv.routes()

	view := createSession(t, h, "single")
	if view.Step != "basic-info" || view.Form.ProfitMargin != 40 || view.Form.TotalCost != 0 {
		t.Fatalf("unexpected initial session: %+v", view)
	}
	if len(view.Suggestions["labor"]) == 0 {
		t.Fatalf("expected labor suggestions, got %+v", view.Suggestions)
	}
	base := "/sessions/" + view.ID

	rr := doJSON(t, h, http.MethodPatch, base, map[string]string{"garmentType": "Calça Jeans", "modelName": "Reta"})
	if rr.Code != http.StatusOK {
		t.Fatalf("patch: status %d, body %s", rr.Code, rr.Body.String())
	}
	view = decodeView(t, rr)
	if !strings.HasPrefix(view.Form.Reference, "CL-") || view.ReferenceEdited {
		t.Fatalf("expected generated CL- reference, got %q (edited=%v)", view.Form.Reference, view.ReferenceEdited)
	}

	rr = doJSON(t, h, http.MethodPost, base+"/costs/creation", map[string]any{"description": "Modelagem", "unitValue": 40, "quantity": 1})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add cost: status %d, body %s", rr.Code, rr.Body.String())
	}
	view = decodeView(t, rr)
	if !nearlyEqual(view.Form.TotalCost, 40) || !nearlyEqual(view.Form.FinalPrice, 56) {
		t.Fatalf("totals = %v / %v, want 40 / 56", view.Form.TotalCost, view.Form.FinalPrice)
	}
	if !nearlyEqual(view.Pricing.Margin, 16) {
		t.Fatalf("margin = %v, want 16", view.Pricing.Margin)
	}
	itemID := view.Form.CreationCosts[0].ID

	rr = doJSON(t, h, http.MethodPatch, base+"/costs/creation/"+itemID, map[string]any{"quantity": 2})
	if rr.Code != http.StatusOK {
		t.Fatalf("update cost: status %d, body %s", rr.Code, rr.Body.String())
	}
	if view = decodeView(t, rr); !nearlyEqual(view.Form.TotalCost, 80) {
		t.Fatalf("total after update = %v, want 80", view.Form.TotalCost)
	}

	rr = doJSON(t, h, http.MethodPatch, base, map[string]string{"field": "profitMargin", "value": "50,5"})
	if rr.Code != http.StatusOK {
		t.Fatalf("field update: status %d, body %s", rr.Code, rr.Body.String())
	}
	if view = decodeView(t, rr); !nearlyEqual(view.Form.FinalPrice, 120.4) {
		t.Fatalf("final price = %v, want 120.4", view.Form.FinalPrice)
	}

	rr = doJSON(t, h, http.MethodDelete, base+"/costs/creation/"+itemID, nil)
	if view = decodeView(t, rr); view.Form.TotalCost != 0 || view.Form.FinalPrice != 0 {
		t.Fatalf("totals after removal = %v / %v, want 0 / 0", view.Form.TotalCost, view.Form.FinalPrice)
	}
}

func TestSessionRejectsInvalidInput(t *testing.T) {
	srv := newTestServer(t)
	h := srv.routes()
	base := "/sessions/" + createSession(t, h, "").ID

	if rr := doJSON(t, h, http.MethodPost, base+"/costs/creation", map[string]any{"description": "  ", "unitValue": 10}); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("blank description: status %d, want 422", rr.Code)
	}
	if rr := doJSON(t, h, http.MethodPost, base+"/costs/marketing", map[string]any{"description": "Anúncio"}); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown category: status %d, want 404", rr.Code)
	}
	if rr := doJSON(t, h, http.MethodPatch, base+"/costs/labor/missing", map[string]any{"quantity": 2}); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown item: status %d, want 404", rr.Code)
	}
	if rr := doJSON(t, h, http.MethodPatch, base, map[string]string{"field": "color", "value": "azul"}); rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: status %d, want 400", rr.Code)
	}
	if rr := doJSON(t, h, http.MethodPost, base+"/step", map[string]string{"action": "jump"}); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad step action: status %d, want 400", rr.Code)
	}
	if rr := doJSON(t, h, http.MethodGet, "/sessions/nope", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("missing session: status %d, want 404", rr.Code)
	}

	rr := doJSON(t, h, http.MethodGet, base, nil)
	if view := decodeView(t, rr); len(view.Form.CreationCosts) != 0 || view.Form.TotalCost != 0 {
		t.Fatalf("rejected input changed the form: %+v", view.Form)
	}
}

func TestStepNavigationClampsAndResets(t *testing.T) {
	srv := newTestServer(t)
	h := srv.routes()
	base := "/sessions/" + createSession(t, h, "multiple").ID

	view := decodeView(t, doJSON(t, h, http.MethodPost, base+"/step", map[string]string{"action": "previous"}))
	if view.Step != "basic-info" {
		t.Fatalf("previous from first step = %q", view.Step)
	}

	view = decodeView(t, doJSON(t, h, http.MethodPost, base+"/step", map[string]string{"step": "summary"}))
	if !view.AtSummary {
		t.Fatalf("expected summary step, got %q", view.Step)
	}
	view = decodeView(t, doJSON(t, h, http.MethodPost, base+"/step", map[string]string{"action": "next"}))
	if view.Step != "summary" || view.StepIndex != 7 {
		t.Fatalf("next from summary = %q (%d)", view.Step, view.StepIndex)
	}

	doJSON(t, h, http.MethodPut, base+"/sizes/M", map[string]any{"weight": 300, "quantity": 10})
	view = decodeView(t, doJSON(t, h, http.MethodPost, base+"/reset", nil))
	if view.Step != "basic-info" || len(view.Form.Sizes) != 0 || view.Form.PricingMode != "multiple" {
		t.Fatalf("reset did not restore the initial state: %+v", view)
	}
}

func TestFabricBreakdownUsesCatalog(t *testing.T) {
	srv := newTestServer(t)
	h := srv.routes()

	var fabrics []store.Fabric
	rr := doJSON(t, h, http.MethodGet, "/fabrics", nil)
	if err := json.NewDecoder(rr.Body).Decode(&fabrics); err != nil {
		t.Fatalf("decode fabrics: %v", err)
	}
	var malha store.Fabric
	for _, f := range fabrics {
		if f.Name == "Malha PV" {
			malha = f
		}
	}
	if malha.ID == 0 {
		t.Fatalf("seeded fabric missing from %+v", fabrics)
	}

	base := "/sessions/" + createSession(t, h, "multiple").ID
	doJSON(t, h, http.MethodPatch, base, map[string]any{"fabricId": malha.ID})
	doJSON(t, h, http.MethodPut, base+"/sizes/M", map[string]any{"weight": 500, "quantity": 3})
	view := decodeView(t, doJSON(t, h, http.MethodGet, base, nil))

	if view.Fabric == nil || len(view.Fabric.Sizes) != 1 {
		t.Fatalf("expected fabric breakdown, got %+v", view.Fabric)
	}
	row := view.Fabric.Sizes[0]
	if !row.ByWeight || row.Pieces != 3 || !nearlyEqual(row.UnitCost, 23.1) || !nearlyEqual(view.Fabric.Total, 69.3) {
		t.Fatalf("unexpected fabric row: %+v total %v", row, view.Fabric.Total)
	}
}

func TestFabricWritesRefreshCatalog(t *testing.T) {
	srv := newTestServer(t)
	h := srv.routes()

	listFabrics := func() map[string]store.Fabric {
		t.Helper()
		var fabrics []store.Fabric
		if err := json.NewDecoder(doJSON(t, h, http.MethodGet, "/fabrics", nil).Body).Decode(&fabrics); err != nil {
			t.Fatalf("decode fabrics: %v", err)
		}
		byName := make(map[string]store.Fabric, len(fabrics))
		for _, f := range fabrics {
			byName[f.Name] = f
		}
		return byName
	}

	malha, ok := listFabrics()["Malha PV"]
	if !ok {
		t.Fatal("seeded fabric missing")
	}

	path := "/fabrics/" + strconv.FormatInt(malha.ID, 10)
	rr := doJSON(t, h, http.MethodPut, path, map[string]any{"name": "Malha PV", "type": malha.Type, "pricePerKg": 50})
	if rr.Code != http.StatusOK {
		t.Fatalf("update fabric: status %d, body %s", rr.Code, rr.Body.String())
	}
	if got := listFabrics()["Malha PV"]; !nearlyEqual(got.PricePerKg, 50) {
		t.Fatalf("catalog served stale price: %+v", got)
	}

	rr = doJSON(t, h, http.MethodPost, "/fabrics", map[string]any{"name": "Linho", "type": "plano", "pricePerMeter": 38.9})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create fabric: status %d, body %s", rr.Code, rr.Body.String())
	}
	var created store.Fabric
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil || created.ID == 0 || !created.Active {
		t.Fatalf("decode created fabric: %+v (%v)", created, err)
	}
	if got, ok := listFabrics()["Linho"]; !ok || got.ID != created.ID {
		t.Fatalf("new fabric missing from catalog: %+v", got)
	}

	rr = doJSON(t, h, http.MethodPut, path, map[string]any{"name": "Malha PV", "pricePerKg": 50, "active": false})
	if rr.Code != http.StatusOK {
		t.Fatalf("deactivate fabric: status %d", rr.Code)
	}
	if _, ok := listFabrics()["Malha PV"]; ok {
		t.Fatal("inactive fabric still listed")
	}

	for _, tc := range []struct {
		method, path string
		body         map[string]any
		want         int
	}{
		{http.MethodPost, "/fabrics", map[string]any{"name": "  "}, http.StatusBadRequest},
		{http.MethodPost, "/fabrics", map[string]any{"name": "Tricoline", "pricePerKg": -1}, http.StatusBadRequest},
		{http.MethodPut, "/fabrics/abc", map[string]any{"name": "Tricoline"}, http.StatusBadRequest},
		{http.MethodPut, "/fabrics/9999", map[string]any{"name": "Tricoline"}, http.StatusNotFound},
	} {
		if rr := doJSON(t, h, tc.method, tc.path, tc.body); rr.Code != tc.want {
			t.Fatalf("%s %s: status %d, want %d", tc.method, tc.path, rr.Code, tc.want)
		}
	}
}

func TestSaveMovesLoadGuardToSavedTemplate(t *testing.T) {
	srv := newTestServer(t)
	h := srv.routes()

	base := "/sessions/" + createSession(t, h, "single").ID
	doJSON(t, h, http.MethodPatch, base, map[string]string{"garmentType": "Blusa", "modelName": "Bata"})

	for _, path := range []string{base + "/save", base + "/save?new=1"} {
		var saved struct {
			TemplateID int64 `json:"templateId"`
		}
		rr := doJSON(t, h, http.MethodPost, path, nil)
		if err := json.NewDecoder(rr.Body).Decode(&saved); err != nil || saved.TemplateID == 0 {
			t.Fatalf("%s: decode save: %+v (%v)", path, saved, err)
		}

		doJSON(t, h, http.MethodPatch, base, map[string]string{"modelName": "Editado"})

		var loaded struct {
			Status  string      `json:"status"`
			Session sessionView `json:"session"`
		}
		record := store.TemplateDetails{Template: store.Template{ID: saved.TemplateID}}
		if err := json.NewDecoder(doJSON(t, h, http.MethodPost, base+"/load", record).Body).Decode(&loaded); err != nil {
			t.Fatalf("%s: decode load: %v", path, err)
		}
		if loaded.Status != "skipped" || loaded.Session.Form.ModelName != "Editado" {
			t.Fatalf("%s: load after save overwrote edits: %s %+v", path, loaded.Status, loaded.Session.Form)
		}
		doJSON(t, h, http.MethodPatch, base, map[string]string{"modelName": "Bata"})
	}
}

func TestSaveThenLoadTemplate(t *testing.T) {
	srv := newTestServer(t)
	h := srv.routes()

	source := "/sessions/" + createSession(t, h, "multiple").ID
	doJSON(t, h, http.MethodPatch, source, map[string]any{"garmentType": "Vestido", "reference": "V-0042", "profitMargin": 30})
	doJSON(t, h, http.MethodPut, source+"/sizes/P", map[string]any{"weight": 210, "quantity": 5})
	doJSON(t, h, http.MethodPost, source+"/costs/labor", map[string]any{"description": "Costura", "unitValue": 12.5, "quantity": 2})

	rr := doJSON(t, h, http.MethodPost, source+"/save", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("save: status %d, body %s", rr.Code, rr.Body.String())
	}
	var saved struct {
		TemplateID int64 `json:"templateId"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&saved); err != nil || saved.TemplateID == 0 {
		t.Fatalf("decode save response: %v (%+v)", err, saved)
	}

	var list []store.TemplateSummary
	if err := json.NewDecoder(doJSON(t, h, http.MethodGet, "/templates?q=V-00", nil).Body).Decode(&list); err != nil {
		t.Fatalf("decode templates: %v", err)
	}
	if len(list) != 1 || list[0].ID != saved.TemplateID || list[0].FinalPrice != "32.5" {
		t.Fatalf("unexpected template list: %+v", list)
	}

	target := "/sessions/" + createSession(t, h, "single").ID
	record := store.TemplateDetails{Template: store.Template{ID: saved.TemplateID, GarmentType: "Vestido"}}

	var loaded struct {
		Status  string      `json:"status"`
		Session sessionView `json:"session"`
	}
	rr = doJSON(t, h, http.MethodPost, target+"/load", record)
	if err := json.NewDecoder(rr.Body).Decode(&loaded); err != nil {
		t.Fatalf("decode load response: %v", err)
	}
	form := loaded.Session.Form
	if loaded.Status != "loaded" || form.PricingMode != "multiple" || form.Reference != "V-0042" || len(form.Labor) != 1 {
		t.Fatalf("unexpected load result: %s %+v", loaded.Status, form)
	}
	if !nearlyEqual(form.TotalCost, 25) || !nearlyEqual(form.FinalPrice, 32.5) || loaded.Session.TemplateID != saved.TemplateID {
		t.Fatalf("unexpected loaded totals: %+v", loaded.Session)
	}

	doJSON(t, h, http.MethodPatch, target, map[string]string{"modelName": "Editado"})
	rr = doJSON(t, h, http.MethodPost, target+"/load", record)
	if err := json.NewDecoder(rr.Body).Decode(&loaded); err != nil {
		t.Fatalf("decode second load: %v", err)
	}
	if loaded.Status != "skipped" || loaded.Session.Form.ModelName != "Editado" {
		t.Fatalf("second load overwrote edits: %s %+v", loaded.Status, loaded.Session.Form)
	}

	if rr := doJSON(t, h, http.MethodPost, target+"/load", store.TemplateDetails{Template: store.Template{ID: 999, GarmentType: "Saia"}}); rr.Code != http.StatusOK {
		t.Fatalf("load missing template: status %d", rr.Code)
	} else if err := json.NewDecoder(rr.Body).Decode(&loaded); err != nil || loaded.Status != "partial" || loaded.Session.Form.GarmentType != "Saia" {
		t.Fatalf("expected partial load, got %s %+v (%v)", loaded.Status, loaded.Session.Form, err)
	}
}

func TestSaveInvalidatesCachedTemplate(t *testing.T) {
	srv := newTestServer(t)
	h := srv.routes()

	base := "/sessions/" + createSession(t, h, "single").ID
	doJSON(t, h, http.MethodPatch, base, map[string]string{"garmentType": "Saia", "modelName": "Godê"})

	var saved struct {
		TemplateID int64 `json:"templateId"`
	}
	if err := json.NewDecoder(doJSON(t, h, http.MethodPost, base+"/save", nil).Body).Decode(&saved); err != nil {
		t.Fatalf("decode save: %v", err)
	}
	path := "/templates/" + strconv.FormatInt(saved.TemplateID, 10)

	var details store.TemplateDetails
	if err := json.NewDecoder(doJSON(t, h, http.MethodGet, path, nil).Body).Decode(&details); err != nil || details.Template.ModelName != "Godê" {
		t.Fatalf("first read: %+v (%v)", details.Template, err)
	}

	doJSON(t, h, http.MethodPatch, base, map[string]string{"modelName": "Lápis"})
	doJSON(t, h, http.MethodPost, base+"/save", nil)

	if err := json.NewDecoder(doJSON(t, h, http.MethodGet, path, nil).Body).Decode(&details); err != nil || details.Template.ModelName != "Lápis" {
		t.Fatalf("read after save served stale data: %+v (%v)", details.Template, err)
	}

	if rr := doJSON(t, h, http.MethodGet, "/templates/abc", nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status %d, want 400", rr.Code)
	}
	if rr := doJSON(t, h, http.MethodGet, "/templates/404", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("missing template: status %d, want 404", rr.Code)
	}
}

func TestHandleSummaryTextReturnsPlainText(t *testing.T) {
	srv := newTestServer(t)
	h := srv.routes()

	view := createSession(t, h, "single")
	base := "/sessions/" + view.ID
	doJSON(t, h, http.MethodPatch, base, map[string]string{"garmentType": "Camisa", "modelName": "Social", "reference": "C-0001"})
	doJSON(t, h, http.MethodPost, base+"/costs/fixed", map[string]any{"description": "Aluguel", "unitValue": 1000, "quantity": 1.5})

	req := httptest.NewRequest(http.MethodGet, base+"/summary", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", view.ID)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rr := httptest.NewRecorder()
	srv.handleSummaryText(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("Content-Type"), "text/plain") {
		t.Fatalf("expected text/plain content type, got %q", rr.Header().Get("Content-Type"))
	}

	body := rr.Body.String()
	for _, expected := range []string{
		"Ficha de custo: Camisa Social",
		"Referência: C-0001",
		"Custos fixos: R$ 1.500,00",
		"Custo total: R$ 1.500,00",
		"Margem (40%): R$ 600,00",
		"Preço final: R$ 2.100,00",
	} {
		if !strings.Contains(body, expected) {
			t.Fatalf("expected body to contain %q, got: %s", expected, body)
		}
	}
}
