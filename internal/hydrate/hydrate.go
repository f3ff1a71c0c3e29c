// Package hydrate converts persisted templates into wizard forms and back.
package hydrate

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/Simplici0/atelier/internal/cache"
	"github.com/Simplici0/atelier/internal/costing"
	"github.com/Simplici0/atelier/internal/store"
)

// KeyPrefix starts every template cache key.
const KeyPrefix = "template:"

// Key is the cache key of a template id.
func Key(id int64) string {
	return fmt.Sprintf("%s%d", KeyPrefix, id)
}

// DetailsFetcher reads a template with its rows.
type DetailsFetcher interface {
	GetTemplateDetails(ctx context.Context, id int64) (store.TemplateDetails, error)
}

// Target receives a hydrated form in one atomic step.
type Target interface {
	Hydrate(form costing.FormData)
}

// Status tells the caller what LoadTemplate did.
type Status int

const (
	// StatusSkipped means the template was already loaded or is loading.
	StatusSkipped Status = iota
	// StatusLoaded means the saved template was fetched and applied.
	StatusLoaded
	// StatusCopied means an unsaved record was applied without fetching.
	StatusCopied
	// StatusPartial means the fetch failed and only text fields were applied.
	StatusPartial
)

func (s Status) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusLoaded:
		return "loaded"
	case StatusCopied:
		return "copied"
	case StatusPartial:
		return "partial"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Hydrator loads templates into one wizard session. The details cache is
// shared process-wide; the last-loaded guard belongs to the session.
type Hydrator struct {
	fetcher DetailsFetcher
	cache   *cache.Cache[store.TemplateDetails]
	logger  *log.Logger

	mu       sync.Mutex
	lastID   int64
	inFlight map[int64]struct{}
}

// New builds a hydrator. A nil logger means log.Default().
func New(fetcher DetailsFetcher, c *cache.Cache[store.TemplateDetails], logger *log.Logger) *Hydrator {
	if logger == nil {
		logger = log.Default()
	}
	return &Hydrator{
		fetcher:  fetcher,
		cache:    c,
		logger:   logger,
		inFlight: make(map[int64]struct{}),
	}
}

// LoadTemplate applies record to target.
//
// A record without id is a copy source and is expanded as is. A saved
// template is fetched through the cache; loading an id that is already
// loading or was the last one loaded does nothing, so a repeated call never
// overwrites edits made since. If the fetch fails the text fields of record
// are applied instead and a later call may retry. Copies and partial loads
// clear the guard, since the form no longer holds the last loaded template.
func (h *Hydrator) LoadTemplate(ctx context.Context, target Target, record store.TemplateDetails) Status {
	id := record.Template.ID
	if id == 0 {
		h.remember(0)
		target.Hydrate(h.expand(record))
		return StatusCopied
	}

	h.mu.Lock()
	if _, busy := h.inFlight[id]; busy || h.lastID == id {
		h.mu.Unlock()
		return StatusSkipped
	}
	h.inFlight[id] = struct{}{}
	h.mu.Unlock()

	details, err := h.cache.CachedRequest(ctx, Key(id), func(ctx context.Context) (store.TemplateDetails, error) {
		return h.fetcher.GetTemplateDetails(ctx, id)
	})

	h.mu.Lock()
	delete(h.inFlight, id)
	if err == nil {
		h.lastID = id
	} else {
		h.lastID = 0
	}
	h.mu.Unlock()

	if err != nil {
		h.logger.Printf("hydrate template %d: %v; applying text fields only", id, err)
		target.Hydrate(TextFields(record.Template))
		return StatusPartial
	}

	target.Hydrate(h.expand(details))
	return StatusLoaded
}

// LastLoaded returns the id of the last template applied from storage.
func (h *Hydrator) LastLoaded() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastID
}

// Remember marks id as the template the form now holds, for example after
// the form was saved under it.
func (h *Hydrator) Remember(id int64) {
	h.remember(id)
}

// Forget clears the last-loaded guard, for example after the session was reset.
func (h *Hydrator) Forget() {
	h.remember(0)
}

func (h *Hydrator) remember(id int64) {
	h.mu.Lock()
	h.lastID = id
	h.mu.Unlock()
}

func (h *Hydrator) expand(d store.TemplateDetails) costing.FormData {
	form, dropped := Expand(d)
	for _, row := range dropped {
		h.logger.Printf("hydrate template %d: dropped cost row %q with category %q", d.Template.ID, row.Description, row.Category)
	}
	return form
}
