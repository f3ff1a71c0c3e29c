// Package store persists the fabric catalog and pricing templates in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a fabric or template id does not exist.
var ErrNotFound = errors.New("not found")

// Fabric is one catalog entry.
type Fabric struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	PricePerKg    float64 `json:"pricePerKg"`
	PricePerMeter float64 `json:"pricePerMeter"`
	GramWeight    float64 `json:"gramWeight"`
	UsableWidth   float64 `json:"usableWidth"`
	Active        bool    `json:"active"`
}

// Template holds the flat fields of a persisted template. Numeric fields are
// kept as the text they were saved with.
type Template struct {
	ID                int64  `json:"id,omitempty"`
	PricingMode       string `json:"pricingMode"`
	GarmentType       string `json:"garmentType"`
	ModelName         string `json:"modelName"`
	Reference         string `json:"reference"`
	Description       string `json:"description"`
	ImageURL          string `json:"imageUrl"`
	FabricID          *int64 `json:"fabricId"`
	FabricConsumption string `json:"fabricConsumption"`
	WastePercentage   string `json:"wastePercentage"`
	ProfitMargin      string `json:"profitMargin"`
	TotalCost         string `json:"totalCost"`
	FinalPrice        string `json:"finalPrice"`
	UpdatedAt         string `json:"updatedAt,omitempty"`
}

// SizeRow is one persisted size of a template.
type SizeRow struct {
	Size     string `json:"size"`
	Weight   string `json:"weight"`
	Quantity string `json:"quantity"`
}

// CostRow is one persisted cost item, tagged with its category.
type CostRow struct {
	Category        string `json:"category"`
	Description     string `json:"description"`
	UnitValue       string `json:"unitValue"`
	Quantity        string `json:"quantity"`
	WastePercentage string `json:"wastePercentage"`
	Total           string `json:"total"`
}

// TemplateDetails is a template with its size and cost rows.
type TemplateDetails struct {
	Template Template  `json:"template"`
	Sizes    []SizeRow `json:"sizes"`
	Costs    []CostRow `json:"costs"`
}

// TemplateSummary is a row of the template picker.
type TemplateSummary struct {
	ID          int64  `json:"id"`
	GarmentType string `json:"garmentType"`
	ModelName   string `json:"modelName"`
	Reference   string `json:"reference"`
	FinalPrice  string `json:"finalPrice"`
	UpdatedAt   string `json:"updatedAt"`
}

// Store is the SQLite-backed repository.
type Store struct {
	db *sql.DB
}

// New wraps an open database whose schema is already migrated.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// ListFabrics returns active fabrics ordered by name.
func (s *Store) ListFabrics(ctx context.Context) ([]Fabric, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, price_per_kg, price_per_meter, gram_weight, usable_width, active
		FROM fabrics
		WHERE active = TRUE
		ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query fabrics: %w", err)
	}
	defer rows.Close()

	fabrics := make([]Fabric, 0)
	for rows.Next() {
		var f Fabric
		if err := rows.Scan(&f.ID, &f.Name, &f.Type, &f.PricePerKg, &f.PricePerMeter, &f.GramWeight, &f.UsableWidth, &f.Active); err != nil {
			return nil, fmt.Errorf("scan fabric: %w", err)
		}
		fabrics = append(fabrics, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fabrics: %w", err)
	}

	return fabrics, nil
}

// GetFabric returns one fabric, active or not.
func (s *Store) GetFabric(ctx context.Context, id int64) (Fabric, error) {
	var f Fabric
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, type, price_per_kg, price_per_meter, gram_weight, usable_width, active
		FROM fabrics
		WHERE id = ?
	`, id).Scan(&f.ID, &f.Name, &f.Type, &f.PricePerKg, &f.PricePerMeter, &f.GramWeight, &f.UsableWidth, &f.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return Fabric{}, fmt.Errorf("fabric %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Fabric{}, fmt.Errorf("query fabric: %w", err)
	}
	return f, nil
}

// UpsertFabric inserts f, or updates it when f.ID is set, and returns its id.
func (s *Store) UpsertFabric(ctx context.Context, f Fabric) (int64, error) {
	if f.ID == 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO fabrics (name, type, price_per_kg, price_per_meter, gram_weight, usable_width, active)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, f.Name, f.Type, f.PricePerKg, f.PricePerMeter, f.GramWeight, f.UsableWidth, f.Active)
		if err != nil {
			return 0, fmt.Errorf("insert fabric: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("read fabric id: %w", err)
		}
		return id, nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE fabrics
		SET
			name = ?,
			type = ?,
			price_per_kg = ?,
			price_per_meter = ?,
			gram_weight = ?,
			usable_width = ?,
			active = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, f.Name, f.Type, f.PricePerKg, f.PricePerMeter, f.GramWeight, f.UsableWidth, f.Active, f.ID)
	if err != nil {
		return 0, fmt.Errorf("update fabric: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update fabric: %w", err)
	}
	if affected == 0 {
		return 0, fmt.Errorf("fabric %d: %w", f.ID, ErrNotFound)
	}
	return f.ID, nil
}
