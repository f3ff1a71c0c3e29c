package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// GetTemplateDetails loads a template with its sizes and costs in saved order.
func (s *Store) GetTemplateDetails(ctx context.Context, id int64) (TemplateDetails, error) {
	var d TemplateDetails
	var fabricID sql.NullInt64
	t := &d.Template

	err := s.db.QueryRowContext(ctx, `
		SELECT
			id, pricing_mode, garment_type, model_name, reference, description, image_url,
			fabric_id, fabric_consumption, waste_percentage, profit_margin, total_cost, final_price,
			updated_at
		FROM templates
		WHERE id = ?
	`, id).Scan(
		&t.ID, &t.PricingMode, &t.GarmentType, &t.ModelName, &t.Reference, &t.Description, &t.ImageURL,
		&fabricID, &t.FabricConsumption, &t.WastePercentage, &t.ProfitMargin, &t.TotalCost, &t.FinalPrice,
		&t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return TemplateDetails{}, fmt.Errorf("template %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return TemplateDetails{}, fmt.Errorf("query template: %w", err)
	}
	if fabricID.Valid {
		t.FabricID = &fabricID.Int64
	}

	if d.Sizes, err = s.templateSizes(ctx, id); err != nil {
		return TemplateDetails{}, err
	}
	if d.Costs, err = s.templateCosts(ctx, id); err != nil {
		return TemplateDetails{}, err
	}

	return d, nil
}

func (s *Store) templateSizes(ctx context.Context, templateID int64) ([]SizeRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT size, weight, quantity
		FROM template_sizes
		WHERE template_id = ?
		ORDER BY position, id
	`, templateID)
	if err != nil {
		return nil, fmt.Errorf("query template sizes: %w", err)
	}
	defer rows.Close()

	sizes := make([]SizeRow, 0)
	for rows.Next() {
		var r SizeRow
		if err := rows.Scan(&r.Size, &r.Weight, &r.Quantity); err != nil {
			return nil, fmt.Errorf("scan template size: %w", err)
		}
		sizes = append(sizes, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate template sizes: %w", err)
	}

	return sizes, nil
}

func (s *Store) templateCosts(ctx context.Context, templateID int64) ([]CostRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, description, unit_value, quantity, waste_percentage, total
		FROM template_costs
		WHERE template_id = ?
		ORDER BY position, id
	`, templateID)
	if err != nil {
		return nil, fmt.Errorf("query template costs: %w", err)
	}
	defer rows.Close()

	costs := make([]CostRow, 0)
	for rows.Next() {
		var r CostRow
		if err := rows.Scan(&r.Category, &r.Description, &r.UnitValue, &r.Quantity, &r.WastePercentage, &r.Total); err != nil {
			return nil, fmt.Errorf("scan template cost: %w", err)
		}
		costs = append(costs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate template costs: %w", err)
	}

	return costs, nil
}

// SaveTemplate writes d and returns the template id. A zero d.Template.ID
// creates a new template; otherwise the existing one and all of its rows are
// replaced.
func (s *Store) SaveTemplate(ctx context.Context, d TemplateDetails) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin template transaction: %w", err)
	}

	id, err := saveTemplate(ctx, tx, d)
	if err != nil {
		return 0, multierr.Append(err, tx.Rollback())
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit template transaction: %w", err)
	}
	return id, nil
}

func saveTemplate(ctx context.Context, tx *sql.Tx, d TemplateDetails) (int64, error) {
	t := d.Template
	id := t.ID

	if id == 0 {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO templates (
				pricing_mode, garment_type, model_name, reference, description, image_url,
				fabric_id, fabric_consumption, waste_percentage, profit_margin, total_cost, final_price
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, t.PricingMode, t.GarmentType, t.ModelName, t.Reference, t.Description, t.ImageURL,
			nullableID(t.FabricID), t.FabricConsumption, t.WastePercentage, t.ProfitMargin, t.TotalCost, t.FinalPrice)
		if err != nil {
			return 0, fmt.Errorf("insert template: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return 0, fmt.Errorf("read template id: %w", err)
		}
	} else {
		res, err := tx.ExecContext(ctx, `
			UPDATE templates
			SET
				pricing_mode = ?,
				garment_type = ?,
				model_name = ?,
				reference = ?,
				description = ?,
				image_url = ?,
				fabric_id = ?,
				fabric_consumption = ?,
				waste_percentage = ?,
				profit_margin = ?,
				total_cost = ?,
				final_price = ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, t.PricingMode, t.GarmentType, t.ModelName, t.Reference, t.Description, t.ImageURL,
			nullableID(t.FabricID), t.FabricConsumption, t.WastePercentage, t.ProfitMargin, t.TotalCost, t.FinalPrice, id)
		if err != nil {
			return 0, fmt.Errorf("update template: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("update template: %w", err)
		}
		if affected == 0 {
			return 0, fmt.Errorf("template %d: %w", id, ErrNotFound)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM template_sizes WHERE template_id = ?`, id); err != nil {
			return 0, fmt.Errorf("clear template sizes: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM template_costs WHERE template_id = ?`, id); err != nil {
			return 0, fmt.Errorf("clear template costs: %w", err)
		}
	}

	for i, r := range d.Sizes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO template_sizes (template_id, position, size, weight, quantity)
			VALUES (?, ?, ?, ?, ?)
		`, id, i, r.Size, r.Weight, r.Quantity); err != nil {
			return 0, fmt.Errorf("insert template size: %w", err)
		}
	}

	for i, r := range d.Costs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO template_costs (template_id, position, category, description, unit_value, quantity, waste_percentage, total)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, id, i, r.Category, r.Description, r.UnitValue, r.Quantity, r.WastePercentage, r.Total); err != nil {
			return 0, fmt.Errorf("insert template cost: %w", err)
		}
	}

	return id, nil
}

// ListTemplates returns templates newest first, optionally filtered by a
// search over garment type, model name and reference.
func (s *Store) ListTemplates(ctx context.Context, query string) ([]TemplateSummary, error) {
	search := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, garment_type, model_name, reference, final_price, updated_at
		FROM templates
		WHERE (? = '' OR garment_type LIKE ? OR model_name LIKE ? OR reference LIKE ?)
		ORDER BY datetime(updated_at) DESC, id DESC
	`, query, search, search, search)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	templates := make([]TemplateSummary, 0)
	for rows.Next() {
		var t TemplateSummary
		if err := rows.Scan(&t.ID, &t.GarmentType, &t.ModelName, &t.Reference, &t.FinalPrice, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}

	return templates, nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
