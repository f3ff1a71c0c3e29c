package seed

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/multierr"
)

// Fabric is a catalog entry created by the seed when missing.
type Fabric struct {
	Name          string
	Type          string
	PricePerKg    float64
	PricePerMeter float64
	GramWeight    float64
	UsableWidth   float64
}

// DefaultFabrics is the catalog a fresh development database starts with.
var DefaultFabrics = []Fabric{
	{Name: "Malha PV", Type: "malha", PricePerKg: 42, GramWeight: 180, UsableWidth: 1.8},
	{Name: "Moletom Flanelado", Type: "malha", PricePerKg: 58, GramWeight: 320, UsableWidth: 1.7},
	{Name: "Viscolycra", Type: "malha", PricePerKg: 52, GramWeight: 220, UsableWidth: 1.6},
	{Name: "Sarja Stretch", Type: "plano", PricePerMeter: 28.9, GramWeight: 260, UsableWidth: 1.5},
	{Name: "Tricoline", Type: "plano", PricePerMeter: 19.9, GramWeight: 110, UsableWidth: 1.45},
	{Name: "Linho Misto", Type: "plano", PricePerMeter: 44.5, GramWeight: 170, UsableWidth: 1.4},
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Skipped int
}

// Run inserts every fabric missing by name. It is idempotent and runs in a
// single transaction.
func Run(ctx context.Context, db *sql.DB, fabrics []Fabric) (stats Stats, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, tx.Rollback())
			stats = Stats{}
		}
	}()

	for _, f := range fabrics {
		inserted, err := ensureFabric(ctx, tx, f)
		if err != nil {
			return Stats{}, err
		}
		if inserted {
			stats.Inserts++
		} else {
			stats.Skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}
	return stats, nil
}

func ensureFabric(ctx context.Context, tx *sql.Tx, f Fabric) (bool, error) {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM fabrics WHERE name = ? LIMIT 1)`, f.Name).Scan(&exists); err != nil {
		return false, fmt.Errorf("check fabric %q existence: %w", f.Name, err)
	}
	if exists {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO fabrics (name, type, price_per_kg, price_per_meter, gram_weight, usable_width, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, f.Name, f.Type, f.PricePerKg, f.PricePerMeter, f.GramWeight, f.UsableWidth, true); err != nil {
		return false, fmt.Errorf("insert fabric %q: %w", f.Name, err)
	}
	return true, nil
}
