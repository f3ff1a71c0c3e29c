package seed

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/Simplici0/atelier/internal/db"
	"github.com/Simplici0/atelier/internal/migrations"
)

func openMigrated(t *testing.T) *sql.DB {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "seed-test.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	if err := migrations.Up(context.Background(), database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return database
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	database := openMigrated(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		stats, err := Run(ctx, database, DefaultFabrics)
		if err != nil {
			t.Fatalf("run seed (iteration=%d): %v", i, err)
		}
		if i == 0 {
			if stats.Inserts != len(DefaultFabrics) {
				t.Fatalf("expected %d inserts in first run, got %d", len(DefaultFabrics), stats.Inserts)
			}
			continue
		}
		if stats.Inserts != 0 || stats.Skipped != len(DefaultFabrics) {
			t.Fatalf("unexpected stats in iteration %d: %+v", i, stats)
		}
	}

	assertCount(t, database, `SELECT COUNT(*) FROM fabrics`, nil, len(DefaultFabrics))
	assertCount(t, database, `SELECT COUNT(*) FROM fabrics WHERE name = ? AND active = 1`, "Malha PV", 1)
}

func TestRunRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	database := openMigrated(t)
	if _, err := database.Exec(`
		CREATE TRIGGER reject_fabric BEFORE INSERT ON fabrics
		WHEN NEW.name = 'Recusado'
		BEGIN SELECT RAISE(ABORT, 'rejected'); END
	`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	fabrics := []Fabric{DefaultFabrics[0], {Name: "Recusado", Type: "plano", PricePerMeter: 10}}
	if _, err := Run(context.Background(), database, fabrics); err == nil {
		t.Fatal("expected seed to fail on the rejected fabric")
	}
	assertCount(t, database, `SELECT COUNT(*) FROM fabrics`, nil, 0)
}

func assertCount(t *testing.T, database *sql.DB, query string, args any, expected int) {
	t.Helper()

	var count int
	var err error
	switch v := args.(type) {
	case nil:
		err = database.QueryRow(query).Scan(&count)
	case []any:
		err = database.QueryRow(query, v...).Scan(&count)
	default:
		err = database.QueryRow(query, v).Scan(&count)
	}
	if err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != expected {
		t.Fatalf("expected count %d, got %d", expected, count)
	}
}
