//go:build integration

package db_test

import (
	"context"
	"testing"

	"github.com/onnwee/carmarket/internal/db"
	"github.com/onnwee/carmarket/internal/db/dbtest"
)

func TestExtensionsInstalled(t *testing.T) {
	conn := dbtest.Open(t)

	for _, ext := range db.Extensions {
		var version string
		err := conn.QueryRow(`SELECT extversion FROM pg_extension WHERE extname = $1`, ext).Scan(&version)
		if err != nil {
			t.Errorf("extension %s not installed: %v", ext, err)
			continue
		}
		t.Logf("%s version: %s", ext, version)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	conn := dbtest.Open(t)

	for i := 0; i < 2; i++ {
		if err := db.Migrate(context.Background(), conn, nil); err != nil {
			t.Fatalf("Migrate() run %d returned error: %v", i+1, err)
		}
	}
}

func TestUnaccentAndSimilarity(t *testing.T) {
	conn := dbtest.Open(t)

	var unaccented string
	if err := conn.QueryRow(`SELECT unaccent('Citroën')`).Scan(&unaccented); err != nil {
		t.Fatalf("unaccent failed: %v", err)
	}
	if unaccented != "Citroen" {
		t.Errorf("unaccent('Citroën') = %q, want Citroen", unaccented)
	}

	var sim float64
	if err := conn.QueryRow(`SELECT similarity('toyota', 'toy')`).Scan(&sim); err != nil {
		t.Fatalf("similarity failed: %v", err)
	}
	if sim <= 0.15 {
		t.Errorf("similarity('toyota', 'toy') = %f, expected above threshold", sim)
	}
}
