// Package dbtest provisions a migrated Postgres database for integration tests.
//
// DATABASE_URL is used when set. Otherwise a disposable container is started
// with testcontainers; the test is skipped when Docker is not reachable.
package dbtest

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver; imported for side-effects (driver registration)
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/onnwee/carmarket/internal/db"
)

// Image is the Postgres image started when DATABASE_URL is not set.
const Image = "postgres:16-alpine"

// tables are truncated between tests, children first.
var tables = []string{
	"viewed_posts",
	"viewed_users",
	"likes",
	"saves",
	"banners",
	"notifications",
	"car_requests",
	"posts",
	"users",
}

// Open returns a migrated, empty database for t.
func Open(t *testing.T) *sql.DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = startContainer(ctx, t)
	}

	conn, err := db.Open(ctx, dbURL, db.DefaultPoolConfig())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.Migrate(ctx, conn, nil); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	Truncate(t, conn)
	return conn
}

// Truncate empties every application table.
func Truncate(t *testing.T, conn *sql.DB) {
	t.Helper()
	for _, table := range tables {
		if _, err := conn.Exec("TRUNCATE TABLE " + table + " CASCADE"); err != nil {
			t.Fatalf("failed to truncate %s: %v", table, err)
		}
	}
}

func startContainer(ctx context.Context, t *testing.T) string {
	t.Helper()
	ctr, err := postgres.Run(ctx, Image,
		postgres.WithDatabase("carmarket"),
		postgres.WithUsername("carmarket"),
		postgres.WithPassword("carmarket"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Skipf("DATABASE_URL not set and postgres container unavailable: %v", err)
	}

	dbURL, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get container connection string: %v", err)
	}
	return dbURL
}

// SeedUser inserts a minimal user row.
func SeedUser(t *testing.T, conn *sql.DB, userID, username, city string, createdAt time.Time) {
	t.Helper()
	_, err := conn.Exec(
		`INSERT INTO users (user_id, username, city, created_at, updated_at) VALUES ($1, $2, $3, $4, $4)`,
		userID, username, city, createdAt,
	)
	if err != nil {
		t.Fatalf("failed to seed user %s: %v", userID, err)
	}
}
