package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDB *gorm.DB

func TestMain(m *testing.M) {
	ctx := context.Background()

	dsn, terminate, err := testDSN(ctx)
	if err != nil {
		fmt.Printf("Failed to prepare test database: %v\n", err)
		os.Exit(1)
	}

	code := func() int {
		defer terminate()

		testDB, err = gorm.Open(pgdriver.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			fmt.Printf("Failed to connect to database: %v\n", err)
			return 1
		}
		if err := ApplySchema(ctx, testDB); err != nil {
			fmt.Printf("Failed to apply schema: %v\n", err)
			return 1
		}
		return m.Run()
	}()

	os.Exit(code)
}

// testDSN points at TEST_DB_* when TEST_DB_HOST is set, otherwise at a fresh container
func testDSN(ctx context.Context) (string, func(), error) {
	if host := os.Getenv("TEST_DB_HOST"); host != "" {
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host,
			envOr("TEST_DB_PORT", "5432"),
			envOr("TEST_DB_USER", "postgres"),
			envOr("TEST_DB_PASSWORD", "postgres"),
			envOr("TEST_DB_NAME", "market_indexer_test"))
		return dsn, func() {}, nil
	}

	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("market_indexer_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return "", nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	terminate := func() {
		if err := container.Terminate(ctx); err != nil {
			fmt.Printf("Failed to terminate postgres container: %v\n", err)
		}
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		terminate()
		return "", nil, fmt.Errorf("failed to get connection string: %w", err)
	}
	return dsn, terminate, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// initPGTestDB returns a store bound to a transaction that is rolled back after the test
func initPGTestDB(t *testing.T) Store {
	tx := testDB.Begin()
	require.NoError(t, tx.Error)
	t.Cleanup(func() {
		tx.Rollback()
	})
	return NewPGStore(tx)
}

func TestPostgreSQLStore(t *testing.T) {
	require.NotNil(t, testDB, "test database not initialized")
	RunStoreTests(t, initPGTestDB)
}

func TestNormalizeConnectionPoolSettings(t *testing.T) {
	tests := []struct {
		name         string
		open, idle   int
		life, idleTm time.Duration
		wantOpen     int
		wantIdle     int
		wantLife     time.Duration
		wantIdleTm   time.Duration
	}{
		{name: "defaults", wantOpen: 20, wantIdle: 5, wantLife: 5 * time.Minute, wantIdleTm: 10 * time.Minute},
		{name: "explicit", open: 4, idle: 2, life: time.Minute, idleTm: time.Minute, wantOpen: 4, wantIdle: 2, wantLife: time.Minute, wantIdleTm: time.Minute},
		{name: "idle clamped to open", open: 2, idle: 8, wantOpen: 2, wantIdle: 2, wantLife: 5 * time.Minute, wantIdleTm: 10 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			open, idle, life, idleTm := NormalizeConnectionPoolSettings(tt.open, tt.idle, tt.life, tt.idleTm)
			require.Equal(t, tt.wantOpen, open)
			require.Equal(t, tt.wantIdle, idle)
			require.Equal(t, tt.wantLife, life)
			require.Equal(t, tt.wantIdleTm, idleTm)
		})
	}
}
