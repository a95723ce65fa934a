package integration

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/adapter/storage/postgres"
)

// TestEnv holds the shared database for the integration suite
type TestEnv struct {
	DB        *gorm.DB
	Container testcontainers.Container
	Logger    *zap.Logger
}

var (
	envOnce sync.Once
	testEnv *TestEnv
	envErr  error
)

func TestMain(m *testing.M) {
	code := m.Run()
	teardown()
	os.Exit(code)
}

// SetupTestEnvironment returns the shared environment, starting PostgreSQL on
// first use. DATABASE_URL points the suite at an external server instead.
func SetupTestEnvironment(t *testing.T) *TestEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("integration tests skipped in -short mode")
	}

	envOnce.Do(func() {
		testEnv, envErr = setup(context.Background())
	})
	if envErr != nil {
		t.Fatalf("Failed to set up test environment: %v", envErr)
	}

	CleanDatabase(t, testEnv.DB)
	return testEnv
}

func setup(ctx context.Context) (*TestEnv, error) {
	logger := zap.NewNop()
	env := &TestEnv{Logger: logger}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
			tcpostgres.WithDatabase("lifecycle_test"),
			tcpostgres.WithUsername("lifecycle"),
			tcpostgres.WithPassword("lifecycle_test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			return nil, err
		}
		env.Container = container

		dsn, err = container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			return env, err
		}
	}

	db, err := postgres.NewConnection(postgres.Config{
		Driver:       "postgres",
		URL:          dsn,
		MaxOpenConns: 20,
		LogLevel:     "silent",
	}, logger)
	if err != nil {
		return env, err
	}
	env.DB = db

	if err := postgres.RunMigrations(db); err != nil {
		return env, err
	}
	return env, nil
}

func teardown() {
	if testEnv == nil {
		return
	}
	if testEnv.DB != nil {
		_ = postgres.Close(testEnv.DB)
	}
	if testEnv.Container != nil {
		_ = testEnv.Container.Terminate(context.Background())
	}
}

// CleanDatabase truncates the lifecycle tables
func CleanDatabase(t *testing.T, db *gorm.DB) {
	t.Helper()
	if err := db.Exec("TRUNCATE TABLE reservations, charging_sessions").Error; err != nil {
		t.Fatalf("Failed to truncate tables: %v", err)
	}
}
