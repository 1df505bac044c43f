package bootstrap

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/musicbot/core/config"
	coredatabase "github.com/m3rciful/musicbot/core/database"
	"github.com/m3rciful/musicbot/core/metrics"
)

func TestRunMigratesBeforeConnecting(t *testing.T) {
	mockDB, _, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer mockDB.Close()

	var calls []string
	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Name: "music"},
		Metrics:    metrics.New(),
		LoggerInit: func(*coreconfig.Config) error { calls = append(calls, "logger"); return nil },
		Migrate:    func(coredatabase.Config) error { calls = append(calls, "migrate"); return nil },
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			calls = append(calls, "connect")
			return sqlx.NewDb(mockDB, "sqlmock"), nil
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.DB == nil {
		t.Fatal("nil DB")
	}
	want := []string{"logger", "migrate", "connect"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}
}

func TestRunStopsOnMigrationError(t *testing.T) {
	connected := false
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: func(*coreconfig.Config) error { return nil },
		Migrate:    func(coredatabase.Config) error { return errors.New("dirty") },
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			connected = true
			return nil, nil
		},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if connected {
		t.Fatal("connected after failed migration")
	}
}

func TestRunRequiresMigrations(t *testing.T) {
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: func(*coreconfig.Config) error { return nil },
	})
	if err == nil {
		t.Fatal("expected error without migrations")
	}
}
