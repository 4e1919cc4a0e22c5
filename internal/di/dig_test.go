package di

import (
	"errors"
	"testing"

	"github.com/savaki/ecs-deployer/internal/config"
	"github.com/savaki/ecs-deployer/internal/execx"
)

// Test types for dependency injection
type database struct {
	Name string
}

type service struct {
	DB  *database
	Cfg *config.Config
}

func testConfig() *config.Config {
	cfg := &config.Config{App: "web"}
	cfg.ApplyDefaults()
	return cfg
}

func TestNewWithProviders(t *testing.T) {
	container, err := New(testConfig(),
		WithProviders(
			func() *database { return &database{Name: "history"} },
			func(db *database, cfg *config.Config) *service { return &service{DB: db, Cfg: cfg} },
		),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	svc := MustGet[*service](container)
	if svc.DB.Name != "history" {
		t.Errorf("DB.Name = %q", svc.DB.Name)
	}
	if svc.Cfg.App != "web" {
		t.Errorf("Cfg.App = %q", svc.Cfg.App)
	}
}

func TestConfigIsInjected(t *testing.T) {
	container, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	cfg := MustGet[*config.Config](container)
	if cfg.Env != "dev" {
		t.Errorf("Env = %q, want dev", cfg.Env)
	}
}

func TestDryRunFlowsToRunner(t *testing.T) {
	container, err := New(testConfig(), WithDryRun(true))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	runner := MustGet[execx.Runner](container)
	if !runner.DryRun {
		t.Error("runner.DryRun = false, want true")
	}
}

func TestMustGetPanicsOnMissingDependency(t *testing.T) {
	container, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("MustGet did not panic for unknown type")
		}
	}()

	type unknown struct{}
	_ = MustGet[*unknown](container)
}

func TestInvokeError(t *testing.T) {
	container, err := New(testConfig(),
		WithProviders(func() (*database, error) {
			return nil, errors.New("boom")
		}),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := container.Invoke(func(*database) {}); err == nil {
		t.Error("Invoke() expected constructor error")
	}
}
