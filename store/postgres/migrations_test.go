package postgres_test

import (
	"testing"

	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/allowance/store/postgres"
)

func TestMigrationExecutorRegistered(t *testing.T) {
	if _, err := migrate.NewExecutorFor(pgdriver.New()); err != nil {
		t.Fatalf("no pg executor: %v", err)
	}
}

func TestMigrationsGroup(t *testing.T) {
	if got := postgres.Migrations.Name(); got != "allowance" {
		t.Errorf("group = %q, want allowance", got)
	}
	versions := map[string]bool{}
	for _, m := range postgres.Migrations.Migrations() {
		versions[m.Version] = true
	}
	for _, v := range []string{"20260301000001", "20260301000002"} {
		if !versions[v] {
			t.Errorf("missing migration %s", v)
		}
	}
}
