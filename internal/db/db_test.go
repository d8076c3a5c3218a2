package db

import (
	"io/fs"
	"strings"
	"testing"
)

func TestRunMigrations_InvalidDirection(t *testing.T) {
	err := RunMigrations(nil, "sideways")
	if err == nil || !strings.Contains(err.Error(), "invalid migration direction") {
		t.Errorf("RunMigrations() error = %v, want invalid migration direction", err)
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	if ups == 0 {
		t.Fatal("no up migrations embedded")
	}
	if ups != downs {
		t.Errorf("up migrations = %d, down migrations = %d, want equal", ups, downs)
	}
}

func TestInitialSchemaDefinesTenantConstraints(t *testing.T) {
	b, err := fs.ReadFile(migrationsFS, "migrations/000001_initial_schema.up.sql")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	schema := string(b)
	for _, want := range []string{
		"organizations_subdomain_key UNIQUE (subdomain)",
		"users_organization_email_key UNIQUE (organization_id, email)",
		"users_global_email_key",
		"REFERENCES projects (id, organization_id) ON DELETE CASCADE",
		"assigned_to     UUID REFERENCES users(id) ON DELETE SET NULL",
	} {
		if !strings.Contains(schema, want) {
			t.Errorf("initial schema missing %q", want)
		}
	}
}
