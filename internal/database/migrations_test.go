package database

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// AppMigrations
// ---------------------------------------------------------------------------

func TestAppMigrations_NamesUniqueAndOrdered(t *testing.T) {
	migrations := AppMigrations()
	if len(migrations) == 0 {
		t.Fatal("expected at least one migration")
	}

	seen := map[string]bool{}
	prev := ""
	for _, m := range migrations {
		if m.Name == "" {
			t.Error("migration with empty name")
		}
		if m.SQL == "" {
			t.Errorf("migration %q has empty SQL", m.Name)
		}
		if seen[m.Name] {
			t.Errorf("duplicate migration name %q", m.Name)
		}
		seen[m.Name] = true
		if m.Name <= prev {
			t.Errorf("migration %q out of order after %q", m.Name, prev)
		}
		prev = m.Name
	}
}

func TestAppMigrations_CreateExpectedTables(t *testing.T) {
	all := ""
	for _, m := range AppMigrations() {
		all += m.SQL
	}

	for table := range expectedTables {
		if !strings.Contains(all, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("no CREATE TABLE for expected table %q", table)
		}
	}
}

func TestAppMigrations_Idempotent(t *testing.T) {
	// Every DDL statement must be IF NOT EXISTS so a partial re-run is safe
	for _, m := range AppMigrations() {
		for _, stmt := range []string{"CREATE TABLE ", "CREATE INDEX "} {
			idx := 0
			for {
				i := strings.Index(m.SQL[idx:], stmt)
				if i < 0 {
					break
				}
				idx += i + len(stmt)
				if !strings.HasPrefix(m.SQL[idx:], "IF NOT EXISTS") {
					t.Errorf("migration %q: %s without IF NOT EXISTS", m.Name, strings.TrimSpace(stmt))
				}
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Migration type
// ---------------------------------------------------------------------------

func TestMigration_Fields(t *testing.T) {
	m := Migration{
		Name: "001_test.sql",
		SQL:  "CREATE TABLE test (id INT);",
	}

	if m.Name != "001_test.sql" {
		t.Errorf("expected name '001_test.sql', got %q", m.Name)
	}
	if m.SQL != "CREATE TABLE test (id INT);" {
		t.Errorf("unexpected SQL")
	}
}
