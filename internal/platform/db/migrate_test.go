package db

import (
	"os"
	"path/filepath"
	"testing"
)

func writeMigrationFile(t *testing.T, dir, name, sql string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(sql), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadMigrations(t *testing.T) {
	dir := t.TempDir()
	writeMigrationFile(t, dir, "002_add_tokens.sql", "CREATE TABLE tokens (id int);")
	writeMigrationFile(t, dir, "001_init.sql", "CREATE TABLE jobs (id int);")
	writeMigrationFile(t, dir, "010_indexes.sql", "CREATE INDEX idx ON jobs (id);")

	m := NewMigrator(nil, dir)
	migrations, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}

	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}

	wantVersions := []int{1, 2, 10}
	for i, want := range wantVersions {
		if migrations[i].Version != want {
			t.Errorf("migration %d: expected version %d, got %d", i, want, migrations[i].Version)
		}
	}
	if migrations[0].Name != "001_init.sql" {
		t.Errorf("expected first migration 001_init.sql, got %s", migrations[0].Name)
	}
	if migrations[0].SQL != "CREATE TABLE jobs (id int);" {
		t.Errorf("unexpected SQL content: %q", migrations[0].SQL)
	}
}

func TestLoadMigrations_SkipsNonNumericPrefix(t *testing.T) {
	dir := t.TempDir()
	writeMigrationFile(t, dir, "001_init.sql", "SELECT 1;")
	writeMigrationFile(t, dir, "readme.sql", "SELECT 2;")
	writeMigrationFile(t, dir, "notes.txt", "plain text")

	m := NewMigrator(nil, dir)
	migrations, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}

	if len(migrations) != 1 {
		t.Fatalf("expected 1 migration, got %d", len(migrations))
	}
	if migrations[0].Version != 1 {
		t.Errorf("expected version 1, got %d", migrations[0].Version)
	}
}

func TestLoadMigrations_MissingDirectory(t *testing.T) {
	m := NewMigrator(nil, filepath.Join(t.TempDir(), "does-not-exist"))
	if _, err := m.LoadMigrations(); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestLoadMigrations_EmptyDirectory(t *testing.T) {
	m := NewMigrator(nil, t.TempDir())
	migrations, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	if len(migrations) != 0 {
		t.Fatalf("expected no migrations, got %d", len(migrations))
	}
}
