package internal

import (
	"path/filepath"
	"testing"

	"github.com/lenormf/vk-chat/testutil"
)

func TestOpenDatabase(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T) string
		readOnly bool
		wantErr  bool
	}{
		{
			name: "existing database read-only",
			setup: func(t *testing.T) string {
				dbPath := filepath.Join(testutil.CreateTempDir(t), "test.db")
				testutil.CreateSQLiteFixture(t, dbPath)
				return dbPath
			},
			readOnly: true,
			wantErr:  false,
		},
		{
			name: "missing database read-only",
			setup: func(t *testing.T) string {
				return filepath.Join(testutil.CreateTempDir(t), "nonexistent.db")
			},
			readOnly: true,
			wantErr:  true,
		},
		{
			name: "missing database is created",
			setup: func(t *testing.T) string {
				return filepath.Join(testutil.CreateTempDir(t), "sub", "history.db")
			},
			readOnly: false,
			wantErr:  false,
		},
		{
			name: "in memory",
			setup: func(t *testing.T) string {
				return memoryDatabase
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbPath := tt.setup(t)
			db, err := OpenDatabase(dbPath, tt.readOnly)
			if (err != nil) != tt.wantErr {
				t.Errorf("OpenDatabase() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if db != nil {
				defer db.Close()
			}
		})
	}
}

func TestOpenDatabase_WALMode(t *testing.T) {
	dbPath := filepath.Join(testutil.CreateTempDir(t), "history.db")
	db, err := OpenDatabase(dbPath, false)
	if err != nil {
		t.Fatalf("OpenDatabase() error = %v", err)
	}
	defer db.Close()

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode error = %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestTableExists(t *testing.T) {
	dbPath := filepath.Join(testutil.CreateTempDir(t), "test.db")
	testutil.CreateSQLiteFixture(t, dbPath)

	db, err := OpenDatabase(dbPath, true)
	if err != nil {
		t.Fatalf("OpenDatabase() error = %v", err)
	}
	defer db.Close()

	tests := []struct {
		table string
		want  bool
	}{
		{"fixture", true},
		{"messages", false},
	}
	for _, tt := range tests {
		got, err := TableExists(db, tt.table)
		if err != nil {
			t.Fatalf("TableExists(%q) error = %v", tt.table, err)
		}
		if got != tt.want {
			t.Errorf("TableExists(%q) = %v, want %v", tt.table, got, tt.want)
		}
	}
}
