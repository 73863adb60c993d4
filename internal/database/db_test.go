package database

import (
	"slices"
	"testing"
	"testing/fstest"
)

func TestPendingMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"002_create_crypto_quotes.up.sql": {Data: []byte("CREATE TABLE b ();")},
		"001_create_cycle_runs.up.sql":    {Data: []byte("CREATE TABLE a ();")},
		"001_create_cycle_runs.down.sql":  {Data: []byte("DROP TABLE a;")},
		"README.md":                       {Data: []byte("notes")},
		"003_add_index.up.sql":            {Data: []byte("CREATE INDEX c ON b (x);")},
	}

	tests := []struct {
		name    string
		applied map[string]bool
		want    []string
	}{
		{
			name: "fresh database",
			want: []string{"001_create_cycle_runs.up.sql", "002_create_crypto_quotes.up.sql", "003_add_index.up.sql"},
		},
		{
			name:    "partially applied",
			applied: map[string]bool{"001_create_cycle_runs.up.sql": true},
			want:    []string{"002_create_crypto_quotes.up.sql", "003_add_index.up.sql"},
		},
		{
			name: "all applied",
			applied: map[string]bool{
				"001_create_cycle_runs.up.sql":    true,
				"002_create_crypto_quotes.up.sql": true,
				"003_add_index.up.sql":            true,
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pendingMigrations(fsys, tt.applied)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) || (len(got) > 0 && !slices.Equal(got, tt.want)) {
				t.Errorf("pendingMigrations() = %v, want %v", got, tt.want)
			}
		})
	}
}
