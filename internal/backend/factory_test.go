package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"settle/internal/config"
	"settle/internal/core"
	"settle/internal/sheets/google"
)

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{
		DataBackend:         "sheets",
		GoogleSpreadsheetID: "sheet-1",
		GoogleAPIKey:        "key",
		GooglePeriodPrefix:  "Round",
		DataDirectory:       "seed",
	}

	bc, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if bc.Type != SheetsBackend {
		t.Errorf("Type = %v, want sheets", bc.Type)
	}
	if bc.Google.SpreadsheetID != "sheet-1" || bc.Google.APIKey != "key" || bc.Google.PeriodPrefix != "Round" {
		t.Errorf("google options not copied: %+v", bc.Google)
	}
	if bc.DataDirectory != "seed" {
		t.Errorf("DataDirectory = %q", bc.DataDirectory)
	}

	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "postgres"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"sheets with key", Config{Type: SheetsBackend, Google: google.Options{SpreadsheetID: "s", APIKey: "k"}}, false},
		{"sheets oauth without token", Config{Type: SheetsBackend, Google: google.Options{SpreadsheetID: "s", OAuthClientJSON: "{}"}}, true},
		{"sheets without id", Config{Type: SheetsBackend, Google: google.Options{APIKey: "k"}}, true},
		{"unknown", Config{Type: "redis"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFactory_MemoryBackend(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ledger.csv"), []byte("period,name,amount\n1,A,5\n1,B,-5\n"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, DataDirectory: dir})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Close()

	l, err := res.Backend.ReadLedger(context.Background(), 1)
	if err != nil {
		t.Fatalf("ReadLedger: %v", err)
	}
	if l["A"] != core.Cents(500) || l["B"] != core.Cents(-500) {
		t.Errorf("unexpected ledger %v", l)
	}
}

func TestFactory_SQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settle.db")
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	if res.Cleanup == nil {
		t.Fatal("sqlite backend must provide cleanup")
	}
	periods, err := res.Backend.ListPeriods(context.Background())
	if err != nil || len(periods) != 0 {
		t.Errorf("fresh database: periods=%v err=%v", periods, err)
	}
	if err := res.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestFactory_InvalidConfig(t *testing.T) {
	if _, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend}); err == nil {
		t.Error("expected validation error")
	}
}
