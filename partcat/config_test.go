package partcat

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadConfig(t *testing.T) {
	doc := `
name: events
environment: prod
base_path: landing
include: "**/*.csv"
pattern:
  pattern: (\d{4})/(\d{2})/.*
  group_names: [year, month]
assets:
  orders:
    base_path: orders
  refunds:
  clicks:
    pattern:
      pattern: (?P<year>\d{4})-(?P<month>\d{2})\.csv
sorters:
  - key: year
    kind: numeric
    direction: desc
`
	cfg, err := LoadConfig(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Config{
		Name:        "events",
		Environment: "prod",
		BasePath:    "landing",
		Include:     "**/*.csv",
		Pattern:     &PatternConfig{Pattern: `(\d{4})/(\d{2})/.*`, GroupNames: []string{"year", "month"}},
		Assets: Assets{
			{Name: "orders", BasePath: "orders"},
			{Name: "refunds"},
			{Name: "clicks", Pattern: &PatternConfig{Pattern: `(?P<year>\d{4})-(?P<month>\d{2})\.csv`}},
		},
		Sorters: []SorterConfig{{Key: "year", Kind: "numeric", Direction: "desc"}},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty document", ""},
		{"unknown top-level field", "name: x\nbase: y\n"},
		{"unknown asset field", "name: x\nassets:\n  a:\n    prefix: y\n"},
		{"unknown pattern field", "name: x\nassets:\n  a:\n    pattern:\n      regex: y\n"},
		{"assets not a mapping", "name: x\nassets: [a, b]\n"},
		{"duplicate asset", "name: x\nassets:\n  a:\n  a:\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(strings.NewReader(tt.doc))
			if !errors.Is(err, ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got: %v", err)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	byYear := &PatternConfig{Pattern: `(\d{4})/.*`, GroupNames: []string{"year"}}
	implicit := &PatternConfig{Pattern: `(\w+)/(\d{4})/.*`, GroupNames: []string{AssetNameKey, "year"}}

	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{
			name:    "valid implicit",
			cfg:     Config{Name: "c", Pattern: implicit},
			wantErr: nil,
		},
		{
			name:    "missing name",
			cfg:     Config{Pattern: implicit},
			wantErr: ErrConfiguration,
		},
		{
			name:    "implicit without asset group",
			cfg:     Config{Name: "c", Pattern: byYear},
			wantErr: ErrConfiguration,
		},
		{
			name:    "implicit with only asset group",
			cfg:     Config{Name: "c", Pattern: &PatternConfig{Pattern: `(\w+)\.csv`, GroupNames: []string{AssetNameKey}}},
			wantErr: ErrConfiguration,
		},
		{
			name:    "no pattern at all",
			cfg:     Config{Name: "c"},
			wantErr: ErrConfiguration,
		},
		{
			name:    "asset without pattern",
			cfg:     Config{Name: "c", Assets: Assets{{Name: "a"}}},
			wantErr: ErrConfiguration,
		},
		{
			name:    "duplicate asset",
			cfg:     Config{Name: "c", Pattern: byYear, Assets: Assets{{Name: "a"}, {Name: "a"}}},
			wantErr: ErrConfiguration,
		},
		{
			name:    "bad include glob",
			cfg:     Config{Name: "c", Pattern: implicit, Include: "[a-"},
			wantErr: ErrConfiguration,
		},
		{
			name:    "bad regex",
			cfg:     Config{Name: "c", Pattern: &PatternConfig{Pattern: `(`, GroupNames: []string{"x"}}},
			wantErr: ErrConfiguration,
		},
		{
			name: "sorter key not captured",
			cfg: Config{Name: "c", Pattern: implicit,
				Sorters: []SorterConfig{{Key: "month"}}},
			wantErr: ErrConfiguration,
		},
		{
			name: "sorter on asset name",
			cfg: Config{Name: "c", Pattern: implicit,
				Sorters: []SorterConfig{{Key: AssetNameKey}}},
			wantErr: ErrConfiguration,
		},
		{
			name: "sorter key missing from one asset",
			cfg: Config{Name: "c", Pattern: byYear,
				Assets: Assets{
					{Name: "a"},
					{Name: "b", Pattern: &PatternConfig{Pattern: `(\d{2})\.csv`, GroupNames: []string{"day"}}},
				},
				Sorters: []SorterConfig{{Key: "year"}}},
			wantErr: ErrConfiguration,
		},
		{
			name: "datetime without format",
			cfg: Config{Name: "c", Pattern: implicit,
				Sorters: []SorterConfig{{Key: "year", Kind: "datetime"}}},
			wantErr: ErrConfiguration,
		},
		{
			name: "datetime with unparsable format",
			cfg: Config{Name: "c", Pattern: implicit,
				Sorters: []SorterConfig{{Key: "year", Kind: "datetime", Format: "%Q%Q"}}},
			wantErr: ErrConfiguration,
		},
		{
			name: "format on numeric sorter",
			cfg: Config{Name: "c", Pattern: implicit,
				Sorters: []SorterConfig{{Key: "year", Kind: "numeric", Format: "%Y"}}},
			wantErr: ErrConfiguration,
		},
		{
			name: "bad direction",
			cfg: Config{Name: "c", Pattern: implicit,
				Sorters: []SorterConfig{{Key: "year", Direction: "sideways"}}},
			wantErr: ErrConfiguration,
		},
		{
			name: "hive combined with pattern",
			cfg: Config{Name: "c",
				Pattern: &PatternConfig{Pattern: `(\w+)/.*`, Hive: []string{AssetNameKey, "year"}}},
			wantErr: ErrConfiguration,
		},
		{
			name:    "valid hive",
			cfg:     Config{Name: "c", Pattern: &PatternConfig{Hive: []string{AssetNameKey, "year"}}},
			wantErr: nil,
		},
		{
			name: "valid datetime sorter",
			cfg: Config{Name: "c", Pattern: implicit,
				Sorters: []SorterConfig{{Key: "year", Kind: "datetime", Format: "%Y"}}},
			wantErr: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfig_EnvironmentDefault(t *testing.T) {
	c, err := New(implicitConfig(), NewMemory(), quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Environment() != "dev" {
		t.Errorf("Environment() = %q, want dev", c.Environment())
	}

	cfg := implicitConfig()
	cfg.Environment = ""
	c, err = New(cfg, NewMemory(), quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Environment() != DefaultEnvironment {
		t.Errorf("Environment() = %q, want %q", c.Environment(), DefaultEnvironment)
	}
}
