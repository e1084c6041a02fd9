package partcat

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewPatternRule_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		groups  []string
	}{
		{"empty pattern", "", nil},
		{"bad regex", `(\d+`, []string{"n"}},
		{"too few names", `(\d+)-(\d+)`, []string{"a"}},
		{"too many names", `(\d+)`, []string{"a", "b"}},
		{"duplicate names", `(\d+)-(\d+)`, []string{"a", "a"}},
		{"empty name", `(\d+)`, []string{""}},
		{"no groups", `\d+\.csv`, nil},
		{"unnamed groups without names", `(\d+)`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPatternRule(tt.pattern, tt.groups...)
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got: %v", err)
			}
		})
	}
}

func TestNewPatternRule_NamedGroups(t *testing.T) {
	r, err := NewPatternRule(`(?P<year>\d{4})/(?P<month>\d{2})/.*`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"year", "month"}, r.GroupNames()); diff != "" {
		t.Errorf("group names mismatch (-want +got):\n%s", diff)
	}
}

func TestPatternRule_Resolve(t *testing.T) {
	r := MustPatternRule(`(\d{4})/(\d{2})/(.+)-\d+\.csv`, "year_dir", "month_dir", "data_asset_name")

	id, ok := r.Resolve("2020/03/alpha-1005.csv")
	if !ok {
		t.Fatal("expected match")
	}
	want := NewIdentity("year_dir", "2020", "month_dir", "03", "data_asset_name", "alpha")
	if !id.Equal(want) {
		t.Errorf("got %s, want %s", id, want)
	}

	if _, ok := r.Resolve("readme.md"); ok {
		t.Error("unexpected match for readme.md")
	}
	// Matching is anchored at the start only.
	if _, ok := r.Resolve("x/2020/03/alpha-1.csv"); ok {
		t.Error("match must be anchored at the start of the reference")
	}
	if _, ok := r.Resolve("2020/03/alpha-1.csv.bak"); !ok {
		t.Error("trailing text after a prefix match must be accepted")
	}
}

func TestPatternRule_Render(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		groups  []string
		id      Identity
		want    string
	}{
		{
			name:    "free parts become wildcards",
			pattern: `(\d{4})/(\d{2})/(.+)-\d+\.csv`,
			groups:  []string{"year_dir", "month_dir", "data_asset_name"},
			id:      NewIdentity("year_dir", "2020", "month_dir", "01", "data_asset_name", "alpha"),
			want:    "2020/01/alpha-*.csv",
		},
		{
			name:    "anchors dropped",
			pattern: `^(.+)-(\d+)\.csv$`,
			groups:  []string{"name", "number"},
			id:      NewIdentity("name", "A", "number", "100"),
			want:    "A-100.csv",
		},
		{
			name:    "adjacent wildcards collapse",
			pattern: `.*/.*_(\w+)\.csv`,
			groups:  []string{"tag"},
			id:      NewIdentity("tag", "x"),
			want:    "*/*_x.csv",
		},
		{
			name:    "literal star does not absorb a wildcard",
			pattern: `(\w+)\*.*\.csv`,
			groups:  []string{"name"},
			id:      NewIdentity("name", "a"),
			want:    "a**.csv",
		},
		{
			name:    "optional group rendered with its value",
			pattern: `([a-z]+)(?:_(\d+))?\.csv`,
			groups:  []string{"name", "part"},
			id:      NewIdentity("name", "sales", "part", "7"),
			want:    "sales_7.csv",
		},
		{
			name:    "optional group omitted when empty",
			pattern: `([a-z]+)(?:_(\d+))?\.csv`,
			groups:  []string{"name", "part"},
			id:      NewIdentity("name", "sales", "part", ""),
			want:    "sales.csv",
		},
		{
			name:    "alternation picks the populated branch",
			pattern: `(?:daily/(\d{8})|monthly/(\d{6}))\.csv`,
			groups:  []string{"day", "month"},
			id:      NewIdentity("day", "", "month", "202001"),
			want:    "monthly/202001.csv",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := MustPatternRule(tt.pattern, tt.groups...)
			got, err := r.Render(tt.id)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Render = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPatternRule_RenderMissingGroup(t *testing.T) {
	r := MustPatternRule(`(\d{4})/(\d{2})/.*`, "year", "month")

	_, err := r.Render(NewIdentity("year", "2020"))
	if !errors.Is(err, ErrRender) {
		t.Fatalf("expected ErrRender, got: %v", err)
	}
}

func TestPatternRule_RenderMissingNestedGroup(t *testing.T) {
	r := MustPatternRule(`([a-z]+)(?:_(\d+))?\.csv`, "name", "part")
	if r.Invertible() {
		t.Error("pattern with an optional group reported invertible")
	}

	_, err := r.Render(NewIdentity("name", "sales"))
	if !errors.Is(err, ErrRender) {
		t.Fatalf("expected ErrRender, got: %v", err)
	}

	for _, ref := range []string{"sales_7.csv", "sales.csv"} {
		id, ok := r.Resolve(ref)
		if !ok {
			t.Fatalf("expected match for %q", ref)
		}
		got, err := r.Render(id)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != ref {
			t.Errorf("Render(%s) = %q, want %q", id, got, ref)
		}
	}
}

func TestPatternRule_RoundTrip(t *testing.T) {
	r := MustPatternRule(`(\w+)/(\d{4})-(\d{2})\.parquet`, "table", "year", "month")
	if !r.Invertible() {
		t.Fatal("expected invertible pattern")
	}

	for _, ref := range []string{"sales/2020-01.parquet", "orders/1999-12.parquet"} {
		id, ok := r.Resolve(ref)
		if !ok {
			t.Fatalf("expected match for %q", ref)
		}
		rendered, err := r.Render(id)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		again, ok := r.Resolve(rendered)
		if !ok || !again.Equal(id) {
			t.Errorf("round trip %q -> %q -> %s, want %s", ref, rendered, again, id)
		}
	}

	if MustPatternRule(`(.+)-\d+\.csv`, "name").Invertible() {
		t.Error("pattern with free sub-expression reported invertible")
	}
}

func TestHivePattern(t *testing.T) {
	r, err := HivePattern("day", "region")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	id, ok := r.Resolve("day=2024-01-02/region=us%20east/part-0.parquet")
	if !ok {
		t.Fatal("expected match")
	}
	if v, _ := id.Get("region"); v != "us east" {
		t.Errorf("region = %q, want unescaped value", v)
	}

	ref, err := r.Render(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref != "day=2024-01-02/region=us%20east/*" {
		t.Errorf("Render = %q", ref)
	}

	if _, err := HivePattern(); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for no keys, got: %v", err)
	}
}
