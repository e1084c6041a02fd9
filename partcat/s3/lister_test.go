package s3

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/justapithecus/partcat/partcat"
)

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, Config{Bucket: "b"}); err == nil {
		t.Error("expected error for nil client")
	}
	if _, err := New(NewMockS3Client(), Config{}); err == nil {
		t.Error("expected error for empty bucket")
	}
	if _, err := New(NewMockS3Client(), Config{Bucket: "b", PageSize: -1}); err == nil {
		t.Error("expected error for negative page size")
	}
}

func TestLister_ListPaginates(t *testing.T) {
	client := NewMockS3Client(
		"data/a/1.csv", "data/a/2.csv", "data/a/3.csv",
		"data/a/dir/", "data/ab/4.csv", "other/5.csv",
	)
	l, err := New(client, Config{Bucket: "b", Prefix: "data", PageSize: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := l.List(context.Background(), "a/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"a/1.csv", "a/2.csv", "a/3.csv"}, got); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
	if client.ListObjectsV2Calls != 2 {
		t.Errorf("ListObjectsV2Calls = %d, want 2", client.ListObjectsV2Calls)
	}

	client.ResetCounts()
	all, err := l.List(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("expected 4 keys under data/, got %v", all)
	}
}

func TestLister_InvalidPrefix(t *testing.T) {
	l, err := New(NewMockS3Client(), Config{Bucket: "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := l.List(context.Background(), "../x"); !errors.Is(err, partcat.ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath, got: %v", err)
	}
}

func TestLister_ErrorClassification(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{"NoSuchBucket", partcat.ErrNotFound},
		{"NotFound", partcat.ErrNotFound},
		{"AccessDenied", partcat.ErrPermissionDenied},
		{"AllAccessDisabled", partcat.ErrPermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			client := NewMockS3Client()
			client.FailWithCode = tt.code
			l, err := New(client, Config{Bucket: "b"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			_, err = l.List(context.Background(), "")
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got: %v", tt.want, err)
			}
		})
	}

	client := NewMockS3Client()
	client.FailWithCode = "SlowDown"
	l, _ := New(client, Config{Bucket: "b"})
	_, err := l.List(context.Background(), "")
	if err == nil || errors.Is(err, partcat.ErrNotFound) || errors.Is(err, partcat.ErrPermissionDenied) {
		t.Errorf("expected unclassified error, got: %v", err)
	}
}

func TestLister_BacksConnector(t *testing.T) {
	client := NewMockS3Client(
		"warehouse/orders/2020/01/a.csv",
		"warehouse/orders/2020/02/b.csv",
		"warehouse/refunds/2020/01/c.csv",
		"warehouse/refunds/readme.md",
	)
	l, err := New(client, Config{Bucket: "b", Prefix: "warehouse", PageSize: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := partcat.Config{
		Name: "warehouse",
		Pattern: &partcat.PatternConfig{
			Pattern:    `(\w+)/(\d{4})/(\d{2})/.*\.csv`,
			GroupNames: []string{partcat.AssetNameKey, "year", "month"},
		},
	}
	c, err := partcat.New(cfg, l, partcat.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	report, err := c.SelfCheck()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.AssetCount != 2 || report.UnmatchedReferenceCount != 1 {
		t.Errorf("unexpected report %+v", report)
	}

	defs, err := c.Match(partcat.BatchRequest{AssetName: "orders", PartitionRequest: map[string]string{"month": "02"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(defs) != 1 {
		t.Fatalf("expected 1 definition, got %v", defs)
	}
	spec, err := c.BatchSpec(defs[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.PhysicalLocation != "orders/2020/02/b.csv" {
		t.Errorf("PhysicalLocation = %q", spec.PhysicalLocation)
	}
}
