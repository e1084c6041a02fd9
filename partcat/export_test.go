package partcat

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleSpecs() []BatchSpec {
	return []BatchSpec{
		{
			EnvironmentName:  "prod",
			ConnectorName:    "landing",
			AssetName:        "orders",
			Reference:        "2020/01/a.csv",
			PhysicalLocation: "landing/orders/2020/01/a.csv",
			Identity:         NewIdentity("year", "2020", "month", "01"),
		},
		{
			EnvironmentName:  "prod",
			ConnectorName:    "landing",
			AssetName:        "orders",
			Reference:        "2021/02/b.csv",
			PhysicalLocation: "landing/orders/2021/02/b.csv",
			Identity:         NewIdentity("year", "2021", "month", "02"),
		},
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	codecs := []SpecCodec{
		NewJSONLCodec(),
		NewParquetCodec(),
		NewParquetCodec(WithParquetCompression(ParquetCompressionZstd)),
	}
	compressors := []Compressor{NewNoOpCompressor(), NewGzipCompressor(), NewZstdCompressor()}

	for _, codec := range codecs {
		for _, comp := range compressors {
			t.Run(codec.Name()+"/"+comp.Name(), func(t *testing.T) {
				var buf bytes.Buffer
				if err := ExportBatchSpecs(&buf, sampleSpecs(), codec, comp); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				got, err := ImportBatchSpecs(&buf, codec, comp)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if diff := cmp.Diff(sampleSpecs(), got, cmp.Comparer(Identity.Equal)); diff != "" {
					t.Errorf("round trip mismatch (-want +got):\n%s", diff)
				}
				for i := range got {
					if diff := cmp.Diff(sampleSpecs()[i].Identity.Keys(), got[i].Identity.Keys()); diff != "" {
						t.Errorf("identity key order lost (-want +got):\n%s", diff)
					}
				}
			})
		}
	}
}

func TestJSONLCodec_Format(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONLCodec().Encode(&buf, sampleSpecs()[:1]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"environment_name":"prod","connector_name":"landing","asset_name":"orders",` +
		`"reference":"2020/01/a.csv","physical_location":"landing/orders/2020/01/a.csv",` +
		`"identity":{"year":"2020","month":"01"}}` + "\n"
	if buf.String() != want {
		t.Errorf("encoded line:\n got %s\nwant %s", buf.String(), want)
	}
}

func TestImport_InvalidData(t *testing.T) {
	tests := []struct {
		name  string
		codec SpecCodec
		comp  Compressor
		data  string
	}{
		{"jsonl garbage", NewJSONLCodec(), NewNoOpCompressor(), "{not json}\n"},
		{"parquet garbage", NewParquetCodec(), NewNoOpCompressor(), "PAR1 nope"},
		{"parquet empty", NewParquetCodec(), NewNoOpCompressor(), ""},
		{"gzip garbage", NewJSONLCodec(), NewGzipCompressor(), "not gzip"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ImportBatchSpecs(strings.NewReader(tt.data), tt.codec, tt.comp)
			if !errors.Is(err, ErrInvalidFormat) {
				t.Errorf("expected ErrInvalidFormat, got: %v", err)
			}
		})
	}
}

func TestManifestName(t *testing.T) {
	tests := []struct {
		codec string
		comp  string
		want  string
	}{
		{"jsonl", "", "specs.jsonl"},
		{"jsonl", "none", "specs.jsonl"},
		{"jsonl", "gzip", "specs.jsonl.gz"},
		{"parquet", "zstd", "specs.parquet.zst"},
	}
	for _, tt := range tests {
		codec, err := CodecByName(tt.codec)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		comp, err := CompressorByName(tt.comp)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := ManifestName("specs", codec, comp); got != tt.want {
			t.Errorf("ManifestName(%s, %s) = %q, want %q", tt.codec, tt.comp, got, tt.want)
		}
	}

	if _, err := CodecByName("csv"); err == nil {
		t.Error("expected error for unknown codec")
	}
	if _, err := CompressorByName("lz4"); err == nil {
		t.Error("expected error for unknown compressor")
	}
}

func TestConnector_BatchSpecs(t *testing.T) {
	c := newRefreshed(t, explicitConfig(),
		"landing/orders/2020/01/a.csv",
		"landing/orders/2021/02/b.csv",
	)
	specs, err := c.BatchSpecs(BatchRequest{AssetName: "orders", Limit: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(specs) != 1 || specs[0].PhysicalLocation != "landing/orders/2021/02/b.csv" {
		t.Errorf("unexpected specs %+v", specs)
	}
}
