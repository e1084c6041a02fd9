package partcat

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/parquet-go/parquet-go"
)

// ErrInvalidFormat indicates a batch spec manifest that cannot be decoded.
var ErrInvalidFormat = errors.New("partcat: invalid manifest format")

const maxScanTokenSize = 10 * 1024 * 1024 // 10MB

// -----------------------------------------------------------------------------
// Manifest export
// -----------------------------------------------------------------------------

// SpecCodec serializes batch specs for an execution engine running elsewhere.
type SpecCodec interface {
	// Name returns the codec identifier ("jsonl" or "parquet").
	Name() string

	Encode(w io.Writer, specs []BatchSpec) error
	Decode(r io.Reader) ([]BatchSpec, error)
}

// Compressor wraps manifest streams.
type Compressor interface {
	// Name returns the compressor identifier ("gzip", "zstd", "noop").
	Name() string

	// Extension returns the file extension (".gz", ".zst", "").
	Extension() string

	Compress(w io.Writer) (io.WriteCloser, error)
	Decompress(r io.Reader) (io.ReadCloser, error)
}

// ManifestName returns base with the codec and compressor extensions,
// e.g. "specs.jsonl.zst".
func ManifestName(base string, codec SpecCodec, comp Compressor) string {
	return base + "." + codec.Name() + comp.Extension()
}

// ExportBatchSpecs encodes specs with codec and writes them through comp.
func ExportBatchSpecs(w io.Writer, specs []BatchSpec, codec SpecCodec, comp Compressor) error {
	cw, err := comp.Compress(w)
	if err != nil {
		return fmt.Errorf("partcat: export: %s: %w", comp.Name(), err)
	}
	if err := codec.Encode(cw, specs); err != nil {
		_ = cw.Close()
		return fmt.Errorf("partcat: export: %s: %w", codec.Name(), err)
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("partcat: export: %s: %w", comp.Name(), err)
	}
	return nil
}

// ImportBatchSpecs reverses ExportBatchSpecs.
func ImportBatchSpecs(r io.Reader, codec SpecCodec, comp Compressor) ([]BatchSpec, error) {
	cr, err := comp.Decompress(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidFormat, comp.Name(), err)
	}
	defer func() { _ = cr.Close() }()

	specs, err := codec.Decode(cr)
	if err != nil {
		return nil, fmt.Errorf("partcat: import: %s: %w", codec.Name(), err)
	}
	return specs, nil
}

// BatchSpecs matches req and builds a batch spec for every result.
func (c *Connector) BatchSpecs(req BatchRequest) ([]BatchSpec, error) {
	snap, err := c.load()
	if err != nil {
		return nil, err
	}
	defs, err := c.match(snap, req)
	if err != nil {
		return nil, err
	}
	specs := make([]BatchSpec, 0, len(defs))
	for _, d := range defs {
		spec, err := c.batchSpec(snap, d)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// -----------------------------------------------------------------------------
// JSONL Codec
// -----------------------------------------------------------------------------

type jsonlCodec struct{}

// NewJSONLCodec creates a JSON Lines codec: one batch spec object per line.
func NewJSONLCodec() SpecCodec {
	return &jsonlCodec{}
}

func (j *jsonlCodec) Name() string {
	return "jsonl"
}

func (j *jsonlCodec) Encode(w io.Writer, specs []BatchSpec) error {
	enc := jsonAPI.NewEncoder(w)
	for _, s := range specs {
		if err := enc.Encode(s); err != nil {
			return err
		}
	}
	return nil
}

func (j *jsonlCodec) Decode(r io.Reader) ([]BatchSpec, error) {
	specs := []BatchSpec{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxScanTokenSize)
	for line := 1; scanner.Scan(); line++ {
		b := scanner.Bytes()
		if len(b) == 0 {
			continue
		}
		var s BatchSpec
		if err := jsonAPI.Unmarshal(b, &s); err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidFormat, line, err)
		}
		specs = append(specs, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return specs, nil
}

// -----------------------------------------------------------------------------
// Parquet Codec
// -----------------------------------------------------------------------------

// ParquetCompression specifies internal Parquet page compression.
type ParquetCompression int

// Parquet compression options.
const (
	ParquetCompressionNone ParquetCompression = iota
	ParquetCompressionSnappy
	ParquetCompressionGzip
	ParquetCompressionZstd
)

// ParquetOption configures the Parquet codec.
type ParquetOption func(*parquetCodec)

// WithParquetCompression sets internal Parquet compression. Default Snappy.
func WithParquetCompression(c ParquetCompression) ParquetOption {
	return func(p *parquetCodec) {
		p.compression = c
	}
}

// specRow is the Parquet row layout. The identity is stored as an ordered
// JSON object so that key order survives the round trip.
type specRow struct {
	EnvironmentName  string `parquet:"environment_name"`
	ConnectorName    string `parquet:"connector_name"`
	AssetName        string `parquet:"asset_name"`
	Reference        string `parquet:"reference"`
	PhysicalLocation string `parquet:"physical_location"`
	Identity         string `parquet:"identity"`
}

type parquetCodec struct {
	compression ParquetCompression
}

// NewParquetCodec creates a Parquet codec. Parquet files need a footer over
// all row groups, so the whole manifest is buffered.
func NewParquetCodec(opts ...ParquetOption) SpecCodec {
	c := &parquetCodec{compression: ParquetCompressionSnappy}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *parquetCodec) Name() string {
	return "parquet"
}

func (c *parquetCodec) Encode(w io.Writer, specs []BatchSpec) error {
	rows := make([]specRow, len(specs))
	for i, s := range specs {
		id, err := s.Identity.MarshalJSON()
		if err != nil {
			return fmt.Errorf("parquet: spec %d identity: %w", i, err)
		}
		rows[i] = specRow{
			EnvironmentName:  s.EnvironmentName,
			ConnectorName:    s.ConnectorName,
			AssetName:        s.AssetName,
			Reference:        s.Reference,
			PhysicalLocation: s.PhysicalLocation,
			Identity:         string(id),
		}
	}

	var buf bytes.Buffer
	pw := parquet.NewGenericWriter[specRow](&buf, c.compressionOption())
	if _, err := pw.Write(rows); err != nil {
		_ = pw.Close()
		return fmt.Errorf("parquet: write rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("parquet: close writer: %w", err)
	}
	_, err := io.Copy(w, &buf)
	return err
}

func (c *parquetCodec) Decode(r io.Reader) ([]BatchSpec, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("parquet: read file: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrInvalidFormat
	}

	rows, err := parquet.Read[specRow](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	specs := make([]BatchSpec, len(rows))
	for i, row := range rows {
		var id Identity
		if err := id.UnmarshalJSON([]byte(row.Identity)); err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", ErrInvalidFormat, i, err)
		}
		specs[i] = BatchSpec{
			EnvironmentName:  row.EnvironmentName,
			ConnectorName:    row.ConnectorName,
			AssetName:        row.AssetName,
			Reference:        row.Reference,
			PhysicalLocation: row.PhysicalLocation,
			Identity:         id,
		}
	}
	return specs, nil
}

func (c *parquetCodec) compressionOption() parquet.WriterOption {
	switch c.compression {
	case ParquetCompressionSnappy:
		return parquet.Compression(&parquet.Snappy)
	case ParquetCompressionGzip:
		return parquet.Compression(&parquet.Gzip)
	case ParquetCompressionZstd:
		return parquet.Compression(&parquet.Zstd)
	default:
		return parquet.Compression(&parquet.Uncompressed)
	}
}

// -----------------------------------------------------------------------------
// Compressors
// -----------------------------------------------------------------------------

// streamCompressor adapts a pair of stream wrappers to Compressor.
type streamCompressor struct {
	name       string
	ext        string
	compress   func(io.Writer) (io.WriteCloser, error)
	decompress func(io.Reader) (io.ReadCloser, error)
}

func (c *streamCompressor) Name() string      { return c.name }
func (c *streamCompressor) Extension() string { return c.ext }

func (c *streamCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	return c.compress(w)
}

func (c *streamCompressor) Decompress(r io.Reader) (io.ReadCloser, error) {
	return c.decompress(r)
}

var (
	gzipCompressor = &streamCompressor{
		name: "gzip",
		ext:  ".gz",
		compress: func(w io.Writer) (io.WriteCloser, error) {
			return gzip.NewWriter(w), nil
		},
		decompress: func(r io.Reader) (io.ReadCloser, error) {
			return gzip.NewReader(r)
		},
	}
	zstdCompressor = &streamCompressor{
		name: "zstd",
		ext:  ".zst",
		compress: func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w)
		},
		decompress: func(r io.Reader) (io.ReadCloser, error) {
			dec, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return dec.IOReadCloser(), nil
		},
	}
	noopCompressor = &streamCompressor{
		name: "noop",
		compress: func(w io.Writer) (io.WriteCloser, error) {
			return nopWriteCloser{w}, nil
		},
		decompress: func(r io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(r), nil
		},
	}
)

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// compressors maps the names accepted by CompressorByName. "" and "none"
// are aliases of "noop".
var compressors = map[string]Compressor{
	"":     noopCompressor,
	"none": noopCompressor,
	"noop": noopCompressor,
	"gzip": gzipCompressor,
	"zstd": zstdCompressor,
}

// NewGzipCompressor returns the gzip compressor (.gz).
func NewGzipCompressor() Compressor { return gzipCompressor }

// NewZstdCompressor returns the Zstandard compressor (.zst).
func NewZstdCompressor() Compressor { return zstdCompressor }

// NewNoOpCompressor returns the pass-through compressor.
func NewNoOpCompressor() Compressor { return noopCompressor }

// CompressorByName returns the compressor registered under name.
func CompressorByName(name string) (Compressor, error) {
	c, ok := compressors[name]
	if !ok {
		return nil, fmt.Errorf("partcat: unknown compressor %q", name)
	}
	return c, nil
}

// CodecByName returns the codec registered under name.
func CodecByName(name string) (SpecCodec, error) {
	switch name {
	case "", "jsonl":
		return NewJSONLCodec(), nil
	case "parquet":
		return NewParquetCodec(), nil
	default:
		return nil, fmt.Errorf("partcat: unknown codec %q", name)
	}
}
