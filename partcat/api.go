// Package partcat catalogs physical data references and maps them to
// addressable batches.
//
// A Connector lists references under a root through a Lister, extracts a
// partition identity from each one with a PatternRule, caches the mapping,
// and answers batch requests against that cache. Partcat does not read data
// payloads; it hands BatchSpec records to whatever engine materializes them.
package partcat

import (
	"context"
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Core types
// -----------------------------------------------------------------------------

// Reference is an opaque string naming one physical artifact, such as a file
// path relative to a base path, an object key, or a schema/table name.
type Reference = string

// AssetNameKey is the reserved group name that names the asset when a
// connector derives its assets from the references themselves.
const AssetNameKey = "data_asset_name"

// BatchDefinition is a fully specified pointer to one batch.
type BatchDefinition struct {
	// EnvironmentName identifies the environment owning the connector.
	EnvironmentName string `json:"environment_name"`

	// ConnectorName identifies the connector that produced the definition.
	ConnectorName string `json:"connector_name"`

	// AssetName identifies the asset within the connector.
	AssetName string `json:"asset_name"`

	// Identity is the partition identity extracted from the reference.
	Identity Identity `json:"identity"`
}

// Resolved reports whether every field of the definition is populated.
func (d BatchDefinition) Resolved() bool {
	return d.EnvironmentName != "" &&
		d.ConnectorName != "" &&
		d.AssetName != "" &&
		d.Identity.Len() > 0
}

// Equal reports structural equality.
func (d BatchDefinition) Equal(other BatchDefinition) bool {
	return d.EnvironmentName == other.EnvironmentName &&
		d.ConnectorName == other.ConnectorName &&
		d.AssetName == other.AssetName &&
		d.Identity.Equal(other.Identity)
}

// ID returns a display name for the batch: the asset name followed by the
// identity values, joined with "-".
func (d BatchDefinition) ID() string {
	if d.Identity.Len() == 0 {
		return d.AssetName
	}
	return d.AssetName + "-" + d.Identity.Name("-")
}

func (d BatchDefinition) String() string {
	return fmt.Sprintf("%s/%s/%s%s", d.EnvironmentName, d.ConnectorName, d.AssetName, d.Identity)
}

// BatchRequest is a partial-match query over cached batch definitions.
//
// Every field is optional. PartitionRequest is a subset constraint: keys it
// does not mention are wildcards.
type BatchRequest struct {
	EnvironmentName  string
	ConnectorName    string
	AssetName        string
	PartitionRequest map[string]string

	// Limit caps the number of definitions returned after ordering.
	// Zero means no limit.
	Limit int
}

// BatchSpec is the record an execution engine consumes to materialize a
// batch. Partcat never inspects what lives at PhysicalLocation.
type BatchSpec struct {
	EnvironmentName  string    `json:"environment_name"`
	ConnectorName    string    `json:"connector_name"`
	AssetName        string    `json:"asset_name"`
	Reference        Reference `json:"reference"`
	PhysicalLocation string    `json:"physical_location"`
	Identity         Identity  `json:"identity"`
}

// -----------------------------------------------------------------------------
// Lister interface
// -----------------------------------------------------------------------------

// Lister enumerates the physical references a connector catalogs.
//
// List returns every key under the given prefix. Ordering is unspecified.
// Each refresh issues a fresh call. Implementations report a missing prefix
// root as ErrNotFound and denied access as ErrPermissionDenied.
type Lister interface {
	List(ctx context.Context, prefix string) ([]string, error)
}

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

// Error sentinel values. Use errors.Is to test for them.
var (
	// ErrConfiguration indicates an invalid connector configuration.
	// It is only returned at construction time.
	ErrConfiguration = errors.New("partcat: invalid configuration")

	// ErrRefresh indicates that listing references failed. The previous
	// cache snapshot is kept.
	ErrRefresh = errors.New("partcat: refresh failed")

	// ErrScopeMismatch indicates a request naming an environment,
	// connector, or asset that the connector does not own.
	ErrScopeMismatch = errors.New("partcat: scope mismatch")

	// ErrNotRefreshed indicates a query issued before the first refresh.
	ErrNotRefreshed = errors.New("partcat: cache not populated; call Refresh first")

	// ErrSortKey indicates an identity that cannot be ordered by a sorter.
	ErrSortKey = errors.New("partcat: sort key")

	// ErrRender indicates that a reference could not be rebuilt from an identity.
	ErrRender = errors.New("partcat: cannot render reference")

	// ErrExhausted indicates that a cursor has returned every batch.
	ErrExhausted = errors.New("partcat: no more batches")

	// ErrStaleCursor indicates that the cache was refreshed while a cursor
	// was iterating over it.
	ErrStaleCursor = errors.New("partcat: cursor snapshot is stale")

	// ErrNotFound indicates a listing root that does not exist.
	ErrNotFound = errors.New("partcat: not found")

	// ErrPermissionDenied indicates a listing root the backend may not read.
	ErrPermissionDenied = errors.New("partcat: permission denied")

	// ErrPathExists indicates an attempt to write to an existing path.
	ErrPathExists = errors.New("partcat: path exists")

	// ErrInvalidPath indicates a path that would escape the storage root.
	ErrInvalidPath = errors.New("partcat: invalid path: escapes storage root")
)

// RefreshError reports a listing failure for one asset.
type RefreshError struct {
	Connector string
	Asset     string
	Err       error
}

func (e *RefreshError) Error() string {
	if e.Asset == "" {
		return fmt.Sprintf("partcat: refresh %q: %v", e.Connector, e.Err)
	}
	return fmt.Sprintf("partcat: refresh %q asset %q: %v", e.Connector, e.Asset, e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// Is matches ErrRefresh.
func (e *RefreshError) Is(target error) bool { return target == ErrRefresh }

// SortKeyError reports the key and identity a sorter could not order.
type SortKeyError struct {
	Key      string
	Identity Identity
	Err      error
}

func (e *SortKeyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("partcat: cannot sort %s by %q: %v", e.Identity, e.Key, e.Err)
	}
	return fmt.Sprintf("partcat: cannot sort %s by %q: key missing", e.Identity, e.Key)
}

func (e *SortKeyError) Unwrap() error { return e.Err }

// Is matches ErrSortKey.
func (e *SortKeyError) Is(target error) bool { return target == ErrSortKey }

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
