package partcat

import "fmt"

// Example list bounds in a self-check report.
const (
	MaxExampleAssets     = 3
	MaxExampleReferences = 3
	MaxExampleUnmatched  = 10
)

// Report is the bounded structural summary returned by SelfCheck.
type Report struct {
	AssetCount                 int                    `json:"asset_count"`
	ExampleAssetNames          []string               `json:"example_asset_names"`
	Assets                     map[string]AssetReport `json:"assets"`
	UnmatchedReferenceCount    int                    `json:"unmatched_reference_count"`
	ExampleUnmatchedReferences []Reference            `json:"example_unmatched_references"`
}

// AssetReport summarizes one example asset.
type AssetReport struct {
	ExampleReferences    []Reference `json:"example_references"`
	BatchDefinitionCount int         `json:"batch_definition_count"`
}

// UnmatchedReferences returns every listed reference that no pattern
// matched, sorted.
func (c *Connector) UnmatchedReferences() ([]Reference, error) {
	snap, err := c.load()
	if err != nil {
		return nil, err
	}
	return append([]Reference(nil), snap.unmatched...), nil
}

// ReferenceCount returns the number of references listed for asset by the
// last Refresh, matched or not. An empty asset counts every listed reference.
func (c *Connector) ReferenceCount(asset string) (int, error) {
	snap, err := c.load()
	if err != nil {
		return 0, err
	}
	if asset == "" {
		return snap.total, nil
	}
	if !snap.hasAsset(asset) {
		return 0, fmt.Errorf("%w: connector %q has no asset %q", ErrScopeMismatch, c.cfg.name, asset)
	}
	return len(snap.entries[asset]), nil
}

// SelfCheck summarizes the cache for configuration diagnosis. Example lists
// are bounded and deterministic; two checks of the same snapshot are equal.
func (c *Connector) SelfCheck() (*Report, error) {
	snap, err := c.load()
	if err != nil {
		return nil, err
	}

	r := &Report{
		AssetCount:                 len(snap.assets),
		ExampleAssetNames:          head(snap.assets, MaxExampleAssets),
		Assets:                     make(map[string]AssetReport),
		UnmatchedReferenceCount:    len(snap.unmatched),
		ExampleUnmatchedReferences: head(snap.unmatched, MaxExampleUnmatched),
	}
	for _, name := range r.ExampleAssetNames {
		refs := snap.matchedReferences(name)
		r.Assets[name] = AssetReport{
			ExampleReferences:    head(refs, MaxExampleReferences),
			BatchDefinitionCount: len(refs),
		}
	}
	return r, nil
}

// head returns a copy of at most n leading elements. It never returns nil so
// that encoded reports carry empty lists rather than null.
func head[T any](s []T, n int) []T {
	if len(s) < n {
		n = len(s)
	}
	return append(make([]T, 0, n), s[:n]...)
}
