package partcat

import "fmt"

// Match returns the cached definitions satisfying req.
//
// Definitions keep cache order (asset name, then reference) unless the
// connector has a sorter chain. A request naming another environment or
// connector, or an asset this connector does not hold, fails with
// ErrScopeMismatch rather than returning an empty result.
//
// A data_asset_name key in PartitionRequest is compared against the asset
// name when the identity does not carry that key.
func (c *Connector) Match(req BatchRequest) ([]BatchDefinition, error) {
	snap, err := c.load()
	if err != nil {
		return nil, err
	}
	return c.match(snap, req)
}

func (c *Connector) match(snap *snapshot, req BatchRequest) ([]BatchDefinition, error) {
	if err := c.checkScope(snap, req.EnvironmentName, req.ConnectorName, req.AssetName); err != nil {
		return nil, err
	}
	if req.Limit < 0 {
		return nil, fmt.Errorf("partcat: negative limit %d", req.Limit)
	}

	assets := snap.assets
	if req.AssetName != "" {
		assets = []string{req.AssetName}
	}

	var out []BatchDefinition
	for _, asset := range assets {
		for _, def := range snap.definitions(asset) {
			if matchesPartition(def, req.PartitionRequest) {
				out = append(out, def)
			}
		}
	}

	if len(c.cfg.sorters) > 0 {
		sorted, err := c.cfg.sorters.SortDefinitions(out)
		if err != nil {
			return nil, err
		}
		out = sorted
	}
	if req.Limit > 0 && len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out, nil
}

func matchesPartition(def BatchDefinition, partition map[string]string) bool {
	for k, want := range partition {
		got, ok := def.Identity.Get(k)
		if !ok && k == AssetNameKey {
			got, ok = def.AssetName, true
		}
		if !ok || got != want {
			return false
		}
	}
	return true
}

// -----------------------------------------------------------------------------
// Reverse mapping
// -----------------------------------------------------------------------------

// ExampleReference returns a reference for def. It prefers the first cached
// reference whose identity equals def's; otherwise it renders one from the
// asset's pattern, which fails with ErrRender when the identity does not
// cover every group.
func (c *Connector) ExampleReference(def BatchDefinition) (Reference, error) {
	snap, err := c.load()
	if err != nil {
		return "", err
	}
	ref, _, err := c.exampleReference(snap, def)
	return ref, err
}

func (c *Connector) exampleReference(snap *snapshot, def BatchDefinition) (Reference, scope, error) {
	if err := c.checkScope(snap, def.EnvironmentName, def.ConnectorName, ""); err != nil {
		return "", scope{}, err
	}
	s, ok := c.cfg.effective(def.AssetName)
	if !ok || def.AssetName == "" {
		return "", scope{}, fmt.Errorf("%w: connector %q has no asset %q", ErrScopeMismatch, c.cfg.name, def.AssetName)
	}

	for _, e := range snap.entries[def.AssetName] {
		if e.def != nil && e.def.Identity.Equal(def.Identity) {
			return e.ref, s, nil
		}
	}

	id := def.Identity
	if c.cfg.implicit() {
		id = id.With(AssetNameKey, def.AssetName)
	}
	ref, err := s.rule.Render(id)
	if err != nil {
		return "", scope{}, err
	}
	return ref, s, nil
}

// BatchSpec builds the record an execution engine consumes for def.
func (c *Connector) BatchSpec(def BatchDefinition) (BatchSpec, error) {
	snap, err := c.load()
	if err != nil {
		return BatchSpec{}, err
	}
	return c.batchSpec(snap, def)
}

func (c *Connector) batchSpec(snap *snapshot, def BatchDefinition) (BatchSpec, error) {
	ref, s, err := c.exampleReference(snap, def)
	if err != nil {
		return BatchSpec{}, err
	}
	return BatchSpec{
		EnvironmentName:  c.cfg.environment,
		ConnectorName:    c.cfg.name,
		AssetName:        def.AssetName,
		Reference:        ref,
		PhysicalLocation: s.location(ref),
		Identity:         def.Identity,
	}, nil
}
