package partcat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultListConcurrency bounds concurrent asset listings during Refresh.
const DefaultListConcurrency = 8

// -----------------------------------------------------------------------------
// Options
// -----------------------------------------------------------------------------

// Option configures connector construction.
type Option interface {
	applyConnector(*connectorOptions) error
}

type connectorOptions struct {
	logger      *slog.Logger
	concurrency int
	sorters     *SorterChain
}

type loggerOption struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for refresh events. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return &loggerOption{logger: l}
}

func (o *loggerOption) applyConnector(cfg *connectorOptions) error {
	if o.logger == nil {
		return errors.New("WithLogger: logger must not be nil")
	}
	cfg.logger = o.logger
	return nil
}

type concurrencyOption struct {
	n int
}

// WithListConcurrency bounds how many assets Refresh lists at once.
func WithListConcurrency(n int) Option {
	return &concurrencyOption{n: n}
}

func (o *concurrencyOption) applyConnector(cfg *connectorOptions) error {
	if o.n < 1 {
		return fmt.Errorf("WithListConcurrency: %d is not positive", o.n)
	}
	cfg.concurrency = o.n
	return nil
}

type sortersOption struct {
	chain SorterChain
}

// WithSorters replaces the sorter chain declared in Config. It is the only
// way to attach Custom sorters. An empty chain keeps cache order.
func WithSorters(chain SorterChain) Option {
	return &sortersOption{chain: append(SorterChain(nil), chain...)}
}

func (o *sortersOption) applyConnector(cfg *connectorOptions) error {
	if err := o.chain.validate(); err != nil {
		return err
	}
	cfg.sorters = &o.chain
	return nil
}

// -----------------------------------------------------------------------------
// Connector
// -----------------------------------------------------------------------------

// Connector catalogs the references one Lister exposes under a base path.
//
// Configuration is immutable after New. Refresh is the only mutator: it
// builds a complete snapshot and publishes it atomically, so concurrent
// queries observe either the previous snapshot or the new one. Queries never
// block and never perform I/O.
type Connector struct {
	cfg         *compiledConfig
	lister      Lister
	logger      *slog.Logger
	concurrency int

	refreshMu sync.Mutex
	current   atomic.Pointer[snapshot]
}

// New validates cfg and builds a connector over lister. It panics if lister
// is nil.
func New(cfg Config, lister Lister, opts ...Option) (*Connector, error) {
	if lister == nil {
		panic("partcat: New requires a non-nil Lister")
	}
	compiled, err := cfg.compile()
	if err != nil {
		return nil, err
	}

	o := &connectorOptions{
		logger:      slog.Default(),
		concurrency: DefaultListConcurrency,
	}
	for _, opt := range opts {
		if err := opt.applyConnector(o); err != nil {
			if errors.Is(err, ErrConfiguration) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
	}
	if o.sorters != nil {
		if err := compiled.checkSortKeys(*o.sorters); err != nil {
			return nil, err
		}
		compiled.sorters = *o.sorters
	}

	return &Connector{
		cfg:         compiled,
		lister:      lister,
		logger:      o.logger.With("connector", compiled.name),
		concurrency: o.concurrency,
	}, nil
}

// Name returns the connector name.
func (c *Connector) Name() string { return c.cfg.name }

// Environment returns the owning environment name.
func (c *Connector) Environment() string { return c.cfg.environment }

// Sorters returns the configured sorter chain.
func (c *Connector) Sorters() SorterChain {
	return append(SorterChain(nil), c.cfg.sorters...)
}

// Refreshed reports whether a snapshot has been published.
func (c *Connector) Refreshed() bool { return c.current.Load() != nil }

func (c *Connector) load() (*snapshot, error) {
	s := c.current.Load()
	if s == nil {
		return nil, fmt.Errorf("%w: connector %q", ErrNotRefreshed, c.cfg.name)
	}
	return s, nil
}

// -----------------------------------------------------------------------------
// Refresh
// -----------------------------------------------------------------------------

// Refresh lists every asset, resolves each reference, and replaces the cache.
//
// A listing failure returns a *RefreshError and leaves the previous snapshot
// in place. If ctx is cancelled the new snapshot is discarded. Concurrent
// calls are serialized.
func (c *Connector) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	start := time.Now()
	scopes := c.cfg.listingScopes()
	c.logger.Debug("refresh started", "scopes", len(scopes))

	listings := make([][]string, len(scopes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, s := range scopes {
		g.Go(func() error {
			keys, err := c.lister.List(gctx, s.basePath)
			if err != nil {
				return &RefreshError{Connector: c.cfg.name, Asset: s.asset, Err: err}
			}
			listings[i] = keys
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			c.logger.Warn("refresh abandoned", "error", ctxErr)
			return fmt.Errorf("partcat: refresh %q abandoned: %w", c.cfg.name, ctxErr)
		}
		c.logger.Warn("refresh failed", "error", err)
		return err
	}

	snap := c.build(scopes, listings)
	if err := ctx.Err(); err != nil {
		c.logger.Warn("refresh abandoned", "error", err)
		return fmt.Errorf("partcat: refresh %q abandoned: %w", c.cfg.name, err)
	}

	c.current.Store(snap)
	c.logger.Info("refresh complete",
		"snapshot", snap.id,
		"assets", len(snap.assets),
		"references", snap.total,
		"unmatched", len(snap.unmatched),
		"duration", time.Since(start),
	)
	return nil
}

// build resolves listed keys into a snapshot.
func (c *Connector) build(scopes []scope, listings [][]string) *snapshot {
	var declared []string
	if !c.cfg.implicit() {
		declared = make([]string, len(c.cfg.assets))
		for i, a := range c.cfg.assets {
			declared[i] = a.Name
		}
	}
	b := newSnapshotBuilder(declared)

	for i, s := range scopes {
		keys := listings[i]
		sort.Strings(keys)
		for _, key := range keys {
			ref, ok := s.relative(key)
			if !ok || !s.included(ref) {
				continue
			}
			asset, def := c.resolve(s, ref)
			if def == nil {
				b.add(s.asset, ref, nil)
				continue
			}
			b.add(asset, ref, def)
		}
	}
	return b.build()
}

// resolve applies the scope rule to ref. It returns a nil definition when ref
// does not match. In implicit mode the asset name is taken from the
// reference and removed from the identity.
func (c *Connector) resolve(s scope, ref Reference) (string, *BatchDefinition) {
	id, ok := s.rule.Resolve(ref)
	if !ok {
		return s.asset, nil
	}
	asset := s.asset
	if c.cfg.implicit() {
		name, _ := id.Get(AssetNameKey)
		if name == "" {
			return s.asset, nil
		}
		asset = name
		id = id.Without(AssetNameKey)
	}
	return asset, &BatchDefinition{
		EnvironmentName: c.cfg.environment,
		ConnectorName:   c.cfg.name,
		AssetName:       asset,
		Identity:        id,
	}
}

// -----------------------------------------------------------------------------
// Scope checks
// -----------------------------------------------------------------------------

func (c *Connector) checkScope(snap *snapshot, env, connector, asset string) error {
	if env != "" && env != c.cfg.environment {
		return fmt.Errorf("%w: environment %q, connector %q belongs to %q",
			ErrScopeMismatch, env, c.cfg.name, c.cfg.environment)
	}
	if connector != "" && connector != c.cfg.name {
		return fmt.Errorf("%w: connector %q, this is %q", ErrScopeMismatch, connector, c.cfg.name)
	}
	if asset != "" && !snap.hasAsset(asset) {
		return fmt.Errorf("%w: connector %q has no asset %q", ErrScopeMismatch, c.cfg.name, asset)
	}
	return nil
}

// AssetNames returns the asset names in the current snapshot, sorted. For an
// implicit-asset connector these are the names discovered by the last Refresh.
func (c *Connector) AssetNames() ([]string, error) {
	snap, err := c.load()
	if err != nil {
		return nil, err
	}
	return append([]string(nil), snap.assets...), nil
}
