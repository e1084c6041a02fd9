package partcat

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultEnvironment names the environment of connectors configured without one.
const DefaultEnvironment = "default"

// -----------------------------------------------------------------------------
// Configuration types
// -----------------------------------------------------------------------------

// Config declares a connector. It is validated in full by New; nothing is
// deferred to query time.
//
// YAML form:
//
//	name: events
//	environment: prod
//	base_path: landing/
//	include: "*/*/*.csv"
//	pattern:
//	  pattern: (\d{4})/(\d{2})/(.+)-\d+\.csv
//	  group_names: [year, month, data_asset_name]
//	assets:
//	  alpha:
//	    base_path: alpha/
//	sorters:
//	  - key: year
//	    direction: desc
//	    kind: numeric
type Config struct {
	// Name identifies the connector. Required.
	Name string `yaml:"name"`

	// Environment names the owning environment. Defaults to DefaultEnvironment.
	Environment string `yaml:"environment"`

	// BasePath is the listing root passed to the Lister.
	BasePath string `yaml:"base_path"`

	// Include is a glob over references relative to the base path.
	// "**" matches across path separators. Empty includes everything.
	Include string `yaml:"include"`

	// Pattern is the default pattern rule. It may be omitted only when every
	// asset supplies its own.
	Pattern *PatternConfig `yaml:"pattern"`

	// Assets declares explicit assets. When empty, assets are derived from
	// the data_asset_name group of the default pattern.
	Assets Assets `yaml:"assets"`

	// Sorters orders Match results. Every key must be captured by every
	// effective pattern.
	Sorters []SorterConfig `yaml:"sorters"`
}

// PatternConfig declares a pattern rule. Hive builds a k=v path rule over
// the listed keys instead of a regular expression; the two are exclusive.
type PatternConfig struct {
	Pattern    string   `yaml:"pattern"`
	GroupNames []string `yaml:"group_names"`
	Hive       []string `yaml:"hive"`
}

func (p *PatternConfig) build() (*PatternRule, error) {
	if len(p.Hive) == 0 {
		return NewPatternRule(p.Pattern, p.GroupNames...)
	}
	if p.Pattern != "" || len(p.GroupNames) > 0 {
		return nil, configErrorf("hive pattern cannot be combined with pattern or group_names")
	}
	return HivePattern(p.Hive...)
}

// AssetConfig declares one asset. Every field overrides the connector default.
type AssetConfig struct {
	Name     string         `yaml:"-"`
	BasePath string         `yaml:"base_path"`
	Include  string         `yaml:"include"`
	Pattern  *PatternConfig `yaml:"pattern"`
}

// SorterConfig declares one sorter.
type SorterConfig struct {
	Key       string `yaml:"key"`
	Direction string `yaml:"direction"`
	Kind      string `yaml:"kind"`
	Format    string `yaml:"format"`
}

// Assets is an ordered list of asset declarations. In YAML it is a mapping
// from asset name to declaration, decoded in document order.
type Assets []AssetConfig

var (
	assetKeys   = map[string]bool{"base_path": true, "include": true, "pattern": true}
	patternKeys = map[string]bool{"pattern": true, "group_names": true, "hive": true}
)

// UnmarshalYAML decodes the asset mapping, rejecting duplicate names and
// unknown keys.
func (a *Assets) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: assets must be a mapping", node.Line)
	}
	seen := make(map[string]bool, len(node.Content)/2)
	out := make(Assets, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		name := keyNode.Value
		if seen[name] {
			return fmt.Errorf("line %d: duplicate asset %q", keyNode.Line, name)
		}
		seen[name] = true

		ac := AssetConfig{Name: name}
		if valNode.Tag != "!!null" {
			if err := checkKeys(valNode, assetKeys); err != nil {
				return fmt.Errorf("asset %q: %w", name, err)
			}
			if p := mappingValue(valNode, "pattern"); p != nil {
				if err := checkKeys(p, patternKeys); err != nil {
					return fmt.Errorf("asset %q pattern: %w", name, err)
				}
			}
			if err := valNode.Decode(&ac); err != nil {
				return fmt.Errorf("asset %q: %w", name, err)
			}
			ac.Name = name
		}
		out = append(out, ac)
	}
	*a = out
	return nil
}

func checkKeys(node *yaml.Node, allowed map[string]bool) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if k := node.Content[i]; !allowed[k.Value] {
			return fmt.Errorf("line %d: unknown field %q", k.Line, k.Value)
		}
	}
	return nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// LoadConfig decodes a YAML connector configuration. Unknown fields are
// errors. The result is not validated until it is passed to New or Validate.
func LoadConfig(r io.Reader) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return Config{}, configErrorf("empty configuration document")
		}
		return Config{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return cfg, nil
}

// -----------------------------------------------------------------------------
// Validation
// -----------------------------------------------------------------------------

// compiledConfig is a validated Config.
type compiledConfig struct {
	name        string
	environment string
	basePath    string
	include     string
	pattern     *PatternRule
	assets      []*Asset // sorted by name
	sorters     SorterChain
}

func (c compiledConfig) implicit() bool { return len(c.assets) == 0 }

// Validate reports the first configuration error, if any.
func (c Config) Validate() error {
	_, err := c.compile()
	return err
}

func (c Config) compile() (*compiledConfig, error) {
	if c.Name == "" {
		return nil, configErrorf("connector name is required")
	}
	out := &compiledConfig{
		name:        c.Name,
		environment: c.Environment,
		basePath:    normalizeBasePath(c.BasePath),
		include:     c.Include,
	}
	if out.environment == "" {
		out.environment = DefaultEnvironment
	}
	if err := validateInclude(c.Include); err != nil {
		return nil, err
	}

	if c.Pattern != nil {
		rule, err := c.Pattern.build()
		if err != nil {
			return nil, fmt.Errorf("connector %q: %w", c.Name, err)
		}
		out.pattern = rule
	}

	seen := make(map[string]bool, len(c.Assets))
	for _, ac := range c.Assets {
		asset, err := buildAsset(ac, out.pattern)
		if err != nil {
			return nil, fmt.Errorf("connector %q: %w", c.Name, err)
		}
		if seen[asset.Name] {
			return nil, configErrorf("connector %q: duplicate asset %q", c.Name, asset.Name)
		}
		seen[asset.Name] = true
		out.assets = append(out.assets, asset)
	}
	sort.Slice(out.assets, func(i, j int) bool { return out.assets[i].Name < out.assets[j].Name })

	if out.implicit() {
		if out.pattern == nil {
			return nil, configErrorf("connector %q: a default pattern is required when no assets are declared", c.Name)
		}
		if !out.pattern.HasGroup(AssetNameKey) {
			return nil, configErrorf("connector %q: pattern must capture %q when no assets are declared", c.Name, AssetNameKey)
		}
		if len(out.pattern.GroupNames()) < 2 {
			return nil, configErrorf("connector %q: pattern must capture a partition key besides %q", c.Name, AssetNameKey)
		}
	}

	chain, err := buildSorters(c.Sorters)
	if err != nil {
		return nil, fmt.Errorf("connector %q: %w", c.Name, err)
	}
	if err := out.checkSortKeys(chain); err != nil {
		return nil, err
	}
	out.sorters = chain
	return out, nil
}

// checkSortKeys requires every sorter key in every identity the connector
// can produce.
func (c *compiledConfig) checkSortKeys(chain SorterChain) error {
	for _, s := range chain {
		if c.implicit() {
			if s.Key == AssetNameKey || !c.pattern.HasGroup(s.Key) {
				return configErrorf("connector %q: sorter key %q is not a partition key", c.name, s.Key)
			}
			continue
		}
		for _, a := range c.assets {
			if !a.rule(c.pattern).HasGroup(s.Key) {
				return configErrorf("connector %q: sorter key %q is not captured for asset %q", c.name, s.Key, a.Name)
			}
		}
	}
	return nil
}

func buildSorters(cfgs []SorterConfig) (SorterChain, error) {
	chain := make(SorterChain, 0, len(cfgs))
	for _, sc := range cfgs {
		dir, err := ParseDirection(sc.Direction)
		if err != nil {
			return nil, err
		}
		kind, err := ParseSortKind(sc.Kind)
		if err != nil {
			return nil, err
		}
		if kind != DateTime && sc.Format != "" {
			return nil, configErrorf("sorter %q: format is only valid for datetime sorters", sc.Key)
		}
		chain = append(chain, Sorter{Key: sc.Key, Direction: dir, Kind: kind, Format: sc.Format})
	}
	if err := chain.validate(); err != nil {
		return nil, err
	}
	return chain, nil
}
