package partcat

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Asset is a named override scope within a connector. Zero-valued fields fall
// back to the connector defaults.
type Asset struct {
	Name string

	// BasePath is joined onto the connector base path.
	BasePath string

	// Include replaces the connector include glob.
	Include string

	// Pattern replaces the connector default pattern.
	Pattern *PatternRule
}

func buildAsset(ac AssetConfig, defaultRule *PatternRule) (*Asset, error) {
	if ac.Name == "" {
		return nil, configErrorf("asset name must not be empty")
	}
	if err := validateInclude(ac.Include); err != nil {
		return nil, err
	}
	a := &Asset{
		Name:     ac.Name,
		BasePath: ac.BasePath,
		Include:  ac.Include,
	}
	if ac.Pattern != nil {
		rule, err := ac.Pattern.build()
		if err != nil {
			return nil, configErrorf("asset %q: %v", ac.Name, err)
		}
		a.Pattern = rule
	}
	if a.Pattern == nil && defaultRule == nil {
		return nil, configErrorf("asset %q has no pattern and the connector has no default", ac.Name)
	}
	return a, nil
}

func (a *Asset) rule(defaultRule *PatternRule) *PatternRule {
	if a.Pattern != nil {
		return a.Pattern
	}
	return defaultRule
}

// -----------------------------------------------------------------------------
// Effective scope
// -----------------------------------------------------------------------------

// scope is the effective listing and resolution configuration of one asset.
// Refresh lists and resolves through it, and reverse mapping renders through
// it, so cached references and rendered references share one definition.
type scope struct {
	asset    string // "" for the single listing of an implicit-asset connector
	rule     *PatternRule
	basePath string // normalized, "" or ending in "/"
	include  string
}

// effective returns the scope of assetName. In implicit mode every asset
// shares the connector scope.
func (c *compiledConfig) effective(assetName string) (scope, bool) {
	if c.implicit() {
		return scope{
			asset:    assetName,
			rule:     c.pattern,
			basePath: c.basePath,
			include:  c.include,
		}, true
	}
	for _, a := range c.assets {
		if a.Name != assetName {
			continue
		}
		s := scope{
			asset:    a.Name,
			rule:     a.rule(c.pattern),
			basePath: joinBasePath(c.basePath, a.BasePath),
			include:  c.include,
		}
		if a.Include != "" {
			s.include = a.Include
		}
		return s, true
	}
	return scope{}, false
}

// listingScopes returns the scopes Refresh lists, one per asset, or a single
// connector-wide scope in implicit mode.
func (c *compiledConfig) listingScopes() []scope {
	if c.implicit() {
		s, _ := c.effective("")
		return []scope{s}
	}
	out := make([]scope, 0, len(c.assets))
	for _, a := range c.assets {
		s, _ := c.effective(a.Name)
		out = append(out, s)
	}
	return out
}

// relative strips the scope base path from a listed key. Keys outside the
// base path are dropped.
func (s scope) relative(key string) (Reference, bool) {
	key = strings.TrimPrefix(filepath.ToSlash(key), "/")
	if !strings.HasPrefix(key, s.basePath) {
		return "", false
	}
	ref := strings.TrimPrefix(key, s.basePath)
	return ref, ref != ""
}

// included reports whether ref passes the include glob. An empty glob
// includes everything.
func (s scope) included(ref Reference) bool {
	if s.include == "" {
		return true
	}
	ok, err := doublestar.Match(s.include, ref)
	return err == nil && ok
}

// location returns the physical location of ref.
func (s scope) location(ref Reference) string {
	return s.basePath + ref
}

func validateInclude(glob string) error {
	if glob != "" && !doublestar.ValidatePattern(glob) {
		return configErrorf("invalid include glob %q", glob)
	}
	return nil
}

// normalizeBasePath cleans p to a slash-separated relative prefix that is
// either empty or ends in "/".
func normalizeBasePath(p string) string {
	if p == "" {
		return ""
	}
	cleaned := path.Clean(filepath.ToSlash(p))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "." || cleaned == "" {
		return ""
	}
	return cleaned + "/"
}

func joinBasePath(base, sub string) string {
	if sub == "" {
		return base
	}
	return normalizeBasePath(path.Join(base, sub))
}
