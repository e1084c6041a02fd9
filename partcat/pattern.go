package partcat

import (
	"fmt"
	"net/url"
	"regexp"
	"regexp/syntax"
	"strings"
)

// wildcard stands in for any regex fragment that Render cannot reproduce.
const wildcard = "*"

// PatternRule converts references to identities with a regular expression
// whose capture groups are named positionally by GroupNames.
type PatternRule struct {
	pattern    string
	groupNames []string

	re         *regexp.Regexp // anchored at the start, like a prefix match
	tree       *syntax.Regexp // unanchored parse used by Render
	invertible bool

	escape   func(string) string
	unescape func(string) (string, error)
}

// NewPatternRule compiles pattern and binds its capture groups to groupNames.
//
// When groupNames is empty and every group in pattern is named with
// (?P<name>...), the names are taken from the pattern. The number of capture
// groups must equal the number of names, and names must be unique.
func NewPatternRule(pattern string, groupNames ...string) (*PatternRule, error) {
	if pattern == "" {
		return nil, configErrorf("pattern is empty")
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)`)
	if err != nil {
		return nil, configErrorf("pattern %q: %v", pattern, err)
	}
	tree, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return nil, configErrorf("pattern %q: %v", pattern, err)
	}

	if len(groupNames) == 0 {
		groupNames = namedSubexps(re)
	}
	if re.NumSubexp() == 0 {
		return nil, configErrorf("pattern %q must capture at least one group", pattern)
	}
	if re.NumSubexp() != len(groupNames) {
		return nil, configErrorf("pattern %q has %d capture groups but %d group names %v",
			pattern, re.NumSubexp(), len(groupNames), groupNames)
	}
	seen := make(map[string]bool, len(groupNames))
	for _, name := range groupNames {
		if name == "" {
			return nil, configErrorf("pattern %q: group name must not be empty", pattern)
		}
		if seen[name] {
			return nil, configErrorf("pattern %q: duplicate group name %q", pattern, name)
		}
		seen[name] = true
	}

	r := &PatternRule{
		pattern:    pattern,
		groupNames: append([]string(nil), groupNames...),
		re:         re,
		tree:       tree,
	}
	r.invertible = !hasWildcard(tree)
	return r, nil
}

// MustPatternRule is like NewPatternRule but panics on error.
func MustPatternRule(pattern string, groupNames ...string) *PatternRule {
	r, err := NewPatternRule(pattern, groupNames...)
	if err != nil {
		panic(err)
	}
	return r
}

// HivePattern builds a rule for Hive-style paths:
//
//	k1=<v1>/k2=<v2>/<file>
//
// Values are URL path-unescaped when resolved and escaped when rendered.
func HivePattern(keys ...string) (*PatternRule, error) {
	if len(keys) == 0 {
		return nil, configErrorf("hive pattern requires at least one partition key")
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = regexp.QuoteMeta(k) + `=([^/]+)`
	}
	r, err := NewPatternRule(strings.Join(parts, "/")+`/.+`, keys...)
	if err != nil {
		return nil, err
	}
	r.escape = url.PathEscape
	r.unescape = url.PathUnescape
	return r, nil
}

// Pattern returns the source pattern.
func (r *PatternRule) Pattern() string { return r.pattern }

// GroupNames returns the group names in capture order.
func (r *PatternRule) GroupNames() []string {
	return append([]string(nil), r.groupNames...)
}

// HasGroup reports whether name is one of the rule's group names.
func (r *PatternRule) HasGroup(name string) bool {
	for _, g := range r.groupNames {
		if g == name {
			return true
		}
	}
	return false
}

// Invertible reports whether Render reproduces a matching reference exactly,
// i.e. every part of the pattern outside capture groups is literal.
func (r *PatternRule) Invertible() bool { return r.invertible }

// Resolve applies the rule to ref. The match is anchored at the start of ref.
// It returns false when ref does not match.
func (r *PatternRule) Resolve(ref Reference) (Identity, bool) {
	m := r.re.FindStringSubmatch(ref)
	if m == nil {
		return Identity{}, false
	}
	var id Identity
	for i, name := range r.groupNames {
		v := m[i+1]
		if r.unescape != nil {
			u, err := r.unescape(v)
			if err != nil {
				return Identity{}, false
			}
			v = u
		}
		id = id.With(name, v)
	}
	return id, true
}

// Render rebuilds a reference from id by substituting group values back into
// the pattern. Literal text is copied, anchors are dropped, and any other
// fragment becomes "*". A group inside an optional, repeated or alternated
// construct is rendered with its value; an optional construct whose groups
// are all empty is omitted. Render fails if id lacks a value for any group.
func (r *PatternRule) Render(id Identity) (Reference, error) {
	w := &renderer{rule: r, id: id}
	w.render(r.tree)
	if len(w.missing) > 0 {
		return "", fmt.Errorf("%w: pattern %q needs %v, identity %s", ErrRender, r.pattern, w.missing, id)
	}
	return w.b.String(), nil
}

type renderer struct {
	rule    *PatternRule
	id      Identity
	b       strings.Builder
	missing []string

	// wild is set while the last token written is a wildcard.
	wild bool
}

func (w *renderer) write(s string) {
	if s == "" {
		return
	}
	w.b.WriteString(s)
	w.wild = false
}

func (w *renderer) wildcard() {
	if !w.wild {
		w.b.WriteString(wildcard)
		w.wild = true
	}
}

func (w *renderer) render(re *syntax.Regexp) {
	switch re.Op {
	case syntax.OpLiteral:
		w.write(string(re.Rune))
	case syntax.OpCapture:
		name := w.rule.groupNames[re.Cap-1]
		v, ok := w.id.Get(name)
		if !ok {
			w.missing = append(w.missing, name)
			return
		}
		if w.rule.escape != nil {
			v = w.rule.escape(v)
		}
		w.write(v)
	case syntax.OpConcat:
		for _, sub := range re.Sub {
			w.render(sub)
		}
	case syntax.OpEmptyMatch, syntax.OpNoMatch,
		syntax.OpBeginLine, syntax.OpEndLine,
		syntax.OpBeginText, syntax.OpEndText,
		syntax.OpWordBoundary, syntax.OpNoWordBoundary:
	case syntax.OpQuest, syntax.OpStar, syntax.OpPlus, syntax.OpRepeat, syntax.OpAlternate:
		w.renderGroups(re)
	default:
		w.wildcard()
	}
}

// renderGroups renders a quantified or alternated construct. Without capture
// groups it is a wildcard.
func (w *renderer) renderGroups(re *syntax.Regexp) {
	names := w.rule.captures(re, nil)
	if len(names) == 0 {
		w.wildcard()
		return
	}
	complete := true
	for _, name := range names {
		if _, ok := w.id.Get(name); !ok {
			w.missing = append(w.missing, name)
			complete = false
		}
	}
	if !complete {
		return
	}

	switch {
	case re.Op == syntax.OpAlternate:
		for _, sub := range re.Sub {
			if branch := w.rule.captures(sub, nil); len(branch) > 0 && w.allSet(branch) {
				w.render(sub)
				return
			}
		}
		w.wildcard()
	case re.Op == syntax.OpQuest || re.Op == syntax.OpStar || (re.Op == syntax.OpRepeat && re.Min == 0):
		if !w.anySet(names) {
			return
		}
		w.render(re.Sub[0])
	default:
		for i := 0; i < max(re.Min, 1); i++ {
			w.render(re.Sub[0])
		}
	}
}

func (w *renderer) allSet(names []string) bool {
	for _, name := range names {
		if v, _ := w.id.Get(name); v == "" {
			return false
		}
	}
	return true
}

func (w *renderer) anySet(names []string) bool {
	for _, name := range names {
		if v, _ := w.id.Get(name); v != "" {
			return true
		}
	}
	return false
}

// captures appends the group names captured anywhere under re.
func (r *PatternRule) captures(re *syntax.Regexp, names []string) []string {
	if re.Op == syntax.OpCapture {
		names = append(names, r.groupNames[re.Cap-1])
	}
	for _, sub := range re.Sub {
		names = r.captures(sub, names)
	}
	return names
}

func hasWildcard(re *syntax.Regexp) bool {
	switch re.Op {
	case syntax.OpLiteral, syntax.OpCapture,
		syntax.OpEmptyMatch, syntax.OpNoMatch,
		syntax.OpBeginLine, syntax.OpEndLine,
		syntax.OpBeginText, syntax.OpEndText,
		syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		return false
	case syntax.OpConcat:
		for _, sub := range re.Sub {
			if hasWildcard(sub) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

func namedSubexps(re *regexp.Regexp) []string {
	names := re.SubexpNames()[1:]
	for _, n := range names {
		if n == "" {
			return nil
		}
	}
	return append([]string(nil), names...)
}
