package partcat

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/itchyny/timefmt-go"
)

// -----------------------------------------------------------------------------
// Sorter
// -----------------------------------------------------------------------------

// Direction is a sort direction.
type Direction int

// Sort directions.
const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// ParseDirection parses "asc" or "desc". An empty string means ascending.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "", "asc":
		return Ascending, nil
	case "desc":
		return Descending, nil
	default:
		return Ascending, configErrorf("illegal sort direction %q", s)
	}
}

// SortKind selects how a sorter interprets identity values.
type SortKind int

// Sorter kinds.
const (
	Lexicographic SortKind = iota
	Numeric
	DateTime
	Custom
)

func (k SortKind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case DateTime:
		return "datetime"
	case Custom:
		return "custom"
	default:
		return "lexicographic"
	}
}

// ParseSortKind parses a configured sorter kind. Custom sorters can only be
// built in code.
func ParseSortKind(s string) (SortKind, error) {
	switch strings.ToLower(s) {
	case "", "lexicographic":
		return Lexicographic, nil
	case "numeric":
		return Numeric, nil
	case "datetime", "date_time":
		return DateTime, nil
	default:
		return Lexicographic, configErrorf("unknown sorter kind %q", s)
	}
}

// Sorter orders identities by one key.
type Sorter struct {
	Key       string
	Direction Direction
	Kind      SortKind

	// Format is the strftime layout for DateTime sorters, e.g. "%Y%m%d".
	Format string

	// Compare orders two raw values for Custom sorters.
	Compare func(a, b string) int
}

// LexicographicSorter orders key values as strings.
func LexicographicSorter(key string, dir Direction) Sorter {
	return Sorter{Key: key, Direction: dir, Kind: Lexicographic}
}

// NumericSorter orders key values as floating point numbers.
func NumericSorter(key string, dir Direction) Sorter {
	return Sorter{Key: key, Direction: dir, Kind: Numeric}
}

// DateTimeSorter orders key values as timestamps parsed with a strftime format.
func DateTimeSorter(key string, dir Direction, format string) Sorter {
	return Sorter{Key: key, Direction: dir, Kind: DateTime, Format: format}
}

// CustomSorter orders key values with fn.
func CustomSorter(key string, dir Direction, fn func(a, b string) int) Sorter {
	return Sorter{Key: key, Direction: dir, Kind: Custom, Compare: fn}
}

func (s Sorter) validate() error {
	if s.Key == "" {
		return configErrorf("sorter key must not be empty")
	}
	switch s.Kind {
	case Lexicographic, Numeric:
	case DateTime:
		if s.Format == "" {
			return configErrorf("datetime sorter %q requires a format", s.Key)
		}
		if _, err := timefmt.Parse(timefmt.Format(layoutCheckTime, s.Format), s.Format); err != nil {
			return configErrorf("datetime sorter %q: format %q: %v", s.Key, s.Format, err)
		}
	case Custom:
		if s.Compare == nil {
			return configErrorf("custom sorter %q requires a compare function", s.Key)
		}
	default:
		return configErrorf("sorter %q has unknown kind %d", s.Key, s.Kind)
	}
	if s.Direction != Ascending && s.Direction != Descending {
		return configErrorf("sorter %q has unknown direction %d", s.Key, s.Direction)
	}
	return nil
}

// layoutCheckTime is formatted and parsed back to check a datetime layout.
var layoutCheckTime = time.Date(2006, time.January, 2, 15, 4, 5, 0, time.UTC)

// sortValue is a coerced value. Only the field matching the sorter kind is set.
type sortValue struct {
	s string
	n float64
	t time.Time
}

func (s Sorter) coerce(raw string) (sortValue, error) {
	switch s.Kind {
	case Numeric:
		n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return sortValue{}, fmt.Errorf("value %q is not numeric", raw)
		}
		return sortValue{n: n}, nil
	case DateTime:
		t, err := timefmt.Parse(raw, s.Format)
		if err != nil {
			return sortValue{}, fmt.Errorf("value %q does not match %q: %w", raw, s.Format, err)
		}
		return sortValue{t: t}, nil
	default:
		return sortValue{s: raw}, nil
	}
}

func (s Sorter) compare(a, b sortValue) int {
	var c int
	switch s.Kind {
	case Numeric:
		c = cmp.Compare(a.n, b.n)
	case DateTime:
		c = a.t.Compare(b.t)
	case Custom:
		c = s.Compare(a.s, b.s)
	default:
		c = strings.Compare(a.s, b.s)
	}
	if s.Direction == Descending {
		return -c
	}
	return c
}

func (s Sorter) String() string {
	if s.Kind == DateTime {
		return fmt.Sprintf("%s(%s %s %q)", s.Kind, s.Key, s.Direction, s.Format)
	}
	return fmt.Sprintf("%s(%s %s)", s.Kind, s.Key, s.Direction)
}

// -----------------------------------------------------------------------------
// Sorter chain
// -----------------------------------------------------------------------------

// SorterChain is a composite ordering: the first sorter is the primary key,
// later sorters break ties. Items tied on every key keep their input order.
type SorterChain []Sorter

// Keys returns the sorter keys in chain order.
func (c SorterChain) Keys() []string {
	keys := make([]string, len(c))
	for i, s := range c {
		keys[i] = s.Key
	}
	return keys
}

func (c SorterChain) validate() error {
	seen := make(map[string]bool, len(c))
	for _, s := range c {
		if err := s.validate(); err != nil {
			return err
		}
		if seen[s.Key] {
			return configErrorf("duplicate sorter key %q", s.Key)
		}
		seen[s.Key] = true
	}
	return nil
}

// Order returns a sorted copy of ids. Every identity must carry every sorter
// key with a value the sorter can interpret; otherwise Order returns a
// *SortKeyError and no output.
func (c SorterChain) Order(ids []Identity) ([]Identity, error) {
	idx, err := c.permutation(ids)
	if err != nil {
		return nil, err
	}
	out := make([]Identity, len(ids))
	for i, j := range idx {
		out[i] = ids[j]
	}
	return out, nil
}

// SortDefinitions returns a sorted copy of defs, ordered by their identities.
func (c SorterChain) SortDefinitions(defs []BatchDefinition) ([]BatchDefinition, error) {
	ids := make([]Identity, len(defs))
	for i, d := range defs {
		ids[i] = d.Identity
	}
	idx, err := c.permutation(ids)
	if err != nil {
		return nil, err
	}
	out := make([]BatchDefinition, len(defs))
	for i, j := range idx {
		out[i] = defs[j]
	}
	return out, nil
}

// permutation coerces every value once, then stable-sorts indexes.
func (c SorterChain) permutation(ids []Identity) ([]int, error) {
	keys := make([][]sortValue, len(ids))
	for i, id := range ids {
		row := make([]sortValue, len(c))
		for j, s := range c {
			raw, ok := id.Get(s.Key)
			if !ok {
				return nil, &SortKeyError{Key: s.Key, Identity: id}
			}
			v, err := s.coerce(raw)
			if err != nil {
				return nil, &SortKeyError{Key: s.Key, Identity: id, Err: err}
			}
			row[j] = v
		}
		keys[i] = row
	}

	idx := make([]int, len(ids))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		for j, s := range c {
			if r := s.compare(keys[a][j], keys[b][j]); r != 0 {
				return r
			}
		}
		return 0
	})
	return idx, nil
}
