package partcat

import (
	"fmt"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Identity is an ordered key/value decomposition of a reference.
//
// Keys are unique. Equality ignores insertion order; display and encoding
// preserve it. The zero value is an empty identity. Identities are treated
// as immutable: With and Without return copies.
type Identity struct {
	keys   []string
	values map[string]string
}

// NewIdentity builds an identity from alternating key/value arguments.
// It panics on an odd argument count; a repeated key keeps its first
// position and takes the last value.
func NewIdentity(kv ...string) Identity {
	if len(kv)%2 != 0 {
		panic("partcat: NewIdentity requires key/value pairs")
	}
	var id Identity
	for i := 0; i < len(kv); i += 2 {
		id = id.With(kv[i], kv[i+1])
	}
	return id
}

// IdentityFromMap builds an identity from a map, ordering keys lexically.
func IdentityFromMap(m map[string]string) Identity {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var id Identity
	for _, k := range keys {
		id = id.With(k, m[k])
	}
	return id
}

// Len returns the number of keys.
func (id Identity) Len() int { return len(id.keys) }

// Get returns the value for key.
func (id Identity) Get(key string) (string, bool) {
	v, ok := id.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (id Identity) Keys() []string {
	return append([]string(nil), id.keys...)
}

// Values returns the values in key insertion order.
func (id Identity) Values() []string {
	out := make([]string, len(id.keys))
	for i, k := range id.keys {
		out[i] = id.values[k]
	}
	return out
}

// Map returns a copy of the identity as a plain map.
func (id Identity) Map() map[string]string {
	out := make(map[string]string, len(id.keys))
	for _, k := range id.keys {
		out[k] = id.values[k]
	}
	return out
}

// With returns a copy with key set to value. An existing key keeps its position.
func (id Identity) With(key, value string) Identity {
	out := id.clone()
	if out.values == nil {
		out.values = make(map[string]string)
	}
	if _, exists := out.values[key]; !exists {
		out.keys = append(out.keys, key)
	}
	out.values[key] = value
	return out
}

// Without returns a copy with key removed.
func (id Identity) Without(key string) Identity {
	if _, ok := id.values[key]; !ok {
		return id
	}
	out := Identity{values: make(map[string]string, len(id.values)-1)}
	for _, k := range id.keys {
		if k == key {
			continue
		}
		out.keys = append(out.keys, k)
		out.values[k] = id.values[k]
	}
	return out
}

// Equal reports whether both identities hold the same keys and values.
func (id Identity) Equal(other Identity) bool {
	if len(id.keys) != len(other.keys) {
		return false
	}
	for k, v := range id.values {
		ov, ok := other.values[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// Contains reports whether every key in subset is present with an equal value.
func (id Identity) Contains(subset map[string]string) bool {
	for k, v := range subset {
		got, ok := id.values[k]
		if !ok || got != v {
			return false
		}
	}
	return true
}

// Name joins the values in key order with sep.
func (id Identity) Name(sep string) string {
	return strings.Join(id.Values(), sep)
}

func (id Identity) String() string {
	parts := make([]string, len(id.keys))
	for i, k := range id.keys {
		parts[i] = fmt.Sprintf("%s=%s", k, id.values[k])
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func (id Identity) clone() Identity {
	if id.values == nil {
		return Identity{}
	}
	out := Identity{
		keys:   append([]string(nil), id.keys...),
		values: make(map[string]string, len(id.values)),
	}
	for k, v := range id.values {
		out.values[k] = v
	}
	return out
}

// MarshalJSON encodes the identity as an object in key insertion order.
func (id Identity) MarshalJSON() ([]byte, error) {
	stream := jsonAPI.BorrowStream(nil)
	defer jsonAPI.ReturnStream(stream)

	stream.WriteObjectStart()
	for i, k := range id.keys {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(k)
		stream.WriteString(id.values[k])
	}
	stream.WriteObjectEnd()
	if stream.Error != nil {
		return nil, stream.Error
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

// UnmarshalJSON decodes an object, keeping the document's key order.
func (id *Identity) UnmarshalJSON(data []byte) error {
	iter := jsonAPI.BorrowIterator(data)
	defer jsonAPI.ReturnIterator(iter)

	var out Identity
	if iter.WhatIsNext() == jsoniter.NilValue {
		iter.Skip()
		*id = out
		return iter.Error
	}
	iter.ReadObjectCB(func(it *jsoniter.Iterator, field string) bool {
		out = out.With(field, it.ReadString())
		return true
	})
	if iter.Error != nil {
		return fmt.Errorf("partcat: decode identity: %w", iter.Error)
	}
	*id = out
	return nil
}
