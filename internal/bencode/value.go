// Package bencode implements a byte-faithful bencoding codec: decode and
// canonical encode over arbitrary byte strings. Byte strings are never
// interpreted as UTF-8 text during decode; they are carried as raw octets
// end to end, because info-dictionary hashes must be computed over the
// exact source bytes.
package bencode

// Kind tags the four bencode value shapes.
type Kind int

const (
	KindInt Kind = iota
	KindBytes
	KindList
	KindDict
)

// Value is a tagged bencode value. Exactly one of the fields matching Kind
// is meaningful; the others are zero.
type Value struct {
	Kind  Kind
	Int   int64
	Bytes []byte
	List  []*Value
	Dict  map[string]*Value
}

// NewInt constructs an Int value.
func NewInt(i int64) *Value { return &Value{Kind: KindInt, Int: i} }

// NewBytes constructs a Bytes value. The slice is not copied.
func NewBytes(b []byte) *Value { return &Value{Kind: KindBytes, Bytes: b} }

// NewString constructs a Bytes value from a Go string, a convenience for
// ASCII dictionary keys and similar call sites.
func NewString(s string) *Value { return &Value{Kind: KindBytes, Bytes: []byte(s)} }

// NewList constructs a List value.
func NewList(items ...*Value) *Value { return &Value{Kind: KindList, List: items} }

// NewDict constructs an empty Dict value ready for Set calls.
func NewDict() *Value { return &Value{Kind: KindDict, Dict: map[string]*Value{}} }

// Set assigns a key in a Dict value. Key order is irrelevant here; Encode
// sorts keys ascending by raw byte comparison at encode time.
func (v *Value) Set(key string, val *Value) {
	v.Dict[key] = val
}

// Get looks up a key in a Dict value. Returns nil if v is not a Dict or the
// key is absent.
func (v *Value) Get(key string) *Value {
	if v == nil || v.Kind != KindDict {
		return nil
	}
	return v.Dict[key]
}

// Str returns the Bytes payload as a Go string, or "" if v is not Bytes.
// The caller is responsible for treating the result as opaque octets, not
// necessarily valid UTF-8.
func (v *Value) Str() string {
	if v == nil || v.Kind != KindBytes {
		return ""
	}
	return string(v.Bytes)
}

// Equal reports whether two values are structurally identical: same kind,
// same payload, dict keys compared by membership (order is not semantic).
func Equal(a, b *Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindInt:
		return a.Int == b.Int
	case KindBytes:
		return string(a.Bytes) == string(b.Bytes)
	case KindList:
		if len(a.List) != len(b.List) {
			return false
		}
		for i := range a.List {
			if !Equal(a.List[i], b.List[i]) {
				return false
			}
		}
		return true
	case KindDict:
		if len(a.Dict) != len(b.Dict) {
			return false
		}
		for k, av := range a.Dict {
			bv, ok := b.Dict[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
