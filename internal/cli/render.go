package cli

import "github.com/lvbealr/minitorrent/internal/bencode"

// toAny converts a decoded bencode value into a plain Go value tree
// suitable for encoding/json.Marshal, matching decode's expected
// human-readable output. Byte strings are converted with Go's default
// string conversion; for ones that are not valid UTF-8, json.Marshal
// replaces each invalid byte with U+FFFD rather than failing, which is
// acceptable for a display-only rendering layer.
func toAny(v *bencode.Value) any {
	switch v.Kind {
	case bencode.KindInt:
		return v.Int
	case bencode.KindBytes:
		return string(v.Bytes)
	case bencode.KindList:
		out := make([]any, len(v.List))
		for i, elem := range v.List {
			out[i] = toAny(elem)
		}
		return out
	case bencode.KindDict:
		out := make(map[string]any, len(v.Dict))
		for k, elem := range v.Dict {
			out[k] = toAny(elem)
		}
		return out
	default:
		return nil
	}
}
