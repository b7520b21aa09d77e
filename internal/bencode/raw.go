package bencode

import "github.com/lvbealr/minitorrent/internal/protoerr"

// ExtractTopLevelField returns the exact byte range of the value associated
// with key at the top level of a bencoded dictionary, sliced from data
// rather than re-encoded from a Value tree. This is the preimage used for info-hash
// computation: the source torrent file's info dict must be hashed byte for
// byte, not re-encoded from a parsed tree, in case the source was not
// already canonical.
//
// This walks the dictionary using SkipValue, a length-aware element skip,
// rather than searching for the literal "<len>:<key>" bencode token: that
// search is wrong whenever those bytes recur inside unrelated string data
// earlier in the file.
func ExtractTopLevelField(data []byte, key string) ([]byte, error) {
	if len(data) == 0 || data[0] != 'd' {
		return nil, &protoerr.MalformedBencode{Offset: 0, Reason: "not a dictionary"}
	}

	pos := 1
	for {
		if pos >= len(data) {
			return nil, &protoerr.UnexpectedEnd{Offset: pos}
		}
		if data[pos] == 'e' {
			return nil, &protoerr.MalformedBencode{Offset: pos, Reason: "key not found: " + key}
		}

		keyVal, next, err := decodeBytes(data, pos)
		if err != nil {
			return nil, err
		}
		pos = next

		valueStart := pos
		valueEnd, err := SkipValue(data, pos, 0)
		if err != nil {
			return nil, err
		}

		if string(keyVal.Bytes) == key {
			return data[valueStart:valueEnd], nil
		}
		pos = valueEnd
	}
}

// SkipValue advances past one bencode value starting at pos, returning the
// offset just past it. It runs DecodeValue and discards the decoded tree,
// so it applies exactly DecodeValue's grammar so callers never need to re-derive element lengths
// by scanning for a delimiter like ':' or 'e' out of context.
func SkipValue(data []byte, pos int, depth int) (int, error) {
	_, next, err := DecodeValue(data, pos, depth)
	if err != nil {
		return pos, err
	}
	return next, nil
}
