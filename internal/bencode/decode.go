package bencode

import (
	"github.com/lvbealr/minitorrent/internal/protoerr"
)

// maxDepth bounds decoder recursion against maliciously or accidentally
// deeply nested input. 256 matches the cap suggested for untrusted
// bencoded input (a torrent file or a tracker/peer response).
const maxDepth = 256

// Decode decodes a single complete bencode value from data. It is an error
// for data to contain trailing bytes after the value.
func Decode(data []byte) (*Value, error) {
	val, pos, err := DecodeValue(data, 0, 0)
	if err != nil {
		return nil, err
	}
	if pos != len(data) {
		return nil, &protoerr.MalformedBencode{Offset: pos, Reason: "trailing data after top-level value"}
	}
	return val, nil
}

// DecodeValue decodes one bencode value starting at pos and returns it
// along with the cursor just past the value. depth tracks recursion depth
// for the maxDepth guard; callers decoding a fresh top-level value pass 0.
func DecodeValue(data []byte, pos int, depth int) (*Value, int, error) {
	if depth > maxDepth {
		return nil, pos, &protoerr.MalformedBencode{Offset: pos, Reason: "nesting too deep"}
	}
	if pos >= len(data) {
		return nil, pos, &protoerr.UnexpectedEnd{Offset: pos}
	}

	switch c := data[pos]; {
	case c == 'i':
		return decodeInt(data, pos)
	case c == 'l':
		return decodeList(data, pos, depth)
	case c == 'd':
		return decodeDict(data, pos, depth)
	case c >= '0' && c <= '9':
		return decodeBytes(data, pos)
	default:
		return nil, pos, &protoerr.MalformedBencode{Offset: pos, Reason: "unknown token"}
	}
}

// decodeInt parses i<ascii signed integer>e. No leading zeros, no "-0";
// "i0e" is valid.
func decodeInt(data []byte, pos int) (*Value, int, error) {
	start := pos
	pos++ // skip 'i'

	end := pos
	for end < len(data) && data[end] != 'e' {
		end++
	}
	if end >= len(data) {
		return nil, pos, &protoerr.UnexpectedEnd{Offset: end}
	}

	digits := data[pos:end]
	if len(digits) == 0 {
		return nil, start, &protoerr.MalformedBencode{Offset: start, Reason: "empty integer"}
	}

	neg := false
	i := 0
	if digits[0] == '-' {
		neg = true
		i = 1
	}
	if i >= len(digits) {
		return nil, start, &protoerr.MalformedBencode{Offset: start, Reason: "malformed integer"}
	}
	if digits[i] == '0' && len(digits)-i > 1 {
		return nil, start, &protoerr.MalformedBencode{Offset: start, Reason: "leading zero in integer"}
	}
	if neg && digits[i] == '0' {
		return nil, start, &protoerr.MalformedBencode{Offset: start, Reason: "negative zero"}
	}

	var value int64
	for ; i < len(digits); i++ {
		d := digits[i]
		if d < '0' || d > '9' {
			return nil, start, &protoerr.MalformedBencode{Offset: start, Reason: "non-digit in integer"}
		}
		value = value*10 + int64(d-'0')
	}
	if neg {
		value = -value
	}

	return NewInt(value), end + 1, nil
}

// decodeBytes parses <nonneg integer>:<bytes of that length>.
func decodeBytes(data []byte, pos int) (*Value, int, error) {
	start := pos
	colon := pos
	for colon < len(data) && data[colon] != ':' {
		colon++
	}
	if colon >= len(data) {
		return nil, pos, &protoerr.UnexpectedEnd{Offset: colon}
	}

	lenDigits := data[pos:colon]
	if len(lenDigits) == 0 {
		return nil, start, &protoerr.MalformedBencode{Offset: start, Reason: "missing string length"}
	}
	if lenDigits[0] == '0' && len(lenDigits) > 1 {
		return nil, start, &protoerr.MalformedBencode{Offset: start, Reason: "leading zero in string length"}
	}

	var length int64
	for _, d := range lenDigits {
		if d < '0' || d > '9' {
			return nil, start, &protoerr.MalformedBencode{Offset: start, Reason: "non-digit in string length"}
		}
		length = length*10 + int64(d-'0')
	}

	dataStart := colon + 1
	dataEnd := dataStart + int(length)
	if length < 0 || dataEnd < dataStart || dataEnd > len(data) {
		return nil, start, &protoerr.UnexpectedEnd{Offset: dataStart}
	}

	buf := make([]byte, length)
	copy(buf, data[dataStart:dataEnd])
	return NewBytes(buf), dataEnd, nil
}

// decodeList parses l<values>e.
func decodeList(data []byte, pos int, depth int) (*Value, int, error) {
	start := pos
	pos++ // skip 'l'

	items := []*Value{}
	for {
		if pos >= len(data) {
			return nil, start, &protoerr.UnexpectedEnd{Offset: pos}
		}
		if data[pos] == 'e' {
			return &Value{Kind: KindList, List: items}, pos + 1, nil
		}

		item, next, err := DecodeValue(data, pos, depth+1)
		if err != nil {
			return nil, pos, err
		}
		items = append(items, item)
		pos = next
	}
}

// decodeDict parses d<key_value_pairs>e. Each key must itself decode as a
// Bytes value.
func decodeDict(data []byte, pos int, depth int) (*Value, int, error) {
	start := pos
	pos++ // skip 'd'

	dict := map[string]*Value{}
	for {
		if pos >= len(data) {
			return nil, start, &protoerr.UnexpectedEnd{Offset: pos}
		}
		if data[pos] == 'e' {
			return &Value{Kind: KindDict, Dict: dict}, pos + 1, nil
		}

		keyVal, next, err := decodeBytes(data, pos)
		if err != nil {
			return nil, pos, err
		}
		pos = next

		val, next, err := DecodeValue(data, pos, depth+1)
		if err != nil {
			return nil, pos, err
		}
		pos = next

		dict[string(keyVal.Bytes)] = val
	}
}
