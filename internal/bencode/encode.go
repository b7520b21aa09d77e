package bencode

import (
	"bytes"
	"fmt"
	"sort"
)

// Encode produces canonical bencoding for v: dict keys sorted ascending by
// raw byte comparison, integers in minimal ASCII form, byte strings
// length-prefixed. The walk is iterative (an explicit work stack), not
// recursive, so canonical output for a deeply nested value never grows the
// Go call stack — output determinism is load-bearing here since callers
// hash it.
func Encode(v *Value) []byte {
	var buf bytes.Buffer

	// task is either "emit this value" (val != nil) or "emit this
	// already-known closing/literal token" (lit != "").
	type task struct {
		val *Value
		lit string
	}

	stack := []task{{val: v}}
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if t.lit != "" {
			buf.WriteString(t.lit)
			continue
		}

		switch t.val.Kind {
		case KindInt:
			fmt.Fprintf(&buf, "i%de", t.val.Int)

		case KindBytes:
			writeByteString(&buf, t.val.Bytes)

		case KindList:
			buf.WriteByte('l')
			stack = append(stack, task{lit: "e"})
			for i := len(t.val.List) - 1; i >= 0; i-- {
				stack = append(stack, task{val: t.val.List[i]})
			}

		case KindDict:
			buf.WriteByte('d')
			stack = append(stack, task{lit: "e"})

			keys := make([]string, 0, len(t.val.Dict))
			for k := range t.val.Dict {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			for i := len(keys) - 1; i >= 0; i-- {
				k := keys[i]
				stack = append(stack, task{val: t.val.Dict[k]})
				stack = append(stack, task{val: NewString(k)})
			}
		}
	}

	return buf.Bytes()
}

func writeByteString(buf *bytes.Buffer, b []byte) {
	fmt.Fprintf(buf, "%d:", len(b))
	buf.Write(b)
}
