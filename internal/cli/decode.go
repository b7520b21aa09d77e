package cli

import (
	"encoding/json"
	"fmt"

	"github.com/lvbealr/minitorrent/internal/bencode"
)

func cmdDecode(args []string) error {
	if len(args) < 1 {
		return usageError("usage: decode <bencoded-value>")
	}

	v, err := bencode.Decode([]byte(args[0]))
	if err != nil {
		return err
	}

	out, err := json.Marshal(toAny(v))
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
