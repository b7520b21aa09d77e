package cli

import (
	"fmt"
	"os"

	"github.com/mitchellh/colorstring"

	"github.com/lvbealr/minitorrent/internal/metainfo"
)

func cmdInfo(args []string) error {
	if len(args) < 1 {
		return usageError("usage: info <torrent-file>")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	m, err := metainfo.Parse(data)
	if err != nil {
		return err
	}

	colorstring.Println(fmt.Sprintf("[green]Tracker URL:[reset] %s", m.Announce))
	colorstring.Println(fmt.Sprintf("[green]Length:[reset] %d", m.Info.Length))
	colorstring.Println(fmt.Sprintf("[green]Info Hash:[reset] %s", m.InfoHashHex()))
	colorstring.Println(fmt.Sprintf("[green]Piece Length:[reset] %d", m.Info.PieceLength))
	colorstring.Println("[green]Pieces:[reset]")
	for _, h := range m.Info.PieceHashes {
		fmt.Printf("%x\n", h)
	}
	return nil
}
