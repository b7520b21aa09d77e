package cli

import (
	"os"

	"github.com/mitchellh/colorstring"

	"github.com/lvbealr/minitorrent/internal/metainfo"
	"github.com/lvbealr/minitorrent/internal/tracker"
)

func cmdPeers(args []string) error {
	if len(args) < 1 {
		return usageError("usage: peers <torrent-file>")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	m, err := metainfo.Parse(data)
	if err != nil {
		return err
	}

	peers, err := tracker.AnnounceAny(m.Trackers(), tracker.Params{
		InfoHashRaw: m.InfoHashRaw,
		Left:        m.Info.Length,
	})
	if err != nil {
		return err
	}

	for _, p := range peers {
		colorstring.Println("[green]" + p.String())
	}
	return nil
}
