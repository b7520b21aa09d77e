package cli

import (
	"fmt"
	"os"

	"github.com/lvbealr/minitorrent/internal/metainfo"
	"github.com/lvbealr/minitorrent/internal/peer"
	"github.com/lvbealr/minitorrent/internal/tracker"
)

func cmdHandshake(args []string) error {
	if len(args) < 2 {
		return usageError("usage: handshake <torrent-file> <ip>:<port>")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	m, err := metainfo.Parse(data)
	if err != nil {
		return err
	}

	// The plain (non-magnet) handshake never advertises extension
	// support: the reserved-bit policy (spec's open question on §4.4)
	// restricts that signal to magnet flows, which are the only ones
	// that need metadata-over-wire.
	sess, err := peer.Dial(args[1], m.InfoHashRaw, tracker.PeerID, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	fmt.Printf("Peer ID: %x\n", sess.RemotePeerID())
	return nil
}
