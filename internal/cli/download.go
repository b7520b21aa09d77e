package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/schollz/progressbar/v3"

	"github.com/lvbealr/minitorrent/internal/metainfo"
	"github.com/lvbealr/minitorrent/internal/peer"
	"github.com/lvbealr/minitorrent/internal/piece"
	"github.com/lvbealr/minitorrent/internal/tracker"
)

func cmdDownloadPiece(args []string) error {
	if len(args) < 4 || args[0] != "-o" {
		return usageError("usage: download_piece -o <output-path> <torrent-file> <piece-index>")
	}
	outputPath, torrentFile, indexArg := args[1], args[2], args[3]

	index, err := strconv.Atoi(indexArg)
	if err != nil {
		return usageError("invalid piece index: " + indexArg)
	}

	m, sess, err := connectAndPrepare(torrentFile)
	if err != nil {
		return err
	}
	defer sess.Close()

	data, err := piece.Download(sess, index, m.PieceLength(index), m.Info.PieceHashes[index])
	if err != nil {
		return err
	}

	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return err
	}
	fmt.Printf("Piece %d downloaded to %s.\n", index, outputPath)
	return nil
}

func cmdDownload(args []string) error {
	if len(args) < 3 || args[0] != "-o" {
		return usageError("usage: download -o <output-path> <torrent-file>")
	}
	outputPath, torrentFile := args[1], args[2]

	m, sess, err := connectAndPrepare(torrentFile)
	if err != nil {
		return err
	}
	defer sess.Close()

	numPieces := len(m.Info.PieceHashes)
	bar := progressbar.Default(int64(numPieces), "downloading "+m.Info.Name)

	fileData := make([]byte, 0, m.Info.Length)
	for i := 0; i < numPieces; i++ {
		data, err := piece.Download(sess, i, m.PieceLength(i), m.Info.PieceHashes[i])
		if err != nil {
			return err
		}
		fileData = append(fileData, data...)
		bar.Add(1)
	}

	return os.WriteFile(outputPath, fileData, 0644)
}

// connectAndPrepare reads and parses a torrent file, announces to its
// tracker, and brings a session with the first returned peer to READY.
// The reference flow tries only the first peer; see protoerr's
// TransportIO/TransportClosed kinds for what a retry-on-failure
// extension would catch.
func connectAndPrepare(torrentFile string) (*metainfo.Metainfo, *peer.Session, error) {
	data, err := os.ReadFile(torrentFile)
	if err != nil {
		return nil, nil, err
	}
	m, err := metainfo.Parse(data)
	if err != nil {
		return nil, nil, err
	}

	peers, err := tracker.AnnounceAny(m.Trackers(), tracker.Params{
		InfoHashRaw: m.InfoHashRaw,
		Left:        m.Info.Length,
	})
	if err != nil {
		return nil, nil, err
	}
	if len(peers) == 0 {
		return nil, nil, fmt.Errorf("tracker returned no peers")
	}

	sess, err := peer.Dial(peers[0].String(), m.InfoHashRaw, tracker.PeerID, false)
	if err != nil {
		return nil, nil, err
	}
	if err := sess.Prelude(); err != nil {
		sess.Close()
		return nil, nil, err
	}

	return m, sess, nil
}
