package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/mitchellh/colorstring"
	"github.com/schollz/progressbar/v3"

	"github.com/lvbealr/minitorrent/internal/magnet"
	"github.com/lvbealr/minitorrent/internal/metadatawire"
	"github.com/lvbealr/minitorrent/internal/metainfo"
	"github.com/lvbealr/minitorrent/internal/peer"
	"github.com/lvbealr/minitorrent/internal/piece"
	"github.com/lvbealr/minitorrent/internal/protoerr"
	"github.com/lvbealr/minitorrent/internal/tracker"
)

// magnetLeftPlaceholder is sent as the tracker "left" parameter for a
// magnet announce before the info dictionary (and so the real length)
// is known. Any positive value satisfies tracker compliance here.
const magnetLeftPlaceholder = 999

func cmdMagnetParse(args []string) error {
	if len(args) < 1 {
		return usageError("usage: magnet_parse <magnet-link>")
	}
	link, err := magnet.Parse(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Tracker URL: %s\n", link.TrackerURL)
	fmt.Printf("Info Hash: %x\n", link.InfoHashRaw)
	return nil
}

// resolvePeerAddr returns the seed peer from x.pe if present, otherwise
// announces to the tracker and uses the first peer returned.
func resolvePeerAddr(link *magnet.Link) (string, error) {
	if link.SeedPeer != nil {
		return link.SeedPeer.String(), nil
	}

	peers, err := tracker.Announce(link.TrackerURL, tracker.Params{
		InfoHashRaw: link.InfoHashRaw,
		Left:        magnetLeftPlaceholder,
	})
	if err != nil {
		return "", err
	}
	if len(peers) == 0 {
		return "", fmt.Errorf("tracker returned no peers")
	}
	return peers[0].String(), nil
}

func cmdMagnetHandshake(args []string) error {
	if len(args) < 1 {
		return usageError("usage: magnet_handshake <magnet-link>")
	}
	link, err := magnet.Parse(args[0])
	if err != nil {
		return err
	}

	addr, err := resolvePeerAddr(link)
	if err != nil {
		return err
	}

	sess, err := peer.Dial(addr, link.InfoHashRaw, tracker.PeerID, true)
	if err != nil {
		return err
	}
	defer sess.Close()

	fmt.Printf("Peer ID: %x\n", sess.RemotePeerID())

	if !sess.PeerSupportsExtensions() {
		return nil
	}
	if err := sess.NegotiateExtensions(); err != nil {
		return err
	}
	if id, ok := sess.UTMetadataExtID(); ok {
		fmt.Printf("Peer Metadata Extension ID: %d\n", id)
	}
	return nil
}

func cmdMagnetInfo(args []string) error {
	if len(args) < 1 {
		return usageError("usage: magnet_info <magnet-link>")
	}
	link, err := magnet.Parse(args[0])
	if err != nil {
		return err
	}

	sess, info, err := connectAndFetchMetadata(link)
	if err != nil {
		return err
	}
	defer sess.Close()

	colorstring.Println(fmt.Sprintf("[green]Tracker URL:[reset] %s", link.TrackerURL))
	colorstring.Println(fmt.Sprintf("[green]Length:[reset] %d", info.Length))
	colorstring.Println(fmt.Sprintf("[green]Info Hash:[reset] %x", link.InfoHashRaw))
	colorstring.Println(fmt.Sprintf("[green]Piece Length:[reset] %d", info.PieceLength))
	colorstring.Println("[green]Pieces:[reset]")
	for _, h := range info.PieceHashes {
		fmt.Printf("%x\n", h)
	}
	return nil
}

// connectAndFetchMetadata dials the peer, completes the handshake and
// BEP 10 extension negotiation, and fetches the info dictionary over
// BEP 9, leaving the session in READY for a subsequent piece download.
func connectAndFetchMetadata(link *magnet.Link) (*peer.Session, *metainfo.Info, error) {
	addr, err := resolvePeerAddr(link)
	if err != nil {
		return nil, nil, err
	}

	sess, err := peer.Dial(addr, link.InfoHashRaw, tracker.PeerID, true)
	if err != nil {
		return nil, nil, err
	}

	if !sess.PeerSupportsExtensions() {
		sess.Close()
		return nil, nil, &protoerr.UnsupportedPeer{Reason: "peer does not support the extension protocol"}
	}
	if err := sess.NegotiateExtensions(); err != nil {
		sess.Close()
		return nil, nil, err
	}

	infoVal, _, err := metadatawire.Fetch(sess, link.InfoHashRaw)
	if err != nil {
		sess.Close()
		return nil, nil, err
	}

	info, err := metainfo.ParseInfoValue(infoVal)
	if err != nil {
		sess.Close()
		return nil, nil, err
	}

	if err := sess.Prelude(); err != nil {
		sess.Close()
		return nil, nil, err
	}

	return sess, &info, nil
}

func cmdMagnetDownloadPiece(args []string) error {
	if len(args) < 4 || args[0] != "-o" {
		return usageError("usage: magnet_download_piece -o <output-path> <magnet-link> <piece-index>")
	}
	outputPath, linkArg, indexArg := args[1], args[2], args[3]

	index, err := strconv.Atoi(indexArg)
	if err != nil {
		return usageError("invalid piece index: " + indexArg)
	}

	link, err := magnet.Parse(linkArg)
	if err != nil {
		return err
	}

	sess, info, err := connectAndFetchMetadata(link)
	if err != nil {
		return err
	}
	defer sess.Close()

	data, err := piece.Download(sess, index, metainfo.PieceLengthAt(*info, index), info.PieceHashes[index])
	if err != nil {
		return err
	}

	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return err
	}
	fmt.Printf("Piece %d downloaded to %s.\n", index, outputPath)
	return nil
}

func cmdMagnetDownload(args []string) error {
	if len(args) < 3 || args[0] != "-o" {
		return usageError("usage: magnet_download -o <output-path> <magnet-link>")
	}
	outputPath, linkArg := args[1], args[2]

	link, err := magnet.Parse(linkArg)
	if err != nil {
		return err
	}

	sess, info, err := connectAndFetchMetadata(link)
	if err != nil {
		return err
	}
	defer sess.Close()

	bar := progressbar.Default(int64(len(info.PieceHashes)), "downloading "+info.Name)

	fileData := make([]byte, 0, info.Length)
	for i := range info.PieceHashes {
		data, err := piece.Download(sess, i, metainfo.PieceLengthAt(*info, i), info.PieceHashes[i])
		if err != nil {
			return err
		}
		fileData = append(fileData, data...)
		bar.Add(1)
	}

	return os.WriteFile(outputPath, fileData, 0644)
}
