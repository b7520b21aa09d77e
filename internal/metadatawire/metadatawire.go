// Package metadatawire implements BEP 9's ut_metadata exchange: fetching
// the info dictionary from a peer over an already extension-negotiated
// session, for magnet-link downloads that have no .torrent file.
package metadatawire

import (
	"crypto/sha1"

	"github.com/lvbealr/minitorrent/internal/bencode"
	"github.com/lvbealr/minitorrent/internal/peer"
	"github.com/lvbealr/minitorrent/internal/protoerr"
	"github.com/lvbealr/minitorrent/internal/tlog"
)

// PieceSize is the fixed ut_metadata piece unit, 16384 bytes, except the
// last piece which may be shorter.
const PieceSize = 16384

const (
	msgTypeRequest = 0
	msgTypeData    = 1
	msgTypeReject  = 2
)

// Fetch downloads the full info dictionary bytes from sess using the
// peer's advertised ut_metadata ext id and metadata size, verifies the
// result hashes to infoHash, and decodes it.
func Fetch(sess *peer.Session, infoHash [20]byte) (*bencode.Value, []byte, error) {
	extID, ok := sess.UTMetadataExtID()
	if !ok {
		return nil, nil, &protoerr.UnsupportedPeer{Reason: "peer did not advertise ut_metadata"}
	}
	metadataSize, ok := sess.MetadataSize()
	if !ok {
		return nil, nil, &protoerr.UnsupportedPeer{Reason: "peer's extended handshake carried no metadata_size"}
	}

	numPieces := int((metadataSize + PieceSize - 1) / PieceSize)
	metadata := make([]byte, metadataSize)

	for p := 0; p < numPieces; p++ {
		if err := requestPiece(sess, extID, p); err != nil {
			return nil, nil, err
		}
		if err := awaitPiece(sess, p, metadata); err != nil {
			return nil, nil, err
		}
	}

	gotHash := sha1.Sum(metadata)
	if gotHash != infoHash {
		return nil, nil, &protoerr.MetadataHashMismatch{}
	}

	info, err := bencode.Decode(metadata)
	if err != nil {
		return nil, nil, err
	}

	tlog.Info("metadata: fetched and verified %d bytes across %d pieces", metadataSize, numPieces)
	return info, metadata, nil
}

func requestPiece(sess *peer.Session, extID int, p int) error {
	req := bencode.NewDict()
	req.Set("msg_type", bencode.NewInt(msgTypeRequest))
	req.Set("piece", bencode.NewInt(int64(p)))

	payload := append([]byte{byte(extID)}, bencode.Encode(req)...)
	return sess.SendMessage(peer.MsgExtended, payload)
}

// awaitPiece reads messages until piece p's data arrives, copying it
// into metadata at the right offset. Unrelated messages (including the
// peer's own metadata requests, msg_type 0) are ignored.
func awaitPiece(sess *peer.Session, p int, metadata []byte) error {
	for {
		msg, err := sess.ReadMessage()
		if err != nil {
			return err
		}
		if msg.ID != peer.MsgExtended || len(msg.Payload) == 0 {
			continue
		}

		// Only messages using our advertised id (1, matching
		// extended.go's localUTMetadataID) are ut_metadata traffic.
		if msg.Payload[0] != 1 {
			continue
		}

		dict, consumed, err := bencode.DecodeValue(msg.Payload[1:], 0, 0)
		if err != nil {
			continue // malformed extension payload from an unrelated message, skip
		}

		msgType := dict.Get("msg_type")
		if msgType == nil {
			continue
		}

		switch msgType.Int {
		case msgTypeReject:
			return &protoerr.MetadataRejected{Piece: p}

		case msgTypeRequest:
			continue // peer requesting metadata from us, not handled

		case msgTypeData:
			pieceVal := dict.Get("piece")
			if pieceVal == nil || int(pieceVal.Int) != p {
				continue // stray data for a different piece, keep waiting
			}
			data := msg.Payload[1+consumed:]
			begin := p * PieceSize
			copy(metadata[begin:], data)
			return nil
		}
	}
}
