// Package piece implements the pipelined block-transfer download of a
// single piece over an already-ready peer session: send every Request
// up front, reassemble Piece replies by offset, verify SHA-1.
package piece

import (
	"crypto/sha1"
	"encoding/binary"

	"github.com/lvbealr/minitorrent/internal/peer"
	"github.com/lvbealr/minitorrent/internal/protoerr"
	"github.com/lvbealr/minitorrent/internal/tlog"
)

// BlockSize is the fixed request unit, 2^14 bytes.
const BlockSize = 1 << 14

// Download fetches piece index from sess, expecting length bytes total
// and the given SHA-1 hash, returning the reassembled piece bytes.
func Download(sess *peer.Session, index int, length int64, expectedHash [20]byte) ([]byte, error) {
	numBlocks := int((length + BlockSize - 1) / BlockSize)

	tlog.Info("piece %d: requesting %d blocks (%d bytes)", index, numBlocks, length)

	for b := 0; b < numBlocks; b++ {
		begin := int64(b) * BlockSize
		blockLen := length - begin
		if blockLen > BlockSize {
			blockLen = BlockSize
		}

		payload := make([]byte, 12)
		binary.BigEndian.PutUint32(payload[0:4], uint32(index))
		binary.BigEndian.PutUint32(payload[4:8], uint32(begin))
		binary.BigEndian.PutUint32(payload[8:12], uint32(blockLen))

		if err := sess.SendMessage(peer.MsgRequest, payload); err != nil {
			return nil, err
		}
	}

	data := make([]byte, length)
	received := 0

	for received < numBlocks {
		msg, err := sess.ReadMessage()
		if err != nil {
			return nil, err
		}
		if msg.ID != peer.MsgPiece {
			continue
		}
		if len(msg.Payload) < 8 {
			return nil, &protoerr.TransportIO{Reason: "piece payload shorter than header"}
		}

		gotIndex := binary.BigEndian.Uint32(msg.Payload[0:4])
		begin := binary.BigEndian.Uint32(msg.Payload[4:8])
		block := msg.Payload[8:]

		if int(gotIndex) != index {
			continue // stray piece message for a different index, ignore
		}
		if int64(begin)+int64(len(block)) > length {
			return nil, &protoerr.TransportIO{Reason: "piece block exceeds declared piece length"}
		}

		copy(data[begin:], block)
		received++
	}

	hash := sha1.Sum(data)
	if hash != expectedHash {
		return nil, &protoerr.HashMismatch{PieceIndex: index}
	}

	tlog.Info("piece %d: verified", index)
	return data, nil
}
