package peer

import (
	"encoding/binary"
	"io"
	"net"
	"time"

	"github.com/lvbealr/minitorrent/internal/protoerr"
)

// MessageID identifies a post-handshake peer-wire message.
type MessageID uint8

const (
	MsgChoke         MessageID = 0
	MsgUnchoke       MessageID = 1
	MsgInterested    MessageID = 2
	MsgNotInterested MessageID = 3
	MsgHave          MessageID = 4
	MsgBitfield      MessageID = 5
	MsgRequest       MessageID = 6
	MsgPiece         MessageID = 7
	MsgCancel        MessageID = 8
	MsgExtended      MessageID = 20
)

// maxMessageLength guards against a hostile peer declaring an enormous
// length prefix and exhausting memory before the body is even read.
const maxMessageLength = 1 << 20 // 1 MiB, comfortably above a 16 KiB block plus headers

// Message is a parsed post-handshake frame. A zero-value Message with
// Payload == nil and ID == 0 received from readMessage's keep-alive case
// is distinguished by the ok bool it returns.
type Message struct {
	ID      MessageID
	Payload []byte
}

// sendMessage writes length_be||id||payload to conn.
func sendMessage(conn net.Conn, timeout time.Duration, id MessageID, payload []byte) error {
	buf := make([]byte, 4+1+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(payload)+1))
	buf[4] = byte(id)
	copy(buf[5:], payload)

	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return &protoerr.TransportIO{Reason: err.Error()}
	}
	if _, err := conn.Write(buf); err != nil {
		return classifyIOError(err)
	}
	return nil
}

// readMessage reads one frame. ok is false for a keep-alive (length 0),
// which callers consume and loop past without treating as an error.
func readMessage(conn net.Conn, timeout time.Duration) (Message, bool, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return Message{}, false, &protoerr.TransportIO{Reason: err.Error()}
	}

	var lengthBuf [4]byte
	if _, err := io.ReadFull(conn, lengthBuf[:]); err != nil {
		return Message{}, false, classifyIOError(err)
	}
	length := binary.BigEndian.Uint32(lengthBuf[:])

	if length == 0 {
		return Message{}, false, nil
	}
	if length > maxMessageLength {
		return Message{}, false, &protoerr.TransportIO{Reason: "peer declared an oversized message length"}
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(conn, body); err != nil {
		return Message{}, false, classifyIOError(err)
	}

	return Message{ID: MessageID(body[0]), Payload: body[1:]}, true, nil
}
