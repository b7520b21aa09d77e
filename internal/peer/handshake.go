package peer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"time"

	"github.com/lvbealr/minitorrent/internal/protoerr"
)

const protocolName = "BitTorrent protocol"

// extensionBit is reserved byte index 5, bit 0x10: BEP 10 support.
const extensionBitIndex = 5
const extensionBit = 0x10

// handshakeWire is the fixed 68-byte on-the-wire layout sent and received
// during the initial handshake.
type handshakeWire struct {
	ProtocolNameLength byte
	Protocol           [19]byte
	Reserved           [8]byte
	InfoHash           [20]byte
	PeerID             [20]byte
}

// HandshakeResult carries what the client learns from a peer's handshake
// response, beyond simple accept/reject.
type HandshakeResult struct {
	RemotePeerID          [20]byte
	PeerSupportsExtensions bool
}

// doHandshake sends the 68-byte handshake over conn and validates the
// response's protocol string and info hash. advertiseExtensions sets
// reserved byte 5 bit 0x10 on the outgoing side; per the magnet-only
// policy this is only set for magnet-link flows.
func doHandshake(conn net.Conn, infoHash [20]byte, peerID string, advertiseExtensions bool, timeout time.Duration) (HandshakeResult, error) {
	var out handshakeWire
	out.ProtocolNameLength = byte(len(protocolName))
	copy(out.Protocol[:], protocolName)
	if advertiseExtensions {
		out.Reserved[extensionBitIndex] = extensionBit
	}
	out.InfoHash = infoHash
	copy(out.PeerID[:], peerID)

	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return HandshakeResult{}, &protoerr.TransportIO{Reason: err.Error()}
	}
	if err := binary.Write(conn, binary.BigEndian, &out); err != nil {
		return HandshakeResult{}, classifyIOError(err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return HandshakeResult{}, &protoerr.TransportIO{Reason: err.Error()}
	}
	var in handshakeWire
	if err := binary.Read(conn, binary.BigEndian, &in); err != nil {
		return HandshakeResult{}, classifyIOError(err)
	}

	if in.ProtocolNameLength != byte(len(protocolName)) || string(in.Protocol[:]) != protocolName {
		return HandshakeResult{}, &protoerr.HandshakeRejected{Reason: "unexpected protocol string"}
	}
	if !bytes.Equal(in.InfoHash[:], infoHash[:]) {
		return HandshakeResult{}, &protoerr.HandshakeRejected{Reason: "info hash mismatch"}
	}

	return HandshakeResult{
		RemotePeerID:           in.PeerID,
		PeerSupportsExtensions: in.Reserved[extensionBitIndex]&extensionBit != 0,
	}, nil
}

func classifyIOError(err error) error {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return &protoerr.TransportTimeout{Reason: err.Error()}
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &protoerr.TransportClosed{Reason: err.Error()}
	}
	return &protoerr.TransportIO{Reason: err.Error()}
}
