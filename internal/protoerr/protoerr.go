// Package protoerr defines the typed error kinds surfaced by the core
// protocol engine (bencode codec, tracker client, peer session, piece and
// metadata downloaders). Every kind is fatal to the operation that raised
// it; callers do not get a local-recovery path, they get a typed error to
// inspect with errors.As.
package protoerr

import "fmt"

// MalformedBencode reports a grammar violation at a given byte offset.
type MalformedBencode struct {
	Offset int
	Reason string
}

func (e *MalformedBencode) Error() string {
	return fmt.Sprintf("malformed bencode at offset %d: %s", e.Offset, e.Reason)
}

// UnexpectedEnd reports that the input ended before a declared length was
// satisfied.
type UnexpectedEnd struct {
	Offset int
}

func (e *UnexpectedEnd) Error() string {
	return fmt.Sprintf("unexpected end of input at offset %d", e.Offset)
}

// BadMagnet reports a magnet URI that could not be parsed.
type BadMagnet struct {
	Reason string
}

func (e *BadMagnet) Error() string {
	return fmt.Sprintf("bad magnet link: %s", e.Reason)
}

// TrackerFailure reports the "failure reason" key from a tracker response.
type TrackerFailure struct {
	Message string
}

func (e *TrackerFailure) Error() string {
	return fmt.Sprintf("tracker failure: %s", e.Message)
}

// HandshakeRejected reports a protocol-string or info-hash mismatch during
// the BitTorrent handshake.
type HandshakeRejected struct {
	Reason string
}

func (e *HandshakeRejected) Error() string {
	return fmt.Sprintf("handshake rejected: %s", e.Reason)
}

// UnsupportedPeer reports that the remote peer lacks a capability this
// operation requires (extension bit, ut_metadata).
type UnsupportedPeer struct {
	Reason string
}

func (e *UnsupportedPeer) Error() string {
	return fmt.Sprintf("unsupported peer: %s", e.Reason)
}

// MetadataRejected reports msg_type == 2 (reject) from a ut_metadata peer.
type MetadataRejected struct {
	Piece int
}

func (e *MetadataRejected) Error() string {
	return fmt.Sprintf("peer rejected metadata piece %d", e.Piece)
}

// MetadataHashMismatch reports that reassembled metadata does not hash to
// the magnet link's info hash.
type MetadataHashMismatch struct{}

func (e *MetadataHashMismatch) Error() string {
	return "metadata sha1 does not match magnet info hash"
}

// HashMismatch reports that a downloaded piece's sha1 does not match the
// expected hash from the metainfo piece table.
type HashMismatch struct {
	PieceIndex int
}

func (e *HashMismatch) Error() string {
	return fmt.Sprintf("piece %d: hash mismatch", e.PieceIndex)
}

// TransportClosed reports a peer closing the connection mid-read.
type TransportClosed struct {
	Reason string
}

func (e *TransportClosed) Error() string {
	return fmt.Sprintf("transport closed: %s", e.Reason)
}

// TransportTimeout reports a socket-level read/write deadline trip.
type TransportTimeout struct {
	Reason string
}

func (e *TransportTimeout) Error() string {
	return fmt.Sprintf("transport timeout: %s", e.Reason)
}

// TransportIO reports any other transport-level I/O failure.
type TransportIO struct {
	Reason string
}

func (e *TransportIO) Error() string {
	return fmt.Sprintf("transport error: %s", e.Reason)
}
