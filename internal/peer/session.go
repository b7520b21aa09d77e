// Package peer implements the BitTorrent peer-wire session: the 68-byte
// handshake, length-prefixed message framing, the BEP 10 extended
// handshake, and the choke/bitfield/interested prelude that brings a
// connection to a state where piece or metadata requests are permitted.
package peer

import (
	"fmt"
	"net"
	"time"

	"github.com/lvbealr/minitorrent/internal/protoerr"
	"github.com/lvbealr/minitorrent/internal/tlog"
)

// State is a point in the session lifecycle described by the peer-wire
// state machine: CONNECTED -> HANDSHAKE_SENT -> HANDSHAKE_DONE ->
// [EXT_HANDSHAKE_SENT -> EXT_HANDSHAKE_DONE] -> BITFIELD_SEEN ->
// INTERESTED_SENT -> UNCHOKED -> READY, with any state able to fall to
// CLOSED on a transport error.
type State int

const (
	StateConnected State = iota
	StateHandshakeSent
	StateHandshakeDone
	StateExtHandshakeSent
	StateExtHandshakeDone
	StateBitfieldSeen
	StateInterestedSent
	StateUnchoked
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "CONNECTED"
	case StateHandshakeSent:
		return "HANDSHAKE_SENT"
	case StateHandshakeDone:
		return "HANDSHAKE_DONE"
	case StateExtHandshakeSent:
		return "EXT_HANDSHAKE_SENT"
	case StateExtHandshakeDone:
		return "EXT_HANDSHAKE_DONE"
	case StateBitfieldSeen:
		return "BITFIELD_SEEN"
	case StateInterestedSent:
		return "INTERESTED_SENT"
	case StateUnchoked:
		return "UNCHOKED"
	case StateReady:
		return "READY"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// defaultTimeout is the socket-level read/write deadline mandated for
// every blocking operation on the session's connection.
const defaultTimeout = 30 * time.Second

// Session is a single TCP connection to one peer, advanced through State
// by the methods below. It is not safe for concurrent use: the design is
// single-threaded, one connection serially driving one download.
type Session struct {
	conn net.Conn
	addr string

	infoHash [20]byte
	peerID   string
	timeout  time.Duration

	state State

	remotePeerID           [20]byte
	peerSupportsExtensions bool
	peerExtendedIDs        map[string]int
	metadataSize           int64
	haveMetadataSize       bool
	choked                 bool
	sawBitfield            bool
}

// Dial connects to addr and performs the 68-byte handshake.
// advertiseExtensions sets the BEP 10 capability bit on the outgoing
// side; per the reserved-bit policy this is only set for magnet flows.
func Dial(addr string, infoHash [20]byte, peerID string, advertiseExtensions bool) (*Session, error) {
	conn, err := net.DialTimeout("tcp", addr, defaultTimeout)
	if err != nil {
		return nil, &protoerr.TransportIO{Reason: err.Error()}
	}

	s := &Session{
		conn:     conn,
		addr:     addr,
		infoHash: infoHash,
		peerID:   peerID,
		timeout:  defaultTimeout,
		state:    StateConnected,
		choked:   true,
	}

	tlog.Info("peer %s: dialed, sending handshake", addr)
	s.state = StateHandshakeSent
	result, err := doHandshake(conn, infoHash, peerID, advertiseExtensions, s.timeout)
	if err != nil {
		s.fail(err)
		return nil, err
	}

	s.remotePeerID = result.RemotePeerID
	s.peerSupportsExtensions = result.PeerSupportsExtensions
	s.state = StateHandshakeDone
	tlog.Info("peer %s: handshake done, remote peer id=%x, extensions=%v", addr, s.remotePeerID, s.peerSupportsExtensions)

	return s, nil
}

func (s *Session) fail(err error) {
	tlog.Fail("peer %s: %v", s.addr, err)
	s.state = StateClosed
	s.conn.Close()
}

// State reports the session's current lifecycle state.
func (s *Session) State() State { return s.state }

// RemotePeerID returns the 20-byte peer id the remote side sent in its
// handshake response.
func (s *Session) RemotePeerID() [20]byte { return s.remotePeerID }

// PeerSupportsExtensions reports whether the peer set the BEP 10
// capability bit in its handshake response.
func (s *Session) PeerSupportsExtensions() bool { return s.peerSupportsExtensions }

// MetadataSize returns the peer-advertised info dictionary size and
// whether the extended handshake carried one.
func (s *Session) MetadataSize() (int64, bool) { return s.metadataSize, s.haveMetadataSize }

// UTMetadataExtID returns the id this client must use as ext_id when
// sending ut_metadata messages to the peer, as advertised in its
// extended handshake's m map.
func (s *Session) UTMetadataExtID() (int, bool) {
	id, ok := s.peerExtendedIDs["ut_metadata"]
	return id, ok
}

// readMessageTracked reads one frame directly off the connection (unlike
// ReadMessage, it surfaces keep-alives to the caller) and remembers if it
// was a Bitfield, since real peers send it unsolicited at any point after
// the handshake, including during the extended handshake or metadata
// exchange windows that run before Prelude.
func (s *Session) readMessageTracked() (Message, bool, error) {
	msg, ok, err := readMessage(s.conn, s.timeout)
	if err == nil && ok && msg.ID == MsgBitfield {
		s.sawBitfield = true
	}
	return msg, ok, err
}

// NegotiateExtensions performs the BEP 10 extended handshake. Requires
// both sides to have signaled extension support; the caller checks
// PeerSupportsExtensions before calling.
func (s *Session) NegotiateExtensions() error {
	if s.state != StateHandshakeDone {
		return fmt.Errorf("NegotiateExtensions called in state %s, want %s", s.state, StateHandshakeDone)
	}

	s.state = StateExtHandshakeSent
	payload := extendedHandshakePayload()
	if err := sendMessage(s.conn, s.timeout, MsgExtended, append([]byte{extHandshakeID}, payload...)); err != nil {
		s.fail(err)
		return err
	}

	for {
		msg, ok, err := s.readMessageTracked()
		if err != nil {
			s.fail(err)
			return err
		}
		if !ok {
			continue // keep-alive
		}
		if msg.ID != MsgExtended || len(msg.Payload) == 0 || msg.Payload[0] != extHandshakeID {
			continue // peer may interleave other messages (e.g. an unsolicited Bitfield) before its own extended handshake
		}

		info, err := parseExtendedHandshake(msg.Payload[1:])
		if err != nil {
			s.fail(err)
			return err
		}

		s.peerExtendedIDs = info.peerExtendedIDs
		s.metadataSize = info.metadataSize
		s.haveMetadataSize = info.haveMetadata
		s.state = StateExtHandshakeDone
		tlog.Info("peer %s: extended handshake done, m=%v metadata_size=%d", s.addr, s.peerExtendedIDs, s.metadataSize)
		return nil
	}
}

// Prelude waits for the peer's Bitfield (discarded), sends Interested,
// and blocks until Unchoke arrives, bringing the session to READY. If a
// Bitfield already arrived during NegotiateExtensions or a metadata
// fetch (peers routinely send it unsolicited right after the handshake,
// well before any magnet flow reaches this point), that one counts and
// Prelude moves straight to Interested instead of waiting for a second
// one that will never come.
func (s *Session) Prelude() error {
	if !s.sawBitfield {
		for {
			msg, ok, err := s.readMessageTracked()
			if err != nil {
				s.fail(err)
				return err
			}
			if !ok {
				continue
			}
			if msg.ID == MsgBitfield {
				tlog.Info("peer %s: bitfield received (%d bytes), discarding", s.addr, len(msg.Payload))
				break
			}
			// any other message in this window is silently dropped
		}
	} else {
		tlog.Info("peer %s: bitfield already seen, skipping wait", s.addr)
	}
	s.state = StateBitfieldSeen

	if err := sendMessage(s.conn, s.timeout, MsgInterested, nil); err != nil {
		s.fail(err)
		return err
	}
	s.state = StateInterestedSent
	tlog.Info("peer %s: sent interested", s.addr)

	for {
		msg, ok, err := readMessage(s.conn, s.timeout)
		if err != nil {
			s.fail(err)
			return err
		}
		if !ok {
			continue
		}
		if msg.ID == MsgUnchoke {
			s.choked = false
			s.state = StateUnchoked
			break
		}
		// any other message (e.g. Choke, Have) is silently dropped
	}

	s.state = StateReady
	tlog.Info("peer %s: ready", s.addr)
	return nil
}

// SendMessage sends one post-handshake frame. Exposed for the piece and
// metadata-over-wire components, which borrow the session exclusively
// for the duration of their own request/response protocol.
func (s *Session) SendMessage(id MessageID, payload []byte) error {
	if err := sendMessage(s.conn, s.timeout, id, payload); err != nil {
		s.fail(err)
		return err
	}
	return nil
}

// ReadMessage reads one frame, transparently absorbing keep-alives (ok
// is false, err is nil for those) so callers only see real messages. A
// Bitfield seen here (e.g. by metadatawire.Fetch, which borrows the
// session before Prelude runs) is remembered so Prelude doesn't wait for
// a second one.
func (s *Session) ReadMessage() (Message, error) {
	for {
		msg, ok, err := s.readMessageTracked()
		if err != nil {
			s.fail(err)
			return Message{}, err
		}
		if ok {
			return msg, nil
		}
	}
}

// Close releases the underlying connection.
func (s *Session) Close() error {
	s.state = StateClosed
	return s.conn.Close()
}

// NewTestSession builds a Session already in the READY state around an
// existing connection, for use by other packages' tests that need to
// drive the piece or metadata-over-wire request/response loops without
// re-running a full handshake.
func NewTestSession(conn net.Conn, timeout time.Duration) *Session {
	return &Session{
		conn:    conn,
		addr:    "test",
		timeout: timeout,
		state:   StateReady,
		choked:  false,
	}
}

// NewTestSessionWithExtensions is NewTestSession plus a pre-populated
// ut_metadata extended-handshake result, for metadata-over-wire tests
// that don't want to replay the extended handshake itself.
func NewTestSessionWithExtensions(conn net.Conn, timeout time.Duration, utMetadataExtID int, metadataSize int64) *Session {
	s := NewTestSession(conn, timeout)
	s.state = StateExtHandshakeDone
	s.peerExtendedIDs = map[string]int{"ut_metadata": utMetadataExtID}
	s.metadataSize = metadataSize
	s.haveMetadataSize = true
	return s
}
