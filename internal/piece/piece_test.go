package piece

import (
	"crypto/sha1"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/lvbealr/minitorrent/internal/peer"
)

// newReadySession builds a peer.Session already in the READY state,
// wired to one end of a net.Pipe, so Download's request/response loop
// can be driven from the test without a real TCP peer.
func newReadySession(t *testing.T) (*peer.Session, net.Conn) {
	t.Helper()
	clientConn, remoteConn := net.Pipe()
	s := peer.NewTestSession(clientConn, 5*time.Second)
	return s, remoteConn
}

func readRequest(t *testing.T, conn net.Conn) (index, begin, length uint32) {
	t.Helper()
	var lengthBuf [4]byte
	if _, err := readFull(conn, lengthBuf[:]); err != nil {
		t.Fatalf("reading length: %v", err)
	}
	body := make([]byte, binary.BigEndian.Uint32(lengthBuf[:]))
	if _, err := readFull(conn, body); err != nil {
		t.Fatalf("reading body: %v", err)
	}
	// body[0] is the message id (Request == 6)
	return binary.BigEndian.Uint32(body[1:5]), binary.BigEndian.Uint32(body[5:9]), binary.BigEndian.Uint32(body[9:13])
}

func writePiece(t *testing.T, conn net.Conn, index, begin uint32, block []byte) {
	t.Helper()
	payload := make([]byte, 8+len(block))
	binary.BigEndian.PutUint32(payload[0:4], index)
	binary.BigEndian.PutUint32(payload[4:8], begin)
	copy(payload[8:], block)

	buf := make([]byte, 4+1+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(payload)+1))
	buf[4] = 7 // Piece
	copy(buf[5:], payload)
	if _, err := conn.Write(buf); err != nil {
		t.Fatalf("writing piece: %v", err)
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func TestDownloadPipelinesAndReassembles(t *testing.T) {
	sess, remote := newReadySession(t)

	const length = BlockSize + 100 // two blocks: one full, one partial
	payload := make([]byte, length)
	for i := range payload {
		payload[i] = byte(i)
	}
	expectedHash := sha1.Sum(payload)

	done := make(chan struct{})
	var gotErr error
	var gotData []byte
	go func() {
		gotData, gotErr = Download(sess, 0, length, expectedHash)
		close(done)
	}()

	// Both Request messages must be sent before either Piece is read back
	// (pipelining): drain both requests first.
	i0, b0, l0 := readRequest(t, remote)
	i1, b1, l1 := readRequest(t, remote)
	if i0 != 0 || i1 != 0 {
		t.Fatalf("request indices = %d, %d, want both 0", i0, i1)
	}
	if b0 != 0 || l0 != BlockSize {
		t.Errorf("first request = begin %d length %d, want 0, %d", b0, l0, BlockSize)
	}
	if b1 != BlockSize || l1 != 100 {
		t.Errorf("second request = begin %d length %d, want %d, 100", b1, l1, BlockSize)
	}

	// Reply out of order: second block first, then first.
	writePiece(t, remote, 0, BlockSize, payload[BlockSize:])
	writePiece(t, remote, 0, 0, payload[:BlockSize])

	<-done
	if gotErr != nil {
		t.Fatalf("Download: %v", gotErr)
	}
	if len(gotData) != length {
		t.Fatalf("got %d bytes, want %d", len(gotData), length)
	}
	for i := range payload {
		if gotData[i] != payload[i] {
			t.Fatalf("byte %d = %d, want %d", i, gotData[i], payload[i])
		}
	}
}

func TestDownloadHashMismatch(t *testing.T) {
	sess, remote := newReadySession(t)

	const length = 10
	var wrongHash [20]byte

	done := make(chan struct{})
	var gotErr error
	go func() {
		_, gotErr = Download(sess, 0, length, wrongHash)
		close(done)
	}()

	readRequest(t, remote)
	writePiece(t, remote, 0, 0, make([]byte, length))

	<-done
	if gotErr == nil {
		t.Fatal("expected HashMismatch, got nil")
	}
}
