package metadatawire

import (
	"crypto/sha1"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/lvbealr/minitorrent/internal/bencode"
	"github.com/lvbealr/minitorrent/internal/peer"
)

func newSessionWithExtensions(t *testing.T, extID int, metadataSize int64) (*peer.Session, net.Conn) {
	t.Helper()
	clientConn, remoteConn := net.Pipe()
	s := peer.NewTestSessionWithExtensions(clientConn, 5*time.Second, extID, metadataSize)
	return s, remoteConn
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

func readExtendedMessage(t *testing.T, conn net.Conn) (extID int, payload []byte) {
	t.Helper()
	var lengthBuf [4]byte
	if _, err := readFull(conn, lengthBuf[:]); err != nil {
		t.Fatalf("reading length: %v", err)
	}
	body := make([]byte, binary.BigEndian.Uint32(lengthBuf[:]))
	if _, err := readFull(conn, body); err != nil {
		t.Fatalf("reading body: %v", err)
	}
	// body[0] is the peer-wire message id (Extended == 20), body[1] is ext_id
	return int(body[1]), body[2:]
}

func writeExtendedMessage(t *testing.T, conn net.Conn, ourExtID int, bencoded []byte) {
	t.Helper()
	payload := append([]byte{byte(ourExtID)}, bencoded...)
	buf := make([]byte, 4+1+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(payload)+1))
	buf[4] = 20 // Extended
	copy(buf[5:], payload)
	if _, err := conn.Write(buf); err != nil {
		t.Fatalf("writing extended message: %v", err)
	}
}

// bencodedMetadata returns a bencoded dictionary exactly size bytes long,
// so that Fetch's final decode of the reassembled metadata succeeds.
func bencodedMetadata(t *testing.T, size int) []byte {
	t.Helper()
	for n := size; n >= 0; n-- {
		pad := make([]byte, n)
		for i := range pad {
			pad[i] = byte(i)
		}
		d := bencode.NewDict()
		d.Set("pieces", bencode.NewBytes(pad))
		if enc := bencode.Encode(d); len(enc) == size {
			return enc
		}
	}
	t.Fatalf("cannot build %d bytes of bencoded metadata", size)
	return nil
}

func TestFetchReassemblesAndVerifies(t *testing.T) {
	const metadataLen = PieceSize + 50
	metadata := bencodedMetadata(t, metadataLen)
	infoHash := sha1.Sum(metadata)

	sess, remote := newSessionWithExtensions(t, 9, metadataLen)

	done := make(chan struct{})
	var gotErr error
	var gotInfo *bencode.Value
	var gotRaw []byte
	go func() {
		gotInfo, gotRaw, gotErr = Fetch(sess, infoHash)
		close(done)
	}()

	for p := 0; p < 2; p++ {
		extID, reqPayload := readExtendedMessage(t, remote)
		if extID != 9 {
			t.Fatalf("request ext_id = %d, want 9", extID)
		}
		req, _, err := bencode.DecodeValue(reqPayload, 0, 0)
		if err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Get("msg_type").Int != msgTypeRequest {
			t.Fatalf("msg_type = %d, want %d", req.Get("msg_type").Int, msgTypeRequest)
		}

		piece := int(req.Get("piece").Int)
		begin := piece * PieceSize
		end := begin + PieceSize
		if end > len(metadata) {
			end = len(metadata)
		}

		resp := bencode.NewDict()
		resp.Set("msg_type", bencode.NewInt(msgTypeData))
		resp.Set("piece", bencode.NewInt(int64(piece)))
		encoded := append(bencode.Encode(resp), metadata[begin:end]...)
		writeExtendedMessage(t, remote, 1, encoded)
	}

	<-done
	if gotErr != nil {
		t.Fatalf("Fetch: %v", gotErr)
	}
	if len(gotRaw) != metadataLen {
		t.Fatalf("got %d raw bytes, want %d", len(gotRaw), metadataLen)
	}
	if gotInfo == nil {
		t.Fatal("gotInfo is nil")
	}
}

func writeRawMessage(t *testing.T, conn net.Conn, id peer.MessageID, payload []byte) {
	t.Helper()
	buf := make([]byte, 4+1+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(payload)+1))
	buf[4] = byte(id)
	copy(buf[5:], payload)
	if _, err := conn.Write(buf); err != nil {
		t.Fatalf("writing message: %v", err)
	}
}

// TestFetchObservesUnsolicitedBitfield mirrors a real peer, which sends
// its Bitfield unsolicited at any point after the handshake, including
// interleaved with the metadata exchange this package drives before
// Session.Prelude ever runs. Prelude must not then hang waiting for a
// second Bitfield that will never arrive.
func TestFetchObservesUnsolicitedBitfield(t *testing.T) {
	const metadataLen = PieceSize
	metadata := bencodedMetadata(t, metadataLen)
	infoHash := sha1.Sum(metadata)

	sess, remote := newSessionWithExtensions(t, 9, metadataLen)

	fetchDone := make(chan struct{})
	var gotErr error
	go func() {
		_, _, gotErr = Fetch(sess, infoHash)
		close(fetchDone)
	}()

	extID, reqPayload := readExtendedMessage(t, remote)
	if extID != 9 {
		t.Fatalf("request ext_id = %d, want 9", extID)
	}
	req, _, err := bencode.DecodeValue(reqPayload, 0, 0)
	if err != nil {
		t.Fatalf("decoding request: %v", err)
	}
	if req.Get("piece").Int != 0 {
		t.Fatalf("piece = %d, want 0", req.Get("piece").Int)
	}

	writeRawMessage(t, remote, 5 /* Bitfield */, []byte{0xFF})

	resp := bencode.NewDict()
	resp.Set("msg_type", bencode.NewInt(msgTypeData))
	resp.Set("piece", bencode.NewInt(0))
	encoded := append(bencode.Encode(resp), metadata...)
	writeExtendedMessage(t, remote, 1, encoded)

	<-fetchDone
	if gotErr != nil {
		t.Fatalf("Fetch: %v", gotErr)
	}

	preludeDone := make(chan error, 1)
	go func() { preludeDone <- sess.Prelude() }()

	// No second Bitfield follows; Prelude must go straight to Interested.
	var lengthBuf [4]byte
	if _, err := readFull(remote, lengthBuf[:]); err != nil {
		t.Fatalf("reading interested length: %v", err)
	}
	body := make([]byte, binary.BigEndian.Uint32(lengthBuf[:]))
	if _, err := readFull(remote, body); err != nil {
		t.Fatalf("reading interested body: %v", err)
	}
	if peer.MessageID(body[0]) != peer.MsgInterested {
		t.Fatalf("got message id %d, want Interested", body[0])
	}

	writeRawMessage(t, remote, 1 /* Unchoke */, nil)

	if err := <-preludeDone; err != nil {
		t.Fatalf("Prelude: %v", err)
	}
}

func TestFetchRejected(t *testing.T) {
	sess, remote := newSessionWithExtensions(t, 9, PieceSize)

	done := make(chan struct{})
	var gotErr error
	go func() {
		_, _, gotErr = Fetch(sess, [20]byte{})
		close(done)
	}()

	readExtendedMessage(t, remote)

	resp := bencode.NewDict()
	resp.Set("msg_type", bencode.NewInt(msgTypeReject))
	resp.Set("piece", bencode.NewInt(0))
	writeExtendedMessage(t, remote, 1, bencode.Encode(resp))

	<-done
	if gotErr == nil {
		t.Fatal("expected MetadataRejected, got nil")
	}
}
