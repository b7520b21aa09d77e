package metainfo

import (
	"crypto/sha1"
	"testing"

	"github.com/lvbealr/minitorrent/internal/bencode"
)

func buildTorrent(t *testing.T, length, pieceLength int64, numPieces int) ([]byte, []byte) {
	t.Helper()

	info := bencode.NewDict()
	info.Set("name", bencode.NewString("sample.iso"))
	info.Set("length", bencode.NewInt(length))
	info.Set("piece length", bencode.NewInt(pieceLength))

	pieces := make([]byte, 0, numPieces*20)
	for i := 0; i < numPieces; i++ {
		h := sha1.Sum([]byte{byte(i)})
		pieces = append(pieces, h[:]...)
	}
	info.Set("pieces", bencode.NewBytes(pieces))

	infoBytes := bencode.Encode(info)

	// The outer dict is built by hand around the already-encoded info
	// bytes, rather than nesting it as a Value and re-encoding, so the
	// raw info substring Parse extracts is byte-identical to infoBytes.
	announce := bencode.Encode(bencode.NewString("http://example.com/announce"))
	raw := append([]byte("d8:announce"), announce...)
	raw = append(raw, []byte("4:info")...)
	raw = append(raw, infoBytes...)
	raw = append(raw, 'e')

	return raw, infoBytes
}

func TestParsePieceCoverage(t *testing.T) {
	const length = 92063
	const pieceLength = 32768
	const numPieces = 3 // ceil(92063/32768) == 3

	data, infoBytes := buildTorrent(t, length, pieceLength, numPieces)

	m, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got := len(m.Info.PieceHashes); got != numPieces {
		t.Errorf("piece count = %d, want %d", got, numPieces)
	}

	wantHash := sha1.Sum(infoBytes)
	if m.InfoHashRaw != wantHash {
		t.Errorf("info hash = %x, want %x", m.InfoHashRaw, wantHash)
	}
	if len(m.InfoHashHex()) != 40 {
		t.Errorf("info hash hex length = %d, want 40", len(m.InfoHashHex()))
	}

	lastPieceLen := m.PieceLength(numPieces - 1)
	wantLast := int64(length) - 2*int64(pieceLength)
	if lastPieceLen != wantLast {
		t.Errorf("last piece length = %d, want %d", lastPieceLen, wantLast)
	}
}

func TestParseRejectsMismatchedPieceCount(t *testing.T) {
	// 2 piece hashes declared but length/piece_length implies 3.
	data, _ := buildTorrent(t, 92063, 32768, 2)
	if _, err := Parse(data); err == nil {
		t.Error("expected error for mismatched piece count, got nil")
	}
}
