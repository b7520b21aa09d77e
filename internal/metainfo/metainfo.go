// Package metainfo extracts the fields needed for download out of a
// .torrent file's bencoded bytes: announce URL(s), piece table, total
// length, and the exact bencoded substring of the info dictionary (the
// info-hash preimage).
package metainfo

import (
	"crypto/sha1"
	"fmt"

	"github.com/lvbealr/minitorrent/internal/bencode"
	"github.com/lvbealr/minitorrent/internal/protoerr"
)

// pieceHashLen is the fixed width of each SHA-1 entry packed into the
// info dict's "pieces" byte string.
const pieceHashLen = 20

// Info holds the fields of a torrent's info dictionary.
type Info struct {
	Name        string
	Length      int64
	PieceLength int64
	PieceHashes [][pieceHashLen]byte
}

// Metainfo holds everything extracted from a .torrent file for download.
type Metainfo struct {
	Announce     string
	AnnounceList [][]string
	InfoBytes    []byte // exact bencoded substring of the "info" value
	InfoHashRaw  [20]byte
	Info         Info
}

// InfoHashHex returns the 40-char lowercase hex encoding of InfoHashRaw.
func (m *Metainfo) InfoHashHex() string {
	return fmt.Sprintf("%x", m.InfoHashRaw)
}

// Trackers returns the announce URL followed by every announce-list tier,
// in order, for the caller to try in sequence.
func (m *Metainfo) Trackers() []string {
	var out []string
	seen := map[string]bool{}
	add := func(url string) {
		if url == "" || seen[url] {
			return
		}
		seen[url] = true
		out = append(out, url)
	}

	add(m.Announce)
	for _, tier := range m.AnnounceList {
		for _, url := range tier {
			add(url)
		}
	}
	return out
}

// Parse decodes a .torrent file's raw bytes into a Metainfo.
func Parse(data []byte) (*Metainfo, error) {
	root, err := bencode.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("parsing torrent file: %w", err)
	}
	if root.Kind != bencode.KindDict {
		return nil, &protoerr.MalformedBencode{Offset: 0, Reason: "torrent file is not a dictionary"}
	}

	infoBytes, err := bencode.ExtractTopLevelField(data, "info")
	if err != nil {
		return nil, fmt.Errorf("extracting info dict: %w", err)
	}

	infoVal, err := bencode.Decode(infoBytes)
	if err != nil {
		return nil, fmt.Errorf("decoding info dict: %w", err)
	}

	info, err := parseInfo(infoVal)
	if err != nil {
		return nil, err
	}

	m := &Metainfo{
		Announce:    root.Get("announce").Str(),
		InfoBytes:   infoBytes,
		InfoHashRaw: sha1.Sum(infoBytes),
		Info:        info,
	}

	if list := root.Get("announce-list"); list != nil && list.Kind == bencode.KindList {
		for _, tier := range list.List {
			if tier.Kind != bencode.KindList {
				continue
			}
			var urls []string
			for _, u := range tier.List {
				urls = append(urls, u.Str())
			}
			m.AnnounceList = append(m.AnnounceList, urls)
		}
	}

	return m, nil
}

func parseInfo(infoVal *bencode.Value) (Info, error) {
	if infoVal.Kind != bencode.KindDict {
		return Info{}, &protoerr.MalformedBencode{Reason: "info is not a dictionary"}
	}

	nameVal := infoVal.Get("name")
	lengthVal := infoVal.Get("length")
	pieceLengthVal := infoVal.Get("piece length")
	piecesVal := infoVal.Get("pieces")

	if lengthVal == nil || pieceLengthVal == nil || piecesVal == nil {
		return Info{}, &protoerr.MalformedBencode{Reason: "info dict missing required field"}
	}

	pieces := piecesVal.Bytes
	if len(pieces)%pieceHashLen != 0 {
		return Info{}, &protoerr.MalformedBencode{Reason: "pieces length is not a multiple of 20"}
	}

	hashes := make([][pieceHashLen]byte, len(pieces)/pieceHashLen)
	for i := range hashes {
		copy(hashes[i][:], pieces[i*pieceHashLen:(i+1)*pieceHashLen])
	}

	length := lengthVal.Int
	pieceLength := pieceLengthVal.Int
	wantPieces := (length + pieceLength - 1) / pieceLength
	if int64(len(hashes)) != wantPieces {
		return Info{}, &protoerr.MalformedBencode{
			Reason: fmt.Sprintf("piece count %d does not match ceil(length/piece_length) = %d", len(hashes), wantPieces),
		}
	}

	return Info{
		Name:        nameVal.Str(),
		Length:      length,
		PieceLength: pieceLength,
		PieceHashes: hashes,
	}, nil
}

// PieceLength returns the length of piece i, accounting for the final
// piece being shorter than Info.PieceLength.
func (m *Metainfo) PieceLength(i int) int64 {
	return PieceLengthAt(m.Info, i)
}

// PieceLengthAt returns the length of piece i within info, accounting
// for the final piece being shorter than info.PieceLength. Exposed as a
// free function (rather than a method on Info) because Info.PieceLength
// already names the declared per-piece length field.
func PieceLengthAt(info Info, i int) int64 {
	if i == len(info.PieceHashes)-1 {
		last := info.Length - int64(i)*info.PieceLength
		if last > 0 {
			return last
		}
	}
	return info.PieceLength
}

// ParseInfoValue decodes an already-extracted info dictionary value
// (for instance one reassembled over the wire via BEP 9) into an Info.
func ParseInfoValue(infoVal *bencode.Value) (Info, error) {
	return parseInfo(infoVal)
}
