// Package tracker builds a compact-peer HTTP announce request and parses
// the compact response into a peer list.
package tracker

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/lvbealr/minitorrent/internal/bencode"
	"github.com/lvbealr/minitorrent/internal/protoerr"
)

// PeerID is this process's 20-ASCII-byte peer id, chosen once and reused
// for every announce and handshake for the lifetime of the process.
const PeerID = "00112233445566778899"

const clientPort = 6881

// Peer is a single (ipv4, port) pair as reported by a tracker's compact
// peer list.
type Peer struct {
	IP   string
	Port uint16
}

func (p Peer) String() string {
	return fmt.Sprintf("%s:%d", p.IP, p.Port)
}

// Params configures a tracker announce.
type Params struct {
	InfoHashRaw [20]byte
	Left        int64 // total file length, or any positive placeholder pre-metadata
}

// isUnreserved reports whether b is in the set of ASCII bytes passed
// through unescaped by PercentEncode, matching RFC 3986's unreserved set as specified for
// info_hash encoding.
func isUnreserved(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	case b == '-' || b == '_' || b == '.' || b == '~':
		return true
	default:
		return false
	}
}

// PercentEncode encodes raw bytes for use in a URL query value: unreserved
// bytes pass through, everything else becomes %HH in uppercase hex.
func PercentEncode(raw []byte) string {
	out := make([]byte, 0, len(raw)*3)
	for _, b := range raw {
		if isUnreserved(b) {
			out = append(out, b)
			continue
		}
		out = append(out, '%', hexDigit(b>>4), hexDigit(b&0xf))
	}
	return string(out)
}

func hexDigit(n byte) byte {
	if n < 10 {
		return '0' + n
	}
	return 'A' + (n - 10)
}

// BuildAnnounceURL composes the GET URL for a compact-peer announce
// against announce, per spec.md §4.2's parameter table.
func BuildAnnounceURL(announce string, p Params) (string, error) {
	u, err := url.Parse(announce)
	if err != nil {
		return "", fmt.Errorf("parsing announce url: %w", err)
	}

	q := u.Query()
	q.Set("peer_id", PeerID)
	q.Set("port", strconv.Itoa(clientPort))
	q.Set("uploaded", "0")
	q.Set("downloaded", "0")
	q.Set("left", strconv.FormatInt(p.Left, 10))
	q.Set("compact", "1")
	u.RawQuery = q.Encode()

	// info_hash must be percent-encoded per the raw-byte unreserved rule
	// (uppercase hex), not url.Values' own escaping, which would treat
	// the 20 raw hash bytes as text.
	return u.String() + "&info_hash=" + PercentEncode(p.InfoHashRaw[:]), nil
}

// AnnounceAny tries each tracker URL in order, returning the first
// successful compact peer list. This implements the tiered-tracker
// fallback a multi-tracker torrent's announce-list expresses: any error
// from one tracker advances to the next, and the last error is returned
// when every tracker fails.
func AnnounceAny(trackers []string, p Params) ([]Peer, error) {
	if len(trackers) == 0 {
		return nil, fmt.Errorf("no tracker urls to announce to")
	}

	var lastErr error
	for _, t := range trackers {
		peers, err := Announce(t, p)
		if err == nil {
			return peers, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// Announce performs the GET request against announce and returns the
// compact peer list.
func Announce(announce string, p Params) ([]Peer, error) {
	reqURL, err := BuildAnnounceURL(announce, p)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(reqURL)
	if err != nil {
		return nil, &protoerr.TransportIO{Reason: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &protoerr.TransportIO{Reason: err.Error()}
	}

	return ParseAnnounceResponse(body)
}

// ParseAnnounceResponse decodes a bencoded tracker response body and
// extracts the compact peer list.
func ParseAnnounceResponse(body []byte) ([]Peer, error) {
	val, err := bencode.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("decoding tracker response: %w", err)
	}
	if val.Kind != bencode.KindDict {
		return nil, &protoerr.MalformedBencode{Reason: "tracker response is not a dictionary"}
	}

	if failure := val.Get("failure reason"); failure != nil {
		return nil, &protoerr.TrackerFailure{Message: failure.Str()}
	}

	peersVal := val.Get("peers")
	if peersVal == nil || peersVal.Kind != bencode.KindBytes {
		return nil, &protoerr.MalformedBencode{Reason: "tracker response missing compact peers field"}
	}

	return ParseCompactPeers(peersVal.Bytes)
}

// ParseCompactPeers splits a compact peer byte string (6 bytes per peer:
// 4 octet IPv4 + 2 octet big-endian port) into a Peer list.
func ParseCompactPeers(raw []byte) ([]Peer, error) {
	if len(raw)%6 != 0 {
		return nil, &protoerr.MalformedBencode{Reason: "compact peers length is not a multiple of 6"}
	}

	peers := make([]Peer, 0, len(raw)/6)
	for i := 0; i < len(raw); i += 6 {
		ip := fmt.Sprintf("%d.%d.%d.%d", raw[i], raw[i+1], raw[i+2], raw[i+3])
		port := uint16(raw[i+4])<<8 | uint16(raw[i+5])
		peers = append(peers, Peer{IP: ip, Port: port})
	}
	return peers, nil
}
