// Package magnet decodes magnet:?xt=urn:btih:...&tr=...&x.pe=... links into
// the pieces needed to start a metadata-exchange download: raw info hash,
// tracker URL, and optional seed peer address.
package magnet

import (
	"encoding/hex"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/lvbealr/minitorrent/internal/protoerr"
)

const btihPrefix = "urn:btih:"

// Link holds the fields recognized from a magnet URI.
type Link struct {
	InfoHashRaw [20]byte
	TrackerURL  string
	SeedPeer    *net.TCPAddr // nil if x.pe was absent
}

// Parse decodes a magnet:?... URI. Fails with BadMagnet if xt is absent or
// its hex info hash is malformed.
func Parse(link string) (*Link, error) {
	if !strings.HasPrefix(link, "magnet:?") {
		return nil, &protoerr.BadMagnet{Reason: "missing magnet:? prefix"}
	}

	query := strings.TrimPrefix(link, "magnet:?")

	var l Link
	var haveXT bool

	for _, param := range strings.Split(query, "&") {
		k, v, ok := strings.Cut(param, "=")
		if !ok {
			continue
		}

		switch k {
		case "xt":
			if !strings.HasPrefix(v, btihPrefix) {
				continue
			}
			hexHash := strings.TrimPrefix(v, btihPrefix)
			raw, err := hex.DecodeString(hexHash)
			if err != nil || len(raw) != 20 {
				return nil, &protoerr.BadMagnet{Reason: "malformed btih info hash"}
			}
			copy(l.InfoHashRaw[:], raw)
			haveXT = true

		case "tr":
			decoded, err := url.QueryUnescape(v)
			if err != nil {
				return nil, &protoerr.BadMagnet{Reason: "malformed tr parameter: " + err.Error()}
			}
			l.TrackerURL = decoded

		case "x.pe":
			addr, err := parseSeedPeer(v)
			if err != nil {
				return nil, err
			}
			l.SeedPeer = addr

		default:
			// dn and any other key is ignored.
		}
	}

	if !haveXT {
		return nil, &protoerr.BadMagnet{Reason: "missing xt=urn:btih: parameter"}
	}

	return &l, nil
}

func parseSeedPeer(hostport string) (*net.TCPAddr, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return nil, &protoerr.BadMagnet{Reason: "malformed x.pe peer address: " + err.Error()}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, &protoerr.BadMagnet{Reason: "malformed x.pe port: " + err.Error()}
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, &protoerr.BadMagnet{Reason: "malformed x.pe host: " + host}
	}
	return &net.TCPAddr{IP: ip, Port: port}, nil
}
