package peer

import (
	"github.com/lvbealr/minitorrent/internal/bencode"
	"github.com/lvbealr/minitorrent/internal/protoerr"
)

// extHandshakeID is the fixed ext_id, always 0, for the extended
// handshake itself (BEP 10 §"Handshake").
const extHandshakeID = 0

// localUTMetadataID is the id this client advertises to peers for
// ut_metadata; peers wanting to send us ut_metadata messages use this id.
const localUTMetadataID = 1

// extendedHandshakePayload builds the bencoded {m: {ut_metadata: 1}} dict
// this client sends as its own capabilities advertisement.
func extendedHandshakePayload() []byte {
	m := bencode.NewDict()
	m.Set("ut_metadata", bencode.NewInt(localUTMetadataID))

	root := bencode.NewDict()
	root.Set("m", m)

	return bencode.Encode(root)
}

// extendedHandshakeInfo is what the client learns from the peer's
// extended handshake dictionary.
type extendedHandshakeInfo struct {
	peerExtendedIDs map[string]int
	metadataSize    int64
	haveMetadata    bool
}

func parseExtendedHandshake(payload []byte) (extendedHandshakeInfo, error) {
	val, err := bencode.Decode(payload)
	if err != nil {
		return extendedHandshakeInfo{}, &protoerr.MalformedBencode{Reason: "extended handshake: " + err.Error()}
	}
	if val.Kind != bencode.KindDict {
		return extendedHandshakeInfo{}, &protoerr.MalformedBencode{Reason: "extended handshake is not a dictionary"}
	}

	info := extendedHandshakeInfo{peerExtendedIDs: map[string]int{}}

	if m := val.Get("m"); m != nil && m.Kind == bencode.KindDict {
		for name, idVal := range m.Dict {
			if idVal.Kind == bencode.KindInt {
				info.peerExtendedIDs[name] = int(idVal.Int)
			}
		}
	}

	if sizeVal := val.Get("metadata_size"); sizeVal != nil && sizeVal.Kind == bencode.KindInt {
		info.metadataSize = sizeVal.Int
		info.haveMetadata = true
	}

	return info, nil
}
