package wire

import (
	"fmt"

	"github.com/duelcore/netcode/internal/seqnum"
)

// Message is the decoded, kind-tagged payload of a single logical datagram
// (which may have travelled as one or several chunks on the wire). Only the
// field(s) relevant to Kind are populated.
type Message struct {
	Kind       Kind
	WorldState []byte         // ClientWorld, ServerWorld
	Inputs     BufferedInputs // ClientInputs, ServerInputs
	AckSeq     seqnum.Num     // ServerAck, ClientAck
	PeerIDs    []byte         // PeerList
	PeerID     byte           // ConnectToPeer
}

// EncodePayload marshals the kind-specific payload bytes for m. It does not
// know about compression or chunking — callers compress world-state blobs
// (CompressWorldState) before calling this, and split payloads exceeding
// MaxPayload into chunks via BuildChunks.
func EncodePayload(m Message) ([]byte, error) {
	switch m.Kind {
	case KindGetPeerList, KindGetOwnID, KindRequestWorld:
		return nil, nil
	case KindClientWorld, KindServerWorld:
		return m.WorldState, nil
	case KindClientInputs, KindServerInputs:
		return PackBufferedInputs(m.Inputs)
	case KindServerAck, KindClientAck:
		buf := make([]byte, 2)
		buf[0] = byte(m.AckSeq)
		buf[1] = byte(m.AckSeq >> 8)
		return buf, nil
	case KindPeerList:
		out := make([]byte, 1+len(m.PeerIDs))
		out[0] = byte(len(m.PeerIDs))
		copy(out[1:], m.PeerIDs)
		return out, nil
	case KindConnectToPeer:
		return []byte{m.PeerID}, nil
	default:
		return nil, fmt.Errorf("wire: %w: %d", ErrUnknownKind, m.Kind)
	}
}

// DecodePayload unmarshals a kind-specific payload. World-state blobs are
// returned exactly as given — decompression, like compression, is the
// caller's concern.
func DecodePayload(kind Kind, payload []byte) (Message, error) {
	m := Message{Kind: kind}
	switch kind {
	case KindGetPeerList, KindGetOwnID, KindRequestWorld:
		return m, nil
	case KindClientWorld, KindServerWorld:
		m.WorldState = append([]byte(nil), payload...)
		return m, nil
	case KindClientInputs, KindServerInputs:
		inputs, err := UnpackBufferedInputs(payload)
		if err != nil {
			return Message{}, err
		}
		m.Inputs = inputs
		return m, nil
	case KindServerAck, KindClientAck:
		if len(payload) < 2 {
			return Message{}, fmt.Errorf("wire: ack payload too short: %d bytes", len(payload))
		}
		m.AckSeq = seqnum.Num(uint16(payload[0]) | uint16(payload[1])<<8)
		return m, nil
	case KindPeerList:
		if len(payload) < 1 {
			return Message{}, fmt.Errorf("wire: peer list payload empty")
		}
		count := int(payload[0])
		if len(payload) < 1+count {
			return Message{}, fmt.Errorf("wire: peer list payload truncated")
		}
		m.PeerIDs = append([]byte(nil), payload[1:1+count]...)
		return m, nil
	case KindConnectToPeer:
		if len(payload) < 1 {
			return Message{}, fmt.Errorf("wire: connect-to-peer payload empty")
		}
		m.PeerID = payload[0]
		return m, nil
	default:
		return Message{}, fmt.Errorf("wire: %w: %d", ErrUnknownKind, kind)
	}
}

// EncodeDatagram builds a single, non-chunked datagram: header + payload.
// Returns ErrPayloadTooBig if payload doesn't fit — the caller must chunk.
func EncodeDatagram(kind Kind, reliable bool, seq seqnum.Num, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, ErrPayloadTooBig
	}
	h := Header{
		Salt:     randomSalt(),
		Reliable: reliable,
		SeqNum:   seq,
		Kind:     kind,
	}
	buf := make([]byte, HeaderLen+len(payload))
	encodeHeader(h, buf)
	copy(buf[HeaderLen:], payload)
	return buf, nil
}

// DecodeDatagram splits a raw datagram into its header and trailing bytes
// (a complete payload for non-chunked datagrams, or one chunk's share of a
// logical payload when h.IsChunk()).
func DecodeDatagram(data []byte) (Header, []byte, error) {
	if len(data) < HeaderLen {
		return Header{}, nil, ErrTooShort
	}
	h := decodeHeader(data)
	return h, data[HeaderLen:], nil
}

// BuildChunks splits payload into reliable chunks of at most MaxPayload
// bytes each, one per datagram, with consecutive wrapped seq-nums starting
// at baseSeq. Chunking is only valid for reliable messages (§4.1).
func BuildChunks(kind Kind, baseSeq seqnum.Num, payload []byte) [][]byte {
	total := (len(payload) + MaxPayload - 1) / MaxPayload
	if total == 0 {
		total = 1
	}
	chunks := make([][]byte, 0, total)
	for i := 0; i < total; i++ {
		start := i * MaxPayload
		end := start + MaxPayload
		if end > len(payload) {
			end = len(payload)
		}
		h := Header{
			Salt:        randomSalt(),
			Reliable:    true,
			SeqNum:      seqnum.Add(baseSeq, uint16(i)),
			BaseSeqNum:  baseSeq,
			TotalChunks: uint16(total),
			Kind:        kind,
		}
		buf := make([]byte, HeaderLen+(end-start))
		encodeHeader(h, buf)
		copy(buf[HeaderLen:], payload[start:end])
		chunks = append(chunks, buf)
	}
	return chunks
}

// NeedsChunking reports whether payload must be split across multiple
// datagrams to respect MaxPayload.
func NeedsChunking(payload []byte) bool {
	return len(payload) > MaxPayload
}
