// Package wire implements the datagram header, discriminant-tagged message
// set, and chunking rules described by the protocol: a fixed header
// followed by a discriminant byte then a kind-specific payload, with
// logical messages larger than one datagram split into reliable chunks.
package wire

import (
	"encoding/binary"
	"errors"
	"math/rand"

	"github.com/duelcore/netcode/internal/seqnum"
)

// MaxUDPPayload is the Internet-safe UDP datagram ceiling this protocol
// targets (avoids IP fragmentation on the public Internet).
const MaxUDPPayload = 508

// HeaderLen is the fixed header size: salt(1) + reliable(1) + seq(2) +
// base-seq(2) + total-chunks(2) + discriminant(1).
const HeaderLen = 9

// MaxPayload is the largest kind-specific payload a single datagram can
// carry once the header is accounted for.
const MaxPayload = MaxUDPPayload - HeaderLen

var (
	ErrTooShort     = errors.New("wire: datagram shorter than header")
	ErrPayloadTooBig = errors.New("wire: payload exceeds single-datagram capacity")
	ErrUnknownKind  = errors.New("wire: unknown discriminant")
)

// Header is the fixed preamble on every datagram.
type Header struct {
	Salt        byte
	Reliable    bool
	SeqNum      seqnum.Num
	BaseSeqNum  seqnum.Num
	TotalChunks uint16
	Kind        Kind
}

// IsChunk reports whether this datagram is one chunk of a larger logical
// message (as opposed to a complete, possibly-empty message on its own).
func (h Header) IsChunk() bool {
	return h.TotalChunks > 0
}

func encodeHeader(h Header, buf []byte) {
	buf[0] = h.Salt
	if h.Reliable {
		buf[1] = 1
	} else {
		buf[1] = 0
	}
	binary.LittleEndian.PutUint16(buf[2:4], uint16(h.SeqNum))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(h.BaseSeqNum))
	binary.LittleEndian.PutUint16(buf[6:8], h.TotalChunks)
	buf[8] = byte(h.Kind)
}

func decodeHeader(buf []byte) Header {
	return Header{
		Salt:        buf[0],
		Reliable:    buf[1] != 0,
		SeqNum:      seqnum.Num(binary.LittleEndian.Uint16(buf[2:4])),
		BaseSeqNum:  seqnum.Num(binary.LittleEndian.Uint16(buf[4:6])),
		TotalChunks: binary.LittleEndian.Uint16(buf[6:8]),
		Kind:        Kind(buf[8]),
	}
}

// randomSalt fills the NAT-freshness padding byte. Not a security property:
// the receiver never validates it, it just avoids every datagram having an
// identical leading byte on the wire.
func randomSalt() byte {
	return byte(rand.Intn(256))
}
