package transport

import (
	"fmt"
	"net"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/duelcore/netcode/internal/seqnum"
	"github.com/duelcore/netcode/internal/wire"
)

// Conn is the minimal socket surface Transport needs, satisfied by
// *net.UDPConn and by test doubles/netsim shims alike.
type Conn interface {
	WriteTo(p []byte, addr net.Addr) (int, error)
}

// Peer is one remote endpoint's reliability state: its own send sequence
// counter, the datagrams it has outstanding acks for, and its input
// cumulative-ack state in both directions. Chunk reassembly for the peer
// is kept by the Transport's Assembler, keyed by the peer's address.
type Peer struct {
	Addr net.Addr

	sendSeq   uint32 // atomic, next seqnum.Num to use for a reliable send
	pending   *PendingTable
	inputsOut *InputSender
	inputsIn  *InputReceiver

	// limiter throttles how many datagrams from this peer are accepted
	// per second, a flood gate independent of the session-level one
	// guarding pre-handshake traffic.
	limiter *rate.Limiter
}

// NewPeer returns reliability state for a freshly connected remote addr.
func NewPeer(addr net.Addr) *Peer {
	return &Peer{
		Addr:      addr,
		pending:   NewPendingTable(),
		inputsOut: NewInputSender(),
		inputsIn:  NewInputReceiver(),
		limiter:   rate.NewLimiter(rate.Limit(240), 480),
	}
}

func (p *Peer) nextSeq() seqnum.Num {
	return seqnum.Num(uint16(atomic.AddUint32(&p.sendSeq, 1) - 1))
}

// InputsOut exposes this peer's outbound input cumulative-ack sender so a
// relay can feed it inputs re-addressed to a different destination peer.
func (p *Peer) InputsOut() *InputSender {
	return p.inputsOut
}

// Transport multiplexes send/receive for however many Peers the caller
// registers over a single underlying socket. It performs chunking,
// retransmission, ack bookkeeping, and input cumulative-ack tracking;
// everything above it (session/relay, gameloop) only sees decoded
// wire.Message values.
type Transport struct {
	conn      Conn
	assembler *Assembler
	log       *zap.Logger
}

// New wraps conn. log may be nil, in which case zap.NewNop() is used.
func New(conn Conn, log *zap.Logger) *Transport {
	if log == nil {
		log = zap.NewNop()
	}
	return &Transport{conn: conn, assembler: NewAssembler(), log: log}
}

// peerKey must uniquely identify a Peer for chunk-assembly bookkeeping;
// net.Addr.String() is sufficient since each UDP peer gets its own Peer.
func peerKey(addr net.Addr) string {
	return addr.String()
}

// SendReliable transmits a kind-tagged payload that must arrive, chunking
// it first if it doesn't fit in one datagram and registering every
// resulting datagram for retry until acked.
func (t *Transport) SendReliable(peer *Peer, kind wire.Kind, payload []byte) error {
	if !wire.NeedsChunking(payload) {
		seq := peer.nextSeq()
		datagram, err := wire.EncodeDatagram(kind, true, seq, payload)
		if err != nil {
			return fmt.Errorf("transport: encode reliable datagram: %w", err)
		}
		peer.pending.Store(seq, datagram)
		_, err = t.conn.WriteTo(datagram, peer.Addr)
		return err
	}

	base := peer.nextSeq()
	for i := uint16(1); i < requiredChunks(payload); i++ {
		peer.nextSeq() // reserve the contiguous seq range the chunk set occupies
	}
	chunks := wire.BuildChunks(kind, base, payload)
	for _, c := range chunks {
		h, _, _ := wire.DecodeDatagram(c)
		peer.pending.Store(h.SeqNum, c)
		if _, err := t.conn.WriteTo(c, peer.Addr); err != nil {
			return fmt.Errorf("transport: send chunk: %w", err)
		}
	}
	return nil
}

func requiredChunks(payload []byte) uint16 {
	n := (len(payload) + wire.MaxPayload - 1) / wire.MaxPayload
	if n == 0 {
		n = 1
	}
	return uint16(n)
}

// SendUnreliable transmits a kind-tagged payload with no ack/retry
// bookkeeping — used for acks, the input stream, and GetPeerList, which
// are cheap to just send again.
func (t *Transport) SendUnreliable(peer *Peer, kind wire.Kind, payload []byte) error {
	seq := peer.nextSeq()
	datagram, err := wire.EncodeDatagram(kind, false, seq, payload)
	if err != nil {
		return fmt.Errorf("transport: encode unreliable datagram: %w", err)
	}
	_, err = t.conn.WriteTo(datagram, peer.Addr)
	return err
}

// SendAck acknowledges a single reliable seq-num back to its sender.
func (t *Transport) SendAck(peer *Peer, ackKind wire.Kind, seq seqnum.Num) error {
	payload, err := wire.EncodePayload(wire.Message{Kind: ackKind, AckSeq: seq})
	if err != nil {
		return err
	}
	return t.SendUnreliable(peer, ackKind, payload)
}

// SendInputsTick resends this peer's entire unacked local input buffer
// for the inputKind (ClientInputs or ServerInputs) direction, including
// frame, as the new current frame's input.
func (t *Transport) SendInputsTick(peer *Peer, inputKind wire.Kind, frame uint32, set wire.InputSet) error {
	peer.inputsOut.AddInput(frame, set)
	payload, err := wire.EncodePayload(wire.Message{Kind: inputKind, Inputs: peer.inputsOut.Snapshot()})
	if err != nil {
		return err
	}
	return t.SendUnreliable(peer, inputKind, payload)
}

// AckInputsThrough sends a cumulative input ack for everything received
// from peer so far.
func (t *Transport) AckInputsThrough(peer *Peer, ackKind wire.Kind) error {
	ack, ok := peer.inputsIn.AckValue()
	if !ok {
		return nil
	}
	return t.SendAck(peer, ackKind, ack)
}

// RetrySweep resends every reliable datagram to peer that's past due and
// reports any that exceeded MaxRetries (the caller should treat the peer
// as unreachable and tear it down).
func (t *Transport) RetrySweep(peer *Peer) (exhausted []seqnum.Num, err error) {
	retries, exhausted := peer.pending.DueForRetry()
	for _, r := range retries {
		if _, werr := t.conn.WriteTo(r.Data, peer.Addr); werr != nil {
			t.log.Warn("retry send failed", zap.Error(werr), zap.String("peer", peer.Addr.String()))
			err = werr
		}
	}
	return exhausted, err
}

// Inbound is one fully-decoded, application-ready message arriving from a
// peer, with ack/chunk bookkeeping already applied.
type Inbound struct {
	Kind    wire.Kind
	Message wire.Message
}

// HandleDatagram processes one raw datagram from peer: routes acks into
// the pending table, feeds chunks into the assembler, tracks input
// cumulative-ack state, and returns the application message once it's
// complete (immediately for non-chunked kinds, once reassembled for
// chunked ones). Returns ok=false for a datagram that's only a partial
// chunk, a duplicate ack, or a message the rate limiter dropped.
func (t *Transport) HandleDatagram(peer *Peer, raw []byte) (Inbound, bool, error) {
	if !peer.limiter.Allow() {
		return Inbound{}, false, nil
	}

	h, body, err := wire.DecodeDatagram(raw)
	if err != nil {
		return Inbound{}, false, fmt.Errorf("transport: decode: %w", err)
	}

	if h.IsChunk() {
		full, complete, aerr := t.assembler.AddChunk(peerKey(peer.Addr), h, body)
		if aerr != nil || !complete {
			return Inbound{}, false, aerr
		}
		body = full
	}

	switch h.Kind {
	case wire.KindServerAck, wire.KindClientAck:
		msg, derr := wire.DecodePayload(h.Kind, body)
		if derr != nil {
			return Inbound{}, false, derr
		}
		// Acks are ambiguous by kind alone: the same KindServerAck/
		// KindClientAck wire shape carries both an input stream's
		// cumulative frame number and a chunk's seq-num (the general
		// reliable path). Try the input stream first; only fall back to
		// the general pending-ack table when it doesn't recognize the
		// value as an outstanding input frame.
		acked := peer.inputsOut.TryAckThrough(msg.AckSeq, approxCurrentFrame(peer)) ||
			peer.pending.Ack(msg.AckSeq)
		return Inbound{Kind: h.Kind, Message: msg}, acked, nil

	case wire.KindClientInputs, wire.KindServerInputs:
		msg, derr := wire.DecodePayload(h.Kind, body)
		if derr != nil {
			return Inbound{}, false, derr
		}
		fresh := peer.inputsIn.Accept(msg.Inputs)
		if len(fresh) == 0 {
			return Inbound{}, false, nil
		}
		msg.Inputs = fresh
		return Inbound{Kind: h.Kind, Message: msg}, true, nil

	default:
		if h.Reliable {
			if err := t.SendAck(peer, ackKindFor(h.Kind), h.SeqNum); err != nil {
				t.log.Warn("ack send failed", zap.Error(err))
			}
		}
		msg, derr := wire.DecodePayload(h.Kind, body)
		if derr != nil {
			return Inbound{}, false, derr
		}
		return Inbound{Kind: h.Kind, Message: msg}, true, nil
	}
}

func approxCurrentFrame(peer *Peer) uint32 {
	if n := peer.inputsOut.Pending(); n > 0 {
		return peer.inputsOut.unacked[n-1].Frame
	}
	return 0
}

// ackKindFor returns the ack kind a message of kind expects in response:
// clients ack server-originated reliable sends with ClientAck, servers
// ack client-originated ones with ServerAck.
func ackKindFor(kind wire.Kind) wire.Kind {
	if kind.IsServerOriginated() {
		return wire.KindClientAck
	}
	return wire.KindServerAck
}
