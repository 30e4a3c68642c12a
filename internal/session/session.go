// Package session implements the relay server's peer bookkeeping: who has
// connected, which pairs of peers are relaying to each other, and how a
// client-originated message fans out to that client's peers. It sits on
// top of internal/transport for the reliability mechanics and knows only
// about addresses, player IDs, and the handful of message kinds a relay
// needs to interpret rather than merely forward.
package session

import (
	"net"
	"sync"

	"github.com/rs/xid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/duelcore/netcode/internal/metrics"
	"github.com/duelcore/netcode/internal/transport"
	"github.com/duelcore/netcode/internal/wire"
)

// PlayerID is the server-assigned slot index a client is known by to its
// peers (ServerPlayerID in the wire protocol's PeerList payload).
type PlayerID byte

// Relay tracks every connected client and the reliability state needed
// to talk to each of them.
type Relay struct {
	conn Conn
	tr   *transport.Transport
	log  *zap.Logger

	mu           sync.Mutex
	addrToPlayer map[string]PlayerID
	playerToAddr map[PlayerID]net.Addr
	peers        map[string]*transport.Peer
	// connections is bidirectional: once two players are peered, a
	// message from either fans out to the other.
	connections map[string][]net.Addr
	nextPlayer  byte

	// preSessionLimiter gates the registration of addrs the relay has
	// not seen before, so an unauthenticated flood can't grow the
	// addr/player tables without bound. GetPeerList replies draw on the
	// same budget.
	preSessionLimiter *rate.Limiter
}

// Conn is the socket surface Relay needs.
type Conn interface {
	WriteTo(p []byte, addr net.Addr) (int, error)
}

// New returns an empty Relay bound to conn.
func New(conn Conn, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{
		conn:              conn,
		tr:                transport.New(conn, log),
		log:               log,
		addrToPlayer:      make(map[string]PlayerID),
		playerToAddr:      make(map[PlayerID]net.Addr),
		peers:             make(map[string]*transport.Peer),
		connections:       make(map[string][]net.Addr),
		preSessionLimiter: rate.NewLimiter(rate.Limit(20), 40),
	}
}

func addrKey(addr net.Addr) string { return addr.String() }

func (r *Relay) peerFor(addr net.Addr) *transport.Peer {
	key := addrKey(addr)
	if p, ok := r.peers[key]; ok {
		return p
	}
	p := transport.NewPeer(addr)
	r.peers[key] = p
	return p
}

// createConnection registers a never-seen addr with a fresh PlayerID,
// mirroring the relay's incoming-datagram-implies-connection model.
func (r *Relay) createConnection(addr net.Addr) PlayerID {
	id := PlayerID(r.nextPlayer)
	r.nextPlayer++
	r.addrToPlayer[addrKey(addr)] = id
	r.playerToAddr[id] = addr
	r.peerFor(addr)
	sessionID := xid.New()
	metrics.SessionsStarted.Inc()
	r.log.Info("new connection",
		zap.String("addr", addr.String()),
		zap.Uint8("player_id", uint8(id)),
		zap.String("session_id", sessionID.String()))
	return id
}

// peerAddrs establishes bidirectional relaying between a and b, and asks b
// (the one already hosting a running simulation) to hand its world state
// to a.
func (r *Relay) peerAddrs(a, b net.Addr) {
	r.connections[addrKey(a)] = append(r.connections[addrKey(a)], b)
	r.connections[addrKey(b)] = append(r.connections[addrKey(b)], a)
	r.log.Info("peered players", zap.String("a", a.String()), zap.String("b", b.String()))

	if err := r.tr.SendReliable(r.peerFor(b), wire.KindRequestWorld, nil); err != nil {
		r.log.Warn("request world send failed", zap.Error(err))
	}
}

// HandleDatagram is the relay's single entry point: decode, update
// reliability state, and react to whatever kind of message resulted.
func (r *Relay) HandleDatagram(addr net.Addr, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, known := r.addrToPlayer[addrKey(addr)]; !known {
		if !r.preSessionLimiter.Allow() {
			return
		}
		r.createConnection(addr)
	}
	peer := r.peerFor(addr)

	inbound, ok, err := r.tr.HandleDatagram(peer, data)
	if err != nil {
		r.log.Warn("handle datagram failed", zap.String("addr", addr.String()), zap.Error(err))
		return
	}
	if !ok {
		return
	}
	r.process(addr, inbound)
}

func (r *Relay) process(src net.Addr, in transport.Inbound) {
	switch in.Kind {
	case wire.KindGetPeerList:
		if !r.preSessionLimiter.Allow() {
			return
		}
		r.sendPeerList(src)

	case wire.KindClientWorld:
		metrics.WorldStatesRelayed.Inc()
		r.broadcastReliable(src, wire.KindServerWorld, in.Message.WorldState)

	case wire.KindClientInputs:
		metrics.InputsRelayed.Add(float64(len(in.Message.Inputs)))
		r.broadcastInputs(src, in.Message.Inputs)

	case wire.KindConnectToPeer:
		other, ok := r.playerToAddr[PlayerID(in.Message.PeerID)]
		if !ok {
			r.log.Warn("connect-to-peer for unknown player id", zap.Uint8("id", in.Message.PeerID))
			return
		}
		r.peerAddrs(src, other)

	default:
		r.log.Debug("unhandled relay message kind", zap.String("kind", in.Kind.String()))
	}
}

func (r *Relay) sendPeerList(dst net.Addr) {
	self := r.addrToPlayer[addrKey(dst)]
	ids := make([]byte, 0, len(r.addrToPlayer))
	for addr, id := range r.addrToPlayer {
		if addr != addrKey(dst) && id != self {
			ids = append(ids, byte(id))
		}
	}
	payload, err := wire.EncodePayload(wire.Message{Kind: wire.KindPeerList, PeerIDs: ids})
	if err != nil {
		r.log.Error("encode peer list failed", zap.Error(err))
		return
	}
	if err := r.tr.SendReliable(r.peerFor(dst), wire.KindPeerList, payload); err != nil {
		r.log.Warn("send peer list failed", zap.Error(err))
	}
}

func (r *Relay) broadcastReliable(src net.Addr, kind wire.Kind, payload []byte) {
	for _, dst := range r.connections[addrKey(src)] {
		if err := r.tr.SendReliable(r.peerFor(dst), kind, payload); err != nil {
			r.log.Warn("broadcast reliable failed", zap.String("dst", dst.String()), zap.Error(err))
		}
	}
}

func (r *Relay) broadcastInputs(src net.Addr, inputs wire.BufferedInputs) {
	for _, dst := range r.connections[addrKey(src)] {
		peer := r.peerFor(dst)
		for _, fi := range inputs {
			peer.InputsOut().AddInput(fi.Frame, fi.Set)
		}
		payload, err := wire.EncodePayload(wire.Message{Kind: wire.KindServerInputs, Inputs: peer.InputsOut().Snapshot()})
		if err != nil {
			r.log.Error("encode server inputs failed", zap.Error(err))
			continue
		}
		if err := r.tr.SendUnreliable(peer, wire.KindServerInputs, payload); err != nil {
			r.log.Warn("broadcast inputs failed", zap.String("dst", dst.String()), zap.Error(err))
		}
	}
}

// RetryTick runs one retransmission sweep across every known peer,
// dropping and logging any that exceeded their retry budget.
func (r *Relay) RetryTick() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, peer := range r.peers {
		exhausted, err := r.tr.RetrySweep(peer)
		if err != nil {
			r.log.Warn("retry sweep error", zap.String("peer", key), zap.Error(err))
		}
		if len(exhausted) > 0 {
			r.log.Warn("peer exceeded retry budget, dropping", zap.String("peer", key), zap.Int("lost_messages", len(exhausted)))
			metrics.PeersLost.Inc()
			r.dropPeer(peer.Addr)
		}
	}
}

// dropPeer dissolves every peering involving addr and removes its session
// records, matching the connection-timeout policy of §4.2: a peer whose
// pending-ack table stops advancing is declared lost and GCed.
func (r *Relay) dropPeer(addr net.Addr) {
	key := addrKey(addr)
	for other, peers := range r.connections {
		kept := peers[:0]
		for _, p := range peers {
			if addrKey(p) != key {
				kept = append(kept, p)
			}
		}
		r.connections[other] = kept
	}
	delete(r.connections, key)

	if id, ok := r.addrToPlayer[key]; ok {
		delete(r.playerToAddr, id)
	}
	delete(r.addrToPlayer, key)
	delete(r.peers, key)
}

// PlayerCount reports how many distinct clients have connected.
func (r *Relay) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.addrToPlayer)
}
