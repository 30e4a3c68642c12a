package session

import (
	"net"
	"testing"

	"github.com/duelcore/netcode/internal/wire"
)

type fakeConn struct {
	sent []sentDatagram
}

type sentDatagram struct {
	addr net.Addr
	data []byte
}

func (f *fakeConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	cp := append([]byte(nil), p...)
	f.sent = append(f.sent, sentDatagram{addr: addr, data: cp})
	return len(p), nil
}

func addrN(n int) net.Addr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4000 + n}
}

func (f *fakeConn) kindsSentTo(addr net.Addr) []wire.Kind {
	var kinds []wire.Kind
	for _, d := range f.sent {
		if d.addr.String() == addr.String() {
			h, _, err := wire.DecodeDatagram(d.data)
			if err != nil {
				continue
			}
			kinds = append(kinds, h.Kind)
		}
	}
	return kinds
}

func TestHandleDatagramRegistersNewConnection(t *testing.T) {
	conn := &fakeConn{}
	r := New(conn, nil)

	datagram, _ := wire.EncodeDatagram(wire.KindGetPeerList, false, 0, nil)
	r.HandleDatagram(addrN(1), datagram)

	if r.PlayerCount() != 1 {
		t.Fatalf("PlayerCount() = %d, want 1", r.PlayerCount())
	}
}

func TestGetPeerListExcludesSelf(t *testing.T) {
	conn := &fakeConn{}
	r := New(conn, nil)

	d1, _ := wire.EncodeDatagram(wire.KindGetPeerList, false, 0, nil)
	r.HandleDatagram(addrN(1), d1)
	d2, _ := wire.EncodeDatagram(wire.KindGetPeerList, false, 0, nil)
	r.HandleDatagram(addrN(2), d2)

	conn.sent = nil
	d3, _ := wire.EncodeDatagram(wire.KindGetPeerList, false, 1, nil)
	r.HandleDatagram(addrN(1), d3)

	found := false
	for _, d := range conn.sent {
		if d.addr.String() != addrN(1).String() {
			continue
		}
		h, body, err := wire.DecodeDatagram(d.data)
		if err != nil || h.Kind != wire.KindPeerList {
			continue
		}
		msg, err := wire.DecodePayload(wire.KindPeerList, body)
		if err != nil {
			t.Fatalf("DecodePayload: %v", err)
		}
		for _, id := range msg.PeerIDs {
			if PlayerID(id) == r.addrToPlayer[addrN(1).String()] {
				t.Error("peer list included the requester's own id")
			}
		}
		found = true
	}
	if !found {
		t.Fatal("no PeerList reply observed")
	}
}

func TestConnectToPeerEstablishesBidirectionalRelay(t *testing.T) {
	conn := &fakeConn{}
	r := New(conn, nil)

	hello1, _ := wire.EncodeDatagram(wire.KindGetPeerList, false, 0, nil)
	r.HandleDatagram(addrN(1), hello1)
	hello2, _ := wire.EncodeDatagram(wire.KindGetPeerList, false, 0, nil)
	r.HandleDatagram(addrN(2), hello2)

	id2 := r.addrToPlayer[addrN(2).String()]
	payload, _ := wire.EncodePayload(wire.Message{Kind: wire.KindConnectToPeer, PeerID: byte(id2)})
	connectMsg, _ := wire.EncodeDatagram(wire.KindConnectToPeer, true, 2, payload)
	r.HandleDatagram(addrN(1), connectMsg)

	if len(r.connections[addrN(1).String()]) != 1 {
		t.Fatalf("connections[1] = %v, want one peer", r.connections[addrN(1).String()])
	}
	if len(r.connections[addrN(2).String()]) != 1 {
		t.Fatalf("connections[2] = %v, want one peer", r.connections[addrN(2).String()])
	}

	kinds := conn.kindsSentTo(addrN(2))
	gotRequestWorld := false
	for _, k := range kinds {
		if k == wire.KindRequestWorld {
			gotRequestWorld = true
		}
	}
	if !gotRequestWorld {
		t.Error("peering did not send RequestWorld to the already-connected peer")
	}
}

func TestClientWorldBroadcastsToConnectedPeer(t *testing.T) {
	conn := &fakeConn{}
	r := New(conn, nil)
	r.createConnection(addrN(1))
	r.createConnection(addrN(2))
	r.peerAddrs(addrN(1), addrN(2))
	conn.sent = nil

	payload, _ := wire.EncodePayload(wire.Message{Kind: wire.KindClientWorld, WorldState: []byte("state")})
	d, _ := wire.EncodeDatagram(wire.KindClientWorld, true, 5, payload)
	r.HandleDatagram(addrN(1), d)

	found := false
	for _, k := range conn.kindsSentTo(addrN(2)) {
		if k == wire.KindServerWorld {
			found = true
		}
	}
	if !found {
		t.Error("ClientWorld from addr1 was not relayed as ServerWorld to addr2")
	}
}

func TestClientInputsBroadcastsToConnectedPeer(t *testing.T) {
	conn := &fakeConn{}
	r := New(conn, nil)
	r.createConnection(addrN(1))
	r.createConnection(addrN(2))
	r.peerAddrs(addrN(1), addrN(2))
	conn.sent = nil

	inputs := wire.BufferedInputs{{Frame: 1, Set: wire.NewInputSet(wire.InputLeft)}}
	payload, _ := wire.EncodePayload(wire.Message{Kind: wire.KindClientInputs, Inputs: inputs})
	d, _ := wire.EncodeDatagram(wire.KindClientInputs, false, 0, payload)
	r.HandleDatagram(addrN(1), d)

	found := false
	for _, k := range conn.kindsSentTo(addrN(2)) {
		if k == wire.KindServerInputs {
			found = true
		}
	}
	if !found {
		t.Error("ClientInputs from addr1 was not relayed as ServerInputs to addr2")
	}
}

func TestClientWorldWithNoConnectionsRelaysNothing(t *testing.T) {
	conn := &fakeConn{}
	r := New(conn, nil)

	payload, _ := wire.EncodePayload(wire.Message{Kind: wire.KindClientWorld, WorldState: []byte("state")})
	d, _ := wire.EncodeDatagram(wire.KindClientWorld, true, 0, payload)
	r.HandleDatagram(addrN(1), d)

	for _, d := range conn.sent {
		h, _, _ := wire.DecodeDatagram(d.data)
		if h.Kind == wire.KindServerWorld {
			t.Error("ServerWorld sent with no peered connection to send it to")
		}
	}
}

func TestRetryTickKeepsPeerWithNothingPending(t *testing.T) {
	conn := &fakeConn{}
	r := New(conn, nil)
	r.createConnection(addrN(1))

	// Freshly created peer has nothing pending, so a retry tick should be
	// a harmless no-op.
	r.RetryTick()
	if r.PlayerCount() != 1 {
		t.Errorf("PlayerCount() after retry tick = %d, want 1", r.PlayerCount())
	}
}
