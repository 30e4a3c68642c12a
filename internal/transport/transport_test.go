package transport

import (
	"net"
	"testing"

	"github.com/duelcore/netcode/internal/wire"
)

type fakeConn struct {
	sent [][]byte
}

func (f *fakeConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	cp := append([]byte(nil), p...)
	f.sent = append(f.sent, cp)
	return len(p), nil
}

func testPeerAddr() net.Addr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4000}
}

func TestSendReliableSmallPayloadRegistersPending(t *testing.T) {
	conn := &fakeConn{}
	tr := New(conn, nil)
	peer := NewPeer(testPeerAddr())

	if err := tr.SendReliable(peer, wire.KindClientWorld, []byte("small state")); err != nil {
		t.Fatalf("SendReliable: %v", err)
	}
	if len(conn.sent) != 1 {
		t.Fatalf("sent %d datagrams, want 1", len(conn.sent))
	}
	if peer.pending.Len() != 1 {
		t.Errorf("pending.Len() = %d, want 1", peer.pending.Len())
	}
}

func TestSendReliableLargePayloadChunks(t *testing.T) {
	conn := &fakeConn{}
	tr := New(conn, nil)
	peer := NewPeer(testPeerAddr())

	payload := make([]byte, wire.MaxPayload*3+10)
	if err := tr.SendReliable(peer, wire.KindServerWorld, payload); err != nil {
		t.Fatalf("SendReliable: %v", err)
	}
	wantChunks := 4
	if len(conn.sent) != wantChunks {
		t.Fatalf("sent %d datagrams, want %d", len(conn.sent), wantChunks)
	}
	if peer.pending.Len() != wantChunks {
		t.Errorf("pending.Len() = %d, want %d", peer.pending.Len(), wantChunks)
	}
}

func TestHandleDatagramAutoAcksReliableMessage(t *testing.T) {
	conn := &fakeConn{}
	tr := New(conn, nil)
	peer := NewPeer(testPeerAddr())

	datagram, err := wire.EncodeDatagram(wire.KindClientWorld, true, 9, []byte("state"))
	if err != nil {
		t.Fatalf("EncodeDatagram: %v", err)
	}

	inbound, ok, err := tr.HandleDatagram(peer, datagram)
	if err != nil {
		t.Fatalf("HandleDatagram: %v", err)
	}
	if !ok {
		t.Fatal("HandleDatagram() ok = false, want true")
	}
	if inbound.Kind != wire.KindClientWorld {
		t.Errorf("inbound.Kind = %v, want ClientWorld", inbound.Kind)
	}
	if len(conn.sent) != 1 {
		t.Fatalf("auto-ack datagrams sent = %d, want 1", len(conn.sent))
	}
	h, _, _ := wire.DecodeDatagram(conn.sent[0])
	if h.Kind != wire.KindServerAck {
		t.Errorf("auto-ack kind = %v, want ServerAck (client-originated message)", h.Kind)
	}
}

func TestHandleDatagramUnreliableMessageSkipsAck(t *testing.T) {
	conn := &fakeConn{}
	tr := New(conn, nil)
	peer := NewPeer(testPeerAddr())

	datagram, _ := wire.EncodeDatagram(wire.KindGetPeerList, false, 1, nil)
	_, ok, err := tr.HandleDatagram(peer, datagram)
	if err != nil {
		t.Fatalf("HandleDatagram: %v", err)
	}
	if !ok {
		t.Fatal("HandleDatagram() ok = false, want true")
	}
	if len(conn.sent) != 0 {
		t.Errorf("sent %d datagrams for unreliable message, want 0", len(conn.sent))
	}
}

func TestHandleDatagramAckClearsReliablePending(t *testing.T) {
	conn := &fakeConn{}
	tr := New(conn, nil)
	peer := NewPeer(testPeerAddr())

	tr.SendReliable(peer, wire.KindClientWorld, []byte("state"))
	if peer.pending.Len() != 1 {
		t.Fatal("expected one pending reliable send")
	}
	var seq uint16
	for s := range peer.pending.pending {
		seq = uint16(s)
	}

	ackDatagram, _ := wire.EncodeDatagram(wire.KindServerAck, false, 0, mustPack(t, seq))
	if _, _, err := tr.HandleDatagram(peer, ackDatagram); err != nil {
		t.Fatalf("HandleDatagram(ack): %v", err)
	}
	if peer.pending.Len() != 0 {
		t.Errorf("pending.Len() after ack = %d, want 0", peer.pending.Len())
	}
}

func mustPack(t *testing.T, seq uint16) []byte {
	t.Helper()
	buf := make([]byte, 2)
	buf[0] = byte(seq)
	buf[1] = byte(seq >> 8)
	return buf
}

func TestHandleDatagramInputsReturnsOnlyFreshFrames(t *testing.T) {
	conn := &fakeConn{}
	tr := New(conn, nil)
	peer := NewPeer(testPeerAddr())

	inputs := wire.BufferedInputs{{Frame: 1, Set: wire.NewInputSet(wire.InputLeft)}}
	payload, _ := wire.EncodePayload(wire.Message{Kind: wire.KindClientInputs, Inputs: inputs})
	datagram, _ := wire.EncodeDatagram(wire.KindClientInputs, false, 0, payload)

	inbound, ok, err := tr.HandleDatagram(peer, datagram)
	if err != nil || !ok {
		t.Fatalf("HandleDatagram: ok=%v err=%v", ok, err)
	}
	if len(inbound.Message.Inputs) != 1 {
		t.Fatalf("first delivery: got %d fresh entries, want 1", len(inbound.Message.Inputs))
	}

	// Resend the same buffer (simulating the next tick's whole-buffer
	// resend) — nothing fresh, so HandleDatagram should report not-ok.
	_, ok2, err := tr.HandleDatagram(peer, datagram)
	if err != nil {
		t.Fatalf("HandleDatagram (repeat): %v", err)
	}
	if ok2 {
		t.Error("HandleDatagram() on a fully-stale resend should report ok=false")
	}
}

func TestRetrySweepSkipsPendingNotYetDue(t *testing.T) {
	conn := &fakeConn{}
	tr := New(conn, nil)
	peer := NewPeer(testPeerAddr())
	tr.SendReliable(peer, wire.KindClientWorld, []byte("state"))

	exhausted, err := tr.RetrySweep(peer)
	if err != nil {
		t.Fatalf("RetrySweep: %v", err)
	}
	if len(exhausted) != 0 {
		t.Errorf("RetrySweep() exhausted immediately after send = %v, want none", exhausted)
	}
	// Not enough time has passed for RetryInterval, so no resend yet.
	if len(conn.sent) != 1 {
		t.Errorf("sent %d datagrams, want 1 (no retry due yet)", len(conn.sent))
	}
}
