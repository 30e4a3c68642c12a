package gameloop

import (
	"testing"

	"github.com/duelcore/netcode/internal/simulation"
	"github.com/duelcore/netcode/internal/wire"
)

type fakeSender struct {
	getPeerListCalls   int
	connectToPeerCalls []byte
	clientInputs       []struct {
		Frame uint32
		Set   wire.InputSet
	}
	clientWorldSent [][]byte
}

func (f *fakeSender) SendGetPeerList() error {
	f.getPeerListCalls++
	return nil
}

func (f *fakeSender) SendConnectToPeer(peerID byte) error {
	f.connectToPeerCalls = append(f.connectToPeerCalls, peerID)
	return nil
}

func (f *fakeSender) SendClientInputs(frame uint32, set wire.InputSet) error {
	f.clientInputs = append(f.clientInputs, struct {
		Frame uint32
		Set   wire.InputSet
	}{frame, set})
	return nil
}

func (f *fakeSender) SendClientWorld(data []byte) error {
	f.clientWorldSent = append(f.clientWorldSent, data)
	return nil
}

func TestHostGameEntersPlaying(t *testing.T) {
	e := New(simulation.DefaultBounds)
	e.HostGame()
	if e.State() != Playing {
		t.Fatalf("State() = %v, want Playing", e.State())
	}
	if e.Dual() == nil {
		t.Fatal("Dual() is nil after HostGame")
	}
}

func TestJoinFlowThroughChoosePlayer(t *testing.T) {
	e := New(simulation.DefaultBounds)
	s := &fakeSender{}

	if err := e.JoinGame(s); err != nil {
		t.Fatalf("JoinGame: %v", err)
	}
	if e.State() != WaitingForPlayerList {
		t.Fatalf("State() = %v, want WaitingForPlayerList", e.State())
	}
	if s.getPeerListCalls != 1 {
		t.Fatalf("getPeerListCalls = %d, want 1", s.getPeerListCalls)
	}

	e.OnPeerList([]byte{5, 9})
	if e.State() != ChoosePlayer {
		t.Fatalf("State() = %v, want ChoosePlayer", e.State())
	}

	if err := e.ChoosePeer(1, s); err != nil {
		t.Fatalf("ChoosePeer: %v", err)
	}
	if len(s.connectToPeerCalls) != 1 || s.connectToPeerCalls[0] != 9 {
		t.Errorf("connectToPeerCalls = %v, want [9]", s.connectToPeerCalls)
	}
}

func TestChoosePeerRejectsOutOfRangeIndex(t *testing.T) {
	e := New(simulation.DefaultBounds)
	e.OnPeerList(nil)
	e.state = ChoosePlayer
	e.otherPeerIDs = []byte{3}
	if err := e.ChoosePeer(5, &fakeSender{}); err == nil {
		t.Error("ChoosePeer(out of range) should error")
	}
}

func TestOnServerWorldStartsMultiplayerAsSlot2(t *testing.T) {
	host := New(simulation.DefaultBounds)
	host.HostGame()
	host.dual.Verified.Frame = 42
	data := host.dual.Verified.Serialize()

	joiner := New(simulation.DefaultBounds)
	if err := joiner.OnServerWorld(data); err != nil {
		t.Fatalf("OnServerWorld: %v", err)
	}
	if joiner.State() != Playing {
		t.Fatalf("State() = %v, want Playing", joiner.State())
	}
	if !joiner.dual.Multiplayer() {
		t.Error("joiner's Dual should be multiplayer after OnServerWorld")
	}
	if joiner.localSlot != 1 {
		t.Errorf("joiner localSlot = %v, want Slot2", joiner.localSlot)
	}
	if joiner.dual.Verified.Frame != 42 {
		t.Errorf("restored Frame = %d, want 42", joiner.dual.Verified.Frame)
	}
}

func TestOnRequestWorldPromotesHostToMultiplayer(t *testing.T) {
	e := New(simulation.DefaultBounds)
	e.HostGame()
	s := &fakeSender{}

	if err := e.OnRequestWorld(s); err != nil {
		t.Fatalf("OnRequestWorld: %v", err)
	}
	if !e.dual.Multiplayer() {
		t.Error("host should become multiplayer after OnRequestWorld")
	}
	if len(s.clientWorldSent) != 1 {
		t.Fatalf("clientWorldSent = %d sends, want 1", len(s.clientWorldSent))
	}
}

func TestTickAdvancesVerifiedAfterOneFrameWorthOfTime(t *testing.T) {
	e := New(simulation.DefaultBounds)
	e.HostGame()
	s := &fakeSender{}

	if err := e.Tick(simulation.PhysicsFrameTime, wire.NewInputSet(wire.InputLeft), s); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(s.clientInputs) != 1 {
		t.Fatalf("clientInputs sent = %d, want 1", len(s.clientInputs))
	}
	if e.dual.Verified.Frame != 1 {
		t.Errorf("Verified.Frame = %d, want 1", e.dual.Verified.Frame)
	}
}

func TestTickBeforeFullFrameDoesNothing(t *testing.T) {
	e := New(simulation.DefaultBounds)
	e.HostGame()
	s := &fakeSender{}

	if err := e.Tick(simulation.PhysicsFrameTime/2, wire.NewInputSet(), s); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(s.clientInputs) != 0 {
		t.Errorf("clientInputs sent = %d, want 0 before a full physics frame elapses", len(s.clientInputs))
	}
}

func TestTickNoopOutsidePlaying(t *testing.T) {
	e := New(simulation.DefaultBounds)
	if err := e.Tick(1.0, wire.NewInputSet(), &fakeSender{}); err != nil {
		t.Fatalf("Tick outside Playing should be a no-op, got error: %v", err)
	}
}

func TestOnPeerLostFallsBackToSinglePlayerContinuation(t *testing.T) {
	e := New(simulation.DefaultBounds)
	e.HostGame()
	e.playerCount = 2
	e.dual.EnableMultiplayer()

	e.OnPeerLost()
	if e.State() != Playing {
		t.Errorf("State() after OnPeerLost = %v, want Playing (fallback, not ChooseMode)", e.State())
	}
	if e.playerCount != 1 {
		t.Errorf("playerCount after OnPeerLost = %d, want 1", e.playerCount)
	}
}
