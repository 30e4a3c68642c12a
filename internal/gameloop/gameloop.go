// Package gameloop drives the client side: the connection-state menu
// (ChooseMode/WaitingForPlayerList/ChoosePlayer/Playing) and, once
// Playing, the fixed 60Hz accumulator that feeds local input into the
// InputBuffer and steps the verified/predicted DualSimulation — the Go
// shape of original_source/src/game.rs's single `loop { match game_state
// {...} }` body, split so it can be driven headlessly (a UI layer
// supplies key state and owns rendering; this package owns state and
// netcode orchestration).
package gameloop

import (
	"fmt"

	"github.com/duelcore/netcode/internal/inputbuffer"
	"github.com/duelcore/netcode/internal/simulation"
	"github.com/duelcore/netcode/internal/wire"
)

// State is the client's connection/menu state machine.
type State int

const (
	ChooseMode State = iota
	WaitingForPlayerList
	ChoosePlayer
	Playing
)

func (s State) String() string {
	switch s {
	case ChooseMode:
		return "ChooseMode"
	case WaitingForPlayerList:
		return "WaitingForPlayerList"
	case ChoosePlayer:
		return "ChoosePlayer"
	case Playing:
		return "Playing"
	default:
		return "Unknown"
	}
}

// Sender is the subset of netcode the engine needs to drive from inside
// a Tick/event callback, implemented by a thin wrapper around
// internal/transport talking to the relay server.
type Sender interface {
	SendGetPeerList() error
	SendConnectToPeer(peerID byte) error
	SendClientInputs(frame uint32, set wire.InputSet) error
	SendClientWorld(data []byte) error
}

// Engine holds everything game.rs's main() kept as locals across loop
// iterations.
type Engine struct {
	state  State
	bounds simulation.Bounds

	dual   *simulation.Dual
	buffer *inputbuffer.Buffer

	localSlot    inputbuffer.Slot
	playerCount  int
	otherPeerIDs []byte
	chosenPeer   byte
	accumulator  float64
}

// New returns an Engine in ChooseMode.
func New(bounds simulation.Bounds) *Engine {
	return &Engine{
		state:       ChooseMode,
		bounds:      bounds,
		buffer:      inputbuffer.New(),
		localSlot:   inputbuffer.Slot1,
		playerCount: 1,
	}
}

// State reports the current menu/connection state.
func (e *Engine) State() State { return e.state }

// Dual exposes the simulation pair once Playing has started (nil before
// that).
func (e *Engine) Dual() *simulation.Dual { return e.dual }

// HostGame handles pressing "host": starts a fresh single-player
// simulation and moves straight to Playing.
func (e *Engine) HostGame() {
	e.dual = simulation.NewDual(e.bounds)
	e.playerCount = 1
	e.localSlot = inputbuffer.Slot1
	e.state = Playing
}

// JoinGame handles pressing "join": asks the relay for the peer list and
// waits.
func (e *Engine) JoinGame(s Sender) error {
	if err := s.SendGetPeerList(); err != nil {
		return fmt.Errorf("gameloop: request peer list: %w", err)
	}
	e.state = WaitingForPlayerList
	return nil
}

// OnPeerList handles the relay's reply while WaitingForPlayerList.
func (e *Engine) OnPeerList(ids []byte) {
	if e.state != WaitingForPlayerList {
		return
	}
	e.otherPeerIDs = ids
	e.state = ChoosePlayer
}

// ChoosePeer handles picking one of OtherPeerIDs() by index.
func (e *Engine) ChoosePeer(index int, s Sender) error {
	if e.state != ChoosePlayer || index < 0 || index >= len(e.otherPeerIDs) {
		return fmt.Errorf("gameloop: invalid peer choice %d", index)
	}
	e.chosenPeer = e.otherPeerIDs[index]
	return s.SendConnectToPeer(e.chosenPeer)
}

// OtherPeerIDs reports the peer list received while WaitingForPlayerList.
func (e *Engine) OtherPeerIDs() []byte { return e.otherPeerIDs }

// OnServerWorld handles the host's ClientWorld, relayed as ServerWorld,
// that completes a join: both simulation halves are restored from it and
// the engine becomes Playing as Player2.
func (e *Engine) OnServerWorld(data []byte) error {
	dual, err := simulation.NewDualFromWorldState(e.bounds, data)
	if err != nil {
		return fmt.Errorf("gameloop: restore world state: %w", err)
	}
	e.dual = dual
	e.playerCount = 2
	e.localSlot = inputbuffer.Slot2
	e.dual.EnableMultiplayer()
	e.buffer.UpdatePlayerCount(dual.Verified.Frame, e.localSlot, e.playerCount)
	e.state = Playing
	return nil
}

// OnRequestWorld handles the relay asking the current host (session
// already Playing single-player) to hand its state to a newly peered
// client.
func (e *Engine) OnRequestWorld(s Sender) error {
	if e.playerCount == 1 {
		e.playerCount = 2
		e.dual.EnableMultiplayer()
		e.buffer.UpdatePlayerCount(e.dual.Verified.Frame, e.localSlot, e.playerCount)
	}
	return s.SendClientWorld(e.dual.Verified.Serialize())
}

// OnServerInputs feeds remote input entries relayed from the peer into
// the InputBuffer.
func (e *Engine) OnServerInputs(inputs wire.BufferedInputs) {
	for _, fi := range inputs {
		e.buffer.InsertRemoteInput(fi.Set, fi.Frame)
	}
}

// OnPeerLost handles a mid-Playing disconnect: the session falls back to
// single-player continuation on the verified simulation rather than
// returning to ChooseMode.
func (e *Engine) OnPeerLost() {
	if e.state != Playing {
		return
	}
	e.playerCount = 1
	e.localSlot = inputbuffer.Slot1
	e.dual.DisableMultiplayer()
	e.buffer = inputbuffer.New()
	e.buffer.UpdatePlayerCount(e.dual.Verified.Frame, e.localSlot, e.playerCount)
}

// nextLocalFrame is the frame the client's next local input submission
// is for: one past the predicted simulation once multiplayer, one past
// verified otherwise, matching game.rs's branch on session_player_count.
func (e *Engine) nextLocalFrame() uint32 {
	if e.playerCount > 1 {
		return e.dual.Predicted.Frame + 1
	}
	return e.dual.Verified.Frame + 1
}

// Tick advances PHYSICS_FRAME_TIME-sized steps accumulated from dt,
// exactly as many as have elapsed, each time submitting the local input
// for that frame, draining verified frames into AdvanceVerified, and
// rebasing+replaying the predicted simulation from PredictedFrames().
// Only meaningful while Playing; a no-op otherwise.
func (e *Engine) Tick(dt float64, local wire.InputSet, s Sender) error {
	if e.state != Playing {
		return nil
	}
	e.accumulator += dt
	for e.accumulator >= simulation.PhysicsFrameTime {
		e.accumulator -= simulation.PhysicsFrameTime
		if err := e.stepOnce(local, s); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) stepOnce(local wire.InputSet, s Sender) error {
	frame := e.nextLocalFrame()
	if err := s.SendClientInputs(frame, local); err != nil {
		return fmt.Errorf("gameloop: send client inputs: %w", err)
	}
	e.buffer.InsertLocalInput(local, frame)

	advanced := false
	for {
		fi, ok := e.buffer.PopNextVerifiedFrame()
		if !ok {
			break
		}
		e.dual.AdvanceVerified(fi)
		advanced = true
	}
	if advanced && e.dual.Multiplayer() {
		e.dual.Rebase()
	}

	for _, fi := range e.buffer.PredictedFrames() {
		if e.dual.Predicted.Frame < fi.Frame {
			e.dual.AdvancePredicted(fi)
		}
	}
	return nil
}
