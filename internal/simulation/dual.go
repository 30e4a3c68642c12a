package simulation

import "github.com/duelcore/netcode/internal/inputbuffer"

// Dual holds a verified simulation (advanced only by frames both players
// have confirmed) and a predicted simulation (advanced ahead of
// verification using the input buffer's last-verified fallback). The
// predicted simulation is what gets drawn; the verified one is the source
// of truth it periodically gets rebased onto.
type Dual struct {
	Verified  *State
	Predicted *State
	bounds    Bounds
	// multiplayer is false until a second player's world handoff arrives;
	// single-player sessions never predict, matching the session
	// player count gate in the reference loop.
	multiplayer bool
}

// NewDual starts a fresh single-player session: verified and predicted
// are separate States but begin identical.
func NewDual(bounds Bounds) *Dual {
	return &Dual{
		Verified:  New(bounds),
		Predicted: New(bounds),
		bounds:    bounds,
	}
}

// NewDualFromWorldState rehydrates both simulations from a received world
// snapshot (the RequestWorld handoff), as happens when a client joins an
// already-running session.
func NewDualFromWorldState(bounds Bounds, data []byte) (*Dual, error) {
	verified, err := Deserialize(data)
	if err != nil {
		return nil, err
	}
	predicted, err := Deserialize(data)
	if err != nil {
		return nil, err
	}
	return &Dual{Verified: verified, Predicted: predicted, bounds: bounds}, nil
}

// EnableMultiplayer marks the session as having a second player, which is
// when prediction actually starts running ahead of verification.
func (d *Dual) EnableMultiplayer() {
	d.multiplayer = true
}

// DisableMultiplayer drops back to single-player continuation on the
// verified simulation: Active returns Verified from then on. The
// predicted State itself is left as it was.
func (d *Dual) DisableMultiplayer() {
	d.multiplayer = false
}

// Multiplayer reports whether prediction is active.
func (d *Dual) Multiplayer() bool {
	return d.multiplayer
}

// AdvanceVerified applies one fully-verified frame of input to the
// verified simulation. Callers must supply frames in strictly increasing
// order — Verified.Frame+1 must equal the frame the caller is advancing
// to, matching inputbuffer.Buffer's pop order.
func (d *Dual) AdvanceVerified(frame inputbuffer.FrameInputs) {
	d.Verified.Update(frame.Inputs, d.bounds)
}

// Rebase snapshots the verified simulation onto the predicted one,
// discarding however far prediction had run ahead. Called once per frame
// a new verified state lands, before replaying any still-unverified
// frames back on top.
func (d *Dual) Rebase() {
	snapshot := *d.Verified
	d.Predicted = &snapshot
}

// AdvancePredicted replays one speculative frame on top of the predicted
// simulation, skipped automatically if the predicted simulation has
// already reached or passed that frame (it would have, right after a
// Rebase that just verified it).
func (d *Dual) AdvancePredicted(frame inputbuffer.FrameInputs) {
	if d.Predicted.Frame >= frame.Frame {
		return
	}
	d.Predicted.Update(frame.Inputs, d.bounds)
}

// Active returns whichever simulation should be drawn: predicted once
// multiplayer prediction is running, verified otherwise.
func (d *Dual) Active() *State {
	if d.multiplayer {
		return d.Predicted
	}
	return d.Verified
}
