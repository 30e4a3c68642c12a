// Package inputbuffer collects per-frame inputs from both players into a
// queue of frames that become "verified" once both players' inputs for
// that frame have arrived, and lets the caller peek ahead of verification
// using the most recently verified input as a stand-in for whichever side
// hasn't reported yet (the basis of client-side prediction).
package inputbuffer

import "github.com/duelcore/netcode/internal/wire"

// MaxPlayers is the number of simultaneous player slots this buffer
// tracks. Two-player only, per the simulation's fixed player count.
const MaxPlayers = 2

// Slot identifies a player's position in the two-slot game.
type Slot int

const (
	Slot1 Slot = 0
	Slot2 Slot = 1
)

// Other returns the slot that isn't s, valid only for the two-slot game.
func (s Slot) Other() Slot {
	if s == Slot1 {
		return Slot2
	}
	return Slot1
}

// FrameInputs holds each slot's input for a single simulation frame. A nil
// entry means that slot hasn't reported input for this frame yet.
type FrameInputs struct {
	Frame  uint32
	Inputs [MaxPlayers]*wire.InputSet
}

func newFrameInputs(frame uint32) FrameInputs {
	return FrameInputs{Frame: frame}
}

func (f *FrameInputs) insert(slot Slot, set wire.InputSet) {
	v := set
	f.Inputs[slot] = &v
}

// IsVerified reports whether every active slot (0..playerCount) has
// reported input for this frame.
func (f FrameInputs) IsVerified(playerCount int) bool {
	for i := 0; i < playerCount && i < MaxPlayers; i++ {
		if f.Inputs[i] == nil {
			return false
		}
	}
	return true
}

// Buffer is the queue of not-yet-fully-verified frames plus the last fully
// verified frame's inputs, used to fill in for a slot that hasn't reported
// yet when a predicted simulation needs to run ahead of verification.
type Buffer struct {
	frames       []FrameInputs
	lastVerified [MaxPlayers]*wire.InputSet
	playerCount  int
	currFrame    uint32
	localSlot    Slot

	// earliestLocalFrame is the lowest frame number the local player has
	// ever supplied input for. Remote inputs below it are rejected: the
	// local simulation cannot rewind past its own decisions.
	earliestLocalFrame    uint32
	hasEarliestLocalFrame bool
}

// New returns an empty Buffer for a single local player (slot 1, count 1)
// until UpdatePlayerCount establishes the real session.
func New() *Buffer {
	return &Buffer{playerCount: 1, localSlot: Slot1}
}

// UpdatePlayerCount resets the buffer for a new session: clears the
// recorded inputs of any in-flight frames (the frames themselves stay
// queued), fixes the local slot and active player count, and rebases curr
// frame to simFrame.
func (b *Buffer) UpdatePlayerCount(simFrame uint32, local Slot, playerCount int) {
	for i := range b.frames {
		b.frames[i].Inputs = [MaxPlayers]*wire.InputSet{}
	}
	b.playerCount = playerCount
	b.localSlot = local
	b.currFrame = simFrame
	b.lastVerified = [MaxPlayers]*wire.InputSet{}
	b.earliestLocalFrame = 0
	b.hasEarliestLocalFrame = false
}

func (b *Buffer) ensureUpTo(frame uint32) {
	for i := b.currFrame + 1; i <= frame; i++ {
		b.frames = append(b.frames, newFrameInputs(i))
	}
	if frame > b.currFrame {
		b.currFrame = frame
	}
}

// frameIndex locates frame's slot in b.frames, reporting false rather than
// panicking if frame lies before the buffered window (already verified and
// popped) or wasn't grown for.
func (b *Buffer) frameIndex(frame uint32) (int, bool) {
	if len(b.frames) == 0 {
		return 0, false
	}
	base := b.frames[0].Frame
	if frame < base {
		return 0, false
	}
	idx := int(frame - base)
	if idx >= len(b.frames) {
		return 0, false
	}
	return idx, true
}

// InsertLocalInput records this session's own input for frame, padding the
// queue with empty FrameInputs entries for any skipped frames. frame must
// be nonzero: frame 0 predates the first drawn frame and has no slot.
func (b *Buffer) InsertLocalInput(set wire.InputSet, frame uint32) {
	if !b.hasEarliestLocalFrame || frame < b.earliestLocalFrame {
		b.earliestLocalFrame = frame
		b.hasEarliestLocalFrame = true
	}
	b.ensureUpTo(frame)
	if idx, ok := b.frameIndex(frame); ok {
		b.frames[idx].insert(b.localSlot, set)
	}
}

// InsertRemoteInput records the peer's input for frame, symmetric to
// InsertLocalInput but targeting the non-local slot. Frames strictly
// earlier than any frame the local player has already supplied input for
// are dropped: the local simulation cannot rewind past its own decisions.
func (b *Buffer) InsertRemoteInput(set wire.InputSet, frame uint32) {
	if b.hasEarliestLocalFrame && frame < b.earliestLocalFrame {
		return
	}
	b.ensureUpTo(frame)
	if idx, ok := b.frameIndex(frame); ok {
		b.frames[idx].insert(b.localSlot.Other(), set)
	}
}

// PopNextVerifiedFrame removes and returns the oldest frame if both active
// slots have reported input for it, updating lastVerified. Returns false
// if the oldest frame is still waiting on input.
func (b *Buffer) PopNextVerifiedFrame() (FrameInputs, bool) {
	if len(b.frames) == 0 {
		return FrameInputs{}, false
	}
	front := b.frames[0]
	if !front.IsVerified(b.playerCount) {
		return FrameInputs{}, false
	}
	b.frames = b.frames[1:]
	b.lastVerified = front.Inputs
	return front, true
}

// PredictedFrames returns every buffered frame not yet verified, with any
// missing slot filled in from the last verified input for that slot — the
// prediction the rollback simulation runs ahead on.
func (b *Buffer) PredictedFrames() []FrameInputs {
	out := make([]FrameInputs, len(b.frames))
	for i, f := range b.frames {
		predicted := f
		for slot := 0; slot < MaxPlayers; slot++ {
			if predicted.Inputs[slot] == nil {
				predicted.Inputs[slot] = b.lastVerified[slot]
			}
		}
		out[i] = predicted
	}
	return out
}

// Len reports how many frames are buffered awaiting verification.
func (b *Buffer) Len() int {
	return len(b.frames)
}

// CurrentFrame reports the most recent frame any input has been recorded
// for.
func (b *Buffer) CurrentFrame() uint32 {
	return b.currFrame
}
