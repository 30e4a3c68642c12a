package transport

import (
	"sort"

	"github.com/duelcore/netcode/internal/seqnum"
	"github.com/duelcore/netcode/internal/wire"
)

// InputSender tracks one direction's not-yet-acked per-frame inputs. Every
// tick the caller takes a Snapshot and resends the whole unacked buffer —
// there is no chunking and no per-entry retry bookkeeping, because an ack
// here means "every frame up to and including this one arrived", so a
// dropped datagram is fully recovered by the next one landing.
type InputSender struct {
	unacked []wire.FrameInput
}

// NewInputSender returns an empty sender.
func NewInputSender() *InputSender {
	return &InputSender{}
}

// AddInput appends this frame's input to the unacked tail. Frames must be
// added in increasing order, matching inputbuffer.Buffer's insertion
// order.
func (s *InputSender) AddInput(frame uint32, set wire.InputSet) {
	s.unacked = append(s.unacked, wire.FrameInput{Frame: frame, Set: set})
}

// Snapshot returns the current unacked buffer, newest-capped at
// wire.MaxBufferedInputEntries so it always fits one unchunked datagram —
// a session stalled long enough to overflow that window has bigger
// problems than losing its oldest few frames of input history.
func (s *InputSender) Snapshot() wire.BufferedInputs {
	if len(s.unacked) <= wire.MaxBufferedInputEntries {
		out := make(wire.BufferedInputs, len(s.unacked))
		copy(out, s.unacked)
		return out
	}
	start := len(s.unacked) - wire.MaxBufferedInputEntries
	out := make(wire.BufferedInputs, wire.MaxBufferedInputEntries)
	copy(out, s.unacked[start:])
	return out
}

// AckThrough drops every entry with Frame <= ackedFrame, as a cumulative
// ack for ackedFrame does for every frame before it too.
func (s *InputSender) AckThrough(ackedFrame uint32) {
	idx := sort.Search(len(s.unacked), func(i int) bool {
		return s.unacked[i].Frame > ackedFrame
	})
	s.unacked = s.unacked[idx:]
}

// TryAckThrough attempts to interpret wrapped as a cumulative input ack: it
// only recognizes the value when there's an outstanding input frame it
// could plausibly be acking, reporting false (and doing nothing) otherwise
// so the caller can fall back to the general pending-ack table.
func (s *InputSender) TryAckThrough(wrapped seqnum.Num, near uint32) bool {
	if len(s.unacked) == 0 {
		return false
	}
	frame := UnwrapAckedFrame(wrapped, near)
	if frame < s.unacked[0].Frame {
		return false
	}
	s.AckThrough(frame)
	return true
}

// Pending reports how many frames of input are still unacked.
func (s *InputSender) Pending() int {
	return len(s.unacked)
}

// InputReceiver tracks the highest frame received from one peer (gaps
// below it are not tracked) and extracts the frames the caller hasn't already consumed out of
// each incoming (possibly overlapping, since the whole buffer resends
// every tick) BufferedInputs payload.
type InputReceiver struct {
	highestSeen uint32
	haveSeen    bool
}

// NewInputReceiver returns a receiver with no frames seen yet.
func NewInputReceiver() *InputReceiver {
	return &InputReceiver{}
}

// Accept filters incoming to just the frames beyond what's already been
// delivered to the caller, and advances the high-water mark. Entries are
// assumed sorted ascending by Frame, as PackBufferedInputs/AddInput
// produce.
func (r *InputReceiver) Accept(incoming wire.BufferedInputs) wire.BufferedInputs {
	var fresh wire.BufferedInputs
	for _, fi := range incoming {
		if r.haveSeen && fi.Frame <= r.highestSeen {
			continue
		}
		fresh = append(fresh, fi)
		r.highestSeen = fi.Frame
		r.haveSeen = true
	}
	return fresh
}

// AckValue returns the truncated sequence number to echo back as a
// cumulative ack for everything received so far.
func (r *InputReceiver) AckValue() (seqnum.Num, bool) {
	if !r.haveSeen {
		return 0, false
	}
	return seqnum.Num(r.highestSeen), true
}

// UnwrapAckedFrame recovers the full frame number an input ack refers to.
// The ack travels as a 16-bit truncated value (reusing AckSeq's wire
// slot); this picks whichever full frame number nearest to near has that
// low 16 bits, which is correct as long as the two sides are never more
// than half the wrap window (2^15 frames, ~9 minutes at 60Hz) out of sync
// on frame number — the same assumption seqnum.Distance already makes.
func UnwrapAckedFrame(wrapped seqnum.Num, near uint32) uint32 {
	base := near &^ 0xFFFF
	candidate := base | uint32(wrapped)
	if diff := int64(candidate) - int64(near); diff > 1<<15 {
		candidate -= 1 << 16
	} else if diff < -(1 << 15) {
		candidate += 1 << 16
	}
	return candidate
}
