package inputbuffer

import (
	"testing"

	"github.com/duelcore/netcode/internal/wire"
)

func TestFrameVerifiesOnlyWhenBothSlotsReport(t *testing.T) {
	b := New()
	b.UpdatePlayerCount(0, Slot1, 2)

	b.InsertLocalInput(wire.NewInputSet(wire.InputLeft), 1)
	if _, ok := b.PopNextVerifiedFrame(); ok {
		t.Fatal("PopNextVerifiedFrame() = ok before remote input arrived, want not ok")
	}

	b.InsertRemoteInput(wire.NewInputSet(wire.InputRight), 1)
	frame, ok := b.PopNextVerifiedFrame()
	if !ok {
		t.Fatal("PopNextVerifiedFrame() = not ok after both slots reported, want ok")
	}
	if frame.Frame != 1 {
		t.Errorf("verified frame = %d, want 1", frame.Frame)
	}
	if !frame.Inputs[Slot1].Has(wire.InputLeft) {
		t.Error("verified frame slot1 missing InputLeft")
	}
	if !frame.Inputs[Slot2].Has(wire.InputRight) {
		t.Error("verified frame slot2 missing InputRight")
	}
}

func TestSinglePlayerVerifiesImmediately(t *testing.T) {
	b := New()
	b.UpdatePlayerCount(0, Slot1, 1)

	b.InsertLocalInput(wire.NewInputSet(wire.InputShoot), 1)
	frame, ok := b.PopNextVerifiedFrame()
	if !ok {
		t.Fatal("PopNextVerifiedFrame() = not ok in single-player mode, want ok")
	}
	if !frame.Inputs[Slot1].Has(wire.InputShoot) {
		t.Error("verified frame missing InputShoot")
	}
}

func TestOutOfOrderArrivalStillVerifies(t *testing.T) {
	b := New()
	b.UpdatePlayerCount(0, Slot1, 2)

	b.InsertLocalInput(wire.NewInputSet(wire.InputLeft), 1)
	b.InsertLocalInput(wire.NewInputSet(wire.InputRight), 2)
	b.InsertRemoteInput(wire.NewInputSet(), 2)
	b.InsertRemoteInput(wire.NewInputSet(), 1)

	first, ok := b.PopNextVerifiedFrame()
	if !ok || first.Frame != 1 {
		t.Fatalf("first PopNextVerifiedFrame() = (%v, %v), want frame 1, true", first, ok)
	}
	second, ok := b.PopNextVerifiedFrame()
	if !ok || second.Frame != 2 {
		t.Fatalf("second PopNextVerifiedFrame() = (%v, %v), want frame 2, true", second, ok)
	}
}

func TestPredictedFramesFillMissingSlotFromLastVerified(t *testing.T) {
	b := New()
	b.UpdatePlayerCount(0, Slot1, 2)

	b.InsertLocalInput(wire.NewInputSet(wire.InputLeft), 1)
	b.InsertRemoteInput(wire.NewInputSet(wire.InputShoot), 1)
	if _, ok := b.PopNextVerifiedFrame(); !ok {
		t.Fatal("frame 1 should verify")
	}

	// Frame 2: only the local slot has reported. Remote should predict
	// from frame 1's verified input.
	b.InsertLocalInput(wire.NewInputSet(wire.InputRight), 2)

	predicted := b.PredictedFrames()
	if len(predicted) != 1 {
		t.Fatalf("PredictedFrames() = %d entries, want 1", len(predicted))
	}
	if predicted[0].Inputs[Slot2] == nil || !predicted[0].Inputs[Slot2].Has(wire.InputShoot) {
		t.Error("predicted frame 2 slot2 should carry forward frame 1's verified InputShoot")
	}
}

func TestUpdatePlayerCountResetsBuffer(t *testing.T) {
	b := New()
	b.UpdatePlayerCount(0, Slot1, 2)
	b.InsertLocalInput(wire.NewInputSet(wire.InputLeft), 1)

	// Queued frames survive a player-count change, but their recorded
	// inputs are cleared since the slot meaning may have changed.
	b.UpdatePlayerCount(5, Slot2, 1)
	if b.CurrentFrame() != 5 {
		t.Errorf("CurrentFrame() after reset = %d, want 5", b.CurrentFrame())
	}
	for _, f := range b.frames {
		if f.Inputs[Slot1] != nil || f.Inputs[Slot2] != nil {
			t.Error("frame inputs not cleared by UpdatePlayerCount")
		}
	}
}

func TestSlotOther(t *testing.T) {
	if Slot1.Other() != Slot2 {
		t.Error("Slot1.Other() != Slot2")
	}
	if Slot2.Other() != Slot1 {
		t.Error("Slot2.Other() != Slot1")
	}
}
