package seqnum

import "testing"

func TestDistanceWrapsForward(t *testing.T) {
	d := Distance(Num(65530), Num(5))
	if d != 11 {
		t.Errorf("Distance(65530, 5) = %d, want 11", d)
	}
}

func TestDistanceWrapsBackward(t *testing.T) {
	d := Distance(Num(5), Num(65530))
	if d != -11 {
		t.Errorf("Distance(5, 65530) = %d, want -11", d)
	}
}

func TestLessThanAcrossWrap(t *testing.T) {
	if !LessThan(Num(65535), Num(0)) {
		t.Error("LessThan(65535, 0) = false, want true (0 comes after wrap)")
	}
	if LessThan(Num(0), Num(65535)) {
		t.Error("LessThan(0, 65535) = true, want false")
	}
}

func TestInRange(t *testing.T) {
	cases := []struct {
		seq, base Num
		size      uint16
		want      bool
	}{
		{10, 5, 10, true},
		{15, 5, 10, false},
		{4, 5, 10, false},
		{2, 65530, 10, true},   // wraps past 65535 into range
		{65529, 65530, 10, false},
	}
	for _, c := range cases {
		got := InRange(c.seq, c.base, c.size)
		if got != c.want {
			t.Errorf("InRange(%d, base=%d, size=%d) = %v, want %v", c.seq, c.base, c.size, got, c.want)
		}
	}
}

func TestAddWraps(t *testing.T) {
	if got := Add(Num(65534), 3); got != Num(1) {
		t.Errorf("Add(65534, 3) = %d, want 1", got)
	}
}
