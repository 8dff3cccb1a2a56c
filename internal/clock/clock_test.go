package clock

import (
	"testing"
	"time"
)

func TestManualAdvance(t *testing.T) {
	m := NewManual(1000)
	if m.NowUsec() != 1000 {
		t.Fatalf("start: got %d", m.NowUsec())
	}
	if got := m.Advance(2 * time.Second); got != 1000+2_000_000 {
		t.Fatalf("advance: got %d", got)
	}
	m.Set(42)
	if m.NowUsec() != 42 {
		t.Fatalf("set: got %d", m.NowUsec())
	}
}

func TestAdjustUsec(t *testing.T) {
	cases := []struct {
		t    uint64
		skew int64
		want uint64
	}{
		{100, 0, 100},
		{100, 50, 150},
		{100, -40, 60},
		{100, -100, 0},
		{100, -500, 0},
	}
	for _, c := range cases {
		if got := AdjustUsec(c.t, c.skew); got != c.want {
			t.Fatalf("AdjustUsec(%d,%d): got %d want %d", c.t, c.skew, got, c.want)
		}
	}
}
