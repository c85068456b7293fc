package loop

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestManualClockOrdering(t *testing.T) {
	clock := NewManualClock(epoch)

	var got []string
	clock.Every(2*time.Second, func() { got = append(got, "two") })
	clock.Every(time.Second, func() { got = append(got, "one") })

	clock.Advance(4 * time.Second)

	want := []string{"one", "two", "one", "one", "two", "one"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tick order mismatch (-want +got):\n%s", diff)
	}
	if now := clock.Now(); !now.Equal(epoch.Add(4 * time.Second)) {
		t.Errorf("Now = %v, want %v", now, epoch.Add(4*time.Second))
	}
}

func TestManualClockStopInsideTick(t *testing.T) {
	clock := NewManualClock(epoch)

	count := 0
	var stop func()
	stop = clock.Every(time.Second, func() {
		count++
		if count == 2 {
			stop()
		}
	})

	clock.Advance(10 * time.Second)
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	if n := clock.Tickers(); n != 0 {
		t.Errorf("Tickers = %d, want 0", n)
	}
}

func TestManualClockPartialAdvance(t *testing.T) {
	clock := NewManualClock(epoch)

	count := 0
	clock.Every(time.Second, func() { count++ })

	clock.Advance(500 * time.Millisecond)
	if count != 0 {
		t.Fatalf("count = %d after half a period", count)
	}
	clock.Advance(500 * time.Millisecond)
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}
