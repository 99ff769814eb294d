package pool

import (
	"testing"
	"time"
)

func TestGetTimer_Fires(t *testing.T) {
	timer := GetTimer(5 * time.Millisecond)
	defer PutTimer(timer)

	select {
	case <-timer.C:
	case <-time.After(time.Second):
		t.Fatal("pooled timer did not fire")
	}
}

func TestPutTimer_Reuse(t *testing.T) {
	timer := GetTimer(time.Hour)
	PutTimer(timer)

	// A reused timer must be re-armed with the new duration, not the old one.
	reused := GetTimer(5 * time.Millisecond)
	defer PutTimer(reused)

	select {
	case <-reused.C:
	case <-time.After(time.Second):
		t.Fatal("reused timer did not fire with new duration")
	}
}

func TestPutTimer_DrainsFiredTimer(t *testing.T) {
	timer := GetTimer(time.Nanosecond)
	time.Sleep(5 * time.Millisecond)
	PutTimer(timer)

	// The next checkout must not see a stale fire from the previous use.
	next := GetTimer(time.Hour)
	defer PutTimer(next)

	select {
	case <-next.C:
		t.Fatal("stale timer fire leaked through the pool")
	case <-time.After(10 * time.Millisecond):
	}
}
