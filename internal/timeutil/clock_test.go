package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	assert.False(t, now.Before(before))
	assert.False(t, now.After(after))
}

func TestRealClock_Since(t *testing.T) {
	clock := RealClock{}
	past := time.Now().Add(-time.Second)
	assert.GreaterOrEqual(t, clock.Since(past), time.Second)
}

func TestRealClock_After(t *testing.T) {
	clock := RealClock{}
	select {
	case <-clock.After(5 * time.Millisecond):
	case <-time.After(time.Second):
		t.Fatal("After did not fire")
	}
}

func TestMockClock_Advance(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	ch := clock.After(500 * time.Millisecond)
	require.Equal(t, 1, clock.Pending())

	clock.Advance(499 * time.Millisecond)
	select {
	case <-ch:
		t.Fatal("fired before deadline")
	default:
	}

	clock.Advance(time.Millisecond)
	select {
	case got := <-ch:
		assert.Equal(t, start.Add(500*time.Millisecond), got)
	default:
		t.Fatal("did not fire at deadline")
	}
	assert.Equal(t, 0, clock.Pending())
	assert.Equal(t, 500*time.Millisecond, clock.Since(start))
}

func TestMockClock_AfterNonPositive(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))

	select {
	case <-clock.After(0):
	default:
		t.Fatal("zero duration should fire immediately")
	}
	select {
	case <-clock.After(-time.Second):
	default:
		t.Fatal("negative duration should fire immediately")
	}
	assert.Equal(t, []time.Duration{0, -time.Second}, clock.Afters())
}

func TestMockClock_Set(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	target := time.Unix(100, 0)
	clock.Set(target)
	assert.Equal(t, target, clock.Now())
}

func TestRealClock_NewTicker(t *testing.T) {
	ticker := RealClock{}.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Fatal("ticker did not fire")
	}
}

func TestMockClock_NewTicker(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	ticker := clock.NewTicker(100 * time.Millisecond)

	clock.Advance(99 * time.Millisecond)
	select {
	case <-ticker.C():
		t.Fatal("ticked before interval")
	default:
	}

	clock.Advance(time.Millisecond)
	select {
	case got := <-ticker.C():
		assert.Equal(t, start.Add(100*time.Millisecond), got)
	default:
		t.Fatal("did not tick at interval")
	}

	// A long jump delivers one tick and skips the missed ones.
	clock.Advance(350 * time.Millisecond)
	require.Len(t, ticker.C(), 1)
	<-ticker.C()
	clock.Advance(49 * time.Millisecond)
	assert.Len(t, ticker.C(), 0)
	clock.Advance(time.Millisecond)
	assert.Len(t, ticker.C(), 1)

	ticker.Stop()
	<-ticker.C()
	clock.Advance(time.Second)
	assert.Len(t, ticker.C(), 0)
}
