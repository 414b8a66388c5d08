package timeutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var _ Clock = RealClock{}
var _ Clock = (*MockClock)(nil)

func TestRealClock(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	now := c.Now()
	assert.False(t, now.Before(before))

	c.Sleep(time.Millisecond)
	assert.GreaterOrEqual(t, c.Since(now), time.Millisecond)
}

func TestMockClock_SetAndAdvance(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	c := NewMockClock(t0)
	assert.Equal(t, t0, c.Now())

	c.Advance(1500 * time.Millisecond)
	assert.Equal(t, t0.Add(1500*time.Millisecond), c.Now())
	assert.Equal(t, 1500*time.Millisecond, c.Since(t0))

	earlier := t0.Add(-time.Hour)
	c.Set(earlier)
	assert.Equal(t, earlier, c.Now(), "Set may move backwards")
	assert.Equal(t, -time.Hour, c.Since(t0))
}

func TestMockClock_SleepRecordsWithoutAdvancing(t *testing.T) {
	t0 := time.Unix(1000, 0)
	c := NewMockClock(t0)
	assert.Empty(t, c.Sleeps())

	c.Sleep(500 * time.Millisecond)
	c.Sleep(2 * time.Second)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 2 * time.Second}, c.Sleeps())
	assert.Equal(t, t0, c.Now())

	got := c.Sleeps()
	got[0] = 0
	assert.Equal(t, 500*time.Millisecond, c.Sleeps()[0], "Sleeps returns a copy")
}

func TestMockClock_Concurrent(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Advance(time.Millisecond)
				c.Sleep(time.Microsecond)
				_ = c.Now()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, time.Unix(0, 0).Add(800*time.Millisecond), c.Now())
	assert.Len(t, c.Sleeps(), 800)
}
