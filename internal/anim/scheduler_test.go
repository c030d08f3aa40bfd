package anim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualSchedulerOrdersByDueTime(t *testing.T) {
	s := NewManualScheduler(epoch)
	var got []string
	s.AfterFunc(3*time.Second, func() { got = append(got, "c") })
	s.AfterFunc(time.Second, func() { got = append(got, "a") })
	s.AfterFunc(time.Second, func() { got = append(got, "b") })

	s.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, epoch.Add(2*time.Second), s.Now())
	assert.Equal(t, 1, s.Pending())

	d, ok := s.NextDue()
	assert.True(t, ok)
	assert.Equal(t, time.Second, d)

	s.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	_, ok = s.NextDue()
	assert.False(t, ok)
}

func TestManualSchedulerFiresNestedCalls(t *testing.T) {
	s := NewManualScheduler(epoch)
	var fired []time.Time
	s.AfterFunc(time.Second, func() {
		fired = append(fired, s.Now())
		s.AfterFunc(time.Second, func() { fired = append(fired, s.Now()) })
	})
	s.Advance(5 * time.Second)
	assert.Equal(t, []time.Time{epoch.Add(time.Second), epoch.Add(2 * time.Second)}, fired)
}

func TestManualTimerStop(t *testing.T) {
	s := NewManualScheduler(epoch)
	called := false
	tm := s.AfterFunc(time.Second, func() { called = true })
	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop())
	s.Advance(time.Hour)
	assert.False(t, called)
	assert.Zero(t, s.Pending())
}
