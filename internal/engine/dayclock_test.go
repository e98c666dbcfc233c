package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrancheIndex(t *testing.T) {
	dc := NewDayClock(testConfig()) // window 15:10 + 10 minutes

	assert.Equal(t, -1, dc.TrancheIndex(kst(15, 9, 59)))
	assert.Equal(t, 0, dc.TrancheIndex(kst(15, 10, 0)))
	assert.Equal(t, 0, dc.TrancheIndex(kst(15, 10, 59)))
	assert.Equal(t, 1, dc.TrancheIndex(kst(15, 11, 0)))
	assert.Equal(t, 9, dc.TrancheIndex(kst(15, 19, 59)))
	assert.Equal(t, -1, dc.TrancheIndex(kst(15, 20, 0)))
}

func TestEntryWindow(t *testing.T) {
	dc := NewDayClock(testConfig())

	assert.False(t, dc.InEntryWindow(kst(15, 9, 59)))
	assert.True(t, dc.InEntryWindow(kst(15, 10, 0)))
	assert.True(t, dc.InEntryWindow(kst(15, 19, 59)))
	assert.False(t, dc.InEntryWindow(kst(15, 20, 0)))
	assert.Equal(t, kst(15, 20, 0), dc.EntryEnd(kst(15, 10, 0)))
}

func TestTimeCutAndClose(t *testing.T) {
	dc := NewDayClock(testConfig())

	assert.False(t, dc.PastTimeCut(kst(9, 59, 59)))
	assert.True(t, dc.PastTimeCut(kst(10, 0, 0)))
	assert.False(t, dc.PastClose(kst(15, 34, 59)))
	assert.True(t, dc.PastClose(kst(15, 35, 0)))
}

func TestNextWake(t *testing.T) {
	dc := NewDayClock(testConfig())

	wake := dc.NextWake(kst(16, 0, 0))
	assert.Equal(t, kst(8, 50, 0).AddDate(0, 0, 1), wake)
}

func TestIsWeekend(t *testing.T) {
	dc := NewDayClock(testConfig())

	monday := kst(10, 0, 0)
	assert.False(t, dc.IsWeekend(monday))
	assert.True(t, dc.IsWeekend(monday.AddDate(0, 0, 5)))  // Saturday
	assert.True(t, dc.IsWeekend(monday.AddDate(0, 0, 6)))  // Sunday
	assert.False(t, dc.IsWeekend(monday.AddDate(0, 0, 7))) // next Monday
}

func TestMinutesIntoSession(t *testing.T) {
	dc := NewDayClock(testConfig())

	assert.Equal(t, 0, dc.MinutesIntoSession(kst(9, 0, 30)))
	assert.Equal(t, 30, dc.MinutesIntoSession(kst(9, 30, 0)))
	assert.Equal(t, -1, int(kst(8, 59, 0).Sub(dc.SessionOpen(kst(8, 59, 0)))/time.Minute))
}
