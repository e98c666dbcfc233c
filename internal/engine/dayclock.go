package engine

import (
	"time"

	"jongga-bot/internal/store"
)

// Phase is the day-cycle state the bot is in. Transitions are wall-clock
// driven and always move forward through the cycle.
type Phase int

const (
	PhaseAwaitingOpen Phase = iota
	PhaseEntering
	PhaseMonitoring
	PhaseLiquidating
	PhaseResetting
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingOpen:
		return "AWAITING_OPEN"
	case PhaseEntering:
		return "ENTERING"
	case PhaseMonitoring:
		return "MONITORING"
	case PhaseLiquidating:
		return "LIQUIDATING"
	case PhaseResetting:
		return "RESETTING"
	default:
		return "UNKNOWN"
	}
}

// DayClock derives session landmarks from the configured trading calendar.
// It holds no state; all answers are pure functions of the given instant.
type DayClock struct {
	cfg *store.Config
}

func NewDayClock(cfg *store.Config) *DayClock {
	return &DayClock{cfg: cfg}
}

func at(now time.Time, hour, minute int) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
}

// SessionOpen is today's market open.
func (d *DayClock) SessionOpen(now time.Time) time.Time {
	return at(now, d.cfg.Session.OpenHour, 0)
}

// EntryStart is the first minute of today's entry window.
func (d *DayClock) EntryStart(now time.Time) time.Time {
	return at(now, d.cfg.Session.EntryHour, d.cfg.Session.EntryMinute)
}

// EntryEnd is the end of today's entry window; no tranche fires at or after
// this instant.
func (d *DayClock) EntryEnd(now time.Time) time.Time {
	return d.EntryStart(now).Add(time.Duration(d.cfg.Session.EntryWindowMins) * time.Minute)
}

// InEntryWindow reports whether now falls inside the entry window.
func (d *DayClock) InEntryWindow(now time.Time) bool {
	return !now.Before(d.EntryStart(now)) && now.Before(d.EntryEnd(now))
}

// TrancheIndex maps now to the zero-based tranche slot, one per whole minute
// since the window start. Returns -1 outside the window.
func (d *DayClock) TrancheIndex(now time.Time) int {
	if !d.InEntryWindow(now) {
		return -1
	}
	return int(now.Sub(d.EntryStart(now)) / time.Minute)
}

// PastTimeCut reports whether the hard liquidation deadline has passed.
func (d *DayClock) PastTimeCut(now time.Time) bool {
	return !now.Before(at(now, d.cfg.Session.TimeCutHour, d.cfg.Session.TimeCutMinute))
}

// PastClose reports whether today's session is over.
func (d *DayClock) PastClose(now time.Time) bool {
	return !now.Before(at(now, d.cfg.Session.CloseHour, d.cfg.Session.CloseMinute))
}

// IsWeekend reports Saturday or Sunday.
func (d *DayClock) IsWeekend(now time.Time) bool {
	wd := now.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// NextWake is tomorrow's pre-market wake-up instant.
func (d *DayClock) NextWake(now time.Time) time.Time {
	tomorrow := now.AddDate(0, 0, 1)
	return at(tomorrow, d.cfg.Session.WakeHour, d.cfg.Session.WakeMinute)
}

// MinutesIntoSession is the whole minutes elapsed since today's open;
// negative before the open.
func (d *DayClock) MinutesIntoSession(now time.Time) int {
	return int(now.Sub(d.SessionOpen(now)) / time.Minute)
}
