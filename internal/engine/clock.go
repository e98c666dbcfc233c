package engine

import "time"

// KST is the exchange timezone; every session calculation happens in it.
var KST = time.FixedZone("KST", 9*3600)

// Clock abstracts wall-clock access so tests can drive session phases
// without sleeping.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().In(KST) }

// NewClock returns the real KST wall clock.
func NewClock() Clock { return realClock{} }
