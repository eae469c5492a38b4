package timing

import (
	"log"
	"math"
)

// VTimeInSec is a point in virtual time, in seconds.
type VTimeInSec = float64

// Freq is a clock frequency.
type Freq float64

// Frequency units.
const (
	Hz  Freq = 1
	KHz Freq = 1e3
	MHz Freq = 1e6
	GHz Freq = 1e9
)

// Period returns the time between two ticks.
func (f Freq) Period() VTimeInSec {
	if f <= 0 {
		log.Panic("frequency must be positive")
	}

	return VTimeInSec(1.0 / f)
}

// Cycle returns the number of whole cycles between time 0 and t.
func (f Freq) Cycle(t VTimeInSec) uint64 {
	return uint64(math.Round(t * float64(f)))
}

// ThisTick returns the earliest tick at or after now.
func (f Freq) ThisTick(now VTimeInSec) VTimeInSec {
	mustBeValidTime(now)

	count := math.Ceil(math.Round(now*float64(f)*10) / 10)

	return VTimeInSec(count / float64(f))
}

// NextTick returns the earliest tick strictly after now.
func (f Freq) NextTick(now VTimeInSec) VTimeInSec {
	mustBeValidTime(now)

	count := math.Floor(math.Round(now*float64(f)*10) / 10)

	return VTimeInSec((count + 1) / float64(f))
}

// NCyclesLater returns the tick n cycles after now.
func (f Freq) NCyclesLater(n int, now VTimeInSec) VTimeInSec {
	mustBeValidTime(now)

	return f.ThisTick(now + VTimeInSec(float64(n)/float64(f)))
}

func mustBeValidTime(t VTimeInSec) {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		log.Panic("invalid time")
	}
}
