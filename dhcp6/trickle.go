package dhcp6

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/openthread-go/netdata/std/utils"
)

// Trickle implements the simplified Trickle timer this client uses (spec
// §4.5): redundancy constant k=∞, so every fire emits rather than
// suppressing, and the interval doubles from imin up to imax on each
// fire, resetting to imin whenever IndicateInconsistent is called. This
// mirrors the self-rescheduling *time.Timer + Reset pattern
// std/sync.SvSync's periodic/suppression timer uses, simplified to
// Trickle's doubling-interval rule instead of SvSync's jittered fixed
// period.
type Trickle struct {
	mu       sync.Mutex
	imin     time.Duration
	imax     time.Duration
	interval time.Duration
	timer    *time.Timer
	fire     func()
	running  bool
}

// NewTrickle returns a stopped Trickle timer.
func NewTrickle() *Trickle {
	return &Trickle{}
}

// Start begins the doubling-interval loop, first firing after a random
// delay in [imin, imax] the way RFC 6206 specifies the initial Trickle
// interval, then doubling on each subsequent fire up to imax.
func (t *Trickle) Start(imin, imax time.Duration, fire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.imin, t.imax, t.fire = imin, imax, fire
	t.interval = imin
	t.running = true
	t.scheduleLocked(t.randomInLocked(imin, imax))
}

func (t *Trickle) randomInLocked(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int64N(int64(hi-lo)))
}

func (t *Trickle) scheduleLocked(d time.Duration) {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(d, t.onFire)
}

func (t *Trickle) onFire() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	fire := t.fire
	t.interval = utils.Clamp(t.interval*2, t.imin, t.imax)
	t.scheduleLocked(t.interval)
	t.mu.Unlock()

	if fire != nil {
		fire()
	}
}

// IndicateInconsistent resets the interval to imin and reschedules the
// next fire, as every IA-context change does (spec §4.5).
func (t *Trickle) IndicateInconsistent() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.interval = t.imin
	t.scheduleLocked(t.randomInLocked(t.imin, t.imax))
}

// Stop halts the timer.
func (t *Trickle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	if t.timer != nil {
		t.timer.Stop()
	}
}
