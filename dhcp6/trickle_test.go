package dhcp6

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTrickleFiresWithinImaxWindow(t *testing.T) {
	tr := NewTrickle()
	var fires int32
	tr.Start(5*time.Millisecond, 10*time.Millisecond, func() {
		atomic.AddInt32(&fires, 1)
	})
	defer tr.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&fires) >= 1
	}, 100*time.Millisecond, time.Millisecond)
}

func TestTrickleIndicateInconsistentReschedulesSoon(t *testing.T) {
	tr := NewTrickle()
	var fires int32
	tr.Start(50*time.Millisecond, 200*time.Millisecond, func() {
		atomic.AddInt32(&fires, 1)
	})
	defer tr.Stop()

	tr.IndicateInconsistent()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&fires) >= 1
	}, 250*time.Millisecond, time.Millisecond)
}

func TestTrickleStopHaltsFurtherFires(t *testing.T) {
	tr := NewTrickle()
	var fires int32
	tr.Start(time.Millisecond, 2*time.Millisecond, func() {
		atomic.AddInt32(&fires, 1)
	})
	time.Sleep(5 * time.Millisecond)
	tr.Stop()
	seen := atomic.LoadInt32(&fires)
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, seen, atomic.LoadInt32(&fires))
}
