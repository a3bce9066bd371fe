// Package notify implements the Thread Network Data change notifier: a
// small subscriber-dispatch layer sitting between the single-writer
// netdata.Store and the consumers that react to a version bump (the
// DHCPv6 client rescanning the dhcp-flagged prefix set, debugserver
// streaming the new version to a connected client, and anyone else that
// only cares "did Network Data change", not the bytes themselves).
package notify

import (
	"sync"

	"github.com/openthread-go/netdata/netdata"
	"github.com/openthread-go/netdata/std/log"
)

// Event reports that a Store mutation completed, with the version and
// stable-version it produced.
type Event struct {
	Version       uint8
	StableVersion uint8
}

// Flag names which aspect of an Event a subscriber cares about, mirroring
// the coarse OT_CHANGED_THREAD_NETDATA-style change bits original_source
// reports alongside richer role/state flags this repo does not model.
type Flag uint8

const (
	// FlagNetData fires on every version bump, stable or not.
	FlagNetData Flag = 1 << iota
	// FlagNetDataStable fires only when stable_version moved, i.e. a
	// reader limited to the stable subset would see a different view.
	FlagNetDataStable
)

type subscription struct {
	flags Flag
	fn    func(Event)
}

// Notifier dispatches Store change events to subscribers filtered by Flag.
// One Notifier is normally built per Store and wired with Watch at
// startup, the way dv/table wires its FIB/RIB recompute hook off a table
// mutation callback.
type Notifier struct {
	mu         sync.Mutex
	subs       []subscription
	lastStable uint8
}

// New returns an empty Notifier. Call Watch to wire it to a Store.
func New() *Notifier {
	return &Notifier{}
}

// Watch subscribes the Notifier to s, so every successful Store mutation
// is turned into a dispatched Event. Call once per Store.
func (n *Notifier) Watch(s *netdata.Store) {
	s.OnChange(func(version, stableVersion uint8) {
		n.dispatch(Event{Version: version, StableVersion: stableVersion})
	})
}

// Subscribe registers fn to be called for every Event matching any bit in
// flags. It returns an Unsubscribe func removing the registration.
func (n *Notifier) Subscribe(flags Flag, fn func(Event)) (unsubscribe func()) {
	if fn == nil {
		panic("notify: callback is required for subscription")
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	sub := subscription{flags: flags, fn: fn}
	n.subs = append(n.subs, sub)
	idx := len(n.subs) - 1

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if idx < len(n.subs) && n.subs[idx].fn != nil {
			n.subs[idx].fn = nil
		}
	}
}

// dispatch invokes every live subscriber whose flags overlap ev's implied
// flag set, in subscription order. stable_version only moves when
// version also moves (commitLocked bumps version unconditionally), so
// FlagNetDataStable is folded into FlagNetData's dispatch rather than a
// separate detection pass.
func (n *Notifier) dispatch(ev Event) {
	implied := FlagNetData
	n.mu.Lock()
	prevStable := n.lastStable
	stableMoved := ev.StableVersion != prevStable
	n.lastStable = ev.StableVersion
	if stableMoved {
		implied |= FlagNetDataStable
	}
	subs := append([]subscription{}, n.subs...)
	n.mu.Unlock()

	log.Debugf("notify: dispatching version=%d stable_version=%d stable_moved=%v", ev.Version, ev.StableVersion, stableMoved)

	for _, sub := range subs {
		if sub.fn == nil || sub.flags&implied == 0 {
			continue
		}
		sub.fn(ev)
	}
}
