// Package indirect implements the Indirect Sender: the per-child state
// machine that buffers datagrams for sleepy (non-rx-on-when-idle)
// children and hands them to the MAC layer one at a time as each child's
// data poll arrives (spec §4.4).
package indirect

import (
	"errors"
	"math/bits"
	"sync"

	"github.com/openthread-go/netdata/netdata"
	"github.com/openthread-go/netdata/hostapi"
	"github.com/openthread-go/netdata/std/log"
)

// MessageType distinguishes an ordinary IPv6 datagram from a supervision
// (keep-alive) message; only the latter is ever preempted automatically
// on enqueue of real traffic.
type MessageType int

const (
	TypeIP6 MessageType = iota
	TypeSupervision
)

// ChildMask is the per-message bitmap of which children still need this
// message delivered, keyed by child index. A uint64 covers up to 64
// children, well above a constrained Thread node's child-table limit.
type ChildMask uint64

func (m ChildMask) Has(idx int) bool         { return m&(1<<uint(idx)) != 0 }
func (m ChildMask) add(idx int) ChildMask    { return m | 1<<uint(idx) }
func (m ChildMask) remove(idx int) ChildMask { return m &^ (1 << uint(idx)) }

// Count returns the number of children still pending delivery.
func (m ChildMask) Count() int { return bits.OnesCount64(uint64(m)) }

// Message is an enqueued datagram plus the set of children it is still
// indirectly destined for. ID is opaque to this package; Length is used
// only to decide when a fragmented transmission has completed.
type Message struct {
	ID     uint64
	Type   MessageType
	Length int

	mask ChildMask
}

// Mask returns the message's current child-destination bitmask.
func (m *Message) Mask() ChildMask { return m.mask }

// ChildState is the high-level state a sleepy child's indirect-delivery
// machine is in (spec §4.4's state diagram), tracked informationally;
// the authoritative state for frame preparation is IndirectMessage plus
// IndirectFragmentOffset.
type ChildState int

const (
	ChildIdle ChildState = iota
	ChildPreparing
	ChildSending
	ChildPurged
)

// Child is a sleepy neighbor's indirect-transmission bookkeeping.
type Child struct {
	Rloc16  netdata.Rloc16
	ExtAddr [8]byte
	Index   int // stable per-child slot used as the ChildMask bit position

	RxOnWhenIdle bool
	Valid        bool // false once detached/timed out; triggers the Purged sweep

	State                 ChildState
	SrcMatchShort         bool
	WaitingForFrameUpdate bool

	IndirectMessage        *Message
	IndirectFragmentOffset int
	IndirectTxSuccess      bool
}

func (c *Child) indirectMessageCount(queue []*Message) int {
	n := 0
	for _, m := range queue {
		if m.mask.Has(c.Index) {
			n++
		}
	}
	return n
}

// Config controls build-time behavior that original_source gates behind
// compile flags.
type Config struct {
	// DropMessageOnFragmentTxFailure mirrors
	// OPENTHREAD_CONFIG_DROP_MESSAGE_ON_FRAGMENT_TX_FAILURE: when set, any
	// fragment transmission failure skips the remaining fragments of that
	// message instead of continuing with them from the next offset.
	DropMessageOnFragmentTxFailure bool
}

// Sender is the per-device Indirect Sender. It owns the send queue of
// messages awaiting indirect delivery (the forwarder in a full stack
// would own this; in this repository's scope the two concerns are
// merged, with hostapi.Forwarder kept as the external removal-notice
// hook spec §5 describes) and coordinates frame preparation with
// hostapi.MAC.
type Sender struct {
	mu sync.Mutex

	mac       hostapi.MAC
	forwarder hostapi.Forwarder
	cfg       Config

	enabled bool
	queue   []*Message
	nextID  uint64
}

// New constructs a Sender wired to mac and fw.
func New(mac hostapi.MAC, fw hostapi.Forwarder, cfg Config) *Sender {
	return &Sender{mac: mac, forwarder: fw, cfg: cfg, enabled: true}
}

// Stop clears all per-child state: every message mask and every child's
// prepared indirect message, mirroring IndirectSender::Stop.
func (s *Sender) Stop(children []*Child) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range children {
		for _, m := range s.queue {
			m.mask = m.mask.remove(c.Index)
		}
		c.IndirectMessage = nil
		c.State = ChildIdle
		s.mac.ResetPendingCount(c.Rloc16)
	}
	s.enabled = false
}

// Enqueue adds a new message of the given type and length to the send
// queue, returning it so the caller can pass it to AddMessageForSleepyChild
// for each destined sleepy child.
func (s *Sender) Enqueue(typ MessageType, length int) *Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m := &Message{ID: s.nextID, Type: typ, Length: length}
	s.queue = append(s.queue, m)
	return m
}

// AddMessageForSleepyChild sets child's bit in m's mask, increments the
// MAC source-match pending count, and — if m is not itself a supervision
// message and child already has other queued traffic — drops any pending
// supervision message for child, since real traffic implies liveness
// (spec §4.4).
func (s *Sender) AddMessageForSleepyChild(m *Message, c *Child) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.mask.Has(c.Index) {
		return
	}
	m.mask = m.mask.add(c.Index)
	s.mac.IncrementPendingCount(c.Rloc16)

	if m.Type != TypeSupervision && c.indirectMessageCount(s.queue) > 1 {
		if sv := s.findQueuedMessageForChildLocked(c, acceptSupervision); sv != nil {
			s.removeMessageFromSleepyChildLocked(sv, c)
			s.forwarder.RemoveMessageIfNoPendingTx(sv.ID)
		}
	}

	s.requestMessageUpdateLocked(c)
}

// ErrNotFound is returned by RemoveMessageFromSleepyChild when the
// child's bit was already clear.
var ErrNotFound = errors.New("indirect: child bit already clear")

// RemoveMessageFromSleepyChild clears child's bit in m's mask and
// decrements the MAC pending count.
func (s *Sender) RemoveMessageFromSleepyChild(m *Message, c *Child) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !m.mask.Has(c.Index) {
		return ErrNotFound
	}
	s.removeMessageFromSleepyChildLocked(m, c)
	s.requestMessageUpdateLocked(c)
	return nil
}

func (s *Sender) removeMessageFromSleepyChildLocked(m *Message, c *Child) {
	m.mask = m.mask.remove(c.Index)
	s.mac.DecrementPendingCount(c.Rloc16)
}

type messageChecker func(*Message) bool

func acceptAny(*Message) bool         { return true }
func acceptSupervision(m *Message) bool { return m.Type == TypeSupervision }

func (s *Sender) findQueuedMessageForChildLocked(c *Child, accept messageChecker) *Message {
	for _, m := range s.queue {
		if m.mask.Has(c.Index) && accept(m) {
			return m
		}
	}
	return nil
}

// clearAllMessagesForSleepyChildLocked removes child's bit from every
// queued message, notifies the forwarder of now-unreferenced messages,
// and resets the child's indirect state and MAC pending count.
func (s *Sender) clearAllMessagesForSleepyChildLocked(c *Child) {
	if c.indirectMessageCount(s.queue) == 0 {
		return
	}

	for _, m := range s.queue {
		if m.mask.Has(c.Index) {
			m.mask = m.mask.remove(c.Index)
			s.forwarder.RemoveMessageIfNoPendingTx(m.ID)
		}
	}

	c.IndirectMessage = nil
	c.State = ChildIdle
	s.mac.ResetPendingCount(c.Rloc16)
	s.mac.RequestFrameChange(hostapi.PurgeFrame, c.Rloc16)
}

// HandleChildModeChange reacts to a child's device-mode update. A flip to
// rx-on-when-idle clears the child's bit from every queued message, resets
// its pending count and purges its prepared frame, returning it to Idle;
// the messages themselves stay in the queue and this package does not
// hand them to any direct-transmission path. The reverse direction is a
// no-op, matching
// original_source's rationale that already-queued direct traffic is left
// as-is rather than reclassified back to indirect.
func (s *Sender) HandleChildModeChange(c *Child, wasRxOnWhenIdle bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !c.RxOnWhenIdle && c.Valid {
		s.mac.SetSourceMatchShort(c.Rloc16, true)
		c.SrcMatchShort = true
	}

	if !wasRxOnWhenIdle && c.RxOnWhenIdle && c.indirectMessageCount(s.queue) > 0 {
		for _, m := range s.queue {
			if m.mask.Has(c.Index) {
				m.mask = m.mask.remove(c.Index)
			}
		}
		c.IndirectMessage = nil
		c.State = ChildIdle
		s.mac.ResetPendingCount(c.Rloc16)
		s.mac.RequestFrameChange(hostapi.PurgeFrame, c.Rloc16)
	}
}

// requestMessageUpdateLocked chooses the next message to prepare for c,
// issuing a Purge or Replace request to the MAC when the currently
// prepared message differs from the new choice (spec §4.4,
// IndirectSender::RequestMessageUpdate).
func (s *Sender) requestMessageUpdateLocked(c *Child) {
	cur := c.IndirectMessage

	if cur != nil && !cur.mask.Has(c.Index) {
		c.IndirectMessage = nil
		c.WaitingForFrameUpdate = true
		s.mac.RequestFrameChange(hostapi.PurgeFrame, c.Rloc16)
		return
	}

	if c.WaitingForFrameUpdate {
		return
	}

	next := s.findQueuedMessageForChildLocked(c, acceptAny)
	if cur == next {
		return
	}

	if cur == nil {
		s.updateIndirectMessageLocked(c)
		return
	}

	if c.IndirectFragmentOffset != 0 {
		// A fragment of the current message is already mid-flight;
		// let it finish before switching.
		return
	}

	c.WaitingForFrameUpdate = true
	s.mac.RequestFrameChange(hostapi.ReplaceFrame, c.Rloc16)
}

// HandleFrameChangeDone is the MAC's completion callback for a pending
// RequestFrameChange, as wired through hostapi.MAC.
func (s *Sender) HandleFrameChangeDone(c *Child) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !c.WaitingForFrameUpdate {
		return
	}
	s.updateIndirectMessageLocked(c)
}

func (s *Sender) updateIndirectMessageLocked(c *Child) {
	next := s.findQueuedMessageForChildLocked(c, acceptAny)
	c.WaitingForFrameUpdate = false
	c.IndirectMessage = next
	c.IndirectFragmentOffset = 0
	c.IndirectTxSuccess = true

	if next != nil {
		c.State = ChildPreparing
		log.Debugf("indirect: prepared message=%d for child rloc16=0x%04x", next.ID, c.Rloc16)
	} else {
		c.State = ChildIdle
	}
}

// PrepareFrameForChild builds the next outgoing frame for c: an empty
// frame if nothing is queued, otherwise the next fragment (or whole
// message, for supervision traffic) of c's current indirect message.
// For a message frame, FramePending is set iff c has more than one message
// still pending (the current one has not yet been removed from its mask);
// the empty frame returned when nothing is prepared always has
// FramePending set.
func (s *Sender) PrepareFrameForChild(c *Child) (hostapi.Frame, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return hostapi.Frame{}, 0, &Error{Reason: "sender not enabled"}
	}

	m := c.IndirectMessage
	if m == nil {
		return hostapi.Frame{Empty: true, FramePending: true}, 0, nil
	}

	framePending := c.indirectMessageCount(s.queue) > 1

	switch m.Type {
	case TypeSupervision:
		return hostapi.Frame{Empty: true, FramePending: framePending}, m.Length, nil
	default:
		// Fragmentation above one MAC frame's MTU is the forwarder's
		// concern (PrepareDataFrameWithNoMeshHeader in original_source);
		// this package only tracks the resulting offset it is told about
		// via HandleSentFrameToChild, so it advances straight to the end
		// of the message here.
		return hostapi.Frame{FramePending: framePending}, m.Length, nil
	}
}

// Error reports an Indirect Sender precondition violation.
type Error struct{ Reason string }

func (e *Error) Error() string { return "indirect: " + e.Reason }

// HandleSentFrameToChild processes the MAC's transmission outcome for the
// frame most recently returned by PrepareFrameForChild: it advances the
// fragment offset, or — on message completion — clears the child's bit,
// invokes the forwarder removal hook, and immediately prepares the next
// message. nextOffset==0 is the "empty frame raced with a purge" case and
// is explicitly tolerated as a no-op (spec §7).
func (s *Sender) HandleSentFrameToChild(c *Child, nextOffset int, outcome hostapi.TxOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return
	}

	m := c.IndirectMessage
	if nextOffset == 0 {
		return
	}

	switch outcome {
	case hostapi.TxOk:
	case hostapi.TxNoAck, hostapi.TxChannelAccessFailure, hostapi.TxAbort:
		c.IndirectTxSuccess = false
		if s.cfg.DropMessageOnFragmentTxFailure && m != nil {
			nextOffset = m.Length
		}
	}

	if m != nil && nextOffset < m.Length {
		c.IndirectFragmentOffset = nextOffset
		return
	}

	if m != nil {
		c.IndirectMessage = nil
		s.mac.SetSourceMatchShort(c.Rloc16, true)
		c.SrcMatchShort = true

		if m.mask.Has(c.Index) {
			m.mask = m.mask.remove(c.Index)
			s.mac.DecrementPendingCount(c.Rloc16)
		}

		s.forwarder.RemoveMessageIfNoPendingTx(m.ID)
		log.Debugf("indirect: completed message=%d to child rloc16=0x%04x outcome=%v", m.ID, c.Rloc16, outcome)
	}

	s.updateIndirectMessageLocked(c)
}

// ClearMessagesForRemovedChildren sweeps children, purging every masked
// message for any child no longer in a valid state (detach/timeout),
// mirroring the call original_source makes after every
// HandleSentFrameToChild.
func (s *Sender) ClearMessagesForRemovedChildren(children []*Child) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range children {
		if c.Valid {
			continue
		}
		s.clearAllMessagesForSleepyChildLocked(c)
	}
}
