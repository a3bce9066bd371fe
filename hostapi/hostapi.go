// Package hostapi declares the interfaces the core Thread stack (indirect
// sender, DHCPv6 client) calls into on a real device: the radio, the
// Thread network interface, UDP sockets, the MAC layer's frame-change
// protocol, the IPv6 forwarder's send queue, MLE, and the Trickle timer's
// host-side wakeup source. Everything in this repository that touches
// hardware or another subsystem goes through one of these, the way
// fw/face's transport interface keeps the link service from depending on
// any concrete socket type (spec §6 "Host API consumed").
package hostapi

import (
	"context"
	"net/netip"
	"time"

	"github.com/openthread-go/netdata/netdata"
)

// Radio exposes the identity the DHCPv6 client needs to build its DUID-LL
// Client-ID option.
type Radio interface {
	// EUI64 returns the radio's 8-byte extended unique identifier.
	EUI64() [8]byte
}

// AddressLifetime carries the preferred/valid lifetimes (seconds) an
// address is installed with on the Thread network interface.
type AddressLifetime struct {
	Preferred uint32
	Valid     uint32
}

// ThreadNetif is the subset of the Thread network interface the DHCPv6
// client drives: installing and removing the unicast addresses it
// negotiates leases for.
type ThreadNetif interface {
	AddUnicastAddress(addr netip.Addr, lifetime AddressLifetime) error
	RemoveUnicastAddress(addr netip.Addr) error
}

// UDPMessage is an outgoing UDP payload paired with its destination.
type UDPMessage struct {
	Payload []byte
	Dest    netip.AddrPort
}

// UDPReceiveFunc is invoked by the host for every inbound datagram on a
// socket the DHCPv6 client opened.
type UDPReceiveFunc func(payload []byte, from netip.AddrPort)

// UDP is the minimal datagram-socket contract the DHCPv6 client needs: a
// bound local port, send, and an installed receive callback. The host
// owns the actual socket/event-loop integration.
type UDP interface {
	// Bind opens (or reopens) the socket on the given local port.
	Bind(ctx context.Context, localPort uint16) error
	// SendTo transmits msg.Payload to msg.Dest.
	SendTo(msg UDPMessage) error
	// SetReceiveCallback installs fn as the handler for inbound datagrams.
	// Only one callback is active at a time; a later call replaces it.
	SetReceiveCallback(fn UDPReceiveFunc)
	// Close releases the socket.
	Close() error
}

// FrameChangeKind names the two frame-change requests the indirect sender
// issues to the MAC layer (spec §4.4).
type FrameChangeKind int

const (
	// PurgeFrame discards any frame currently prepared for the child.
	PurgeFrame FrameChangeKind = iota
	// ReplaceFrame swaps the frame currently prepared for the child with
	// a freshly prepared one.
	ReplaceFrame
)

// TxOutcome is the MAC-layer result of one indirect transmission attempt,
// mapped from spec §7's `Abort`/`NoAck`/`ChannelAccessFailure` outcomes
// plus the success case.
type TxOutcome int

const (
	TxOk TxOutcome = iota
	TxNoAck
	TxChannelAccessFailure
	TxAbort
)

// Frame is the minimal outgoing-frame shape the indirect sender fills in
// and the MAC transmits; FramePending mirrors 802.15.4's Frame Pending
// bit, which the indirect sender sets when the child has more than one
// queued message remaining.
type Frame struct {
	Payload      []byte
	FramePending bool
	Empty        bool
}

// MAC is the frame-change/transmission contract between the indirect
// sender and the MAC layer. Requests (RequestFrameChange) and
// completions (the frame-change-done callback, delivered back into the
// indirect sender's HandleFrameChangeDone) are deliberately asynchronous
// and never share a lock (spec §9): the MAC invokes the completion
// callback only after RequestFrameChange has returned, from its own
// context. The indirect sender holds its own mutex while calling
// RequestFrameChange, and HandleFrameChangeDone takes that mutex, so a
// completion delivered from within RequestFrameChange would deadlock.
type MAC interface {
	// RequestFrameChange asks the MAC to purge or replace the frame
	// currently prepared for child rloc16. Completion is signalled by
	// the indirect sender's own HandleFrameChangeDone, which the caller
	// (the MAC implementation) is responsible for invoking.
	RequestFrameChange(kind FrameChangeKind, childRloc16 netdata.Rloc16)
	// SetSourceMatchShort switches 802.15.4 source-match address mode
	// for childRloc16: short-address mode when short is true, extended
	// otherwise.
	SetSourceMatchShort(childRloc16 netdata.Rloc16, short bool)
	// IncrementPendingCount and DecrementPendingCount track the MAC
	// source-match pending-frame count for childRloc16, used to decide
	// whether an ack to that child's data poll carries Frame Pending.
	IncrementPendingCount(childRloc16 netdata.Rloc16)
	DecrementPendingCount(childRloc16 netdata.Rloc16)
	ResetPendingCount(childRloc16 netdata.Rloc16)
}

// Forwarder is the subset of the IPv6 forwarder's send queue the indirect
// sender inspects and mutates: it owns the queue, the indirect sender
// only scans it for the next message destined to a child and asks the
// forwarder to drop one once no one needs it anymore (spec §5 "Shared
// resources").
type Forwarder interface {
	// RemoveMessageIfNoPendingTx asks the forwarder to drop messageID if
	// neither a direct nor any indirect transmission is still pending
	// for it.
	RemoveMessageIfNoPendingTx(messageID uint64)
}

// MLE is the subset of the Mesh Link Establishment layer the Network
// Data store's writer side is driven by, plus the mesh-local addressing
// the DHCPv6 client needs to reach another RLOC16: incoming authenticated
// Network Data blobs replace the store's image, `OnNetworkDataChanged` is
// how MLE itself learns a local mutation (e.g. Leader prune) completed,
// and RoutingLocatorAddress/MeshLocalRloc derive mesh-local addresses
// from the node's mesh-local prefix the way
// Mle::GetMeshLocalRloc/SetToRoutingLocator do.
type MLE interface {
	OnNetworkDataChanged()
	ReplaceNetworkData(buf []byte) error

	// RoutingLocatorAddress returns the mesh-local address for rloc16.
	RoutingLocatorAddress(rloc16 netdata.Rloc16) netip.Addr
	// MeshLocalRloc returns this node's own mesh-local RLOC address.
	MeshLocalRloc() netip.Addr
}

// TrickleTimer is the host-provided wakeup source the DHCPv6 client's
// Trickle algorithm rides on: Start begins the doubling-interval loop
// calling fire on each tick, IndicateInconsistent resets the interval to
// imin, and Stop halts it.
type TrickleTimer interface {
	Start(imin, imax time.Duration, fire func())
	IndicateInconsistent()
	Stop()
}
