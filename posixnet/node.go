package posixnet

import (
	"fmt"
	"net/netip"
	"sync"

	"github.com/openthread-go/netdata/netdata"
	"github.com/openthread-go/netdata/hostapi"
)

// Radio is the trivial hostapi.Radio: the EUI-64 programmed into the
// device's configuration, not read off any real transceiver, since this
// repository does not drive 802.15.4 radio hardware (spec Non-goals).
type Radio struct {
	eui64 [8]byte
}

// NewRadio returns a Radio reporting eui64 as its identity.
func NewRadio(eui64 [8]byte) *Radio {
	return &Radio{eui64: eui64}
}

func (r *Radio) EUI64() [8]byte { return r.eui64 }

// ThreadNetif is a record-only hostapi.ThreadNetif: it tracks the set of
// addresses the DHCPv6 client has asked to install, but does not program
// them onto a kernel network interface. A generic host has no Thread
// netif device to program; wiring this to a real one needs a netlink (or
// platform-equivalent) client this module's dependency pack does not
// carry, so this stands in as the addressable surface tests and the
// debug server can observe until a real Thread netif driver exists.
type ThreadNetif struct {
	mu        sync.Mutex
	addresses map[netip.Addr]hostapi.AddressLifetime
}

// NewThreadNetif returns an empty ThreadNetif.
func NewThreadNetif() *ThreadNetif {
	return &ThreadNetif{addresses: make(map[netip.Addr]hostapi.AddressLifetime)}
}

func (n *ThreadNetif) AddUnicastAddress(addr netip.Addr, lifetime hostapi.AddressLifetime) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.addresses[addr] = lifetime
	return nil
}

func (n *ThreadNetif) RemoveUnicastAddress(addr netip.Addr) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.addresses[addr]; !ok {
		return fmt.Errorf("posixnet: address %s not installed", addr)
	}
	delete(n.addresses, addr)
	return nil
}

// Addresses returns a snapshot of the addresses currently installed,
// for the debug server and tests to inspect.
func (n *ThreadNetif) Addresses() map[netip.Addr]hostapi.AddressLifetime {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[netip.Addr]hostapi.AddressLifetime, len(n.addresses))
	for a, l := range n.addresses {
		out[a] = l
	}
	return out
}

// MLE derives mesh-local addresses from a mesh-local prefix and this
// node's own RLOC16, without driving a real MLE state machine: the
// interface-identifier construction (0000:00ff:fe00:rloc16, Thread's
// RLOC IID) is the only part of MLE the DHCPv6 client and Indirect
// Sender actually consume.
type MLE struct {
	meshLocalPrefix netip.Prefix
	selfRloc16      netdata.Rloc16

	mu       sync.Mutex
	onChange func()
}

// NewMLE returns an MLE deriving addresses under meshLocalPrefix (a /64)
// for a node whose own routing locator is selfRloc16.
func NewMLE(meshLocalPrefix netip.Prefix, selfRloc16 netdata.Rloc16) *MLE {
	return &MLE{meshLocalPrefix: meshLocalPrefix, selfRloc16: selfRloc16}
}

func (m *MLE) OnNetworkDataChanged() {
	m.mu.Lock()
	fn := m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// SetOnNetworkDataChanged installs the callback OnNetworkDataChanged
// invokes, letting tests observe that the Network Data subsystem
// notified MLE of a change.
func (m *MLE) SetOnNetworkDataChanged(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

func (m *MLE) ReplaceNetworkData(buf []byte) error {
	return nil
}

func (m *MLE) RoutingLocatorAddress(rloc16 netdata.Rloc16) netip.Addr {
	return rlocAddress(m.meshLocalPrefix, rloc16)
}

func (m *MLE) MeshLocalRloc() netip.Addr {
	return rlocAddress(m.meshLocalPrefix, m.selfRloc16)
}

// rlocAddress builds the RLOC IID per Thread's addressing rules: the low
// 16 bits hold the RLOC16, and bits 64:112 are the fixed 0000:00ff:fe00
// locator pattern.
func rlocAddress(meshLocalPrefix netip.Prefix, rloc16 netdata.Rloc16) netip.Addr {
	base := meshLocalPrefix.Addr().As16()
	var iid [8]byte
	iid[3] = 0xff
	iid[4] = 0xfe
	iid[5] = 0x00
	iid[6] = byte(rloc16 >> 8)
	iid[7] = byte(rloc16)
	copy(base[8:], iid[:])
	return netip.AddrFrom16(base)
}
