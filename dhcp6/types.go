// Package dhcp6 implements the Thread DHCPv6 client (spec §4.5): soliciting
// off-mesh-routable addresses for dhcp-flagged prefixes advertised in
// Network Data, using RFC 8415's Solicit/Reply exchange with Rapid Commit.
package dhcp6

import (
	"net/netip"

	"github.com/openthread-go/netdata/netdata"
)

const (
	// ClientPort is the DHCPv6 client's well-known UDP port.
	ClientPort = 546
	// ServerPort is the DHCPv6 server/relay-agent well-known UDP port.
	ServerPort = 547
)

// IaStatus is the lifecycle state of one IdentityAssociation (spec §4.5).
type IaStatus int

const (
	IaStatusInvalid IaStatus = iota
	IaStatusSolicit
	IaStatusSoliciting
	IaStatusSolicitReplied
)

func (s IaStatus) String() string {
	switch s {
	case IaStatusInvalid:
		return "Invalid"
	case IaStatusSolicit:
		return "Solicit"
	case IaStatusSoliciting:
		return "Soliciting"
	case IaStatusSolicitReplied:
		return "SolicitReplied"
	default:
		return "Unknown"
	}
}

// IdentityAssociation tracks one dhcp-flagged prefix's lease state.
type IdentityAssociation struct {
	Prefix           netdata.Prefix
	PrefixAgentRloc  netdata.Rloc16
	Status           IaStatus
	PreferredLifetime uint32
	ValidLifetime     uint32
	NetifAddress      netip.Addr
}

// hasPrefix reports whether ia's installed address shares config's prefix.
func (ia *IdentityAssociation) hasPrefix(p netdata.Prefix) bool {
	return ia.NetifAddress.IsValid() && prefixMatch(ia.NetifAddress, p.Addr) >= int(p.Length)
}

// prefixMatch returns the number of leading bits a and b share, analogous
// to Ip6::Address::PrefixMatch.
func prefixMatch(a, b netip.Addr) int {
	aa, bb := a.As16(), b.As16()
	n := 0
	for i := 0; i < 16; i++ {
		x := aa[i] ^ bb[i]
		if x == 0 {
			n += 8
			continue
		}
		for x&0x80 == 0 {
			n++
			x <<= 1
		}
		break
	}
	return n
}
