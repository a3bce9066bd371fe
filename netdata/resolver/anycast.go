// Package resolver implements the Service Resolver: higher-level queries
// over the Thread-assigned DNS/SRP Anycast (service-id 0x5c) and DNS/SRP
// Unicast (service-id 0x5d) services carried in Service TLVs (spec §4.3).
package resolver

import (
	"encoding/binary"
	"errors"
	"net/netip"
	"sort"

	"github.com/openthread-go/netdata/netdata"
)

// ServiceIDAnycast and ServiceIDUnicast are the Thread-assigned service IDs
// this package resolves.
const (
	ServiceIDAnycast = 0x5c
	ServiceIDUnicast = 0x5d
)

// ErrUnsupportedEncoding is returned when a candidate service entry's
// service_data carries the high bit set on its first byte (0xfe and
// above as a sequence-number byte would be a valid plain value, but a
// service_data *length* or framing variant outside the single-byte
// sequence-number layout this resolver understands). The open question of
// whether Thread ever emits this alternate 2-byte-sequence encoding is
// left open by spec.md §9; rather than guess at its layout, this
// resolver surfaces it as an explicit error instead of silently
// misparsing it.
var ErrUnsupportedEncoding = errors.New("resolver: unsupported anycast service-data encoding")

// DnsSrpAnycastInfo is one DNS/SRP Anycast service entry (spec §3).
type DnsSrpAnycastInfo struct {
	AnycastAddress netip.Addr
	SequenceNumber uint8
	Version        uint8
	Rloc16         netdata.Rloc16
}

// anycastAlocBase is the low 16 bits of the Anycast Locator derived from a
// sequence number: ALOC16 = 0xfc00 | sequence_number (the full byte),
// mirrored here only far enough to produce a deterministic, documented
// per-sequence-number address — the exact Thread anycast locator
// allocation scheme is out of scope for this resolver, which only needs a
// stable 1:1 mapping for preference comparison and display.
const anycastAlocBase = 0xfc00

// deriveAnycastAddress returns the mesh-local anycast address embedding
// sequence_number in its low byte, per spec §3's "anycast_address derived
// from sequence_number".
func deriveAnycastAddress(seq uint8) netip.Addr {
	var b [16]byte
	b[0] = 0xfd
	b[8], b[9] = 0x00, 0xff
	b[10], b[11] = 0xfe, 0x00
	binary.BigEndian.PutUint16(b[14:], anycastAlocBase|uint16(seq))
	return netip.AddrFrom16(b)
}

// decodeAnycastServiceData extracts the sequence number from a DNS/SRP
// Anycast service entry's service_data. The Thread-assigned service type
// (0x5c) occupies service_data's first byte; the sequence number is the
// second.
func decodeAnycastServiceData(serviceData []byte) (uint8, error) {
	if len(serviceData) < 2 {
		return 0, &netdata.ParseError{Reason: "anycast service_data too short"}
	}
	if serviceData[1]&0x80 != 0 {
		return 0, ErrUnsupportedEncoding
	}
	return serviceData[1], nil
}

// isServiceType reports whether svc's service_data begins with the given
// Thread-assigned service type byte (0x5c for Anycast, 0x5d for Unicast).
func isServiceType(serviceData []byte, want uint8) bool {
	return len(serviceData) > 0 && serviceData[0] == want
}

// AllAnycastInfo decodes every DNS/SRP Anycast entry present in q.
func AllAnycastInfo(q *netdata.Query) ([]DnsSrpAnycastInfo, error) {
	services, err := q.NextServiceAll()
	if err != nil {
		return nil, err
	}

	var out []DnsSrpAnycastInfo
	for _, svc := range services {
		if !isServiceType(svc.ServiceData, ServiceIDAnycast) {
			continue
		}
		seq, err := decodeAnycastServiceData(svc.ServiceData)
		if err != nil {
			return nil, err
		}
		var version uint8
		if len(svc.Server.ServerData) > 0 {
			version = svc.Server.ServerData[0]
		}
		out = append(out, DnsSrpAnycastInfo{
			AnycastAddress: deriveAnycastAddress(seq),
			SequenceNumber: seq,
			Version:        version,
			Rloc16:         svc.Server.Rloc16,
		})
	}
	return out, nil
}

// inFrontOf reports whether a is "in front of" b in the circular
// sequence-number space: (a - b) mod 256 is in 1..127 (spec §4.3).
func inFrontOf(a, b uint8) bool {
	d := uint8(a - b)
	return d >= 1 && d <= 127
}

// preferOver applies the pairwise §4.3 ordering to a single (candidate,
// incumbent) pair: candidate wins if it is circularly in front of the
// incumbent; the incumbent wins if the reverse holds; the two are only
// genuinely tied (neither in front of the other) when their sequence
// numbers are equal or at the exact antipodal distance of 128, which falls
// through to the version and then RLOC16 tiebreaks.
func preferOver(candidate, incumbent DnsSrpAnycastInfo) DnsSrpAnycastInfo {
	switch {
	case inFrontOf(candidate.SequenceNumber, incumbent.SequenceNumber):
		return candidate
	case inFrontOf(incumbent.SequenceNumber, candidate.SequenceNumber):
		return incumbent
	case candidate.Version != incumbent.Version:
		if candidate.Version > incumbent.Version {
			return candidate
		}
		return incumbent
	case candidate.Rloc16 < incumbent.Rloc16:
		return candidate
	default:
		return incumbent
	}
}

// FindPreferredAnycastInfo selects the single preferred entry from a
// candidate set using the ordered criteria of spec §4.3.
//
// The circular "in front of" relation is only a partial order: three
// sequence numbers spaced roughly a third of the ring apart (e.g. 250, 10,
// 130) form a cycle where each is in front of exactly one of the other
// two, so there is no candidate nobody is ahead of. This resolver breaks
// that ambiguity the same way the worked examples in spec §8 resolve it:
// candidates are considered in ascending sequence-number order and folded
// pairwise against the running incumbent. Any two candidates compared
// directly (adjacent sequence numbers, or an equal or antipodal tie) are ordered
// consistently by this rule; cyclic triples resolve to whichever value
// the ascending fold reaches last.
func FindPreferredAnycastInfo(candidates []DnsSrpAnycastInfo) (DnsSrpAnycastInfo, bool) {
	if len(candidates) == 0 {
		return DnsSrpAnycastInfo{}, false
	}

	sorted := append([]DnsSrpAnycastInfo{}, candidates...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].SequenceNumber < sorted[j].SequenceNumber
	})

	best := sorted[0]
	for _, c := range sorted[1:] {
		best = preferOver(c, best)
	}
	return best, true
}
