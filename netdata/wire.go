package netdata

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// This file decodes/encodes the value sub-structure of each top-level TLV
// kind in scope (spec §3). tlv.Header/tlv.Iterator handle the outer
// {type,stable,length} framing; everything here operates on a TLV's
// already-bounds-checked Value() slice.

const (
	brFlagPreferredBit = 1 << 5
	brFlagSlaacBit     = 1 << 4
	brFlagDhcpBit      = 1 << 3
	brFlagConfigureBit = 1 << 2
	brFlagDefaultRtBit = 1 << 1
	brFlagOnMeshBit    = 1 << 0

	brFlags2NdDnsBit = 1 << 0
	brFlags2DpBit    = 1 << 1

	hrFlagNat64Bit  = 1 << 5
	hrFlagAdvPioBit = 1 << 4

	ctxFlagCompressBit = 1 << 7
	ctxIDMask          = 0x0f

	serviceTBit         = 1 << 7
	serviceIDMask       = 0x0f
	serviceThreadEnterprise = uint32(44970) // Thread's IANA enterprise number, used when T=1
)

func ceilBytes(bits uint8) int {
	return (int(bits) + 7) / 8
}

// decodePrefixHeader reads {domain_id, prefix_length, prefix_bytes} from
// the front of a Prefix TLV's value and returns the sub-TLV region that
// follows it.
func decodePrefixHeader(value []byte) (domainID uint8, prefix Prefix, subTLVs []byte, err error) {
	if len(value) < 2 {
		return 0, Prefix{}, nil, &ParseError{Reason: "prefix TLV shorter than header"}
	}

	domainID = value[0]
	prefixLen := value[1]
	if prefixLen > 128 {
		return 0, Prefix{}, nil, &InvariantViolation{
			Which:  InvariantPrefixLengthRange,
			Detail: fmt.Sprintf("prefix_length=%d", prefixLen),
		}
	}

	nBytes := ceilBytes(prefixLen)
	if len(value) < 2+nBytes {
		return 0, Prefix{}, nil, &InvariantViolation{
			Which:  InvariantPrefixByteCount,
			Detail: fmt.Sprintf("need %d prefix bytes, have %d", nBytes, len(value)-2),
		}
	}

	var addrBytes [16]byte
	copy(addrBytes[:], value[2:2+nBytes])
	addr := netip.AddrFrom16(addrBytes)

	prefix = Prefix{Addr: addr, Length: prefixLen}
	subTLVs = value[2+nBytes:]
	return domainID, prefix, subTLVs, nil
}

// encodePrefixHeader is the inverse of decodePrefixHeader.
func encodePrefixHeader(domainID uint8, prefix Prefix) []byte {
	nBytes := ceilBytes(prefix.Length)
	out := make([]byte, 2+nBytes)
	out[0] = domainID
	out[1] = prefix.Length
	addr16 := prefix.Addr.As16()
	copy(out[2:], addr16[:nBytes])
	return out
}

func decodeBorderRouterValue(value []byte) (rloc Rloc16, pref Preference, flags struct {
	Preferred, Slaac, Dhcp, Configure, DefaultRoute, OnMesh, NdDns, Dp bool
}, err error) {
	if len(value) < 3 {
		err = &ParseError{Reason: "border router sub-TLV shorter than minimum"}
		return
	}

	rloc = Rloc16(binary.BigEndian.Uint16(value[0:2]))
	f1 := value[2]
	pref = decodePreference(f1 >> 6)
	flags.Preferred = f1&brFlagPreferredBit != 0
	flags.Slaac = f1&brFlagSlaacBit != 0
	flags.Dhcp = f1&brFlagDhcpBit != 0
	flags.Configure = f1&brFlagConfigureBit != 0
	flags.DefaultRoute = f1&brFlagDefaultRtBit != 0
	flags.OnMesh = f1&brFlagOnMeshBit != 0

	if len(value) >= 4 {
		f2 := value[3]
		flags.NdDns = f2&brFlags2NdDnsBit != 0
		flags.Dp = f2&brFlags2DpBit != 0
	}

	return
}

func encodeBorderRouterValue(cfg OnMeshPrefixConfig) []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint16(out[0:2], uint16(cfg.Rloc16))

	f1 := encodePreference(cfg.Preference) << 6
	if cfg.Preferred {
		f1 |= brFlagPreferredBit
	}
	if cfg.Slaac {
		f1 |= brFlagSlaacBit
	}
	if cfg.Dhcp {
		f1 |= brFlagDhcpBit
	}
	if cfg.Configure {
		f1 |= brFlagConfigureBit
	}
	if cfg.DefaultRoute {
		f1 |= brFlagDefaultRtBit
	}
	if cfg.OnMesh {
		f1 |= brFlagOnMeshBit
	}
	out[2] = f1

	var f2 uint8
	if cfg.NdDns {
		f2 |= brFlags2NdDnsBit
	}
	if cfg.DomainPrefix {
		f2 |= brFlags2DpBit
	}
	out[3] = f2

	return out
}

func decodeHasRouteValue(value []byte) (rloc Rloc16, pref Preference, nat64, advPio bool, err error) {
	if len(value) < 3 {
		err = &ParseError{Reason: "has route sub-TLV shorter than minimum"}
		return
	}
	rloc = Rloc16(binary.BigEndian.Uint16(value[0:2]))
	f := value[2]
	pref = decodePreference(f >> 6)
	nat64 = f&hrFlagNat64Bit != 0
	advPio = f&hrFlagAdvPioBit != 0
	return
}

func encodeHasRouteValue(cfg ExternalRouteConfig) []byte {
	out := make([]byte, 3)
	binary.BigEndian.PutUint16(out[0:2], uint16(cfg.Rloc16))
	f := encodePreference(cfg.Preference) << 6
	if cfg.Nat64 {
		f |= hrFlagNat64Bit
	}
	if cfg.AdvPio {
		f |= hrFlagAdvPioBit
	}
	out[2] = f
	return out
}

func decodeContextValue(value []byte) (contextID uint8, compress bool, prefix Prefix, err error) {
	if len(value) < 2 {
		err = &ParseError{Reason: "6LoWPAN context sub-TLV shorter than minimum"}
		return
	}
	f := value[0]
	contextID = f & ctxIDMask
	compress = f&ctxFlagCompressBit != 0
	prefixLen := value[1]
	if prefixLen > 128 {
		err = &InvariantViolation{Which: InvariantPrefixLengthRange, Detail: fmt.Sprintf("context prefix_length=%d", prefixLen)}
		return
	}
	nBytes := ceilBytes(prefixLen)
	if len(value) < 2+nBytes {
		err = &InvariantViolation{Which: InvariantPrefixByteCount, Detail: "context prefix truncated"}
		return
	}
	var addrBytes [16]byte
	copy(addrBytes[:], value[2:2+nBytes])
	prefix = Prefix{Addr: netip.AddrFrom16(addrBytes), Length: prefixLen}
	return
}

// encodeContextValue is the inverse of decodeContextValue.
func encodeContextValue(contextID uint8, compress bool, prefix Prefix) []byte {
	nBytes := ceilBytes(prefix.Length)
	out := make([]byte, 2+nBytes)
	f := contextID & ctxIDMask
	if compress {
		f |= ctxFlagCompressBit
	}
	out[0] = f
	out[1] = prefix.Length
	addr16 := prefix.Addr.As16()
	copy(out[2:], addr16[:nBytes])
	return out
}

// serviceHeader is the decoded front matter of a Service TLV's value,
// before service_data and sub-TLVs.
type serviceHeader struct {
	ServiceID        uint8
	EnterpriseNumber uint32
	ServiceData      []byte
	SubTLVs          []byte
}

func decodeServiceHeader(value []byte) (serviceHeader, error) {
	if len(value) < 1 {
		return serviceHeader{}, &ParseError{Reason: "service TLV empty"}
	}

	b0 := value[0]
	tBit := b0&serviceTBit != 0
	serviceID := b0 & serviceIDMask

	offset := 1
	enterprise := serviceThreadEnterprise
	if !tBit {
		if len(value) < offset+4 {
			return serviceHeader{}, &ParseError{Reason: "service TLV truncated enterprise number"}
		}
		enterprise = binary.BigEndian.Uint32(value[offset : offset+4])
		offset += 4
	}

	if len(value) < offset+1 {
		return serviceHeader{}, &ParseError{Reason: "service TLV truncated service_data_length"}
	}
	sdLen := int(value[offset])
	offset++

	if len(value) < offset+sdLen {
		return serviceHeader{}, &ParseError{Reason: "service TLV truncated service_data"}
	}
	serviceData := value[offset : offset+sdLen]
	offset += sdLen

	return serviceHeader{
		ServiceID:        serviceID,
		EnterpriseNumber: enterprise,
		ServiceData:      serviceData,
		SubTLVs:          value[offset:],
	}, nil
}

// encodeServiceHeader is the inverse of decodeServiceHeader. When
// enterprise equals the Thread enterprise number it sets T=1 and omits
// the explicit enterprise number field, matching what decodeServiceHeader
// produces when reading it back.
func encodeServiceHeader(serviceID uint8, enterprise uint32, serviceData []byte) []byte {
	useT := enterprise == serviceThreadEnterprise
	var out []byte
	b0 := serviceID & serviceIDMask
	if useT {
		b0 |= serviceTBit
	}
	out = append(out, b0)
	if !useT {
		var eb [4]byte
		binary.BigEndian.PutUint32(eb[:], enterprise)
		out = append(out, eb[:]...)
	}
	out = append(out, uint8(len(serviceData)))
	out = append(out, serviceData...)
	return out
}

func decodeServerValue(value []byte) (rloc Rloc16, serverData []byte, err error) {
	if len(value) < 2 {
		err = &ParseError{Reason: "server sub-TLV shorter than minimum"}
		return
	}
	rloc = Rloc16(binary.BigEndian.Uint16(value[0:2]))
	serverData = value[2:]
	return
}

func encodeServerValue(rloc Rloc16, serverData []byte) []byte {
	out := make([]byte, 2+len(serverData))
	binary.BigEndian.PutUint16(out[0:2], uint16(rloc))
	copy(out[2:], serverData)
	return out
}
