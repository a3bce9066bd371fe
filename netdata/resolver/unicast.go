package resolver

import (
	"net/netip"

	"github.com/openthread-go/netdata/netdata"
)

// DnsSrpUnicastOrigin distinguishes where a DNS/SRP Unicast entry's
// {address, port} pair is carried (spec §4.3).
type DnsSrpUnicastOrigin int

const (
	OriginServiceData DnsSrpUnicastOrigin = iota
	OriginServerData
)

// DnsSrpUnicastInfo is one DNS/SRP Unicast service entry (spec §3).
type DnsSrpUnicastInfo struct {
	SockAddr netip.AddrPort
	Version  uint8
	Rloc16   netdata.Rloc16
	Origin   DnsSrpUnicastOrigin
}

// unicastAddrLen is the byte length of the {ipv6, port} pair as carried in
// either service_data or server_data: 16 address bytes + 2 port bytes.
const unicastAddrLen = 18

func decodeSockAddr(b []byte) (netip.AddrPort, error) {
	if len(b) < unicastAddrLen {
		return netip.AddrPort{}, &netdata.ParseError{Reason: "unicast address/port truncated"}
	}
	var addrBytes [16]byte
	copy(addrBytes[:], b[:16])
	port := uint16(b[16])<<8 | uint16(b[17])
	return netip.AddrPortFrom(netip.AddrFrom16(addrBytes), port), nil
}

// AllUnicastInfo decodes every DNS/SRP Unicast entry present in q whose
// address is carried in the given origin.
//
// When origin is OriginServiceData, the {ipv6, port} pair is the Service
// TLV's own service_data, shared by every Server sub-TLV under it; each
// Server sub-TLV still contributes its own RLOC16 and an optional
// trailing version byte in its server_data. When origin is
// OriginServerData, the pair is carried per-server in server_data itself,
// followed by an optional trailing version byte.
func AllUnicastInfo(q *netdata.Query, origin DnsSrpUnicastOrigin) ([]DnsSrpUnicastInfo, error) {
	services, err := q.NextServiceAll()
	if err != nil {
		return nil, err
	}

	var out []DnsSrpUnicastInfo
	for _, svc := range services {
		if !isServiceType(svc.ServiceData, ServiceIDUnicast) {
			continue
		}

		switch origin {
		case OriginServiceData:
			addr, err := decodeSockAddr(svc.ServiceData[1:])
			if err != nil {
				continue
			}
			var version uint8
			if len(svc.Server.ServerData) > 0 {
				version = svc.Server.ServerData[0]
			}
			out = append(out, DnsSrpUnicastInfo{
				SockAddr: addr,
				Version:  version,
				Rloc16:   svc.Server.Rloc16,
				Origin:   origin,
			})

		case OriginServerData:
			if len(svc.Server.ServerData) < unicastAddrLen {
				continue
			}
			addr, err := decodeSockAddr(svc.Server.ServerData)
			if err != nil {
				continue
			}
			var version uint8
			if len(svc.Server.ServerData) > unicastAddrLen {
				version = svc.Server.ServerData[unicastAddrLen]
			}
			out = append(out, DnsSrpUnicastInfo{
				SockAddr: addr,
				Version:  version,
				Rloc16:   svc.Server.Rloc16,
				Origin:   origin,
			})
		}
	}
	return out, nil
}
