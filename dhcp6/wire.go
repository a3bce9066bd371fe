package dhcp6

import (
	"encoding/binary"
	"net/netip"
)

// Message types used by this client (RFC 8415 §7.3): only Solicit and
// Reply are exercised (spec §6).
const (
	MsgTypeSolicit uint8 = 1
	MsgTypeReply   uint8 = 7
)

// Option codes this client sends or understands (spec §6).
const (
	optClientID    uint16 = 1
	optServerID    uint16 = 2
	optIaNa        uint16 = 3
	optIaAddress   uint16 = 5
	optElapsedTime uint16 = 8
	optStatusCode  uint16 = 13
	optRapidCommit uint16 = 14
)

// DUID types (RFC 8415 §11.1).
const (
	duidTypeLLT uint16 = 1
	duidTypeLL  uint16 = 3
)

// Hardware types (IANA ARP hardware type registry), as named by spec §6.
const (
	hwTypeEthernet uint16 = 1
	hwTypeEUI64    uint16 = 27
)

const statusCodeSuccess uint16 = 0

// TransactionID is the 3-byte DHCPv6 transaction identifier.
type TransactionID [3]byte

// Header is the fixed 4-byte DHCPv6 message header.
type Header struct {
	MsgType       uint8
	TransactionID TransactionID
}

func encodeHeader(h Header) []byte {
	return []byte{h.MsgType, h.TransactionID[0], h.TransactionID[1], h.TransactionID[2]}
}

func decodeHeader(b []byte) (Header, error) {
	if len(b) < 4 {
		return Header{}, &ParseError{Reason: "message shorter than header"}
	}
	return Header{
		MsgType:       b[0],
		TransactionID: TransactionID{b[1], b[2], b[3]},
	}, nil
}

// option is one decoded DHCPv6 option TLV.
type option struct {
	Code uint16
	Data []byte
}

func encodeOption(code uint16, data []byte) []byte {
	out := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(out[0:2], code)
	binary.BigEndian.PutUint16(out[2:4], uint16(len(data)))
	copy(out[4:], data)
	return out
}

// allOptions walks b as a sequence of back-to-back (code, length, data)
// option TLVs, returning every option found. A truncated trailing option
// is silently ignored, matching FindOption's bounds-checked read.
func allOptions(b []byte) []option {
	var out []option
	off := 0
	for off+4 <= len(b) {
		c := binary.BigEndian.Uint16(b[off : off+2])
		l := int(binary.BigEndian.Uint16(b[off+2 : off+4]))
		if off+4+l > len(b) {
			break
		}
		out = append(out, option{Code: c, Data: b[off+4 : off+4+l]})
		off += 4 + l
	}
	return out
}

// findOption returns the first option with the given code in b, mirroring
// Client::FindOption's linear scan.
func findOption(b []byte, code uint16) (option, bool) {
	for _, opt := range allOptions(b) {
		if opt.Code == code {
			return opt, true
		}
	}
	return option{}, false
}

func encodeElapsedTime(seconds uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], seconds)
	return encodeOption(optElapsedTime, b[:])
}

// encodeClientID builds a DUID-LL Client-ID option carrying eui64, as
// AppendClientIdOption does.
func encodeClientID(eui64 [8]byte) []byte {
	data := make([]byte, 4+8)
	binary.BigEndian.PutUint16(data[0:2], duidTypeLL)
	binary.BigEndian.PutUint16(data[2:4], hwTypeEUI64)
	copy(data[4:], eui64[:])
	return encodeOption(optClientID, data)
}

// decodeClientID validates that opt is a well-formed DUID-LL/EUI-64
// Client-ID matching eui64, as ProcessClientIdOption does.
func decodeClientID(opt option, eui64 [8]byte) error {
	if len(opt.Data) != 12 {
		return &ParseError{Reason: "client-id wrong length"}
	}
	duidType := binary.BigEndian.Uint16(opt.Data[0:2])
	hwType := binary.BigEndian.Uint16(opt.Data[2:4])
	if duidType != duidTypeLL || hwType != hwTypeEUI64 {
		return &ParseError{Reason: "client-id not DUID-LL/EUI-64"}
	}
	var got [8]byte
	copy(got[:], opt.Data[4:12])
	if got != eui64 {
		return &ParseError{Reason: "client-id does not echo this node's EUI-64"}
	}
	return nil
}

// decodeServerID validates opt is either DUID-LLT/Ethernet or well-formed
// DUID-LL/EUI-64 (SUPPLEMENTED FEATURES item 6), as ProcessServerIdOption
// does.
func decodeServerID(opt option) error {
	if len(opt.Data) >= 4 {
		duidType := binary.BigEndian.Uint16(opt.Data[0:2])
		hwType := binary.BigEndian.Uint16(opt.Data[2:4])
		if duidType == duidTypeLLT && hwType == hwTypeEthernet {
			return nil
		}
	}
	if len(opt.Data) == 12 {
		duidType := binary.BigEndian.Uint16(opt.Data[0:2])
		hwType := binary.BigEndian.Uint16(opt.Data[2:4])
		if duidType == duidTypeLL && hwType == hwTypeEUI64 {
			return nil
		}
	}
	return &ParseError{Reason: "server-id not DUID-LLT/Ethernet or DUID-LL/EUI-64"}
}

// iaAddress is one decoded IA-Address suboption.
type iaAddress struct {
	Address           netip.Addr
	PreferredLifetime uint32
	ValidLifetime     uint32
}

func encodeIaAddress(addr netip.Addr, preferred, valid uint32) []byte {
	data := make([]byte, 16+4+4)
	a16 := addr.As16()
	copy(data[0:16], a16[:])
	binary.BigEndian.PutUint32(data[16:20], preferred)
	binary.BigEndian.PutUint32(data[20:24], valid)
	return encodeOption(optIaAddress, data)
}

func decodeIaAddress(opt option) (iaAddress, error) {
	if len(opt.Data) != 24 {
		return iaAddress{}, &ParseError{Reason: "ia-address wrong length"}
	}
	var a16 [16]byte
	copy(a16[:], opt.Data[0:16])
	return iaAddress{
		Address:           netip.AddrFrom16(a16),
		PreferredLifetime: binary.BigEndian.Uint32(opt.Data[16:20]),
		ValidLifetime:     binary.BigEndian.Uint32(opt.Data[20:24]),
	}, nil
}

// encodeIaNa builds an IA_NA option with IAID=0, T1=T2=0 (spec §4.5),
// wrapping the given already-encoded IA-Address suboptions.
func encodeIaNa(iaAddrOptions []byte) []byte {
	data := make([]byte, 12+len(iaAddrOptions))
	// IAID, T1, T2 all zero; leave the first 12 bytes as the zero value.
	copy(data[12:], iaAddrOptions)
	return encodeOption(optIaNa, data)
}

func decodeStatusCode(opt option) error {
	if len(opt.Data) < 2 {
		return &ParseError{Reason: "status-code option too short"}
	}
	if binary.BigEndian.Uint16(opt.Data[0:2]) != statusCodeSuccess {
		return &ParseError{Reason: "status-code reports failure"}
	}
	return nil
}
