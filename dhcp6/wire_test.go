package dhcp6

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{MsgType: MsgTypeSolicit, TransactionID: TransactionID{0x01, 0x02, 0x03}}
	got, err := decodeHeader(encodeHeader(h))
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestDecodeHeaderTooShort(t *testing.T) {
	_, err := decodeHeader([]byte{1, 2})
	require.Error(t, err)
}

func TestClientIDRoundTrip(t *testing.T) {
	eui64 := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	raw := encodeClientID(eui64)
	decoded, ok := findOption(raw, optClientID)
	require.True(t, ok)
	require.NoError(t, decodeClientID(decoded, eui64))
	require.Error(t, decodeClientID(decoded, [8]byte{9}))
}

func TestServerIDAcceptsDuidLLTOrDuidLL(t *testing.T) {
	llt := make([]byte, 14)
	llt[1] = byte(duidTypeLLT)
	llt[3] = byte(hwTypeEthernet)
	require.NoError(t, decodeServerID(option{Data: llt}))

	ll := make([]byte, 12)
	ll[1] = byte(duidTypeLL)
	ll[3] = byte(hwTypeEUI64)
	require.NoError(t, decodeServerID(option{Data: ll}))

	require.Error(t, decodeServerID(option{Data: []byte{0, 0, 0, 0}}))
}

func TestIaAddressRoundTrip(t *testing.T) {
	addr := netip.MustParseAddr("fd00::abcd")
	raw := encodeIaAddress(addr, 1800, 1800)
	opt, ok := findOption(raw, optIaAddress)
	require.True(t, ok)
	ia, err := decodeIaAddress(opt)
	require.NoError(t, err)
	require.Equal(t, addr, ia.Address)
	require.Equal(t, uint32(1800), ia.PreferredLifetime)
	require.Equal(t, uint32(1800), ia.ValidLifetime)
}

func TestIaNaWrapsIaAddressSuboptions(t *testing.T) {
	addr := netip.MustParseAddr("fd00::1")
	sub := encodeIaAddress(addr, 0, 0)
	raw := encodeIaNa(sub)

	opt, ok := findOption(raw, optIaNa)
	require.True(t, ok)
	require.Len(t, opt.Data, 12+len(sub))

	inner, ok := findOption(opt.Data[12:], optIaAddress)
	require.True(t, ok)
	ia, err := decodeIaAddress(inner)
	require.NoError(t, err)
	require.Equal(t, addr, ia.Address)
}

func TestStatusCodeRejectsFailure(t *testing.T) {
	require.NoError(t, decodeStatusCode(option{Data: []byte{0, 0}}))
	require.Error(t, decodeStatusCode(option{Data: []byte{0, 1}}))
	require.Error(t, decodeStatusCode(option{Data: []byte{0}}))
}
