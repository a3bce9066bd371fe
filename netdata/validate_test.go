package netdata

import (
	"net/netip"
	"testing"

	"github.com/openthread-go/netdata/tlv"
	"github.com/stretchr/testify/require"
)

func TestValidateRejectsDuplicateBorderRouterRloc(t *testing.T) {
	prefix := Prefix{Addr: netip.MustParseAddr("fd00:1::"), Length: 32}
	var sub tlv.Writer
	sub.AppendTLV(tlv.TypeBorderRouter, false, encodeBorderRouterValue(OnMeshPrefixConfig{Rloc16: 0x2800}))
	sub.AppendTLV(tlv.TypeBorderRouter, false, encodeBorderRouterValue(OnMeshPrefixConfig{Rloc16: 0x2800}))
	value := append(encodePrefixHeader(0, prefix), sub.Bytes()...)

	var top tlv.Writer
	top.AppendTLV(tlv.TypePrefix, false, value)

	err := validate(top.Bytes())
	require.Error(t, err)
	var iv *InvariantViolation
	require.ErrorAs(t, err, &iv)
	require.Equal(t, InvariantDuplicateBRRloc, iv.Which)
}

func TestValidateRejectsStableContainerWithUnstableSubTLV(t *testing.T) {
	prefix := Prefix{Addr: netip.MustParseAddr("fd00:1::"), Length: 32}
	var sub tlv.Writer
	sub.AppendTLV(tlv.TypeBorderRouter, false, encodeBorderRouterValue(OnMeshPrefixConfig{Rloc16: 0x2800}))
	value := append(encodePrefixHeader(0, prefix), sub.Bytes()...)

	var top tlv.Writer
	top.AppendTLV(tlv.TypePrefix, true, value) // parent stable, child not

	err := validate(top.Bytes())
	require.Error(t, err)
	var iv *InvariantViolation
	require.ErrorAs(t, err, &iv)
	require.Equal(t, InvariantStablePropagation, iv.Which)
}

func TestValidateRejectsPrefixLengthOutOfRange(t *testing.T) {
	value := []byte{0, 200} // prefix_length=200 > 128
	var top tlv.Writer
	top.AppendTLV(tlv.TypePrefix, false, value)

	err := validate(top.Bytes())
	require.Error(t, err)
	var iv *InvariantViolation
	require.ErrorAs(t, err, &iv)
	require.Equal(t, InvariantPrefixLengthRange, iv.Which)
}

func TestValidateRejectsDuplicateService(t *testing.T) {
	serviceData := []byte{0x5c, 42}
	value := append([]byte{0x80, byte(len(serviceData))}, serviceData...)

	var top tlv.Writer
	top.AppendTLV(tlv.TypeService, false, value)
	top.AppendTLV(tlv.TypeService, false, value)

	err := validate(top.Bytes())
	require.Error(t, err)
	var iv *InvariantViolation
	require.ErrorAs(t, err, &iv)
	require.Equal(t, InvariantDuplicateService, iv.Which)
}

func TestValidateAcceptsWellFormedBuffer(t *testing.T) {
	require.NoError(t, validate(stablePrefixBuf()))
}

func TestValidateToleratesUnknownTopLevelType(t *testing.T) {
	var top tlv.Writer
	top.AppendTLV(tlv.Type(99), false, []byte{1, 2, 3})
	require.NoError(t, validate(top.Bytes()))
}
