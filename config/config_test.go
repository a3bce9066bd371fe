package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openthread-go/netdata/dhcp6"
)

func withRequiredFields(c *Config) *Config {
	c.Eui64Hex = "0011223344556677"
	c.MeshLocalPrefix = "fd00:1234:5678:9abc::/64"
	c.SelfRloc16 = "5c00"
	return c
}

func TestDefaultConfigValidatesOnceEui64Set(t *testing.T) {
	c := withRequiredFields(DefaultConfig())
	require.NoError(t, c.Validate())
}

func TestEui64RejectsWrongLength(t *testing.T) {
	c := withRequiredFields(DefaultConfig())
	c.Eui64Hex = "aabb"
	require.Error(t, c.Validate())
}

func TestEui64RejectsNonHex(t *testing.T) {
	c := DefaultConfig()
	c.Eui64Hex = "zznotvalidhexxx!"
	_, err := c.Eui64()
	require.Error(t, err)
}

func TestDhcpSolicitModeParsesBoth(t *testing.T) {
	c := withRequiredFields(DefaultConfig())

	c.SolicitMode = "unicast"
	mode, err := c.DhcpSolicitMode()
	require.NoError(t, err)
	require.Equal(t, dhcp6.SolicitUnicastToAgent, mode)

	c.SolicitMode = "multicast"
	mode, err = c.DhcpSolicitMode()
	require.NoError(t, err)
	require.Equal(t, dhcp6.SolicitMulticast, mode)

	c.SolicitMode = "bogus"
	_, err = c.DhcpSolicitMode()
	require.Error(t, err)
}

func TestValidateRejectsEmptyLeaseDbPath(t *testing.T) {
	c := withRequiredFields(DefaultConfig())
	c.LeaseDbPath = ""
	require.Error(t, c.Validate())
}

func TestValidateRejectsBadMeshLocalPrefix(t *testing.T) {
	c := withRequiredFields(DefaultConfig())
	c.MeshLocalPrefix = "not-a-prefix"
	require.Error(t, c.Validate())
}

func TestValidateRejectsBadSelfRloc16(t *testing.T) {
	c := withRequiredFields(DefaultConfig())
	c.SelfRloc16 = "zz"
	require.Error(t, c.Validate())
}
