package leasestore

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openthread-go/netdata/netdata"
	"github.com/openthread-go/netdata/dhcp6"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)

	ia := dhcp6.IdentityAssociation{
		Prefix:            netdata.Prefix{Addr: netip.MustParseAddr("fd00::"), Length: 64},
		PrefixAgentRloc:   0x5000,
		Status:            dhcp6.IaStatusSolicitReplied,
		PreferredLifetime: 1800,
		ValidLifetime:     3600,
		NetifAddress:      netip.MustParseAddr("fd00::abcd"),
	}
	require.NoError(t, s.Save(ia))

	got, found, err := s.Load(ia.Prefix)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, ia, got)
}

func TestLoadMissingReturnsNotFound(t *testing.T) {
	s := openTestStore(t)
	_, found, err := s.Load(netdata.Prefix{Addr: netip.MustParseAddr("fd00::"), Length: 64})
	require.NoError(t, err)
	require.False(t, found)
}

func TestDeleteRemovesRecord(t *testing.T) {
	s := openTestStore(t)
	ia := dhcp6.IdentityAssociation{Prefix: netdata.Prefix{Addr: netip.MustParseAddr("fd00::"), Length: 64}}
	require.NoError(t, s.Save(ia))
	require.NoError(t, s.Delete(ia.Prefix))

	_, found, err := s.Load(ia.Prefix)
	require.NoError(t, err)
	require.False(t, found)
}

func TestLoadAllReturnsEveryLease(t *testing.T) {
	s := openTestStore(t)
	ia1 := dhcp6.IdentityAssociation{Prefix: netdata.Prefix{Addr: netip.MustParseAddr("fd00::"), Length: 64}, PrefixAgentRloc: 0x5000}
	ia2 := dhcp6.IdentityAssociation{Prefix: netdata.Prefix{Addr: netip.MustParseAddr("fd01::"), Length: 64}, PrefixAgentRloc: 0x6000}
	require.NoError(t, s.Save(ia1))
	require.NoError(t, s.Save(ia2))

	all, err := s.LoadAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestDeleteMissingIsNotAnError(t *testing.T) {
	s := openTestStore(t)
	err := s.Delete(netdata.Prefix{Addr: netip.MustParseAddr("fd00::"), Length: 64})
	require.NoError(t, err)
}
