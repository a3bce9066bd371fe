package netdata

import (
	"net/netip"
	"testing"

	"github.com/openthread-go/netdata/tlv"
	"github.com/stretchr/testify/require"
)

// buildFixture assembles the spec §8 scenario 1 fixture: one Prefix TLV
// for fd00:beef:cafe::/64 carrying three Border Router sub-TLVs at RLOC16
// 0x2800 (router), 0x2801 (child), 0x4c00 (router).
func buildFixture(t *testing.T) []byte {
	t.Helper()

	prefix := Prefix{Addr: netip.MustParseAddr("fd00:beef:cafe::"), Length: 64}

	var sub tlv.Writer
	sub.AppendTLV(tlv.TypeBorderRouter, false, encodeBorderRouterValue(OnMeshPrefixConfig{Rloc16: 0x2800, OnMesh: true}))
	sub.AppendTLV(tlv.TypeBorderRouter, false, encodeBorderRouterValue(OnMeshPrefixConfig{Rloc16: 0x2801, OnMesh: true}))
	sub.AppendTLV(tlv.TypeBorderRouter, false, encodeBorderRouterValue(OnMeshPrefixConfig{Rloc16: 0x4c00, OnMesh: true}))

	value := append(encodePrefixHeader(0, prefix), sub.Bytes()...)

	var top tlv.Writer
	top.AppendTLV(tlv.TypePrefix, false, value)
	return top.Bytes()
}

func TestFindRlocsAnyRole(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Replace(buildFixture(t)))

	q := NewQuery(s)
	rlocs, err := q.FindRlocs(AnyBrOrServer, AnyRole)
	require.NoError(t, err)
	require.ElementsMatch(t, []Rloc16{0x2800, 0x2801, 0x4c00}, rlocs.Slice())
}

func TestFindRlocsRoleFilterPartition(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Replace(buildFixture(t)))

	q := NewQuery(s)
	routers, err := q.FindRlocs(AnyBrOrServer, RouterRoleOnly)
	require.NoError(t, err)
	require.ElementsMatch(t, []Rloc16{0x2800, 0x4c00}, routers.Slice())

	children, err := q.FindRlocs(AnyBrOrServer, ChildRoleOnly)
	require.NoError(t, err)
	require.ElementsMatch(t, []Rloc16{0x2801}, children.Slice())

	any, err := q.FindRlocs(AnyBrOrServer, AnyRole)
	require.NoError(t, err)

	union := routers.Union(children)
	require.True(t, any.Equal(union))
	for _, r := range routers.Slice() {
		require.False(t, children.Contains(r))
	}
}

func TestFindRlocsIdempotent(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Replace(buildFixture(t)))

	q := NewQuery(s)
	a, err := q.FindRlocs(AnyBrOrServer, AnyRole)
	require.NoError(t, err)
	b, err := q.FindRlocs(AnyBrOrServer, AnyRole)
	require.NoError(t, err)
	require.True(t, a.Equal(b))
}

func TestContainsBorderRouterWithRloc(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Replace(buildFixture(t)))

	q := NewQuery(s)
	ok, err := q.ContainsBorderRouterWithRloc(0x4c00)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = q.ContainsBorderRouterWithRloc(0x9999)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCountBorderRouters(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Replace(buildFixture(t)))

	q := NewQuery(s)
	n, err := q.CountBorderRouters(AnyRole)
	require.NoError(t, err)
	require.Equal(t, uint16(3), n)
}

func TestNextOnMeshPrefixWalksAllBorderRouters(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Replace(buildFixture(t)))

	q := NewQuery(s)
	var seen []Rloc16
	state := InitIter()
	for {
		cfg, next, err := q.NextOnMeshPrefix(state)
		if err == ErrNotFound {
			break
		}
		require.NoError(t, err)
		seen = append(seen, cfg.Rloc16)
		state = next
	}
	require.Equal(t, []Rloc16{0x2800, 0x2801, 0x4c00}, seen)
}

func TestExternalRouteNextHopIsThisDevice(t *testing.T) {
	prefix := Prefix{Addr: netip.MustParseAddr("2001:db8::"), Length: 32}
	var sub tlv.Writer
	sub.AppendTLV(tlv.TypeHasRoute, false, encodeHasRouteValue(ExternalRouteConfig{Rloc16: 0x5000}))
	value := append(encodePrefixHeader(0, prefix), sub.Bytes()...)

	var top tlv.Writer
	top.AppendTLV(tlv.TypePrefix, false, value)

	s := NewStore()
	require.NoError(t, s.Replace(top.Bytes()))

	q := NewQuery(s).WithSelfRloc16(0x5000)
	routes, err := q.NextExternalRouteAll()
	require.NoError(t, err)
	require.Len(t, routes, 1)
	require.True(t, routes[0].NextHopIsThisDevice)
}

func TestQueryStaleAfterReplace(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Replace(buildFixture(t)))

	q := NewQuery(s)
	require.NoError(t, q.Stale())

	require.NoError(t, s.Replace(buildFixture(t)))
	require.ErrorIs(t, q.Stale(), ErrInvalidState)
}
