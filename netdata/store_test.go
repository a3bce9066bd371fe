package netdata

import (
	"net/netip"
	"testing"

	"github.com/openthread-go/netdata/tlv"
	"github.com/stretchr/testify/require"
)

func stablePrefixBuf() []byte {
	prefix := Prefix{Addr: netip.MustParseAddr("fd00:1::"), Length: 32}
	var sub tlv.Writer
	sub.AppendTLV(tlv.TypeBorderRouter, true, encodeBorderRouterValue(OnMeshPrefixConfig{Rloc16: 0x2800, OnMesh: true}))
	value := append(encodePrefixHeader(0, prefix), sub.Bytes()...)

	var top tlv.Writer
	top.AppendTLV(tlv.TypePrefix, true, value)
	return top.Bytes()
}

func TestStoreReplaceBumpsVersion(t *testing.T) {
	s := NewStore()
	require.Equal(t, uint8(0), s.Version())

	require.NoError(t, s.Replace(stablePrefixBuf()))
	require.Equal(t, uint8(1), s.Version())
	require.Equal(t, uint8(1), s.StableVersion())
}

func TestStoreStableVersionOnlyBumpsWhenStableViewChanges(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Replace(stablePrefixBuf()))
	v1, sv1 := s.Version(), s.StableVersion()

	// Replacing with the identical buffer changes nothing in the stable
	// view, so stable_version must not move even though version does.
	require.NoError(t, s.Replace(stablePrefixBuf()))
	require.Equal(t, v1+1, s.Version())
	require.Equal(t, sv1, s.StableVersion())
}

func TestStoreRejectsOversizeBuffer(t *testing.T) {
	s := NewStore()
	buf := make([]byte, 255)
	err := s.Replace(buf)
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestStoreOnChangeFiresWithNewVersions(t *testing.T) {
	s := NewStore()
	var gotVersion, gotStable uint8
	calls := 0
	s.OnChange(func(version, stableVersion uint8) {
		calls++
		gotVersion, gotStable = version, stableVersion
	})

	require.NoError(t, s.Replace(stablePrefixBuf()))
	require.Equal(t, 1, calls)
	require.Equal(t, s.Version(), gotVersion)
	require.Equal(t, s.StableVersion(), gotStable)
}

func TestStoreMaxLengthHighWaterMark(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Replace(stablePrefixBuf()))
	big := s.MaxLength()

	require.NoError(t, s.SetLength(0))
	require.Equal(t, big, s.MaxLength())

	s.ResetMaxLength()
	require.Equal(t, 0, s.MaxLength())
}

func TestStoreDestroyClearsState(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Replace(stablePrefixBuf()))
	s.Destroy()
	require.Equal(t, uint8(0), s.Version())
	require.Equal(t, 0, s.Length())
}
