package resolver

import (
	"net/netip"
	"testing"

	"github.com/openthread-go/netdata/netdata"
	"github.com/openthread-go/netdata/tlv"
	"github.com/stretchr/testify/require"
)

func buildUnicastServerDataFixture(t *testing.T) []byte {
	t.Helper()

	addr := netip.MustParseAddr("fd00:1234:5678:9abc::1")
	addr16 := addr.As16()

	serverData := append([]byte{}, addr16[:]...)
	serverData = append(serverData, 0x1f, 0x90) // port 8080
	serverData = append(serverData, 3)          // version

	var sub tlv.Writer
	serverValue := append([]byte{0x4c, 0x00}, serverData...) // rloc16=0x4c00
	sub.AppendTLV(tlv.TypeServer, false, serverValue)

	serviceData := []byte{ServiceIDUnicast}
	value := []byte{0x80, byte(len(serviceData))}
	value = append(value, serviceData...)
	value = append(value, sub.Bytes()...)

	var top tlv.Writer
	top.AppendTLV(tlv.TypeService, false, value)
	return top.Bytes()
}

func buildUnicastServiceDataFixture(t *testing.T) []byte {
	t.Helper()

	addr := netip.MustParseAddr("fdde:ad00:beef::ff:fe00:2800")
	addr16 := addr.As16()

	serviceData := []byte{ServiceIDUnicast}
	serviceData = append(serviceData, addr16[:]...)
	serviceData = append(serviceData, 0x16, 0x2e) // port 5678

	var sub tlv.Writer
	sub.AppendTLV(tlv.TypeServer, false, []byte{0x28, 0x00, 0}) // rloc16=0x2800, version=0

	value := []byte{0x80, byte(len(serviceData))}
	value = append(value, serviceData...)
	value = append(value, sub.Bytes()...)

	var top tlv.Writer
	top.AppendTLV(tlv.TypeService, false, value)
	return top.Bytes()
}

func TestAllUnicastInfoServerData(t *testing.T) {
	s := netdata.NewStore()
	require.NoError(t, s.Replace(buildUnicastServerDataFixture(t)))

	q := netdata.NewQuery(s)
	infos, err := AllUnicastInfo(q, OriginServerData)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, netdata.Rloc16(0x4c00), infos[0].Rloc16)
	require.Equal(t, uint8(3), infos[0].Version)
	require.Equal(t, uint16(8080), infos[0].SockAddr.Port())
}

func TestAllUnicastInfoServiceData(t *testing.T) {
	s := netdata.NewStore()
	require.NoError(t, s.Replace(buildUnicastServiceDataFixture(t)))

	q := netdata.NewQuery(s)
	infos, err := AllUnicastInfo(q, OriginServiceData)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, netdata.Rloc16(0x2800), infos[0].Rloc16)
	require.Equal(t, uint16(5678), infos[0].SockAddr.Port())
}

func TestAllUnicastInfoWrongOriginYieldsNone(t *testing.T) {
	s := netdata.NewStore()
	require.NoError(t, s.Replace(buildUnicastServerDataFixture(t)))

	q := netdata.NewQuery(s)
	infos, err := AllUnicastInfo(q, OriginServiceData)
	require.NoError(t, err)
	require.Empty(t, infos)
}
