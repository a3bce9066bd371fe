package resolver

import (
	"testing"

	"github.com/openthread-go/netdata/tlv"
)

// buildAnycastFixture hand-assembles one DNS/SRP Anycast Service TLV
// (service-id 0x5c, sequence_number 42, Thread enterprise implied by the
// T bit) with a single Server sub-TLV at RLOC16 0x2800 and version 0 in
// its server_data, using only the exported tlv package, since this test
// lives outside netdata and cannot reach its unexported wire helpers.
func buildAnycastFixture(t *testing.T) []byte {
	t.Helper()

	var sub tlv.Writer
	sub.AppendTLV(tlv.TypeServer, false, []byte{0x28, 0x00, 0x00}) // rloc16=0x2800, server_data=[version=0]

	serviceData := []byte{ServiceIDAnycast, 42} // service type 0x5c, sequence_number=42
	value := []byte{0x80, byte(len(serviceData))}
	value = append(value, serviceData...)
	value = append(value, sub.Bytes()...)

	var top tlv.Writer
	top.AppendTLV(tlv.TypeService, false, value)
	return top.Bytes()
}
