package tlv_test

import (
	"testing"

	"github.com/openthread-go/netdata/tlv"
	"github.com/stretchr/testify/require"
)

func TestReadHeaderTruncated(t *testing.T) {
	_, err := tlv.ReadHeader([]byte{0x03}, 0)
	require.Error(t, err)
	var pe *tlv.ParseError
	require.ErrorAs(t, err, &pe)
}

func TestReadHeaderLengthExceedsBuffer(t *testing.T) {
	_, err := tlv.ReadHeader([]byte{0x03, 0x10}, 0)
	require.Error(t, err)
}

func TestReadHeaderStableBit(t *testing.T) {
	buf := []byte{0x83, 0x02, 0xAA, 0xBB}
	h, err := tlv.ReadHeader(buf, 0)
	require.NoError(t, err)
	require.Equal(t, tlv.TypePrefix, h.Type)
	require.True(t, h.Stable)
	require.Equal(t, uint8(2), h.Length)
	require.Equal(t, []byte{0xAA, 0xBB}, h.Value(buf))
}

func TestIteratorWalksTopLevelAndSkipsUnknown(t *testing.T) {
	var w tlv.Writer
	w.AppendTLV(tlv.TypePrefix, true, []byte{0x00, 0x40})
	w.AppendTLV(Type(99), false, []byte{0x01, 0x02, 0x03}) // unknown type, must be skipped
	w.AppendTLV(tlv.TypeService, false, []byte{0x00})

	it := tlv.NewIterator(w.Bytes())

	h1, ok := it.Next()
	require.True(t, ok)
	require.Equal(t, tlv.TypePrefix, h1.Type)

	h2, ok := it.Next()
	require.True(t, ok)
	require.Equal(t, Type(99), h2.Type)

	h3, ok := it.Next()
	require.True(t, ok)
	require.Equal(t, tlv.TypeService, h3.Type)

	_, ok = it.Next()
	require.False(t, ok)
	require.NoError(t, it.Err())
}

func TestIteratorStopsOnMalformedTLV(t *testing.T) {
	buf := []byte{0x03, 0x05, 0x00} // declares 5 bytes of value, only 1 present
	it := tlv.NewIterator(buf)

	_, ok := it.Next()
	require.False(t, ok)
	require.Error(t, it.Err())
}

func TestSubIterator(t *testing.T) {
	var sub tlv.Writer
	sub.AppendTLV(tlv.TypeBorderRouter, false, []byte{0x28, 0x00, 0x00})

	var top tlv.Writer
	top.AppendTLV(tlv.TypePrefix, false, sub.Bytes())

	it := tlv.NewIterator(top.Bytes())
	h, ok := it.Next()
	require.True(t, ok)

	subIt := tlv.NewSubIterator(h.Value(top.Bytes()))
	sh, ok := subIt.Next()
	require.True(t, ok)
	require.Equal(t, tlv.TypeBorderRouter, sh.Type)

	_, ok = subIt.Next()
	require.False(t, ok)
}

// Type is a local alias so the unknown-type test above reads naturally
// without exporting an unused constant from the tlv package itself.
type Type = tlv.Type
