package tlv

// Iterator is a lazy, finite cursor over a sequence of TLVs packed
// back-to-back in a byte buffer. Its position is a single opaque offset
// (see Offset and Seek); besides that it only records whether a parse
// error has stopped it.
type Iterator struct {
	buf    []byte
	offset int
	done   bool
	err    error
}

// NewIterator returns an iterator over the top-level TLVs of buf.
func NewIterator(buf []byte) *Iterator {
	return &Iterator{buf: buf}
}

// NewSubIterator returns an iterator over the sub-TLVs packed in value,
// typically a TLV's Value() sub-slice.
func NewSubIterator(value []byte) *Iterator {
	return &Iterator{buf: value}
}

// Next decodes the next TLV header and advances the cursor past it.
//
// Returns false once the buffer is exhausted. A malformed TLV (truncated
// header, or declared length exceeding the remaining buffer) stops
// iteration permanently and is reported via Err; well-formed TLVs of an
// unrecognized Type are still returned — the caller skips them by ignoring
// the header, which the iterator has already accounted for via Length.
func (it *Iterator) Next() (Header, bool) {
	if it.done || it.offset >= len(it.buf) {
		return Header{}, false
	}

	h, err := ReadHeader(it.buf, it.offset)
	if err != nil {
		it.done = true
		it.err = err
		return Header{}, false
	}

	it.offset = h.End()
	return h, true
}

// Err returns the parse error, if any, that stopped iteration early. A nil
// Err after Next returns false means the buffer was fully and validly
// consumed.
func (it *Iterator) Err() error {
	return it.err
}

// Offset returns the iterator's current opaque cursor position, usable to
// resume iteration with Seek or to compare for totality checks.
func (it *Iterator) Offset() int {
	return it.offset
}

// Seek repositions the iterator to resume at a previously observed offset.
func (it *Iterator) Seek(offset int) {
	it.offset = offset
	it.done = false
	it.err = nil
}
