// Package netdata implements the Thread Network Data subsystem: the
// single-writer, multi-reader TLV byte-image (Store) that every node
// caches, and the stateless Query Engine that decodes it into prefix,
// route, service and 6LoWPAN-context entries.
package netdata

import (
	"sync"

	"github.com/cespare/xxhash"
	"github.com/openthread-go/netdata/std/log"
	"github.com/openthread-go/netdata/tlv"
)

// MaxLength is the maximum Network Data buffer length on the wire (spec §3).
const MaxLength = 254

// Store owns the Network Data byte-image. It is written by exactly one
// caller — the Leader merge/prune path on leader-role nodes, or the MLE
// wholesale-replace path on every other role — and read by any number of
// concurrent callers within the same event-loop turn (spec §5).
type Store struct {
	mu sync.RWMutex

	buf           []byte
	version       uint8
	stableVersion uint8
	hash          uint64
	stableHash    uint64
	maxLength     int

	onChange []func(version, stableVersion uint8)
}

// NewStore returns an empty Store (no partition joined yet).
func NewStore() *Store {
	return &Store{stableHash: xxhash.Sum64(nil)}
}

// Version returns the current Network Data version. It wraps modulo 256
// per spec §4.2.
func (s *Store) Version() uint8 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// StableVersion returns the current Stable Network Data version.
func (s *Store) StableVersion() uint8 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stableVersion
}

// Length returns the current buffer length in bytes.
func (s *Store) Length() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buf)
}

// MaxLength returns the high-water-mark buffer length observed since
// construction or since the last ResetMaxLength call.
func (s *Store) MaxLength() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxLength
}

// ResetMaxLength clears the tracked high-water-mark.
func (s *Store) ResetMaxLength() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxLength = s.length()
}

func (s *Store) length() int { return len(s.buf) }

// Snapshot returns the current buffer, a version stamp, and the content
// hash, for building a Query/Iterator over a consistent view.
func (s *Store) Snapshot() (buf []byte, version uint8, hash uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]byte, len(s.buf))
	copy(out, s.buf)
	return out, s.version, s.hash
}

// OnChange registers a callback invoked synchronously after every
// successful mutation, with the new version and stable-version. It is the
// low-level hook the notify package's Notifier subscribes through.
func (s *Store) OnChange(fn func(version, stableVersion uint8)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Replace wholesale-replaces the buffer, as done when a newer Leader
// partition dataset arrives over MLE. The candidate is fully validated
// before anything is mutated; on failure the old image is retained
// (spec §4.2, §7).
func (s *Store) Replace(buf []byte) error {
	if err := validate(buf); err != nil {
		return err
	}

	cp := make([]byte, len(buf))
	copy(cp, buf)

	s.mu.Lock()
	s.buf = cp
	s.commitLocked()
	if len(s.buf) > s.maxLength {
		s.maxLength = len(s.buf)
	}
	version, stableVersion := s.version, s.stableVersion
	callbacks := append([]func(uint8, uint8){}, s.onChange...)
	s.mu.Unlock()

	log.Debugf("netdata: replaced, version=%d stable_version=%d length=%d", version, stableVersion, len(cp))

	for _, cb := range callbacks {
		cb(version, stableVersion)
	}
	return nil
}

// SetLength truncates or re-validates the buffer to n bytes, used by the
// Leader merge path for in-place edits that only ever shrink TLV lengths
// or drop trailing TLVs (the caller is expected to have already rewritten
// the relevant TLV length fields with tlv.EncodeHeader before calling
// SetLength).
func (s *Store) SetLength(n int) error {
	s.mu.Lock()
	if n < 0 || n > len(s.buf) {
		s.mu.Unlock()
		return &ParseError{Reason: "set_length out of range"}
	}
	candidate := s.buf[:n]
	s.mu.Unlock()

	if err := validate(candidate); err != nil {
		return err
	}

	s.mu.Lock()
	s.buf = append([]byte{}, candidate...)
	s.commitLocked()
	version, stableVersion := s.version, s.stableVersion
	callbacks := append([]func(uint8, uint8){}, s.onChange...)
	s.mu.Unlock()

	log.Debugf("netdata: set_length to %d, version=%d stable_version=%d", n, version, stableVersion)

	for _, cb := range callbacks {
		cb(version, stableVersion)
	}
	return nil
}

// commitLocked recomputes the content hashes for the just-assigned s.buf,
// increments version unconditionally, and increments stable_version only
// when the stable-subset view actually changed. Callers must hold s.mu for
// writing and must have already assigned s.buf.
func (s *Store) commitLocked() {
	s.version++
	s.hash = xxhash.Sum64(s.buf)

	newStableHash := xxhash.Sum64(stableView(s.buf))
	if newStableHash != s.stableHash {
		s.stableVersion++
		s.stableHash = newStableHash
	}
}

// stableView returns the subset of buf's top-level TLVs marked stable,
// packed back-to-back unchanged. By the §3 invariant that a stable
// container's sub-TLVs are themselves all stable, filtering at the
// top level alone is a pure, sufficient filter (spec §4.2 design note).
func stableView(buf []byte) []byte {
	var out []byte
	it := tlv.NewIterator(buf)
	for {
		h, ok := it.Next()
		if !ok {
			break
		}
		if h.Stable {
			out = append(out, buf[h.ValueOffset-2:h.End()]...)
		}
	}
	return out
}

// Destroy clears the Store back to its empty, not-yet-joined state
// (spec §3 "destroyed on detach").
func (s *Store) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
	s.version = 0
	s.stableVersion = 0
	s.hash = 0
	s.stableHash = xxhash.Sum64(nil)
}

// verifyIteratorToken reports ErrInvalidState if version no longer matches
// the Store's current version — i.e. the Store mutated since the
// Iterator/Query was built (spec §5, §9).
func (s *Store) verifyIteratorToken(version uint8) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if version != s.version {
		return ErrInvalidState
	}
	return nil
}
