package netdata

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by every Query Engine iterator once it is
// exhausted, and by lookups that find no match.
var ErrNotFound = errors.New("netdata: not found")

// ErrInvalidState is returned when an iterator built over a since-replaced
// Store snapshot is used again (spec §5, §9 "Iterator tokens").
var ErrInvalidState = errors.New("netdata: iterator used after network data replacement")

// ParseError reports that a candidate buffer could not be parsed into a
// valid Network Data image.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("netdata: parse error: %s", e.Reason)
}

// ErrTooLarge reports that a buffer exceeds the 254-byte wire limit.
var ErrTooLarge = errors.New("netdata: buffer exceeds 254-byte limit")

// InvariantKind names which §3 invariant a candidate buffer violated.
type InvariantKind string

const (
	InvariantLengthMismatch    InvariantKind = "length-mismatch"
	InvariantPrefixLengthRange InvariantKind = "prefix-length-out-of-range"
	InvariantPrefixByteCount   InvariantKind = "prefix-byte-count-mismatch"
	InvariantStablePropagation InvariantKind = "stable-container-has-unstable-sub-tlv"
	InvariantDuplicateBRRloc   InvariantKind = "duplicate-border-router-rloc"
	InvariantDuplicateService InvariantKind = "duplicate-service-identity"
)

// InvariantViolation reports that a candidate buffer parses but fails one
// of the §3 structural invariants.
type InvariantViolation struct {
	Which InvariantKind
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("netdata: invariant violation (%s): %s", e.Which, e.Detail)
}
