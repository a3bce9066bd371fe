package dhcp6

import (
	"errors"
	"fmt"
)

// ErrDrop reports that an inbound message was silently discardable (no
// current IA context, unsolicited Reply) per spec §7.
var ErrDrop = errors.New("dhcp6: dropped")

// ErrNoBufs reports that a Solicit could not be built/sent for lack of
// buffer space.
var ErrNoBufs = errors.New("dhcp6: no buffers available")

// ParseError reports a malformed DHCPv6 message or option.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("dhcp6: parse error: %s", e.Reason)
}
