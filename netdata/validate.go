package netdata

import (
	"github.com/openthread-go/netdata/tlv"
)

// brKey identifies a (prefix TLV, border-router RLOC16) pair, used to
// detect duplicate border routers under the same prefix.
type brKey struct {
	prefixOffset int
	rloc         Rloc16
}

// svcKey identifies a service entry by its (enterprise_number, service_data)
// identity, used to detect duplicate service registrations.
type svcKey struct {
	enterprise uint32
	data       string
}

// validate walks buf top to bottom and checks every §3 invariant. It
// returns the first violation found; a nil return means buf is a valid
// Network Data image.
func validate(buf []byte) error {
	if len(buf) > 254 {
		return ErrTooLarge
	}

	it := tlv.NewIterator(buf)
	seenBR := make(map[brKey]struct{})
	seenSvc := make(map[svcKey]struct{})

	for {
		h, ok := it.Next()
		if !ok {
			break
		}

		switch h.Type {
		case tlv.TypePrefix:
			_, _, sub, err := decodePrefixHeader(h.Value(buf))
			if err != nil {
				return err
			}
			if err := validatePrefixSubTLVs(h, sub, buf, seenBR); err != nil {
				return err
			}

		case tlv.TypeService:
			sh, err := decodeServiceHeader(h.Value(buf))
			if err != nil {
				return err
			}
			key := svcKey{enterprise: sh.EnterpriseNumber, data: string(sh.ServiceData)}
			if _, dup := seenSvc[key]; dup {
				return &InvariantViolation{Which: InvariantDuplicateService, Detail: "duplicate (enterprise_number, service_data)"}
			}
			seenSvc[key] = struct{}{}

			if err := validateStablePropagation(h, sh.SubTLVs, buf); err != nil {
				return err
			}

		default:
			if err := validateStablePropagation(h, h.Value(buf), buf); err != nil {
				return err
			}
		}
	}

	if err := it.Err(); err != nil {
		return err
	}

	return nil
}

func validatePrefixSubTLVs(parent tlv.Header, sub []byte, buf []byte, seenBR map[brKey]struct{}) error {
	subIt := tlv.NewSubIterator(sub)
	for {
		sh, ok := subIt.Next()
		if !ok {
			break
		}

		if sh.Type == tlv.TypeBorderRouter {
			rloc, _, _, err := decodeBorderRouterValue(sh.Value(sub))
			if err != nil {
				return err
			}
			key := brKey{parent.ValueOffset, rloc}
			if _, dup := seenBR[key]; dup {
				return &InvariantViolation{Which: InvariantDuplicateBRRloc, Detail: "duplicate border router RLOC16 under one prefix"}
			}
			seenBR[key] = struct{}{}
		}

		if parent.Stable && !sh.Stable {
			return &InvariantViolation{Which: InvariantStablePropagation, Detail: "stable prefix has unstable sub-TLV"}
		}
	}
	if err := subIt.Err(); err != nil {
		return err
	}
	return nil
}

func validateStablePropagation(parent tlv.Header, sub []byte, buf []byte) error {
	if !parent.Stable {
		return nil
	}
	subIt := tlv.NewSubIterator(sub)
	for {
		sh, ok := subIt.Next()
		if !ok {
			break
		}
		if !sh.Stable {
			return &InvariantViolation{Which: InvariantStablePropagation, Detail: "stable container has unstable sub-TLV"}
		}
	}
	return subIt.Err()
}
