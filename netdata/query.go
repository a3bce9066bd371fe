package netdata

import (
	"github.com/openthread-go/netdata/tlv"
)

// Query is a stateless view over one Store snapshot. All iterator methods
// take an IterState by value and return the advanced state alongside the
// decoded entry, so callers can hold several independent iteration
// positions over the same snapshot (spec §4.3).
type Query struct {
	buf      []byte
	version  uint8
	source   *Store
	selfRloc Rloc16
	hasSelf  bool
}

// NewQuery builds a Query over the Store's current snapshot.
func NewQuery(s *Store) *Query {
	buf, version, _ := s.Snapshot()
	return &Query{buf: buf, version: version, source: s}
}

// WithSelfRloc16 records this device's own RLOC16, used to derive
// ExternalRouteConfig.NextHopIsThisDevice.
func (q *Query) WithSelfRloc16(r Rloc16) *Query {
	q.selfRloc = r
	q.hasSelf = true
	return q
}

// Stale reports ErrInvalidState if the originating Store has mutated
// since this Query's snapshot was taken (spec §5, §9). Callers that hold
// a Query across an event-loop turn boundary should check this before
// trusting further iteration results.
func (q *Query) Stale() error {
	if q.source == nil {
		return nil
	}
	return q.source.verifyIteratorToken(q.version)
}

// IterState is the iterator token threaded through NextOnMeshPrefix calls.
// It carries the top-level cursor plus, while part-way through a Prefix
// TLV's Border Router sub-TLVs, the position within that container — a
// Prefix TLV can hold more than one Border Router sub-TLV, so a bare
// top-level offset cannot by itself resume mid-container (spec §4.3).
type IterState struct {
	topOffset int
	inPrefix  bool
	prefix    Prefix
	stable    bool
	sub       []byte
	subOffset int
}

// InitIter returns the zero iterator state (OT_NETWORK_DATA_ITERATOR_INIT
// equivalent).
func InitIter() IterState {
	return IterState{}
}

// NextOnMeshPrefix walks Prefix TLVs from state, emitting one
// OnMeshPrefixConfig per Border Router sub-TLV, in buffer order.
func (q *Query) NextOnMeshPrefix(state IterState) (OnMeshPrefixConfig, IterState, error) {
	it := tlv.NewIterator(q.buf)
	it.Seek(state.topOffset)

	if state.inPrefix {
		if cfg, next, ok, err := scanBorderRouters(state.sub, state.subOffset, state.prefix, state.stable); err != nil {
			return OnMeshPrefixConfig{}, state, err
		} else if ok {
			state.subOffset = next
			return cfg, state, nil
		}
		state.inPrefix = false
	}

	for {
		h, ok := it.Next()
		if !ok {
			if err := it.Err(); err != nil {
				return OnMeshPrefixConfig{}, state, err
			}
			return OnMeshPrefixConfig{}, IterState{topOffset: it.Offset()}, ErrNotFound
		}
		if h.Type != tlv.TypePrefix {
			continue
		}

		_, prefix, sub, err := decodePrefixHeader(h.Value(q.buf))
		if err != nil {
			return OnMeshPrefixConfig{}, state, err
		}

		cfg, next, found, err := scanBorderRouters(sub, 0, prefix, h.Stable)
		if err != nil {
			return OnMeshPrefixConfig{}, state, err
		}
		if !found {
			continue
		}

		return cfg, IterState{
			topOffset: it.Offset(),
			inPrefix:  true,
			prefix:    prefix,
			stable:    h.Stable,
			sub:       sub,
			subOffset: next,
		}, nil
	}
}

// scanBorderRouters resumes scanning sub (a Prefix TLV's sub-TLV region)
// at subOffset for the next Border Router sub-TLV, decoding it against
// prefix. It returns the offset to resume at on the following call.
func scanBorderRouters(sub []byte, subOffset int, prefix Prefix, parentStable bool) (cfg OnMeshPrefixConfig, next int, found bool, err error) {
	subIt := tlv.NewSubIterator(sub)
	subIt.Seek(subOffset)
	for {
		sh, ok := subIt.Next()
		if !ok {
			return OnMeshPrefixConfig{}, subIt.Offset(), false, subIt.Err()
		}
		if sh.Type != tlv.TypeBorderRouter {
			continue
		}

		rloc, pref, flags, derr := decodeBorderRouterValue(sh.Value(sub))
		if derr != nil {
			return OnMeshPrefixConfig{}, subIt.Offset(), false, derr
		}

		cfg = OnMeshPrefixConfig{
			Prefix:       prefix,
			Rloc16:       rloc,
			Preference:   pref,
			Preferred:    flags.Preferred,
			Slaac:        flags.Slaac,
			Dhcp:         flags.Dhcp,
			Configure:    flags.Configure,
			DefaultRoute: flags.DefaultRoute,
			OnMesh:       flags.OnMesh,
			Stable:       parentStable && sh.Stable,
			NdDns:        flags.NdDns,
			DomainPrefix: flags.Dp,
		}
		return cfg, subIt.Offset(), true, nil
	}
}

// NextOnMeshPrefixAll decodes every OnMeshPrefixConfig in the store in one
// pass. It is the primary entry point used by callers (the DHCPv6 client,
// cmd show, tests): walking one Border-Router-sub-TLV-at-a-time
// with IterState is spec-mandated for API parity, but most real consumers
// want "all of them", so this helper is provided alongside it and is
// implemented in terms of the same decode helpers.
func (q *Query) NextOnMeshPrefixAll() ([]OnMeshPrefixConfig, error) {
	var out []OnMeshPrefixConfig
	it := tlv.NewIterator(q.buf)
	for {
		h, ok := it.Next()
		if !ok {
			break
		}
		if h.Type != tlv.TypePrefix {
			continue
		}
		_, prefix, sub, err := decodePrefixHeader(h.Value(q.buf))
		if err != nil {
			return nil, err
		}
		subIt := tlv.NewSubIterator(sub)
		for {
			sh, ok := subIt.Next()
			if !ok {
				break
			}
			if sh.Type != tlv.TypeBorderRouter {
				continue
			}
			rloc, pref, flags, err := decodeBorderRouterValue(sh.Value(sub))
			if err != nil {
				return nil, err
			}
			out = append(out, OnMeshPrefixConfig{
				Prefix:       prefix,
				Rloc16:       rloc,
				Preference:   pref,
				Preferred:    flags.Preferred,
				Slaac:        flags.Slaac,
				Dhcp:         flags.Dhcp,
				Configure:    flags.Configure,
				DefaultRoute: flags.DefaultRoute,
				OnMesh:       flags.OnMesh,
				Stable:       h.Stable && sh.Stable,
				NdDns:        flags.NdDns,
				DomainPrefix: flags.Dp,
			})
		}
		if err := subIt.Err(); err != nil {
			return nil, err
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// NextExternalRouteAll decodes every ExternalRouteConfig in the store.
func (q *Query) NextExternalRouteAll() ([]ExternalRouteConfig, error) {
	var out []ExternalRouteConfig
	it := tlv.NewIterator(q.buf)
	for {
		h, ok := it.Next()
		if !ok {
			break
		}
		if h.Type != tlv.TypePrefix {
			continue
		}
		_, prefix, sub, err := decodePrefixHeader(h.Value(q.buf))
		if err != nil {
			return nil, err
		}
		subIt := tlv.NewSubIterator(sub)
		for {
			sh, ok := subIt.Next()
			if !ok {
				break
			}
			if sh.Type != tlv.TypeHasRoute {
				continue
			}
			rloc, pref, nat64, advPio, err := decodeHasRouteValue(sh.Value(sub))
			if err != nil {
				return nil, err
			}
			out = append(out, ExternalRouteConfig{
				Prefix:              prefix,
				Rloc16:              rloc,
				Preference:          pref,
				Nat64:               nat64,
				Stable:              h.Stable && sh.Stable,
				AdvPio:              advPio,
				NextHopIsThisDevice: q.hasSelf && rloc == q.selfRloc,
			})
		}
		if err := subIt.Err(); err != nil {
			return nil, err
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// NextServiceAll decodes every ServiceConfig in the store, one entry per
// Server sub-TLV.
func (q *Query) NextServiceAll() ([]ServiceConfig, error) {
	var out []ServiceConfig
	it := tlv.NewIterator(q.buf)
	for {
		h, ok := it.Next()
		if !ok {
			break
		}
		if h.Type != tlv.TypeService {
			continue
		}
		sh, err := decodeServiceHeader(h.Value(q.buf))
		if err != nil {
			return nil, err
		}
		subIt := tlv.NewSubIterator(sh.SubTLVs)
		for {
			srv, ok := subIt.Next()
			if !ok {
				break
			}
			if srv.Type != tlv.TypeServer {
				continue
			}
			rloc, serverData, err := decodeServerValue(srv.Value(sh.SubTLVs))
			if err != nil {
				return nil, err
			}
			out = append(out, ServiceConfig{
				ServiceID:        sh.ServiceID,
				EnterpriseNumber: sh.EnterpriseNumber,
				ServiceData:      sh.ServiceData,
				Server: ServerConfig{
					Rloc16:     rloc,
					ServerData: serverData,
					Stable:     h.Stable && srv.Stable,
				},
			})
		}
		if err := subIt.Err(); err != nil {
			return nil, err
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Next6LowPanContextAll decodes every LowpanContextInfo in the store.
func (q *Query) Next6LowPanContextAll() ([]LowpanContextInfo, error) {
	var out []LowpanContextInfo
	it := tlv.NewIterator(q.buf)
	for {
		h, ok := it.Next()
		if !ok {
			break
		}
		if h.Type != tlv.TypePrefix {
			continue
		}
		_, _, sub, err := decodePrefixHeader(h.Value(q.buf))
		if err != nil {
			return nil, err
		}
		subIt := tlv.NewSubIterator(sub)
		for {
			sh, ok := subIt.Next()
			if !ok {
				break
			}
			if sh.Type != tlv.TypeSixLowPanContext {
				continue
			}
			cid, compress, prefix, err := decodeContextValue(sh.Value(sub))
			if err != nil {
				return nil, err
			}
			out = append(out, LowpanContextInfo{
				ContextID:    cid,
				CompressFlag: compress,
				Stable:       h.Stable && sh.Stable,
				Prefix:       prefix,
			})
		}
		if err := subIt.Err(); err != nil {
			return nil, err
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// FindRlocs enumerates the RLOC16 set matching filter and roleFilter
// (spec §4.3).
func (q *Query) FindRlocs(filter RlocFilter, roleFilter RoleFilter) (*Rlocs, error) {
	result := NewRlocs()

	onMesh, err := q.NextOnMeshPrefixAll()
	if err != nil {
		return nil, err
	}
	routes, err := q.NextExternalRouteAll()
	if err != nil {
		return nil, err
	}
	services, err := q.NextServiceAll()
	if err != nil {
		return nil, err
	}

	switch filter {
	case AnyBrOrServer:
		for _, cfg := range onMesh {
			if roleFilter.matches(cfg.Rloc16) {
				result.Add(cfg.Rloc16)
			}
		}
		for _, r := range routes {
			if roleFilter.matches(r.Rloc16) {
				result.Add(r.Rloc16)
			}
		}
		for _, svc := range services {
			if roleFilter.matches(svc.Server.Rloc16) {
				result.Add(svc.Server.Rloc16)
			}
		}

	case BrProvidingExternalIpConn:
		for _, r := range routes {
			if roleFilter.matches(r.Rloc16) {
				result.Add(r.Rloc16)
			}
		}
		for _, cfg := range onMesh {
			if !roleFilter.matches(cfg.Rloc16) {
				continue
			}
			if (cfg.DefaultRoute && cfg.OnMesh) || cfg.DomainPrefix {
				result.Add(cfg.Rloc16)
			}
		}
	}

	return result, nil
}

// ContainsBorderRouterWithRloc reports whether rloc appears in any Border
// Router, Has Route or Server entry (FindRlocs with AnyBrOrServer).
func (q *Query) ContainsBorderRouterWithRloc(rloc Rloc16) (bool, error) {
	rlocs, err := q.FindRlocs(AnyBrOrServer, AnyRole)
	if err != nil {
		return false, err
	}
	return rlocs.Contains(rloc), nil
}

// CountBorderRouters returns the number of distinct border-router/server
// RLOCs matching roleFilter.
func (q *Query) CountBorderRouters(roleFilter RoleFilter) (uint16, error) {
	rlocs, err := q.FindRlocs(AnyBrOrServer, roleFilter)
	if err != nil {
		return 0, err
	}
	return uint16(rlocs.Len()), nil
}

// FindNextService performs a linear scan for the next Service TLV entry
// whose (enterprise_number, service_data) matches under mode, resuming
// after prev if prev is non-nil.
func (q *Query) FindNextService(prev *ServiceConfig, enterpriseNumber uint32, serviceData []byte, mode MatchMode) (ServiceConfig, error) {
	all, err := q.NextServiceAll()
	if err != nil {
		return ServiceConfig{}, err
	}

	skip := prev != nil
	for _, svc := range all {
		if skip {
			if svc.Server.Rloc16 == prev.Server.Rloc16 &&
				svc.EnterpriseNumber == prev.EnterpriseNumber &&
				string(svc.ServiceData) == string(prev.ServiceData) {
				skip = false
			}
			continue
		}
		if svc.EnterpriseNumber != enterpriseNumber {
			continue
		}
		if matchServiceData(svc.ServiceData, serviceData, mode) {
			return svc, nil
		}
	}
	return ServiceConfig{}, ErrNotFound
}

func matchServiceData(candidate, want []byte, mode MatchMode) bool {
	switch mode {
	case MatchPrefix:
		if len(want) > len(candidate) {
			return false
		}
		for i := range want {
			if candidate[i] != want[i] {
				return false
			}
		}
		return true
	default: // MatchExact
		if len(candidate) != len(want) {
			return false
		}
		for i := range want {
			if candidate[i] != want[i] {
				return false
			}
		}
		return true
	}
}

// ContainsOMRPrefix reports whether prefix both looks like a valid
// off-mesh-routable prefix shape (a /64 that is neither link-local nor
// multicast, spec GLOSSARY "OMR prefix") and is present in the store as an on-mesh prefix (supplemented
// feature, SPEC_FULL.md item 3).
func (q *Query) ContainsOMRPrefix(prefix Prefix) (bool, error) {
	if prefix.Length != 64 {
		return false, nil
	}
	if prefix.Addr.IsLinkLocalUnicast() || prefix.Addr.IsMulticast() {
		return false, nil
	}

	onMesh, err := q.NextOnMeshPrefixAll()
	if err != nil {
		return false, err
	}
	for _, cfg := range onMesh {
		if cfg.Prefix.Length == prefix.Length && cfg.Prefix.Addr == prefix.Addr {
			return true, nil
		}
	}
	return false, nil
}
