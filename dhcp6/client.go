package dhcp6

import (
	"context"
	"math/rand/v2"
	"net/netip"
	"time"

	"github.com/openthread-go/netdata/netdata"
	"github.com/openthread-go/netdata/hostapi"
	"github.com/openthread-go/netdata/std/log"
)

// Trickle timer bounds (spec §4.5): k=∞ redundancy is implemented by
// Trickle itself always firing, never suppressing.
const (
	trickleImin = 1 * time.Second
	trickleImax = 120 * time.Second
)

// SolicitMode selects how the client addresses its Solicit datagram
// (SUPPLEMENTED FEATURES item 4).
type SolicitMode int

const (
	// SolicitUnicastToAgent targets the prefix's advertising RLOC16
	// directly, the default (spec §4.5 body).
	SolicitUnicastToAgent SolicitMode = iota
	// SolicitMulticast targets the realm-local-all-routers multicast
	// address instead, mirroring
	// OPENTHREAD_ENABLE_DHCP6_MULTICAST_SOLICIT.
	SolicitMulticast
)

// realmLocalAllRoutersMulticast is Thread's realm-local all-routers
// multicast address (RFC 4291 §2.7 scope 3, group ID 2).
var realmLocalAllRoutersMulticast = netip.MustParseAddr("ff03::2")

// maxIdentityAssociations bounds how many prefixes this client solicits
// concurrently, matching OpenThread's fixed IdentityAssociation table.
const maxIdentityAssociations = 4

// Client is the DHCPv6 client driving one node's IdentityAssociation set.
type Client struct {
	radio   hostapi.Radio
	netif   hostapi.ThreadNetif
	udp     hostapi.UDP
	mle     hostapi.MLE
	trickle hostapi.TrickleTimer
	mode    SolicitMode

	ias []IdentityAssociation

	current       *IdentityAssociation
	transactionID TransactionID
	startTime     func() int64 // seconds, injected for elapsed-time accounting
	elapsedStart  int64
	bound         bool
}

// ClientOption configures optional Client behavior.
type ClientOption func(*Client)

// WithSolicitMode overrides the default unicast-to-agent addressing.
func WithSolicitMode(mode SolicitMode) ClientOption {
	return func(c *Client) { c.mode = mode }
}

// NewClient constructs a Client with maxIdentityAssociations empty slots.
func NewClient(radio hostapi.Radio, netif hostapi.ThreadNetif, udp hostapi.UDP, mle hostapi.MLE, trickle hostapi.TrickleTimer, opts ...ClientOption) *Client {
	c := &Client{
		radio:   radio,
		netif:   netif,
		udp:     udp,
		mle:     mle,
		trickle: trickle,
		ias:     make([]IdentityAssociation, maxIdentityAssociations),
	}
	for _, o := range opts {
		o(c)
	}
	c.udp.SetReceiveCallback(c.HandleUdpReceive)
	return c
}

// IdentityAssociations returns a snapshot of the tracked IAs.
func (c *Client) IdentityAssociations() []IdentityAssociation {
	out := make([]IdentityAssociation, len(c.ias))
	copy(out, c.ias)
	return out
}

// UpdateAddresses reconciles the tracked IdentityAssociations against the
// current dhcp-flagged on-mesh prefixes in q, as Client::UpdateAddresses
// does on every Network Data change notification.
func (c *Client) UpdateAddresses(q *netdata.Query) error {
	prefixes, err := q.NextOnMeshPrefixAll()
	if err != nil {
		return err
	}

	var dhcpPrefixes []netdata.OnMeshPrefixConfig
	for _, p := range prefixes {
		if p.Dhcp {
			dhcpPrefixes = append(dhcpPrefixes, p)
		}
	}

	// Remove addresses for IAs whose prefix no longer appears dhcp-flagged.
	for i := range c.ias {
		ia := &c.ias[i]
		if ia.Status == IaStatusInvalid || ia.ValidLifetime == 0 {
			continue
		}
		found := false
		for _, p := range dhcpPrefixes {
			if ia.hasPrefix(p.Prefix) {
				found = true
				break
			}
		}
		if !found {
			if ia.NetifAddress.IsValid() {
				if err := c.netif.RemoveUnicastAddress(ia.NetifAddress); err != nil {
					log.Warnf("dhcp6: remove unicast address failed: %v", err)
				}
			}
			log.Debugf("dhcp6: ia for prefix %v invalidated, no longer dhcp-flagged", ia.Prefix)
			*ia = IdentityAssociation{}
		}
	}

	doesAgentExist := false
	for _, p := range dhcpPrefixes {
		doesAgentExist = true

		var (
			match     *IdentityAssociation
			available *IdentityAssociation
			found     bool
		)
		for i := range c.ias {
			ia := &c.ias[i]
			if ia.Status == IaStatusInvalid {
				if available == nil {
					available = ia
				}
				continue
			}
			if ia.Prefix == p.Prefix {
				found = true
				match = ia
				break
			}
		}

		if !found {
			if available == nil {
				log.Warnf("dhcp6: no free identity association slot for prefix %v", p.Prefix)
				continue
			}
			match = available
			match.Prefix = p.Prefix
			match.Status = IaStatusSolicit
			match.ValidLifetime = 0
		}
		match.PrefixAgentRloc = p.Rloc16
	}

	if doesAgentExist {
		return c.Start()
	}
	c.Stop()
	return nil
}

// Start binds the client socket (if not already bound) and kicks off
// soliciting the first pending IA.
func (c *Client) Start() error {
	if c.bound {
		c.ProcessNextIdentityAssociation()
		return nil
	}
	if err := c.udp.Bind(context.Background(), ClientPort); err != nil {
		return err
	}
	c.bound = true
	c.ProcessNextIdentityAssociation()
	return nil
}

// Stop halts the Trickle timer and closes the socket.
func (c *Client) Stop() {
	c.trickle.Stop()
	if c.bound {
		_ = c.udp.Close()
		c.bound = false
	}
	c.current = nil
}

// ProcessNextIdentityAssociation picks the next Solicit-pending IA and
// starts the Trickle timer over it, unless the current IA is still
// mid-solicitation.
func (c *Client) ProcessNextIdentityAssociation() bool {
	if c.current != nil && c.current.Status == IaStatusSoliciting {
		return false
	}

	c.trickle.Stop()

	for i := range c.ias {
		ia := &c.ias[i]
		if ia.Status != IaStatusSolicit {
			continue
		}
		c.current = ia
		c.elapsedStart = c.now()
		c.trickle.Start(trickleImin, trickleImax, c.HandleTrickleTimer)
		c.trickle.IndicateInconsistent()
		return true
	}
	return false
}

// newTransactionID picks a fresh random 3-byte transaction ID for a new
// Solicit sequence (RFC 8415 §18.2.1), so a Reply to a stale exchange
// cannot be mistaken for the current one.
func newTransactionID() TransactionID {
	var id TransactionID
	id[0] = byte(rand.Uint32())
	id[1] = byte(rand.Uint32())
	id[2] = byte(rand.Uint32())
	return id
}

func (c *Client) now() int64 {
	if c.startTime != nil {
		return c.startTime()
	}
	return time.Now().Unix()
}

// HandleTrickleTimer advances the current IA's state machine on every
// Trickle fire (spec §4.5).
func (c *Client) HandleTrickleTimer() {
	if c.current == nil {
		c.trickle.Stop()
		return
	}

	switch c.current.Status {
	case IaStatusSolicit:
		c.elapsedStart = c.now()
		c.transactionID = newTransactionID()
		c.current.Status = IaStatusSoliciting
		fallthrough
	case IaStatusSoliciting:
		if err := c.Solicit(c.current.PrefixAgentRloc); err != nil {
			log.Warnf("dhcp6: send solicit failed: %v", err)
		}
	case IaStatusSolicitReplied:
		c.current = nil
		if !c.ProcessNextIdentityAssociation() {
			c.Stop()
		}
	}
}

// Solicit builds and sends a Solicit message for every IA currently
// targeting rloc16, addressed per c.mode.
func (c *Client) Solicit(rloc16 netdata.Rloc16) error {
	msg, err := c.buildSolicit(rloc16)
	if err != nil {
		return err
	}

	var dest netip.Addr
	switch c.mode {
	case SolicitMulticast:
		dest = realmLocalAllRoutersMulticast
	default:
		dest = c.mle.RoutingLocatorAddress(rloc16)
	}

	err = c.udp.SendTo(hostapi.UDPMessage{
		Payload: msg,
		Dest:    netip.AddrPortFrom(dest, ServerPort),
	})
	if err != nil {
		return err
	}
	log.Infof("dhcp6: solicit sent to rloc16=0x%04x", rloc16)
	return nil
}

func (c *Client) buildSolicit(rloc16 netdata.Rloc16) ([]byte, error) {
	eui64 := c.radio.EUI64()

	var iaAddrOptions []byte
	for i := range c.ias {
		ia := &c.ias[i]
		if ia.PrefixAgentRloc != rloc16 {
			continue
		}
		if ia.Status != IaStatusSolicit && ia.Status != IaStatusSoliciting {
			continue
		}
		iaAddrOptions = append(iaAddrOptions, encodeIaAddress(ia.Prefix.Addr, 0, 0)...)
	}
	if len(iaAddrOptions) == 0 {
		return nil, ErrDrop
	}

	buf := encodeHeader(Header{MsgType: MsgTypeSolicit, TransactionID: c.transactionID})
	buf = append(buf, encodeElapsedTime(uint16(c.now()-c.elapsedStart))...)
	buf = append(buf, encodeClientID(eui64)...)
	buf = append(buf, encodeIaNa(iaAddrOptions)...)
	buf = append(buf, encodeOption(optRapidCommit, nil)...)
	return buf, nil
}

// HandleUdpReceive is installed as the client socket's receive callback.
func (c *Client) HandleUdpReceive(payload []byte, from netip.AddrPort) {
	h, err := decodeHeader(payload)
	if err != nil {
		return
	}
	if h.MsgType != MsgTypeReply || h.TransactionID != c.transactionID {
		return
	}
	if err := c.ProcessReply(payload[4:]); err != nil {
		log.Warnf("dhcp6: reply rejected: %v", err)
	}
}

// ProcessReply validates and applies a Reply's options against the
// current IA context (spec §4.5, SUPPLEMENTED FEATURES items 6-7).
func (c *Client) ProcessReply(body []byte) error {
	if opt, ok := findOption(body, optStatusCode); ok {
		if err := decodeStatusCode(opt); err != nil {
			return err
		}
	}

	serverIDOpt, ok := findOption(body, optServerID)
	if !ok {
		return ErrDrop
	}
	if err := decodeServerID(serverIDOpt); err != nil {
		return err
	}

	clientIDOpt, ok := findOption(body, optClientID)
	if !ok {
		return ErrDrop
	}
	if err := decodeClientID(clientIDOpt, c.radio.EUI64()); err != nil {
		return err
	}

	if _, ok := findOption(body, optRapidCommit); !ok {
		return ErrDrop
	}

	iaNaOpt, ok := findOption(body, optIaNa)
	if !ok {
		return ErrDrop
	}
	if err := c.processIaNa(iaNaOpt); err != nil {
		return err
	}

	c.HandleTrickleTimer()
	return nil
}

func (c *Client) processIaNa(opt option) error {
	if len(opt.Data) < 12 {
		return &ParseError{Reason: "ia_na option too short"}
	}
	sub := opt.Data[12:]

	if statusOpt, ok := findOption(sub, optStatusCode); ok {
		if err := decodeStatusCode(statusOpt); err != nil {
			return err
		}
	}

	for _, opt := range allOptions(sub) {
		if opt.Code != optIaAddress {
			continue
		}
		ia, err := decodeIaAddress(opt)
		if err != nil {
			return err
		}
		if err := c.processIaAddress(ia); err != nil && err != ErrDrop {
			return err
		}
	}
	return nil
}

// processIaAddress finds the IdentityAssociation whose (not-yet-leased)
// prefix contains ia.Address, installs the address, and advances it to
// SolicitReplied.
func (c *Client) processIaAddress(ia iaAddress) error {
	for i := range c.ias {
		cand := &c.ias[i]
		if cand.Status == IaStatusInvalid || cand.ValidLifetime != 0 {
			continue
		}
		if prefixMatch(ia.Address, cand.Prefix.Addr) < int(cand.Prefix.Length) {
			continue
		}

		cand.NetifAddress = ia.Address
		cand.PreferredLifetime = ia.PreferredLifetime
		cand.ValidLifetime = ia.ValidLifetime
		cand.Status = IaStatusSolicitReplied

		if err := c.netif.AddUnicastAddress(ia.Address, hostapi.AddressLifetime{
			Preferred: ia.PreferredLifetime,
			Valid:     ia.ValidLifetime,
		}); err != nil {
			return err
		}
		log.Infof("dhcp6: installed address %v for prefix %v", ia.Address, cand.Prefix)
		return nil
	}
	return ErrDrop
}
