// Package config decodes the node's on-disk configuration: the
// log level, the DHCPv6 client's lease database path and solicit
// addressing mode, and the debug introspection server's listen address.
// Loaded with toolutils.ReadYaml the way the teacher's fw/core and
// dv/config packages are, with the same "flat struct, DefaultConfig,
// Validate" shape.
package config

import (
	"encoding/hex"
	"fmt"
	"net/netip"

	"github.com/openthread-go/netdata/dhcp6"
)

// Config is the node's top-level configuration file shape.
type Config struct {
	// LogLevel is the minimum std/log level to emit ("debug", "info",
	// "warn", "error").
	LogLevel string `json:"log_level"`

	// Eui64Hex is this node's 8-byte EUI-64, hex-encoded (16 characters,
	// e.g. "0011223344556677"), used for the DHCPv6 Client-ID and radio
	// identity.
	Eui64Hex string `json:"eui64"`

	// LeaseDbPath is the path leasestore opens its badger database at.
	LeaseDbPath string `json:"lease_db_path"`

	// SolicitMode selects DHCPv6 Solicit addressing: "unicast" (default,
	// address the prefix's advertising RLOC16 directly) or "multicast"
	// (address the realm-local-all-routers group, mirroring
	// OPENTHREAD_ENABLE_DHCP6_MULTICAST_SOLICIT).
	SolicitMode string `json:"solicit_mode"`

	// DropMessageOnFragmentTxFailure controls the indirect sender's
	// behavior on a failed non-final fragment send (spec §4.4 edge case):
	// drop the whole message rather than sending its remaining fragments.
	DropMessageOnFragmentTxFailure bool `json:"drop_message_on_fragment_tx_failure"`

	// DebugListen is the address the debugserver's websocket endpoint
	// binds ("" disables it).
	DebugListen string `json:"debug_listen"`

	// NetifName is the network interface the DHCPv6 client's UDP socket
	// joins the realm-local-all-routers multicast group on (e.g.
	// "wpan0"). Empty lets the kernel pick the outgoing interface and
	// skips multicast group membership.
	NetifName string `json:"netif_name"`

	// MeshLocalPrefix is this partition's mesh-local /64, used to derive
	// RLOC addresses.
	MeshLocalPrefix string `json:"mesh_local_prefix"`

	// SelfRloc16 is this node's own routing locator, hex-encoded
	// (4 characters, e.g. "5c00").
	SelfRloc16 string `json:"self_rloc16"`
}

// DefaultConfig returns a Config with every field set to its default.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:    "info",
		LeaseDbPath: "leases.db",
		SolicitMode: "unicast",
		DebugListen: "127.0.0.1:8149",
	}
}

// Eui64 decodes Eui64Hex into its 8-byte form.
func (c *Config) Eui64() ([8]byte, error) {
	var out [8]byte
	raw, err := hex.DecodeString(c.Eui64Hex)
	if err != nil {
		return out, fmt.Errorf("config: eui64: %w", err)
	}
	if len(raw) != 8 {
		return out, fmt.Errorf("config: eui64: want 8 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// MeshLocalPrefixAddr parses MeshLocalPrefix into a netip.Prefix.
func (c *Config) MeshLocalPrefixAddr() (netip.Prefix, error) {
	p, err := netip.ParsePrefix(c.MeshLocalPrefix)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("config: mesh_local_prefix: %w", err)
	}
	return p, nil
}

// SelfRloc16Value decodes SelfRloc16 into its uint16 form.
func (c *Config) SelfRloc16Value() (uint16, error) {
	raw, err := hex.DecodeString(c.SelfRloc16)
	if err != nil || len(raw) != 2 {
		return 0, fmt.Errorf("config: self_rloc16: want 2 hex bytes, got %q", c.SelfRloc16)
	}
	return uint16(raw[0])<<8 | uint16(raw[1]), nil
}

// DhcpSolicitMode parses SolicitMode into a dhcp6.SolicitMode.
func (c *Config) DhcpSolicitMode() (dhcp6.SolicitMode, error) {
	switch c.SolicitMode {
	case "", "unicast":
		return dhcp6.SolicitUnicastToAgent, nil
	case "multicast":
		return dhcp6.SolicitMulticast, nil
	default:
		return 0, fmt.Errorf("config: solicit_mode: unknown value %q", c.SolicitMode)
	}
}

// Validate reports a non-nil error for a Config that cannot be used to
// start the daemon.
func (c *Config) Validate() error {
	if _, err := c.Eui64(); err != nil {
		return err
	}
	if _, err := c.DhcpSolicitMode(); err != nil {
		return err
	}
	if c.LeaseDbPath == "" {
		return fmt.Errorf("config: lease_db_path must not be empty")
	}
	if _, err := c.MeshLocalPrefixAddr(); err != nil {
		return err
	}
	if _, err := c.SelfRloc16Value(); err != nil {
		return err
	}
	return nil
}
