package common

import (
	"fmt"
	"strings"
	"time"
)

// InterfaceConfig describes one datagram carrier.
type InterfaceConfig struct {
	Type    string `toml:"type"`
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
	MTU     int    `toml:"mtu"`
}

// PeerConfig binds a VL1 address to its key-pair file and, optionally, a
// fixed underlay endpoint reached through a named interface.
type PeerConfig struct {
	KeyFile   string `toml:"key_file"`
	Endpoint  string `toml:"endpoint"`
	Interface string `toml:"interface"`
}

// VL1Config is the node configuration.
type VL1Config struct {
	ConfigPath string `toml:"-"`

	// Address is the local 10-hex-digit VL1 address.
	Address string `toml:"address"`
	MTU     int    `toml:"mtu"`
	Relay   bool   `toml:"enable_relay"`

	FragmentExpirationMS int     `toml:"fragment_expiration_ms"`
	MaxIncompletePerPath int     `toml:"max_incomplete_per_path"`
	CompletedCapacity    int     `toml:"completed_filter_capacity"`
	CompletedFPR         float64 `toml:"completed_filter_fpr"`

	LogLevel      int    `toml:"loglevel"`
	MetricsListen string `toml:"metrics_listen"`
	KeyDir        string `toml:"key_dir"`

	Interfaces map[string]*InterfaceConfig `toml:"interfaces"`
	// Peers is keyed by peer VL1 address.
	Peers map[string]*PeerConfig `toml:"peers"`
}

// NewVL1Config creates a VL1Config with default values.
func NewVL1Config() *VL1Config {
	c := &VL1Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills every zero-valued tunable with its default.
func (c *VL1Config) ApplyDefaults() {
	if c.MTU == 0 {
		c.MTU = DEFAULT_MTU
	}
	if c.FragmentExpirationMS == 0 {
		c.FragmentExpirationMS = DEFAULT_FRAGMENT_EXPIRATION_MS
	}
	if c.MaxIncompletePerPath == 0 {
		c.MaxIncompletePerPath = DEFAULT_MAX_INCOMPLETE
	}
	if c.CompletedCapacity == 0 {
		c.CompletedCapacity = DEFAULT_COMPLETED_CAPACITY
	}
	if c.CompletedFPR == 0 {
		c.CompletedFPR = DEFAULT_COMPLETED_FPR
	}
	if c.LogLevel == 0 {
		c.LogLevel = DEFAULT_LOG_LEVEL
	}
	if c.Interfaces == nil {
		c.Interfaces = make(map[string]*InterfaceConfig)
	}
	if c.Peers == nil {
		c.Peers = make(map[string]*PeerConfig)
	}
	for _, iface := range c.Interfaces {
		if iface == nil {
			continue
		}
		if iface.Type == "" {
			iface.Type = IF_TYPE_UDP
		}
		if iface.MTU == 0 {
			iface.MTU = c.MTU
		}
	}
}

func (c *VL1Config) FragmentExpiration() time.Duration {
	return time.Duration(c.FragmentExpirationMS) * time.Millisecond
}

// Validate checks if the configuration is valid
func (c *VL1Config) Validate() error {
	if c.Address != "" && !validAddress(c.Address) {
		return fmt.Errorf("invalid local address: %q", c.Address)
	}
	if c.MTU < 128 || c.MTU > 65507 {
		return fmt.Errorf("invalid mtu: %d", c.MTU)
	}
	if c.FragmentExpirationMS < 0 {
		return fmt.Errorf("invalid fragment expiration: %dms", c.FragmentExpirationMS)
	}
	if c.MaxIncompletePerPath < 0 {
		return fmt.Errorf("invalid max incomplete per path: %d", c.MaxIncompletePerPath)
	}
	if c.CompletedCapacity < 0 {
		return fmt.Errorf("invalid completed filter capacity: %d", c.CompletedCapacity)
	}
	if c.CompletedFPR < 0 || c.CompletedFPR >= 1 {
		return fmt.Errorf("invalid completed filter false-positive rate: %g", c.CompletedFPR)
	}
	if c.LogLevel < 1 || c.LogLevel > 7 {
		return fmt.Errorf("invalid log level: %d", c.LogLevel)
	}
	for name, iface := range c.Interfaces {
		if iface == nil {
			return fmt.Errorf("interface %q: empty definition", name)
		}
		if iface.Type != IF_TYPE_UDP {
			return fmt.Errorf("interface %q: unsupported type %q", name, iface.Type)
		}
		if iface.MTU != 0 && (iface.MTU < 128 || iface.MTU > 65507) {
			return fmt.Errorf("interface %q: invalid mtu: %d", name, iface.MTU)
		}
	}
	for addr, peer := range c.Peers {
		if !validAddress(addr) {
			return fmt.Errorf("invalid peer address: %q", addr)
		}
		if peer == nil || peer.KeyFile == "" {
			return fmt.Errorf("peer %s: key_file is required", addr)
		}
		if peer.Interface != "" {
			if _, ok := c.Interfaces[peer.Interface]; !ok {
				return fmt.Errorf("peer %s: unknown interface %q", addr, peer.Interface)
			}
		}
	}
	return nil
}

// validAddress accepts 10 hex digits not starting with ff.
func validAddress(s string) bool {
	if len(s) != 10 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return !strings.EqualFold(s[:2], "ff")
}
