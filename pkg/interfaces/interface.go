// Package interfaces provides the datagram carriers VL1 units travel over.
package interfaces

import (
	"fmt"

	"github.com/Sudo-Ivan/vl1-go/pkg/common"
)

// FromConfig builds the carrier described by cfg.
func FromConfig(name string, cfg *common.InterfaceConfig) (common.NetworkInterface, error) {
	if cfg == nil {
		return nil, fmt.Errorf("interface %s: no configuration", name)
	}
	switch cfg.Type {
	case common.IF_TYPE_UDP, "":
		return NewUDPInterface(name, cfg.Listen, "", cfg.MTU)
	}
	return nil, fmt.Errorf("interface %s: unsupported type %q", name, cfg.Type)
}
