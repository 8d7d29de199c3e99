package testutils

import (
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"

	"github.com/Sudo-Ivan/vl1-go/pkg/common"
	"github.com/Sudo-Ivan/vl1-go/pkg/packet"
)

// PacketInterceptor writes a decoded header line and a hex dump of every
// unit crossing a wrapped interface.
type PacketInterceptor struct {
	mutex       sync.Mutex
	outputFile  *os.File
	isEnabled   bool
	packetCount uint64
}

func NewPacketInterceptor(outputPath string) (*PacketInterceptor, error) {
	file, err := os.OpenFile(outputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}

	pi := &PacketInterceptor{
		outputFile: file,
		isEnabled:  true,
	}

	header := fmt.Sprintf("=== Packet Capture Started at %s ===\n\n",
		time.Now().UTC().Format("2006-01-02 15:04:05"))
	if _, err := file.WriteString(header); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	return pi, nil
}

func (pi *PacketInterceptor) Close() error {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()

	if pi.outputFile == nil {
		return nil
	}
	err := pi.outputFile.Close()
	pi.outputFile = nil
	return err
}

func (pi *PacketInterceptor) InterceptPacket(data []byte, ifaceName, peer, direction string) error {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()

	if !pi.isEnabled || pi.outputFile == nil {
		return nil
	}

	timestamp := time.Now().UTC().Format("2006-01-02 15:04:05.000")
	pi.packetCount++

	logEntry := fmt.Sprintf("[%s] %s unit #%d on interface %s peer %s\n%s\nData (%d bytes):\n%s\n",
		timestamp,
		direction,
		pi.packetCount,
		ifaceName,
		peer,
		describe(data),
		len(data),
		hex.Dump(data),
	)

	if _, err := pi.outputFile.WriteString(logEntry); err != nil {
		return fmt.Errorf("failed to write to log file: %w", err)
	}
	return nil
}

func (pi *PacketInterceptor) Count() uint64 {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	return pi.packetCount
}

func (pi *PacketInterceptor) Enable() {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	pi.isEnabled = true
}

func (pi *PacketInterceptor) Disable() {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	pi.isEnabled = false
}

// describe decodes the outer VL1 header of a unit.
func describe(data []byte) string {
	p := gopacket.NewPacket(data, packet.LayerTypeVL1, gopacket.NoCopy)
	if l, ok := p.Layer(packet.LayerTypeVL1).(*packet.VL1); ok {
		return l.Header.String()
	}
	if l, ok := p.Layer(packet.LayerTypeVL1Fragment).(*packet.VL1Fragment); ok {
		return l.FragmentHeader.String()
	}
	if el := p.ErrorLayer(); el != nil {
		return "undecodable: " + el.Error().Error()
	}
	return "undecodable"
}

// Wrap returns iface with every sent and received unit passed through pi.
func (pi *PacketInterceptor) Wrap(iface common.NetworkInterface) common.NetworkInterface {
	return &interceptedInterface{NetworkInterface: iface, pi: pi}
}

type interceptedInterface struct {
	common.NetworkInterface
	pi *PacketInterceptor
}

func (w *interceptedInterface) Send(data []byte, address string) error {
	_ = w.pi.InterceptPacket(data, w.GetName(), address, "OUTGOING")
	return w.NetworkInterface.Send(data, address)
}

func (w *interceptedInterface) SetPacketCallback(callback common.PacketCallback) {
	if callback == nil {
		w.NetworkInterface.SetPacketCallback(nil)
		return
	}
	w.NetworkInterface.SetPacketCallback(func(data []byte, from string) {
		_ = w.pi.InterceptPacket(data, w.GetName(), from, "INCOMING")
		callback(data, from)
	})
}
