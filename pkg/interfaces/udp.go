package interfaces

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/Sudo-Ivan/vl1-go/pkg/buffer"
	"github.com/Sudo-Ivan/vl1-go/pkg/common"
	"github.com/Sudo-Ivan/vl1-go/pkg/debug"
	"github.com/Sudo-Ivan/vl1-go/pkg/packet"
)

var (
	ErrOffline  = errors.New("interface offline")
	ErrNoTarget = errors.New("no target address configured")
)

// UDPInterface carries VL1 units as UDP datagrams, one unit per datagram.
type UDPInterface struct {
	common.BaseInterface
	addr       *net.UDPAddr
	targetAddr *net.UDPAddr

	connMutex sync.RWMutex
	conn      *net.UDPConn
	done      chan struct{}
	wg        sync.WaitGroup
}

var _ common.NetworkInterface = (*UDPInterface)(nil)

// NewUDPInterface creates an interface bound to addr once started. target,
// if set, is used by Send when no address is given.
func NewUDPInterface(name, addr, target string, mtu int) (*UDPInterface, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("invalid listen address: %w", err)
	}

	var targetAddr *net.UDPAddr
	if target != "" {
		targetAddr, err = net.ResolveUDPAddr("udp", target)
		if err != nil {
			return nil, fmt.Errorf("invalid target address: %w", err)
		}
	}

	if mtu <= 0 {
		mtu = common.DEFAULT_MTU
	}
	ui := &UDPInterface{
		addr:       udpAddr,
		targetAddr: targetAddr,
	}
	ui.Name = name
	ui.Type = common.IF_TYPE_UDP
	ui.MTU = mtu
	return ui, nil
}

func (ui *UDPInterface) Start() error {
	ui.connMutex.Lock()
	defer ui.connMutex.Unlock()
	if ui.conn != nil {
		return nil
	}

	conn, err := net.ListenUDP("udp", ui.addr)
	if err != nil {
		return fmt.Errorf("UDP listen failed: %w", err)
	}
	ui.conn = conn
	ui.done = make(chan struct{})
	ui.SetOnline(true)

	ui.wg.Add(1)
	go ui.readLoop(conn, ui.done)
	debug.Log(debug.DEBUG_INFO, "UDP interface started", "name", ui.Name, "listen", conn.LocalAddr().String(), "mtu", ui.MTU)
	return nil
}

func (ui *UDPInterface) Stop() error {
	ui.connMutex.Lock()
	conn := ui.conn
	ui.conn = nil
	if ui.done != nil {
		close(ui.done)
		ui.done = nil
	}
	ui.connMutex.Unlock()

	ui.SetOnline(false)
	if conn == nil {
		return nil
	}
	err := conn.Close()
	ui.wg.Wait()
	return err
}

// LocalAddr returns the bound address, or nil before Start.
func (ui *UDPInterface) LocalAddr() net.Addr {
	ui.connMutex.RLock()
	defer ui.connMutex.RUnlock()
	if ui.conn == nil {
		return nil
	}
	return ui.conn.LocalAddr()
}

func (ui *UDPInterface) Send(data []byte, addr string) error {
	ui.connMutex.RLock()
	conn := ui.conn
	ui.connMutex.RUnlock()
	if conn == nil || !ui.IsOnline() {
		return ErrOffline
	}

	targetAddr := ui.targetAddr
	if addr != "" {
		var err error
		targetAddr, err = net.ResolveUDPAddr("udp", addr)
		if err != nil {
			return fmt.Errorf("invalid target address: %w", err)
		}
	}
	if targetAddr == nil {
		return ErrNoTarget
	}

	if _, err := conn.WriteToUDP(data, targetAddr); err != nil {
		return fmt.Errorf("UDP write failed: %w", err)
	}
	ui.TxBytes.Add(uint64(len(data)))
	return nil
}

func (ui *UDPInterface) readLoop(conn *net.UDPConn, done <-chan struct{}) {
	defer ui.wg.Done()
	buf := buffer.Packets.Get()
	defer buffer.Packets.Put(buf)

	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-done:
			default:
				debug.Log(debug.DEBUG_ERROR, "UDP read failed", "name", ui.Name, "error", err)
				ui.SetOnline(false)
			}
			return
		}
		if n >= len(buf) {
			debug.Log(debug.DEBUG_PACKETS, "Dropping oversized datagram", "name", ui.Name, "from", from.String())
			continue
		}
		if n < packet.FragmentHeaderSize {
			continue
		}
		ui.ProcessIncoming(buf[:n], from.String())
	}
}
