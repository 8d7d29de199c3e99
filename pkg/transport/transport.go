// Package transport ties the VL1 pipeline together: outbound payloads are
// armored and split to the carrier MTU, inbound units are relayed or
// reassembled, authenticated and delivered.
package transport

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sudo-Ivan/vl1-go/pkg/buffer"
	"github.com/Sudo-Ivan/vl1-go/pkg/common"
	"github.com/Sudo-Ivan/vl1-go/pkg/cryptography"
	"github.com/Sudo-Ivan/vl1-go/pkg/debug"
	"github.com/Sudo-Ivan/vl1-go/pkg/metrics"
	"github.com/Sudo-Ivan/vl1-go/pkg/packet"
	"github.com/Sudo-Ivan/vl1-go/pkg/rate"
	"github.com/Sudo-Ivan/vl1-go/pkg/reassembly"
)

var (
	ErrInterfaceExists   = errors.New("interface already registered")
	ErrInterfaceNotFound = errors.New("interface not found")
	ErrNoKeys            = errors.New("no key pair for peer")
	ErrNoPath            = errors.New("no path to destination")
	ErrClosed            = errors.New("transport closed")
)

// logRate bounds per-transport warning lines per second.
const logRate = 10

// DeliveryHandler receives authenticated payloads addressed to this node.
// path identifies the interface and underlay address the packet arrived on.
type DeliveryHandler func(h packet.Header, payload []byte, path string)

type Transport struct {
	config     *common.VL1Config
	local      packet.Address
	keys       KeyStore
	metrics    *metrics.Metrics
	reassembly *reassembly.Table
	paths      *PathTable
	// buffers backs relay copies.
	buffers *buffer.List

	mutex      sync.RWMutex
	interfaces map[string]common.NetworkInterface
	router     Router
	handler    DeliveryHandler
	closed     bool

	sessionLock sync.Mutex
	sessions    map[packet.Address]*peerSessions

	warnLog *rate.Limiter
}

func NewTransport(config *common.VL1Config, local packet.Address, keys KeyStore, m *metrics.Metrics) *Transport {
	if config == nil {
		config = common.NewVL1Config()
	}

	rcfg := reassembly.DefaultConfig()
	if config.FragmentExpirationMS > 0 {
		rcfg.Expiration = config.FragmentExpiration()
	}
	if config.MaxIncompletePerPath > 0 {
		rcfg.MaxIncomplete = config.MaxIncompletePerPath
	}
	rcfg.CompletedCapacity = config.CompletedCapacity
	if config.CompletedFPR > 0 {
		rcfg.CompletedFPR = config.CompletedFPR
	}

	t := &Transport{
		config:     config,
		local:      local,
		keys:       keys,
		metrics:    m,
		reassembly: reassembly.NewTable(rcfg, m),
		paths:      NewPathTable(),
		buffers:    buffer.Packets,
		interfaces: make(map[string]common.NetworkInterface),
		sessions:   make(map[packet.Address]*peerSessions),
		warnLog:    rate.NewLimiter(logRate, time.Second),
	}
	t.router = t.paths
	return t
}

func (t *Transport) LocalAddress() packet.Address {
	return t.local
}

// Paths is the built-in path table, used as the Router unless SetRouter
// installs another one.
func (t *Transport) Paths() *PathTable {
	return t.paths
}

func (t *Transport) SetRouter(r Router) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if r == nil {
		r = t.paths
	}
	t.router = r
}

func (t *Transport) SetDeliveryHandler(h DeliveryHandler) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.handler = h
}

// RegisterInterface adds a carrier and routes its inbound datagrams into
// Receive.
func (t *Transport) RegisterInterface(name string, iface common.NetworkInterface) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.closed {
		return ErrClosed
	}
	if _, exists := t.interfaces[name]; exists {
		return fmt.Errorf("%w: %s", ErrInterfaceExists, name)
	}

	t.interfaces[name] = iface
	iface.SetPacketCallback(func(data []byte, from string) {
		t.Receive(name+"/"+from, data)
	})
	debug.Log(debug.DEBUG_VERBOSE, "Registered interface", "name", name, "type", iface.GetType(), "mtu", iface.GetMTU())
	return nil
}

func (t *Transport) GetInterface(name string) (common.NetworkInterface, error) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	iface, exists := t.interfaces[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrInterfaceNotFound, name)
	}
	return iface, nil
}

// Close stops every registered interface and drops pending reassembly
// state.
func (t *Transport) Close() error {
	t.mutex.Lock()
	if t.closed {
		t.mutex.Unlock()
		return nil
	}
	t.closed = true
	ifaces := t.interfaces
	t.interfaces = make(map[string]common.NetworkInterface)
	t.mutex.Unlock()

	var errs []error
	for name, iface := range ifaces {
		iface.SetPacketCallback(nil)
		if err := iface.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Sweep expires stale reassembly entries on every path. Reassemblers
// sweep on their own only when traffic arrives, so long-running callers
// should call Sweep periodically.
func (t *Transport) Sweep() {
	t.reassembly.Sweep()
}

// Incomplete returns the number of partially received packets.
func (t *Transport) Incomplete() int {
	return t.reassembly.Len()
}

// SendTo sends payload to dest through the path the router picks.
func (t *Transport) SendTo(dest packet.Address, payload []byte) error {
	t.mutex.RLock()
	router := t.router
	t.mutex.RUnlock()

	hop, ok := router.NextHop(dest)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoPath, dest)
	}
	return t.Send(hop.Interface, hop.Endpoint, dest, payload)
}

// Send armors payload for dest under a fresh random packet ID, splits it
// to the interface MTU and writes every unit to addr.
func (t *Transport) Send(ifaceName, addr string, dest packet.Address, payload []byte) error {
	iface, err := t.GetInterface(ifaceName)
	if err != nil {
		return err
	}
	pool, err := t.sessionPool(dest)
	if err != nil {
		return err
	}

	h := packet.Header{Dest: dest, Src: t.local}
	if _, err := rand.Read(h.ID[:]); err != nil {
		return fmt.Errorf("failed to generate packet id: %w", err)
	}

	mtu := iface.GetMTU()
	if mtu <= 0 {
		mtu = t.config.MTU
	}

	s := pool.Get()
	raw, err := packet.Armor(s, &h, payload, mtu)
	pool.Put(s)
	if err != nil {
		return err
	}

	units, err := packet.Split(raw, mtu)
	if err != nil {
		return err
	}
	for i, unit := range units {
		if err := iface.Send(unit, addr); err != nil {
			return fmt.Errorf("send unit %d/%d on %s: %w", i+1, len(units), ifaceName, err)
		}
	}

	t.metrics.Sent(len(units))
	debug.Log(debug.DEBUG_PACKETS, "Sent packet", "dest", dest, "id", fmt.Sprintf("%x", h.ID), "units", len(units), "size", len(raw))
	return nil
}

// Receive processes one datagram unit that arrived on path. unit is not
// retained.
func (t *Transport) Receive(path string, unit []byte) {
	dest, ok := packet.DestOf(unit)
	if !ok {
		t.metrics.Received(metrics.ResultMalformed)
		return
	}
	if dest != t.local {
		t.relay(path, dest, unit)
		return
	}

	raw, ok := t.reassembly.Assemble(path, unit)
	if !ok {
		return
	}
	if _, _, err := t.open(path, raw); err != nil {
		if t.warnLog.Allow() {
			debug.Log(debug.DEBUG_VERBOSE, "Dropping inbound packet", "path", path, "error", err)
		}
	}
}

// open authenticates and decrypts a whole packet and hands it to the
// delivery handler.
func (t *Transport) open(path string, raw []byte) (packet.Header, []byte, error) {
	var h packet.Header
	if err := h.Unpack(raw); err != nil {
		t.metrics.Received(metrics.ResultMalformed)
		return h, nil, err
	}

	pool, err := t.sessionPool(h.Src)
	if err != nil {
		t.metrics.Received(metrics.ResultDropped)
		return h, nil, err
	}

	s := pool.Get()
	h, payload, err := packet.Dearmor(s, raw)
	pool.Put(s)
	if err != nil {
		if errors.Is(err, cryptography.ErrAuthenticationFailed) {
			t.metrics.AuthFailed()
		} else {
			t.metrics.Received(metrics.ResultMalformed)
		}
		return h, nil, fmt.Errorf("packet %x from %s: %w", h.ID, h.Src, err)
	}

	t.mutex.RLock()
	handler := t.handler
	t.mutex.RUnlock()
	if handler != nil {
		handler(h, payload, path)
	}
	t.metrics.Delivered()
	return h, payload, nil
}

// relay forwards a unit addressed to another node. Fragments are relayed
// individually, without reassembly.
func (t *Transport) relay(path string, dest packet.Address, unit []byte) {
	if !t.config.Relay {
		t.metrics.Received(metrics.ResultDropped)
		return
	}

	t.mutex.RLock()
	router := t.router
	t.mutex.RUnlock()

	hop, ok := router.NextHop(dest)
	if !ok {
		t.metrics.Received(metrics.ResultDropped)
		return
	}
	iface, err := t.GetInterface(hop.Interface)
	if err != nil {
		t.metrics.Received(metrics.ResultDropped)
		return
	}

	if len(unit) > t.buffers.Size() {
		t.metrics.Received(metrics.ResultMalformed)
		return
	}
	buf := t.buffers.Get()
	defer t.buffers.Put(buf)
	out := buf[:copy(buf, unit)]
	if !packet.IncrementHopsInPlace(out) {
		t.metrics.Received(metrics.ResultDropped)
		debug.Log(debug.DEBUG_PACKETS, "Hop limit reached, not relaying", "path", path, "dest", dest)
		return
	}
	if err := iface.Send(out, hop.Endpoint); err != nil {
		t.metrics.Received(metrics.ResultDropped)
		if t.warnLog.Allow() {
			debug.Log(debug.DEBUG_ERROR, "Relay send failed", "interface", hop.Interface, "error", err)
		}
		return
	}
	t.metrics.Received(metrics.ResultRelayed)
	t.metrics.Relayed()
}

// sessionPool returns the session pool for peer, rebuilding it when the
// key store hands out different keys.
func (t *Transport) sessionPool(peer packet.Address) (*cryptography.SessionPool, error) {
	if t.keys == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoKeys, peer)
	}
	keys, ok := t.keys.KeyPair(peer)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoKeys, peer)
	}

	t.sessionLock.Lock()
	defer t.sessionLock.Unlock()
	if ps, ok := t.sessions[peer]; ok && ps.matches(keys) {
		return ps.pool, nil
	}
	pool, err := cryptography.NewSessionPool(keys)
	if err != nil {
		return nil, fmt.Errorf("peer %s: %w", peer, err)
	}
	t.sessions[peer] = &peerSessions{keys: keys, pool: pool}
	return pool, nil
}
