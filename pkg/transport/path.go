package transport

import (
	"sync"
	"time"

	"github.com/Sudo-Ivan/vl1-go/pkg/packet"
)

// PathInfo is where units for a destination leave this node.
type PathInfo struct {
	Interface   string
	Endpoint    string
	Hops        uint8
	LastUpdated time.Time
}

// Router picks the next hop for a destination. Route discovery is not part
// of VL1; a Router is fed by whatever layer learns paths.
type Router interface {
	NextHop(dest packet.Address) (PathInfo, bool)
}

// PathTable is a Router backed by explicitly installed paths.
type PathTable struct {
	mutex sync.RWMutex
	paths map[packet.Address]PathInfo
}

func NewPathTable() *PathTable {
	return &PathTable{paths: make(map[packet.Address]PathInfo)}
}

func (p *PathTable) UpdatePath(dest packet.Address, iface, endpoint string, hops uint8) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.paths[dest] = PathInfo{
		Interface:   iface,
		Endpoint:    endpoint,
		Hops:        hops,
		LastUpdated: time.Now(),
	}
}

func (p *PathTable) RemovePath(dest packet.Address) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	delete(p.paths, dest)
}

func (p *PathTable) HasPath(dest packet.Address) bool {
	_, ok := p.NextHop(dest)
	return ok
}

func (p *PathTable) NextHop(dest packet.Address) (PathInfo, bool) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	info, ok := p.paths[dest]
	return info, ok
}

func (p *PathTable) HopsTo(dest packet.Address) uint8 {
	info, ok := p.NextHop(dest)
	if !ok {
		return packet.MaxHops
	}
	return info.Hops
}
