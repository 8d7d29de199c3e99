// Package reassembly rebuilds fragmented VL1 packets. There is one
// Reassembler per physical path; each keeps at most MaxIncomplete partial
// packets and forgets them after Expiration.
package reassembly

import (
	"fmt"
	"sync"
	"time"

	"github.com/Sudo-Ivan/vl1-go/pkg/debug"
	"github.com/Sudo-Ivan/vl1-go/pkg/metrics"
	"github.com/Sudo-Ivan/vl1-go/pkg/packet"
	"github.com/Sudo-Ivan/vl1-go/pkg/rate"
)

type Config struct {
	// Path labels log lines.
	Path          string
	Expiration    time.Duration
	MaxIncomplete int
	// CompletedCapacity sizes the filter that drops stragglers of packets
	// already assembled. Zero means the default. A negative value disables
	// the filter, and a full second copy of a fragmented packet then
	// reassembles and is returned again.
	CompletedCapacity int
	CompletedFPR      float64
	// DropLogRate limits malformed-unit log lines per second.
	DropLogRate float64
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

func DefaultConfig() Config {
	return Config{
		Expiration:        packet.FragmentExpiration,
		MaxIncomplete:     packet.MaxIncompletePerPath,
		CompletedCapacity: 4096,
		CompletedFPR:      1e-6,
		DropLogRate:       10,
	}
}

func (c *Config) setDefaults() {
	d := DefaultConfig()
	if c.Expiration <= 0 {
		c.Expiration = d.Expiration
	}
	if c.MaxIncomplete <= 0 {
		c.MaxIncomplete = d.MaxIncomplete
	}
	if c.CompletedCapacity == 0 {
		c.CompletedCapacity = d.CompletedCapacity
	}
	if c.CompletedFPR <= 0 || c.CompletedFPR >= 1 {
		c.CompletedFPR = d.CompletedFPR
	}
	if c.DropLogRate <= 0 {
		c.DropLogRate = d.DropLogRate
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

const completedSlots = 4

type entry struct {
	created time.Time
	// total is zero until a continuation fragment declares it.
	total uint8
	have  uint8
	count int
	size  int
	slots [packet.FragmentCountMax][]byte
}

type Reassembler struct {
	mu        sync.Mutex
	cfg       Config
	metrics   *metrics.Metrics
	entries   map[[packet.IDSize]byte]*entry
	completed *completedRing
	lastSweep time.Time
	dropLog   *rate.Limiter
}

func New(cfg Config, m *metrics.Metrics) *Reassembler {
	cfg.setDefaults()
	r := &Reassembler{
		cfg:       cfg,
		metrics:   m,
		entries:   make(map[[packet.IDSize]byte]*entry),
		lastSweep: cfg.Now(),
		dropLog:   rate.NewLimiter(cfg.DropLogRate, time.Second),
	}
	if cfg.CompletedCapacity > 0 {
		r.completed = newCompletedRing(completedSlots, cfg.CompletedCapacity, cfg.CompletedFPR)
	}
	return r
}

// Assemble takes one received unit. It returns a whole packet when the
// unit is an unfragmented packet (returned as-is) or completes a fragmented
// one (a new buffer: head bytes then fragment payloads in order). Otherwise
// it returns false. Units are copied; the caller may reuse unit.
func (r *Reassembler) Assemble(unit []byte) ([]byte, bool) {
	if packet.IsFragment(unit) {
		var fh packet.FragmentHeader
		if err := fh.Unpack(unit); err != nil {
			r.drop("bad fragment header", "error", err)
			return nil, false
		}
		if fh.No == 0 {
			r.drop("continuation numbered zero")
			return nil, false
		}
		return r.add(fh.ID, fh.No, fh.Total, unit[packet.FragmentHeaderSize:])
	}

	if len(unit) < packet.HeaderSize {
		r.drop("short unit", "len", len(unit))
		return nil, false
	}
	if !packet.HasFragmentedFlag(unit) {
		r.metrics.Received(metrics.ResultPacket)
		return unit, true
	}
	id, _ := packet.IDOf(unit)
	return r.add(id, 0, 0, unit)
}

func (r *Reassembler) add(id [packet.IDSize]byte, slot, total uint8, data []byte) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.cfg.Now()
	if now.Sub(r.lastSweep) >= r.cfg.Expiration/4 {
		r.sweepLocked(now)
	}

	if r.completed != nil && r.completed.Test(id[:]) {
		r.metrics.Received(metrics.ResultLate)
		return nil, false
	}

	e := r.entries[id]
	if e != nil && now.Sub(e.created) > r.cfg.Expiration {
		delete(r.entries, id)
		r.metrics.Evicted(metrics.ReasonExpired, 1)
		e = nil
	}

	if e != nil {
		if total != 0 && e.total != 0 && total != e.total {
			r.drop("fragment total disagrees", "total", total, "expected", e.total)
			return nil, false
		}
		if e.have&(1<<slot) != 0 {
			r.metrics.Received(metrics.ResultDuplicate)
			return nil, false
		}
		if e.size+len(data) > packet.MaxPacketSize {
			r.drop("reassembled packet too large", "size", e.size+len(data))
			return nil, false
		}
	} else {
		if len(data) > packet.MaxPacketSize {
			r.drop("unit too large", "len", len(data))
			return nil, false
		}
		if len(r.entries) >= r.cfg.MaxIncomplete {
			r.sweepLocked(now)
			if len(r.entries) >= r.cfg.MaxIncomplete {
				r.evictOldestLocked()
			}
		}
		e = &entry{created: now}
		r.entries[id] = e
		r.metrics.EntryAdded()
	}

	e.slots[slot] = append([]byte(nil), data...)
	e.have |= 1 << slot
	e.count++
	e.size += len(data)
	if total != 0 {
		e.total = total
	}

	if slot == 0 {
		r.metrics.Received(metrics.ResultHead)
	} else {
		r.metrics.Received(metrics.ResultFragment)
	}

	if e.total == 0 || e.count != int(e.total) {
		return nil, false
	}

	out := make([]byte, 0, e.size)
	for i := 0; i < int(e.total); i++ {
		out = append(out, e.slots[i]...)
	}
	delete(r.entries, id)
	if r.completed != nil {
		r.completed.Add(id[:])
	}
	r.metrics.Assembled()
	return out, true
}

// Sweep drops every entry older than the expiration window.
func (r *Reassembler) Sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked(r.cfg.Now())
}

func (r *Reassembler) sweepLocked(now time.Time) {
	r.lastSweep = now
	expired := 0
	for id, e := range r.entries {
		if now.Sub(e.created) > r.cfg.Expiration {
			delete(r.entries, id)
			expired++
		}
	}
	if expired > 0 {
		r.metrics.Evicted(metrics.ReasonExpired, expired)
		debug.Log(debug.DEBUG_TRACE, "Expired incomplete packets", "path", r.cfg.Path, "count", expired)
	}
}

func (r *Reassembler) evictOldestLocked() {
	var oldestID [packet.IDSize]byte
	var oldest *entry
	for id, e := range r.entries {
		if oldest == nil || e.created.Before(oldest.created) {
			oldestID, oldest = id, e
		}
	}
	if oldest == nil {
		return
	}
	delete(r.entries, oldestID)
	r.metrics.Evicted(metrics.ReasonCapacity, 1)
	debug.Log(debug.DEBUG_PACKETS, "Evicted oldest incomplete packet", "path", r.cfg.Path, "id", fmt.Sprintf("%x", oldestID))
}

// Len returns the number of incomplete packets held.
func (r *Reassembler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Clear drops all incomplete packets.
func (r *Reassembler) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.entries {
		delete(r.entries, id)
		r.metrics.EntryDropped()
	}
}

func (r *Reassembler) drop(reason string, kv ...interface{}) {
	r.metrics.Received(metrics.ResultMalformed)
	if r.dropLog.Allow() {
		args := append([]interface{}{"path", r.cfg.Path, "reason", reason}, kv...)
		debug.Log(debug.DEBUG_PACKETS, "Dropping malformed unit", args...)
	}
}
