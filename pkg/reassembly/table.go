package reassembly

import (
	"sync"

	"github.com/Sudo-Ivan/vl1-go/pkg/metrics"
)

// Table maps physical paths to their reassemblers. Reassemblers are
// created on first use; paths never share state.
type Table struct {
	mu      sync.RWMutex
	cfg     Config
	metrics *metrics.Metrics
	paths   map[string]*Reassembler
}

func NewTable(cfg Config, m *metrics.Metrics) *Table {
	return &Table{
		cfg:     cfg,
		metrics: m,
		paths:   make(map[string]*Reassembler),
	}
}

// Get returns the reassembler for path, creating it if needed.
func (t *Table) Get(path string) *Reassembler {
	t.mu.RLock()
	r, ok := t.paths[path]
	t.mu.RUnlock()
	if ok {
		return r
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.paths[path]; ok {
		return r
	}
	cfg := t.cfg
	cfg.Path = path
	r = New(cfg, t.metrics)
	t.paths[path] = r
	return r
}

func (t *Table) Assemble(path string, unit []byte) ([]byte, bool) {
	return t.Get(path).Assemble(unit)
}

// Remove forgets a path and everything pending on it.
func (t *Table) Remove(path string) {
	t.mu.Lock()
	r, ok := t.paths[path]
	delete(t.paths, path)
	t.mu.Unlock()
	if ok {
		r.Clear()
	}
}

func (t *Table) Sweep() {
	for _, r := range t.snapshot() {
		r.Sweep()
	}
}

// Len returns the number of incomplete packets across all paths.
func (t *Table) Len() int {
	n := 0
	for _, r := range t.snapshot() {
		n += r.Len()
	}
	return n
}

func (t *Table) Paths() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.paths)
}

func (t *Table) snapshot() []*Reassembler {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rs := make([]*Reassembler, 0, len(t.paths))
	for _, r := range t.paths {
		rs = append(rs, r)
	}
	return rs
}
