package reassembly

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/minio/blake2b-simd"
	"github.com/riobard/go-bloom"
)

// completedRing remembers recently completed packet IDs in a ring of bloom
// filters. When the current slot fills up the oldest slot is cleared and
// reused, so old IDs age out in bulk.
//
// Packet IDs are chosen by remote peers, so the filter hash is keyed with
// a random per-ring secret to keep them from aiming at chosen bits.
type completedRing struct {
	slotCapacity int
	slotPosition int
	entryCounter int
	slots        []bloom.Filter
	key          [32]byte
}

func newCompletedRing(slots, capacity int, falsePositiveRate float64) *completedRing {
	if slots < 1 {
		slots = 1
	}
	r := &completedRing{
		slotCapacity: max(capacity/slots, 1),
		slots:        make([]bloom.Filter, slots),
	}
	if _, err := rand.Read(r.key[:]); err != nil {
		panic("reassembly: failed to seed completed filter: " + err.Error())
	}
	for i := range r.slots {
		r.slots[i] = bloom.New(r.slotCapacity, falsePositiveRate, r.doubleHash)
	}
	return r
}

// doubleHash splits a 128-bit keyed BLAKE2b MAC into the two hashes the
// bloom filter derives its bit positions from.
func (r *completedRing) doubleHash(b []byte) (uint64, uint64) {
	h := blake2b.NewMAC(16, r.key[:])
	h.Write(b)
	var sum [16]byte
	h.Sum(sum[:0])
	return binary.LittleEndian.Uint64(sum[:8]), binary.LittleEndian.Uint64(sum[8:])
}

func (r *completedRing) Add(b []byte) {
	slot := r.slots[r.slotPosition]
	if r.entryCounter >= r.slotCapacity {
		r.slotPosition = (r.slotPosition + 1) % len(r.slots)
		slot = r.slots[r.slotPosition]
		slot.Reset()
		r.entryCounter = 0
	}
	r.entryCounter++
	slot.Add(b)
}

func (r *completedRing) Test(b []byte) bool {
	for _, s := range r.slots {
		if s.Test(b) {
			return true
		}
	}
	return false
}
