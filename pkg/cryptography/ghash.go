package cryptography

import (
	"encoding/binary"

	"github.com/ericlagergren/polyval"
)

// ghashBatch bounds the scratch space used to byte-swap blocks before they
// are handed to POLYVAL.
const ghashBatch = 16 * BlockSize

// ghash is a streaming GHASH. It is computed through POLYVAL using the
// identity from RFC 8452 Appendix A:
//
//	GHASH(H, X1..Xn) = ByteReverse(POLYVAL(mulX_POLYVAL(ByteReverse(H)), ByteReverse(X1)..ByteReverse(Xn)))
type ghash struct {
	pv      *polyval.Polyval
	partial [BlockSize]byte
	n       int    // bytes buffered in partial
	total   uint64 // bytes absorbed, including explicit padding
	scratch [ghashBatch]byte
}

// setKey derives the POLYVAL key from the GHASH key h.
func (g *ghash) setKey(h *[BlockSize]byte) {
	var key [BlockSize]byte
	for i := 0; i < BlockSize; i++ {
		key[i] = h[BlockSize-1-i]
	}
	mulXPolyval(&key)

	pv, err := polyval.New(key[:])
	if err != nil {
		panic("aesgmacsiv: " + err.Error())
	}
	g.pv = pv
}

func (g *ghash) reset() {
	g.pv.Reset()
	g.n = 0
	g.total = 0
}

// write absorbs p. Partial blocks are held back until more data arrives
// or the hash is finished.
func (g *ghash) write(p []byte) {
	g.total += uint64(len(p))

	if g.n > 0 {
		c := copy(g.partial[g.n:], p)
		g.n += c
		p = p[c:]
		if g.n < BlockSize {
			return
		}
		g.absorb(g.partial[:])
		g.n = 0
	}

	full := len(p) &^ (BlockSize - 1)
	if full > 0 {
		g.absorb(p[:full])
		p = p[full:]
	}

	if len(p) > 0 {
		g.n = copy(g.partial[:], p)
	}
}

// pad feeds zero bytes up to the next block boundary. The padding counts
// toward the absorbed length.
func (g *ghash) pad() {
	if g.n == 0 {
		return
	}
	g.write(zeroBlock[:BlockSize-g.n])
}

// sum finishes the hash with the GCM length block (absorbed bits, 0) and
// writes GHASH into out.
func (g *ghash) sum(out *[BlockSize]byte) {
	if g.n > 0 {
		clear(g.partial[g.n:])
		g.absorb(g.partial[:])
		g.n = 0
	}

	var lengths [BlockSize]byte
	binary.BigEndian.PutUint64(lengths[:8], g.total*8)
	g.absorb(lengths[:])

	var s [BlockSize]byte
	g.pv.Sum(s[:0])
	for i := 0; i < BlockSize; i++ {
		out[i] = s[BlockSize-1-i]
	}
}

// absorb hands whole blocks to POLYVAL, byte-reversing each one.
func (g *ghash) absorb(blocks []byte) {
	for len(blocks) > 0 {
		n := min(len(blocks), ghashBatch)
		for off := 0; off < n; off += BlockSize {
			src := blocks[off : off+BlockSize]
			dst := g.scratch[off : off+BlockSize]
			for i := 0; i < BlockSize; i++ {
				dst[i] = src[BlockSize-1-i]
			}
		}
		g.pv.Update(g.scratch[:n])
		blocks = blocks[n:]
	}
}

// mulXPolyval multiplies a little-endian POLYVAL field element by x,
// reducing by x^128 + x^127 + x^126 + x^121 + 1.
func mulXPolyval(b *[BlockSize]byte) {
	lo := binary.LittleEndian.Uint64(b[:8])
	hi := binary.LittleEndian.Uint64(b[8:])
	carry := hi >> 63
	hi = hi<<1 | lo>>63
	lo <<= 1
	if carry == 1 {
		hi ^= 0xc200000000000000
		lo ^= 1
	}
	binary.LittleEndian.PutUint64(b[:8], lo)
	binary.LittleEndian.PutUint64(b[8:], hi)
}
