// Package buffer implements freelists of fixed-size byte slices used for
// datagram reads. Slices can only go back to the list they came from if
// their capacity is unchanged.
package buffer

import "github.com/Sudo-Ivan/vl1-go/pkg/packet"

// Packets holds buffers large enough for any single VL1 unit.
var Packets = New(packet.MaxPacketSize)

const defaultDepth = 1024

type List struct {
	size int
	ch   chan []byte
}

func New(size int) *List {
	return NewWithDepth(size, defaultDepth)
}

// NewWithDepth returns a freelist that retains at most depth idle buffers.
func NewWithDepth(size, depth int) *List {
	return &List{size, make(chan []byte, depth)}
}

// Size is the length of every buffer handed out.
func (b *List) Size() int {
	return b.size
}

// Get returns a zeroed buffer, reusing a released one if available.
func (b *List) Get() []byte {
	select {
	case buf := <-b.ch:
		return buf
	default:
	}
	return make([]byte, b.size)
}

// Put releases buf. Buffers of the wrong capacity and buffers beyond the
// list depth are left to the garbage collector.
func (b *List) Put(buf []byte) {
	if cap(buf) != b.size {
		return
	}
	buf = buf[:cap(buf)]
	for i := range buf {
		buf[i] = 0
	}
	select {
	case b.ch <- buf:
	default:
	}
}

// Idle reports how many released buffers are waiting for reuse.
func (b *List) Idle() int {
	return len(b.ch)
}
