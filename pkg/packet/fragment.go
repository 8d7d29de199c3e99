package packet

import (
	"errors"
	"fmt"
)

var (
	ErrMTUTooSmall      = errors.New("mtu too small")
	ErrTooManyFragments = errors.New("packet needs more than the maximum number of fragments")
)

// FragmentHeader precedes every continuation fragment.
//
//	offset 0  len 8  packet ID
//	offset 8  len 5  destination address
//	offset 13 len 1  0xFF indicator
//	offset 14 len 1  total<<4 | fragment number
//	offset 15 len 1  hops (0-2)
//
// Total counts the head packet, which is fragment zero. Continuations are
// numbered from one.
type FragmentHeader struct {
	ID    [IDSize]byte
	Dest  Address
	Total uint8
	No    uint8
	Hops  uint8
}

func (f *FragmentHeader) Pack(b []byte) error {
	if len(b) < FragmentHeaderSize {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrTooShort, FragmentHeaderSize, len(b))
	}
	if !validFragment(f.Total, f.No) {
		return fmt.Errorf("%w: %d of %d", ErrInvalidFragmentCount, f.No, f.Total)
	}
	copy(b[idxID:], f.ID[:])
	copy(b[idxDest:], f.Dest[:])
	b[idxIndicator] = FragmentIndicator
	b[idxTotalAndNo] = f.Total<<fragmentTotalShift | f.No
	b[idxHops] = f.Hops & FragmentHopsMask
	return nil
}

// Unpack decodes b. It checks the indicator and the total/number range but
// leaves the reassembly rules (no zero on a continuation) to the caller.
func (f *FragmentHeader) Unpack(b []byte) error {
	if len(b) < FragmentHeaderSize {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrTooShort, FragmentHeaderSize, len(b))
	}
	if b[idxIndicator] != FragmentIndicator {
		return ErrNotFragment
	}
	total := b[idxTotalAndNo] >> fragmentTotalShift
	no := b[idxTotalAndNo] & fragmentNoMask
	if !validFragment(total, no) {
		return fmt.Errorf("%w: %d of %d", ErrInvalidFragmentCount, no, total)
	}
	copy(f.ID[:], b[idxID:])
	copy(f.Dest[:], b[idxDest:])
	f.Total = total
	f.No = no
	f.Hops = b[idxHops] & FragmentHopsMask
	return nil
}

func (f *FragmentHeader) IncrementHops() bool {
	next, ok := incrementHops(f.Hops)
	f.Hops = next & FragmentHopsMask
	return ok
}

func (f *FragmentHeader) String() string {
	return fmt.Sprintf("fragment id=%x ->%s %d/%d hops=%d", f.ID, f.Dest, f.No, f.Total, f.Hops)
}

func validFragment(total, no uint8) bool {
	return total >= 1 && total <= FragmentCountMax && no < total
}

// Split cuts an armored packet into units no larger than mtu: the head,
// which keeps the full header, and up to seven continuation fragments. A
// packet that fits is returned unchanged as the only unit. The packet's
// fragmented flag must already agree with its size, since the flag is
// covered by the tag.
func Split(raw []byte, mtu int) ([][]byte, error) {
	if mtu < MinMTU {
		return nil, fmt.Errorf("%w: %d < %d", ErrMTUTooSmall, mtu, MinMTU)
	}
	if len(raw) < HeaderSize {
		return nil, ErrTooShort
	}
	if IsFragment(raw) {
		return nil, ErrUnexpectedFragment
	}

	fragmented := raw[idxFlags]&FlagFragmented != 0
	if len(raw) <= mtu {
		if fragmented {
			return nil, errors.New("fragmented flag set on a packet that fits the mtu")
		}
		return [][]byte{raw}, nil
	}
	if !fragmented {
		return nil, errors.New("packet exceeds mtu but fragmented flag is clear")
	}

	chunk := mtu - FragmentHeaderSize
	rest := len(raw) - mtu
	total := 1 + (rest+chunk-1)/chunk
	if total > FragmentCountMax {
		return nil, fmt.Errorf("%w: %d bytes at mtu %d needs %d", ErrTooManyFragments, len(raw), mtu, total)
	}

	units := make([][]byte, 0, total)
	units = append(units, raw[:mtu])

	fh := FragmentHeader{Total: uint8(total), Hops: raw[idxFlags] & FlagHopsMask}
	copy(fh.ID[:], raw[idxID:])
	copy(fh.Dest[:], raw[idxDest:])

	payload := raw[mtu:]
	for no := 1; no < total; no++ {
		n := min(chunk, len(payload))
		unit := make([]byte, FragmentHeaderSize+n)
		fh.No = uint8(no)
		if err := fh.Pack(unit); err != nil {
			return nil, err
		}
		copy(unit[FragmentHeaderSize:], payload[:n])
		payload = payload[n:]
		units = append(units, unit)
	}
	return units, nil
}
