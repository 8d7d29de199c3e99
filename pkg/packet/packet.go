package packet

import (
	"errors"
	"fmt"
)

var (
	ErrTooShort               = errors.New("packet too short")
	ErrPayloadTooLarge        = errors.New("payload exceeds maximum packet payload")
	ErrUnsupportedCipherSuite = errors.New("unsupported cipher suite")
	ErrNotFragment            = errors.New("fragment indicator missing")
	ErrUnexpectedFragment     = errors.New("unit is a fragment, not a packet")
	ErrInvalidFragmentCount   = errors.New("invalid fragment total or number")
)

// Header is the unencrypted outer header of a VL1 packet.
//
//	offset 0  len 8  packet ID (first half of the AEAD tag)
//	offset 8  len 5  destination address
//	offset 13 len 5  source address
//	offset 18 len 1  flags: hops (0-2), cipher suite (3-5), fragmented (6)
//	offset 19 len 8  MAC (second half of the AEAD tag)
type Header struct {
	ID    [IDSize]byte
	Dest  Address
	Src   Address
	Flags byte
	MAC   [MACSize]byte
}

// Pack writes the header into the first HeaderSize bytes of b.
func (h *Header) Pack(b []byte) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrTooShort, HeaderSize, len(b))
	}
	copy(b[idxID:], h.ID[:])
	copy(b[idxDest:], h.Dest[:])
	copy(b[idxSrc:], h.Src[:])
	b[idxFlags] = h.Flags
	copy(b[idxMAC:], h.MAC[:])
	return nil
}

// Unpack reads a header from the first HeaderSize bytes of b.
func (h *Header) Unpack(b []byte) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrTooShort, HeaderSize, len(b))
	}
	copy(h.ID[:], b[idxID:])
	copy(h.Dest[:], b[idxDest:])
	copy(h.Src[:], b[idxSrc:])
	h.Flags = b[idxFlags]
	copy(h.MAC[:], b[idxMAC:])
	return nil
}

// AAD returns the authenticated header bytes: destination, source and the
// flags byte with the hop count cleared. Relays change the hop count, so it
// cannot be authenticated.
func (h *Header) AAD() [2*AddressSize + 1]byte {
	var aad [2*AddressSize + 1]byte
	copy(aad[:AddressSize], h.Dest[:])
	copy(aad[AddressSize:], h.Src[:])
	aad[2*AddressSize] = h.Flags & flagAuthenticated
	return aad
}

// Tag returns the 16-byte AEAD tag stored across the ID and MAC fields.
func (h *Header) Tag() [IDSize + MACSize]byte {
	var tag [IDSize + MACSize]byte
	copy(tag[:IDSize], h.ID[:])
	copy(tag[IDSize:], h.MAC[:])
	return tag
}

func (h *Header) SetTag(tag [IDSize + MACSize]byte) {
	copy(h.ID[:], tag[:IDSize])
	copy(h.MAC[:], tag[IDSize:])
}

func (h *Header) Hops() uint8 {
	return h.Flags & FlagHopsMask
}

// IncrementHops adds one hop. It returns false, leaving the header
// untouched, if the counter is already at MaxHops.
func (h *Header) IncrementHops() bool {
	var ok bool
	h.Flags, ok = incrementHops(h.Flags)
	return ok
}

func (h *Header) CipherSuite() byte {
	return h.Flags & FlagCipherMask
}

func (h *Header) SetCipherSuite(suite byte) {
	h.Flags = h.Flags&^FlagCipherMask | suite&FlagCipherMask
}

func (h *Header) Fragmented() bool {
	return h.Flags&FlagFragmented != 0
}

func (h *Header) SetFragmented(fragmented bool) {
	if fragmented {
		h.Flags |= FlagFragmented
	} else {
		h.Flags &^= FlagFragmented
	}
}

func (h *Header) String() string {
	return fmt.Sprintf("packet id=%x %s->%s hops=%d cipher=%s fragmented=%v",
		h.ID, h.Src, h.Dest, h.Hops(), CipherSuiteName(h.CipherSuite()), h.Fragmented())
}

// incrementHops bumps the three low bits of b, saturating at MaxHops.
func incrementHops(b byte) (byte, bool) {
	if b&FlagHopsMask == MaxHops {
		return b, false
	}
	return b&^FlagHopsMask | (b&FlagHopsMask + 1), true
}

// IsFragment reports whether unit is a continuation fragment rather than a
// packet that starts with a full header.
func IsFragment(unit []byte) bool {
	return len(unit) >= FragmentHeaderSize && unit[idxIndicator] == FragmentIndicator
}

// IncrementHopsInPlace bumps the hop counter of a raw packet or fragment
// without decoding it. It returns false if the unit is too short or the
// counter is saturated.
func IncrementHopsInPlace(unit []byte) bool {
	var ok bool
	switch {
	case IsFragment(unit):
		unit[idxHops], ok = incrementHops(unit[idxHops])
	case len(unit) >= HeaderSize:
		unit[idxFlags], ok = incrementHops(unit[idxFlags])
	}
	return ok
}

// HasFragmentedFlag reports whether a raw packet announces continuation
// fragments. Fragments themselves never carry the flag.
func HasFragmentedFlag(unit []byte) bool {
	return len(unit) >= HeaderSize && !IsFragment(unit) && unit[idxFlags]&FlagFragmented != 0
}

// HopsOf returns the hop count of a raw packet or fragment.
func HopsOf(unit []byte) uint8 {
	switch {
	case IsFragment(unit):
		return unit[idxHops] & FragmentHopsMask
	case len(unit) >= HeaderSize:
		return unit[idxFlags] & FlagHopsMask
	}
	return 0
}

// DestOf returns the destination of a raw packet or fragment. Both carry
// it at the same offset.
func DestOf(unit []byte) (Address, bool) {
	var a Address
	if len(unit) < FragmentHeaderSize {
		return a, false
	}
	copy(a[:], unit[idxDest:])
	return a, true
}

// IDOf returns the packet ID shared by a packet and its fragments.
func IDOf(unit []byte) ([IDSize]byte, bool) {
	var id [IDSize]byte
	if len(unit) < FragmentHeaderSize {
		return id, false
	}
	copy(id[:], unit[idxID:])
	return id, true
}

func CipherSuiteName(suite byte) string {
	switch suite {
	case CipherPoly1305None:
		return "poly1305-none"
	case CipherSalsa2012Poly1305:
		return "salsa2012-poly1305"
	case CipherReserved:
		return "reserved"
	case CipherAESGMACSIV:
		return "aes-gmac-siv"
	}
	return fmt.Sprintf("unknown(0x%02x)", suite)
}

func VerbName(verb byte) string {
	switch verb & VerbMask {
	case VerbNOP:
		return "NOP"
	case VerbHello:
		return "HELLO"
	case VerbError:
		return "ERROR"
	case VerbOK:
		return "OK"
	case VerbWhois:
		return "WHOIS"
	case VerbRendezvous:
		return "RENDEZVOUS"
	case VerbFrame:
		return "FRAME"
	case VerbExtFrame:
		return "EXT_FRAME"
	case VerbEcho:
		return "ECHO"
	case VerbMulticastLike:
		return "MULTICAST_LIKE"
	case VerbNetworkCredentials:
		return "NETWORK_CREDENTIALS"
	case VerbNetworkConfigRequest:
		return "NETWORK_CONFIG_REQUEST"
	case VerbNetworkConfig:
		return "NETWORK_CONFIG"
	case VerbMulticastGather:
		return "MULTICAST_GATHER"
	case VerbPushDirectPaths:
		return "PUSH_DIRECT_PATHS"
	case VerbUserMessage:
		return "USER_MESSAGE"
	case VerbMulticast:
		return "MULTICAST"
	case VerbEncap:
		return "ENCAP"
	}
	return fmt.Sprintf("VERB_%02x", verb&VerbMask)
}
