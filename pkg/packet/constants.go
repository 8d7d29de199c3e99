package packet

import "time"

const (
	// Header sizes
	HeaderSize         = 27
	FragmentHeaderSize = 16
	AddressSize        = 5
	IDSize             = 8
	MACSize            = 8

	// MaxPayload is the largest payload one logical packet may carry.
	MaxPayload    = 10005
	MaxPacketSize = HeaderSize + MaxPayload

	// FragmentCountMax counts the head packet as one fragment.
	FragmentCountMax = 8

	// FragmentIndicator sits at offset 13 of a fragment, where a full
	// header has the first byte of its source address.
	FragmentIndicator = 0xFF

	FragmentExpiration   = 1500 * time.Millisecond
	MaxIncompletePerPath = 256

	// DefaultMTU is the usual UDP payload size on the underlay.
	DefaultMTU = 1432
	// MinMTU is the smallest carrier MTU Split accepts.
	MinMTU = 128
)

// Header field offsets
const (
	idxID         = 0
	idxDest       = 8
	idxSrc        = 13
	idxFlags      = 18
	idxMAC        = 19
	idxIndicator  = 13
	idxTotalAndNo = 14
	idxHops       = 15
)

// Flags byte layout
const (
	FlagHopsMask       = 0x07
	FlagCipherMask     = 0x38
	FlagFragmented     = 0x40
	FlagReserved       = 0x80
	flagAuthenticated  = 0xF8
	FragmentHopsMask   = 0x07
	fragmentNoMask     = 0x0F
	fragmentTotalShift = 4
	MaxHops            = 7
)

// Cipher suites as they appear in the flags byte.
const (
	CipherPoly1305None      = 0x00
	CipherSalsa2012Poly1305 = 0x08
	CipherReserved          = 0x10
	CipherAESGMACSIV        = 0x18
)

// Verbs, carried in the low five bits of the first payload byte.
const (
	VerbNOP                  = 0x00
	VerbHello                = 0x01
	VerbError                = 0x02
	VerbOK                   = 0x03
	VerbWhois                = 0x04
	VerbRendezvous           = 0x05
	VerbFrame                = 0x06
	VerbExtFrame             = 0x07
	VerbEcho                 = 0x08
	VerbMulticastLike        = 0x09
	VerbNetworkCredentials   = 0x0A
	VerbNetworkConfigRequest = 0x0B
	VerbNetworkConfig        = 0x0C
	VerbMulticastGather      = 0x0D
	VerbPushDirectPaths      = 0x10
	VerbUserMessage          = 0x14
	VerbMulticast            = 0x16
	VerbEncap                = 0x17

	VerbMask = 0x1F
)
