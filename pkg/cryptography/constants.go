package cryptography

const (
	// BlockSize is the AES block size, also the size of the GHASH state.
	BlockSize = 16

	// TagSize is the size of an AES-GMAC-SIV tag. On the wire it is split
	// across the packet ID and MAC header fields.
	TagSize = 16

	// IVSize is the number of IV bytes carried inside the tag.
	IVSize = 8

	// gmacNonceSize is the GCM-style nonce used by the GMAC pass: IV plus
	// four zero bytes.
	gmacNonceSize = 12
)

var zeroBlock [BlockSize]byte
