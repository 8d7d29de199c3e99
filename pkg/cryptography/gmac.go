package cryptography

import (
	"crypto/cipher"
	"encoding/binary"
)

// gmac is GCM with an empty plaintext: everything it is given is
// authenticated as associated data. The tag is GHASH XOR E_K(nonce ‖ 1).
type gmac struct {
	block cipher.Block
	hash  ghash
	j0    [BlockSize]byte
}

func newGMAC(block cipher.Block) *gmac {
	g := &gmac{block: block}
	var h [BlockSize]byte
	block.Encrypt(h[:], zeroBlock[:])
	g.hash.setKey(&h)
	return g
}

// init starts a new accumulation under a 12-byte nonce.
func (g *gmac) init(nonce *[gmacNonceSize]byte) {
	copy(g.j0[:gmacNonceSize], nonce[:])
	binary.BigEndian.PutUint32(g.j0[gmacNonceSize:], 1)
	g.hash.reset()
}

// aad absorbs associated data and pads it to a block boundary so the AAD
// and the message that follows it have a unique encoding.
func (g *gmac) aad(data []byte) {
	g.hash.write(data)
	g.hash.pad()
}

func (g *gmac) update(data []byte) {
	g.hash.write(data)
}

func (g *gmac) finish(tag *[BlockSize]byte) {
	var s, mask [BlockSize]byte
	g.hash.sum(&s)
	g.block.Encrypt(mask[:], g.j0[:])
	for i := range tag {
		tag[i] = s[i] ^ mask[i]
	}
}
