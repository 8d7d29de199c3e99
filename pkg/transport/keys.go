package transport

import (
	"bytes"
	"sync"

	"github.com/Sudo-Ivan/vl1-go/pkg/cryptography"
	"github.com/Sudo-Ivan/vl1-go/pkg/packet"
)

// KeyStore returns the key pair shared with a peer.
type KeyStore interface {
	KeyPair(peer packet.Address) (cryptography.KeyPair, bool)
}

// StaticKeyStore is an in-memory KeyStore.
type StaticKeyStore struct {
	mutex sync.RWMutex
	keys  map[packet.Address]cryptography.KeyPair
}

func NewStaticKeyStore() *StaticKeyStore {
	return &StaticKeyStore{keys: make(map[packet.Address]cryptography.KeyPair)}
}

func (k *StaticKeyStore) Add(peer packet.Address, keys cryptography.KeyPair) error {
	if err := keys.Validate(); err != nil {
		return err
	}
	k.mutex.Lock()
	defer k.mutex.Unlock()
	k.keys[peer] = keys
	return nil
}

func (k *StaticKeyStore) Remove(peer packet.Address) {
	k.mutex.Lock()
	defer k.mutex.Unlock()
	delete(k.keys, peer)
}

func (k *StaticKeyStore) KeyPair(peer packet.Address) (cryptography.KeyPair, bool) {
	k.mutex.RLock()
	defer k.mutex.RUnlock()
	keys, ok := k.keys[peer]
	return keys, ok
}

type peerSessions struct {
	keys cryptography.KeyPair
	pool *cryptography.SessionPool
}

func (p *peerSessions) matches(keys cryptography.KeyPair) bool {
	return bytes.Equal(p.keys.K0, keys.K0) && bytes.Equal(p.keys.K1, keys.K1)
}
