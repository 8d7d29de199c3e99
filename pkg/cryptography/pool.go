package cryptography

import "sync"

// SessionPool hands out AesGmacSiv sessions bound to one key pair, so key
// expansion happens once per session instead of once per packet.
type SessionPool struct {
	keys KeyPair
	pool sync.Pool
}

func NewSessionPool(keys KeyPair) (*SessionPool, error) {
	if err := keys.Validate(); err != nil {
		return nil, err
	}
	first, err := NewAesGmacSiv(keys.K0, keys.K1)
	if err != nil {
		return nil, err
	}

	p := &SessionPool{keys: keys}
	p.pool.New = func() any {
		// Keys were validated above.
		s, _ := NewAesGmacSiv(p.keys.K0, p.keys.K1)
		return s
	}
	p.pool.Put(first)
	return p, nil
}

// Get returns an idle session.
func (p *SessionPool) Get() *AesGmacSiv {
	return p.pool.Get().(*AesGmacSiv)
}

// Put resets s and makes it available again. s must not be used afterwards.
func (p *SessionPool) Put(s *AesGmacSiv) {
	if s == nil {
		return
	}
	s.Reset()
	p.pool.Put(s)
}
