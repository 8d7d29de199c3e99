package common

import (
	"sync"
	"sync/atomic"
)

// PacketCallback receives one datagram and the underlay address it came
// from. data is only valid for the duration of the call.
type PacketCallback func(data []byte, from string)

// NetworkInterface is a datagram carrier the transport sends through.
type NetworkInterface interface {
	Start() error
	Stop() error
	// Send transmits one datagram. data must not be retained after Send
	// returns.
	Send(data []byte, address string) error
	GetName() string
	GetType() string
	GetMTU() int
	IsOnline() bool
	SetPacketCallback(PacketCallback)
}

// BaseInterface provides the bookkeeping shared by carriers.
type BaseInterface struct {
	Name string
	Type string
	MTU  int

	Mutex          sync.RWMutex
	Online         bool
	PacketCallback PacketCallback

	TxBytes atomic.Uint64
	RxBytes atomic.Uint64
}

func (i *BaseInterface) GetName() string {
	return i.Name
}

func (i *BaseInterface) GetType() string {
	return i.Type
}

func (i *BaseInterface) GetMTU() int {
	return i.MTU
}

func (i *BaseInterface) IsOnline() bool {
	i.Mutex.RLock()
	defer i.Mutex.RUnlock()
	return i.Online
}

func (i *BaseInterface) SetOnline(online bool) {
	i.Mutex.Lock()
	defer i.Mutex.Unlock()
	i.Online = online
}

func (i *BaseInterface) SetPacketCallback(callback PacketCallback) {
	i.Mutex.Lock()
	defer i.Mutex.Unlock()
	i.PacketCallback = callback
}

func (i *BaseInterface) GetPacketCallback() PacketCallback {
	i.Mutex.RLock()
	defer i.Mutex.RUnlock()
	return i.PacketCallback
}

// ProcessIncoming counts data and hands it to the packet callback.
func (i *BaseInterface) ProcessIncoming(data []byte, from string) {
	i.RxBytes.Add(uint64(len(data)))
	if callback := i.GetPacketCallback(); callback != nil {
		callback(data, from)
	}
}
