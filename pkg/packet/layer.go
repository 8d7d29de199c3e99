package packet

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var (
	LayerTypeVL1 = gopacket.RegisterLayerType(2000, gopacket.LayerTypeMetadata{
		Name:    "VL1",
		Decoder: gopacket.DecodeFunc(decodeVL1),
	})
	LayerTypeVL1Fragment = gopacket.RegisterLayerType(2001, gopacket.LayerTypeMetadata{
		Name:    "VL1Fragment",
		Decoder: gopacket.DecodeFunc(decodeVL1Fragment),
	})
)

// VL1 is the outer header of a packet as a gopacket layer. The payload is
// the still-encrypted body.
type VL1 struct {
	layers.BaseLayer
	Header
}

func (v *VL1) LayerType() gopacket.LayerType { return LayerTypeVL1 }

func (v *VL1) CanDecode() gopacket.LayerClass { return LayerTypeVL1 }

func (v *VL1) NextLayerType() gopacket.LayerType { return gopacket.LayerTypePayload }

// DecodeFromBytes decodes the header. Contents and Payload reference data.
func (v *VL1) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < HeaderSize {
		df.SetTruncated()
		return ErrTooShort
	}
	if IsFragment(data) {
		return ErrUnexpectedFragment
	}
	if err := v.Header.Unpack(data); err != nil {
		return err
	}
	v.BaseLayer = layers.BaseLayer{Contents: data[:HeaderSize], Payload: data[HeaderSize:]}
	return nil
}

func (v *VL1) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	buf, err := b.PrependBytes(HeaderSize)
	if err != nil {
		return err
	}
	return v.Header.Pack(buf)
}

// VL1Fragment is a continuation fragment as a gopacket layer.
type VL1Fragment struct {
	layers.BaseLayer
	FragmentHeader
}

func (f *VL1Fragment) LayerType() gopacket.LayerType { return LayerTypeVL1Fragment }

func (f *VL1Fragment) CanDecode() gopacket.LayerClass { return LayerTypeVL1Fragment }

func (f *VL1Fragment) NextLayerType() gopacket.LayerType { return gopacket.LayerTypePayload }

func (f *VL1Fragment) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < FragmentHeaderSize {
		df.SetTruncated()
		return ErrTooShort
	}
	if err := f.FragmentHeader.Unpack(data); err != nil {
		return err
	}
	f.BaseLayer = layers.BaseLayer{Contents: data[:FragmentHeaderSize], Payload: data[FragmentHeaderSize:]}
	return nil
}

func (f *VL1Fragment) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	buf, err := b.PrependBytes(FragmentHeaderSize)
	if err != nil {
		return err
	}
	return f.FragmentHeader.Pack(buf)
}

// decodeVL1 dispatches on the fragment indicator, so either kind of unit
// can be handed to gopacket.NewPacket with LayerTypeVL1.
func decodeVL1(data []byte, p gopacket.PacketBuilder) error {
	if IsFragment(data) {
		return decodeVL1Fragment(data, p)
	}
	v := &VL1{}
	if err := v.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(v)
	return p.NextDecoder(v.NextLayerType())
}

func decodeVL1Fragment(data []byte, p gopacket.PacketBuilder) error {
	f := &VL1Fragment{}
	if err := f.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(f)
	return p.NextDecoder(f.NextLayerType())
}
