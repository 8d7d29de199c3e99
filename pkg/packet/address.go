package packet

import (
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrInvalidAddress  = errors.New("invalid address")
	ErrReservedAddress = errors.New("reserved address")
)

// Address is a 40-bit VL1 node address.
type Address [AddressSize]byte

// ParseAddress parses the 10 hex digit form.
func ParseAddress(s string) (Address, error) {
	var a Address
	if len(s) != 2*AddressSize {
		return a, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	if _, err := hex.Decode(a[:], []byte(s)); err != nil {
		return a, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}
	return a, nil
}

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// IsReserved reports whether a begins with the fragment indicator byte.
// Such an address in the source field would make the packet parse as a
// fragment.
func (a Address) IsReserved() bool {
	return a[0] == FragmentIndicator
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
