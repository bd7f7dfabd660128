package oper

import "github.com/wippyai/xll-runtime/xlcall"

// Provenance records which side of the boundary must release a record's
// payload. It is fixed when the record is constructed.
type Provenance uint8

const (
	// SelfOwned payloads are released locally (BitDLLFree).
	SelfOwned Provenance = iota
	// ForeignOwned payloads are released by the host via xlFree (BitXLFree).
	ForeignOwned
)

func (p Provenance) String() string {
	if p == ForeignOwned {
		return "foreign"
	}
	return "self"
}

// Bit returns the type-word flag encoding p.
func (p Provenance) Bit() uint32 {
	if p == ForeignOwned {
		return xlcall.BitXLFree
	}
	return xlcall.BitDLLFree
}

// Ownership is the effective release responsibility for a record's current
// payload.
type Ownership uint8

const (
	Unowned Ownership = iota
	Self
	Foreign
)

func (o Ownership) String() string {
	switch o {
	case Self:
		return "self"
	case Foreign:
		return "foreign"
	}
	return "unowned"
}
