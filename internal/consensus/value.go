package consensus

import (
	"fmt"
	"strings"
)

// Value is the tri-valued symbol a node's proposal can hold: a concrete
// binary choice, or Unknown ("?"), which a node emits in a phase-2 message
// when phase 1 observed no majority. Unknown is never a valid phase-1
// message value.
//
// On the wire, Zero and One are JSON numbers and Unknown is the JSON
// string "?"; MarshalJSON/UnmarshalJSON translate between the two
// representations at the transport boundary.
type Value int8

const (
	Zero Value = iota
	One
	Unknown
)

// String renders the value the way it appears on the wire.
func (v Value) String() string {
	switch v {
	case Zero:
		return "0"
	case One:
		return "1"
	case Unknown:
		return "?"
	default:
		return fmt.Sprintf("Value(%d)", int8(v))
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v {
	case Zero:
		return []byte("0"), nil
	case One:
		return []byte("1"), nil
	case Unknown:
		return []byte(`"?"`), nil
	default:
		return nil, fmt.Errorf("consensus: cannot marshal invalid value %d", int8(v))
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	switch s {
	case "0":
		*v = Zero
	case "1":
		*v = One
	case `"?"`:
		*v = Unknown
	default:
		return fmt.Errorf("%w: invalid value %s", ErrMalformed, s)
	}
	return nil
}

// Binary reports whether v is a concrete binary choice (0 or 1), as
// opposed to Unknown.
func (v Value) Binary() bool {
	return v == Zero || v == One
}
