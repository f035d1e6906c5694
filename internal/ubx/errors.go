package ubx

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSnapshot reports a date or time that cannot be encoded.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
	// ErrFieldOverflow reports a mapped value that does not fit its wire field.
	ErrFieldOverflow = errors.New("field overflow")
	// ErrChecksumInputRejected reports a buffer that fails the sync/length sanity check.
	ErrChecksumInputRejected = errors.New("checksum input rejected")
)

// EncodeError is returned by Encode and NavPVT.MarshalBinary. State is the
// assembler state the failure occurred in.
type EncodeError struct {
	State State
	Field string
	Err   error
}

func (e *EncodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("ubx: encode failed in %s: %v", e.State, e.Err)
	}
	return fmt.Sprintf("ubx: encode failed in %s: %s: %v", e.State, e.Field, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }
