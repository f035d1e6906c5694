package ubx

import (
	"fmt"

	"nmea2ubx/internal/fix"
)

// State is a step of packet assembly.
type State uint8

const (
	StateIdle State = iota
	StateBuildingHeader
	StateBuildingPayload
	StateChecksumming
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuildingHeader:
		return "building-header"
	case StateBuildingPayload:
		return "building-payload"
	case StateChecksumming:
		return "checksumming"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Encode builds one framed NAV-PVT packet from a fix snapshot.
//
// Encode holds no state between calls and may be called concurrently. On
// error it returns a nil slice and an *EncodeError; no partial packet is
// produced.
func Encode(s fix.Snapshot) ([]byte, error) {
	var a assembler
	a.beginHeader()
	a.enter(StateBuildingPayload)
	p, field, err := mapSnapshot(s)
	if err != nil {
		return a.fail(field, err)
	}
	return a.finish(&p)
}

// MarshalBinary frames an already mapped record.
func (p NavPVT) MarshalBinary() ([]byte, error) {
	var a assembler
	a.beginHeader()
	a.enter(StateBuildingPayload)
	return a.finish(&p)
}

type assembler struct {
	state State
	w     *Writer
}

func (a *assembler) enter(s State) {
	a.state = s
}

func (a *assembler) beginHeader() {
	a.enter(StateBuildingHeader)
	a.w = NewWriter(FrameLen)
	Put(a.w, Sync1)
	Put(a.w, Sync2)
	Put(a.w, ClassNAV)
	Put(a.w, IDNAVPVT)
	Put(a.w, uint16(PayloadLen))
}

func (a *assembler) finish(p *NavPVT) ([]byte, error) {
	if err := a.w.Err(); err != nil {
		return a.fail("header", err)
	}
	p.writePayload(a.w)
	if err := a.w.Err(); err != nil {
		return a.fail("payload", err)
	}
	if got := a.w.Offset() - headerLen; got != PayloadLen {
		return a.fail("payload", fmt.Errorf("wrote %d payload bytes, want %d", got, PayloadLen))
	}

	a.enter(StateChecksumming)
	ckA, ckB, err := FrameChecksum(a.w.Bytes())
	if err != nil {
		return a.fail("checksum", err)
	}
	Put(a.w, ckA)
	Put(a.w, ckB)
	if err := a.w.Err(); err != nil {
		return a.fail("checksum", err)
	}

	a.enter(StateComplete)
	return a.w.Bytes(), nil
}

func (a *assembler) fail(field string, err error) ([]byte, error) {
	at := a.state
	a.enter(StateFailed)
	a.w = nil
	return nil, &EncodeError{State: at, Field: field, Err: err}
}
