package ubx

import "fmt"

// maxChecksumSpan bounds class+id+length+payload for FrameChecksum.
const maxChecksumSpan = 1000

// Checksum computes the 8-bit Fletcher checksum UBX uses over data.
func Checksum(data []byte) (ckA, ckB byte) {
	for _, b := range data {
		ckA += b
		ckB += ckA
	}
	return ckA, ckB
}

// FrameChecksum computes the checksum of a frame that starts with the sync
// marker. The span covers class through the end of the declared payload; the
// sync bytes and any trailing bytes are excluded.
func FrameChecksum(frame []byte) (ckA, ckB byte, err error) {
	if len(frame) < headerLen {
		return 0, 0, fmt.Errorf("%w: frame too short: %d", ErrChecksumInputRejected, len(frame))
	}
	if frame[0] != Sync1 || frame[1] != Sync2 {
		return 0, 0, fmt.Errorf("%w: sync mismatch: 0x%02X 0x%02X", ErrChecksumInputRejected, frame[0], frame[1])
	}
	span := (int(frame[4]) | int(frame[5])<<8) + 4
	if span > maxChecksumSpan {
		return 0, 0, fmt.Errorf("%w: declared length %d exceeds %d", ErrChecksumInputRejected, span-4, maxChecksumSpan-4)
	}
	if len(frame) < 2+span {
		return 0, 0, fmt.Errorf("%w: frame truncated: have %d bytes, need %d", ErrChecksumInputRejected, len(frame), 2+span)
	}
	ckA, ckB = Checksum(frame[2 : 2+span])
	return ckA, ckB, nil
}
