package protocol

// receiver state machine states
type rxState uint8

const (
	rxIdle rxState = iota
	rxLength
	rxType
	rxPayload
	rxChecksum
)

// FrameReceiver reassembles CRSF frames from a byte stream. It consumes
// one byte per call, holds the payload in a fixed-capacity buffer and
// resets to the idle state on any framing or checksum error, so a
// corrupt frame costs at most its own declared length in lost bytes.
type FrameReceiver struct {
	state   rxState
	length  uint8 // declared frame length (type + payload + CRC)
	ftype   FrameType
	payload [PayloadMax]byte
	got     int // payload bytes accumulated so far

	frame Frame // last completed frame
}

// NewFrameReceiver returns a receiver scanning for the start of a frame.
func NewFrameReceiver() *FrameReceiver {
	return &FrameReceiver{}
}

// ProcessByte feeds one byte from the transport into the state machine.
// It returns true when the byte completed a CRC-valid frame, which is
// then available from Frame until the next byte is processed. Malformed
// input is dropped silently and the receiver resyncs on the next sync
// byte.
func (r *FrameReceiver) ProcessByte(b byte) bool {
	switch r.state {
	case rxIdle:
		// Discard bytes one at a time until the sync byte appears.
		if b == SyncByte {
			r.state = rxLength
		}

	case rxLength:
		if b < FrameLengthMin || b > FrameLengthMax {
			r.state = rxIdle
			break
		}
		r.length = b
		r.got = 0
		r.state = rxType

	case rxType:
		// Unrecognised types are accepted; CRSF is extensible and the
		// caller routes unknown frames to a no-op path.
		r.ftype = FrameType(b)
		if r.length == FrameLengthMin {
			r.state = rxChecksum
		} else {
			r.state = rxPayload
		}

	case rxPayload:
		r.payload[r.got] = b
		r.got++
		if r.got == int(r.length)-2 {
			r.state = rxChecksum
		}

	case rxChecksum:
		// A mismatched byte is not reinterpreted as a new sync byte; the
		// corrupt frame forfeits it and scanning restarts afterwards.
		r.state = rxIdle
		if b != r.expectedCRC() {
			break
		}
		r.frame = Frame{
			Length:  r.length,
			Type:    r.ftype,
			Payload: r.payload[:r.got],
			CRC:     b,
		}
		return true
	}
	return false
}

// Frame returns the most recently completed frame. Valid only
// immediately after ProcessByte returned true; the payload aliases the
// receiver's internal buffer.
func (r *FrameReceiver) Frame() Frame {
	return r.frame
}

// Reset discards any partially accumulated frame.
func (r *FrameReceiver) Reset() {
	r.state = rxIdle
	r.got = 0
}

func (r *FrameReceiver) expectedCRC() uint8 {
	crc := crc8Table[0^uint8(r.ftype)]
	for _, b := range r.payload[:r.got] {
		crc = crc8Table[crc^b]
	}
	return crc
}
