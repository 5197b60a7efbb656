// Package protocol implements the CRSF (Crossfire) serial protocol:
// frame synchronisation, RC channel packing, link statistics decoding
// and telemetry frame generation.
package protocol

// Version of the crossfire module
const Version = "1.0.0"

// Wire framing constants. A CRSF frame on the wire is
// [sync][length][type][payload...][crc8] where the length byte counts
// the type, payload and CRC bytes.
const (
	SyncByte = 0xC8 // flight controller address, doubles as the sync byte

	FrameLengthMin = 2  // type + CRC, empty payload
	FrameLengthMax = 62 // largest value the length byte may carry
	PayloadMax     = FrameLengthMax - 2
	FrameSizeMax   = FrameLengthMax + 2 // plus sync and length bytes
)

// FrameType identifies the contents of a frame's payload.
type FrameType uint8

// Frame types handled by this module. CRSF is extensible; frames with
// unknown types still pass CRC validation and are surfaced with their
// raw type value.
const (
	FrameTypeGPS              FrameType = 0x02
	FrameTypeBatterySensor    FrameType = 0x08
	FrameTypeBaroAltitude     FrameType = 0x09
	FrameTypeLinkStatistics   FrameType = 0x14
	FrameTypeRcChannelsPacked FrameType = 0x16
	FrameTypeAttitude         FrameType = 0x1E
	FrameTypeFlightMode       FrameType = 0x21
)

// RC channel constants
const (
	RcChannelCount = 16

	RcChannelMin    = 172  // 988us
	RcChannelCenter = 992  // 1500us
	RcChannelMax    = 1811 // 2012us

	RcPayloadSize = 22 // 16 channels x 11 bits
)

// Well-known channel indices (AETR order)
const (
	RcChannelRoll     = 0
	RcChannelPitch    = 1
	RcChannelThrottle = 2
	RcChannelYaw      = 3
	RcChannelAux1     = 4 // conventionally the arm switch
)

// Frame is one validated CRSF frame. Frames are transient: the
// FrameReceiver reuses its payload storage, so a Frame must be consumed
// before the next byte is fed in.
type Frame struct {
	Length  uint8
	Type    FrameType
	Payload []byte
	CRC     uint8
}
