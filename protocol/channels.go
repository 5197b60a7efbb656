package protocol

// rcScale and rcOffset are the two-point linear fit between raw channel
// units and microseconds (172 -> 988us, 1811 -> 2012us). Flight
// controllers assume these exact constants; do not retune them.
const (
	rcScale  = 0.62477120195241
	rcOffset = 881
)

// RcChannels holds the most recently decoded RC channel values. One
// instance is owned by the Receiver and overwritten on each successful
// decode; there is no history.
type RcChannels struct {
	Value    [RcChannelCount]uint16
	Valid    bool
	Failsafe bool
}

// Get returns the raw value of a channel, or 0 for an out-of-range
// index. A bad read of a control input never hard-fails.
func (c *RcChannels) Get(channel uint8) uint16 {
	if channel >= RcChannelCount {
		return 0
	}
	return c.Value[channel]
}

// Decode unpacks sixteen 11-bit channel values from a 22-byte RC
// channels payload (little-endian bitstream) into c. Payloads of the
// wrong size are ignored and c is left unchanged.
func (c *RcChannels) Decode(payload []byte) bool {
	if len(payload) != RcPayloadSize {
		return false
	}
	var (
		value uint32
		bits  uint
		idx   int
	)
	for n := 0; n < RcChannelCount; n++ {
		for bits < 11 {
			value |= uint32(payload[idx]) << bits
			bits += 8
			idx++
		}
		c.Value[n] = uint16(value & 0x07FF)
		value >>= 11
		bits -= 11
	}
	c.Valid = true
	return true
}

// EncodeRcChannels packs sixteen 11-bit channel values into a 22-byte
// RC channels payload, the inverse of Decode. Values above 2047 are
// masked to 11 bits. On the receiver side this is primarily a
// round-trip operation; a transmitter uses it to originate RC frames.
func EncodeRcChannels(channels *[RcChannelCount]uint16, payload *[RcPayloadSize]byte) {
	var (
		value uint32
		bits  uint
		idx   int
	)
	for n := 0; n < RcChannelCount; n++ {
		value |= uint32(channels[n]&0x07FF) << bits
		bits += 11
		for bits >= 8 {
			payload[idx] = byte(value)
			value >>= 8
			bits -= 8
			idx++
		}
	}
	if bits > 0 {
		payload[idx] = byte(value)
	}
}

// RcToUs converts a raw channel value to microseconds, rounded to the
// nearest unit.
func RcToUs(rc uint16) uint16 {
	return uint16(float32(rc)*rcScale + rcOffset + 0.5)
}

// UsToRc converts microseconds back to a raw channel value, rounded to
// the nearest unit. Round-tripping through RcToUs stays within one raw
// unit over the operating range.
func UsToRc(us uint16) uint16 {
	return uint16((float32(us)-rcOffset)/rcScale + 0.5)
}
