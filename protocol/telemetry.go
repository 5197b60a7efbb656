package protocol

import (
	"encoding/binary"
	"io"
	"math"
	"time"
)

// TelemetrySensor selects one of the telemetry frame kinds the encoder
// can originate.
type TelemetrySensor uint8

const (
	SensorAttitude TelemetrySensor = iota
	SensorBaroAltitude
	SensorBattery
	SensorGPS
	SensorFlightMode

	TelemetrySensorCount
)

// decidegrees to radians * 10000, the attitude wire unit
const attitudeScale = 17.453293

// flightModeTextMax bounds the mode text carried in a flight mode
// frame, including the disarmed marker but not the terminating NUL.
const flightModeTextMax = 15

// Telemetry builds outbound telemetry frames. Each enabled sensor has
// one staging slot written by the integrator and read once per
// scheduled send; the scheduler cycles through enabled sensors and
// emits one frame per elapsed interval.
type Telemetry struct {
	enabled  [TelemetrySensorCount]bool
	interval time.Duration
	lastSend time.Time
	cursor   int
	now      func() time.Time

	attitude struct {
		roll, pitch, yaw int16 // decidegrees
	}
	baro struct {
		altitude int32 // decimetres
		vario    int16 // cm/s
	}
	battery struct {
		voltage uint16 // decivolts
		current uint16 // deciamps
		fuel    uint32 // mAh
		percent uint8
	}
	gps struct {
		latitude   int32  // degrees * 1e7
		longitude  int32  // degrees * 1e7
		speed      uint16 // km/h * 10
		course     uint16 // degrees * 100
		altitude   uint16 // metres + 1000
		satellites uint8
	}
	flightMode struct {
		text [flightModeTextMax]byte
		n    int
	}

	buf [FrameSizeMax]byte
}

// NewTelemetry returns an encoder sending one frame per interval,
// cycling over the given sensors. With no sensors listed, every kind is
// enabled.
func NewTelemetry(interval time.Duration, sensors ...TelemetrySensor) *Telemetry {
	t := &Telemetry{
		interval: interval,
		now:      time.Now,
	}
	if len(sensors) == 0 {
		for i := range t.enabled {
			t.enabled[i] = true
		}
	} else {
		for _, s := range sensors {
			if s < TelemetrySensorCount {
				t.enabled[s] = true
			}
		}
	}
	t.flightMode.n = copy(t.flightMode.text[:], "ACRO")
	return t
}

// SetAttitude stages attitude data, angles in decidegrees.
func (t *Telemetry) SetAttitude(roll, pitch, yaw int16) {
	t.attitude.roll = roll
	t.attitude.pitch = pitch
	t.attitude.yaw = yaw
}

// SetBaroAltitude stages barometric altitude in decimetres and vertical
// speed in cm/s.
func (t *Telemetry) SetBaroAltitude(altitude int32, vario int16) {
	t.baro.altitude = altitude
	t.baro.vario = vario
}

// SetBattery stages battery data: voltage in volts, current in amps,
// consumed capacity in mAh and remaining charge in percent.
func (t *Telemetry) SetBattery(voltage, current float32, fuel uint32, percent uint8) {
	t.battery.voltage = uint16(voltage*10 + 0.5)
	t.battery.current = uint16(current*10 + 0.5)
	t.battery.fuel = fuel
	t.battery.percent = percent
}

// SetGPS stages GPS data: latitude/longitude in degrees, altitude in
// metres, ground speed in km/h, ground course in degrees.
func (t *Telemetry) SetGPS(latitude, longitude float64, altitude, speed, course float32, satellites uint8) {
	t.gps.latitude = int32(math.Round(latitude * 1e7))
	t.gps.longitude = int32(math.Round(longitude * 1e7))
	if altitude < -1000 {
		altitude = -1000
	}
	t.gps.altitude = uint16(altitude + 1000)
	t.gps.speed = uint16(speed*10 + 0.5)
	if course < 0 {
		course += 360
	}
	t.gps.course = uint16(course*100 + 0.5)
	t.gps.satellites = satellites
}

// SetFlightMode stages the flight mode text. A disarmed craft gets a
// trailing "*", which is what CRSF telemetry consumers display.
func (t *Telemetry) SetFlightMode(mode string, armed bool) {
	n := copy(t.flightMode.text[:flightModeTextMax-1], mode)
	if !armed {
		t.flightMode.text[n] = '*'
		n++
	}
	t.flightMode.n = n
}

// Update reports whether the send interval has elapsed since the last
// transmission. It returns true at most once per interval; the caller
// follows up with Send.
func (t *Telemetry) Update() bool {
	now := t.now()
	if now.Sub(t.lastSend) < t.interval {
		return false
	}
	t.lastSend = now
	return true
}

// Send serialises the next due sensor's staged data into a frame and
// writes it to the transport, advancing the round-robin cursor. With no
// sensors enabled it writes nothing.
func (t *Telemetry) Send(w io.Writer) error {
	for i := 0; i < int(TelemetrySensorCount); i++ {
		s := TelemetrySensor(t.cursor)
		t.cursor = (t.cursor + 1) % int(TelemetrySensorCount)
		if !t.enabled[s] {
			continue
		}
		_, err := w.Write(t.buildFrame(s))
		return err
	}
	return nil
}

// buildFrame assembles a complete wire frame for one sensor into the
// encoder's scratch buffer.
func (t *Telemetry) buildFrame(s TelemetrySensor) []byte {
	b := t.buf[:]
	b[0] = SyncByte
	var (
		ftype FrameType
		n     int // payload length
	)
	p := b[3:]
	switch s {
	case SensorAttitude:
		ftype = FrameTypeAttitude
		binary.BigEndian.PutUint16(p[0:], uint16(int16(float32(t.attitude.pitch)*attitudeScale)))
		binary.BigEndian.PutUint16(p[2:], uint16(int16(float32(t.attitude.roll)*attitudeScale)))
		binary.BigEndian.PutUint16(p[4:], uint16(int16(float32(t.attitude.yaw)*attitudeScale)))
		n = 6

	case SensorBaroAltitude:
		ftype = FrameTypeBaroAltitude
		binary.BigEndian.PutUint16(p[0:], packAltitude(t.baro.altitude))
		binary.BigEndian.PutUint16(p[2:], uint16(t.baro.vario))
		n = 4

	case SensorBattery:
		ftype = FrameTypeBatterySensor
		binary.BigEndian.PutUint16(p[0:], t.battery.voltage)
		binary.BigEndian.PutUint16(p[2:], t.battery.current)
		p[4] = byte(t.battery.fuel >> 16)
		p[5] = byte(t.battery.fuel >> 8)
		p[6] = byte(t.battery.fuel)
		p[7] = t.battery.percent
		n = 8

	case SensorGPS:
		ftype = FrameTypeGPS
		binary.BigEndian.PutUint32(p[0:], uint32(t.gps.latitude))
		binary.BigEndian.PutUint32(p[4:], uint32(t.gps.longitude))
		binary.BigEndian.PutUint16(p[8:], t.gps.speed)
		binary.BigEndian.PutUint16(p[10:], t.gps.course)
		binary.BigEndian.PutUint16(p[12:], t.gps.altitude)
		p[14] = t.gps.satellites
		n = 15

	case SensorFlightMode:
		ftype = FrameTypeFlightMode
		n = copy(p, t.flightMode.text[:t.flightMode.n])
		p[n] = 0
		n++
	}

	b[1] = uint8(n) + 2
	b[2] = uint8(ftype)
	b[3+n] = CRC8(b[2 : 3+n])
	return b[:4+n]
}

// packAltitude packs an altitude in decimetres into the CRSF altitude
// field: decimetre resolution with a +10000 offset while it fits,
// metre resolution with the MSB set beyond that.
func packAltitude(dm int32) uint16 {
	if dm < -10000 {
		return 0
	}
	if dm+10000 < 0x8000 {
		return uint16(dm + 10000)
	}
	m := dm / 10
	if m > 0x7FFE {
		m = 0x7FFE
	}
	return uint16(m) | 0x8000
}
