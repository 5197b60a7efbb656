// Package receiver ties the CRSF protocol engine to a serial transport:
// it drains input through the frame receiver, routes decoded frames to
// registered handlers and drives the telemetry scheduler. It is
// single-threaded and poll-driven; the integrator's control loop calls
// ProcessFrames repeatedly and handlers run synchronously inside it.
package receiver

import (
	"fmt"
	"io"
	"time"

	"crossfire/boards"
	"crossfire/protocol"
)

// Transport is the serial link the receiver drives. Reads are
// non-blocking byte-at-a-time polls; implementations live in the serial
// package or in tests.
type Transport interface {
	io.Writer

	// Begin opens the link at the given baud rate.
	Begin(baud int) error
	// End closes the link. Must tolerate repeated calls.
	End() error
	// TryReadByte returns the next input byte, or ok=false when none is
	// pending. It must not block waiting for data.
	TryReadByte() (byte, bool)
	// FlushInput discards pending input.
	FlushInput()
}

// InitialChannels selects how channel values are seeded before the
// first RC frame arrives.
type InitialChannels uint8

const (
	// InitialCenterAll centres every channel (1500us).
	InitialCenterAll InitialChannels = iota
	// InitialSafeArm centres every channel except throttle and the arm
	// switch, which are forced to minimum so motors cannot arm or spin
	// off stale state.
	InitialSafeArm
)

// RcChannelsHandler receives the current channel state once per
// ProcessFrames call.
type RcChannelsHandler func(ch *protocol.RcChannels)

// LinkStatisticsHandler receives a link statistics snapshot, at most
// once per ProcessFrames call.
type LinkStatisticsHandler func(stats protocol.LinkStatistics)

// Options replaces the build-time feature flags of embedded CRSF
// stacks: components are only constructed when enabled here.
type Options struct {
	// Board identifies the target hardware, checked against the
	// compatibility table during Begin. Leave empty on a native host.
	Board string

	// Baud is the link rate. Zero means 420000.
	Baud int

	RC             bool
	Telemetry      bool
	LinkStatistics bool
	FlightModes    bool

	// TelemetrySensors limits which sensor kinds are scheduled. Empty
	// means all of them.
	TelemetrySensors []protocol.TelemetrySensor

	// TelemetryInterval is the send cadence. Zero means 100ms.
	TelemetryInterval time.Duration

	// InitialChannelPolicy seeds channel values before the first frame.
	InitialChannelPolicy InitialChannels

	// FailsafeFrames is how many frame periods may pass without a valid
	// RC frame before the failsafe flag is raised. Zero means 100.
	FailsafeFrames int
}

// DefaultOptions enables every subsystem with the standard CRSF link
// parameters and the safe startup channel policy.
func DefaultOptions() *Options {
	return &Options{
		Baud:                 420000,
		RC:                   true,
		Telemetry:            true,
		LinkStatistics:       true,
		FlightModes:          true,
		TelemetryInterval:    100 * time.Millisecond,
		InitialChannelPolicy: InitialSafeArm,
		FailsafeFrames:       100,
	}
}

// Receiver is the orchestrator: one instance per serial link.
type Receiver struct {
	transport Transport
	opts      Options

	frameRx     *protocol.FrameReceiver
	channels    protocol.RcChannels
	linkStats   protocol.LinkStatistics
	telemetry   *protocol.Telemetry
	flightModes *protocol.FlightModeClassifier

	rcHandler RcChannelsHandler
	lsHandler LinkStatisticsHandler

	began           bool
	lastRcFrame     time.Time
	failsafeTimeout time.Duration
	now             func() time.Time
}

// New returns a receiver bound to a transport. Call Begin before
// ProcessFrames.
func New(transport Transport, opts *Options) *Receiver {
	if opts == nil {
		opts = DefaultOptions()
	}
	r := &Receiver{
		transport: transport,
		opts:      *opts,
		frameRx:   protocol.NewFrameReceiver(),
		now:       time.Now,
	}
	if r.opts.Baud == 0 {
		r.opts.Baud = 420000
	}
	if r.opts.TelemetryInterval == 0 {
		r.opts.TelemetryInterval = 100 * time.Millisecond
	}
	if r.opts.FailsafeFrames == 0 {
		r.opts.FailsafeFrames = 100
	}
	return r
}

// Begin validates the target hardware, seeds channel state, opens the
// transport and clears stale input. On failure the receiver is left
// unstarted; End remains safe to call.
func (r *Receiver) Begin() error {
	if r.began {
		return nil
	}
	if !boards.IsSupported(r.opts.Board) {
		return fmt.Errorf("board %q is not compatible with the CRSF protocol", r.opts.Board)
	}

	if r.opts.RC {
		r.seedChannels()
		if r.opts.FlightModes {
			r.flightModes = protocol.NewFlightModeClassifier()
		}
	}
	if r.opts.Telemetry {
		r.telemetry = protocol.NewTelemetry(r.opts.TelemetryInterval, r.opts.TelemetrySensors...)
	}

	// One frame takes FrameSizeMax bytes at 10 bits each on the wire.
	frameTime := time.Duration(protocol.FrameSizeMax * 10 * int64(time.Second) / int64(r.opts.Baud))
	r.failsafeTimeout = frameTime * time.Duration(r.opts.FailsafeFrames)

	if err := r.transport.Begin(r.opts.Baud); err != nil {
		r.telemetry = nil
		r.flightModes = nil
		return fmt.Errorf("transport: %w", err)
	}
	r.transport.FlushInput()
	r.began = true
	return nil
}

// End flushes and closes the transport. Idempotent.
func (r *Receiver) End() error {
	r.transport.FlushInput()
	err := r.transport.End()
	r.began = false
	return err
}

// ProcessFrames drains all currently available input bytes, dispatches
// completed frames and drives the telemetry scheduler. Each registered
// handler is invoked at most once per call. It never blocks waiting for
// a partial frame to complete.
func (r *Receiver) ProcessFrames() {
	if !r.began {
		return
	}

	gotRc := false
	gotLinkStats := false
	for {
		b, ok := r.transport.TryReadByte()
		if !ok {
			break
		}
		if !r.frameRx.ProcessByte(b) {
			continue
		}
		frame := r.frameRx.Frame()

		// A completed frame forfeits the rest of the burst so a later
		// frame's tail is never misread in this same pass.
		r.transport.FlushInput()

		switch frame.Type {
		case protocol.FrameTypeRcChannelsPacked:
			if r.opts.RC && r.channels.Decode(frame.Payload) {
				r.lastRcFrame = r.now()
				gotRc = true
			}
		case protocol.FrameTypeLinkStatistics:
			if r.opts.LinkStatistics && protocol.DecodeLinkStatistics(frame.Payload, &r.linkStats) {
				gotLinkStats = true
			}
		default:
			// Unknown frame types pass CRC validation but carry nothing
			// for us.
		}

		if r.telemetry != nil && r.telemetry.Update() {
			_ = r.telemetry.Send(r.transport)
		}
	}

	if gotLinkStats && r.lsHandler != nil {
		r.lsHandler(r.linkStats)
	}

	if r.opts.RC {
		r.channels.Failsafe = r.channels.Valid &&
			r.now().Sub(r.lastRcFrame) > r.failsafeTimeout
		if gotRc {
			if r.flightModes != nil {
				r.flightModes.Classify(&r.channels)
			}
			if r.rcHandler != nil {
				r.rcHandler(&r.channels)
			}
		}
	}
}

// SetRcChannelsHandler registers the channel-update handler.
func (r *Receiver) SetRcChannelsHandler(h RcChannelsHandler) {
	r.rcHandler = h
}

// SetLinkStatisticsHandler registers the link statistics handler.
func (r *Receiver) SetLinkStatisticsHandler(h LinkStatisticsHandler) {
	r.lsHandler = h
}

// GetChannel returns a channel's raw value. Out-of-range indices read
// as 0.
func (r *Receiver) GetChannel(channel uint8) uint16 {
	return r.ReadRcChannel(channel, true)
}

// ReadRcChannel returns a channel's value, raw or converted to
// microseconds. Out-of-range indices read as 0.
func (r *Receiver) ReadRcChannel(channel uint8, raw bool) uint16 {
	if channel >= protocol.RcChannelCount {
		return 0
	}
	v := r.channels.Get(channel)
	if raw {
		return v
	}
	return protocol.RcToUs(v)
}

// Failsafe reports whether the link has gone quiet long enough that
// consumers should force safe outputs.
func (r *Receiver) Failsafe() bool {
	return r.channels.Failsafe
}

// SetFlightMode assigns a channel value range to a flight mode id.
// Returns false for an out-of-range id or channel, or when flight modes
// are disabled.
func (r *Receiver) SetFlightMode(id protocol.FlightModeID, channel uint8, min, max uint16) bool {
	if r.flightModes == nil {
		return false
	}
	return r.flightModes.SetSlot(id, channel, min, max)
}

// SetFlightModeHandler registers the handler invoked when the
// classified flight mode changes.
func (r *Receiver) SetFlightModeHandler(h protocol.FlightModeHandler) {
	if r.flightModes != nil {
		r.flightModes.SetHandler(h)
	}
}

// HandleFlightMode classifies the current channel values immediately,
// outside the ProcessFrames cycle.
func (r *Receiver) HandleFlightMode() {
	if r.flightModes != nil {
		r.flightModes.Classify(&r.channels)
	}
}

// TelemetryWriteAttitude stages attitude telemetry, angles in
// decidegrees.
func (r *Receiver) TelemetryWriteAttitude(roll, pitch, yaw int16) {
	if r.telemetry != nil {
		r.telemetry.SetAttitude(roll, pitch, yaw)
	}
}

// TelemetryWriteBaroAltitude stages barometric altitude in decimetres
// and vertical speed in cm/s.
func (r *Receiver) TelemetryWriteBaroAltitude(altitude int32, vario int16) {
	if r.telemetry != nil {
		r.telemetry.SetBaroAltitude(altitude, vario)
	}
}

// TelemetryWriteBattery stages battery telemetry: volts, amps, consumed
// mAh and remaining percent.
func (r *Receiver) TelemetryWriteBattery(voltage, current float32, fuel uint32, percent uint8) {
	if r.telemetry != nil {
		r.telemetry.SetBattery(voltage, current, fuel, percent)
	}
}

// TelemetryWriteGPS stages GPS telemetry: degrees, metres, km/h,
// degrees course, satellite count.
func (r *Receiver) TelemetryWriteGPS(latitude, longitude float64, altitude, speed, course float32, satellites uint8) {
	if r.telemetry != nil {
		r.telemetry.SetGPS(latitude, longitude, altitude, speed, course, satellites)
	}
}

// TelemetryWriteFlightMode stages flight mode telemetry from a mode id,
// deriving the display text and armed state.
func (r *Receiver) TelemetryWriteFlightMode(id protocol.FlightModeID) {
	if r.telemetry != nil {
		r.telemetry.SetFlightMode(id.Name(), id.Armed())
	}
}

// TelemetryWriteCustomFlightMode stages free-form flight mode text.
func (r *Receiver) TelemetryWriteCustomFlightMode(mode string, armed bool) {
	if r.telemetry != nil {
		r.telemetry.SetFlightMode(mode, armed)
	}
}

// seedChannels applies the initial channel policy so downstream
// consumers never see zeroed channels before the first frame.
func (r *Receiver) seedChannels() {
	for i := range r.channels.Value {
		r.channels.Value[i] = protocol.RcChannelCenter
	}
	if r.opts.InitialChannelPolicy == InitialSafeArm {
		r.channels.Value[protocol.RcChannelThrottle] = protocol.RcChannelMin
		r.channels.Value[protocol.RcChannelAux1] = protocol.RcChannelMin
	}
}
