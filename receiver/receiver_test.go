package receiver

import (
	"errors"
	"testing"
	"time"

	"crossfire/protocol"
)

// mockTransport scripts input bytes and captures output for tests.
type mockTransport struct {
	input    []byte
	written  []byte
	began    bool
	beginErr error
	ends     int
	flushes  int
}

func (m *mockTransport) Begin(baud int) error {
	if m.beginErr != nil {
		return m.beginErr
	}
	m.began = true
	return nil
}

func (m *mockTransport) End() error {
	m.ends++
	m.began = false
	return nil
}

func (m *mockTransport) TryReadByte() (byte, bool) {
	if len(m.input) == 0 {
		return 0, false
	}
	b := m.input[0]
	m.input = m.input[1:]
	return b, true
}

func (m *mockTransport) FlushInput() {
	m.flushes++
	m.input = nil
}

func (m *mockTransport) Write(p []byte) (int, error) {
	m.written = append(m.written, p...)
	return len(p), nil
}

// wireFrame assembles a full wire frame.
func wireFrame(ftype protocol.FrameType, payload []byte) []byte {
	frame := []byte{protocol.SyncByte, byte(len(payload) + 2), byte(ftype)}
	frame = append(frame, payload...)
	frame = append(frame, protocol.CRC8(frame[2:]))
	return frame
}

// rcFrame builds an RC channels frame with the given channel values.
func rcFrame(channels [protocol.RcChannelCount]uint16) []byte {
	var payload [protocol.RcPayloadSize]byte
	protocol.EncodeRcChannels(&channels, &payload)
	return wireFrame(protocol.FrameTypeRcChannelsPacked, payload[:])
}

func centreChannels() [protocol.RcChannelCount]uint16 {
	var ch [protocol.RcChannelCount]uint16
	for i := range ch {
		ch[i] = protocol.RcChannelCenter
	}
	return ch
}

// started returns a begun receiver over a mock transport.
func started(t *testing.T, opts *Options) (*Receiver, *mockTransport) {
	t.Helper()
	mt := &mockTransport{}
	rx := New(mt, opts)
	if err := rx.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	return rx, mt
}

func rcOnlyOptions() *Options {
	opts := DefaultOptions()
	opts.Telemetry = false
	opts.LinkStatistics = false
	return opts
}

func TestBeginRejectsUnsupportedBoard(t *testing.T) {
	mt := &mockTransport{}
	opts := DefaultOptions()
	opts.Board = "arduino_uno"
	rx := New(mt, opts)

	if err := rx.Begin(); err == nil {
		t.Fatal("Begin succeeded on an unsupported board")
	}
	if mt.began {
		t.Error("transport opened despite board rejection")
	}
	// End must still be callable after a failed Begin.
	if err := rx.End(); err != nil {
		t.Errorf("End after failed Begin: %v", err)
	}
}

func TestBeginTransportFailure(t *testing.T) {
	mt := &mockTransport{beginErr: errors.New("no such device")}
	rx := New(mt, DefaultOptions())
	if err := rx.Begin(); err == nil {
		t.Fatal("Begin succeeded despite transport failure")
	}
	// A failed Begin leaves the receiver unstarted.
	rx.ProcessFrames() // must not panic or touch the transport
}

func TestEndIdempotent(t *testing.T) {
	rx, mt := started(t, rcOnlyOptions())
	if err := rx.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if err := rx.End(); err != nil {
		t.Fatalf("repeated End: %v", err)
	}
	if mt.ends != 2 {
		t.Errorf("transport End calls = %d, want 2", mt.ends)
	}
}

func TestProcessFramesDispatchesRcChannels(t *testing.T) {
	rx, mt := started(t, rcOnlyOptions())

	values := centreChannels()
	values[0] = 1000
	mt.input = rcFrame(values)

	calls := 0
	rx.SetRcChannelsHandler(func(ch *protocol.RcChannels) {
		calls++
		if ch.Value[0] != 1000 {
			t.Errorf("channel 0 = %d, want 1000", ch.Value[0])
		}
		if !ch.Valid {
			t.Error("channels not marked valid")
		}
		if ch.Failsafe {
			t.Error("failsafe raised on a live link")
		}
	})

	rx.ProcessFrames()
	if calls != 1 {
		t.Fatalf("RC handler calls = %d, want 1", calls)
	}
	if got := rx.GetChannel(0); got != 1000 {
		t.Errorf("GetChannel(0) = %d, want 1000", got)
	}
	if got := rx.ReadRcChannel(0, false); got != protocol.RcToUs(1000) {
		t.Errorf("ReadRcChannel(0, us) = %d, want %d", got, protocol.RcToUs(1000))
	}
}

func TestProcessFramesRejectsCorruptFrame(t *testing.T) {
	rx, mt := started(t, rcOnlyOptions())

	values := centreChannels()
	values[0] = 1000
	good := rcFrame(values)

	corrupt := append([]byte(nil), good...)
	corrupt[len(corrupt)-1] ^= 0x01
	mt.input = corrupt

	calls := 0
	rx.SetRcChannelsHandler(func(*protocol.RcChannels) { calls++ })

	rx.ProcessFrames()
	if calls != 0 {
		t.Fatalf("RC handler fired for a corrupt frame")
	}

	// The next well-formed frame must still decode.
	mt.input = good
	rx.ProcessFrames()
	if calls != 1 {
		t.Fatalf("RC handler calls = %d after recovery frame, want 1", calls)
	}
}

func TestProcessFramesFlushesAfterFrame(t *testing.T) {
	opts := rcOnlyOptions()
	opts.LinkStatistics = true
	rx, mt := started(t, opts)

	lsCalls := 0
	rx.SetLinkStatisticsHandler(func(protocol.LinkStatistics) { lsCalls++ })

	// Two frames in one burst: the second is forfeited by the
	// flush-after-frame rule.
	burst := append(rcFrame(centreChannels()), wireFrame(protocol.FrameTypeLinkStatistics, make([]byte, protocol.LinkStatisticsSize))...)
	mt.input = burst

	rx.ProcessFrames()
	if lsCalls != 0 {
		t.Error("second frame in the burst was processed")
	}
	if mt.flushes < 2 { // one at Begin, one after the completed frame
		t.Errorf("flushes = %d, want at least 2", mt.flushes)
	}
}

func TestProcessFramesDispatchesLinkStatistics(t *testing.T) {
	opts := DefaultOptions()
	opts.Telemetry = false
	rx, mt := started(t, opts)

	payload := []byte{70, 75, 99, 0xFB, 1, 4, 2, 80, 100, 5}
	mt.input = wireFrame(protocol.FrameTypeLinkStatistics, payload)

	calls := 0
	rx.SetLinkStatisticsHandler(func(s protocol.LinkStatistics) {
		calls++
		if s.UplinkRSSIAnt1 != 70 || s.UplinkSNR != -5 || s.DownlinkLinkQuality != 100 {
			t.Errorf("unexpected stats: %+v", s)
		}
	})

	rx.ProcessFrames()
	if calls != 1 {
		t.Fatalf("link statistics handler calls = %d, want 1", calls)
	}
}

func TestProcessFramesIgnoresUnknownType(t *testing.T) {
	rx, mt := started(t, rcOnlyOptions())
	mt.input = wireFrame(protocol.FrameType(0x7F), []byte{1, 2, 3})

	calls := 0
	rx.SetRcChannelsHandler(func(*protocol.RcChannels) { calls++ })
	rx.ProcessFrames()
	if calls != 0 {
		t.Error("RC handler fired for an unrelated frame type")
	}
}

func TestInitialChannelPolicies(t *testing.T) {
	opts := rcOnlyOptions()
	opts.InitialChannelPolicy = InitialSafeArm
	rx, _ := started(t, opts)

	if got := rx.GetChannel(protocol.RcChannelThrottle); got != protocol.RcChannelMin {
		t.Errorf("throttle seeded to %d, want %d", got, protocol.RcChannelMin)
	}
	if got := rx.GetChannel(protocol.RcChannelAux1); got != protocol.RcChannelMin {
		t.Errorf("arm channel seeded to %d, want %d", got, protocol.RcChannelMin)
	}
	if got := rx.GetChannel(protocol.RcChannelRoll); got != protocol.RcChannelCenter {
		t.Errorf("roll seeded to %d, want %d", got, protocol.RcChannelCenter)
	}

	opts = rcOnlyOptions()
	opts.InitialChannelPolicy = InitialCenterAll
	rx, _ = started(t, opts)
	if got := rx.GetChannel(protocol.RcChannelThrottle); got != protocol.RcChannelCenter {
		t.Errorf("centre-all throttle = %d, want %d", got, protocol.RcChannelCenter)
	}
}

func TestGetChannelOutOfRange(t *testing.T) {
	rx, _ := started(t, rcOnlyOptions())
	if got := rx.GetChannel(16); got != 0 {
		t.Errorf("GetChannel(16) = %d, want 0", got)
	}
	if got := rx.GetChannel(255); got != 0 {
		t.Errorf("GetChannel(255) = %d, want 0", got)
	}
}

func TestSetFlightModeBounds(t *testing.T) {
	rx, _ := started(t, rcOnlyOptions())

	if !rx.SetFlightMode(protocol.FlightModeAngle, 4, 1000, 1400) {
		t.Error("valid flight mode slot rejected")
	}
	if rx.SetFlightMode(protocol.FlightModeAngle, 16, 1000, 1400) {
		t.Error("channel 16 accepted")
	}
	if rx.SetFlightMode(protocol.FlightModeCount, 4, 1000, 1400) {
		t.Error("out-of-range mode id accepted")
	}
}

func TestFlightModeClassifiedOnRcFrame(t *testing.T) {
	rx, mt := started(t, rcOnlyOptions())

	// Overlapping ranges: the lower-indexed mode must win.
	rx.SetFlightMode(protocol.FlightModeAcro, 5, 1000, 1500)
	rx.SetFlightMode(protocol.FlightModeHorizon, 5, 1200, 1800)

	var got []protocol.FlightModeID
	rx.SetFlightModeHandler(func(id protocol.FlightModeID) { got = append(got, id) })

	values := centreChannels()
	values[5] = 1300
	mt.input = rcFrame(values)
	rx.ProcessFrames()

	if len(got) != 1 || got[0] != protocol.FlightModeAcro {
		t.Fatalf("classified %v, want [FlightModeAcro]", got)
	}

	// Same values again: no change, no second invocation.
	mt.input = rcFrame(values)
	rx.ProcessFrames()
	if len(got) != 1 {
		t.Fatalf("handler fired again without a mode change: %v", got)
	}
}

func TestFailsafeAfterQuietLink(t *testing.T) {
	rx, mt := started(t, rcOnlyOptions())

	base := time.Unix(1000, 0)
	rx.now = func() time.Time { return base }

	mt.input = rcFrame(centreChannels())
	rx.ProcessFrames()
	if rx.Failsafe() {
		t.Fatal("failsafe raised immediately after a frame")
	}

	// Advance well past the frame timeout with no traffic.
	rx.now = func() time.Time { return base.Add(time.Second) }
	rx.ProcessFrames()
	if !rx.Failsafe() {
		t.Fatal("failsafe not raised after a quiet second")
	}

	// Traffic resumes: the flag clears.
	rx.now = func() time.Time { return base.Add(time.Second + time.Millisecond) }
	mt.input = rcFrame(centreChannels())
	rx.ProcessFrames()
	if rx.Failsafe() {
		t.Fatal("failsafe still raised after traffic resumed")
	}
}

func TestTelemetrySentAfterFrame(t *testing.T) {
	opts := DefaultOptions()
	opts.LinkStatistics = false
	opts.TelemetrySensors = []protocol.TelemetrySensor{protocol.SensorBattery}
	rx, mt := started(t, opts)

	rx.TelemetryWriteBattery(16.8, 23.5, 1250, 87)

	mt.input = rcFrame(centreChannels())
	rx.ProcessFrames()

	// First completed frame crosses the (long-elapsed) interval, so one
	// battery frame must have gone out.
	f := mt.written
	if len(f) != 12 {
		t.Fatalf("wrote %d bytes, want a 12-byte battery frame: % X", len(f), f)
	}
	if f[0] != protocol.SyncByte || protocol.FrameType(f[2]) != protocol.FrameTypeBatterySensor {
		t.Fatalf("unexpected frame header: % X", f[:3])
	}
	if crc := protocol.CRC8(f[2 : len(f)-1]); crc != f[len(f)-1] {
		t.Errorf("telemetry frame CRC = 0x%02X, want 0x%02X", f[len(f)-1], crc)
	}
}

func TestTelemetryWriteFlightModeUsesCorrectedArming(t *testing.T) {
	opts := DefaultOptions()
	opts.LinkStatistics = false
	opts.TelemetrySensors = []protocol.TelemetrySensor{protocol.SensorFlightMode}
	rx, mt := started(t, opts)

	rx.TelemetryWriteFlightMode(protocol.FlightModeDisarmed)

	mt.input = rcFrame(centreChannels())
	rx.ProcessFrames()

	f := mt.written
	if len(f) == 0 {
		t.Fatal("no telemetry frame written")
	}
	payload := string(f[3 : len(f)-1])
	if payload != "ACRO*\x00" {
		t.Errorf("flight mode payload = %q, want %q", payload, "ACRO*\x00")
	}
}
