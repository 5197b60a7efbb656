package protocol

// FlightModeID identifies a flight controller operating mode,
// classified from an RC channel's value range.
type FlightModeID uint8

const (
	FlightModeDisarmed FlightModeID = iota
	FlightModeAcro
	FlightModeFailsafe
	FlightModeGPSRescue
	FlightModePassthrough
	FlightModeAngle
	FlightModeHorizon
	FlightModeAirmode

	FlightModeCount
)

// Name returns the telemetry text for a flight mode. Unmapped ids fall
// back to the rate-mode name.
func (id FlightModeID) Name() string {
	switch id {
	case FlightModeFailsafe:
		return "!FS!"
	case FlightModeGPSRescue:
		return "RTH"
	case FlightModePassthrough:
		return "MANU"
	case FlightModeAngle:
		return "STAB"
	case FlightModeHorizon:
		return "HOR"
	case FlightModeAirmode:
		return "AIR"
	default:
		return "ACRO"
	}
}

// Armed reports whether a flight mode implies the craft is armed.
func (id FlightModeID) Armed() bool {
	return id != FlightModeDisarmed
}

// flightModeSlot maps a channel value range to one flight mode.
type flightModeSlot struct {
	set     bool
	channel uint8
	min     uint16
	max     uint16
}

// FlightModeHandler receives the classified flight mode.
type FlightModeHandler func(id FlightModeID)

// FlightModeClassifier maps RC channel value ranges to flight modes.
// The slot table is fixed-capacity, sized to the supported mode count,
// and configured once by the integrator.
type FlightModeClassifier struct {
	slots    [FlightModeCount]flightModeSlot
	handler  FlightModeHandler
	current  FlightModeID
	reported bool
}

// NewFlightModeClassifier returns a classifier with an empty slot table.
func NewFlightModeClassifier() *FlightModeClassifier {
	return &FlightModeClassifier{}
}

// SetSlot assigns a channel value range to a flight mode. It returns
// false, leaving the table unchanged, if the mode id or channel index
// is out of range.
func (f *FlightModeClassifier) SetSlot(id FlightModeID, channel uint8, min, max uint16) bool {
	if id >= FlightModeCount || channel >= RcChannelCount {
		return false
	}
	f.slots[id] = flightModeSlot{set: true, channel: channel, min: min, max: max}
	return true
}

// SetHandler registers the handler invoked when the classified mode
// changes. The handler runs synchronously on the caller's goroutine.
func (f *FlightModeClassifier) SetHandler(handler FlightModeHandler) {
	f.handler = handler
}

// Classify scans the slot table in ascending id order and invokes the
// handler with the first mode whose channel value falls within its
// range. Overlapping ranges resolve to the lowest id. The handler only
// fires when the classified mode differs from the previous cycle; no
// match means no invocation.
func (f *FlightModeClassifier) Classify(channels *RcChannels) {
	if f.handler == nil {
		return
	}
	for id := FlightModeID(0); id < FlightModeCount; id++ {
		s := &f.slots[id]
		if !s.set {
			continue
		}
		v := channels.Get(s.channel)
		if v >= s.min && v <= s.max {
			if !f.reported || id != f.current {
				f.current = id
				f.reported = true
				f.handler(id)
			}
			return
		}
	}
}
