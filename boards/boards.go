// Package boards holds the hardware compatibility table consulted when
// the receiver starts. CRSF needs a UART fast enough for 420000 baud;
// targets known to fall short are rejected up front rather than failing
// with a desynced link later.
package boards

import "strings"

// NativeHost identifies a regular operating system host, which talks to
// the receiver through a USB serial adapter and is always supported.
const NativeHost = ""

var supported = map[string]bool{
	"adafruit_feather_m0":   true,
	"adafruit_feather_m4":   true,
	"adafruit_itsybitsy_m4": true,
	"adafruit_metro_m4":     true,
	"arduino_mkrzero":       true,
	"arduino_nano33_iot":    true,
	"arduino_zero":          true,
	"pico":                  true,
	"pico2":                 true,
	"seeed_xiao_rp2040":     true,
	"stm32f405_feather":     true,
	"teensy40":              true,
	"teensy41":              true,

	// Classic AVR boards lack a spare high-speed UART.
	"arduino_uno":  false,
	"arduino_nano": false,
	"arduino_mega": false,
}

// IsSupported reports whether a device identifier names a target the
// receiver can run on. Unknown identifiers are rejected; the empty
// identifier means the native host.
func IsSupported(device string) bool {
	if device == NativeHost {
		return true
	}
	ok, known := supported[strings.ToLower(device)]
	return known && ok
}
