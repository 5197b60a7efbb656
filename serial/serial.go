// Package serial provides the host-side serial transport for the CRSF
// receiver engine.
package serial

import (
	"io"
)

// Port represents a serial port.
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - Mock serial (for testing)
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration.
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	// Baud rate. CRSF receivers run at 420000 baud; original Crossfire
	// hardware uses 416666.
	Baud int

	// Read timeout in milliseconds. Keep this short: the receiver core
	// polls and must never block on an idle link.
	ReadTimeout int
}

// DefaultConfig returns a configuration for a CRSF receiver link.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        420000,
		ReadTimeout: 5,
	}
}
