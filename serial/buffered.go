package serial

import (
	"fmt"
)

const inputBufferSize = 512

// BufferedPort adapts a Port to the polled, non-blocking transport
// contract the receiver core expects: single-byte reads that report
// "nothing available" instead of blocking. Incoming data is staged in a
// fixed-capacity FIFO between polls.
type BufferedPort struct {
	cfg     *Config
	port    Port
	input   *FifoBuffer
	scratch [64]byte
}

// NewBufferedPort returns an unopened transport for the given device.
// The port itself is opened by Begin.
func NewBufferedPort(cfg *Config) *BufferedPort {
	return &BufferedPort{
		cfg:   cfg,
		input: NewFifoBuffer(inputBufferSize),
	}
}

// NewBufferedPortFrom wraps an already-open port; Begin becomes a
// no-op. Useful for tests and for ports opened elsewhere.
func NewBufferedPortFrom(port Port) *BufferedPort {
	return &BufferedPort{
		port:  port,
		input: NewFifoBuffer(inputBufferSize),
	}
}

// Begin opens the underlying serial port at the given baud rate. A
// baud of 0 keeps the configured rate.
func (b *BufferedPort) Begin(baud int) error {
	if b.port != nil {
		return nil
	}
	if baud > 0 {
		b.cfg.Baud = baud
	}
	port, err := Open(b.cfg)
	if err != nil {
		return err
	}
	b.port = port
	b.input.Reset()
	return nil
}

// End closes the port. Safe to call repeatedly.
func (b *BufferedPort) End() error {
	if b.port == nil {
		return nil
	}
	err := b.port.Close()
	b.port = nil
	b.input.Reset()
	return err
}

// TryReadByte returns the next input byte if one is available. It never
// blocks beyond the port's short read timeout.
func (b *BufferedPort) TryReadByte() (byte, bool) {
	if b.input.IsEmpty() {
		b.poll()
	}
	return b.input.ReadByte()
}

// Write sends bytes out the port.
func (b *BufferedPort) Write(p []byte) (int, error) {
	if b.port == nil {
		return 0, fmt.Errorf("port not open")
	}
	return b.port.Write(p)
}

// FlushInput discards buffered and driver-held input.
func (b *BufferedPort) FlushInput() {
	b.input.Reset()
	if b.port != nil {
		_ = b.port.Flush()
	}
}

// poll drains whatever the driver has pending into the FIFO. The read
// timeout makes this return promptly on an idle link.
func (b *BufferedPort) poll() {
	if b.port == nil {
		return
	}
	n, err := b.port.Read(b.scratch[:])
	if err != nil || n == 0 {
		return
	}
	b.input.Write(b.scratch[:n])
}
