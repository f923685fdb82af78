package driver

import (
	"errors"
	"fmt"
	"io"

	"go-lightsynth/debug"
	"go-lightsynth/light"

	"go.bug.st/serial"
)

const (
	CmdSetPixels = 0x20
	CmdShow      = 0x21
	SOF0         = 0xAA
	SOF1         = 0x55

	// LEN is one byte and counts CMD too: 3 header bytes leave 83 pixels
	maxPixelsPerFrame = (255 - 1 - 3) / 3
)

// Serial drives an LED strip behind a microcontroller on a serial port.
// Each frame is sent as pixel chunks followed by a show command.
type Serial struct {
	port   io.WriteCloser
	pixels map[light.ID]int
	n      int // strip length
	seq    byte
	buf    []byte
}

// OpenSerial opens the named serial device at the given baud rate
func OpenSerial(name string, baud int, pixels map[light.ID]int) (*Serial, error) {
	mode := &serial.Mode{BaudRate: baud}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("serial %s: %w", name, err)
	}
	debug.Log("serial", "port opened device=%s baud=%d", name, baud)
	return NewSerial(p, pixels), nil
}

// NewSerial writes frames to an already open port
func NewSerial(port io.WriteCloser, pixels map[light.ID]int) *Serial {
	n := 0
	valid := make(map[light.ID]int, len(pixels))
	for id, px := range pixels {
		if px < 0 {
			debug.Warn("serial", "light %s: negative pixel %d ignored", id, px)
			continue
		}
		valid[id] = px
		n = max(n, px+1)
	}
	return &Serial{port: port, pixels: valid, n: n}
}

func (s *Serial) Send(frame light.Frame) error {
	if s.n == 0 {
		return nil
	}
	rgb := make([][3]byte, s.n)
	for id, px := range s.pixels {
		rgb[px] = frame[id].Bytes()
	}

	s.buf = s.buf[:0]
	for start := 0; start < s.n; start += maxPixelsPerFrame {
		end := min(start+maxPixelsPerFrame, s.n)
		s.buf = append(s.buf, encodePixels(s.seq, start, rgb[start:end])...)
	}
	s.buf = append(s.buf, encodeFrame(CmdShow, []byte{s.seq})...)
	s.seq++

	if _, err := s.port.Write(s.buf); err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	return nil
}

// Close blanks the strip and closes the port
func (s *Serial) Close() error {
	debug.Log("serial", "closing port")
	return errors.Join(s.Send(light.Frame{}), s.port.Close())
}

// encodePixels builds one pixel chunk:
//
//	[SOF0][SOF1][LEN][CMD][seq][startHi][startLo][r g b ...][CKS]
func encodePixels(seq byte, start int, rgb [][3]byte) []byte {
	payload := make([]byte, 0, 3+len(rgb)*3)
	payload = append(payload, seq, byte(start>>8), byte(start))
	for _, c := range rgb {
		payload = append(payload, c[0], c[1], c[2])
	}
	return encodeFrame(CmdSetPixels, payload)
}

// encodeFrame wraps a payload: LEN counts CMD and payload, CKS is the XOR
// of LEN, CMD and payload
func encodeFrame(cmd byte, payload []byte) []byte {
	length := byte(len(payload) + 1) // +1 for CMD byte
	cks := length ^ cmd
	for _, b := range payload {
		cks ^= b
	}

	out := make([]byte, 0, len(payload)+5)
	out = append(out, SOF0, SOF1, length, cmd)
	out = append(out, payload...)
	out = append(out, cks)
	return out
}
