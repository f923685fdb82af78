package driver

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"

	"go-lightsynth/light"
	"go-lightsynth/midi"
)

type recordingSetter struct {
	batches [][]midi.LEDUpdate
}

func (r *recordingSetter) SetLEDBatch(u []midi.LEDUpdate) error {
	r.batches = append(r.batches, append([]midi.LEDUpdate(nil), u...))
	return nil
}

func TestLaunchpad_sends_only_changes(t *testing.T) {
	pads := map[light.ID][2]int{"a": {0, 0}, "b": {0, 1}}
	rec := &recordingSetter{}
	lp := NewLaunchpad(pads, rec)

	red := light.RGB{R: 1}
	lp.Send(light.Frame{"a": red, "b": light.Black})
	if len(rec.batches) != 1 || len(rec.batches[0]) != 2 {
		t.Fatalf("first frame should send every pad: %+v", rec.batches)
	}

	lp.Send(light.Frame{"a": red, "b": light.Black})
	if len(rec.batches) != 1 {
		t.Fatalf("unchanged frame should send nothing: %+v", rec.batches)
	}

	lp.Send(light.Frame{"a": red, "b": light.RGB{G: 1}})
	if len(rec.batches) != 2 || len(rec.batches[1]) != 1 {
		t.Fatalf("batches = %+v", rec.batches)
	}
	u := rec.batches[1][0]
	if u.Row != 0 || u.Col != 1 || u.Color != [3]uint8{0, 255, 0} {
		t.Errorf("update = %+v", u)
	}

	// a new device gets the whole grid again
	rec2 := &recordingSetter{}
	lp.SetTarget(rec2)
	lp.Send(light.Frame{"a": red, "b": light.RGB{G: 1}})
	if len(rec2.batches) != 1 || len(rec2.batches[0]) != 2 {
		t.Errorf("after SetTarget = %+v", rec2.batches)
	}

	lp.Close()
	last := rec2.batches[len(rec2.batches)-1]
	for _, u := range last {
		if u.Color != [3]uint8{} {
			t.Errorf("Close should blank pads: %+v", last)
		}
	}
}

func TestLaunchpad_no_target(t *testing.T) {
	lp := NewLaunchpad(map[light.ID][2]int{"a": {0, 0}}, nil)
	if err := lp.Send(light.Frame{"a": {R: 1}}); err != nil {
		t.Errorf("Send without device = %v", err)
	}
}

func TestEncodeFrame(t *testing.T) {
	got := encodeFrame(CmdShow, []byte{0x07})
	// LEN=2, CKS = 2 ^ 0x21 ^ 0x07
	want := []byte{0xAA, 0x55, 0x02, 0x21, 0x07, 0x02 ^ 0x21 ^ 0x07}
	if !bytes.Equal(got, want) {
		t.Errorf("frame = % x, want % x", got, want)
	}
}

type bufPort struct {
	bytes.Buffer
	closed bool
}

func (b *bufPort) Close() error {
	b.closed = true
	return nil
}

func TestSerial_Send(t *testing.T) {
	port := &bufPort{}
	s := NewSerial(port, map[light.ID]int{"a": 0, "b": 2})
	if err := s.Send(light.Frame{"a": {R: 1}, "b": {B: 1}}); err != nil {
		t.Fatal(err)
	}

	pixels := encodePixels(0, 0, [][3]byte{{255, 0, 0}, {0, 0, 0}, {0, 0, 255}})
	show := encodeFrame(CmdShow, []byte{0})
	want := append(pixels, show...)
	if !bytes.Equal(port.Bytes(), want) {
		t.Errorf("wire = % x\nwant % x", port.Bytes(), want)
	}
	if pixels[2] != 1+3+9 {
		t.Errorf("LEN = %d", pixels[2])
	}

	port.Reset()
	s.Send(light.Frame{})
	if port.Bytes()[4] != 1 {
		t.Errorf("sequence should advance, got %d", port.Bytes()[4])
	}

	s.Close()
	if !port.closed {
		t.Error("port not closed")
	}
}

func TestSerial_chunks_long_strips(t *testing.T) {
	port := &bufPort{}
	s := NewSerial(port, map[light.ID]int{"last": 99})
	s.Send(light.Frame{"last": {R: 1}})

	wire := port.Bytes()
	first := 4 + 3 + maxPixelsPerFrame*3 + 1
	if len(wire) < first+7 {
		t.Fatalf("wire too short: %d", len(wire))
	}
	if wire[first] != SOF0 || wire[first+1] != SOF1 || wire[first+3] != CmdSetPixels {
		t.Fatalf("second chunk header = % x", wire[first:first+4])
	}
	start := int(wire[first+5])<<8 | int(wire[first+6])
	if start != maxPixelsPerFrame {
		t.Errorf("second chunk start = %d", start)
	}
}

func TestBuildArtDMX(t *testing.T) {
	p := buildArtDMX(3, 0x0102, []byte{1, 2})
	if string(p[:8]) != "Art-Net\x00" {
		t.Errorf("id = %q", p[:8])
	}
	want := []byte{0x00, 0x50, 0x00, 14, 3, 0, 0x02, 0x01, 0, 2, 1, 2}
	if !bytes.Equal(p[8:], want) {
		t.Errorf("packet = % x, want % x", p[8:], want)
	}
}

func TestArtNet_Send(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("udp unavailable: %v", err)
	}
	defer pc.Close()

	a, err := DialArtNet(pc.LocalAddr().String(), 0, map[light.ID]int{"a": 1, "b": 4})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if err := a.Send(light.Frame{"a": {R: 1}, "b": {G: 1, B: 1}}); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 600)
	pc.SetReadDeadline(time.Now().Add(time.Second))
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatal(err)
	}
	p := buf[:n]
	if p[12] != 1 {
		t.Errorf("first sequence = %d", p[12])
	}
	// 6 channels used
	if int(p[16])<<8|int(p[17]) != 6 {
		t.Errorf("length = %d", int(p[16])<<8|int(p[17]))
	}
	if !bytes.Equal(p[18:], []byte{255, 0, 0, 0, 255, 255}) {
		t.Errorf("dmx = %v", p[18:])
	}
}

type stubDriver struct {
	sent   int
	closed bool
	err    error
}

func (s *stubDriver) Send(light.Frame) error { s.sent++; return s.err }
func (s *stubDriver) Close() error           { s.closed = true; return s.err }

func TestMulti(t *testing.T) {
	boom := errors.New("boom")
	ok, bad := &stubDriver{}, &stubDriver{err: boom}
	m := NewMulti(ok, nil, bad)
	if m.Len() != 2 {
		t.Fatalf("Len = %d", m.Len())
	}
	if err := m.Send(light.Frame{}); !errors.Is(err, boom) {
		t.Errorf("Send err = %v", err)
	}
	if ok.sent != 1 || bad.sent != 1 {
		t.Error("every driver should get the frame")
	}
	m.Close()
	if !ok.closed || !bad.closed {
		t.Error("every driver should be closed")
	}
}

func TestSerial_ignores_negative_pixels(t *testing.T) {
	port := &bufPort{}
	s := NewSerial(port, map[light.ID]int{"a": 0, "b": -1})
	if err := s.Send(light.Frame{"a": {R: 1}, "b": {G: 1}}); err != nil {
		t.Fatal(err)
	}
	want := append(encodePixels(0, 0, [][3]byte{{255, 0, 0}}), encodeFrame(CmdShow, []byte{0})...)
	if !bytes.Equal(port.Bytes(), want) {
		t.Errorf("wire = % x\nwant % x", port.Bytes(), want)
	}
}

type failingPort struct {
	closed bool
}

func (f *failingPort) Write(p []byte) (int, error) { return 0, errors.New("unplugged") }
func (f *failingPort) Close() error                { f.closed = true; return nil }

func TestSerial_Close_reports_blackout_error(t *testing.T) {
	port := &failingPort{}
	s := NewSerial(port, map[light.ID]int{"a": 0})
	if err := s.Close(); err == nil {
		t.Error("Close should report the failed blackout")
	}
	if !port.closed {
		t.Error("port should still be closed")
	}
}

func TestArtNet_Close_reports_blackout_error(t *testing.T) {
	client, peer := net.Pipe()
	peer.Close() // writes on client now fail
	a := NewArtNet(client, 0, map[light.ID]int{"a": 1, "bad": 600})
	if len(a.channels) != 1 {
		t.Errorf("out-of-range channel should be dropped: %v", a.channels)
	}
	if err := a.Close(); err == nil {
		t.Error("Close should report the failed blackout")
	}
}
