package driver

import (
	"errors"
	"fmt"
	"net"

	"go-lightsynth/debug"
	"go-lightsynth/light"
)

const artnetPort = "6454"

// ArtNet sends each frame as one ArtDMX packet. Every light takes three
// channels (RGB) from its configured start channel.
type ArtNet struct {
	conn     net.Conn
	universe uint16
	channels map[light.ID]int
	dmx      [512]byte
	seq      uint8
}

// DialArtNet connects to a node by unicast. A missing port means 6454.
func DialArtNet(addr string, universe int, channels map[light.ID]int) (*ArtNet, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, artnetPort)
	}
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("artnet %s: %w", addr, err)
	}
	debug.Log("artnet", "sending universe %d to %s", universe, addr)
	return NewArtNet(conn, universe, channels), nil
}

// NewArtNet sends over an existing connection
func NewArtNet(conn net.Conn, universe int, channels map[light.ID]int) *ArtNet {
	valid := make(map[light.ID]int, len(channels))
	for id, ch := range channels {
		if ch < 1 || ch > 510 {
			debug.Warn("artnet", "light %s: channel %d out of range, ignored", id, ch)
			continue
		}
		valid[id] = ch
	}
	return &ArtNet{conn: conn, universe: uint16(universe), channels: valid, seq: 1}
}

func (a *ArtNet) Send(frame light.Frame) error {
	size := 0
	for id, ch := range a.channels {
		c := frame[id].Bytes()
		i := ch - 1
		copy(a.dmx[i:i+3], c[:])
		size = max(size, i+3)
	}
	// ArtDMX length must be even, 2-512
	size = max(size+size%2, 2)

	if _, err := a.conn.Write(buildArtDMX(a.seq, a.universe, a.dmx[:size])); err != nil {
		return fmt.Errorf("artnet write: %w", err)
	}
	// 0 disables sequencing on the node
	a.seq++
	if a.seq == 0 {
		a.seq = 1
	}
	return nil
}

// Close blacks out the universe and closes the socket
func (a *ArtNet) Close() error {
	return errors.Join(a.Send(light.Frame{}), a.conn.Close())
}

// buildArtDMX constructs an ArtDMX packet for the given universe and payload
func buildArtDMX(seq uint8, universe uint16, dmx []byte) []byte {
	subUni := byte(universe & 0xFF)
	netHi := byte((universe >> 8) & 0x7F)
	packet := make([]byte, 18+len(dmx))
	copy(packet[0:], "Art-Net\x00")        // ID
	packet[8], packet[9] = 0x00, 0x50      // OpCode ArtDMX
	packet[10], packet[11] = 0x00, 14      // Protocol version 14
	packet[12], packet[13] = seq, 0x00     // Sequence, physical port
	packet[14], packet[15] = subUni, netHi // SubUni, Net
	packet[16], packet[17] = byte(len(dmx)>>8), byte(len(dmx))
	copy(packet[18:], dmx)
	return packet
}
