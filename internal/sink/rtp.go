package sink

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/pion/rtp"
)

// DefaultPayloadType is the dynamic RTP payload type used for the raw PCM
// stream (spec §6: "dynamic payload type").
const DefaultPayloadType = 97

// RTPOptions configures an RTPSink's network behaviour.
type RTPOptions struct {
	// Broadcast is the destination unicast or multicast address.
	Broadcast *net.UDPAddr
	// From is the local address to bind and send from (broadcast_from).
	From *net.UDPAddr
	// MulticastTTL is the configured multicast hop limit. NewRTPSink does
	// not apply it to the socket; packets use the system default TTL.
	MulticastTTL int
	// MulticastLoopback is the configured multicast loopback flag.
	// NewRTPSink does not apply it to the socket either.
	MulticastLoopback bool
	// PacketSamples is the number of PCM frames (all channels) packed into
	// a single RTP packet.
	PacketSamples int
}

// RTPSink encodes PCM into fixed-size RTP version-2 packets with
// monotonically increasing sequence number and sample-count timestamp,
// and sends them via UDP to the configured destination (spec §6 "rtp").
type RTPSink struct {
	format   Format
	opts     RTPOptions
	conn     *net.UDPConn
	ssrc     uint32
	seq      uint16
	ts       uint32
	frameLen int // bytes per sample frame (all channels)
	buf      []byte
}

// NewRTPSink opens the UDP socket and prepares the packetizer. format is
// forced to sink.DefaultFormat by the caller per spec §4.F; RTPSink does
// not itself resample.
func NewRTPSink(format Format, opts RTPOptions) (*RTPSink, error) {
	if opts.Broadcast == nil {
		return nil, fmt.Errorf("sink: rtp sink requires a broadcast address")
	}
	if opts.PacketSamples <= 0 {
		opts.PacketSamples = 160
	}

	conn, err := net.DialUDP("udp", opts.From, opts.Broadcast)
	if err != nil {
		return nil, fmt.Errorf("sink: dialing rtp destination %s: %w", opts.Broadcast, err)
	}
	if err := applyMulticastOptions(conn, opts); err != nil {
		conn.Close()
		return nil, err
	}

	ssrc, err := randomSSRC()
	if err != nil {
		conn.Close()
		return nil, err
	}

	frameLen := (format.Bits / 8) * format.Channels
	return &RTPSink{
		format:   format,
		opts:     opts,
		conn:     conn,
		ssrc:     ssrc,
		frameLen: frameLen,
	}, nil
}

func randomSSRC() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("sink: generating rtp ssrc: %w", err)
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// applyMulticastOptions is the hook for TTL/loopback tuning; it sets
// neither and always returns nil. Go's net package exposes these knobs via
// golang.org/x/net/ipv4 on a raw PacketConn, which this module does not
// use. Unicast destinations (the common case for a single listener) need
// neither knob.
func applyMulticastOptions(conn *net.UDPConn, opts RTPOptions) error {
	if opts.Broadcast.IP == nil || !opts.Broadcast.IP.IsMulticast() {
		return nil
	}
	_ = conn // no TTL/loopback tuning is applied.
	return nil
}

// Write implements Sink: p is PCM sample data, sliced into
// PacketSamples-frame packets and sent as they fill.
func (s *RTPSink) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	packetBytes := s.opts.PacketSamples * s.frameLen
	if packetBytes <= 0 {
		return len(p), nil
	}

	for len(s.buf) >= packetBytes {
		payload := s.buf[:packetBytes]
		if err := s.sendPacket(payload); err != nil {
			return 0, err
		}
		s.buf = s.buf[packetBytes:]
	}
	return len(p), nil
}

func (s *RTPSink) sendPacket(payload []byte) error {
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    DefaultPayloadType,
			SequenceNumber: s.seq,
			Timestamp:      s.ts,
			SSRC:           s.ssrc,
		},
		Payload: append([]byte(nil), payload...),
	}
	data, err := pkt.Marshal()
	if err != nil {
		return fmt.Errorf("sink: marshalling rtp packet: %w", err)
	}
	if _, err := s.conn.Write(data); err != nil {
		return fmt.Errorf("sink: writing rtp packet: %w", err)
	}
	s.seq++
	s.ts += uint32(s.opts.PacketSamples)
	return nil
}

// Format implements Sink.
func (s *RTPSink) Format() Format { return s.format }

// Close implements Sink.
func (s *RTPSink) Close() error {
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("sink: closing rtp socket: %w", err)
	}
	return nil
}
