package model

// Packet is a compressed access unit as it moves between a demuxer, a
// decoder, an encoder, and a muxer. Data holds the codec's native bitstream
// for one access unit; it is opaque to everything above the CodecAdapter
// boundary.
type Packet struct {
	StreamIndex int
	Kind        Kind
	PTS         int64 // in TimeBase ticks; PTSUnset if absent
	DTS         int64 // in TimeBase ticks; PTSUnset if absent
	Duration    int64 // in TimeBase ticks, 0 if unknown
	TimeBase    Rational
	KeyFrame    bool
	Data        []byte
}

// PTSUnset marks a Packet/Frame timestamp that the source did not provide.
// TimestampMapper must never rescale PTSUnset; it passes it through.
const PTSUnset = int64(-1) << 62

// Clone returns a deep copy of p's Data so a packet can be held across an
// async boundary (the progress hub, a retry buffer) without aliasing a
// buffer the codec adapter may reuse.
func (p Packet) Clone() Packet {
	cp := p
	cp.Data = append([]byte(nil), p.Data...)
	return cp
}
