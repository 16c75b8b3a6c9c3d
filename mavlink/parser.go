package mavlink

import (
	"bytes"
	"encoding/binary"
	"expvar"
	"fmt"
)

// ParserStat counts input the parser had to throw away.
type ParserStat struct {
	Frames     expvar.Int
	BadCRC     expvar.Int
	BadAuth    expvar.Int
	Unknown    expvar.Int
	Skipped    expvar.Int // garbage bytes before frame start
	Incomplete expvar.Int // bytes waiting for the rest of frame
}

func (s *ParserStat) String() string {
	return fmt.Sprintf(`{"frames":%d,"bad_crc":%d,"bad_auth":%d,"unknown":%d,"skipped":%d,"incomplete":%d}`,
		s.Frames.Value(), s.BadCRC.Value(), s.BadAuth.Value(), s.Unknown.Value(), s.Skipped.Value(), s.Incomplete.Value())
}

// Parser is incremental frame decoder.
// Input may contain partial frames, several frames, garbage or duplicates.
// Parser keeps incomplete tail until next Feed.
// Not safe for concurrent use.
type Parser struct {
	buf    []byte
	secret []byte
	stat   ParserStat
}

// NewParser with non-empty secret accepts only authenticated frames.
func NewParser(secret []byte) *Parser {
	return &Parser{
		buf:    make([]byte, 0, FrameMaxSize),
		secret: secret,
	}
}

func (p *Parser) Stat() *ParserStat { return &p.stat }

// Feed consumes b and returns all frames completed by it, in input order.
func (p *Parser) Feed(b []byte) []*Packet {
	p.buf = append(p.buf, b...)
	var out []*Packet
	for {
		start := bytes.IndexByte(p.buf, FrameMagic)
		if start < 0 {
			p.stat.Skipped.Add(int64(len(p.buf)))
			p.buf = p.buf[:0]
			break
		}
		if start > 0 {
			p.stat.Skipped.Add(int64(start))
			p.buf = p.buf[start:]
		}
		if len(p.buf) < FrameHeaderSize {
			break
		}

		plen := int(p.buf[1])
		flen := FrameHeaderSize + plen + FrameCRCSize
		total := flen
		if len(p.secret) != 0 {
			total += AuthSize
		}
		if len(p.buf) < total {
			break
		}

		pkt, ok := p.check(p.buf[:total], flen)
		if !ok {
			// resync from next byte, frame start might be inside payload
			p.buf = p.buf[1:]
			p.stat.Skipped.Add(1)
			continue
		}
		out = append(out, pkt)
		p.stat.Frames.Add(1)
		p.buf = p.buf[total:]
	}
	p.stat.Incomplete.Set(int64(len(p.buf)))
	p.compact()
	return out
}

// Reset drops incomplete input.
func (p *Parser) Reset() { p.buf = p.buf[:0] }

func (p *Parser) check(frame []byte, flen int) (*Packet, bool) {
	msgid := frame[5]
	extra, known := CRCExtra(msgid)
	if !known {
		p.stat.Unknown.Add(1)
		return nil, false
	}
	crc := CRC(crcInit, frame[1:flen-FrameCRCSize])
	crc = crcAccumulate(crc, extra)
	if declared := binary.LittleEndian.Uint16(frame[flen-FrameCRCSize:]); declared != crc {
		p.stat.BadCRC.Add(1)
		return nil, false
	}

	signed := false
	if len(p.secret) != 0 {
		if !CheckAuth(frame[:flen], frame[flen:], p.secret) {
			p.stat.BadAuth.Add(1)
			return nil, false
		}
		signed = true
	}

	payload := make([]byte, flen-FrameHeaderSize-FrameCRCSize)
	copy(payload, frame[FrameHeaderSize:])
	return &Packet{
		Seq:     frame[2],
		SysID:   frame[3],
		CompID:  frame[4],
		MsgID:   msgid,
		Payload: payload,
		Signed:  signed,
	}, true
}

// keep backing array bounded and at the front
func (p *Parser) compact() {
	if cap(p.buf) > 4*FrameMaxSize && len(p.buf) < FrameMaxSize {
		nb := make([]byte, len(p.buf), FrameMaxSize)
		copy(nb, p.buf)
		p.buf = nb
	}
}
