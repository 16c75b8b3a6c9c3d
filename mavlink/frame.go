package mavlink

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/juju/errors"
)

const (
	FrameMagic      byte = 0xfe
	FrameHeaderSize      = 6 // magic, len, seq, sysid, compid, msgid
	FrameCRCSize         = 2
	FrameMaxPayload      = math.MaxUint8
	FrameMaxSize         = FrameHeaderSize + FrameMaxPayload + FrameCRCSize + AuthSize
)

var (
	ErrFrameLenOverflow = fmt.Errorf("payload is too large")
	ErrUnknownMessage   = fmt.Errorf("unknown message id")
)

// Packet is one decoded frame.
type Packet struct {
	Seq     uint8
	SysID   uint8
	CompID  uint8
	MsgID   uint8
	Payload []byte
	Signed  bool
}

// Message returns typed message for known payload layouts, *Raw otherwise.
func (p *Packet) Message() (Message, error) {
	switch p.MsgID {
	case MsgIDHeartbeat:
		h := &Heartbeat{}
		if err := h.UnmarshalPayload(p.Payload); err != nil {
			return nil, errors.Annotatef(err, "packet seq=%d", p.Seq)
		}
		return h, nil
	}
	return &Raw{ID: p.MsgID, Payload: p.Payload}, nil
}

func (p *Packet) String() string {
	return fmt.Sprintf("(seq=%d sys=%d comp=%d msg=%d signed=%t payload=%x)",
		p.Seq, p.SysID, p.CompID, p.MsgID, p.Signed, p.Payload)
}

// EncodeFrame serializes msg into one frame. Pure function of its arguments.
// Non-empty secret appends authentication trailer.
func EncodeFrame(msg Message, seq, sysid, compid uint8, secret []byte) ([]byte, error) {
	msgid := msg.MsgID()
	extra, ok := CRCExtra(msgid)
	if !ok {
		return nil, errors.Annotatef(ErrUnknownMessage, "msgid=%d", msgid)
	}
	payload := msg.MarshalPayload()
	if len(payload) > FrameMaxPayload {
		return nil, errors.Annotatef(ErrFrameLenOverflow, "msgid=%d len=%d", msgid, len(payload))
	}

	flen := FrameHeaderSize + len(payload) + FrameCRCSize
	capacity := flen
	if len(secret) != 0 {
		capacity += AuthSize
	}
	b := make([]byte, FrameHeaderSize, capacity)
	b[0] = FrameMagic
	b[1] = byte(len(payload))
	b[2] = seq
	b[3] = sysid
	b[4] = compid
	b[5] = msgid
	b = append(b, payload...)
	crc := CRC(crcInit, b[1:])
	crc = crcAccumulate(crc, extra)
	b = b[:flen]
	binary.LittleEndian.PutUint16(b[flen-FrameCRCSize:], crc)

	if len(secret) != 0 {
		var err error
		if b, err = AppendAuth(b, secret); err != nil {
			return nil, errors.Annotate(err, "frame auth")
		}
	}
	return b, nil
}
