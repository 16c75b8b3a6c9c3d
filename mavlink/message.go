package mavlink

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/juju/errors"
)

const (
	MsgIDHeartbeat   uint8 = 0
	MsgIDSysStatus   uint8 = 1
	MsgIDSystemTime  uint8 = 2
	MsgIDPing        uint8 = 4
	MsgIDSetMode     uint8 = 11
	MsgIDParamValue  uint8 = 22
	MsgIDGPSRawInt   uint8 = 24
	MsgIDAttitude    uint8 = 30
	MsgIDGlobalPos   uint8 = 33
	MsgIDVfrHud      uint8 = 74
	MsgIDCommandLong uint8 = 76
	MsgIDCommandAck  uint8 = 77
	MsgIDStatusText  uint8 = 253
)

// Message is an application level entity which codec can frame.
type Message interface {
	MsgID() uint8
	MarshalPayload() []byte
}

var registry = struct {
	sync.RWMutex
	extra map[uint8]byte
}{extra: map[uint8]byte{
	MsgIDHeartbeat:   50,
	MsgIDSysStatus:   124,
	MsgIDSystemTime:  137,
	MsgIDPing:        237,
	MsgIDSetMode:     89,
	MsgIDParamValue:  220,
	MsgIDGPSRawInt:   24,
	MsgIDAttitude:    39,
	MsgIDGlobalPos:   104,
	MsgIDVfrHud:      20,
	MsgIDCommandLong: 152,
	MsgIDCommandAck:  143,
	MsgIDStatusText:  83,
}}

// Register adds or replaces CRC_EXTRA for application specific message id.
func Register(msgid uint8, crcExtra byte) {
	registry.Lock()
	registry.extra[msgid] = crcExtra
	registry.Unlock()
}

// CRCExtra returns seed byte for message id, false for unknown id.
func CRCExtra(msgid uint8) (byte, bool) {
	registry.RLock()
	x, ok := registry.extra[msgid]
	registry.RUnlock()
	return x, ok
}

const (
	MavTypeGCS          uint8 = 6
	MavAutopilotInvalid uint8 = 8
	MavStateActive      uint8 = 4
	MavlinkProtocolV1   uint8 = 3
)

const heartbeatPayloadSize = 9

// Heartbeat is liveness message, carries no command payload.
type Heartbeat struct {
	CustomMode     uint32
	Type           uint8
	Autopilot      uint8
	BaseMode       uint8
	SystemStatus   uint8
	MavlinkVersion uint8
}

var _ Message = &Heartbeat{} // compile-time interface test

func (*Heartbeat) MsgID() uint8 { return MsgIDHeartbeat }

func (h *Heartbeat) MarshalPayload() []byte {
	b := make([]byte, heartbeatPayloadSize)
	binary.LittleEndian.PutUint32(b[0:], h.CustomMode)
	b[4] = h.Type
	b[5] = h.Autopilot
	b[6] = h.BaseMode
	b[7] = h.SystemStatus
	b[8] = h.MavlinkVersion
	return b
}

func (h *Heartbeat) UnmarshalPayload(b []byte) error {
	if len(b) < heartbeatPayloadSize {
		return errors.NotValidf("heartbeat payload len=%d", len(b))
	}
	h.CustomMode = binary.LittleEndian.Uint32(b[0:])
	h.Type = b[4]
	h.Autopilot = b[5]
	h.BaseMode = b[6]
	h.SystemStatus = b[7]
	h.MavlinkVersion = b[8]
	return nil
}

func (h *Heartbeat) String() string {
	return fmt.Sprintf("HEARTBEAT(type=%d autopilot=%d base_mode=%d custom_mode=%d status=%d version=%d)",
		h.Type, h.Autopilot, h.BaseMode, h.CustomMode, h.SystemStatus, h.MavlinkVersion)
}

// Raw message with opaque payload, used for ids without typed definition.
type Raw struct {
	ID      uint8
	Payload []byte
}

func (r *Raw) MsgID() uint8           { return r.ID }
func (r *Raw) MarshalPayload() []byte { return r.Payload }
func (r *Raw) String() string         { return fmt.Sprintf("RAW(id=%d payload=%x)", r.ID, r.Payload) }
